// internal/validate/validate.go
package validate

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// acceptedImageTypes is the default content-type allowlist for product images.
var acceptedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
	"image/bmp":  true,
	"image/tiff": true,
}

// DefaultMaxBytes is the default per-file size cap (10 MB).
const DefaultMaxBytes int64 = 10 * 1024 * 1024

// Limits configures the validator. The zero value is not usable; construct
// via DefaultLimits and adjust.
type Limits struct {
	MaxBytes      int64
	AcceptedTypes map[string]bool
}

func DefaultLimits() Limits {
	return Limits{MaxBytes: DefaultMaxBytes, AcceptedTypes: acceptedImageTypes}
}

// RejectionError reports why a single file was refused. Rejections are never
// retryable: the input itself is invalid.
type RejectionError struct {
	Path   string
	Reason string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("%s: %s", filepath.Base(e.Path), e.Reason)
}

// Check validates one candidate file against the limits. It returns nil for
// an acceptable file and a *RejectionError otherwise. The content type is
// sniffed from the first bytes of the file, not trusted from the extension.
func (l Limits) Check(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return &RejectionError{Path: path, Reason: fmt.Sprintf("cannot read file: %v", err)}
	}
	if info.IsDir() {
		return &RejectionError{Path: path, Reason: "is a directory, not an image file"}
	}
	if info.Size() > l.MaxBytes {
		return &RejectionError{
			Path:   path,
			Reason: fmt.Sprintf("file is %d bytes, exceeds the %d byte limit", info.Size(), l.MaxBytes),
		}
	}

	mimeType, err := sniffMime(path)
	if err != nil {
		return &RejectionError{Path: path, Reason: fmt.Sprintf("cannot detect content type: %v", err)}
	}
	if !l.AcceptedTypes[mimeType] {
		return &RejectionError{
			Path:   path,
			Reason: fmt.Sprintf("unsupported content type %s (accepted: %s)", mimeType, acceptedList(l.AcceptedTypes)),
		}
	}
	return nil
}

func sniffMime(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	buf := make([]byte, 512)
	n, err := file.Read(buf)
	if err != nil && err != io.EOF {
		return "", err
	}
	mimeType := http.DetectContentType(buf[:n])
	// DetectContentType may append a charset suffix for text-like payloads.
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	return mimeType, nil
}

func acceptedList(types map[string]bool) string {
	names := make([]string, 0, len(types))
	for t := range types {
		names = append(names, t)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
