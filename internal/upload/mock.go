// internal/upload/mock.go
package upload

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/merchware/media-ingest/internal/img"
)

// Mock simulates uploads locally so the pipeline stays usable while the
// remote service is unreachable or misconfigured. Files are spooled into a
// local directory, dimensions are decoded from the actual image, and eager
// transformations are rendered with the local resizer.
type Mock struct {
	// Dir is the spool directory for stored copies; empty means the
	// system temp directory.
	Dir string
	// Delay is the artificial settle time standing in for the network round
	// trip. Zero means no delay.
	Delay time.Duration
}

// mockEagerSpecs approximates the service-side named transformations.
var mockEagerSpecs = []img.VariantSpec{
	{Name: "thumbnail", Width: 150, Height: 150},
	{Name: "small", Width: 320, Height: 320},
	{Name: "medium", Width: 640, Height: 640},
	{Name: "large", Width: 1280, Height: 1280},
}

// Upload copies the file into the spool directory and synthesises a
// descriptor after the configured delay. The delay honours ctx cancellation.
func (m *Mock) Upload(ctx context.Context, path string, opts Options) (*AssetDescriptor, error) {
	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat source file: %w", err)
	}

	width, height, err := img.Dimensions(path)
	if err != nil {
		return nil, fmt.Errorf("decode source image: %w", err)
	}

	dir := m.Dir
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "media-ingest-mock")
	}

	id := uuid.NewString()
	remoteID := id
	if opts.Folder != "" {
		remoteID = opts.Folder + "/" + id
	}

	ext := filepath.Ext(path)
	storedPath := filepath.Join(dir, filepath.FromSlash(remoteID)+ext)
	if err := copyFile(path, storedPath); err != nil {
		return nil, err
	}

	if len(opts.Eager) > 0 {
		if _, err := img.RenderVariants(path, storedPath, mockEagerSpecs); err != nil {
			return nil, fmt.Errorf("render eager variants: %w", err)
		}
	}

	return &AssetDescriptor{
		RemoteID:     remoteID,
		SecureURL:    "file://" + filepath.ToSlash(storedPath),
		Width:        width,
		Height:       height,
		Bytes:        info.Size(),
		Format:       strings.TrimPrefix(strings.ToLower(ext), "."),
		ResourceType: "image",
		Version:      time.Now().Unix(),
		Folder:       opts.Folder,
	}, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source file: %w", err)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create spool directory: %w", err)
	}

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create stored copy: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy file contents: %w", err)
	}
	return out.Close()
}
