// internal/probe/livecheck.go
package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
)

// Live-check classifications. The two misconfigurations need different
// remediation, so they are distinct errors rather than one boolean.
var (
	// ErrPresetNotFound means the configured preset name does not exist on
	// the account.
	ErrPresetNotFound = errors.New("upload preset not found on the media service account")
	// ErrPresetRequiresSignature means the preset exists but only accepts
	// signed uploads, which a client-side flow cannot produce.
	ErrPresetRequiresSignature = errors.New("upload preset requires signed uploads; switch its signing mode to unsigned")
)

// probePixel is a 1x1 transparent GIF, the smallest payload the upload
// endpoint accepts.
var probePixel = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x21, 0xf9, 0x04, 0x01, 0x00,
	0x00, 0x00, 0x00, 0x2c, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00,
	0x00, 0x02, 0x02, 0x44, 0x01, 0x00, 0x3b,
}

// LiveChecker performs the on-demand round trip confirming that the preset
// actually accepts unsigned uploads.
type LiveChecker struct {
	Config ServiceConfig
	// APIBase overrides the endpoint root for tests. Empty means the public
	// upload API.
	APIBase string
	// HTTPClient overrides the transport; nil means a 15 second timeout.
	HTTPClient *http.Client
}

// Check uploads a single probe pixel through the unsigned endpoint and
// classifies the outcome. Transient network failures are retried with
// exponential backoff so flaky connectivity does not get reported as a
// configuration problem.
func (lc *LiveChecker) Check(ctx context.Context) error {
	if !lc.Config.Usable {
		return fmt.Errorf("configuration incomplete, nothing to check")
	}

	backoff := retry.WithMaxRetries(2, retry.NewExponential(500*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := lc.attempt(ctx)
		var reqErr *requestFailure
		if errors.As(err, &reqErr) && reqErr.transient {
			return retry.RetryableError(err)
		}
		return err
	})
}

type requestFailure struct {
	err       error
	transient bool
}

func (f *requestFailure) Error() string { return f.err.Error() }
func (f *requestFailure) Unwrap() error { return f.err }

func (lc *LiveChecker) attempt(ctx context.Context) error {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("file", "probe.gif")
	if err != nil {
		return fmt.Errorf("create probe form: %w", err)
	}
	if _, err := part.Write(probePixel); err != nil {
		return fmt.Errorf("write probe pixel: %w", err)
	}
	if err := form.WriteField("upload_preset", lc.Config.UploadPreset); err != nil {
		return fmt.Errorf("write preset field: %w", err)
	}
	if err := form.Close(); err != nil {
		return fmt.Errorf("close probe form: %w", err)
	}

	base := lc.APIBase
	if base == "" {
		base = "https://api.cloudinary.com/v1_1"
	}
	endpoint := fmt.Sprintf("%s/%s/image/upload", base, lc.Config.CloudName)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return fmt.Errorf("build probe request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	httpc := lc.HTTPClient
	if httpc == nil {
		httpc = &http.Client{Timeout: 15 * time.Second}
	}
	resp, err := httpc.Do(req)
	if err != nil {
		return &requestFailure{err: fmt.Errorf("post probe upload: %w", err), transient: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		return nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	message := probeMessage(raw)
	switch {
	case resp.StatusCode >= 500:
		return &requestFailure{
			err:       fmt.Errorf("media service unavailable (status %d)", resp.StatusCode),
			transient: true,
		}
	case strings.Contains(strings.ToLower(message), "whitelisted for unsigned"):
		return ErrPresetRequiresSignature
	case strings.Contains(strings.ToLower(message), "preset not found"),
		strings.Contains(strings.ToLower(message), "unknown upload preset"):
		return ErrPresetNotFound
	default:
		return fmt.Errorf("probe upload rejected (status %d): %s", resp.StatusCode, message)
	}
}

func probeMessage(raw []byte) string {
	var parsed struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &parsed); err == nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	return string(raw)
}
