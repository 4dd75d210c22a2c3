// internal/upload/cloudinary.go
package upload

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// DefaultAPIBase is the upload API root of the media service.
const DefaultAPIBase = "https://api.cloudinary.com/v1_1"

// Cloudinary uploads via the unsigned upload endpoint. The preset named here
// must be configured server-side as unsigned; a signed-only preset is
// rejected by the service and surfaced through the configuration probe.
type Cloudinary struct {
	CloudName    string
	UploadPreset string
	// APIBase overrides the endpoint root, used by tests and self-hosted
	// compatible services. Empty means DefaultAPIBase.
	APIBase string
	// HTTPClient overrides the transport; nil means a client with a
	// 60 second overall timeout.
	HTTPClient *http.Client
}

// uploadResponse mirrors the subset of the service response the pipeline
// consumes.
type uploadResponse struct {
	PublicID     string `json:"public_id"`
	SecureURL    string `json:"secure_url"`
	URL          string `json:"url"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	Format       string `json:"format"`
	ResourceType string `json:"resource_type"`
	Bytes        int64  `json:"bytes"`
	Version      int64  `json:"version"`
	Folder       string `json:"folder"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Upload posts the file as a multipart form to the unsigned upload endpoint
// and parses the returned descriptor.
func (c *Cloudinary) Upload(ctx context.Context, path string, opts Options) (*AssetDescriptor, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open source file: %w", err)
	}
	defer file.Close()

	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)

	go func() {
		err := writeUploadForm(form, file, filepath.Base(path), c.UploadPreset, opts)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(form.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), pr)
	if err != nil {
		return nil, fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("post upload: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read upload response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &RequestError{StatusCode: resp.StatusCode, Message: serverMessage(body)}
	}

	var parsed uploadResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode upload response: %w", err)
	}
	if parsed.PublicID == "" {
		return nil, fmt.Errorf("upload response missing public_id")
	}

	return &AssetDescriptor{
		RemoteID:     parsed.PublicID,
		SecureURL:    parsed.SecureURL,
		URL:          parsed.URL,
		Width:        parsed.Width,
		Height:       parsed.Height,
		Bytes:        parsed.Bytes,
		Format:       parsed.Format,
		ResourceType: parsed.ResourceType,
		Version:      parsed.Version,
		Folder:       parsed.Folder,
	}, nil
}

func writeUploadForm(form *multipart.Writer, file io.Reader, filename, preset string, opts Options) error {
	part, err := form.CreateFormFile("file", filename)
	if err != nil {
		return fmt.Errorf("create file part: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("copy file contents: %w", err)
	}

	fields := map[string]string{
		"upload_preset": preset,
		"folder":        opts.Folder,
		"tags":          opts.tagsField(),
		"context":       opts.contextField(),
		"eager":         opts.eagerField(),
	}
	for name, value := range fields {
		if value == "" {
			continue
		}
		if err := form.WriteField(name, value); err != nil {
			return fmt.Errorf("write field %s: %w", name, err)
		}
	}
	return nil
}

func serverMessage(body []byte) string {
	var parsed errorResponse
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	return ""
}

func (c *Cloudinary) endpoint() string {
	base := c.APIBase
	if base == "" {
		base = DefaultAPIBase
	}
	return fmt.Sprintf("%s/%s/image/upload", base, c.CloudName)
}

func (c *Cloudinary) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 60 * time.Second}
}
