// internal/upload/adapter.go

// Package upload defines the adapter contract for storing product images on
// the remote media service, with a real HTTP implementation and a local mock
// that exercises the rest of the pipeline identically.
package upload

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// AssetDescriptor identifies a successfully stored asset. Immutable once
// produced; created exactly once per successful adapter call.
type AssetDescriptor struct {
	RemoteID     string `json:"remote_id"`
	SecureURL    string `json:"secure_url"`
	URL          string `json:"url,omitempty"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	Bytes        int64  `json:"bytes"`
	Format       string `json:"format"`
	ResourceType string `json:"resource_type,omitempty"`
	Version      int64  `json:"version,omitempty"`
	Folder       string `json:"folder,omitempty"`
}

// Options carries the per-upload request parameters.
type Options struct {
	Folder string
	Tags   []string
	// Context holds key=value metadata attached to the stored asset.
	Context map[string]string
	// Eager lists transformation descriptors the service should render ahead
	// of the first delivery request.
	Eager []string
}

// tagsField joins tags the way the upload endpoint expects them.
func (o Options) tagsField() string { return strings.Join(o.Tags, ",") }

// contextField pipe-joins key=value pairs in stable order.
func (o Options) contextField() string {
	if len(o.Context) == 0 {
		return ""
	}
	keys := make([]string, 0, len(o.Context))
	for k := range o.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+o.Context[k])
	}
	return strings.Join(pairs, "|")
}

// eagerField pipe-joins eager transformation descriptors.
func (o Options) eagerField() string { return strings.Join(o.Eager, "|") }

// Adapter stores one file on the media service and returns its descriptor.
// Implementations must honour ctx cancellation.
type Adapter interface {
	Upload(ctx context.Context, path string, opts Options) (*AssetDescriptor, error)
}

// Deleter removes a stored asset. Deletion requires a request signed with the
// account secret, which must never live client-side; the back office is
// expected to provide an implementation that relays through a trusted server.
type Deleter interface {
	Delete(ctx context.Context, remoteID string) error
}

// RequestError is a rejection from the media service carrying the
// server-provided message.
type RequestError struct {
	StatusCode int
	Message    string
}

func (e *RequestError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("media service returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("media service returned status %d: %s", e.StatusCode, e.Message)
}
