// internal/deliver/deliver.go

// Package deliver computes the fixed family of delivery URLs for a stored
// asset. Derivation is a pure function of the remote identifier: the remote
// service applies the transformation parameters on first fetch, so no network
// call happens here.
package deliver

import (
	"net/url"
	"strings"
)

// DefaultBaseURL is the public delivery root of the media service.
const DefaultBaseURL = "https://res.cloudinary.com"

// URLSet is the fixed set of responsive delivery URLs for one asset.
type URLSet struct {
	Thumbnail string `json:"thumbnail"`
	Small     string `json:"small"`
	Medium    string `json:"medium"`
	Large     string `json:"large"`
	Original  string `json:"original"`
}

// Map returns the set keyed by size name, for event payloads.
func (s URLSet) Map() map[string]string {
	return map[string]string{
		"thumbnail": s.Thumbnail,
		"small":     s.Small,
		"medium":    s.Medium,
		"large":     s.Large,
		"original":  s.Original,
	}
}

// Named transformation parameters per size. Width-bounded fills with
// automatic quality and format negotiation, except the square thumbnail.
const (
	transformThumbnail = "c_thumb,g_auto,w_150,h_150,q_auto,f_auto"
	transformSmall     = "c_limit,w_320,q_auto,f_auto"
	transformMedium    = "c_limit,w_640,q_auto,f_auto"
	transformLarge     = "c_limit,w_1280,q_auto,f_auto"
)

// Deriver builds delivery URLs for a single account.
type Deriver struct {
	CloudName string
	// BaseURL overrides the delivery root; empty means DefaultBaseURL.
	BaseURL string
}

// Derive computes the URL set for remoteID. Calling it twice with the same
// identifier yields byte-identical URLs.
func (d Deriver) Derive(remoteID string) URLSet {
	return URLSet{
		Thumbnail: d.url(transformThumbnail, remoteID),
		Small:     d.url(transformSmall, remoteID),
		Medium:    d.url(transformMedium, remoteID),
		Large:     d.url(transformLarge, remoteID),
		Original:  d.url("", remoteID),
	}
}

func (d Deriver) url(transform, remoteID string) string {
	base := d.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	parts := []string{strings.TrimSuffix(base, "/"), d.CloudName, "image", "upload"}
	if transform != "" {
		parts = append(parts, transform)
	}
	parts = append(parts, escapeSegments(remoteID))
	return strings.Join(parts, "/")
}

// escapeSegments escapes each path segment of the remote identifier while
// keeping the folder separators, so identifiers with spaces or reserved
// characters still form valid URLs.
func escapeSegments(remoteID string) string {
	segments := strings.Split(remoteID, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}
