// internal/probe/probe.go

// Package probe inspects the media-service credentials available to the
// client at startup, classifies the configuration, and produces the
// remediation steps shown in the back-office banner when uploads cannot work.
package probe

import (
	"os"
	"sync"
)

// ServiceConfig is the classified view of the media-service settings.
// Computed once from the environment; read-only to the rest of the pipeline.
type ServiceConfig struct {
	CloudName    string
	UploadPreset string
	HasAPIKey    bool
	HasAPISecret bool
	Usable       bool
	Diagnostics  []string
}

// Environment keys. Only presence is recorded for the key and secret; their
// values are never carried past this package.
const (
	EnvCloudName    = "CLOUDINARY_CLOUD_NAME"
	EnvUploadPreset = "CLOUDINARY_UPLOAD_PRESET"
	EnvAPIKey       = "CLOUDINARY_API_KEY"
	EnvAPISecret    = "CLOUDINARY_API_SECRET"
)

// FromEnv reads the process environment and classifies it. A configuration is
// usable when the cloud name and an upload preset are both present; whether
// the preset actually accepts unsigned uploads is only knowable through
// LiveCheck.
func FromEnv() ServiceConfig {
	cfg := ServiceConfig{
		CloudName:    os.Getenv(EnvCloudName),
		UploadPreset: os.Getenv(EnvUploadPreset),
		HasAPIKey:    os.Getenv(EnvAPIKey) != "",
		HasAPISecret: os.Getenv(EnvAPISecret) != "",
	}

	if cfg.CloudName == "" {
		cfg.Diagnostics = append(cfg.Diagnostics,
			EnvCloudName+" is not set: copy the cloud name from the media service dashboard into the environment")
	}
	if cfg.UploadPreset == "" {
		cfg.Diagnostics = append(cfg.Diagnostics,
			EnvUploadPreset+" is not set: create an upload preset, switch its signing mode to \"unsigned\", and set the preset name here")
	}
	if cfg.HasAPISecret {
		cfg.Diagnostics = append(cfg.Diagnostics,
			EnvAPISecret+" is present in a client-side environment: the secret belongs on a trusted server only, remove it from this configuration")
	}

	cfg.Usable = cfg.CloudName != "" && cfg.UploadPreset != ""
	if !cfg.Usable {
		cfg.Diagnostics = append(cfg.Diagnostics,
			"uploads will run in mock mode until the configuration above is completed")
	}
	return cfg
}

// Mode selects which adapter the orchestrator runs against.
type Mode int

const (
	ModeReal Mode = iota
	ModeMock
)

func (m Mode) String() string {
	if m == ModeMock {
		return "mock"
	}
	return "real"
}

// Selector combines the probe result with an explicit mock-mode override.
// Forcing mock keeps the pipeline usable during development; clearing the
// override (typically after a successful live check) returns to real uploads.
type Selector struct {
	mu        sync.Mutex
	cfg       ServiceConfig
	forceMock bool
}

func NewSelector(cfg ServiceConfig) *Selector {
	return &Selector{cfg: cfg}
}

// ForceMock sets or clears the mock-mode override.
func (s *Selector) ForceMock(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forceMock = on
}

// Mode returns mock when forced or when the configuration is unusable.
func (s *Selector) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.forceMock || !s.cfg.Usable {
		return ModeMock
	}
	return ModeReal
}

// Config returns the probe result the selector was built from.
func (s *Selector) Config() ServiceConfig {
	return s.cfg
}
