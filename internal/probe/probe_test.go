package probe

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestFromEnvUsableConfiguration(t *testing.T) {
	t.Setenv(EnvCloudName, "demo-shop")
	t.Setenv(EnvUploadPreset, "storefront")
	t.Setenv(EnvAPIKey, "12345")
	t.Setenv(EnvAPISecret, "")

	cfg := FromEnv()
	if !cfg.Usable {
		t.Fatalf("expected usable configuration, diagnostics: %v", cfg.Diagnostics)
	}
	if !cfg.HasAPIKey || cfg.HasAPISecret {
		t.Fatalf("unexpected credential presence: key=%v secret=%v", cfg.HasAPIKey, cfg.HasAPISecret)
	}
	if len(cfg.Diagnostics) != 0 {
		t.Fatalf("expected no diagnostics, got %v", cfg.Diagnostics)
	}
}

func TestFromEnvMissingSettings(t *testing.T) {
	t.Setenv(EnvCloudName, "")
	t.Setenv(EnvUploadPreset, "")
	t.Setenv(EnvAPIKey, "")
	t.Setenv(EnvAPISecret, "")

	cfg := FromEnv()
	if cfg.Usable {
		t.Fatal("expected unusable configuration")
	}
	if len(cfg.Diagnostics) < 2 {
		t.Fatalf("expected per-setting diagnostics, got %v", cfg.Diagnostics)
	}
	joined := strings.Join(cfg.Diagnostics, "\n")
	if !strings.Contains(joined, EnvCloudName) || !strings.Contains(joined, EnvUploadPreset) {
		t.Fatalf("diagnostics do not name the missing settings: %v", cfg.Diagnostics)
	}
}

func TestFromEnvFlagsClientSideSecret(t *testing.T) {
	t.Setenv(EnvCloudName, "demo-shop")
	t.Setenv(EnvUploadPreset, "storefront")
	t.Setenv(EnvAPIKey, "")
	t.Setenv(EnvAPISecret, "sekret")

	cfg := FromEnv()
	if !cfg.Usable {
		t.Fatal("secret presence must not make the configuration unusable")
	}
	joined := strings.Join(cfg.Diagnostics, "\n")
	if !strings.Contains(joined, "trusted server") {
		t.Fatalf("expected secret warning, got %v", cfg.Diagnostics)
	}
}

func TestSelectorModeFollowsConfigAndOverride(t *testing.T) {
	usable := ServiceConfig{CloudName: "demo", UploadPreset: "p", Usable: true}
	s := NewSelector(usable)
	if s.Mode() != ModeReal {
		t.Fatalf("expected real mode, got %s", s.Mode())
	}

	s.ForceMock(true)
	if s.Mode() != ModeMock {
		t.Fatal("override to mock not honoured")
	}
	s.ForceMock(false)
	if s.Mode() != ModeReal {
		t.Fatal("clearing override not honoured")
	}

	unusable := NewSelector(ServiceConfig{})
	if unusable.Mode() != ModeMock {
		t.Fatal("unusable configuration must select mock mode")
	}
}

func liveChecker(t *testing.T, handler http.HandlerFunc) (*LiveChecker, func()) {
	t.Helper()
	srv := httptest.NewServer(handler)
	lc := &LiveChecker{
		Config:  ServiceConfig{CloudName: "demo", UploadPreset: "storefront", Usable: true},
		APIBase: srv.URL,
	}
	return lc, srv.Close
}

func TestLiveCheckSucceeds(t *testing.T) {
	lc, done := liveChecker(t, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if got := r.MultipartForm.Value["upload_preset"]; len(got) != 1 || got[0] != "storefront" {
			t.Errorf("preset field missing: %v", got)
		}
		_, _ = w.Write([]byte(`{"public_id":"probe"}`))
	})
	defer done()

	if err := lc.Check(context.Background()); err != nil {
		t.Fatalf("Check returned error: %v", err)
	}
}

func TestLiveCheckClassifiesSignedPreset(t *testing.T) {
	lc, done := liveChecker(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"Upload preset must be whitelisted for unsigned uploads"}}`))
	})
	defer done()

	if err := lc.Check(context.Background()); !errors.Is(err, ErrPresetRequiresSignature) {
		t.Fatalf("expected ErrPresetRequiresSignature, got %v", err)
	}
}

func TestLiveCheckClassifiesUnknownPreset(t *testing.T) {
	lc, done := liveChecker(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"Upload preset not found"}}`))
	})
	defer done()

	if err := lc.Check(context.Background()); !errors.Is(err, ErrPresetNotFound) {
		t.Fatalf("expected ErrPresetNotFound, got %v", err)
	}
}

func TestLiveCheckRetriesServerErrors(t *testing.T) {
	attempts := 0
	lc, done := liveChecker(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"public_id":"probe"}`))
	})
	defer done()

	if err := lc.Check(context.Background()); err != nil {
		t.Fatalf("Check returned error after retry: %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
}

func TestLiveCheckRefusesIncompleteConfig(t *testing.T) {
	lc := &LiveChecker{Config: ServiceConfig{}}
	if err := lc.Check(context.Background()); err == nil {
		t.Fatal("expected error for incomplete configuration")
	}
}
