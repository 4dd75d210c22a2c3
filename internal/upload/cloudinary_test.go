package upload

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestCloudinaryUploadParsesDescriptor(t *testing.T) {
	var gotFields map[string]string
	var gotFilename string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method %s", r.Method)
		}
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			t.Errorf("parse multipart form: %v", err)
		}
		gotFields = map[string]string{}
		for name, values := range r.MultipartForm.Value {
			gotFields[name] = values[0]
		}
		if files := r.MultipartForm.File["file"]; len(files) == 1 {
			gotFilename = files[0].Filename
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"public_id": "products/abc123",
			"secure_url": "https://res.example.com/products/abc123.png",
			"url": "http://res.example.com/products/abc123.png",
			"width": 800,
			"height": 600,
			"format": "png",
			"resource_type": "image",
			"bytes": 1234,
			"version": 17,
			"folder": "products"
		}`))
	}))
	defer srv.Close()

	tmp := t.TempDir()
	src := filepath.Join(tmp, "shoe.png")
	if err := os.WriteFile(src, []byte("fake image bytes"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	adapter := &Cloudinary{CloudName: "demo-shop", UploadPreset: "storefront", APIBase: srv.URL}
	desc, err := adapter.Upload(context.Background(), src, Options{
		Folder:  "products",
		Tags:    []string{"shoes", "summer"},
		Context: map[string]string{"sku": "S-1", "alt": "red shoe"},
		Eager:   []string{"c_thumb,w_150,h_150", "c_limit,w_640"},
	})
	if err != nil {
		t.Fatalf("Upload returned error: %v", err)
	}

	if desc.RemoteID != "products/abc123" || desc.Width != 800 || desc.Height != 600 {
		t.Fatalf("unexpected descriptor: %+v", desc)
	}
	if desc.SecureURL != "https://res.example.com/products/abc123.png" {
		t.Fatalf("unexpected secure url: %s", desc.SecureURL)
	}
	if desc.Bytes != 1234 || desc.Format != "png" || desc.Version != 17 {
		t.Fatalf("unexpected descriptor metadata: %+v", desc)
	}

	if gotFilename != "shoe.png" {
		t.Fatalf("expected filename shoe.png, got %s", gotFilename)
	}
	want := map[string]string{
		"upload_preset": "storefront",
		"folder":        "products",
		"tags":          "shoes,summer",
		"context":       "alt=red shoe|sku=S-1",
		"eager":         "c_thumb,w_150,h_150|c_limit,w_640",
	}
	for name, value := range want {
		if gotFields[name] != value {
			t.Fatalf("form field %s = %q, want %q", name, gotFields[name], value)
		}
	}
}

func TestCloudinaryUploadSurfacesServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"Upload preset must be whitelisted for unsigned uploads"}}`))
	}))
	defer srv.Close()

	tmp := t.TempDir()
	src := filepath.Join(tmp, "shoe.png")
	if err := os.WriteFile(src, []byte("fake image bytes"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	adapter := &Cloudinary{CloudName: "demo-shop", UploadPreset: "locked", APIBase: srv.URL}
	_, err := adapter.Upload(context.Background(), src, Options{})

	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("expected RequestError, got %v", err)
	}
	if reqErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("unexpected status code: %d", reqErr.StatusCode)
	}
	if reqErr.Message != "Upload preset must be whitelisted for unsigned uploads" {
		t.Fatalf("server message not propagated: %q", reqErr.Message)
	}
}

func TestCloudinaryUploadMissingSource(t *testing.T) {
	adapter := &Cloudinary{CloudName: "demo-shop", UploadPreset: "storefront"}
	if _, err := adapter.Upload(context.Background(), "/not/exist.png", Options{}); err == nil {
		t.Fatal("expected error for missing source file")
	}
}
