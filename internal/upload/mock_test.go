package upload

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestMockUploadSynthesisesDescriptor(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "shoe.png")
	createTestImage(t, src, 300, 150)

	mock := &Mock{Dir: filepath.Join(tmp, "spool")}
	desc, err := mock.Upload(context.Background(), src, Options{Folder: "products"})
	if err != nil {
		t.Fatalf("Upload returned error: %v", err)
	}

	if desc.RemoteID == "" || !strings.HasPrefix(desc.RemoteID, "products/") {
		t.Fatalf("unexpected remote id: %s", desc.RemoteID)
	}
	if desc.Width != 300 || desc.Height != 150 {
		t.Fatalf("unexpected dimensions: %dx%d", desc.Width, desc.Height)
	}
	if desc.Format != "png" || desc.Bytes <= 0 {
		t.Fatalf("unexpected metadata: %+v", desc)
	}
	if !strings.HasPrefix(desc.SecureURL, "file://") {
		t.Fatalf("expected local file url, got %s", desc.SecureURL)
	}

	stored := strings.TrimPrefix(desc.SecureURL, "file://")
	if _, err := os.Stat(filepath.FromSlash(stored)); err != nil {
		t.Fatalf("stored copy missing: %v", err)
	}
}

func TestMockUploadRendersEagerVariants(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "shoe.png")
	createTestImage(t, src, 300, 150)

	spool := filepath.Join(tmp, "spool")
	mock := &Mock{Dir: spool}
	desc, err := mock.Upload(context.Background(), src, Options{Eager: []string{"c_thumb,w_150,h_150"}})
	if err != nil {
		t.Fatalf("Upload returned error: %v", err)
	}

	variant := filepath.Join(spool, desc.RemoteID+"_thumbnail.png")
	if _, err := os.Stat(variant); err != nil {
		t.Fatalf("eager variant not rendered: %v", err)
	}
}

func TestMockUploadDistinctRemoteIDs(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "shoe.png")
	createTestImage(t, src, 20, 20)

	mock := &Mock{Dir: filepath.Join(tmp, "spool")}
	first, err := mock.Upload(context.Background(), src, Options{})
	if err != nil {
		t.Fatalf("first upload: %v", err)
	}
	second, err := mock.Upload(context.Background(), src, Options{})
	if err != nil {
		t.Fatalf("second upload: %v", err)
	}
	if first.RemoteID == second.RemoteID {
		t.Fatalf("remote ids not unique: %s", first.RemoteID)
	}
}

func TestMockUploadHonoursCancellation(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "shoe.png")
	createTestImage(t, src, 20, 20)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	mock := &Mock{Dir: filepath.Join(tmp, "spool"), Delay: time.Minute}
	_, err := mock.Upload(ctx, src, Options{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestMockUploadRejectsNonImage(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "broken.png")
	if err := os.WriteFile(src, []byte("not an image"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	mock := &Mock{Dir: filepath.Join(tmp, "spool")}
	if _, err := mock.Upload(context.Background(), src, Options{}); err == nil {
		t.Fatal("expected decode error for non-image payload")
	}
}

func createTestImage(t *testing.T, path string, w, h int) {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: 40, G: 120, B: 220, A: 255})
		}
	}

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create file: %v", err)
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		t.Fatalf("encode png: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close file: %v", err)
	}
}
