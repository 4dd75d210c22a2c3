package img

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDimensions(t *testing.T) {
	tmp := t.TempDir()
	srcPath := filepath.Join(tmp, "source.png")
	createTestImage(t, srcPath, 400, 200)

	w, h, err := Dimensions(srcPath)
	if err != nil {
		t.Fatalf("Dimensions returned error: %v", err)
	}
	if w != 400 || h != 200 {
		t.Fatalf("unexpected dimensions: got %dx%d, want 400x200", w, h)
	}
}

func TestDimensionsMissingSource(t *testing.T) {
	_, _, err := Dimensions(filepath.Join(t.TempDir(), "missing.png"))
	if err == nil {
		t.Fatal("expected error for missing source image")
	}
	if !strings.Contains(err.Error(), "open") {
		t.Fatalf("unexpected error message: %v", err)
	}
}

func TestRenderVariantsCreatesOutputs(t *testing.T) {
	tmp := t.TempDir()
	srcPath := filepath.Join(tmp, "source.png")
	createTestImage(t, srcPath, 400, 200)

	specs := []VariantSpec{
		{Name: "thumbnail", Width: 100, Height: 100},
		{Name: "small", Width: 320, Height: 320},
	}
	outputs, err := RenderVariants(srcPath, filepath.Join(tmp, "nested", "asset.png"), specs)
	if err != nil {
		t.Fatalf("RenderVariants returned error: %v", err)
	}
	if len(outputs) != 2 {
		t.Fatalf("expected 2 outputs, got %d", len(outputs))
	}

	if outputs[0].Width != 100 || outputs[0].Height != 50 {
		t.Fatalf("unexpected thumbnail size: got %dx%d, want 100x50", outputs[0].Width, outputs[0].Height)
	}
	if outputs[0].SourceWidth != 400 || outputs[0].SourceHeight != 200 {
		t.Fatalf("unexpected source size: %dx%d", outputs[0].SourceWidth, outputs[0].SourceHeight)
	}
	for _, out := range outputs {
		if _, err := os.Stat(out.Path); err != nil {
			t.Fatalf("variant file %s not created: %v", out.Name, err)
		}
		if !strings.Contains(filepath.Base(out.Path), "_"+out.Name) {
			t.Fatalf("variant name missing from filename: %s", out.Path)
		}
	}
}

func createTestImage(t *testing.T, path string, w, h int) {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("create dir: %v", err)
	}

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create file: %v", err)
	}
	t.Cleanup(func() { _ = os.Remove(path) })

	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		t.Fatalf("encode png: %v", err)
	}

	if err := f.Close(); err != nil {
		t.Fatalf("close file: %v", err)
	}
}
