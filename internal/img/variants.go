// internal/img/variants.go
package img

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
)

// VariantSpec names one eager transformation to simulate locally.
type VariantSpec struct {
	Name   string
	Width  int
	Height int
}

// VariantOutput describes one rendered variant file.
type VariantOutput struct {
	Name         string
	Path         string
	Width        int
	Height       int
	SourceWidth  int
	SourceHeight int
}

// Dimensions decodes srcPath and returns its pixel size after orientation
// correction.
func Dimensions(srcPath string) (w int, h int, _ error) {
	src, err := imaging.Open(srcPath, imaging.AutoOrientation(true))
	if err != nil {
		return 0, 0, fmt.Errorf("open: %w", err)
	}
	b := src.Bounds()
	return b.Dx(), b.Dy(), nil
}

// RenderVariants downscales a source image into one file per spec, next to
// baseDstPath with the variant name appended. Sources smaller than the
// bounding box are not upscaled.
func RenderVariants(srcPath, baseDstPath string, specs []VariantSpec) ([]VariantOutput, error) {
	src, err := imaging.Open(srcPath, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}

	srcBounds := src.Bounds()
	sourceWidth := srcBounds.Dx()
	sourceHeight := srcBounds.Dy()

	var results []VariantOutput

	for _, spec := range specs {
		variant := imaging.Fit(src, spec.Width, spec.Height, imaging.Lanczos)

		ext := filepath.Ext(baseDstPath)
		dstPath := fmt.Sprintf("%s_%s%s", baseDstPath[:len(baseDstPath)-len(ext)], spec.Name, ext)

		if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
			return nil, fmt.Errorf("mkdir for %s: %w", spec.Name, err)
		}
		if err := imaging.Save(variant, dstPath); err != nil {
			return nil, fmt.Errorf("save %s: %w", spec.Name, err)
		}

		b := variant.Bounds()
		results = append(results, VariantOutput{
			Name:         spec.Name,
			Path:         dstPath,
			Width:        b.Dx(),
			Height:       b.Dy(),
			SourceWidth:  sourceWidth,
			SourceHeight: sourceHeight,
		})
	}

	return results, nil
}
