package backend

import (
	"context"
	"fmt"
	"image"
	"math"
	"os"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"

	"github.com/pavel-fokin/file-converter/internal/convert"
	"github.com/pavel-fokin/file-converter/internal/format"
	"github.com/pavel-fokin/file-converter/internal/registry"
)

// Canvas size used when an SVG declares no usable viewBox.
const defaultSVGSize = 512

type svgRaster struct {
	img    *image.RGBA
	width  float64
	height float64
}

func rasterizeSVG(path string) (svgRaster, error) {
	f, err := os.Open(path)
	if err != nil {
		return svgRaster{}, fmt.Errorf("failed to open svg: %w", err)
	}
	defer f.Close()

	icon, err := oksvg.ReadIconStream(f, oksvg.WarnErrorMode)
	if err != nil {
		return svgRaster{}, fmt.Errorf("failed to parse svg: %w", err)
	}

	w, h := icon.ViewBox.W, icon.ViewBox.H
	if w <= 0 || h <= 0 {
		w, h = defaultSVGSize, defaultSVGSize
	}
	pw, ph := int(math.Ceil(w)), int(math.Ceil(h))

	icon.SetTarget(0, 0, float64(pw), float64(ph))
	img := image.NewRGBA(image.Rect(0, 0, pw, ph))
	scanner := rasterx.NewScannerGV(pw, ph, img, img.Bounds())
	icon.Draw(rasterx.NewDasher(pw, ph, scanner), 1)

	return svgRaster{img: img, width: w, height: h}, nil
}

// VectorToRaster renders SVG documents to raster images.
type VectorToRaster struct {
	images ImageWriter
}

func NewVectorToRaster(images ImageWriter) *VectorToRaster {
	return &VectorToRaster{images: images}
}

func (b *VectorToRaster) Name() string { return registry.VectorToRaster }

func (b *VectorToRaster) Convert(ctx context.Context, inputPath, outputDir string, target format.Format) (string, error) {
	r, err := rasterizeSVG(inputPath)
	if err != nil {
		return "", convert.NewBackendError(b.Name(), err)
	}

	output := outputPath(outputDir, inputPath, target)
	if err := b.images.write(ctx, r.img, output, target); err != nil {
		return "", convert.NewBackendError(b.Name(), err)
	}
	return output, nil
}

// VectorToPDF renders an SVG onto one PDF page sized to its viewBox.
type VectorToPDF struct{}

func NewVectorToPDF() *VectorToPDF { return &VectorToPDF{} }

func (b *VectorToPDF) Name() string { return registry.VectorToPDF }

func (b *VectorToPDF) Convert(ctx context.Context, inputPath, outputDir string, target format.Format) (string, error) {
	r, err := rasterizeSVG(inputPath)
	if err != nil {
		return "", convert.NewBackendError(b.Name(), err)
	}

	output := outputPath(outputDir, inputPath, format.PDF)
	if err := writeImagePDF(r.img, output, r.width, r.height); err != nil {
		return "", convert.NewBackendError(b.Name(), err)
	}
	return output, nil
}
