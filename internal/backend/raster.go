package backend

import (
	"context"

	"github.com/pavel-fokin/file-converter/internal/convert"
	"github.com/pavel-fokin/file-converter/internal/format"
	"github.com/pavel-fokin/file-converter/internal/registry"
)

// ImageToImage re-encodes raster images.
type ImageToImage struct {
	images ImageWriter
}

func NewImageToImage(images ImageWriter) *ImageToImage {
	return &ImageToImage{images: images}
}

func (b *ImageToImage) Name() string { return registry.ImageToImage }

func (b *ImageToImage) Convert(ctx context.Context, inputPath, outputDir string, target format.Format) (string, error) {
	img, err := decodeImage(inputPath)
	if err != nil {
		return "", convert.NewBackendError(b.Name(), err)
	}

	output := outputPath(outputDir, inputPath, target)
	if err := b.images.write(ctx, img, output, target); err != nil {
		return "", convert.NewBackendError(b.Name(), err)
	}
	return output, nil
}

// ImageToPDF embeds a raster image as a single PDF page, one point per pixel.
type ImageToPDF struct{}

func NewImageToPDF() *ImageToPDF { return &ImageToPDF{} }

func (b *ImageToPDF) Name() string { return registry.ImageToPDF }

func (b *ImageToPDF) Convert(ctx context.Context, inputPath, outputDir string, target format.Format) (string, error) {
	img, err := decodeImage(inputPath)
	if err != nil {
		return "", convert.NewBackendError(b.Name(), err)
	}

	size := img.Bounds().Size()
	output := outputPath(outputDir, inputPath, format.PDF)
	if err := writeImagePDF(img, output, float64(size.X), float64(size.Y)); err != nil {
		return "", convert.NewBackendError(b.Name(), err)
	}
	return output, nil
}
