package backend

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/jung-kurt/gofpdf"
	_ "golang.org/x/image/webp"

	"github.com/pavel-fokin/file-converter/internal/command"
	"github.com/pavel-fokin/file-converter/internal/format"
)

// Targets that cannot carry transparency.
var opaqueTargets = format.NewSet(format.JPG, format.JPEG, format.BMP)

func decodeImage(path string) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// flatten composites img onto an opaque white canvas.
func flatten(img image.Image) *image.NRGBA {
	b := img.Bounds()
	canvas := imaging.New(b.Dx(), b.Dy(), color.White)
	return imaging.Overlay(canvas, img, image.Pt(0, 0), 1.0)
}

// ImageWriter encodes images in process. WebP has no encoder in the image
// stack, so it goes through ffmpeg from an intermediate PNG.
type ImageWriter struct {
	ffmpeg string
	runner command.Runner
}

func NewImageWriter(runner command.Runner, ffmpeg string) ImageWriter {
	return ImageWriter{ffmpeg: ffmpeg, runner: runner}
}

func (w ImageWriter) write(ctx context.Context, img image.Image, path string, target format.Format) error {
	if opaqueTargets.Has(target) {
		img = flatten(img)
	}
	if target == format.WEBP {
		return w.writeWebP(ctx, img, path)
	}

	if err := imaging.Save(img, path, imaging.JPEGQuality(92)); err != nil {
		os.Remove(path)
		return fmt.Errorf("failed to encode %s: %w", target, err)
	}
	return nil
}

func (w ImageWriter) writeWebP(ctx context.Context, img image.Image, path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".webp-src-*.png")
	if err != nil {
		return fmt.Errorf("failed to create intermediate file: %w", err)
	}
	tmp.Close()
	defer os.Remove(tmp.Name())

	if err := imaging.Save(img, tmp.Name()); err != nil {
		return fmt.Errorf("failed to encode intermediate png: %w", err)
	}
	if _, err := w.runner.Run(ctx, w.ffmpeg, "-y", "-loglevel", "error", "-i", tmp.Name(), path); err != nil {
		os.Remove(path)
		return err
	}
	return expectOutput(path)
}

// writeImagePDF stores img as a single PDF page of width x height points.
func writeImagePDF(img image.Image, path string, width, height float64) error {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, flatten(img), imaging.PNG); err != nil {
		return fmt.Errorf("failed to encode page image: %w", err)
	}

	size := gofpdf.SizeType{Wd: width, Ht: height}
	pdf := gofpdf.NewCustom(&gofpdf.InitType{UnitStr: "pt", Size: size})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPageFormat("P", size)

	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	if info := pdf.RegisterImageOptionsReader("page", opts, &buf); info == nil {
		return fmt.Errorf("failed to register page image: %w", pdf.Error())
	}
	pdf.ImageOptions("page", 0, 0, width, height, false, opts, 0, "")

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("failed to build pdf: %w", err)
	}
	if err := pdf.OutputFileAndClose(path); err != nil {
		os.Remove(path)
		return fmt.Errorf("failed to write pdf: %w", err)
	}
	return nil
}
