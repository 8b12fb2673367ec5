// Package backend holds the conversion adapters the dispatcher routes to. Each
// adapter implements convert.Backend for one registry backend name.
package backend

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pavel-fokin/file-converter/internal/command"
	"github.com/pavel-fokin/file-converter/internal/convert"
	"github.com/pavel-fokin/file-converter/internal/format"
)

// Tools names the external executables the adapters run.
type Tools struct {
	LibreOffice string
	FFmpeg      string
	PDFToCairo  string
	PDFInfo     string
}

// DefaultTools resolves every tool from PATH.
func DefaultTools() Tools {
	return Tools{
		LibreOffice: "libreoffice",
		FFmpeg:      "ffmpeg",
		PDFToCairo:  "pdftocairo",
		PDFInfo:     "pdfinfo",
	}
}

// All returns one adapter for every backend name in registry.Default.
func All(runner command.Runner, tools Tools) []convert.Backend {
	office := NewOffice(runner, tools.LibreOffice)
	images := NewImageWriter(runner, tools.FFmpeg)

	return []convert.Backend{
		office,
		NewText(office),
		NewImageToImage(images),
		NewImageToPDF(),
		NewVectorToRaster(images),
		NewVectorToPDF(),
		NewPDFRasterize(NewPoppler(runner, tools.PDFToCairo, tools.PDFInfo), images),
		NewTabularToCSV(),
		NewCSVToTabular(),
		NewAudio(runner, tools.FFmpeg),
		NewVideo(runner, tools.FFmpeg),
		NewGIFToVideo(runner, tools.FFmpeg),
		NewArchive(),
	}
}

// outputPath names the artifact produced for inputPath: <base>.<target>.
func outputPath(outputDir, inputPath string, target format.Format) string {
	return filepath.Join(outputDir, format.BaseName(inputPath)+"."+string(target))
}

// expectOutput fails when a tool reported success without writing path.
func expectOutput(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("expected output %s was not produced: %w", filepath.Base(path), err)
	}
	if info.IsDir() {
		return fmt.Errorf("expected output %s is a directory", filepath.Base(path))
	}
	return nil
}

func copyFile(src, dst string) error {
	if sameFile(src, dst) {
		return fmt.Errorf("output %s would overwrite the input", filepath.Base(dst))
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("failed to copy content: %w", err)
	}
	return out.Close()
}

func sameFile(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	return errA == nil && errB == nil && absA == absB
}
