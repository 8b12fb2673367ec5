package backend

import (
	"context"

	"github.com/pavel-fokin/file-converter/internal/convert"
	"github.com/pavel-fokin/file-converter/internal/format"
	"github.com/pavel-fokin/file-converter/internal/registry"
)

// Sources that already are plain text and only need a new name.
var textual = format.NewSet(format.TXT, format.CSV, format.JSON, format.SVG, format.HTML, format.HTM, format.MD)

// Text produces plain text. Textual sources are copied, everything else is
// exported by the office suite.
type Text struct {
	office *Office
}

func NewText(office *Office) *Text {
	return &Text{office: office}
}

func (t *Text) Name() string { return registry.TextExtraction }

func (t *Text) Convert(ctx context.Context, inputPath, outputDir string, target format.Format) (string, error) {
	if !textual.Has(format.FromFilename(inputPath)) {
		return t.office.Convert(ctx, inputPath, outputDir, format.TXT)
	}

	output := outputPath(outputDir, inputPath, format.TXT)
	if err := copyFile(inputPath, output); err != nil {
		return "", convert.NewBackendError(t.Name(), err)
	}
	return output, nil
}
