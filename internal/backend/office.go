package backend

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/pavel-fokin/file-converter/internal/command"
	"github.com/pavel-fokin/file-converter/internal/convert"
	"github.com/pavel-fokin/file-converter/internal/format"
	"github.com/pavel-fokin/file-converter/internal/registry"
)

// textFilter makes LibreOffice emit plain text instead of a rich export.
const textFilter = "txt:Text"

// Office converts documents with a headless LibreOffice.
type Office struct {
	bin    string
	runner command.Runner
}

func NewOffice(runner command.Runner, bin string) *Office {
	return &Office{bin: bin, runner: runner}
}

func (o *Office) Name() string { return registry.OfficeSuite }

func (o *Office) Convert(ctx context.Context, inputPath, outputDir string, target format.Format) (string, error) {
	// A private profile per call keeps parallel conversions off one profile lock.
	profile, err := os.MkdirTemp("", "converter-office-profile-*")
	if err != nil {
		return "", convert.NewBackendError(o.Name(), fmt.Errorf("failed to create profile dir: %w", err))
	}
	defer os.RemoveAll(profile)

	filter := string(target)
	if target == format.TXT {
		filter = textFilter
	}

	args := []string{
		"-env:UserInstallation=" + profileURL(profile),
		"--headless",
		"--convert-to", filter,
		"--outdir", outputDir,
		inputPath,
	}
	if _, err := o.runner.Run(ctx, o.bin, args...); err != nil {
		return "", convert.NewBackendError(o.Name(), err)
	}

	output := outputPath(outputDir, inputPath, target)
	if err := expectOutput(output); err != nil {
		return "", convert.NewBackendError(o.Name(), err)
	}
	return output, nil
}

func profileURL(dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = dir
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	return u.String()
}
