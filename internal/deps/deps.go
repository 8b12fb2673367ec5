// Package deps reports whether the external converters are installed.
package deps

import (
	"os/exec"

	"github.com/pavel-fokin/file-converter/internal/backend"
	"github.com/pavel-fokin/file-converter/internal/registry"
)

// Result is the availability of one executable.
type Result struct {
	Name     string
	Binary   string
	Path     string
	Passed   bool
	Detail   string
	Backends []string
}

// LookPath resolves an executable name. exec.LookPath in production.
type LookPath func(file string) (string, error)

// Check resolves every tool the backends run.
func Check(tools backend.Tools, lookPath LookPath) []Result {
	if lookPath == nil {
		lookPath = exec.LookPath
	}

	checks := []struct {
		name     string
		binary   string
		backends []string
	}{
		{"LibreOffice", tools.LibreOffice, []string{registry.OfficeSuite, registry.TextExtraction}},
		{"FFmpeg", tools.FFmpeg, []string{registry.Audio, registry.Video, registry.GIFToVideo, registry.ImageToImage}},
		{"pdftocairo", tools.PDFToCairo, []string{registry.PDFRasterize}},
		{"pdfinfo", tools.PDFInfo, []string{registry.PDFRasterize}},
	}

	results := make([]Result, 0, len(checks))
	for _, c := range checks {
		r := Result{Name: c.name, Binary: c.binary, Backends: c.backends}
		path, err := lookPath(c.binary)
		if err != nil {
			r.Detail = "Not found"
		} else {
			r.Path = path
			r.Passed = true
			r.Detail = "OK"
		}
		results = append(results, r)
	}
	return results
}

// AllPassed reports whether every check passed.
func AllPassed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}
