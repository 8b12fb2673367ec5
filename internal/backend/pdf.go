package backend

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/pavel-fokin/file-converter/internal/command"
	"github.com/pavel-fokin/file-converter/internal/convert"
	"github.com/pavel-fokin/file-converter/internal/format"
	"github.com/pavel-fokin/file-converter/internal/registry"
)

// PDFPages counts and renders the pages of a PDF document.
type PDFPages interface {
	PageCount(ctx context.Context, path string) (int, error)
	// RenderPage writes page (1-based) of path to out in the given format.
	RenderPage(ctx context.Context, path string, page int, target format.Format, out string) error
}

// Formats pdftocairo writes directly.
var cairoFlags = map[format.Format]string{
	format.PNG:  "-png",
	format.JPG:  "-jpeg",
	format.JPEG: "-jpeg",
	format.TIFF: "-tiff",
	format.SVG:  "-svg",
}

// Extensions pdftocairo appends to the -singlefile output root.
var cairoExt = map[format.Format]string{
	format.PNG:  ".png",
	format.JPG:  ".jpg",
	format.JPEG: ".jpg",
	format.TIFF: ".tif",
}

// Poppler renders PDF pages with the poppler command line tools.
type Poppler struct {
	pdftocairo string
	pdfinfo    string
	runner     command.Runner
}

func NewPoppler(runner command.Runner, pdftocairo, pdfinfo string) *Poppler {
	return &Poppler{pdftocairo: pdftocairo, pdfinfo: pdfinfo, runner: runner}
}

func (p *Poppler) PageCount(ctx context.Context, path string) (int, error) {
	res, err := p.runner.Run(ctx, p.pdfinfo, path)
	if err != nil {
		return 0, err
	}

	scanner := bufio.NewScanner(strings.NewReader(res.Stdout))
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), ":")
		if !ok || strings.TrimSpace(key) != "Pages" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return 0, fmt.Errorf("invalid page count %q: %w", strings.TrimSpace(value), err)
		}
		return n, nil
	}
	return 0, errors.New("pdfinfo did not report a page count")
}

func (p *Poppler) RenderPage(ctx context.Context, path string, page int, target format.Format, out string) error {
	flag, ok := cairoFlags[target]
	if !ok {
		return fmt.Errorf("pdftocairo cannot render %s", target)
	}

	n := strconv.Itoa(page)
	args := []string{flag, "-f", n, "-l", n}
	if target == format.SVG {
		args = append(args, path, out)
		_, err := p.runner.Run(ctx, p.pdftocairo, args...)
		return err
	}

	root := strings.TrimSuffix(out, filepath.Ext(out))
	args = append(args, "-singlefile", path, root)
	if _, err := p.runner.Run(ctx, p.pdftocairo, args...); err != nil {
		return err
	}

	if written := root + cairoExt[target]; written != out {
		if err := os.Rename(written, out); err != nil {
			return fmt.Errorf("failed to rename rendered page: %w", err)
		}
	}
	return nil
}

// PDFRasterize renders every page of a PDF. A single page is returned as is;
// several pages are bundled into <base>_images.zip and the loose pages removed.
type PDFRasterize struct {
	pages  PDFPages
	images ImageWriter
	limit  int
}

func NewPDFRasterize(pages PDFPages, images ImageWriter) *PDFRasterize {
	return &PDFRasterize{pages: pages, images: images, limit: runtime.NumCPU()}
}

func (b *PDFRasterize) Name() string { return registry.PDFRasterize }

func (b *PDFRasterize) Convert(ctx context.Context, inputPath, outputDir string, target format.Format) (string, error) {
	count, err := b.pages.PageCount(ctx, inputPath)
	if err != nil {
		return "", convert.NewBackendError(b.Name(), err)
	}
	if count < 1 {
		return "", convert.NewBackendError(b.Name(), errors.New("document has no pages"))
	}

	base := format.BaseName(inputPath)
	pages := make([]string, count)
	for i := range pages {
		pages[i] = filepath.Join(outputDir, fmt.Sprintf("%s_page_%d.%s", base, i+1, target))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.limit)
	for i, page := range pages {
		g.Go(func() error {
			return b.renderPage(gctx, inputPath, i+1, page, target)
		})
	}
	if err := g.Wait(); err != nil {
		removeFiles(pages...)
		return "", convert.NewBackendError(b.Name(), err)
	}

	if count == 1 {
		return pages[0], nil
	}

	bundle := filepath.Join(outputDir, base+"_images.zip")
	if err := zipFiles(bundle, pages); err != nil {
		removeFiles(append(pages, bundle)...)
		return "", convert.NewBackendError(b.Name(), err)
	}
	if err := removeFiles(pages...); err != nil {
		return "", convert.NewBackendError(b.Name(), fmt.Errorf("failed to remove bundled pages: %w", err))
	}
	return bundle, nil
}

func (b *PDFRasterize) renderPage(ctx context.Context, inputPath string, page int, out string, target format.Format) error {
	if _, native := cairoFlags[target]; native {
		if err := b.pages.RenderPage(ctx, inputPath, page, target, out); err != nil {
			return fmt.Errorf("page %d: %w", page, err)
		}
		return expectOutput(out)
	}

	// Formats pdftocairo cannot write are rendered to png and re-encoded.
	intermediate := strings.TrimSuffix(out, filepath.Ext(out)) + ".render.png"
	defer os.Remove(intermediate)

	if err := b.pages.RenderPage(ctx, inputPath, page, format.PNG, intermediate); err != nil {
		return fmt.Errorf("page %d: %w", page, err)
	}
	img, err := decodeImage(intermediate)
	if err != nil {
		return fmt.Errorf("page %d: %w", page, err)
	}
	return b.images.write(ctx, img, out, target)
}

// removeFiles removes every path, ignoring ones already gone.
func removeFiles(paths ...string) error {
	var errs []error
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
