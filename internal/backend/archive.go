package backend

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pavel-fokin/file-converter/internal/convert"
	"github.com/pavel-fokin/file-converter/internal/format"
	"github.com/pavel-fokin/file-converter/internal/registry"
)

// Archive repacks zip and tar.gz archives through a private temporary
// directory inside the output area. The directory is always removed.
type Archive struct{}

func NewArchive() *Archive { return &Archive{} }

func (b *Archive) Name() string { return registry.ArchiveRepack }

func (b *Archive) Convert(ctx context.Context, inputPath, outputDir string, target format.Format) (string, error) {
	base := format.BaseName(inputPath)
	staging, err := os.MkdirTemp(outputDir, "repack-"+base+"-*")
	if err != nil {
		return "", convert.NewBackendError(b.Name(), fmt.Errorf("failed to create staging dir: %w", err))
	}
	defer os.RemoveAll(staging)

	switch source := format.FromFilename(inputPath); source {
	case format.ZIP:
		err = extractZip(ctx, inputPath, staging)
	case format.TarGz:
		err = extractTarGz(ctx, inputPath, staging)
	default:
		err = fmt.Errorf("cannot extract %s", source)
	}
	if err != nil {
		return "", convert.NewBackendError(b.Name(), err)
	}

	output := outputPath(outputDir, inputPath, target)
	switch target {
	case format.ZIP:
		err = zipDir(ctx, output, staging)
	case format.TarGz:
		err = tarGzDir(ctx, output, staging)
	default:
		err = fmt.Errorf("cannot pack %s", target)
	}
	if err != nil {
		os.Remove(output)
		return "", convert.NewBackendError(b.Name(), err)
	}
	return output, nil
}

// safeJoin resolves an archive entry name under root and rejects names that
// would escape it.
func safeJoin(root, name string) (string, error) {
	root = filepath.Clean(root)
	path := filepath.Join(root, filepath.FromSlash(name))
	if path != root && !strings.HasPrefix(path, root+string(os.PathSeparator)) {
		return "", fmt.Errorf("archive entry %q escapes the extraction directory", name)
	}
	return path, nil
}

func writeEntry(path string, r io.Reader, mode fs.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode.Perm()|0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func extractZip(ctx context.Context, src, dst string) error {
	zr, err := zip.OpenReader(src)
	if err != nil {
		return fmt.Errorf("failed to open zip: %w", err)
	}
	defer zr.Close()

	for _, entry := range zr.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		path, err := safeJoin(dst, entry.Name)
		if err != nil {
			return err
		}
		if entry.FileInfo().IsDir() {
			if err := os.MkdirAll(path, 0o755); err != nil {
				return err
			}
			continue
		}
		if !entry.Mode().IsRegular() {
			continue
		}

		rc, err := entry.Open()
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", entry.Name, err)
		}
		err = writeEntry(path, rc, entry.Mode())
		rc.Close()
		if err != nil {
			return fmt.Errorf("failed to extract %s: %w", entry.Name, err)
		}
	}
	return nil
}

func extractTarGz(ctx context.Context, src, dst string) error {
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("failed to open gzip stream: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read tar entry: %w", err)
		}

		path, err := safeJoin(dst, hdr.Name)
		if err != nil {
			return err
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(path, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := writeEntry(path, tr, hdr.FileInfo().Mode()); err != nil {
				return fmt.Errorf("failed to extract %s: %w", hdr.Name, err)
			}
		}
		// Links and special files are skipped.
	}
}

// zipFiles bundles files into dst by their base names.
func zipFiles(dst string, files []string) error {
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create zip: %w", err)
	}
	zw := zip.NewWriter(out)

	for _, file := range files {
		if err := addZipFile(zw, file, filepath.Base(file)); err != nil {
			zw.Close()
			out.Close()
			return err
		}
	}
	if err := zw.Close(); err != nil {
		out.Close()
		return fmt.Errorf("failed to finish zip: %w", err)
	}
	return out.Close()
}

func addZipFile(zw *zip.Writer, path, name string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	hdr.Name = name
	hdr.Method = zip.Deflate

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}

// zipDir writes the contents of dir to dst with entries relative to dir.
func zipDir(ctx context.Context, dst, dir string) error {
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create zip: %w", err)
	}
	zw := zip.NewWriter(out)

	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path == dir {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		if d.IsDir() {
			_, err := zw.Create(name + "/")
			return err
		}
		return addZipFile(zw, path, name)
	})
	if walkErr != nil {
		zw.Close()
		out.Close()
		return fmt.Errorf("failed to write zip: %w", walkErr)
	}
	if err := zw.Close(); err != nil {
		out.Close()
		return fmt.Errorf("failed to finish zip: %w", err)
	}
	return out.Close()
}

// tarGzDir writes the contents of dir to dst with entries relative to dir.
func tarGzDir(ctx context.Context, dst, dir string) error {
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	gz := gzip.NewWriter(out)
	tw := tar.NewWriter(gz)

	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path == dir {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		if d.IsDir() {
			hdr.Name += "/"
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})

	closeErr := tw.Close()
	if err := gz.Close(); closeErr == nil {
		closeErr = err
	}
	if err := out.Close(); closeErr == nil {
		closeErr = err
	}
	if walkErr != nil {
		return fmt.Errorf("failed to write archive: %w", walkErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to finish archive: %w", closeErr)
	}
	return nil
}
