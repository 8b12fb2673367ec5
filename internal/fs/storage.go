package fs

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"

	"github.com/pavel-fokin/file-converter/internal/convert"
	"github.com/pavel-fokin/file-converter/internal/files"
)

// Storage implements files.ArtifactStore on an afero filesystem
type Storage struct {
	fsys    afero.Fs
	dirs    map[files.Category]string
	maxSize int64
	logger  *slog.Logger
	now     func() time.Time
}

// NewStorage creates a new artifact store over the incoming and converted directories
func NewStorage(fsys afero.Fs, incomingDir, convertedDir string, maxSize int64) *Storage {
	return &Storage{
		fsys: fsys,
		dirs: map[files.Category]string{
			files.Uploaded:  absDir(incomingDir),
			files.Converted: absDir(convertedDir),
		},
		maxSize: maxSize,
		logger:  slog.Default(),
		now:     time.Now,
	}
}

func absDir(dir string) string {
	if abs, err := filepath.Abs(dir); err == nil {
		return abs
	}
	return filepath.Clean(dir)
}

// Init creates both storage areas
func (s *Storage) Init() error {
	for _, dir := range s.dirs {
		if err := s.fsys.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create storage directory: %w", err)
		}
	}
	return nil
}

func (s *Storage) Dir(c files.Category) string {
	return s.dirs[c]
}

// Path returns the absolute location of name in area c
func (s *Storage) Path(c files.Category, name string) (string, error) {
	dir, ok := s.dirs[c]
	if !ok {
		return "", fmt.Errorf("unknown storage area %q", c)
	}
	if !files.IsBareName(name) {
		return "", &convert.ValidationError{Field: "filename", Message: "must be a plain file name"}
	}
	return filepath.Join(dir, name), nil
}

// Save stores an upload in the incoming area. Content beyond the size cap
// aborts the write and removes the partial file.
func (s *Storage) Save(name string, content io.Reader) (files.Artifact, error) {
	path, err := s.Path(files.Uploaded, name)
	if err != nil {
		return files.Artifact{}, err
	}

	// Create directory if it doesn't exist
	if err := s.fsys.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return files.Artifact{}, fmt.Errorf("failed to create incoming directory: %w", err)
	}

	file, err := s.fsys.Create(path)
	if err != nil {
		return files.Artifact{}, fmt.Errorf("failed to create file: %w", err)
	}

	size, err := io.Copy(file, io.LimitReader(content, s.maxSize+1))
	closeErr := file.Close()
	switch {
	case err != nil:
		s.fsys.Remove(path)
		return files.Artifact{}, fmt.Errorf("failed to write file content: %w", err)
	case size > s.maxSize:
		s.fsys.Remove(path)
		return files.Artifact{}, fmt.Errorf("upload exceeds %s: %w", humanize.IBytes(uint64(s.maxSize)), convert.ErrTooLarge)
	case closeErr != nil:
		s.fsys.Remove(path)
		return files.Artifact{}, fmt.Errorf("failed to close file: %w", closeErr)
	}

	return s.Stat(files.Uploaded, name)
}

// Stat returns the metadata of an artifact
func (s *Storage) Stat(c files.Category, name string) (files.Artifact, error) {
	path, err := s.Path(c, name)
	if err != nil {
		return files.Artifact{}, err
	}

	info, err := s.fsys.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return files.Artifact{}, &convert.NotFoundError{Name: name}
		}
		return files.Artifact{}, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		return files.Artifact{}, &convert.NotFoundError{Name: name}
	}
	return artifact(c, info), nil
}

// Open returns a reader for the artifact content
func (s *Storage) Open(c files.Category, name string) (io.ReadSeekCloser, files.Artifact, error) {
	a, err := s.Stat(c, name)
	if err != nil {
		return nil, files.Artifact{}, err
	}

	path, _ := s.Path(c, name)
	f, err := s.fsys.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, files.Artifact{}, &convert.NotFoundError{Name: name}
		}
		return nil, files.Artifact{}, fmt.Errorf("failed to open file: %w", err)
	}
	return f, a, nil
}

// Remove deletes an artifact. A missing artifact is not an error.
func (s *Storage) Remove(c files.Category, name string) error {
	path, err := s.Path(c, name)
	if err != nil {
		return err
	}
	if err := s.fsys.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// Sweep removes entries of both areas whose modification time is older than
// retention. A failed deletion is logged and the sweep carries on.
func (s *Storage) Sweep(retention time.Duration) files.SweepResult {
	var result files.SweepResult
	cutoff := s.now().Add(-retention)

	for _, c := range []files.Category{files.Uploaded, files.Converted} {
		dir := s.dirs[c]
		entries, err := afero.ReadDir(s.fsys, dir)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				s.logger.Error("Failed to list storage area", "area", string(c), "error", err)
			}
			continue
		}

		for _, info := range entries {
			if !info.ModTime().Before(cutoff) {
				continue
			}

			path := filepath.Join(dir, info.Name())
			remove := s.fsys.Remove
			if info.IsDir() {
				remove = s.fsys.RemoveAll
			}
			if err := remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
				result.Failed++
				s.logger.Error("Failed to remove expired file", "area", string(c), "name", info.Name(), "error", err)
				continue
			}

			result.Removed++
			result.Reclaimed += info.Size()
			s.logger.Info("Removed expired file",
				"area", string(c),
				"name", info.Name(),
				"size", humanize.IBytes(uint64(info.Size())),
				"age", s.now().Sub(info.ModTime()).Round(time.Second).String(),
			)
		}
	}
	return result
}

func artifact(c files.Category, info os.FileInfo) files.Artifact {
	return files.Artifact{
		Name:       info.Name(),
		Category:   c,
		Size:       info.Size(),
		ModifiedAt: info.ModTime(),
	}
}
