package files

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"path/filepath"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/pavel-fokin/file-converter/internal/convert"
	"github.com/pavel-fokin/file-converter/internal/format"
)

const (
	DefaultRecentLimit = 50
	MaxRecentLimit     = 500
)

// Service orchestrates uploads, conversions and downloads over the artifact
// store and the dispatcher.
type Service struct {
	store      ArtifactStore
	journal    ConversionJournal
	dispatcher Dispatcher
	matrix     *format.Matrix
	retention  time.Duration
	logger     *slog.Logger
	observer   Observer
	now        func() time.Time
}

// NewService creates a new conversion service. journal may be nil.
func NewService(store ArtifactStore, journal ConversionJournal, dispatcher Dispatcher, matrix *format.Matrix, retention time.Duration) *Service {
	return &Service{
		store:      store,
		journal:    journal,
		dispatcher: dispatcher,
		matrix:     matrix,
		retention:  retention,
		logger:     slog.Default(),
		now:        time.Now,
	}
}

// SetLogger replaces the default logger.
func (s *Service) SetLogger(logger *slog.Logger) {
	s.logger = logger
}

// SetObserver attaches an observer for uploads and sweeps.
func (s *Service) SetObserver(o Observer) {
	s.observer = o
}

// UploadRequest represents a file upload request
type UploadRequest struct {
	Name    string
	Content io.Reader
}

// UploadResult represents the result of a file upload
type UploadResult struct {
	Filename         string          `json:"filename"`
	Size             int64           `json:"size"`
	SupportedFormats []format.Format `json:"supported_formats"`
}

// Upload stores a file and returns the formats it can be converted to.
// Expired artifacts are swept first.
func (s *Service) Upload(ctx context.Context, req *UploadRequest) (*UploadResult, error) {
	s.Sweep(ctx)

	name := SanitizeFilename(req.Name)
	if name == "" {
		return nil, &convert.ValidationError{Field: "file", Message: "no file name"}
	}

	artifact, err := s.store.Save(name, req.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to save upload: %w", err)
	}
	if s.observer != nil {
		s.observer.ObserveUpload(artifact.Size)
	}
	s.logger.Info("File uploaded", "filename", artifact.Name, "size", artifact.Size)

	return &UploadResult{
		Filename:         artifact.Name,
		Size:             artifact.Size,
		SupportedFormats: s.matrix.LegalTargets(format.FromFilename(name)),
	}, nil
}

// ConvertRequest represents a conversion request
type ConvertRequest struct {
	Filename string `json:"filename"`
	Format   string `json:"format"`
}

func (r ConvertRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Filename, validation.Required, validation.By(bareName)),
		validation.Field(&r.Format, validation.Required),
	)
}

func bareName(value interface{}) error {
	if name, _ := value.(string); name != "" && !IsBareName(name) {
		return validation.NewError("validation_bare_name", "must be a plain file name")
	}
	return nil
}

// ConvertResult represents the result of a conversion
type ConvertResult struct {
	Filename    string `json:"filename"`
	DownloadURL string `json:"download_url"`
}

// Convert converts an uploaded file. The upload is removed once the output
// exists.
func (s *Service) Convert(ctx context.Context, req *ConvertRequest) (*ConvertResult, error) {
	if err := req.Validate(); err != nil {
		return nil, &convert.ValidationError{Message: err.Error()}
	}

	// The upload may have been swept since it was stored
	if _, err := s.store.Stat(Uploaded, req.Filename); err != nil {
		return nil, err
	}
	input, err := s.store.Path(Uploaded, req.Filename)
	if err != nil {
		return nil, err
	}

	plan, _ := s.dispatcher.Plan(input, req.Format)
	entry := &Conversion{
		ID:        uuid.NewString(),
		InputName: req.Filename,
		Source:    string(plan.Source),
		Target:    string(plan.Target),
		Backend:   plan.Backend,
		CreatedAt: s.now().UTC(),
	}

	// A conversion and its journal entry complete even if the caller goes
	// away. The dispatcher timeout still applies.
	ctx = context.WithoutCancel(ctx)

	start := time.Now()
	output, err := s.dispatcher.Dispatch(ctx, input, s.store.Dir(Converted), req.Format)
	entry.DurationMS = time.Since(start).Milliseconds()
	if err != nil {
		entry.Status = StatusFailed
		entry.ErrorKind = string(convert.KindOf(err))
		entry.Error = publicMessage(err)
		if convert.KindOf(err) == convert.KindInternal {
			s.logger.Error("Conversion failed", "id", entry.ID, "filename", req.Filename, "error", err)
		}
		s.record(ctx, entry)
		return nil, err
	}

	name := filepath.Base(output)
	entry.Status = StatusSucceeded
	entry.OutputName = name
	s.record(ctx, entry)

	if err := s.store.Remove(Uploaded, req.Filename); err != nil {
		s.logger.Warn("Failed to remove converted upload", "filename", req.Filename, "error", err)
	}

	return &ConvertResult{
		Filename:    name,
		DownloadURL: "/download/" + url.PathEscape(name),
	}, nil
}

// publicMessage is the error text safe to show to any caller. Backend and
// internal causes carry tool output and server paths, so they are reduced to
// their kind.
func publicMessage(err error) string {
	switch convert.KindOf(err) {
	case convert.KindBackend:
		return "conversion failed"
	case convert.KindInternal:
		return "internal error"
	default:
		return err.Error()
	}
}

func (s *Service) record(ctx context.Context, entry *Conversion) {
	if s.journal == nil {
		return
	}
	if err := s.journal.Record(ctx, entry); err != nil {
		s.logger.Error("Failed to journal conversion", "id", entry.ID, "error", err)
	}
}

// Download opens a converted artifact. Names with a directory part are
// reported as missing.
func (s *Service) Download(ctx context.Context, filename string) (io.ReadSeekCloser, Artifact, error) {
	if !IsBareName(filename) {
		return nil, Artifact{}, &convert.NotFoundError{Name: filename}
	}
	return s.store.Open(Converted, filename)
}

// SupportedFormats returns the legal targets of a format token or file name.
func (s *Service) SupportedFormats(f string) []format.Format {
	return s.matrix.LegalTargets(format.Normalize(f))
}

// Sweep evicts expired artifacts and journal entries.
func (s *Service) Sweep(ctx context.Context) SweepResult {
	result := s.store.Sweep(s.retention)
	if result.Removed > 0 || result.Failed > 0 {
		s.logger.Info("Sweep finished", "removed", result.Removed, "failed", result.Failed, "reclaimed_bytes", result.Reclaimed)
	}
	if s.observer != nil {
		s.observer.ObserveSweep(result.Removed, result.Failed, result.Reclaimed)
	}

	if s.journal != nil {
		if _, err := s.journal.PruneBefore(ctx, s.now().Add(-s.retention)); err != nil {
			s.logger.Error("Failed to prune conversion journal", "error", err)
		}
	}
	return result
}

// RecentConversions lists journaled conversions, newest first.
func (s *Service) RecentConversions(ctx context.Context, limit int) ([]*Conversion, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	if limit > MaxRecentLimit {
		limit = MaxRecentLimit
	}
	if s.journal == nil {
		return []*Conversion{}, nil
	}

	conversions, err := s.journal.Recent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversions: %w", err)
	}
	return conversions, nil
}
