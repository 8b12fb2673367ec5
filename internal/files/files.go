package files

import (
	"context"
	"io"
	"time"

	"github.com/pavel-fokin/file-converter/internal/convert"
)

// Category is the storage area an artifact lives in.
type Category string

const (
	Uploaded  Category = "uploaded"
	Converted Category = "converted"
)

// Artifact represents a file tracked by the artifact store
type Artifact struct {
	Name       string    `json:"name"`
	Category   Category  `json:"category"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
}

// SweepResult summarizes one eviction pass.
type SweepResult struct {
	Removed   int   `json:"removed"`
	Failed    int   `json:"failed"`
	Reclaimed int64 `json:"reclaimed_bytes"`
}

// ArtifactStore defines the interface for the two on-disk storage areas
type ArtifactStore interface {
	// Save writes an upload into the incoming area
	Save(name string, content io.Reader) (Artifact, error)

	// Dir returns the directory of a storage area
	Dir(c Category) string

	// Path returns the location of a named artifact
	Path(c Category, name string) (string, error)

	Stat(c Category, name string) (Artifact, error)
	Open(c Category, name string) (io.ReadSeekCloser, Artifact, error)
	Remove(c Category, name string) error

	// Sweep deletes artifacts older than retention from both areas
	Sweep(retention time.Duration) SweepResult
}

// Conversion is one journaled dispatch attempt.
type Conversion struct {
	ID         string    `json:"id"`
	InputName  string    `json:"input_name"`
	Source     string    `json:"source_format"`
	Target     string    `json:"target_format"`
	Backend    string    `json:"backend,omitempty"`
	OutputName string    `json:"output_name,omitempty"`
	Status     string    `json:"status"`
	ErrorKind  string    `json:"error_kind,omitempty"`
	Error      string    `json:"error,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// Conversion statuses.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// ConversionJournal defines the interface for conversion history persistence
type ConversionJournal interface {
	Record(ctx context.Context, c *Conversion) error
	Recent(ctx context.Context, limit int) ([]*Conversion, error)
	PruneBefore(ctx context.Context, t time.Time) (int64, error)
}

// Observer receives storage activity. Conversions are observed by the
// dispatcher itself.
type Observer interface {
	ObserveUpload(size int64)
	ObserveSweep(removed, failed int, reclaimed int64)
}

// Dispatcher runs conversions.
type Dispatcher interface {
	Plan(inputPath, target string) (convert.Plan, error)
	Dispatch(ctx context.Context, inputPath, outputDir, target string) (string, error)
}
