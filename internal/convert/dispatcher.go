package convert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/pavel-fokin/file-converter/internal/format"
	"github.com/pavel-fokin/file-converter/internal/registry"
)

// Backend performs one class of conversion. Implementations write exactly one
// new file (or one archive bundling several) under outputDir, return its path,
// and never delete the input.
type Backend interface {
	Name() string
	Convert(ctx context.Context, inputPath, outputDir string, target format.Format) (string, error)
}

// Observer receives the outcome of each dispatch.
type Observer interface {
	ObserveConversion(backend, source, target, outcome string, elapsed time.Duration)
}

// Plan is the routing decision for one conversion.
type Plan struct {
	Source  format.Format
	Target  format.Format
	Backend string
}

// Dispatcher routes conversions to backends through a registry.
type Dispatcher struct {
	registry *registry.Registry
	backends map[string]Backend
	logger   *slog.Logger
	observer Observer
	timeout  time.Duration
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = logger }
}

func WithObserver(o Observer) Option {
	return func(d *Dispatcher) { d.observer = o }
}

// WithTimeout bounds each backend invocation. Zero disables the bound.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) { d.timeout = timeout }
}

// NewDispatcher wires backends to the registry. Every backend the registry
// names must be provided exactly once.
func NewDispatcher(reg *registry.Registry, backends []Backend, opts ...Option) (*Dispatcher, error) {
	d := &Dispatcher{
		registry: reg,
		backends: make(map[string]Backend, len(backends)),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}

	for _, b := range backends {
		if _, dup := d.backends[b.Name()]; dup {
			return nil, fmt.Errorf("duplicate backend %q", b.Name())
		}
		d.backends[b.Name()] = b
	}
	for _, name := range reg.Backends() {
		if _, ok := d.backends[name]; !ok {
			return nil, fmt.Errorf("no implementation for backend %q", name)
		}
	}
	return d, nil
}

// Plan normalizes the formats of a request and resolves its backend without
// running anything.
func (d *Dispatcher) Plan(inputPath, target string) (Plan, error) {
	t := format.Normalize(target)
	if t == "" {
		return Plan{}, &ValidationError{Field: "format", Message: "is required"}
	}
	s := format.FromFilename(inputPath)

	rule, ok := d.registry.Resolve(s, t)
	if !ok {
		return Plan{Source: s, Target: t}, &UnsupportedConversionError{Source: s, Target: t}
	}
	return Plan{Source: s, Target: t, Backend: rule.Backend}, nil
}

// Dispatch converts inputPath to target, writing the result under outputDir,
// and returns the path of the single output artifact.
func (d *Dispatcher) Dispatch(ctx context.Context, inputPath, outputDir, target string) (string, error) {
	plan, err := d.Plan(inputPath, target)
	if err != nil {
		d.observe(plan, KindOf(err), 0)
		return "", err
	}

	if _, err := os.Stat(inputPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", &NotFoundError{Name: filepath.Base(inputPath)}
		}
		return "", fmt.Errorf("failed to stat input: %w", err)
	}

	logger := d.logger.With(
		"backend", plan.Backend,
		"source_format", string(plan.Source),
		"target_format", string(plan.Target),
		"input", filepath.Base(inputPath),
	)
	logger.Info("Conversion started")

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	start := time.Now()
	output, err := d.backends[plan.Backend].Convert(ctx, inputPath, outputDir, plan.Target)
	elapsed := time.Since(start)
	if err != nil {
		cause := err
		var berr *BackendExecutionError
		if errors.As(err, &berr) {
			cause = berr.Err
		}
		wrapped := &BackendExecutionError{Backend: plan.Backend, Source: plan.Source, Target: plan.Target, Err: cause}
		logger.Error("Conversion failed", "error", cause, "duration_ms", elapsed.Milliseconds())
		d.observe(plan, KindBackend, elapsed)
		return "", wrapped
	}

	logger.Info("Conversion finished", "output", filepath.Base(output), "duration_ms", elapsed.Milliseconds())
	d.observe(plan, "", elapsed)
	return output, nil
}

func (d *Dispatcher) observe(plan Plan, kind Kind, elapsed time.Duration) {
	if d.observer == nil {
		return
	}
	outcome := "success"
	if kind != "" {
		outcome = string(kind)
	}
	d.observer.ObserveConversion(plan.Backend, string(plan.Source), string(plan.Target), outcome, elapsed)
}
