package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/afero"

	"github.com/pavel-fokin/file-converter/internal/backend"
	"github.com/pavel-fokin/file-converter/internal/command"
	"github.com/pavel-fokin/file-converter/internal/config"
	"github.com/pavel-fokin/file-converter/internal/convert"
	"github.com/pavel-fokin/file-converter/internal/files"
	"github.com/pavel-fokin/file-converter/internal/format"
	"github.com/pavel-fokin/file-converter/internal/fs"
	"github.com/pavel-fokin/file-converter/internal/logging"
	"github.com/pavel-fokin/file-converter/internal/metrics"
	"github.com/pavel-fokin/file-converter/internal/registry"
	"github.com/pavel-fokin/file-converter/internal/sqlite"
)

// app is the wired service graph shared by the commands.
type app struct {
	cfg        *config.Config
	logger     *slog.Logger
	registry   *prometheus.Registry
	metrics    *metrics.Metrics
	store      *fs.Storage
	repo       *sqlite.Repository
	dispatcher *convert.Dispatcher
	service    *files.Service
}

func loadConfig(logOut io.Writer) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(logOut, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func newDispatcher(cfg *config.Config, logger *slog.Logger, observer convert.Observer) (*convert.Dispatcher, error) {
	runner := command.NewExecRunner(logger)
	opts := []convert.Option{
		convert.WithLogger(logger),
		convert.WithTimeout(cfg.BackendTimeout),
	}
	if observer != nil {
		opts = append(opts, convert.WithObserver(observer))
	}
	return convert.NewDispatcher(registry.Default(), backend.All(runner, cfg.Tools()), opts...)
}

func bootstrap(logOut io.Writer) (*app, error) {
	cfg, logger, err := loadConfig(logOut)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(reg)
	if err != nil {
		return nil, err
	}

	store := fs.NewStorage(afero.NewOsFs(), cfg.IncomingDir, cfg.ConvertedDir, cfg.MaxUploadSize)
	if err := store.Init(); err != nil {
		return nil, err
	}

	dispatcher, err := newDispatcher(cfg, logger, m)
	if err != nil {
		return nil, fmt.Errorf("failed to wire backends: %w", err)
	}

	a := &app{
		cfg:        cfg,
		logger:     logger,
		registry:   reg,
		metrics:    m,
		store:      store,
		dispatcher: dispatcher,
	}

	var journal files.ConversionJournal
	if cfg.DBPath != "" {
		repo, err := sqlite.NewRepository(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		a.repo = repo
		journal = repo
	}

	a.service = files.NewService(store, journal, dispatcher, format.NewMatrix(), cfg.Retention)
	a.service.SetLogger(logger)
	a.service.SetObserver(m)
	return a, nil
}

func (a *app) Close() error {
	var errs []error
	if a.repo != nil {
		errs = append(errs, a.repo.Close())
	}
	return errors.Join(errs...)
}
