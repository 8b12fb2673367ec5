package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/pavel-fokin/file-converter/internal/files"
	"github.com/pavel-fokin/file-converter/internal/server"
)

const shutdownTimeout = 30 * time.Second

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(os.Stdout)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if a.cfg.SweepSchedule != "" {
				janitor, err := files.NewJanitor(a.service, a.cfg.SweepSchedule)
				if err != nil {
					return err
				}
				janitor.Start()
				defer func() { <-janitor.Stop().Done() }()
			}

			srv := server.New(&server.Config{
				Addr:          a.cfg.Addr,
				MaxUploadSize: a.cfg.MaxUploadSize,
				CORSOrigins:   a.cfg.CORSOrigins,
			}, a.service, a.metrics, a.registry, a.logger)

			errCh := make(chan error, 1)
			go func() {
				a.logger.Info("Starting server",
					"addr", srv.Addr,
					"incoming_dir", a.store.Dir(files.Uploaded),
					"converted_dir", a.store.Dir(files.Converted),
					"max_upload_size", humanize.IBytes(uint64(a.cfg.MaxUploadSize)),
					"retention", a.cfg.Retention.String(),
				)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			a.logger.Info("Shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}
