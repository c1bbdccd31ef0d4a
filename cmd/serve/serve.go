// Package serve implements the HTTP API server command.
package serve

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/docspasta/cmd/common"
	"github.com/jonesrussell/docspasta/internal/api"
	"github.com/jonesrussell/docspasta/internal/job"
)

// shutdownTimeout bounds the graceful drain of in-flight requests.
const shutdownTimeout = 10 * time.Second

// Command returns the serve command.
func Command(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the crawl API server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), version)
		},
	}
}

func run(ctx context.Context, version string) error {
	stack, err := common.Build()
	if err != nil {
		return err
	}
	defer stack.Close()

	reaper := job.NewReaper(stack.Jobs, stack.Log)
	if err := reaper.Start(); err != nil {
		return err
	}
	defer reaper.Stop()

	router := api.NewRouter(api.Config{
		Jobs:     stack.Jobs,
		Events:   stack.Events,
		Store:    stack.Store,
		Logger:   stack.Log,
		Version:  version,
		Gatherer: stack.Registry,
	})

	srv := &http.Server{
		Addr:        stack.Cfg.Server.Address,
		Handler:     router,
		ReadTimeout: stack.Cfg.Server.ReadTimeout,
		IdleTimeout: stack.Cfg.Server.IdleTimeout,
		// No write timeout: the SSE stream endpoint holds its response open
		// for the lifetime of a job.
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)

	go func() {
		stack.Log.Info("server listening", "address", srv.Addr, "version", version)

		if serveErr := srv.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errCh <- serveErr
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	stack.Log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}
