package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/ent0n29/hrdesk/internal/app"
)

var (
	serveIngest bool
	serveWatch  bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and websocket API",
	Long: `Run the HTTP API.

Examples:
  hrdesk serve
  hrdesk serve --watch
  hrdesk --config hrdesk.yaml serve --ingest=false`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&serveIngest, "ingest", true, "Ingest the corpus at startup when the index is empty")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "Re-index the corpus as files change")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	ctx := cmd.Context()

	res, err := app.Build(ctx, cfg, app.Options{LogOutput: cmd.ErrOrStderr()})
	if err != nil {
		return err
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			res.Logger.Warn("cleanup failed", "error", err)
		}
	}()
	logger := res.Logger

	if serveIngest {
		if err := ingestIfEmpty(ctx, res); err != nil {
			logger.Warn("startup ingest failed", "dir", cfg.CorpusDir, "error", err)
		}
	}
	if serveWatch {
		go func() {
			if err := res.Ingester.Watch(ctx, cfg.CorpusDir); err != nil {
				logger.Warn("corpus watcher stopped", "error", err)
			}
		}()
	}

	res.Sessions.StartJanitor(ctx, 5*time.Second)

	httpServer := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           res.API.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen error: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", "error", err)
		_ = httpServer.Close()
	}
	logger.Info("shutdown complete")
	return nil
}

func ingestIfEmpty(ctx context.Context, res *app.BuildResult) error {
	n, err := res.Index.Count(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		res.Logger.Info("index already populated", "chunks", n)
		return nil
	}
	stats, err := res.Ingester.IngestDir(ctx, res.Config.CorpusDir)
	if err != nil {
		return err
	}
	if stats.Files == 0 {
		res.Logger.Warn("no policy documents found", "dir", res.Config.CorpusDir)
	}
	return nil
}
