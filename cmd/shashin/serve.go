package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hyperjump/shashin/internal/server"
	"github.com/hyperjump/shashin/internal/watcher"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serve the search, album and photo API. Configured watch directories are
synced on startup and watched for new, changed and removed images.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
	cmd.Flags().Bool("no-watch", false, "Do not watch the configured directories")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	c, err := openComponents(cmd)
	if err != nil {
		return err
	}
	defer c.Close()
	logger := c.Logger
	cfg := c.Config

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	noWatch, _ := cmd.Flags().GetBool("no-watch")
	if !noWatch && len(cfg.Watch.Directories) > 0 {
		w := watcher.New(c.Ingester, cfg.Watch.Directories, c.Ingester.Extensions(), cfg.Watch.RecursiveOrDefault(),
			watcher.WithLogger(logger))
		if err := w.Start(ctx); err != nil {
			return err
		}
		defer w.Stop()
		go func() {
			n := w.Sync()
			logger.Info("watch directories synced", zap.Int("images", n))
		}()
	}

	srv := server.NewServer(c.Engine, c.Ingester, c.Storage, c.Vectors, &cfg.Server, cfg.Storage.UploadDir, logger)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Stop(shutdownCtx)
	})
	return g.Wait()
}
