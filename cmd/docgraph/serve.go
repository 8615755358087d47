package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/docgraph/internal/api"
	"github.com/dgallion1/docgraph/internal/config"
	"github.com/dgallion1/docgraph/internal/pipeline"
)

func newServeCommand() *cobra.Command {
	var watchChanges bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the tree over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			log := newLogger(cfg, cmd.ErrOrStderr())
			ctx := cmd.Context()

			b := pipeline.NewBuilder(cfg, log)
			if _, err := b.Build(ctx); err != nil {
				// The server still starts; POST /api/build retries.
				log.Error("initial build failed", "error", err)
			}

			httpServer := &http.Server{
				Addr:         ":" + cfg.Port,
				Handler:      api.NewServer(b, log, cfg.APIKey),
				ReadTimeout:  30 * time.Second,
				WriteTimeout: 120 * time.Second,
				IdleTimeout:  60 * time.Second,
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				log.Info("starting docgraph", "port", cfg.Port, "output", b.OutputPath())
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				log.Info("shutting down...")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return httpServer.Shutdown(shutdownCtx)
			})
			if watchChanges {
				g.Go(func() error {
					return watchAndRebuild(gctx, cfg, b, log, nil)
				})
			}
			return g.Wait()
		},
	}
	cmd.Flags().String("port", config.Default().Port, "HTTP port")
	cmd.Flags().String("api-key", "", "bearer token required to trigger builds")
	cmd.Flags().BoolVar(&watchChanges, "watch", false, "rebuild when documents change")
	cmd.Flags().Duration("debounce", config.Default().WatchDebounce, "quiet period before a rebuild")
	return cmd
}
