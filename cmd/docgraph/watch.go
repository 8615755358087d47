package main

import (
	"context"
	"io"
	"log/slog"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docgraph/internal/codemap"
	"github.com/dgallion1/docgraph/internal/config"
	"github.com/dgallion1/docgraph/internal/discovery"
	"github.com/dgallion1/docgraph/internal/parser"
	"github.com/dgallion1/docgraph/internal/pipeline"
	"github.com/dgallion1/docgraph/internal/watch"
)

func newWatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Rebuild the tree whenever documents change",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			log := newLogger(cfg, cmd.ErrOrStderr())
			b := pipeline.NewBuilder(cfg, log)

			rep, err := b.Build(cmd.Context())
			if err != nil {
				return err
			}
			printSummary(cmd.OutOrStdout(), rep)
			return watchAndRebuild(cmd.Context(), cfg, b, log, cmd.OutOrStdout())
		},
	}
	cmd.Flags().Duration("debounce", config.Default().WatchDebounce, "quiet period before a rebuild")
	return cmd
}

// watchAndRebuild blocks until ctx is done, running a full build after each
// burst of relevant changes. Failed rebuilds are logged and watching goes on.
func watchAndRebuild(ctx context.Context, cfg config.Config, b *pipeline.Builder, log *slog.Logger, out io.Writer) error {
	w, err := newWatcher(cfg, log, func(files []string) {
		log.Info("change detected, rebuilding", "files", files)
		rep, err := b.Build(ctx)
		if err != nil {
			log.Error("rebuild failed", "error", err)
			return
		}
		if out != nil {
			printSummary(out, rep)
		}
	})
	if err != nil {
		return err
	}
	return w.Run(ctx)
}

// newWatcher watches the docs dirs (and source dirs when analyzing code)
// with the same exclusions discovery applies.
func newWatcher(cfg config.Config, log *slog.Logger, onChange func([]string)) (*watch.Watcher, error) {
	filter := discovery.NewWalker(discovery.Options{
		Exclude: append(append([]string{}, discovery.DefaultExclude...), cfg.Exclude...),
	}, log, nil)

	dirs := append([]string{}, cfg.DocsDirs...)
	if cfg.AnalyzeCode {
		dirs = append(dirs, cfg.SourceDirs...)
	}

	generated := map[string]bool{}
	for _, p := range []string{cfg.Output, cfg.Report} {
		if p == "" {
			continue
		}
		if rel, err := filepath.Rel(cfg.RepoRoot, cfg.Resolve(p)); err == nil {
			generated[filepath.ToSlash(rel)] = true
		}
	}

	return watch.New(watch.Options{
		Base:  cfg.RepoRoot,
		Dirs:  dirs,
		Delay: cfg.WatchDebounce,
		Skip: func(rel string) bool {
			return generated[rel] || filter.Excluded(rel)
		},
		Match: func(rel string) bool {
			ext := strings.ToLower(path.Ext(rel))
			if parser.SupportedExtensions[ext] {
				return true
			}
			return cfg.AnalyzeCode && slices.Contains(codemap.SourceExtensions, ext)
		},
	}, log, onChange)
}
