package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dgallion1/docgraph/internal/config"
)

// Version is set at build time.
var Version = "dev"

// errDefects makes strict builds exit non-zero once the tree is written.
var errDefects = errors.New("structural defects found")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	rootCmd := newRootCommand()
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		errorColor := color.New(color.FgRed, color.Bold)
		errorColor.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	def := config.Default()
	rootCmd := &cobra.Command{
		Use:   "docgraph",
		Short: "Build the documentation graph of a repository",
		Long: `docgraph discovers Markdown documents, follows their links, optionally maps
source files onto code modules, and writes one consistent tree as JSON.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: docgraph.yaml in the repo root)")
	pf.String("root", def.RepoRoot, "repository root")
	pf.StringSlice("docs", def.DocsDirs, "documentation roots, relative to the repo root")
	pf.StringSlice("src", def.SourceDirs, "source roots scanned when analyzing code")
	pf.String("output", def.Output, "tree file")
	pf.String("report", "", "optional run report file")
	pf.String("root-id", def.RootID, "id of the node inferred nodes attach to")
	pf.StringSlice("exclude", nil, "extra exclusions: segment names or doublestar globs")
	pf.StringSlice("include", nil, "only keep files whose path contains a keyword")
	pf.Bool("analyze-code", false, "map source files onto the tree")
	pf.Bool("suggest-only", false, "record parent suggestions without applying them")
	pf.Bool("auto-link", false, "add virtual nodes for undocumented source files")
	pf.Int("read-concurrency", def.ReadConcurrency, "parallel document reads")
	pf.String("log-level", def.LogLevel, "debug, info, warn or error")
	pf.String("log-format", def.LogFormat, "json or text")

	rootCmd.AddCommand(newBuildCommand())
	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newWatchCommand())
	return rootCmd
}

// loadConfig resolves the layered configuration for cmd.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	file, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(file, cmd.Flags())
	if err != nil {
		return config.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg config.Config, w io.Writer) *slog.Logger {
	level, _ := config.ParseLevel(cfg.LogLevel)
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
