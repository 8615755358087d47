package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/docgraph/internal/codemap"
	"github.com/dgallion1/docgraph/internal/config"
	"github.com/dgallion1/docgraph/internal/discovery"
	"github.com/dgallion1/docgraph/internal/graph"
	"github.com/dgallion1/docgraph/internal/parser"
	"github.com/dgallion1/docgraph/internal/resolver"
	"github.com/dgallion1/docgraph/internal/treefile"
	"github.com/dgallion1/docgraph/internal/validate"
)

// ErrDocsRoot means a documentation root could not be located or read. The
// run aborts before anything is written.
var ErrDocsRoot = errors.New("documentation root unreadable")

// Builder runs full builds. Builds never overlap; a trigger that arrives
// while one is running waits for it.
type Builder struct {
	cfg     config.Config
	log     *slog.Logger
	history *History

	mu sync.Mutex
}

// NewBuilder creates a builder for cfg.
func NewBuilder(cfg config.Config, log *slog.Logger) *Builder {
	return &Builder{
		cfg:     cfg,
		log:     log,
		history: NewHistory(20),
	}
}

// Config returns the configuration the builder runs with.
func (b *Builder) Config() config.Config { return b.cfg }

// History returns the registry of recent runs.
func (b *Builder) History() *History { return b.history }

// OutputPath is the resolved location of the tree file.
func (b *Builder) OutputPath() string { return b.cfg.Resolve(b.cfg.Output) }

// Build recomputes the whole tree from scratch and writes it once.
func (b *Builder) Build(ctx context.Context) (*Report, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	run := NewRun(b.log)
	b.history.Put(run)
	log := run.Logger()
	log.Info("build started", "repo_root", b.cfg.RepoRoot, "docs_dirs", b.cfg.DocsDirs)

	rep, err := b.build(ctx, run)
	if err != nil {
		phase := run.Snapshot().Phase
		run.Fail(err)
		log.Error("build failed", "phase", phase, "error", err)
		return nil, err
	}
	run.SetPhase(PhaseCompleted)
	b.history.Finish(run.ID, rep)
	log.Info("build completed",
		"nodes", rep.Nodes,
		"warnings", len(rep.Warnings),
		"cycles", len(rep.Cycles),
		"orphans", len(rep.Orphans),
		"changed", rep.Output.Changed,
		"elapsed", rep.FinishedAt.Sub(rep.StartedAt).String(),
	)
	return rep, nil
}

func (b *Builder) build(ctx context.Context, run *Run) (*Report, error) {
	log := run.Logger()
	rep := newReport(run)

	// Phase 1: Discover
	run.SetPhase(PhaseDiscovering)
	paths, err := b.discoverDocs(run)
	if err != nil {
		return nil, err
	}
	log.Info("discovered documents", "count", len(paths))

	// Phase 2: Read and parse
	run.SetPhase(PhaseParsing)
	docs, err := b.readAll(ctx, run, paths)
	if err != nil {
		return nil, err
	}
	cache := make(map[string]*parser.Document, len(docs))
	var explicit []*parser.Document
	for _, doc := range docs {
		if doc == nil {
			continue
		}
		cache[doc.Path] = doc
		if doc.Explicit() {
			explicit = append(explicit, doc)
		}
	}
	rep.Documents = len(cache)

	// Phase 3: Resolve references
	run.SetPhase(PhaseResolving)
	res := resolver.New(b.cfg.DocsDirs)
	loader := resolver.LoaderFunc(func(p string) (*parser.Document, error) {
		if doc, ok := cache[p]; ok {
			return doc, nil
		}
		// Linked but not discovered, e.g. filtered by include keywords.
		raw, err := os.ReadFile(filepath.Join(b.cfg.RepoRoot, filepath.FromSlash(p)))
		if err != nil {
			return nil, err
		}
		doc := b.parse(run, p, raw)
		cache[p] = doc
		return doc, nil
	})
	closure := res.Closure(explicit, loader, paths)
	for _, d := range closure.Dangling {
		ref := DanglingRef{From: d.From, Target: d.Target, Missing: d.Missing(), Suggestion: d.Suggestion}
		rep.Dangling = append(rep.Dangling, ref)
		msg := fmt.Sprintf("dangling reference in %s: %s", d.From, d.Target)
		if !ref.Missing {
			msg = fmt.Sprintf("unreadable reference in %s: %s: %v", d.From, d.Target, d.Err)
		}
		if d.Suggestion != "" {
			msg += fmt.Sprintf(" (did you mean %s?)", d.Suggestion)
		}
		run.Warn(msg)
	}
	// Undiscovered documents with a full header keep their declared placement.
	var referenced []*parser.Document
	for _, doc := range closure.Reached {
		if doc.Explicit() {
			explicit = append(explicit, doc)
			continue
		}
		referenced = append(referenced, doc)
	}
	log.Info("resolved references", "explicit", len(explicit), "referenced", len(referenced), "dangling", len(closure.Dangling))
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Phase 4: Map source files
	var sources []codemap.Mapping
	if b.cfg.AnalyzeCode {
		run.SetPhase(PhaseMapping)
		sources = b.mapSources(run)
		rep.Sources = len(sources)
		log.Info("mapped source files", "count", len(sources))
	}

	// Phase 5: Assemble
	run.SetPhase(PhaseAssembling)
	asm := graph.New(graph.Options{
		RootID:      b.cfg.RootID,
		AnalyzeCode: b.cfg.AnalyzeCode,
		SuggestOnly: b.cfg.SuggestOnly,
		AutoLink:    b.cfg.AutoLink,
	}, res)
	result := asm.Assemble(graph.Input{
		Explicit:   explicit,
		Referenced: referenced,
		Links:      closure.Links,
		Sources:    sources,
	})
	for _, w := range result.Warnings {
		run.Warn(w)
		rep.Collisions = append(rep.Collisions, w)
	}
	rep.Stats = result.Stats
	rep.Suggestions = result.Suggestions
	rep.Nodes = len(result.Tree)
	for _, n := range result.Tree.Roots() {
		rep.Roots = append(rep.Roots, n.ID)
	}
	for _, s := range result.Pending() {
		log.Info("parent suggestion", "node", s.NodeID, "suggested_parent", s.SuggestedParent, "confidence", s.Confidence)
	}

	// Phase 6: Validate
	run.SetPhase(PhaseValidating)
	defects := validate.Hierarchy(result.Tree)
	rep.Cycles = defects.Cycles
	rep.Orphans = defects.Orphans
	for _, line := range defects.Describe() {
		log.Warn(line)
	}

	// Phase 7: Write, only once the structure is final.
	run.SetPhase(PhaseWriting)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := treefile.Encode(result.Tree)
	if err != nil {
		return nil, err
	}
	wr, err := treefile.Write(b.OutputPath(), data)
	if err != nil {
		return nil, fmt.Errorf("write tree: %w", err)
	}
	rep.Output = wr
	if !wr.Changed {
		log.Info("tree unchanged, write skipped", "path", wr.Path)
	}

	rep.Warnings = run.Warnings()
	rep.FinishedAt = time.Now()
	if b.cfg.Report != "" {
		data, err := rep.Encode()
		if err != nil {
			return nil, err
		}
		if _, err := treefile.Write(b.cfg.Resolve(b.cfg.Report), data); err != nil {
			return nil, fmt.Errorf("write report: %w", err)
		}
	}
	return rep, nil
}

func (b *Builder) discoverDocs(run *Run) ([]string, error) {
	w := discovery.NewWalker(discovery.Options{
		Exclude:    append(append([]string{}, discovery.DefaultExclude...), b.cfg.Exclude...),
		Include:    b.cfg.Include,
		Extensions: []string{".md", ".markdown"},
	}, run.Logger(), run.Warn)

	seen := make(map[string]bool)
	var paths []string
	for _, dir := range b.cfg.DocsDirs {
		files, err := w.Walk(b.cfg.RepoRoot, dir)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDocsRoot, err)
		}
		for _, f := range files {
			if !seen[f] {
				seen[f] = true
				paths = append(paths, f)
			}
		}
	}
	return paths, nil
}

// readAll reads every document with bounded concurrency. Results are stored
// by index so ordering never depends on scheduling. Unreadable files become
// nil entries.
func (b *Builder) readAll(ctx context.Context, run *Run, paths []string) ([]*parser.Document, error) {
	raws := make([][]byte, len(paths))
	errs := make([]error, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.cfg.ReadConcurrency)
	for i, p := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			raws[i], errs[i] = os.ReadFile(filepath.Join(b.cfg.RepoRoot, filepath.FromSlash(p)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	docs := make([]*parser.Document, len(paths))
	for i, p := range paths {
		if errs[i] != nil {
			run.Warnf("unreadable document %s: %v", p, errs[i])
			continue
		}
		docs[i] = b.parse(run, p, raws[i])
	}
	return docs, nil
}

func (b *Builder) parse(run *Run, p string, raw []byte) *parser.Document {
	doc := parser.Parse(p, raw)
	if doc.Meta.State == parser.MetaMalformed {
		run.Warnf("malformed metadata header in %s: %v", p, doc.Meta.Err)
	}
	run.Logger().Debug("parsed document", "path", p, "metadata", doc.Meta.State.String(), "links", len(doc.Links))
	return doc
}

// mapSources walks the configured source dirs. Missing dirs are expected
// (the defaults list several conventions) and skipped quietly.
func (b *Builder) mapSources(run *Run) []codemap.Mapping {
	w := discovery.NewWalker(discovery.Options{
		Exclude:    append(append([]string{}, discovery.DefaultExclude...), b.cfg.Exclude...),
		Extensions: codemap.SourceExtensions,
	}, run.Logger(), run.Warn)

	seen := make(map[string]bool)
	var out []codemap.Mapping
	for _, dir := range b.cfg.SourceDirs {
		files, err := w.Walk(b.cfg.RepoRoot, dir)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) || !dirExists(b.cfg.Resolve(dir)) {
				run.Logger().Debug("source dir not present", "dir", dir)
				continue
			}
			run.Warnf("unreadable source dir %s: %v", dir, err)
			continue
		}
		for _, f := range files {
			if seen[f] {
				continue
			}
			seen[f] = true
			if m, ok := codemap.Map(f); ok {
				out = append(out, m)
			}
		}
	}
	return out
}

func dirExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}
