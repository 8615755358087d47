// Package discovery walks repository directories and produces ordered,
// filtered lists of repository-relative file paths.
package discovery

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultExclude covers build outputs, dependency trees, version control and
// caches.
var DefaultExclude = []string{
	// build output
	"dist", "build", "out", "target", "coverage", ".next",
	// dependencies
	"node_modules", "vendor", "bower_components",
	// version control
	".git", ".svn", ".hg",
	// caches
	".cache", "__pycache__", ".pytest_cache", ".turbo",
}

// Options controls a walk.
type Options struct {
	// Exclude entries are plain names matched against any path segment, or
	// doublestar patterns (anything containing *, ?, [ or {) matched
	// against the relative path.
	Exclude []string

	// Include is an optional keyword allowlist; a file is kept when its
	// relative path contains any keyword, case-insensitively.
	Include []string

	// Extensions restricts files by extension (with dot, lowercase).
	// Empty means every extension.
	Extensions []string
}

// Walker produces deterministic file lists. Unreadable entries are skipped
// and reported through the logger and the warn callback.
type Walker struct {
	opts  Options
	names map[string]bool
	globs []string
	exts  map[string]bool
	log   *slog.Logger
	warn  func(string)
}

// NewWalker builds a walker. warn may be nil.
func NewWalker(opts Options, log *slog.Logger, warn func(string)) *Walker {
	w := &Walker{
		opts:  opts,
		names: make(map[string]bool),
		exts:  make(map[string]bool),
		log:   log,
		warn:  warn,
	}
	for _, e := range opts.Exclude {
		e = strings.TrimSuffix(filepath.ToSlash(strings.TrimSpace(e)), "/")
		if e == "" {
			continue
		}
		if strings.ContainsAny(e, "*?[{") {
			w.globs = append(w.globs, e)
		} else {
			w.names[e] = true
		}
	}
	for _, ext := range opts.Extensions {
		w.exts[strings.ToLower(ext)] = true
	}
	return w
}

// ErrRootUnreadable is returned when the walk root itself cannot be read.
var ErrRootUnreadable = errors.New("walk root unreadable")

// Walk lists the files under base/dir and returns their paths relative to
// base, slash separated, in lexical directory-then-name order.
func (w *Walker) Walk(base, dir string) ([]string, error) {
	root := filepath.Join(base, filepath.FromSlash(dir))
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrRootUnreadable, root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrRootUnreadable, root)
	}
	if _, err := os.ReadDir(root); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrRootUnreadable, root, err)
	}

	prefix := filepath.ToSlash(filepath.Clean(filepath.FromSlash(dir))) + "/"
	if prefix == "./" {
		prefix = ""
	}

	var files []string
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		rel, relErr := filepath.Rel(base, p)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)

		if err != nil {
			w.skipped(rel, err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if p != root && w.excluded(rel, strings.TrimPrefix(rel, prefix)) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if !w.included(rel) {
			return nil
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	return files, nil
}

// Excluded reports whether a base-relative path falls under an exclusion
// rule.
func (w *Walker) Excluded(rel string) bool {
	rel = filepath.ToSlash(rel)
	return w.excluded(rel, rel)
}

// excluded matches names against the segments of sub (the part below the
// walk root) and globs against the full base-relative path.
func (w *Walker) excluded(rel, sub string) bool {
	for _, seg := range strings.Split(sub, "/") {
		if w.names[seg] {
			return true
		}
	}
	for _, pattern := range w.globs {
		matched, err := doublestar.Match(pattern, rel)
		if err != nil {
			// A bad pattern shouldn't break the walk.
			continue
		}
		if matched {
			return true
		}
	}
	return false
}

func (w *Walker) included(rel string) bool {
	if len(w.exts) > 0 && !w.exts[strings.ToLower(path.Ext(rel))] {
		return false
	}
	if len(w.opts.Include) == 0 {
		return true
	}
	lower := strings.ToLower(rel)
	for _, kw := range w.opts.Include {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

func (w *Walker) skipped(rel string, err error) {
	if w.log != nil {
		w.log.Warn("skipping unreadable entry", "path", rel, "error", err)
	}
	if w.warn != nil {
		w.warn(fmt.Sprintf("unreadable %s: %v", rel, err))
	}
}
