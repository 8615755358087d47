// Package watch triggers full rebuilds when managed files change.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Options configures a Watcher.
type Options struct {
	// Base is the repository root; Dirs are watched recursively below it.
	Base string
	Dirs []string

	// Delay coalesces bursts of events into one callback.
	Delay time.Duration

	// Skip reports whether a base-relative path is excluded. Excluded
	// directories are not watched.
	Skip func(rel string) bool
	// Match reports whether a change to a base-relative file matters.
	Match func(rel string) bool
}

// Watcher monitors directory trees and calls onChange with the
// base-relative paths that changed.
type Watcher struct {
	opts      Options
	fs        *fsnotify.Watcher
	debouncer *Debouncer
	log       *slog.Logger
}

// New creates a watcher. Nothing is watched until Run.
func New(opts Options, log *slog.Logger, onChange func([]string)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	if opts.Delay <= 0 {
		opts.Delay = 300 * time.Millisecond
	}
	w := &Watcher{
		opts:      opts,
		fs:        fw,
		debouncer: NewDebouncer(opts.Delay),
		log:       log,
	}
	w.debouncer.SetCallback(onChange)
	return w, nil
}

// Run watches until ctx is done. Missing directories are skipped.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fs.Close()
	defer w.debouncer.Stop()

	watched := 0
	for _, dir := range w.opts.Dirs {
		n, err := w.addTree(filepath.Join(w.opts.Base, filepath.FromSlash(dir)))
		if err != nil {
			return err
		}
		watched += n
	}
	if watched == 0 {
		return fmt.Errorf("no watchable directories among %v", w.opts.Dirs)
	}
	w.log.Info("watching for changes", "dirs", w.opts.Dirs, "directories", watched)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", "error", err)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	rel, err := filepath.Rel(w.opts.Base, event.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)
	if w.opts.Skip != nil && w.opts.Skip(rel) {
		return
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			// New directories may already hold files.
			if _, err := w.addTree(event.Name); err != nil {
				w.log.Warn("watch new directory", "path", rel, "error", err)
			}
			w.debouncer.Add(rel)
			return
		}
	}
	if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) {
		return
	}
	// Removed or renamed paths may have been directories; always rebuild.
	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		w.debouncer.Add(rel)
		return
	}
	if w.opts.Match == nil || w.opts.Match(rel) {
		w.log.Debug("file changed", "path", rel, "op", event.Op.String())
		w.debouncer.Add(rel)
	}
}

// addTree watches root and every non-excluded directory below it.
func (w *Watcher) addTree(root string) (int, error) {
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		w.log.Debug("watch dir not present", "path", root)
		return 0, nil
	}
	n := 0
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			w.log.Warn("skipping unreadable directory", "path", p, "error", err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && w.opts.Skip != nil {
			if rel, err := filepath.Rel(w.opts.Base, p); err == nil && w.opts.Skip(filepath.ToSlash(rel)) {
				return fs.SkipDir
			}
		}
		if err := w.fs.Add(p); err != nil {
			return fmt.Errorf("watch %s: %w", p, err)
		}
		n++
		return nil
	})
	return n, err
}

// Debouncer collects changes and fires one callback after a quiet period.
type Debouncer struct {
	duration time.Duration
	timer    *time.Timer
	files    map[string]struct{}
	mutex    sync.Mutex
	callback func([]string)
	stopped  bool
}

// NewDebouncer creates a new debouncer instance
func NewDebouncer(duration time.Duration) *Debouncer {
	return &Debouncer{
		duration: duration,
		files:    make(map[string]struct{}),
	}
}

// Add records a change and restarts the quiet period.
func (d *Debouncer) Add(file string) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.stopped {
		return
	}

	d.files[file] = struct{}{}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.duration, d.flush)
}

// flush hands the accumulated files, sorted, to the callback. The callback
// runs without the lock held so it may call Add.
func (d *Debouncer) flush() {
	d.mutex.Lock()
	if len(d.files) == 0 || d.stopped {
		d.mutex.Unlock()
		return
	}
	files := make([]string, 0, len(d.files))
	for file := range d.files {
		files = append(files, file)
	}
	d.files = make(map[string]struct{})
	callback := d.callback
	d.mutex.Unlock()

	sort.Strings(files)
	if callback != nil {
		callback(files)
	}
}

// SetCallback sets the callback function
func (d *Debouncer) SetCallback(callback func([]string)) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.callback = callback
}

// Stop cancels any pending callback. Later Adds are ignored.
func (d *Debouncer) Stop() {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.stopped = true
}
