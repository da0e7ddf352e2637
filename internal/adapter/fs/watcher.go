package fs

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long a folder must stay quiet before pending
// changes are delivered. PDF writers often emit several writes per save.
const DefaultDebounce = time.Second

type ChangeKind int

const (
	ChangeUpserted ChangeKind = iota
	ChangeRemoved
)

func (k ChangeKind) String() string {
	if k == ChangeRemoved {
		return "removed"
	}
	return "upserted"
}

// Change is a debounced file event for a path the Walker would list.
type Change struct {
	Path string
	Kind ChangeKind
}

// Watcher reports changes to matching files under a root directory.
type Watcher struct {
	root     string
	walker   *Walker
	debounce time.Duration
	fsw      *fsnotify.Watcher
	logger   *slog.Logger
}

func NewWatcher(root string, walker *Walker, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{root: root, walker: walker, debounce: debounce, fsw: fsw, logger: logger}
	if err := w.addTree(root); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// addTree watches dir and, when the walker descends, every directory below it.
func (w *Watcher) addTree(dir string) error {
	if !w.walker.descend {
		return w.fsw.Add(dir)
	}
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.fsw.Add(path)
		}
		return nil
	})
}

func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// Run delivers changes to handle until ctx is cancelled. handle is called
// from the Run goroutine only, one change at a time, in path order.
func (w *Watcher) Run(ctx context.Context, handle func(Change)) error {
	pending := make(map[string]ChangeKind)
	timer := time.NewTimer(w.debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if w.maybeAddDir(ev) {
				continue
			}
			change, ok := w.classify(ev)
			if !ok {
				continue
			}
			w.logger.Debug("file event", "path", change.Path, "op", ev.Op.String())
			pending[change.Path] = change.Kind
			timer.Reset(w.debounce)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)

		case <-timer.C:
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			sort.Strings(paths)
			for _, p := range paths {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				handle(Change{Path: p, Kind: pending[p]})
				delete(pending, p)
			}
		}
	}
}

// maybeAddDir starts watching directories created under a recursive root.
func (w *Watcher) maybeAddDir(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Create) {
		return false
	}
	info, err := os.Stat(ev.Name)
	if err != nil || !info.IsDir() {
		return false
	}
	if w.walker.descend {
		if err := w.addTree(ev.Name); err != nil {
			w.logger.Warn("cannot watch directory", "path", ev.Name, "error", err)
		}
	}
	return true
}

// classify maps a raw event to a Change. Chmod events, directories and
// paths the walker would not list are dropped.
func (w *Watcher) classify(ev fsnotify.Event) (Change, bool) {
	rel, err := filepath.Rel(w.root, ev.Name)
	if err != nil || !w.walker.Matches(rel) {
		return Change{}, false
	}

	switch {
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		return Change{Path: ev.Name, Kind: ChangeRemoved}, true
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		info, err := os.Stat(ev.Name)
		if err != nil || !info.Mode().IsRegular() {
			return Change{}, false
		}
		return Change{Path: ev.Name, Kind: ChangeUpserted}, true
	default:
		return Change{}, false
	}
}
