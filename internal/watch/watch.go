// Package watch keeps a step registry current from file-system events.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"

	"github.com/phobologic/stepguide/internal/discover"
	"github.com/phobologic/stepguide/internal/lang"
	"github.com/phobologic/stepguide/internal/loader"
	"github.com/phobologic/stepguide/internal/registry"
)

// Watcher reloads source files into a registry as they change.
type Watcher struct {
	loader *loader.Loader
	reg    *registry.Registry
	w      *fsnotify.Watcher
	logger *slog.Logger
	// OnChange, when set, is called after each handled event.
	OnChange func(path string)
}

// New creates a Watcher over every scanned directory under the loader's
// root.
func New(l *loader.Loader, reg *registry.Registry, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "creating watcher")
	}

	w := &Watcher{loader: l, reg: reg, w: fw, logger: logger}
	if err := w.addTree(l.Root()); err != nil {
		_ = fw.Close()
		return nil, err
	}
	return w, nil
}

// Run handles events until ctx is done. It closes the underlying watcher
// before returning.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.w.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.w.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-w.w.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	path := ev.Name

	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if err := w.addTree(path); err != nil {
				w.logger.Warn("failed to watch directory", "path", path, "error", err)
			}
			return
		}
	}

	if lang.ForPath(path) == nil {
		return
	}

	switch {
	case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
		w.loader.Forget(path)
		w.reg.RemoveSteps(path)
		w.logger.Debug("file removed", "path", path)
	case ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create):
		if err := w.loader.Reload(path, w.reg); err != nil {
			w.logger.Warn("failed to reload file", "path", path, "error", err)
			return
		}
	default:
		return
	}

	if w.OnChange != nil {
		w.OnChange(path)
	}
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && discover.SkipDir(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.w.Add(path); err != nil {
			return errors.Wrapf(err, "watching %s", path)
		}
		return nil
	})
}
