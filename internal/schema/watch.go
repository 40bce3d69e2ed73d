package schema

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher re-parses a schema file whenever it is written.
type Watcher struct {
	path string
	fsw  *fsnotify.Watcher
}

// NewWatcher starts watching the directory holding path, so that editors
// replacing the file are noticed too.
func NewWatcher(path string) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", abs, err)
	}
	return &Watcher{path: abs, fsw: fsw}, nil
}

// Run blocks until ctx is done. Each successful re-parse hands a freshly
// built Document to onReload; parse failures go to onError and the caller
// keeps whatever it loaded before.
func (w *Watcher) Run(ctx context.Context, onReload func(*Document), onError func(error)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
				continue
			}
			doc, err := ParseFile(w.path)
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			if onReload != nil {
				onReload(doc)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			if onError != nil {
				onError(err)
			}
		}
	}
}

// Close stops the underlying watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// Watch is NewWatcher plus Run; it returns once ctx is done.
func Watch(ctx context.Context, path string, onReload func(*Document), onError func(error)) error {
	w, err := NewWatcher(path)
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()
	return w.Run(ctx, onReload, onError)
}
