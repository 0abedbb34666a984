package mtp

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/marmos91/mtpd/internal/logger"
	"github.com/marmos91/mtpd/internal/telemetry"
	"github.com/marmos91/mtpd/pkg/metadata"
)

// DefaultWatchDebounce is how long the watcher waits for a burst of
// filesystem events to settle before reconciling.
const DefaultWatchDebounce = 250 * time.Millisecond

// Watcher turns filesystem changes made outside the responder into store
// updates and events: new files and folders become ObjectAdded, removals
// become ObjectRemoved, and content changes become ObjectInfoChanged.
type Watcher struct {
	server   *Server
	indexer  *Indexer
	debounce time.Duration

	fsw *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]struct{}
	timer   *time.Timer
	flush   chan struct{}
}

// NewWatcher creates a watcher for every storage registered with server.
func NewWatcher(server *Server, debounce time.Duration) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	return &Watcher{
		server:   server,
		indexer:  NewIndexer(server.store, server.registry),
		debounce: debounce,
		fsw:      fsw,
		pending:  make(map[string]struct{}),
		flush:    make(chan struct{}, 1),
	}, nil
}

// Run watches until ctx is cancelled. Storage roots are added recursively
// when Run starts.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() { _ = w.fsw.Close() }()

	for _, st := range w.server.registry.Storages() {
		w.addTree(ctx, st.Path)
	}
	logger.InfoCtx(ctx, "Filesystem watcher started", logger.KeyCount, len(w.fsw.WatchList()))

	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			if w.timer != nil {
				w.timer.Stop()
			}
			w.mu.Unlock()
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if event.Op == fsnotify.Chmod {
				continue
			}
			w.enqueue(event.Name)

		case <-w.flush:
			w.process(ctx)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				logger.WarnCtx(ctx, "Watcher overflowed, reindexing")
				if _, err := w.indexer.IndexAll(ctx); err != nil {
					logger.WarnCtx(ctx, "Reindex failed", logger.Err(err))
				}
				continue
			}
			return fmt.Errorf("watcher error: %w", err)
		}
	}
}

// addTree watches dir and every directory below it.
func (w *Watcher) addTree(ctx context.Context, dir string) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if err := w.fsw.Add(path); err != nil {
			logger.WarnCtx(ctx, "Cannot watch directory", logger.Path(path), logger.Err(err))
			return fs.SkipDir
		}
		return nil
	})
}

func (w *Watcher) enqueue(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending[path] = struct{}{}
	if w.timer == nil {
		w.timer = time.AfterFunc(w.debounce, func() {
			select {
			case w.flush <- struct{}{}:
			default:
			}
		})
		return
	}
	w.timer.Reset(w.debounce)
}

// process reconciles the settled paths, parents before children.
func (w *Watcher) process(ctx context.Context) {
	w.mu.Lock()
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	clear(w.pending)
	w.mu.Unlock()

	slices.Sort(paths)

	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanWatcher)
	defer span.End()

	for _, p := range paths {
		if err := w.reconcile(ctx, p); err != nil {
			logger.WarnCtx(ctx, "Cannot apply filesystem change", logger.Path(p), logger.Err(err))
		}
	}
}

// reconcile brings the store in line with the current state of path and
// notifies the host.
func (w *Watcher) reconcile(ctx context.Context, path string) error {
	s := w.server
	if s.echo.seen(path) {
		return nil
	}

	fi, err := os.Lstat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return w.removed(ctx, path)
	}
	if err != nil {
		return err
	}
	if !fi.IsDir() && !fi.Mode().IsRegular() {
		return nil
	}

	st := s.registry.StorageForPath(path)
	if st == nil || path == st.Path {
		return nil
	}

	existing, err := s.store.LookupPath(ctx, path)
	switch {
	case err == nil:
		if !refresh(existing, fi) {
			return nil
		}
		if err := s.store.UpdateObject(ctx, existing); err != nil {
			return err
		}
		return s.SendObjectInfoChanged(ctx, existing.Handle)
	case !metadata.IsNotFoundError(err):
		return err
	}

	created, err := w.indexer.IndexPath(ctx, st, path)
	if err != nil {
		return err
	}
	if fi.IsDir() {
		w.addTree(ctx, path)
	}
	for _, o := range created {
		logger.DebugCtx(ctx, "External object added", logger.Handle(o.Handle), logger.Path(o.Path))
		if err := s.SendObjectAdded(ctx, o.Handle); err != nil {
			return err
		}
	}
	return nil
}

// removed drops the record of a vanished path and its descendants.
func (w *Watcher) removed(ctx context.Context, path string) error {
	s := w.server
	obj, err := s.store.LookupPath(ctx, path)
	if err != nil {
		if metadata.IsNotFoundError(err) {
			return nil
		}
		return err
	}
	if s.pendingHandle() == obj.Handle {
		return nil
	}

	descendants, err := metadata.Descendants(ctx, s.store, obj.Handle)
	if err != nil {
		return err
	}
	for _, o := range append(descendants, obj) {
		if err := s.store.DeleteObject(ctx, o.Handle); err != nil && !metadata.IsNotFoundError(err) {
			return err
		}
		logger.DebugCtx(ctx, "External object removed", logger.Handle(o.Handle), logger.Path(o.Path))
		if err := s.SendObjectRemoved(ctx, o.Handle); err != nil {
			return err
		}
	}
	return nil
}
