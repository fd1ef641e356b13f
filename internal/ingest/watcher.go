package ingest

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

type WatchConfig struct {
	Roots       []string      // directories to watch (recursive)
	SkipHidden  bool          // ignore dot files and dot directories
	InitialScan bool          // if true, walk roots and emit existing files
	Debounce    time.Duration // coalesce rapid create/write bursts per file
}

// StartWatcher emits paths of documents created or rewritten under the roots.
// Both channels close when ctx is done.
func StartWatcher(ctx context.Context, cfg WatchConfig, logger *slog.Logger) (<-chan string, <-chan error, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.Roots) == 0 {
		logger.Error("watcher start failed: no roots provided")
		return nil, nil, errors.New("no roots provided")
	}
	evCh := make(chan string, 256)
	errCh := make(chan error, 1)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Error("failed to create fsnotify watcher", "error", err)
		return nil, nil, err
	}

	var initial []string
	for _, root := range cfg.Roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if cfg.SkipHidden && IsHidden(path) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				return w.Add(path)
			}
			if cfg.InitialScan && Candidate(path, cfg.SkipHidden) {
				initial = append(initial, path)
			}
			return nil
		})
		if err != nil {
			logger.Error("failed to add root directory", "root", root, "error", err)
			_ = w.Close()
			return nil, nil, err
		}
	}

	go func() {
		var (
			mu      sync.Mutex
			pending = map[string]*time.Timer{}
			wg      sync.WaitGroup
		)
		emit := func(p string) {
			select {
			case evCh <- p:
			case <-ctx.Done():
			}
		}

		defer func() {
			if err := w.Close(); err != nil {
				logger.Warn("failed to close watcher", "error", err)
			}
			mu.Lock()
			for p, t := range pending {
				if t.Stop() {
					wg.Done()
				}
				delete(pending, p)
			}
			mu.Unlock()
			wg.Wait()
			close(evCh)
			close(errCh)
		}()

		for _, p := range initial {
			emit(p)
		}

		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-w.Events:
				if !ok {
					return
				}
				if cfg.SkipHidden && IsHidden(e.Name) {
					continue
				}
				if e.Has(fsnotify.Create) {
					if fi, err := os.Stat(e.Name); err == nil && fi.IsDir() {
						if err := w.Add(e.Name); err != nil {
							logger.Warn("failed to add new directory to watcher", "path", e.Name, "error", err)
						}
						continue
					}
				}
				if !Candidate(e.Name, cfg.SkipHidden) || !(e.Has(fsnotify.Create) || e.Has(fsnotify.Write)) {
					continue
				}
				if cfg.Debounce <= 0 {
					emit(e.Name)
					continue
				}

				name := e.Name
				mu.Lock()
				if t, ok := pending[name]; ok && t.Stop() {
					wg.Done()
				}
				wg.Add(1)
				var t *time.Timer
				t = time.AfterFunc(cfg.Debounce, func() {
					defer wg.Done()
					mu.Lock()
					if pending[name] == t {
						delete(pending, name)
					}
					mu.Unlock()
					emit(name)
				})
				pending[name] = t
				mu.Unlock()
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Error("watcher error", "error", err)
				select {
				case errCh <- err:
				default:
				}
			}
		}
	}()

	return evCh, errCh, nil
}
