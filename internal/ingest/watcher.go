// Package ingest watches drop directories for feed exports. Operators copy
// the Praxedo and PIDI CSV files into a shared folder; the watcher emits one
// event per settled file so the pipeline can import it.
package ingest

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/kyntus/facturation/constants"
)

// feed exports arrive as .csv, occasionally renamed .txt by mail gateways
var feedExts = map[string]struct{}{
	"csv": {},
	"txt": {},
}

// DropEvent is one feed file ready to import.
type DropEvent struct {
	Path string
	Feed constants.Feed
}

type WatchConfig struct {
	Roots       []string // directories to watch (recursive)
	InitialScan bool     // if true, walk roots and emit existing files
	Debounce    time.Duration
}

// ClassifyFeed decides which feed a dropped file belongs to from its name.
// PIDI exports carry "pidi" somewhere in the filename; everything else is
// treated as a Praxedo export.
func ClassifyFeed(path string) constants.Feed {
	name := strings.ToLower(filepath.Base(path))
	if strings.Contains(name, "pidi") {
		return constants.FeedPIDI
	}
	return constants.FeedPraxedo
}

// StartWatcher watches the drop roots and streams settled feed files.
// Write bursts are debounced so a file copied in chunks is emitted once.
func StartWatcher(ctx context.Context, cfg WatchConfig, logger *slog.Logger) (<-chan DropEvent, <-chan error, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.Roots) == 0 {
		return nil, nil, errors.New("no drop directories provided")
	}

	evCh := make(chan DropEvent, 64)
	errCh := make(chan error, 1)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Error("watch.start.failed", "error", err)
		return nil, nil, err
	}

	emit := func(path string) {
		select {
		case evCh <- DropEvent{Path: path, Feed: ClassifyFeed(path)}:
		default:
			logger.Warn("watch.drop.overflow", "path", path)
		}
	}

	addRoot := func(root string) error {
		return filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() {
				return w.Add(path)
			}
			if cfg.InitialScan && isFeedFile(path) {
				emit(path)
			}
			return nil
		})
	}
	for _, r := range cfg.Roots {
		if err := addRoot(r); err != nil {
			logger.Error("watch.root.failed", "root", r, "error", err)
			_ = w.Close()
			return nil, nil, err
		}
	}

	go func() {
		defer close(evCh)
		defer close(errCh)
		defer func() { _ = w.Close() }()

		var timer *time.Timer

		// pending is shared with the debounce timer goroutine
		var mu sync.Mutex
		pending := map[string]struct{}{}

		flush := func() {
			mu.Lock()
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
				delete(pending, p)
			}
			mu.Unlock()
			for _, p := range paths {
				emit(p)
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case e := <-w.Events:
				if e.Op&fsnotify.Create == fsnotify.Create {
					// a new subdirectory needs its own watch; non-dirs fail
					// silently and fall through to the file path below
					_ = w.Add(e.Name)
				}
				if isFeedFile(e.Name) && e.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
					mu.Lock()
					pending[e.Name] = struct{}{}
					mu.Unlock()
					if cfg.Debounce > 0 {
						if timer != nil {
							timer.Stop()
						}
						timer = time.AfterFunc(cfg.Debounce, flush)
					} else {
						flush()
					}
				}
			case err := <-w.Errors:
				logger.Error("watch.error", "error", err)
				select {
				case errCh <- err:
				default:
				}
			}
		}
	}()

	return evCh, errCh, nil
}

func isFeedFile(path string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	_, ok := feedExts[ext]
	return ok
}
