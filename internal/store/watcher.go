package store

import (
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Event signals that a room's export file changed on disk.
type Event struct {
	Room string
	Path string
}

const watchDebounce = 100 * time.Millisecond

// Watch monitors dir (and its subdirectories, including ones created
// later) for export changes and emits one debounced Event per file per
// burst of filesystem activity. Closing the returned Closer stops the
// goroutine and closes the channel.
func Watch(dir string, logger *slog.Logger) (<-chan Event, io.Closer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, err
	}
	if err := addWatchTree(watcher, dir); err != nil {
		watcher.Close()
		return nil, nil, err
	}

	events := make(chan Event, 32)

	go func() {
		// timers debounce per export file. Each timer closure captures
		// its path by value; the emit guard keeps a straggler that fires
		// during shutdown off the closed channel.
		timers := make(map[string]*time.Timer)
		var emitMu sync.Mutex
		stopped := false

		defer func() {
			for _, t := range timers {
				t.Stop()
			}
			emitMu.Lock()
			stopped = true
			close(events)
			emitMu.Unlock()
		}()

		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}

				if ev.Op&fsnotify.Create != 0 {
					if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
						if err := addWatchTree(watcher, ev.Name); err != nil {
							logger.Warn("watch new export dir failed", "dir", ev.Name, "err", err)
						}
						continue
					}
				}

				if !strings.HasSuffix(ev.Name, ".jsonl") {
					continue
				}
				if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
					continue
				}

				path := ev.Name
				if t, ok := timers[path]; ok {
					t.Stop()
				}
				timers[path] = time.AfterFunc(watchDebounce, func() {
					emitMu.Lock()
					defer emitMu.Unlock()
					if stopped {
						return
					}
					select {
					case events <- Event{Room: RoomIDForPath(path), Path: path}:
					default:
						// Channel full; the pending refresh covers it.
					}
				})

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("export watcher error", "err", err)
			}
		}
	}()

	return events, watcher, nil
}

// addWatchTree registers root and every directory below it.
func addWatchTree(watcher *fsnotify.Watcher, root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return nil
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if err := watcher.Add(path); err != nil {
				return err
			}
		}
		return nil
	})
}
