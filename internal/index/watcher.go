package index

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/songbook/internal/checksum"
	"github.com/starford/songbook/internal/storage"
)

// EventCallback is called after a watcher-driven index change.
// kind is one of EventCreated, EventUpdated, EventDeleted.
type EventCallback func(kind string, path string)

// Event kinds passed to EventCallback.
const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventDeleted = "deleted"
)

// reconcileDelay debounces the reconciliation pass after renames.
const reconcileDelay = 200 * time.Millisecond

// reported maps a song path to the checksum the watcher last announced.
type reported map[string]string

// Watch runs an fsnotify watcher on the library root until ctx is cancelled,
// keeping the index in step with chord sheets on disk. cb (if non-nil) is
// called once per content change, whoever wrote the file: the API, another
// process sharing the index, or an editor.
//
// Directories created at runtime are added to the watch list. A rename
// schedules a reconciliation pass against the files on disk.
func Watch(ctx context.Context, db *DB, store storage.Provider, root string, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root); err != nil {
		return err
	}

	seen, err := db.AllChecksums()
	if err != nil {
		logger.Warn("watcher: seed checksums failed", slog.String("error", err.Error()))
		seen = map[string]string{}
	}
	last := reported(seen)

	logger.Info("watcher: started", slog.String("root", root))

	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(reconcileDelay)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(reconcileDelay)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			reconcileAfterRename(db, store, last, logger, cb)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			absPath := ev.Name

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, absPath); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
					} else {
						logger.Debug("watcher: watching new dir", slog.String("path", absPath))
					}
					indexNewDir(db, store, root, absPath, last, logger, cb)
					continue
				}
			}

			if !storage.IsSong(filepath.Base(absPath)) {
				continue
			}
			rel, relErr := relPath(root, absPath)
			if relErr != nil {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				data, readErr := store.Read(rel)
				if readErr != nil {
					logger.Warn("watcher: read failed", slog.String("path", rel), slog.String("error", readErr.Error()))
					continue
				}
				kind, changed := last.note(rel, checksum.Sum(data))
				if !changed {
					// Editors often emit several writes per save.
					continue
				}
				if idxErr := indexIfStale(db, rel, data); idxErr != nil {
					delete(last, rel)
					logger.Warn("watcher: index failed", slog.String("path", rel), slog.String("error", idxErr.Error()))
					continue
				}
				logger.Debug("watcher: indexed", slog.String("path", rel), slog.String("op", kind))
				if cb != nil {
					cb(kind, rel)
				}

			case ev.Op&fsnotify.Remove != 0:
				delete(last, rel)
				if delErr := db.DeleteSong(rel); delErr != nil {
					logger.Warn("watcher: delete failed", slog.String("path", rel), slog.String("error", delErr.Error()))
					continue
				}
				logger.Debug("watcher: deleted", slog.String("path", rel))
				if cb != nil {
					cb(EventDeleted, rel)
				}

			case ev.Op&fsnotify.Rename != 0:
				// Rename fires on the old path only; the new path shows up
				// as a Create if it stays inside a watched directory.
				delete(last, rel)
				if delErr := db.DeleteSong(rel); delErr != nil {
					logger.Warn("watcher: rename delete failed", slog.String("path", rel), slog.String("error", delErr.Error()))
				} else {
					logger.Debug("watcher: rename old deleted", slog.String("path", rel))
					if cb != nil {
						cb(EventDeleted, rel)
					}
				}
				scheduleReconcile()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// reconcileAfterRename removes index entries whose files are gone and
// indexes files whose checksum differs from the index.
func reconcileAfterRename(db *DB, store storage.Provider, last reported, logger *slog.Logger, cb EventCallback) {
	checksums, err := db.AllChecksums()
	if err != nil {
		logger.Warn("reconcile: all checksums failed", slog.String("error", err.Error()))
		return
	}

	metas, err := store.List("")
	if err != nil {
		logger.Warn("reconcile: list failed", slog.String("error", err.Error()))
		return
	}

	disk := make(map[string]string, len(metas))
	for _, m := range metas {
		disk[m.Path] = m.Checksum
	}

	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if delErr := db.DeleteSong(p); delErr == nil {
				delete(last, p)
				logger.Debug("reconcile: removed stale", slog.String("path", p))
				if cb != nil {
					cb(EventDeleted, p)
				}
			}
		}
	}

	for p, cs := range disk {
		if checksums[p] == cs && last[p] == cs {
			continue
		}
		data, readErr := store.Read(p)
		if readErr != nil {
			continue
		}
		kind, changed := last.note(p, checksum.Sum(data))
		if !changed {
			continue
		}
		if idxErr := indexIfStale(db, p, data); idxErr != nil {
			delete(last, p)
			continue
		}
		logger.Debug("reconcile: indexed", slog.String("path", p))
		if cb != nil {
			cb(kind, p)
		}
	}
}

// indexNewDir indexes chord sheets already present in a new directory.
func indexNewDir(db *DB, store storage.Provider, root, dirPath string, last reported, logger *slog.Logger, cb EventCallback) {
	_ = filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !storage.IsSong(d.Name()) {
			return nil
		}
		rel, relErr := relPath(root, path)
		if relErr != nil {
			return nil
		}
		data, readErr := store.Read(rel)
		if readErr != nil {
			return nil
		}
		kind, changed := last.note(rel, checksum.Sum(data))
		if !changed {
			return nil
		}
		if idxErr := indexIfStale(db, rel, data); idxErr != nil {
			delete(last, rel)
			return nil
		}
		logger.Debug("watcher: indexed from new dir", slog.String("path", rel))
		if cb != nil {
			cb(kind, rel)
		}
		return nil
	})
}

// relPath returns p relative to root with forward slashes, matching storage paths.
func relPath(root, p string) (string, error) {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

// addDirsRecursive adds root and all its non-hidden subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}

// note records sum for path. changed is false when sum was already
// announced; kind is EventCreated for a path the watcher has not seen.
func (r reported) note(path, sum string) (kind string, changed bool) {
	prev, known := r[path]
	if known && prev == sum {
		return "", false
	}
	r[path] = sum
	if known {
		return EventUpdated, true
	}
	return EventCreated, true
}

// indexIfStale indexes data unless the index already holds the same
// checksum, as it does after a write through the song service.
func indexIfStale(db *DB, path string, data []byte) error {
	if cs, _ := db.GetChecksum(path); cs == checksum.Sum(data) {
		return nil
	}
	return IndexFile(db, path, data)
}
