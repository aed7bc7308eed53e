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
	"github.com/starford/notecommits/internal/models"
	"github.com/starford/notecommits/internal/storage"
)

// Event kinds reported by Watch.
const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventDeleted = "deleted"
	EventRenamed = "renamed"
)

// renameWindow is how long a Rename on an old path waits for the Create
// of its new path before it is reported as a deletion.
const renameWindow = 200 * time.Millisecond

// Event describes one watcher-driven index change. OldPath is set for
// renames only.
type Event struct {
	Kind    string
	Path    string
	OldPath string
}

// EventCallback is called after a watcher-driven index change.
type EventCallback func(ev Event)

// Watch starts an fsnotify watcher on the vault root and processes file
// change events until ctx is cancelled. It calls cb (if non-nil) after
// each successful index mutation.
//
// fsnotify reports a rename as Rename on the old path followed by Create on
// the new one. The two are paired into a single "renamed" event when the
// Create arrives within renameWindow; an unpaired Rename (the note left the
// vault) is reported as "deleted". New directories created at runtime are
// added to the watch list, and a reconciliation pass after each rename burst
// removes stale entries left by directory moves.
func Watch(ctx context.Context, db *DB, store storage.Provider, vaultRoot string, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, vaultRoot); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", vaultRoot))

	emit := func(ev Event) {
		if cb != nil {
			cb(ev)
		}
	}

	// pending holds old paths of renames still waiting for their Create.
	var pending []string
	var renameTimer *time.Timer
	var renameCh <-chan time.Time

	scheduleFlush := func() {
		if renameTimer == nil {
			renameTimer = time.NewTimer(renameWindow)
			renameCh = renameTimer.C
		} else {
			renameTimer.Reset(renameWindow)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if renameTimer != nil {
				renameTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-renameCh:
			for _, old := range pending {
				logger.Debug("watcher: rename unpaired, treating as delete", slog.String("path", old))
				emit(Event{Kind: EventDeleted, Path: old})
			}
			pending = pending[:0]
			reconcileAfterRename(db, store, logger, emit)

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
					indexNewDir(db, store, vaultRoot, absPath, logger, emit)
					continue
				}
			}

			if !strings.HasSuffix(absPath, models.NoteExt) {
				// A moved or removed directory invalidates every note under it.
				if ev.Op&(fsnotify.Rename|fsnotify.Remove) != 0 {
					scheduleFlush()
				}
				continue
			}

			rel, relErr := filepath.Rel(vaultRoot, absPath)
			if relErr != nil {
				continue
			}
			rel = filepath.ToSlash(rel)

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				data, readErr := store.Read(rel)
				if readErr != nil {
					logger.Warn("watcher: read failed", slog.String("path", rel), slog.String("error", readErr.Error()))
					continue
				}
				meta := models.NoteMetadata{Path: rel, UpdatedAt: time.Now()}
				if _, idxErr := IndexFile(db, meta, data); idxErr != nil {
					logger.Warn("watcher: index failed", slog.String("path", rel), slog.String("error", idxErr.Error()))
					continue
				}

				out := Event{Kind: EventUpdated, Path: rel}
				if ev.Op&fsnotify.Create != 0 {
					out.Kind = EventCreated
					if len(pending) > 0 {
						out.Kind = EventRenamed
						out.OldPath = pending[0]
						pending = pending[1:]
					}
				}
				logger.Debug("watcher: indexed", slog.String("path", rel), slog.String("op", out.Kind))
				emit(out)

			case ev.Op&fsnotify.Remove != 0:
				if delErr := db.DeleteNote(rel); delErr != nil {
					logger.Warn("watcher: delete failed", slog.String("path", rel), slog.String("error", delErr.Error()))
					continue
				}
				logger.Debug("watcher: deleted", slog.String("path", rel))
				emit(Event{Kind: EventDeleted, Path: rel})

			case ev.Op&fsnotify.Rename != 0:
				if delErr := db.DeleteNote(rel); delErr != nil {
					logger.Warn("watcher: rename delete failed", slog.String("path", rel), slog.String("error", delErr.Error()))
				}
				pending = append(pending, rel)
				scheduleFlush()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// reconcileAfterRename does a lightweight sync using batch lookups:
// finds index entries without a corresponding file on disk and removes them,
// and finds on-disk files that are not indexed and indexes them.
func reconcileAfterRename(db *DB, store storage.Provider, logger *slog.Logger, emit func(Event)) {
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

	disk := make(map[string]models.NoteMetadata, len(metas))
	for _, m := range metas {
		disk[m.Path] = m
	}

	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if delErr := db.DeleteNote(p); delErr == nil {
				logger.Debug("reconcile: removed stale", slog.String("path", p))
				emit(Event{Kind: EventDeleted, Path: p})
			}
		}
	}

	for p, m := range disk {
		cs, known := checksums[p]
		if known && cs == m.Checksum {
			continue
		}
		data, readErr := store.Read(p)
		if readErr != nil {
			continue
		}
		if _, idxErr := IndexFile(db, m, data); idxErr == nil {
			kind := EventUpdated
			if !known {
				kind = EventCreated
			}
			logger.Debug("reconcile: indexed", slog.String("path", p), slog.String("op", kind))
			emit(Event{Kind: kind, Path: p})
		}
	}
}

// indexNewDir indexes any notes found in a newly created directory.
func indexNewDir(db *DB, store storage.Provider, vaultRoot, dirPath string, logger *slog.Logger, emit func(Event)) {
	_ = filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, models.NoteExt) {
			return nil
		}
		rel, relErr := filepath.Rel(vaultRoot, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		data, readErr := store.Read(rel)
		if readErr != nil {
			return nil
		}
		meta := models.NoteMetadata{Path: rel, UpdatedAt: time.Now()}
		if _, idxErr := IndexFile(db, meta, data); idxErr == nil {
			logger.Debug("watcher: indexed from new dir", slog.String("path", rel))
			emit(Event{Kind: EventCreated, Path: rel})
		}
		return nil
	})
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
