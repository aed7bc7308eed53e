package index

import (
	"log/slog"
	"path"
	"strings"

	"github.com/starford/notecommits/internal/models"
	"github.com/starford/notecommits/internal/parser"
	"github.com/starford/notecommits/internal/storage"
)

// Sync walks the vault and brings the index up to date:
//   - new/changed files are parsed and upserted
//   - files removed from disk are deleted from the index
func Sync(db *DB, store storage.Provider, logger *slog.Logger) error {
	metas, err := store.List("")
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Path] = struct{}{}

		if checksums[m.Path] == m.Checksum {
			continue
		}

		data, err := store.Read(m.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if _, err := IndexFile(db, m, data); err != nil {
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("path", m.Path))
		}
	}

	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if err := db.DeleteNote(p); err != nil {
				logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("path", p))
			}
		}
	}

	return nil
}

// BuildRow parses data into an index row for the note at meta.Path.
func BuildRow(meta models.NoteMetadata, data []byte) (NoteRow, error) {
	res, err := parser.Parse(data)
	if err != nil {
		return NoteRow{}, err
	}
	title := res.Title
	if title == "" {
		title = strings.TrimSuffix(path.Base(meta.Path), models.NoteExt)
	}
	return NoteRow{
		Path:      meta.Path,
		Title:     title,
		Checksum:  models.Checksum(data),
		Tags:      res.Tags,
		Size:      int64(len(data)),
		Links:     res.LinkCount(),
		Blocks:    len(res.Blocks),
		UpdatedAt: meta.UpdatedAt,
	}, nil
}

// IndexFile parses data and upserts it into the DB.
func IndexFile(db NoteIndex, meta models.NoteMetadata, data []byte) (NoteRow, error) {
	row, err := BuildRow(meta, data)
	if err != nil {
		return NoteRow{}, err
	}
	return row, db.UpsertNote(row)
}
