package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/starford/notecommits/internal/apperr"
)

// NoteRow represents a row in the notes table.
type NoteRow struct {
	Path      string
	Title     string
	Checksum  string
	Tags      []string
	Size      int64
	Links     int
	Blocks    int
	UpdatedAt time.Time
}

// UpsertNote inserts or replaces a note row.
func (db *DB) UpsertNote(n NoteRow) error {
	tagsJSON, _ := json.Marshal(n.Tags)
	if n.UpdatedAt.IsZero() {
		n.UpdatedAt = time.Now()
	}

	_, err := db.conn.Exec(`
		INSERT INTO notes (path, title, checksum, tags, size, link_count, block_count, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			title       = excluded.title,
			checksum    = excluded.checksum,
			tags        = excluded.tags,
			size        = excluded.size,
			link_count  = excluded.link_count,
			block_count = excluded.block_count,
			updated_at  = excluded.updated_at
	`, n.Path, n.Title, n.Checksum, string(tagsJSON), n.Size, n.Links, n.Blocks, n.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert note: %w", err)
	}
	return nil
}

// DeleteNote removes a note row.
func (db *DB) DeleteNote(path string) error {
	if _, err := db.conn.Exec(`DELETE FROM notes WHERE path = ?`, path); err != nil {
		return fmt.Errorf("index: delete note: %w", err)
	}
	return nil
}

// GetChecksum returns the stored checksum for a note, or empty string if not found.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM notes WHERE path = ?`, path).Scan(&cs)
	if err != nil {
		return "", nil // not found is fine
	}
	return cs, nil
}

// GetNote returns one indexed note or apperr.ErrNotFound.
func (db *DB) GetNote(path string) (*NoteRow, error) {
	row := db.conn.QueryRow(`
		SELECT path, title, checksum, tags, size, link_count, block_count, updated_at
		FROM notes WHERE path = ?`, path)
	n, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("index: get note: %w", err)
	}
	return n, nil
}

// ListNotes returns every indexed note ordered by path.
func (db *DB) ListNotes() ([]NoteRow, error) {
	rows, err := db.conn.Query(`
		SELECT path, title, checksum, tags, size, link_count, block_count, updated_at
		FROM notes ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("index: list notes: %w", err)
	}
	defer rows.Close()

	var out []NoteRow
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("index: scan note: %w", err)
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}

// AllChecksums returns path → checksum for every indexed note.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM notes`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNote(s scanner) (*NoteRow, error) {
	var (
		n        NoteRow
		tagsJSON string
	)
	if err := s.Scan(&n.Path, &n.Title, &n.Checksum, &tagsJSON, &n.Size, &n.Links, &n.Blocks, &n.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tagsJSON), &n.Tags); err != nil {
		return nil, fmt.Errorf("decode tags of %s: %w", n.Path, err)
	}
	return &n, nil
}
