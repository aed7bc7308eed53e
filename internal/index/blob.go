package index

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/notecommits/internal/apperr"
)

// LoadBlob returns the stored document for key or apperr.ErrNotFound.
func (db *DB) LoadBlob(key string) ([]byte, error) {
	var data string
	err := db.conn.QueryRow(`SELECT data FROM plugin_data WHERE key = ?`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("index: load %s: %w", key, err)
	}
	return []byte(data), nil
}

// SaveBlob replaces the stored document for key.
func (db *DB) SaveBlob(key string, data []byte) error {
	_, err := db.conn.Exec(`
		INSERT INTO plugin_data (key, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			data       = excluded.data,
			updated_at = excluded.updated_at
	`, key, string(data), time.Now())
	if err != nil {
		return fmt.Errorf("index: save %s: %w", key, err)
	}
	return nil
}
