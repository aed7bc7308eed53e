// Package models defines the vault-level types shared across packages.
package models

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// NoteMetadata is a lightweight representation returned by list operations.
// Checksum is the Checksum of the file content and changes whenever the
// content does.
type NoteMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Block is a paragraph addressed by a trailing ^block-id marker.
type Block struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// NoteExt is the extension of files treated as notes.
const NoteExt = ".md"

// Checksum returns the hex-encoded SHA-256 digest of a note's content.
func Checksum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
