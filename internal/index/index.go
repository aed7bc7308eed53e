package index

// NoteIndex defines the interface for note indexing operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type NoteIndex interface {
	UpsertNote(n NoteRow) error
	DeleteNote(path string) error
	GetNote(path string) (*NoteRow, error)
	ListNotes() ([]NoteRow, error)
	AllChecksums() (map[string]string, error)
	BlobStore
	Close() error
}

// BlobStore persists opaque per-feature state documents.
type BlobStore interface {
	LoadBlob(key string) ([]byte, error)
	SaveBlob(key string, data []byte) error
}

// Verify *DB satisfies NoteIndex at compile time.
var _ NoteIndex = (*DB)(nil)
