// Package noteservice reads notes from the vault, keeps the index current
// and turns notes into commit observations.
package noteservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"strings"
	"time"

	"github.com/starford/notecommits/internal/apperr"
	"github.com/starford/notecommits/internal/commits"
	"github.com/starford/notecommits/internal/index"
	"github.com/starford/notecommits/internal/models"
	"github.com/starford/notecommits/internal/parser"
	"github.com/starford/notecommits/internal/storage"
)

// NoteDetail is the full representation of a note.
type NoteDetail struct {
	Path        string         `json:"path"`
	Title       string         `json:"title"`
	Content     string         `json:"content"`
	Body        string         `json:"-"`
	Tags        []string       `json:"tags"`
	Blocks      []models.Block `json:"blocks"`
	Frontmatter map[string]any `json:"frontmatter,omitempty"`
}

// Service coordinates storage and index operations.
type Service struct {
	store  storage.Provider
	db     index.NoteIndex
	logger *slog.Logger
}

// NewService creates a new note service.
func NewService(store storage.Provider, db index.NoteIndex, logger *slog.Logger) *Service {
	return &Service{store: store, db: db, logger: logger}
}

// Observe reads one note, refreshes its index row and returns its snapshot.
func (s *Service) Observe(_ context.Context, notePath string) (commits.Observation, error) {
	data, err := s.read(notePath)
	if err != nil {
		return commits.Observation{}, err
	}
	row, err := index.IndexFile(s.db, models.NoteMetadata{Path: notePath, UpdatedAt: time.Now()}, data)
	if err != nil {
		return commits.Observation{}, fmt.Errorf("observe %s: %w", notePath, err)
	}
	return observation(row), nil
}

// ObserveAll observes every note in the vault. Notes that cannot be read or
// parsed are logged and skipped.
func (s *Service) ObserveAll(ctx context.Context) ([]commits.Observation, error) {
	metas, err := s.store.List("")
	if err != nil {
		return nil, err
	}
	out := make([]commits.Observation, 0, len(metas))
	for _, m := range metas {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := s.store.Read(m.Path)
		if err != nil {
			s.logger.Warn("observe: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		row, err := index.IndexFile(s.db, m, data)
		if err != nil {
			s.logger.Warn("observe: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		out = append(out, observation(row))
	}
	return out, nil
}

// Paths returns the vault-relative path of every note.
func (s *Service) Paths(_ context.Context) ([]string, error) {
	metas, err := s.store.List("")
	if err != nil {
		return nil, err
	}
	out := make([]string, len(metas))
	for i, m := range metas {
		out[i] = m.Path
	}
	return out, nil
}

// Candidates returns the indexed notes.
func (s *Service) Candidates(_ context.Context) ([]index.NoteRow, error) {
	return s.db.ListNotes()
}

// GetNote reads and parses a note.
func (s *Service) GetNote(_ context.Context, notePath string) (*NoteDetail, error) {
	data, err := s.read(notePath)
	if err != nil {
		return nil, err
	}
	res, err := parser.Parse(data)
	if err != nil {
		return nil, err
	}
	title := res.Title
	if title == "" {
		title = strings.TrimSuffix(path.Base(notePath), models.NoteExt)
	}
	return &NoteDetail{
		Path:        notePath,
		Title:       title,
		Content:     string(data),
		Body:        res.Body,
		Tags:        nonNilSlice(res.Tags),
		Blocks:      nonNilSlice(res.Blocks),
		Frontmatter: res.Frontmatter,
	}, nil
}

func (s *Service) read(notePath string) ([]byte, error) {
	data, err := s.store.Read(notePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

func observation(row index.NoteRow) commits.Observation {
	return commits.Observation{
		Path: row.Path,
		Snapshot: commits.Snapshot{
			Size:  row.Size,
			Links: row.Links,
			Tags:  len(row.Tags),
		},
	}
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
