// Package spotlight picks a random note, or a random block of a random note,
// from the notes that match a block's filters.
package spotlight

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"regexp"
	"slices"
	"strings"
	"sync"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/notecommits/internal/apperr"
	"github.com/starford/notecommits/internal/blockargs"
	"github.com/starford/notecommits/internal/commits"
	"github.com/starford/notecommits/internal/index"
	"github.com/starford/notecommits/internal/noteservice"
)

// BlobKey is the plugin_data key holding the spotlight settings.
const BlobKey = "spotlight"

// NoMatch is shown when no note passes the filters.
const NoMatch = "No note was found for the given search parameters!"

// Block kinds.
const (
	KindNote  = "spotlight-note"
	KindBlock = "spotlight-block"
)

// Settings holds the persisted spotlight configuration.
type Settings struct {
	DivWidth   int      `json:"divWidth"`
	DivHeight  int      `json:"divHeight"`
	IgnoreList []string `json:"ignoreList"`
}

// DefaultSettings returns the settings used before anything is persisted.
func DefaultSettings() Settings {
	return Settings{DivWidth: 50, DivHeight: 400, IgnoreList: []string{}}
}

// Validate validates the settings.
func (s *Settings) Validate() error {
	return validation.ValidateStruct(s,
		validation.Field(&s.DivWidth, validation.Min(1)),
		validation.Field(&s.DivHeight, validation.Min(1)),
	)
}

// Notes is the note source the service picks from.
type Notes interface {
	Candidates(ctx context.Context) ([]index.NoteRow, error)
	GetNote(ctx context.Context, notePath string) (*noteservice.NoteDetail, error)
}

// Request describes one spotlight block.
type Request struct {
	Source      string
	CurrentPath string
	Block       bool
}

// Result is the rendered outcome of a spotlight block. Message is set and
// Path empty when nothing matched.
type Result struct {
	Path    string `json:"path,omitempty"`
	Title   string `json:"title,omitempty"`
	BlockID string `json:"block_id,omitempty"`
	Text    string `json:"text,omitempty"`
	Style   string `json:"style"`
	Message string `json:"message,omitempty"`
}

// Service serves spotlight blocks. Safe for concurrent use.
type Service struct {
	notes Notes
	blobs index.BlobStore

	mu       sync.Mutex
	settings Settings
	rng      *rand.Rand
}

// Option configures a Service.
type Option func(*Service)

// WithDefaults sets the container size used until settings are persisted.
func WithDefaults(width, height int) Option {
	return func(s *Service) {
		s.settings.DivWidth = width
		s.settings.DivHeight = height
	}
}

// NewService creates a spotlight service. A nil rng uses a randomly seeded one.
func NewService(notes Notes, blobs index.BlobStore, rng *rand.Rand, opts ...Option) *Service {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	s := &Service{notes: notes, blobs: blobs, settings: DefaultSettings(), rng: rng}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load reads persisted settings, keeping the defaults when none exist.
func (s *Service) Load() error {
	data, err := s.blobs.LoadBlob(BlobKey)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	s.mu.Lock()
	st := s.settings
	s.mu.Unlock()
	st.IgnoreList = nil
	if err := json.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("spotlight: decode settings: %w", err)
	}
	if st.IgnoreList == nil {
		st.IgnoreList = []string{}
	}
	s.mu.Lock()
	s.settings = st
	s.mu.Unlock()
	return nil
}

// Settings returns a copy of the current settings.
func (s *Service) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.settings
	out.IgnoreList = slices.Clone(s.settings.IgnoreList)
	return out
}

// UpdateSettings replaces the size defaults. The ignore list is edited
// through Ignore and Unignore only.
func (s *Service) UpdateSettings(width, height int) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.settings
	next.DivWidth, next.DivHeight = width, height
	if err := next.Validate(); err != nil {
		return Settings{}, err
	}
	if err := s.persist(next); err != nil {
		return Settings{}, err
	}
	s.settings = next
	return next, nil
}

// Ignore excludes a note from every spotlight pick.
func (s *Service) Ignore(notePath string) error {
	notePath = strings.TrimSpace(notePath)
	if notePath == "" || notePath == string(commits.Root) {
		return apperr.ErrInvalidPath
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if slices.Contains(s.settings.IgnoreList, notePath) {
		return apperr.ErrAlreadyExists
	}
	next := s.settings
	next.IgnoreList = append(slices.Clone(s.settings.IgnoreList), notePath)
	if err := s.persist(next); err != nil {
		return err
	}
	s.settings = next
	return nil
}

// Unignore removes a note from the ignore list.
func (s *Service) Unignore(notePath string) error {
	notePath = strings.TrimSpace(notePath)
	s.mu.Lock()
	defer s.mu.Unlock()
	if !slices.Contains(s.settings.IgnoreList, notePath) {
		return apperr.ErrNotFound
	}
	next := s.settings
	next.IgnoreList = slices.DeleteFunc(slices.Clone(s.settings.IgnoreList), func(p string) bool { return p == notePath })
	if err := s.persist(next); err != nil {
		return err
	}
	s.settings = next
	return nil
}

// Spotlight filters the indexed notes by the block's arguments and picks one
// at random. The note at req.CurrentPath is only picked when it is the sole
// match.
func (s *Service) Spotlight(ctx context.Context, req Request) (*Result, error) {
	settings := s.Settings()
	args := blockargs.Parse(req.Source)
	res := &Result{
		Style: fmt.Sprintf("width:%d%%; height:%dpx; float: %s;",
			args.Int("divWidth", settings.DivWidth),
			args.Int("divHeight", settings.DivHeight),
			args.String("divAlign", "left")),
	}

	rows, err := s.notes.Candidates(ctx)
	if err != nil {
		return nil, err
	}
	f := newFilter(args, settings.IgnoreList, req.Block)
	var matches []index.NoteRow
	for _, row := range rows {
		if f.keep(row) {
			matches = append(matches, row)
		}
	}
	if len(matches) > 1 {
		matches = slices.DeleteFunc(matches, func(r index.NoteRow) bool { return r.Path == req.CurrentPath })
	}
	if len(matches) == 0 {
		res.Message = NoMatch
		return res, nil
	}

	s.mu.Lock()
	pick := matches[s.rng.IntN(len(matches))]
	s.mu.Unlock()

	note, err := s.notes.GetNote(ctx, pick.Path)
	if err != nil {
		return nil, err
	}
	res.Path, res.Title, res.Text = note.Path, note.Title, note.Content
	if req.Block {
		if len(note.Blocks) == 0 {
			res.Path, res.Title, res.Text = "", "", ""
			res.Message = NoMatch
			return res, nil
		}
		s.mu.Lock()
		b := note.Blocks[s.rng.IntN(len(note.Blocks))]
		s.mu.Unlock()
		res.BlockID, res.Text = b.ID, b.Text
	}
	return res, nil
}

func (s *Service) persist(next Settings) error {
	data, err := json.Marshal(next)
	if err != nil {
		return err
	}
	return s.blobs.SaveBlob(BlobKey, data)
}

type filter struct {
	tags   []string
	match  *regexp.Regexp
	ignore []string
	blocks bool
}

func newFilter(args blockargs.Args, ignore []string, blocks bool) filter {
	f := filter{ignore: ignore, blocks: blocks}
	for _, t := range args.List("tags", ";") {
		f.tags = append(f.tags, strings.TrimPrefix(t, "#"))
	}
	if re, err := regexp.Compile(args.String("match", ".*")); err == nil {
		f.match = re
	}
	return f
}

func (f filter) keep(row index.NoteRow) bool {
	if slices.Contains(f.ignore, row.Path) {
		return false
	}
	if f.blocks && row.Blocks == 0 {
		return false
	}
	if f.match != nil && !f.match.MatchString(row.Path) {
		return false
	}
	if len(f.tags) == 0 {
		return true
	}
	for _, t := range row.Tags {
		if slices.Contains(f.tags, t) {
			return true
		}
	}
	return false
}
