package spotlight

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/starford/notecommits/internal/apperr"
	"github.com/starford/notecommits/internal/index"
	"github.com/starford/notecommits/internal/models"
	"github.com/starford/notecommits/internal/noteservice"
)

type fakeNotes struct {
	rows   []index.NoteRow
	blocks map[string][]models.Block
}

func (f *fakeNotes) Candidates(context.Context) ([]index.NoteRow, error) {
	return f.rows, nil
}

func (f *fakeNotes) GetNote(_ context.Context, p string) (*noteservice.NoteDetail, error) {
	for _, r := range f.rows {
		if r.Path == p {
			return &noteservice.NoteDetail{Path: p, Title: r.Title, Content: "content of " + p, Blocks: f.blocks[p]}, nil
		}
	}
	return nil, apperr.ErrNotFound
}

type memBlobs map[string][]byte

func (m memBlobs) LoadBlob(key string) ([]byte, error) {
	if d, ok := m[key]; ok {
		return d, nil
	}
	return nil, apperr.ErrNotFound
}

func (m memBlobs) SaveBlob(key string, data []byte) error {
	m[key] = data
	return nil
}

func newTestService(notes *fakeNotes) (*Service, memBlobs) {
	blobs := memBlobs{}
	return NewService(notes, blobs, rand.New(rand.NewPCG(1, 2))), blobs
}

func vault() *fakeNotes {
	return &fakeNotes{
		rows: []index.NoteRow{
			{Path: "books/dune.md", Title: "dune", Tags: []string{"book", "scifi"}, Blocks: 1},
			{Path: "books/emma.md", Title: "emma", Tags: []string{"book"}},
			{Path: "daily/2026-10-19.md", Title: "2026-10-19", Tags: []string{"daily"}},
		},
		blocks: map[string][]models.Block{
			"books/dune.md": {{ID: "fear", Text: "Fear is the mind-killer."}},
		},
	}
}

func TestSpotlight_TagFilter(t *testing.T) {
	svc, _ := newTestService(vault())
	for i := 0; i < 20; i++ {
		res, err := svc.Spotlight(context.Background(), Request{Source: "tags=#scifi;daily"})
		if err != nil {
			t.Fatal(err)
		}
		if res.Path != "books/dune.md" && res.Path != "daily/2026-10-19.md" {
			t.Fatalf("picked %q outside tag filter", res.Path)
		}
	}
}

func TestSpotlight_MatchFilter(t *testing.T) {
	svc, _ := newTestService(vault())
	res, err := svc.Spotlight(context.Background(), Request{Source: "match=^daily/"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Path != "daily/2026-10-19.md" || res.Text != "content of daily/2026-10-19.md" {
		t.Errorf("result = %+v", res)
	}
}

func TestSpotlight_InvalidRegexMatchesAll(t *testing.T) {
	svc, _ := newTestService(vault())
	res, err := svc.Spotlight(context.Background(), Request{Source: "match=(["})
	if err != nil {
		t.Fatal(err)
	}
	if res.Path == "" {
		t.Errorf("invalid regex should not filter: %+v", res)
	}
}

func TestSpotlight_ExcludesCurrentUnlessOnlyMatch(t *testing.T) {
	svc, _ := newTestService(vault())
	for i := 0; i < 20; i++ {
		res, _ := svc.Spotlight(context.Background(), Request{Source: "tags=book", CurrentPath: "books/emma.md"})
		if res.Path != "books/dune.md" {
			t.Fatalf("current note picked: %+v", res)
		}
	}
	res, _ := svc.Spotlight(context.Background(), Request{Source: "match=emma", CurrentPath: "books/emma.md"})
	if res.Path != "books/emma.md" {
		t.Errorf("sole match should be returned, got %+v", res)
	}
}

func TestSpotlight_BlockMode(t *testing.T) {
	svc, _ := newTestService(vault())
	res, err := svc.Spotlight(context.Background(), Request{Block: true})
	if err != nil {
		t.Fatal(err)
	}
	if res.Path != "books/dune.md" || res.BlockID != "fear" || res.Text != "Fear is the mind-killer." {
		t.Errorf("result = %+v", res)
	}
}

func TestSpotlight_NoMatch(t *testing.T) {
	svc, _ := newTestService(vault())
	res, err := svc.Spotlight(context.Background(), Request{Source: "tags=poetry\ndivWidth=80\ndivHeight=\ndivAlign=right"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Message != NoMatch || res.Path != "" {
		t.Errorf("result = %+v", res)
	}
	if res.Style != "width:80%; height:400px; float: right;" {
		t.Errorf("style = %q", res.Style)
	}
}

func TestIgnoreListPersisted(t *testing.T) {
	notes := vault()
	svc, blobs := newTestService(notes)
	if err := svc.Ignore("/"); !errors.Is(err, apperr.ErrInvalidPath) {
		t.Errorf("root err = %v", err)
	}
	if err := svc.Ignore("books/emma.md"); err != nil {
		t.Fatal(err)
	}
	if err := svc.Ignore("books/emma.md"); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("duplicate err = %v", err)
	}
	if !strings.Contains(string(blobs[BlobKey]), "books/emma.md") {
		t.Errorf("blob = %s", blobs[BlobKey])
	}

	for i := 0; i < 20; i++ {
		res, _ := svc.Spotlight(context.Background(), Request{Source: "tags=book"})
		if res.Path == "books/emma.md" {
			t.Fatal("ignored note picked")
		}
	}

	reloaded := NewService(notes, blobs, nil)
	if err := reloaded.Load(); err != nil {
		t.Fatal(err)
	}
	if got := reloaded.Settings().IgnoreList; len(got) != 1 {
		t.Errorf("reloaded ignore list = %v", got)
	}
	if err := reloaded.Unignore("books/emma.md"); err != nil {
		t.Fatal(err)
	}
	if err := reloaded.Unignore("books/emma.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second unignore err = %v", err)
	}
}

func TestUpdateSettings(t *testing.T) {
	svc, _ := newTestService(vault())
	if _, err := svc.UpdateSettings(0, 100); err == nil {
		t.Error("expected validation error")
	}
	got, err := svc.UpdateSettings(70, 300)
	if err != nil {
		t.Fatal(err)
	}
	if got.DivWidth != 70 || svc.Settings().DivHeight != 300 {
		t.Errorf("settings = %+v", got)
	}
}

func TestWithDefaults(t *testing.T) {
	blobs := memBlobs{}
	svc := NewService(vault(), blobs, nil, WithDefaults(80, 250))
	if err := svc.Load(); err != nil {
		t.Fatal(err)
	}
	if s := svc.Settings(); s.DivWidth != 80 || s.DivHeight != 250 {
		t.Errorf("settings = %+v", s)
	}

	blobs[BlobKey] = []byte(`{"divHeight": 120}`)
	if err := svc.Load(); err != nil {
		t.Fatal(err)
	}
	if s := svc.Settings(); s.DivWidth != 80 || s.DivHeight != 120 || s.IgnoreList == nil {
		t.Errorf("persisted settings should win per field: %+v", s)
	}
}
