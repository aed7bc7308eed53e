package noteservice

import (
	"context"
	"errors"
	"testing"

	"github.com/starford/notecommits/internal/apperr"
	"github.com/starford/notecommits/internal/testutil"
)

func newTestService(t *testing.T) (string, *Service) {
	t.Helper()
	vault, store := testutil.TestVault(t)
	return vault, NewService(store, testutil.TestDB(t), testutil.Logger())
}

func TestObserve(t *testing.T) {
	vault, svc := newTestService(t)
	content := "---\ntags: [a]\n---\n#b links to [[x]] and [y](y.md)\n"
	testutil.WriteNote(t, vault, "Proj/n.md", content)

	o, err := svc.Observe(context.Background(), "Proj/n.md")
	if err != nil {
		t.Fatal(err)
	}
	if o.Path != "Proj/n.md" || o.Size != int64(len(content)) || o.Tags != 2 || o.Links != 2 {
		t.Errorf("observation = %+v", o)
	}
	rows, _ := svc.Candidates(context.Background())
	if len(rows) != 1 || rows[0].Path != "Proj/n.md" {
		t.Errorf("index rows = %+v", rows)
	}
}

func TestObserve_Missing(t *testing.T) {
	_, svc := newTestService(t)
	if _, err := svc.Observe(context.Background(), "nope.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestObserveAllAndPaths(t *testing.T) {
	vault, svc := newTestService(t)
	testutil.WriteNote(t, vault, "a.md", "a")
	testutil.WriteNote(t, vault, "dir/b.md", "bb")
	testutil.WriteNote(t, vault, "dir/image.png", "png")
	testutil.WriteNote(t, vault, ".obsidian/workspace.md", "hidden")

	all, err := svc.ObserveAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("observations = %+v", all)
	}
	paths, _ := svc.Paths(context.Background())
	if len(paths) != 2 {
		t.Errorf("paths = %v", paths)
	}
}

func TestGetNote(t *testing.T) {
	vault, svc := newTestService(t)
	testutil.WriteNote(t, vault, "q.md", "Intro\n\nA quote worth keeping ^keep\n")

	d, err := svc.GetNote(context.Background(), "q.md")
	if err != nil {
		t.Fatal(err)
	}
	if d.Title != "q" {
		t.Errorf("title = %q", d.Title)
	}
	if len(d.Blocks) != 1 || d.Blocks[0].ID != "keep" || d.Blocks[0].Text != "A quote worth keeping" {
		t.Errorf("blocks = %+v", d.Blocks)
	}
}
