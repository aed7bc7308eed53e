// Package tracker owns the commit state of a vault: it feeds watcher events
// and periodic reconciliation into the engine, persists the state after every
// change and publishes what was recorded.
package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/notecommits/internal/apperr"
	"github.com/starford/notecommits/internal/commits"
	"github.com/starford/notecommits/internal/index"
	"github.com/starford/notecommits/internal/render"
	"github.com/starford/notecommits/internal/sse"
)

// BlobKey is the plugin_data key holding the commit state.
const BlobKey = "commits"

// Notes observes notes in the vault.
type Notes interface {
	Observe(ctx context.Context, notePath string) (commits.Observation, error)
	ObserveAll(ctx context.Context) ([]commits.Observation, error)
	Paths(ctx context.Context) ([]string, error)
}

// Publisher receives note changes and recorded commits.
type Publisher interface {
	PublishNoteEvent(kind, path, oldPath string)
	PublishCommit(c sse.CommitData)
}

// Tracker serializes every state change behind one mutex. Safe for
// concurrent use.
type Tracker struct {
	notes  Notes
	blobs  index.BlobStore
	pub    Publisher
	logger *slog.Logger

	mu     sync.Mutex
	engine *commits.Engine
}

// New creates a tracker. pub may be nil.
func New(notes Notes, blobs index.BlobStore, pub Publisher, logger *slog.Logger, defaults commits.Settings) *Tracker {
	return &Tracker{
		notes:  notes,
		blobs:  blobs,
		pub:    pub,
		logger: logger,
		engine: commits.NewEngine(commits.NewState(defaults), nil),
	}
}

// Load restores the persisted state. A state that was never initialized is
// seeded from the current vault.
func (t *Tracker) Load(ctx context.Context) error {
	t.mu.Lock()
	st := commits.NewState(t.engine.State().Settings)
	t.mu.Unlock()

	data, err := t.blobs.LoadBlob(BlobKey)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
	case err != nil:
		return err
	default:
		if err := json.Unmarshal(data, st); err != nil {
			return fmt.Errorf("tracker: decode state: %w", err)
		}
	}

	var all []commits.Observation
	if !st.Initialized {
		if all, err = t.notes.ObserveAll(ctx); err != nil {
			return fmt.Errorf("tracker: initial scan: %w", err)
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.engine = commits.NewEngine(st, nil)
	if st.Initialized {
		t.logger.Info("tracker: state loaded",
			slog.Int("checkpoints", len(st.Checkpoints)),
			slog.Int("projects", len(st.Tracked())))
		return nil
	}
	t.engine.Initialize(all)
	t.logger.Info("tracker: state initialized", slog.Int("checkpoints", len(all)))
	return t.persistLocked()
}

// HandleEvent applies one watcher event. Failures are logged.
func (t *Tracker) HandleEvent(ctx context.Context, ev index.Event) {
	var (
		o   commits.Observation
		err error
	)
	if ev.Kind == index.EventCreated || ev.Kind == index.EventRenamed {
		if o, err = t.notes.Observe(ctx, ev.Path); err != nil {
			t.logger.Warn("tracker: observe failed", slog.String("path", ev.Path), slog.String("error", err.Error()))
			return
		}
	}

	t.mu.Lock()
	var recorded []commits.Event
	switch ev.Kind {
	case index.EventCreated:
		recorded = t.engine.Created(o)
	case index.EventDeleted:
		recorded = t.engine.Deleted(ev.Path)
	case index.EventRenamed:
		recorded = t.engine.Renamed(ev.OldPath, o)
	}
	if ev.Kind != index.EventUpdated {
		if err := t.persistLocked(); err != nil {
			t.logger.Error("tracker: persist failed", slog.String("error", err.Error()))
		}
	}
	t.mu.Unlock()

	if t.pub != nil {
		t.pub.PublishNoteEvent(ev.Kind, ev.Path, ev.OldPath)
	}
	t.publish(recorded)
}

// Reconcile classifies every note against its checkpoint and records
// deletions missed by the watcher. The scan runs under the lock so that no
// watcher event is applied between the scan and its classification.
func (t *Tracker) Reconcile(ctx context.Context) error {
	t.mu.Lock()
	all, err := t.notes.ObserveAll(ctx)
	if err != nil {
		t.mu.Unlock()
		return err
	}
	recorded := t.engine.Reconcile(all)
	err = t.persistLocked()
	t.mu.Unlock()

	t.logger.Debug("tracker: reconciled", slog.Int("notes", len(all)), slog.Int("commits", len(recorded)))
	t.publish(recorded)
	return err
}

// Run reconciles once at start and then every interval until ctx is done.
func (t *Tracker) Run(ctx context.Context, interval time.Duration) error {
	tick := time.NewTicker(interval)
	defer tick.Stop()

	t.logger.Info("tracker: started", slog.Duration("interval", interval))
	for {
		if err := t.Reconcile(ctx); err != nil && ctx.Err() == nil {
			t.logger.Warn("tracker: reconcile failed", slog.String("error", err.Error()))
		}
		select {
		case <-ctx.Done():
			t.logger.Info("tracker: stopped")
			return nil
		case <-tick.C:
		}
	}
}

// Projects returns the tracked project keys, root first.
func (t *Tracker) Projects() []commits.ProjectKey {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.engine.State().Tracked()
}

// Track starts tracking the folder raw.
func (t *Tracker) Track(ctx context.Context, raw string) (commits.ProjectKey, error) {
	paths, err := t.notes.Paths(ctx)
	if err != nil {
		return "", err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	key, err := t.engine.State().Track(raw, paths)
	if err != nil {
		return "", err
	}
	t.logger.Info("tracker: project tracked", slog.String("project", string(key)))
	return key, t.persistLocked()
}

// Untrack stops tracking raw and drops its aggregate.
func (t *Tracker) Untrack(raw string) (commits.ProjectKey, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	key, err := t.engine.State().Untrack(raw)
	if err != nil {
		return "", err
	}
	t.logger.Info("tracker: project untracked", slog.String("project", string(key)))
	return key, t.persistLocked()
}

// Activity returns a copy of a tracked project's aggregate.
func (t *Tracker) Activity(raw string) (*commits.Aggregate, error) {
	key := commits.NormalizeKey(raw)
	if key == "" {
		key = commits.Root
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	agg, ok := t.engine.State().Aggregate(key)
	if !ok {
		return nil, apperr.ErrNotTracked
	}
	return agg, nil
}

// Render draws a commit block.
func (t *Tracker) Render(kind, source string) (*render.View, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st := t.engine.State()
	return render.Build(kind, source, st.Settings, st.Aggregate)
}

// Settings returns the current settings.
func (t *Tracker) Settings() commits.Settings {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.engine.State().Settings
}

// UpdateSettings validates and stores s.
func (t *Tracker) UpdateSettings(s commits.Settings) (commits.Settings, error) {
	if err := s.Validate(); err != nil {
		return commits.Settings{}, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.engine.State().Settings = s
	return s, t.persistLocked()
}

// IgnoreList returns the notes excluded from commit tracking.
func (t *Tracker) IgnoreList() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string{}, t.engine.State().IgnoreList...)
}

// Ignore excludes a note from commit tracking.
func (t *Tracker) Ignore(notePath string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.engine.State().Ignore(notePath); err != nil {
		return err
	}
	return t.persistLocked()
}

// Unignore resumes commit tracking of a note.
func (t *Tracker) Unignore(notePath string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.engine.State().Unignore(notePath); err != nil {
		return err
	}
	return t.persistLocked()
}

func (t *Tracker) persistLocked() error {
	data, err := json.Marshal(t.engine.State())
	if err != nil {
		return err
	}
	return t.blobs.SaveBlob(BlobKey, data)
}

func (t *Tracker) publish(recorded []commits.Event) {
	for _, ev := range recorded {
		t.logger.Debug("tracker: commit",
			slog.String("path", ev.Path),
			slog.String("action", ev.Commit.Action.String()))
		if t.pub == nil {
			continue
		}
		projects := make([]string, len(ev.Projects))
		for i, p := range ev.Projects {
			projects[i] = string(p)
		}
		t.pub.PublishCommit(sse.CommitData{
			Path:     ev.Path,
			Title:    ev.Title,
			Type:     ev.Commit.Type.String(),
			Action:   ev.Commit.Action.String(),
			Projects: projects,
			At:       ev.At,
		})
	}
}
