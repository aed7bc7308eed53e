package commits

import (
	"path"
	"regexp"
	"slices"
	"time"
)

// untitledRe matches the names the editor gives to freshly created notes.
var untitledRe = regexp.MustCompile(`^Untitled( \d+)?\.md$`)

// Event is one commit recorded by the Engine.
type Event struct {
	Path     string
	Title    string
	Commit   Commit
	Projects []ProjectKey
	At       time.Time
}

// Engine applies note lifecycle notifications and observations to a State.
// It is not safe for concurrent use.
type Engine struct {
	state *State
	now   func() time.Time
}

// NewEngine binds an engine to st. A nil clock means time.Now.
func NewEngine(st *State, now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{state: st, now: now}
}

// State returns the state the engine mutates.
func (e *Engine) State() *State {
	return e.state
}

// Initialize seeds one checkpoint per observed note, resets every tracked
// project's aggregate and marks the state initialized.
func (e *Engine) Initialize(all []Observation) {
	cps := make(map[string]Snapshot, len(all))
	for _, o := range all {
		cps[o.Path] = o.Snapshot
	}
	e.state.Checkpoints = cps
	e.state.resetAggregates()
	e.state.Initialized = true
}

// Created handles a new note. A note that already has a checkpoint (for
// example after an atomic save replaced the file) is observed instead.
func (e *Engine) Created(o Observation) []Event {
	if _, ok := e.state.Checkpoints[o.Path]; ok {
		return e.Observe(o)
	}
	e.state.Checkpoints[o.Path] = o.Snapshot
	return e.record(o.Path, Commit{Type: Create, Action: Created})
}

// Deleted handles a removed note. Unknown paths are ignored.
func (e *Engine) Deleted(notePath string) []Event {
	if _, ok := e.state.Checkpoints[notePath]; !ok {
		return nil
	}
	delete(e.state.Checkpoints, notePath)
	return e.record(notePath, Commit{Type: Refactor, Action: Deleted})
}

// Renamed moves the checkpoint of oldPath to the observed path. Renaming a
// note away from an auto-generated "Untitled" name only moves the checkpoint.
func (e *Engine) Renamed(oldPath string, o Observation) []Event {
	cp, ok := e.state.Checkpoints[oldPath]
	if !ok {
		return e.Created(o)
	}
	delete(e.state.Checkpoints, oldPath)
	e.state.Checkpoints[o.Path] = cp
	if untitledRe.MatchString(path.Base(oldPath)) {
		return nil
	}
	return e.record(o.Path, Commit{Type: Refactor, Action: Renamed})
}

// Observe classifies a note against its checkpoint. A note without a
// checkpoint is treated as created.
func (e *Engine) Observe(o Observation) []Event {
	cp, ok := e.state.Checkpoints[o.Path]
	if !ok {
		return e.Created(o)
	}
	if e.state.IsIgnored(o.Path) {
		return nil
	}
	found, next := Classify(cp, o.Snapshot, e.state.Settings.Thresholds())
	e.state.Checkpoints[o.Path] = next

	var out []Event
	for _, c := range found {
		out = append(out, e.record(o.Path, c)...)
	}
	return out
}

// Reconcile observes every note in all and treats checkpoints without a
// matching observation as deleted notes.
func (e *Engine) Reconcile(all []Observation) []Event {
	var out []Event
	seen := make(map[string]struct{}, len(all))
	for _, o := range all {
		seen[o.Path] = struct{}{}
		out = append(out, e.Observe(o)...)
	}

	var stale []string
	for p := range e.state.Checkpoints {
		if _, ok := seen[p]; !ok {
			stale = append(stale, p)
		}
	}
	slices.Sort(stale)
	for _, p := range stale {
		out = append(out, e.Deleted(p)...)
	}
	return out
}

func (e *Engine) record(notePath string, c Commit) []Event {
	if e.state.IsIgnored(notePath) {
		return nil
	}
	at := e.now()
	title := path.Base(notePath)
	projects := e.state.Record(notePath, title, c, at)
	return []Event{{
		Path:     notePath,
		Title:    trimNoteExt(title),
		Commit:   c,
		Projects: projects,
		At:       at,
	}}
}
