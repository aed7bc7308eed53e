package commits

import (
	"encoding/json"
	"slices"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/notecommits/internal/apperr"
	"github.com/starford/notecommits/internal/models"
)

// StateVersion is the schema version written by this package.
//
// Version 1 is the legacy plugin layout: histories were appended oldest
// first and Saturday activity was counted under "Sun".
const StateVersion = 2

// Settings are the user-editable thresholds and block defaults.
type Settings struct {
	TopCommits      int     `json:"topCommits"`
	CommitThreshold int64   `json:"commitThreshold"`
	CommitPerc      float64 `json:"commitPerc"`
	DivWidth        int     `json:"divWidth"`
	DivHeight       int     `json:"divHeight"`
	DivAlign        string  `json:"divAlign"`
	FillColor       string  `json:"fillColor"`
	BorderColor     string  `json:"borderColor"`
	GridColor       string  `json:"gridColor"`
}

// Alignments accepted for rendered blocks.
var Alignments = []any{"left", "right", "center", "none"}

// Validate validates the settings.
func (s *Settings) Validate() error {
	return validation.ValidateStruct(s,
		validation.Field(&s.TopCommits, validation.Min(1), validation.Max(HistoryCap)),
		validation.Field(&s.CommitThreshold, validation.Min(int64(0))),
		validation.Field(&s.CommitPerc, validation.Min(0.0)),
		validation.Field(&s.DivWidth, validation.Min(1)),
		validation.Field(&s.DivHeight, validation.Min(1)),
		validation.Field(&s.DivAlign, validation.In(Alignments...)),
	)
}

// Thresholds returns the classification gates.
func (s Settings) Thresholds() Thresholds {
	return Thresholds{MinSize: s.CommitThreshold, Percent: s.CommitPerc}
}

// DefaultSettings returns the settings a fresh state starts with.
func DefaultSettings() Settings {
	return Settings{
		TopCommits:      2,
		CommitThreshold: 2000,
		CommitPerc:      15,
		DivWidth:        50,
		DivHeight:       400,
		DivAlign:        "left",
		FillColor:       "rgba(51, 153, 204, 0.4)",
		BorderColor:     "rgba(51, 153, 204, 1)",
		GridColor:       "grey",
	}
}

// State is the complete persisted state of the commits feature.
//
// The tracked project order and the per-project aggregates are kept
// together so that a tracked key always owns exactly one aggregate.
type State struct {
	Version     int
	Initialized bool
	Checkpoints map[string]Snapshot
	IgnoreList  []string
	Settings    Settings

	tracked  []ProjectKey
	projects map[ProjectKey]*Aggregate
}

// NewState returns an uninitialized state tracking only Root.
func NewState(settings Settings) *State {
	return &State{
		Version:     StateVersion,
		Checkpoints: make(map[string]Snapshot),
		IgnoreList:  []string{},
		Settings:    settings,
		tracked:     []ProjectKey{Root},
		projects:    map[ProjectKey]*Aggregate{Root: NewAggregate()},
	}
}

// Tracked returns the tracked project keys in insertion order.
func (s *State) Tracked() []ProjectKey {
	return slices.Clone(s.tracked)
}

// IsTracked reports whether key is tracked.
func (s *State) IsTracked(key ProjectKey) bool {
	_, ok := s.projects[key]
	return ok
}

// Aggregate returns a copy of the project's aggregate.
func (s *State) Aggregate(key ProjectKey) (*Aggregate, bool) {
	a, ok := s.projects[key]
	if !ok {
		return nil, false
	}
	return a.Clone(), true
}

// Track starts aggregating activity for the folder raw. It is rejected when
// the key is blank or Root, already tracked, or when none of notePaths lives
// under it. A rejected call leaves the state untouched.
func (s *State) Track(raw string, notePaths []string) (ProjectKey, error) {
	key := NormalizeKey(raw)
	switch {
	case key == "":
		return "", apperr.ErrInvalidProject
	case key == Root:
		return key, apperr.ErrRootProject
	case s.IsTracked(key):
		return key, apperr.ErrAlreadyTracked
	case !containsNote(key, notePaths):
		return key, apperr.ErrInvalidProject
	}
	s.tracked = append(s.tracked, key)
	s.projects[key] = NewAggregate()
	return key, nil
}

// Untrack stops tracking the folder raw and discards its aggregate.
func (s *State) Untrack(raw string) (ProjectKey, error) {
	key := NormalizeKey(raw)
	switch {
	case key == Root:
		return key, apperr.ErrRootProject
	case !s.IsTracked(key):
		return key, apperr.ErrNotTracked
	}
	s.tracked = slices.DeleteFunc(s.tracked, func(k ProjectKey) bool { return k == key })
	delete(s.projects, key)
	return key, nil
}

// Record attributes one commit on notePath to every matching project and
// returns the keys it was recorded against. title is the note's file name;
// a trailing note extension is stripped for display.
func (s *State) Record(notePath, title string, c Commit, at time.Time) []ProjectKey {
	var matched []ProjectKey
	ref := FormatRef(notePath, title)
	for _, key := range s.tracked {
		if !key.Matches(notePath) {
			continue
		}
		s.projects[key].add(c, ref, at)
		matched = append(matched, key)
	}
	return matched
}

// resetAggregates zeroes every tracked project's aggregate.
func (s *State) resetAggregates() {
	for _, key := range s.tracked {
		s.projects[key] = NewAggregate()
	}
}

// IsIgnored reports whether a note path is on the ignore list.
func (s *State) IsIgnored(notePath string) bool {
	return slices.Contains(s.IgnoreList, notePath)
}

// Ignore adds a note path to the ignore list.
func (s *State) Ignore(notePath string) error {
	notePath = strings.TrimSpace(notePath)
	if notePath == "" || notePath == string(Root) {
		return apperr.ErrInvalidPath
	}
	if s.IsIgnored(notePath) {
		return apperr.ErrAlreadyExists
	}
	s.IgnoreList = append(s.IgnoreList, notePath)
	return nil
}

// Unignore removes a note path from the ignore list.
func (s *State) Unignore(notePath string) error {
	notePath = strings.TrimSpace(notePath)
	if !s.IsIgnored(notePath) {
		return apperr.ErrNotFound
	}
	s.IgnoreList = slices.DeleteFunc(s.IgnoreList, func(p string) bool { return p == notePath })
	return nil
}

// stateJSON is the persisted layout. Key names follow the plugin's data.json
// so that existing data can be imported.
type stateJSON struct {
	Version         int                          `json:"version"`
	Initialized     bool                         `json:"initialized"`
	TrackedProjects []ProjectKey                 `json:"trackedProjects"`
	FilesCheckpoint map[string]Snapshot          `json:"filesCheckpoint"`
	CommitTypes     map[ProjectKey]Counters      `json:"commitTypes"`
	DailyCommits    map[ProjectKey]HourHistogram `json:"dailyCommits"`
	WeeklyCommits   map[ProjectKey]WeekHistogram `json:"weeklyCommits"`
	RecentCommits   map[ProjectKey]History       `json:"recentCommits"`
	IgnoreList      []string                     `json:"ignoreList"`
	Settings
}

// MarshalJSON encodes the state in the persisted layout.
func (s *State) MarshalJSON() ([]byte, error) {
	out := stateJSON{
		Version:         s.Version,
		Initialized:     s.Initialized,
		TrackedProjects: s.tracked,
		FilesCheckpoint: s.Checkpoints,
		CommitTypes:     make(map[ProjectKey]Counters, len(s.tracked)),
		DailyCommits:    make(map[ProjectKey]HourHistogram, len(s.tracked)),
		WeeklyCommits:   make(map[ProjectKey]WeekHistogram, len(s.tracked)),
		RecentCommits:   make(map[ProjectKey]History, len(s.tracked)),
		IgnoreList:      s.IgnoreList,
		Settings:        s.Settings,
	}
	for _, key := range s.tracked {
		a := s.projects[key]
		out.CommitTypes[key] = a.Counters
		out.DailyCommits[key] = a.Daily
		out.WeeklyCommits[key] = a.Weekly
		out.RecentCommits[key] = a.Recent
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the persisted layout. Settings absent from the
// document keep their current values. Tracked keys are de-duplicated, Root is
// always present, missing aggregates are created empty and aggregates of
// untracked keys are dropped. Legacy documents are migrated to StateVersion.
func (s *State) UnmarshalJSON(b []byte) error {
	in := stateJSON{Settings: s.Settings}
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}

	tracked := []ProjectKey{Root}
	for _, k := range in.TrackedProjects {
		if k == "" || slices.Contains(tracked, k) {
			continue
		}
		tracked = append(tracked, k)
	}

	projects := make(map[ProjectKey]*Aggregate, len(tracked))
	for _, k := range tracked {
		a := NewAggregate()
		a.Counters = in.CommitTypes[k]
		a.Daily = in.DailyCommits[k]
		a.Weekly = in.WeeklyCommits[k]
		for action, refs := range in.RecentCommits[k] {
			if refs == nil {
				refs = []string{}
			}
			a.Recent[action] = refs
		}
		projects[k] = a
	}

	if in.Version < 2 {
		for _, a := range projects {
			for action, refs := range a.Recent {
				a.Recent[action] = migrateHistory(refs)
			}
		}
		in.Version = StateVersion
	}

	if in.FilesCheckpoint == nil {
		in.FilesCheckpoint = make(map[string]Snapshot)
	}
	if in.IgnoreList == nil {
		in.IgnoreList = []string{}
	}

	s.Version = in.Version
	s.Initialized = in.Initialized
	s.Checkpoints = in.FilesCheckpoint
	s.IgnoreList = in.IgnoreList
	s.Settings = in.Settings
	s.tracked = tracked
	s.projects = projects
	return nil
}

// migrateHistory converts a legacy list to newest-first order. Below the cap
// legacy lists were appended, so they are reversed. A list that reached the
// cap holds newest-first inserts followed by the old appended tail and only
// needs trimming.
func migrateHistory(refs []string) []string {
	if len(refs) <= HistoryCap {
		slices.Reverse(refs)
		return refs
	}
	return refs[:HistoryCap]
}

func trimNoteExt(name string) string {
	return strings.TrimSuffix(name, models.NoteExt)
}
