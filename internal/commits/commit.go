// Package commits classifies note-editing activity and aggregates it per
// tracked project.
//
// A note's last observed Snapshot is its checkpoint. Comparing a fresh
// Snapshot with the checkpoint yields zero or more Commits, and every Commit
// is recorded against each tracked project whose path prefix contains the
// note: a counter per CommitType, hour-of-day and weekday histograms, and a
// capped newest-first history per Action.
package commits

import (
	"fmt"
	"time"
)

// CommitType is the kind of activity a Commit represents.
type CommitType int

// Commit types. The order fixes the layout of Counters.
const (
	Create CommitType = iota
	Expand
	Refactor
	Link

	numCommitTypes
)

var commitTypeNames = [numCommitTypes]string{"Create", "Expand", "Refactor", "Link"}

// CommitTypes returns every commit type in display order.
func CommitTypes() []CommitType {
	return []CommitType{Create, Expand, Refactor, Link}
}

func (c CommitType) String() string {
	if c < 0 || c >= numCommitTypes {
		return fmt.Sprintf("CommitType(%d)", int(c))
	}
	return commitTypeNames[c]
}

// ParseCommitType maps a commit type name back to its value.
func ParseCommitType(s string) (CommitType, error) {
	for i, name := range commitTypeNames {
		if name == s {
			return CommitType(i), nil
		}
	}
	return 0, fmt.Errorf("commits: unknown commit type %q", s)
}

// Action is the history label of a Commit ("Expanded", "Removed Tags from", ...).
type Action int

// Actions. The order is the display order of the recent-history block.
const (
	Created Action = iota
	Deleted
	Renamed
	Expanded
	Refactored
	Tagged
	Linked
	RemovedTags
	RemovedLinks

	numActions
)

var actionLabels = [numActions]string{
	"Created",
	"Deleted",
	"Renamed",
	"Expanded",
	"Refactored",
	"Tagged",
	"Linked",
	"Removed Tags from",
	"Removed Links from",
}

// Actions returns every action in display order.
func Actions() []Action {
	out := make([]Action, numActions)
	for i := range out {
		out[i] = Action(i)
	}
	return out
}

func (a Action) String() string {
	if a < 0 || a >= numActions {
		return fmt.Sprintf("Action(%d)", int(a))
	}
	return actionLabels[a]
}

// ParseAction maps an action label back to its value.
func ParseAction(s string) (Action, error) {
	for i, label := range actionLabels {
		if label == s {
			return Action(i), nil
		}
	}
	return 0, fmt.Errorf("commits: unknown action %q", s)
}

// MarshalText encodes the action as its label.
func (a Action) MarshalText() ([]byte, error) {
	if a < 0 || a >= numActions {
		return nil, fmt.Errorf("commits: invalid action %d", int(a))
	}
	return []byte(actionLabels[a]), nil
}

// UnmarshalText decodes an action label.
func (a *Action) UnmarshalText(b []byte) error {
	v, err := ParseAction(string(b))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// Commit is one classified activity event.
type Commit struct {
	Type   CommitType
	Action Action
}

func (c Commit) String() string {
	return c.Type.String() + "/" + c.Action.String()
}

var weekdayNames = [7]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

// WeekdayName returns the short weekday label used by the weekly histogram.
func WeekdayName(d time.Weekday) string {
	return weekdayNames[d]
}

// DisplayWeekdays is the Monday-first order of the weekly block.
var DisplayWeekdays = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday,
	time.Friday, time.Saturday, time.Sunday,
}

func parseWeekday(s string) (time.Weekday, error) {
	for i, name := range weekdayNames {
		if name == s {
			return time.Weekday(i), nil
		}
	}
	return 0, fmt.Errorf("commits: unknown weekday %q", s)
}
