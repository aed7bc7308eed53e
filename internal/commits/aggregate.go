package commits

import (
	"encoding/json"
	"fmt"
	"html"
	"strconv"
	"time"
)

// HistoryCap bounds every recent-history list.
const HistoryCap = 50

// Counters counts commits per CommitType.
type Counters [numCommitTypes]int

// Total returns the sum of all counters.
func (c Counters) Total() int {
	n := 0
	for _, v := range c {
		n += v
	}
	return n
}

// MarshalJSON encodes counters as {"Create": n, ...}.
func (c Counters) MarshalJSON() ([]byte, error) {
	m := make(map[string]int, numCommitTypes)
	for i, v := range c {
		m[commitTypeNames[i]] = v
	}
	return json.Marshal(m)
}

// UnmarshalJSON decodes counters; unknown commit types are rejected.
func (c *Counters) UnmarshalJSON(b []byte) error {
	var m map[string]int
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	*c = Counters{}
	for k, v := range m {
		t, err := ParseCommitType(k)
		if err != nil {
			return err
		}
		c[t] = v
	}
	return nil
}

// HourHistogram counts commits per local hour of day.
type HourHistogram [24]int

// MarshalJSON encodes the histogram as {"0": n, ..., "23": n}.
func (h HourHistogram) MarshalJSON() ([]byte, error) {
	m := make(map[string]int, len(h))
	for i, v := range h {
		m[strconv.Itoa(i)] = v
	}
	return json.Marshal(m)
}

// UnmarshalJSON decodes an hour histogram; keys outside 0..23 are rejected.
func (h *HourHistogram) UnmarshalJSON(b []byte) error {
	var m map[string]int
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	*h = HourHistogram{}
	for k, v := range m {
		hour, err := strconv.Atoi(k)
		if err != nil || hour < 0 || hour >= len(h) {
			return fmt.Errorf("commits: invalid hour %q", k)
		}
		h[hour] = v
	}
	return nil
}

// WeekHistogram counts commits per weekday, indexed by time.Weekday.
type WeekHistogram [7]int

// MarshalJSON encodes the histogram as {"Mon": n, ...}.
func (w WeekHistogram) MarshalJSON() ([]byte, error) {
	m := make(map[string]int, len(w))
	for i, v := range w {
		m[weekdayNames[i]] = v
	}
	return json.Marshal(m)
}

// UnmarshalJSON decodes a weekday histogram; unknown day names are rejected.
func (w *WeekHistogram) UnmarshalJSON(b []byte) error {
	var m map[string]int
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	*w = WeekHistogram{}
	for k, v := range m {
		d, err := parseWeekday(k)
		if err != nil {
			return err
		}
		w[d] = v
	}
	return nil
}

// History holds rendered note references per Action, newest first.
type History map[Action][]string

func newHistory() History {
	h := make(History, numActions)
	for _, a := range Actions() {
		h[a] = []string{}
	}
	return h
}

// push inserts ref at the front of the action's list and drops the oldest
// entry once the list exceeds HistoryCap.
func (h History) push(a Action, ref string) {
	list := make([]string, 0, min(len(h[a])+1, HistoryCap))
	list = append(list, ref)
	list = append(list, h[a]...)
	if len(list) > HistoryCap {
		list = list[:HistoryCap]
	}
	h[a] = list
}

// Aggregate is the activity state owned by one tracked project.
type Aggregate struct {
	Counters Counters      `json:"counters"`
	Daily    HourHistogram `json:"daily"`
	Weekly   WeekHistogram `json:"weekly"`
	Recent   History       `json:"recent"`
}

// NewAggregate returns a zero-valued aggregate with an empty list per action.
func NewAggregate() *Aggregate {
	return &Aggregate{Recent: newHistory()}
}

// Clone returns a deep copy safe to hand to readers.
func (a *Aggregate) Clone() *Aggregate {
	c := &Aggregate{
		Counters: a.Counters,
		Daily:    a.Daily,
		Weekly:   a.Weekly,
		Recent:   make(History, len(a.Recent)),
	}
	for k, v := range a.Recent {
		c.Recent[k] = append(make([]string, 0, len(v)), v...)
	}
	return c
}

func (a *Aggregate) add(c Commit, ref string, at time.Time) {
	a.Counters[c.Type]++
	a.Recent.push(c.Action, ref)
	a.Daily[at.Hour()]++
	a.Weekly[at.Weekday()]++
}

// FormatRef renders the clickable reference stored in recent history.
func FormatRef(notePath, title string) string {
	return fmt.Sprintf(`<a class="internal-link" href="%s"> %s </a>`,
		html.EscapeString(notePath), html.EscapeString(trimNoteExt(title)))
}
