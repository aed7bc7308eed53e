// Package render turns a project's aggregate into the views drawn by the
// commit blocks.
package render

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/starford/notecommits/internal/blockargs"
	"github.com/starford/notecommits/internal/commits"
)

// Block kinds.
const (
	KindTypes  = "commit-types"
	KindWeekly = "commit-weekly"
	KindDaily  = "commit-daily"
	KindRecent = "commit-recent"
)

// ErrUnknownKind is returned for a block kind Build does not draw.
var ErrUnknownKind = errors.New("unknown block kind")

// Kinds lists the block kinds in display order.
func Kinds() []string {
	return []string{KindTypes, KindWeekly, KindDaily, KindRecent}
}

// Point is one labelled value of a chart.
type Point struct {
	Label   string  `json:"label"`
	Value   int     `json:"value"`
	Percent float64 `json:"percent"`
}

// Group is the newest-first history of one action.
type Group struct {
	Action  string   `json:"action"`
	Entries []string `json:"entries"`
}

// Style carries the container and chart colours of a block.
type Style struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Align  string `json:"align"`
	Fill   string `json:"fill"`
	Border string `json:"border"`
	Grid   string `json:"grid"`
}

// CSS returns the container style attribute.
func (s Style) CSS() string {
	return fmt.Sprintf("width:%d%%; height:%dpx; float: %s;", s.Width, s.Height, s.Align)
}

// View is a rendered block. Message is set instead of data when the block
// cannot be drawn.
type View struct {
	Kind    string  `json:"kind"`
	Project string  `json:"project"`
	Chart   string  `json:"chart"`
	Points  []Point `json:"points,omitempty"`
	Groups  []Group `json:"groups,omitempty"`
	Style   Style   `json:"style"`
	Message string  `json:"message,omitempty"`
}

// Lookup resolves a tracked project's aggregate.
type Lookup func(key commits.ProjectKey) (*commits.Aggregate, bool)

// Build renders the block of the given kind. Arguments missing from source
// fall back to settings.
func Build(kind, source string, settings commits.Settings, lookup Lookup) (*View, error) {
	chart, ok := chartOf(kind)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	args := blockargs.Parse(source)
	key := commits.NormalizeKey(args.String("project", string(commits.Root)))
	if key == "" {
		key = commits.Root
	}
	v := &View{
		Kind:    kind,
		Project: string(key),
		Chart:   chart,
		Style: Style{
			Width:  args.Int("width", settings.DivWidth),
			Height: args.Int("height", settings.DivHeight),
			Align:  args.String("align", settings.DivAlign),
			Fill:   args.String("fill", settings.FillColor),
			Border: args.String("border", settings.BorderColor),
			Grid:   args.String("grid", settings.GridColor),
		},
	}

	agg, ok := lookup(key)
	if !ok {
		v.Message = fmt.Sprintf("Project %q is not tracked", string(key))
		return v, nil
	}

	switch kind {
	case KindTypes:
		types := commits.CommitTypes()
		values := make([]int, len(types))
		labels := make([]string, len(types))
		for i, t := range types {
			values[i], labels[i] = agg.Counters[t], t.String()
		}
		v.Points = points(labels, values)
	case KindWeekly:
		days := commits.DisplayWeekdays
		values := make([]int, len(days))
		labels := make([]string, len(days))
		for i, d := range days {
			values[i], labels[i] = agg.Weekly[d], commits.WeekdayName(d)
		}
		v.Points = points(labels, values)
	case KindDaily:
		values := make([]int, len(agg.Daily))
		labels := make([]string, len(agg.Daily))
		for h := range agg.Daily {
			values[h], labels[h] = agg.Daily[h], strconv.Itoa(h)
		}
		v.Points = points(labels, values)
	case KindRecent:
		top := args.Int("top", settings.TopCommits)
		for _, a := range commits.Actions() {
			entries := agg.Recent[a]
			if top >= 0 && len(entries) > top {
				entries = entries[:top]
			}
			v.Groups = append(v.Groups, Group{Action: a.String(), Entries: append([]string{}, entries...)})
		}
	}
	return v, nil
}

func chartOf(kind string) (string, bool) {
	switch kind {
	case KindTypes:
		return "radar", true
	case KindWeekly, KindDaily:
		return "bar", true
	case KindRecent:
		return "list", true
	}
	return "", false
}

func points(labels []string, values []int) []Point {
	total := 0
	for _, n := range values {
		total += n
	}
	out := make([]Point, len(values))
	for i, n := range values {
		out[i] = Point{Label: labels[i], Value: n}
		if total > 0 {
			out[i].Percent = math.Round(float64(n)*1000/float64(total)) / 10
		}
	}
	return out
}
