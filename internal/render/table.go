package render

import (
	"fmt"
	"html"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// WriteTable prints a view as a terminal table.
func WriteTable(w io.Writer, v *View) error {
	title := color.New(color.FgCyan, color.Bold).SprintFunc()
	if _, err := fmt.Fprintf(w, "%s  %s\n", title(v.Kind), v.Project); err != nil {
		return err
	}
	if v.Message != "" {
		_, err := fmt.Fprintln(w, color.New(color.FgYellow).Sprint(v.Message))
		return err
	}

	table := tablewriter.NewWriter(w)
	var data [][]string
	switch v.Chart {
	case "list":
		table.Header([]string{"Action", "Note"})
		dim := color.New(color.FgHiBlack).SprintFunc()
		for _, g := range v.Groups {
			if len(g.Entries) == 0 {
				data = append(data, []string{g.Action, dim("-")})
				continue
			}
			for _, e := range g.Entries {
				data = append(data, []string{g.Action, RefPath(e)})
			}
		}
	default:
		table.Header([]string{"Label", "Commits", "Share"})
		table.Configure(func(cfg *tablewriter.Config) {
			cfg.Row.Alignment.Global = tw.AlignRight
		})
		peak := 0
		for _, p := range v.Points {
			peak = max(peak, p.Value)
		}
		green := color.New(color.FgGreen, color.Bold).SprintFunc()
		for _, p := range v.Points {
			count := strconv.Itoa(p.Value)
			if peak > 0 && p.Value == peak {
				count = green(count)
			}
			data = append(data, []string{p.Label, count, fmt.Sprintf("%.1f%%", p.Percent)})
		}
	}

	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

// RefPath extracts the note path from a history entry.
func RefPath(ref string) string {
	_, rest, ok := strings.Cut(ref, `href="`)
	if !ok {
		return ref
	}
	p, _, _ := strings.Cut(rest, `"`)
	return html.UnescapeString(p)
}
