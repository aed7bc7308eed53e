// Package parser extracts frontmatter, links, embeds, tags and blocks from Markdown content.
package parser

import (
	"bytes"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/notecommits/internal/models"
)

var (
	wikilinkRe = regexp.MustCompile(`(!?)\[\[(.*?)\]\]`)
	mdLinkRe   = regexp.MustCompile(`(!?)\[[^\]]*\]\(([^)\s]+)\)`)
	tagRe      = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)
	blockRe    = regexp.MustCompile(`\s\^([A-Za-z0-9-]+)\s*$`)
	schemeRe   = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.-]*:`)
)

// Result holds the output of parsing a Markdown file.
type Result struct {
	Frontmatter map[string]interface{}
	Body        string
	Links       []string
	Embeds      []string
	Tags        []string
	Blocks      []models.Block
	Title       string
}

// LinkCount returns the number of distinct targets referenced either as a
// link or as an embed.
func (r *Result) LinkCount() int {
	seen := make(map[string]struct{}, len(r.Links)+len(r.Embeds))
	for _, l := range r.Links {
		seen[l] = struct{}{}
	}
	for _, e := range r.Embeds {
		seen[e] = struct{}{}
	}
	return len(seen)
}

// Parse extracts frontmatter, body, links, embeds, tags and blocks from raw Markdown bytes.
func Parse(data []byte) (*Result, error) {
	fm, body, err := splitFrontmatter(data)
	if err != nil {
		return nil, err
	}

	links, embeds := extractLinks(body)

	return &Result{
		Frontmatter: fm,
		Body:        body,
		Links:       links,
		Embeds:      embeds,
		Tags:        extractTags(body, fm),
		Blocks:      extractBlocks(body),
		Title:       deriveTitle(fm, body),
	}, nil
}

// splitFrontmatter separates YAML frontmatter (between leading --- delimiters)
// from the Markdown body. If no frontmatter is found the entire content is body.
func splitFrontmatter(data []byte) (map[string]interface{}, string, error) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data), nil
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, string(data), nil
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(afterDelim), "\n\r")

	var fm map[string]interface{}
	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		// Invalid YAML: the whole file is body.
		return nil, string(data), nil
	}

	return fm, body, nil
}

// extractLinks returns deduplicated link and embed targets. Wikilink aliases
// ([[Target|Alias]]) are reduced to the target; external URLs are skipped.
func extractLinks(body string) (links, embeds []string) {
	seenLink := make(map[string]struct{})
	seenEmbed := make(map[string]struct{})

	add := func(embed bool, target string) {
		target = strings.TrimSpace(target)
		if target == "" {
			return
		}
		if embed {
			if _, ok := seenEmbed[target]; !ok {
				seenEmbed[target] = struct{}{}
				embeds = append(embeds, target)
			}
			return
		}
		if _, ok := seenLink[target]; !ok {
			seenLink[target] = struct{}{}
			links = append(links, target)
		}
	}

	for _, m := range wikilinkRe.FindAllStringSubmatch(body, -1) {
		target := m[2]
		if i := strings.Index(target, "|"); i >= 0 {
			target = target[:i]
		}
		add(m[1] == "!", target)
	}
	for _, m := range mdLinkRe.FindAllStringSubmatch(body, -1) {
		if schemeRe.MatchString(m[2]) {
			continue
		}
		add(m[1] == "!", m[2])
	}
	return links, embeds
}

// extractTags collects tags from the frontmatter "tags" field and inline #tags.
func extractTags(body string, fm map[string]interface{}) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(s string) {
		s = strings.TrimPrefix(strings.TrimSpace(s), "#")
		if s == "" {
			return
		}
		if _, dup := seen[s]; dup {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}

	if fm != nil {
		switch v := fm["tags"].(type) {
		case []interface{}:
			for _, item := range v {
				if s, ok := item.(string); ok {
					add(s)
				}
			}
		case string:
			for _, s := range strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ' ' }) {
				add(s)
			}
		}
	}

	for _, m := range tagRe.FindAllStringSubmatch(body, -1) {
		add(m[1])
	}

	return out
}

// extractBlocks returns every paragraph ending in a ^block-id marker, with
// the marker removed from its text.
func extractBlocks(body string) []models.Block {
	var (
		out       []models.Block
		paragraph []string
	)
	for _, line := range strings.Split(body, "\n") {
		if strings.TrimSpace(line) == "" {
			paragraph = paragraph[:0]
			continue
		}
		m := blockRe.FindStringSubmatchIndex(line)
		if m == nil {
			paragraph = append(paragraph, line)
			continue
		}
		text := strings.Join(append(paragraph, line[:m[0]]), "\n")
		out = append(out, models.Block{
			ID:   line[m[2]:m[3]],
			Text: strings.TrimSpace(text),
		})
		paragraph = paragraph[:0]
	}
	return out
}

// deriveTitle returns the frontmatter "title" if present, otherwise the first
// H1 heading, otherwise empty string.
func deriveTitle(fm map[string]interface{}, body string) string {
	if fm != nil {
		if s, ok := fm["title"].(string); ok && s != "" {
			return s
		}
	}
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}
