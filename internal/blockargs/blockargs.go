// Package blockargs parses the key=value argument lines of rendered blocks.
package blockargs

import (
	"strconv"
	"strings"
)

// Args holds the parsed arguments of one block.
type Args map[string]string

// Parse reads one "key=value" pair per line. Lines without "=" and keys
// with an empty value are skipped so the caller's default stands. Later
// lines win over earlier ones.
func Parse(source string) Args {
	out := make(Args)
	for _, line := range strings.Split(source, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" || value == "" {
			continue
		}
		out[key] = value
	}
	return out
}

// String returns the value of key or def.
func (a Args) String(key, def string) string {
	if v, ok := a[key]; ok {
		return v
	}
	return def
}

// Int returns the integer value of key, or def when absent or malformed.
func (a Args) Int(key string, def int) int {
	v, ok := a[key]
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// List splits the value of key on sep, dropping blank items.
func (a Args) List(key, sep string) []string {
	v, ok := a[key]
	if !ok {
		return nil
	}
	var out []string
	for _, item := range strings.Split(v, sep) {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
