package commits

import (
	"strings"

	"github.com/starford/notecommits/internal/models"
)

// ProjectKey is a vault-relative folder whose notes are aggregated together.
type ProjectKey string

// Root is the project that spans the whole vault.
const Root ProjectKey = "/"

// NormalizeKey trims whitespace and surrounding slashes from user input.
// Input made only of slashes becomes Root; blank input stays empty.
func NormalizeKey(raw string) ProjectKey {
	k := strings.TrimSpace(raw)
	if k == "" {
		return ""
	}
	k = strings.Trim(k, "/")
	if k == "" {
		return Root
	}
	return ProjectKey(k)
}

// Matches reports whether a note path belongs to the project. Root matches
// every note; other keys match notes below "key/". The key is compared
// literally, so characters such as '.' or '(' in folder names carry no
// special meaning.
func (k ProjectKey) Matches(notePath string) bool {
	if !strings.HasSuffix(notePath, models.NoteExt) {
		return false
	}
	if k == Root {
		return true
	}
	return strings.HasPrefix(notePath, string(k)+"/")
}

// containsNote reports whether at least one of paths lives under key.
func containsNote(key ProjectKey, paths []string) bool {
	for _, p := range paths {
		if key.Matches(p) {
			return true
		}
	}
	return false
}
