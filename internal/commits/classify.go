package commits

// Snapshot is the observable state of a note at one point in time.
type Snapshot struct {
	Size  int64 `json:"size"`
	Links int   `json:"links"`
	Tags  int   `json:"tags"`
}

// Observation is a freshly extracted Snapshot for a note path.
type Observation struct {
	Path     string
	Snapshot Snapshot
}

// Thresholds gate size-based classification. They are global settings, not
// per-note state.
type Thresholds struct {
	// MinSize is the size in bytes a note must exceed before size changes count.
	MinSize int64
	// Percent is the relative size change, against the checkpoint, that
	// counts as an expansion or a refactor.
	Percent float64
}

// Classify compares a note's checkpoint with its current snapshot and returns
// the commits that occurred together with the next checkpoint.
//
// Size, tag and link rules are evaluated independently, so one observation
// can yield several commits. The returned checkpoint advances only the
// dimensions that fired; sub-threshold drift never moves the baseline.
func Classify(old, cur Snapshot, th Thresholds) ([]Commit, Snapshot) {
	var out []Commit
	next := old

	if cur.Size > th.MinSize {
		delta := float64(cur.Size - old.Size)
		gate := th.Percent / 100 * float64(old.Size)
		if delta > gate {
			out = append(out, Commit{Type: Expand, Action: Expanded})
			next.Size = cur.Size
		}
		if delta < -gate {
			out = append(out, Commit{Type: Refactor, Action: Refactored})
			next.Size = cur.Size
		}
	}

	switch tagDelta := cur.Tags - old.Tags; {
	case tagDelta > 0:
		out = append(out, Commit{Type: Link, Action: Tagged})
		next.Tags = cur.Tags
	case tagDelta < 0:
		out = append(out, Commit{Type: Refactor, Action: RemovedTags})
		next.Tags = cur.Tags
	}

	switch linkDelta := cur.Links - old.Links; {
	case linkDelta > 0:
		out = append(out, Commit{Type: Link, Action: Linked})
		next.Links = cur.Links
	case linkDelta < 0:
		out = append(out, Commit{Type: Refactor, Action: RemovedLinks})
		next.Links = cur.Links
	}

	return out, next
}
