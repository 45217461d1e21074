package merge

// Result counts the outcome of one or more merges.
type Result struct {
	// Linked counts relinked paths, or paths that would be relinked in dry-run.
	Linked int
	// Saved adds the reference size once per linked path.
	Saved int64

	Vanished   int
	Changed    int
	Mismatched int
	Failed     int
	Abandoned  int

	Artifacts []string
}

func (r *Result) Add(other Result) {
	r.Linked += other.Linked
	r.Saved += other.Saved
	r.Vanished += other.Vanished
	r.Changed += other.Changed
	r.Mismatched += other.Mismatched
	r.Failed += other.Failed
	r.Abandoned += other.Abandoned
	r.Artifacts = append(r.Artifacts, other.Artifacts...)
}

// Failures returns the failure counters keyed by kind.
func (r Result) Failures() map[string]int {
	return map[string]int{
		"vanished":   r.Vanished,
		"changed":    r.Changed,
		"mismatched": r.Mismatched,
		"error":      r.Failed,
		"abandoned":  r.Abandoned,
		"artifact":   len(r.Artifacts),
	}
}
