package scanner

// Stats counts what a scan saw. Found, Small and Large partition the regular, non-empty,
// non-excluded files; everything else is counted outside that total.
type Stats struct {
	Found int
	Small int
	Large int

	// Linked counts paths that share an inode with a path seen earlier in the same tree.
	Linked       int
	AlreadySaved int64

	Excluded    int
	Symlinks    int
	Empty       int
	Irregular   int
	OtherDevice int
	Ignored     int
	Artifacts   int
	Errors      int
}

func (s Stats) Total() int {
	return s.Found + s.Small + s.Large
}

// Skipped returns the skip counters keyed by reason.
func (s Stats) Skipped() map[string]int {
	return map[string]int{
		"small":        s.Small,
		"large":        s.Large,
		"excluded":     s.Excluded,
		"symlink":      s.Symlinks,
		"empty":        s.Empty,
		"irregular":    s.Irregular,
		"other_device": s.OtherDevice,
		"ignored":      s.Ignored,
		"artifact":     s.Artifacts,
		"error":        s.Errors,
	}
}

// Add accumulates other into s.
func (s *Stats) Add(other Stats) {
	s.Found += other.Found
	s.Small += other.Small
	s.Large += other.Large
	s.Linked += other.Linked
	s.AlreadySaved += other.AlreadySaved
	s.Excluded += other.Excluded
	s.Symlinks += other.Symlinks
	s.Empty += other.Empty
	s.Irregular += other.Irregular
	s.OtherDevice += other.OtherDevice
	s.Ignored += other.Ignored
	s.Artifacts += other.Artifacts
	s.Errors += other.Errors
}
