package results

// Summary aggregates a set of records.
type Summary struct {
	Iterations int `json:"iterations"`
	Passed     int `json:"passed"`
	Failed     int `json:"failed"`

	// TotalDuration and MaxDuration are in seconds.
	TotalDuration float64 `json:"total_duration"`
	MaxDuration   float64 `json:"max_duration"`

	// ExitCodes counts iterations per exit code.
	ExitCodes map[int]int `json:"exit_codes"`

	// Reports is the number of iterations that left a JUnit report, and
	// FailingTests the number of failing cases across them.
	Reports      int `json:"reports"`
	FailingTests int `json:"failing_tests"`

	// MinDiskUsedKB and MaxDiskUsedKB bound the disk usage seen after each run.
	MinDiskUsedKB int64 `json:"min_disk_used_KB"`
	MaxDiskUsedKB int64 `json:"max_disk_used_KB"`
}

// Summarize aggregates records.
func Summarize(records []*Record) Summary {
	s := Summary{ExitCodes: make(map[int]int)}

	for i, r := range records {
		s.Iterations++
		if r.Success {
			s.Passed++
		} else {
			s.Failed++
		}
		s.ExitCodes[r.ReturnCode]++

		s.TotalDuration += r.Duration
		s.MaxDuration = max(s.MaxDuration, r.Duration)

		if i == 0 {
			s.MinDiskUsedKB, s.MaxDiskUsedKB = r.TmpDiskUsedKB, r.TmpDiskUsedKB
		} else {
			s.MinDiskUsedKB = min(s.MinDiskUsedKB, r.TmpDiskUsedKB)
			s.MaxDiskUsedKB = max(s.MaxDiskUsedKB, r.TmpDiskUsedKB)
		}

		if r.JUnit != nil {
			s.Reports++
			s.FailingTests += r.JUnit.Failed()
		}
	}

	return s
}
