package worker

import "log/slog"

// Stats accumulates the outcome counts of one worker run.
type Stats struct {
	Claimed   int
	Completed int
	Failed    int
	NotFound  int
	Conflicts int
}

func (s *Stats) add(other Stats) {
	s.Claimed += other.Claimed
	s.Completed += other.Completed
	s.Failed += other.Failed
	s.NotFound += other.NotFound
	s.Conflicts += other.Conflicts
}

// LogSummary writes the run totals to the log.
func (s *Stats) LogSummary() {
	slog.Info("Run complete",
		"claimed", s.Claimed,
		"completed", s.Completed,
		"failed", s.Failed,
		"not_found", s.NotFound,
		"conflicts", s.Conflicts)
}
