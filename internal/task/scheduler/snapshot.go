package scheduler

import "time"

func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	tz := s.cfg.Timezone
	if s.loc != nil && tz == "" {
		tz = s.loc.String()
	}
	out := Snapshot{Running: s.c != nil, Timezone: tz, Schedules: make([]ScheduleInfo, 0, len(s.defs))}
	for _, d := range s.defs {
		it := ScheduleInfo{Name: d.name, Spec: d.spec, Timeout: d.timeout}
		if s.c != nil && d.entryID != 0 {
			e := s.c.Entry(d.entryID)
			it.Next = e.Next
			it.Prev = e.Prev
		}
		d.stats.mu.Lock()
		it.Runs = d.stats.runs
		it.Failures = d.stats.failures
		it.LastTook = d.stats.lastTook
		it.LastErr = d.stats.lastErr
		if it.Prev.IsZero() {
			it.Prev = d.stats.lastRun
		}
		d.stats.mu.Unlock()
		out.Schedules = append(out.Schedules, it)
	}
	return out
}

// Next returns the next trigger time of name, if scheduled.
func (s *Service) Next(name string) (time.Time, bool) {
	for _, it := range s.Snapshot().Schedules {
		if it.Name == name && !it.Next.IsZero() {
			return it.Next, true
		}
	}
	return time.Time{}, false
}
