package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"standupbot/pkg/logx"
)

// AddSchedule parses schedule and registers either a cron or interval job.
//
// Supported schedule formats:
//   - Cron: "*/5 * * * *", "55 * * * *", "@hourly", "@every 55m"
//   - Interval duration: "55m", "2h30m"
//   - Interval HH:MM: "00:50" (50 minutes), "02:30" (2 hours 30 minutes)
func (s *Service) AddSchedule(name, schedule string, timeout time.Duration, job JobFunc) error {
	ps, err := ParseSchedule(schedule)
	if err != nil {
		return err
	}
	switch ps.Kind {
	case SpecCron:
		return s.AddCron(name, ps.Cron, timeout, job)
	case SpecInterval:
		return s.AddInterval(name, ps.Every, timeout, job)
	default:
		return fmt.Errorf("unsupported schedule kind")
	}
}

func (s *Service) AddInterval(name string, every, timeout time.Duration, job JobFunc) error {
	if every <= 0 {
		return errors.New("interval must be > 0")
	}
	return s.AddCron(name, "@every "+every.String(), timeout, job)
}

// AddCron registers job under name, replacing any schedule with that name.
func (s *Service) AddCron(name, spec string, timeout time.Duration, job JobFunc) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("name required")
	}
	if job == nil {
		return errors.New("job required")
	}
	if _, err := s.parser.Parse(spec); err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(name)
	s.defs = append(s.defs, scheduleDef{
		name:    name,
		spec:    spec,
		timeout: timeout,
		job:     job,
		stats:   &runStats{},
	})
	if s.c == nil {
		// Registered on Start.
		return nil
	}
	d := &s.defs[len(s.defs)-1]
	if err := s.addCronLocked(d); err != nil {
		s.log.Error("schedule register failed", logx.String("name", name), logx.String("spec", spec), logx.Err(err))
		return err
	}
	s.log.Debug("schedule registered",
		logx.String("name", name),
		logx.String("spec", spec),
		logx.Time("next", s.c.Entry(d.entryID).Next),
	)
	return nil
}

// Remove unschedules name. It reports whether something was removed.
func (s *Service) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := s.removeLocked(strings.TrimSpace(name))
	if removed {
		s.log.Debug("schedule removed", logx.String("name", name))
	}
	return removed
}

func (s *Service) removeLocked(name string) bool {
	n := 0
	removed := false
	for _, d := range s.defs {
		if d.name == name {
			if s.c != nil && d.entryID != 0 {
				s.c.Remove(d.entryID)
			}
			removed = true
			continue
		}
		s.defs[n] = d
		n++
	}
	s.defs = s.defs[:n]
	return removed
}

func (s *Service) addCronLocked(d *scheduleDef) error {
	clog := logx.CronLogger(s.log.With(logx.String("schedule", d.name)))
	job := cron.NewChain(cron.SkipIfStillRunning(clog)).Then(s.wrap(*d, s.ctx))
	eid, err := s.c.AddJob(d.spec, job)
	if err != nil {
		return err
	}
	d.entryID = eid
	return nil
}

func (s *Service) wrap(d scheduleDef, base context.Context) cron.Job {
	return cron.FuncJob(func() {
		ctx, cancel := base, context.CancelFunc(func() {})
		if d.timeout > 0 {
			ctx, cancel = context.WithTimeout(base, d.timeout)
		}
		defer cancel()

		start := time.Now()
		err := d.job(ctx)
		took := time.Since(start)

		d.stats.mu.Lock()
		d.stats.runs++
		d.stats.lastRun = start
		d.stats.lastTook = took
		d.stats.lastErr = ""
		if err != nil {
			d.stats.failures++
			d.stats.lastErr = err.Error()
		}
		d.stats.mu.Unlock()

		if err != nil {
			s.log.Warn("scheduled job failed", logx.String("name", d.name), logx.Duration("took", took), logx.Err(err))
			return
		}
		s.log.Debug("scheduled job done", logx.String("name", d.name), logx.Duration("took", took))
	})
}
