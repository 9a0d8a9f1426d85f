package scheduler

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type SpecKind int

const (
	SpecCron SpecKind = iota
	SpecInterval
)

// ParsedSpec is a schedule string normalized to either a cron expression or
// a fixed interval. Source records which notation produced it: "cron",
// "duration" or "hhmm".
type ParsedSpec struct {
	Kind   SpecKind
	Cron   string
	Every  time.Duration
	Source string
}

var errNonPositive = errors.New("interval must be > 0")

// ParseSchedule accepts
//
//	*/5 * * * *   @hourly   @every 90s   cron:<expr>
//	55m   2h30m   interval:<dur>   every:<dur>
//	02:30         (HH:MM read as a duration)
//
// Anything containing whitespace or starting with '@' is treated as cron.
func ParseSchedule(raw string) (ParsedSpec, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ParsedSpec{}, errors.New("schedule required")
	}

	if prefix, rest, ok := strings.Cut(s, ":"); ok {
		switch strings.ToLower(strings.TrimSpace(prefix)) {
		case "cron":
			expr := strings.TrimSpace(rest)
			if expr == "" {
				return ParsedSpec{}, errors.New("cron: prefix needs an expression")
			}
			return ParsedSpec{Kind: SpecCron, Cron: expr, Source: "cron"}, nil
		case "interval", "every":
			return intervalSpec(rest)
		}
	}

	if s[0] == '@' || strings.ContainsAny(s, " \t\r\n") {
		return ParsedSpec{Kind: SpecCron, Cron: s, Source: "cron"}, nil
	}
	ps, err := intervalSpec(s)
	if err == nil || errors.Is(err, errNonPositive) || strings.Contains(s, ":") {
		return ps, err
	}
	return ParsedSpec{}, fmt.Errorf("invalid schedule %q (want cron, HH:MM or a duration like 55m)", raw)
}

func intervalSpec(v string) (ParsedSpec, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return ParsedSpec{}, errors.New("interval required")
	}
	src := "duration"
	var (
		d   time.Duration
		err error
	)
	if h, m, ok := strings.Cut(v, ":"); ok {
		src = "hhmm"
		d, err = hhmm(h, m)
	} else if d, err = time.ParseDuration(v); err != nil {
		err = fmt.Errorf("invalid interval %q", v)
	}
	if err != nil {
		return ParsedSpec{}, err
	}
	if d <= 0 {
		return ParsedSpec{}, errNonPositive
	}
	return ParsedSpec{Kind: SpecInterval, Every: d, Source: src}, nil
}

func hhmm(h, m string) (time.Duration, error) {
	hours, err := strconv.Atoi(h)
	if err != nil || hours < 0 || len(h) > 3 {
		return 0, fmt.Errorf("invalid hours %q", h)
	}
	mins, err := strconv.Atoi(m)
	if err != nil || len(m) != 2 || mins > 59 {
		return 0, fmt.Errorf("invalid minutes %q", m)
	}
	return time.Duration(hours)*time.Hour + time.Duration(mins)*time.Minute, nil
}
