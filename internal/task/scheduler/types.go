package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"standupbot/pkg/logx"
)

// Config controls the scheduler.
type Config struct {
	Timezone string // IANA TZ, e.g. "Asia/Jakarta"; empty means Local
}

// JobFunc is a scheduled job. ctx carries the job timeout.
type JobFunc func(ctx context.Context) error

type scheduleDef struct {
	name    string
	spec    string // cron spec or @every
	timeout time.Duration
	job     JobFunc
	entryID cron.EntryID
	stats   *runStats
}

type runStats struct {
	mu       sync.Mutex
	runs     uint64
	failures uint64
	lastRun  time.Time
	lastTook time.Duration
	lastErr  string
}

type Service struct {
	mu sync.Mutex

	log logx.Logger
	cfg Config
	loc *time.Location

	parser cron.Parser
	c      *cron.Cron
	ctx    context.Context
	defs   []scheduleDef
}

type ScheduleInfo struct {
	Name     string
	Spec     string
	Timeout  time.Duration
	Next     time.Time
	Prev     time.Time
	Runs     uint64
	Failures uint64
	LastTook time.Duration
	LastErr  string
}

type Snapshot struct {
	Running   bool
	Timezone  string
	Schedules []ScheduleInfo
}
