package jobs

import (
	"context"
	"fmt"
	"time"

	"roomdesk/internal/events"
	"roomdesk/pkg/config"
	"roomdesk/pkg/logger"
	"roomdesk/pkg/model"

	"github.com/robfig/cron/v3"
)

const digestKey = "conflict-stats"

type StatsSource interface {
	Stats(ctx context.Context) (*model.ConflictStats, error)
}

// DailyDigest publishes the statistics snapshot as a conflict.stats.daily event.
type DailyDigest struct {
	stats     StatsSource
	publisher events.Publisher
	cfg       *config.Config
	now       func() time.Time
}

func NewDailyDigest(stats StatsSource, publisher events.Publisher, cfg *config.Config) *DailyDigest {
	return &DailyDigest{
		stats:     stats,
		publisher: publisher,
		cfg:       cfg,
		now:       time.Now,
	}
}

func (d *DailyDigest) Run(ctx context.Context) error {
	stats, err := d.stats.Stats(ctx)
	if err != nil {
		return fmt.Errorf("stats digest: failed to compute statistics: %w", err)
	}

	now := d.now()
	loc := d.cfg.Location
	if loc == nil {
		loc = time.Local
	}
	payload := events.StatsDigestEvent{
		Day:      now.In(loc).Format(time.DateOnly),
		Timezone: loc.String(),
		Stats:    *stats,
	}

	if err := d.publisher.Publish(ctx, events.Event{
		Type:       events.TypeConflictStatsDaily,
		Key:        digestKey,
		OccurredAt: now,
		Payload:    payload,
	}); err != nil {
		return fmt.Errorf("stats digest: failed to publish: %w", err)
	}

	d.cfg.Log.Info("Stats digest published",
		"day", payload.Day,
		"pending_conflict_groups", stats.PendingConflictGroups,
		"bookings_in_conflict", stats.BookingsInConflict,
		"resolved_today", stats.ResolvedToday,
		"without_conflict", stats.WithoutConflict,
	)
	return nil
}

type Scheduler struct {
	cron *cron.Cron
	log  *logger.Logger
}

// NewScheduler registers the digest on cfg.StatsDigestSchedule, evaluated in
// the configured timezone. Overlapping runs are skipped.
func NewScheduler(cfg *config.Config, digest *DailyDigest) (*Scheduler, error) {
	log := cfg.Log.Component("stats_digest")
	cl := cronLogger{log: log}
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	_, err := c.AddFunc(cfg.StatsDigestSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := digest.Run(ctx); err != nil {
			log.Error("Stats digest job failed", "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid stats digest schedule %q: %w", cfg.StatsDigestSchedule, err)
	}

	return &Scheduler{cron: c, log: log}, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	for _, e := range s.cron.Entries() {
		s.log.Info("Scheduled job registered", "job", "stats_digest", "next_run", e.Next)
	}
}

// Stop prevents new runs and waits for a running one, bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.log.Warn("Stats digest job still running at shutdown")
	}
}

type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
