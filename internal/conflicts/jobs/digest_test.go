package jobs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"roomdesk/internal/events"
	"roomdesk/pkg/config"
	"roomdesk/pkg/logger"
	"roomdesk/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statsFunc func(ctx context.Context) (*model.ConflictStats, error)

func (f statsFunc) Stats(ctx context.Context) (*model.ConflictStats, error) { return f(ctx) }

type recordingPublisher struct {
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func testConfig(out io.Writer) *config.Config {
	return &config.Config{
		Log:                 logger.New(logger.Config{Output: out}),
		Location:            time.FixedZone("UTC-3", -3*60*60),
		StatsDigestSchedule: "0 18 * * *",
		RequestTimeout:      time.Second,
	}
}

func TestDailyDigest_Run(t *testing.T) {
	var buf bytes.Buffer
	publisher := &recordingPublisher{}
	digest := NewDailyDigest(statsFunc(func(context.Context) (*model.ConflictStats, error) {
		return &model.ConflictStats{PendingConflictGroups: 2, ResolvedToday: 5}, nil
	}), publisher, testConfig(&buf))
	digest.now = func() time.Time { return time.Date(2026, 3, 10, 1, 0, 0, 0, time.UTC) }

	require.NoError(t, digest.Run(context.Background()))
	require.Len(t, publisher.events, 1)

	e := publisher.events[0]
	assert.Equal(t, events.TypeConflictStatsDaily, e.Type)
	payload, ok := e.Payload.(events.StatsDigestEvent)
	require.True(t, ok)
	assert.Equal(t, "2026-03-09", payload.Day, "local day in UTC-3")
	assert.Equal(t, 5, payload.Stats.ResolvedToday)
	assert.Contains(t, buf.String(), "Stats digest published")
}

func TestDailyDigest_Failures(t *testing.T) {
	statsErr := NewDailyDigest(statsFunc(func(context.Context) (*model.ConflictStats, error) {
		return nil, errors.New("db down")
	}), &recordingPublisher{}, testConfig(io.Discard))
	assert.ErrorContains(t, statsErr.Run(context.Background()), "compute statistics")

	publishErr := NewDailyDigest(statsFunc(func(context.Context) (*model.ConflictStats, error) {
		return &model.ConflictStats{}, nil
	}), &recordingPublisher{err: errors.New("broker down")}, testConfig(io.Discard))
	assert.ErrorContains(t, publishErr.Run(context.Background()), "failed to publish")
}

func TestNewScheduler(t *testing.T) {
	cfg := testConfig(io.Discard)
	digest := NewDailyDigest(statsFunc(func(context.Context) (*model.ConflictStats, error) {
		return &model.ConflictStats{}, nil
	}), &recordingPublisher{}, cfg)

	s, err := NewScheduler(cfg, digest)
	require.NoError(t, err)
	s.Start()
	require.Len(t, s.cron.Entries(), 1)
	next := s.cron.Entries()[0].Next.In(cfg.Location)
	assert.Equal(t, 18, next.Hour())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)

	cfg.StatsDigestSchedule = "every day"
	_, err = NewScheduler(cfg, digest)
	assert.Error(t, err)
}
