package service

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"roomdesk/internal/events"
	"roomdesk/pkg/kafka"
	"roomdesk/pkg/logger"
	"roomdesk/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

type mockAuditRepository struct {
	entries map[string]*model.AuditEntry
	err     error
}

func (m *mockAuditRepository) Insert(_ context.Context, entry *model.AuditEntry) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if m.entries == nil {
		m.entries = map[string]*model.AuditEntry{}
	}
	if _, ok := m.entries[entry.EventID]; ok {
		return false, nil
	}
	m.entries[entry.EventID] = entry
	return true, nil
}

func newService(repo *mockAuditRepository) *AuditService {
	s := NewAuditService(repo, logger.New(logger.Config{Output: io.Discard}))
	s.now = func() time.Time { return time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC) }
	return s
}

func message(eventID, eventType, value string) kafka.Message {
	return kafka.Message{
		Key:   "room-1",
		Value: []byte(value),
		Headers: map[string]string{
			kafka.HeaderEventID:   eventID,
			kafka.HeaderEventType: eventType,
			kafka.HeaderActorID:   "op-1",
			kafka.HeaderTimestamp: "2026-03-09T11:59:00Z",
		},
	}
}

func TestHandle_StoresEntryOnce(t *testing.T) {
	repo := &mockAuditRepository{}
	s := newService(repo)
	msg := message("evt-1", events.TypeConflictResolved, `{"resolution":{"conflict_id":"c-1"}}`)

	require.NoError(t, s.Handle(context.Background(), msg))
	require.NoError(t, s.Handle(context.Background(), msg))

	require.Len(t, repo.entries, 1)
	entry := repo.entries["evt-1"]
	assert.Equal(t, events.TypeConflictResolved, entry.EventType)
	assert.Equal(t, "room-1", entry.Key)
	assert.Equal(t, "op-1", entry.ActorID)
	assert.Equal(t, time.Date(2026, 3, 9, 11, 59, 0, 0, time.UTC), entry.OccurredAt)

	doc, ok := entry.PayloadDoc.(bson.M)
	require.True(t, ok)
	assert.Contains(t, doc, "resolution")
}

func TestHandle_MalformedIsPermanent(t *testing.T) {
	tests := []struct {
		name string
		msg  kafka.Message
	}{
		{"missing event id", message("", events.TypeBookingCreated, `{}`)},
		{"unknown type", message("evt-1", "booking.exploded", `{}`)},
		{"not json", message("evt-1", events.TypeBookingCreated, `{"booking":`)},
		{"json array", message("evt-1", events.TypeBookingCreated, `[1,2]`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockAuditRepository{}
			err := newService(repo).Handle(context.Background(), tt.msg)

			require.Error(t, err)
			assert.Equal(t, kafka.ErrorTypePermanent, kafka.ClassifyError(err))
			assert.Empty(t, repo.entries)
		})
	}
}

func TestHandle_StoreFailureIsTransient(t *testing.T) {
	repo := &mockAuditRepository{err: errors.New("no primary")}
	err := newService(repo).Handle(context.Background(), message("evt-1", events.TypeBookingCreated, `{}`))

	require.Error(t, err)
	assert.True(t, kafka.ShouldRetry(err, 0, 3))
}
