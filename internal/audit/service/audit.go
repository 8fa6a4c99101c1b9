package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"roomdesk/internal/audit/repository"
	"roomdesk/internal/events"
	"roomdesk/pkg/kafka"
	"roomdesk/pkg/logger"
	"roomdesk/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
)

// AuditService turns consumed events into audit log entries.
type AuditService struct {
	repo repository.AuditRepository
	log  *logger.Logger
	now  func() time.Time
}

func NewAuditService(repo repository.AuditRepository, log *logger.Logger) *AuditService {
	return &AuditService{repo: repo, log: log, now: time.Now}
}

// Handle is a kafka.MessageHandler. Malformed messages are permanent
// failures; store failures are retried.
func (s *AuditService) Handle(ctx context.Context, msg kafka.Message) error {
	entry, err := s.entryFrom(msg)
	if err != nil {
		return kafka.NewPermanentError("malformed event", err).
			WithDetail("offset", msg.Offset).
			WithDetail("event_id", msg.GetEventID())
	}

	inserted, err := s.repo.Insert(ctx, entry)
	if err != nil {
		return kafka.NewTransientError("failed to store audit entry", err)
	}
	if !inserted {
		s.log.Debug("Duplicate event ignored", "event_id", entry.EventID, "event_type", entry.EventType)
		return nil
	}

	s.log.Info("Audit entry stored",
		"event_id", entry.EventID,
		"event_type", entry.EventType,
		"key", entry.Key,
		"actor_id", entry.ActorID,
	)
	return nil
}

var (
	errMissingEventID = errors.New("missing event id header")
	errUnknownType    = errors.New("unknown event type")
	errNotObject      = errors.New("payload is not a JSON object")
)

func (s *AuditService) entryFrom(msg kafka.Message) (*model.AuditEntry, error) {
	eventID := msg.GetEventID()
	if eventID == "" {
		return nil, errMissingEventID
	}
	eventType := msg.GetEventType()
	if !events.KnownType(eventType) {
		return nil, errUnknownType
	}

	var doc bson.M
	if err := bson.UnmarshalExtJSON(msg.Value, false, &doc); err != nil {
		if !json.Valid(msg.Value) {
			return nil, err
		}
		return nil, errNotObject
	}

	occurredAt := msg.Timestamp
	if ts, ok := msg.GetHeader(kafka.HeaderTimestamp); ok {
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			occurredAt = parsed
		}
	}

	return &model.AuditEntry{
		EventID:       eventID,
		EventType:     eventType,
		Key:           msg.Key,
		ActorID:       msg.Headers[kafka.HeaderActorID],
		CorrelationID: msg.GetCorrelationID(),
		Source:        msg.Headers[kafka.HeaderSource],
		Payload:       json.RawMessage(msg.Value),
		PayloadDoc:    doc,
		OccurredAt:    occurredAt.UTC(),
		ReceivedAt:    s.now().UTC(),
	}, nil
}
