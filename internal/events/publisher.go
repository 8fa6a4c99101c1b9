package events

import (
	"context"
	"fmt"

	"roomdesk/pkg/kafka"
	kafka_config "roomdesk/pkg/kafka/config"
	kafka_middleware "roomdesk/pkg/kafka/middleware"
	"roomdesk/pkg/logger"
)

type messagePublisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
	Close() error
}

type kafkaPublisher struct {
	producer messagePublisher
	source   string
}

// NewKafkaPublisher publishes every event type to the configured events topic.
func NewKafkaPublisher(cfg *kafka_config.Config, log *logger.Logger, source string, metrics *kafka_middleware.Metrics) (Publisher, error) {
	producer, err := kafka.NewProducer(cfg, log, cfg.EventsTopic, cfg.EventsDLQTopic)
	if err != nil {
		return nil, fmt.Errorf("failed to create events producer: %w", err)
	}
	producer.Use(kafka_middleware.LoggingProducerMiddleware(log))
	if metrics != nil {
		producer.Use(metrics.ProducerMiddleware())
	}
	return &kafkaPublisher{producer: producer, source: source}, nil
}

func (p *kafkaPublisher) Publish(ctx context.Context, event Event) error {
	msg, err := toMessage(event, p.source)
	if err != nil {
		return err
	}
	return p.producer.Publish(ctx, msg)
}

func (p *kafkaPublisher) Close() error {
	return p.producer.Close()
}

func toMessage(event Event, source string) (kafka.Message, error) {
	if !KnownType(event.Type) {
		return kafka.Message{}, fmt.Errorf("unknown event type %q", event.Type)
	}
	return kafka.NewMessage().
		WithKey(event.Key).
		WithValue(event.Payload).
		WithEventType(event.Type).
		WithEventID("").
		WithActorID(event.ActorID).
		WithCorrelationID(event.CorrelationID).
		WithSchemaVersion(SchemaVersion).
		WithSource(source).
		WithTimestamp(event.OccurredAt).
		Build()
}

type noopPublisher struct {
	log *logger.Logger
}

// NewNoopPublisher drops events. Used when Kafka is disabled.
func NewNoopPublisher(log *logger.Logger) Publisher {
	return &noopPublisher{log: log}
}

func (p *noopPublisher) Publish(_ context.Context, event Event) error {
	p.log.Debug("Event publishing disabled, dropping event", "event_type", event.Type, "key", event.Key)
	return nil
}

func (p *noopPublisher) Close() error { return nil }

// New picks the Kafka publisher when enabled and the no-op one otherwise.
func New(cfg *kafka_config.Config, log *logger.Logger, source string) (Publisher, error) {
	if cfg == nil || !cfg.Enabled {
		log.Info("Kafka disabled, events will not be published")
		return NewNoopPublisher(log), nil
	}
	return NewKafkaPublisher(cfg, log, source, kafka_middleware.NewMetrics())
}

// PublishBestEffort publishes on a context detached from cancellation and
// only logs failures. Event delivery never fails the request behind it.
func PublishBestEffort(ctx context.Context, p Publisher, log *logger.Logger, event Event) {
	if p == nil {
		return
	}
	if err := p.Publish(context.WithoutCancel(ctx), event); err != nil {
		log.Error("Failed to publish event",
			"event_type", event.Type,
			"key", event.Key,
			"error", err,
		)
	}
}
