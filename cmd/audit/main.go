package main

import (
	"context"
	"errors"

	"roomdesk/internal/audit/repository"
	"roomdesk/internal/audit/service"
	"roomdesk/pkg/app"
	"roomdesk/pkg/config"
	"roomdesk/pkg/kafka"
	kafka_config "roomdesk/pkg/kafka/config"
	kafka_middleware "roomdesk/pkg/kafka/middleware"
)

const ServiceName = "audit"

type auditDetails struct {
	Topic   string                           `json:"topic"`
	GroupID string                           `json:"group_id"`
	Lag     int64                            `json:"lag"`
	Metrics kafka_middleware.MetricsSnapshot `json:"metrics"`
}

func main() {
	cfg := config.Load(ServiceName)

	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	if !kafkaCfg.Enabled {
		cfg.Log.Fatal("Audit consumer requires Kafka, set KAFKA_ENABLED=true")
	}
	kafkaCfg.LogConfiguration(cfg.Log)

	cfg.SetMongo()
	cfg.Log.Info("Starting Audit consumer")

	consumerLog := cfg.Log.Component("consumer")
	auditService := service.NewAuditService(repository.NewMongoAuditRepository(cfg), consumerLog)
	metrics := kafka_middleware.NewMetrics()

	consumer, err := kafka.NewConsumer(kafkaCfg, consumerLog, kafkaCfg.EventsTopic, kafkaCfg.AuditGroupID, kafkaCfg.EventsDLQTopic, auditService.Handle)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka consumer", "error", err)
	}
	consumer.Use(kafka_middleware.LoggingConsumerMiddleware(consumerLog))
	consumer.Use(metrics.ConsumerMiddleware())

	serverApp := app.NewApplication(cfg)
	serverApp.Health().SetDetails(func() any {
		return auditDetails{
			Topic:   kafkaCfg.EventsTopic,
			GroupID: kafkaCfg.AuditGroupID,
			Lag:     consumer.Lag(),
			Metrics: metrics.Snapshot(),
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		err := consumer.Start(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			cfg.Log.Error("Audit consumer stopped", "error", err)
		}
	}()

	serverApp.OnShutdown(func(context.Context) {
		cancel()
		if err := consumer.Close(); err != nil {
			cfg.Log.Error("Failed to close Kafka consumer", "error", err)
		}
	})
	serverApp.SetApp()
	serverApp.Run()
}
