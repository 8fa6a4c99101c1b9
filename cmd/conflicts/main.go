package main

import (
	"context"

	"roomdesk/internal/conflicts/handler"
	"roomdesk/internal/conflicts/jobs"
	"roomdesk/internal/conflicts/repository"
	"roomdesk/internal/conflicts/service"
	"roomdesk/internal/conflicts/validator"
	"roomdesk/internal/events"
	"roomdesk/pkg/app"
	"roomdesk/pkg/config"
	kafka_config "roomdesk/pkg/kafka/config"
)

const ServiceName = "conflicts"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()

	cfg.Log.Info("Starting Conflicts service")
	publisher := initPublisher(cfg)
	conflictService := initServices(cfg, publisher)

	serverApp := app.NewApplication(cfg)

	if cfg.StatsDigestSchedule != "" {
		scheduler, err := jobs.NewScheduler(cfg, jobs.NewDailyDigest(conflictService, publisher, cfg))
		if err != nil {
			cfg.Log.Fatal("Failed to schedule stats digest", "error", err)
		}
		scheduler.Start()
		serverApp.OnShutdown(scheduler.Stop)
	} else {
		cfg.Log.Info("Stats digest disabled")
	}

	serverApp.OnShutdown(func(context.Context) {
		if err := publisher.Close(); err != nil {
			cfg.Log.Error("Failed to close event publisher", "error", err)
		}
	})
	serverApp.SetApp(handler.NewConflictHandler(conflictService, cfg.Log, cfg.Location))
	serverApp.Run()
}

func initPublisher(cfg *config.Config) events.Publisher {
	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	kafkaCfg.LogConfiguration(cfg.Log)

	publisher, err := events.New(kafkaCfg, cfg.Log, ServiceName)
	if err != nil {
		cfg.Log.Fatal("Failed to create event publisher", "error", err)
	}
	return publisher
}

func initServices(cfg *config.Config, publisher events.Publisher) service.ConflictService {
	conflictService := service.NewConflictService(
		repository.NewMongoConflictRepository(cfg),
		repository.NewMongoLockRepository(cfg),
		validator.NewResolutionValidator(cfg.Log),
		publisher,
		cfg,
	)

	cfg.Log.Info("Conflict service initialized",
		"database", cfg.MongoDatabaseName,
		"timezone", cfg.Timezone,
		"lock_ttl", cfg.ResolutionLockTTL,
	)
	return conflictService
}
