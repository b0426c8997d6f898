package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"expiry-alert-service/internal/alerts"
	"expiry-alert-service/internal/api"
	"expiry-alert-service/internal/config"
	"expiry-alert-service/internal/db"
	"expiry-alert-service/internal/events"
	"expiry-alert-service/internal/inventory"
	"expiry-alert-service/internal/kafka"
	"expiry-alert-service/internal/logging"
	"expiry-alert-service/internal/providers"
)

func main() {
	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Logging.Dir, cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	// Connect to database and apply schema
	dbConn, err := db.New(cfg.DB.DSN)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	defer dbConn.Close()

	if err := dbConn.Migrate(context.Background()); err != nil {
		logger.Errorf("Migration failed: %v", err)
		log.Fatalf("Migration failed: %v", err)
	}

	// Inventory snapshot source over the monitored tables
	source, err := inventory.NewPGSource(dbConn, cfg.Alerts.Tables)
	if err != nil {
		log.Fatalf("Invalid inventory source: %v", err)
	}

	// Alert engine
	bus := events.NewBus()
	notifier := providers.NewEmailNotifier(cfg, providers.StaticAddressBook(cfg.Email.Directory), logger)
	svc := alerts.New(dbConn, dbConn, source, nil, bus, notifier, logger, alerts.Options{
		ScanBatchSize:    cfg.Alerts.ScanBatchSize,
		DefaultRecipient: cfg.Alerts.DefaultRecipient,
	})

	var wg sync.WaitGroup
	svc.Start(&wg)

	// Kafka consumer for inventory change events (optional)
	var consumer *kafka.Consumer
	if cfg.Kafka.Broker != "" {
		consumer = kafka.NewConsumer(cfg, svc, logger)
		consumer.Start(&wg)
	}

	// Start API server
	handler := api.NewHandler(svc, bus, logger)
	router := api.NewRouter(logger, cfg, handler)
	go func() {
		logger.Infof("Starting API server on %s", cfg.API.Port)
		if err := router.Run(cfg.API.Port); err != nil {
			logger.Errorf("API server failed: %v", err)
		}
	}()

	// Handle graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
	logger.Infof("Shutting down...")
	if consumer != nil {
		consumer.Close()
	}
	svc.Stop()
	wg.Wait()
	logger.Infof("Service stopped")
}
