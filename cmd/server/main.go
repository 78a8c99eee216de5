package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anonto42/nano-midea/notifications/internal/aggregation"
	"github.com/anonto42/nano-midea/notifications/internal/delivery"
	"github.com/anonto42/nano-midea/notifications/internal/dispatch"
	"github.com/anonto42/nano-midea/notifications/internal/jobs"
	"github.com/anonto42/nano-midea/notifications/internal/models"
	"github.com/anonto42/nano-midea/notifications/internal/notify"
	"github.com/anonto42/nano-midea/notifications/internal/queue"
	"github.com/anonto42/nano-midea/notifications/internal/realtime"
	"github.com/anonto42/nano-midea/notifications/internal/repositories"
	"github.com/anonto42/nano-midea/notifications/internal/router"
	"github.com/anonto42/nano-midea/notifications/pkg/config"
	"github.com/anonto42/nano-midea/notifications/pkg/firebase"
	"github.com/anonto42/nano-midea/notifications/pkg/logger"
	"github.com/anonto42/nano-midea/notifications/validators"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("info", "json")
		bootLog.Fatal().Err(err).Msg("Invalid configuration")
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database connections
	db, err := config.InitDB(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize databases")
	}
	defer db.CloseDB()

	if err := db.Postgres.AutoMigrate(&models.DeviceToken{}); err != nil {
		log.Fatal().Err(err).Msg("Failed to auto migrate models")
	}
	mongoDB := db.Mongo.Database(cfg.MongoDatabase)

	// --- Initialize Repositories ---
	notificationRepo := repositories.NewMongoNotificationRepository(mongoDB)
	if err := notificationRepo.EnsureIndexes(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to create notification indexes")
	}
	userRepo := repositories.NewPostgresUserRepository(db.Postgres)
	deviceRepo := repositories.NewPostgresDeviceRepository(db.Postgres)
	groupRepo := repositories.NewMongoGroupRepository(mongoDB)

	// --- Delivery ---
	var sender delivery.PushSender
	if cfg.FirebaseEnabled {
		firebaseApp, err := firebase.InitFirebase(ctx, cfg.FirebaseCredentialsPath)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize Firebase")
		}
		sender = firebaseApp.MessagingClient
	} else {
		log.Warn().Msg("Firebase disabled, mobile push is off")
	}
	hub := realtime.NewHub(log)
	fanout := delivery.NewFanout(hub, sender, deviceRepo, cfg.Delivery, log)
	defer fanout.Close()

	// --- Pipeline ---
	engine := aggregation.NewEngine(notificationRepo, notify.NewNames(userRepo), log)
	service := notify.NewService(engine, userRepo, groupRepo, fanout, log)
	dispatcher := dispatch.NewRouter(service, log)

	broker, err := newBroker(ctx, cfg.Queue, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize queue broker")
	}
	producer := queue.NewProducer(broker, log)
	consumer := queue.NewConsumer(broker, dispatcher, cfg.Queue, log)
	if err := consumer.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start queue consumer")
	}
	defer consumer.Stop()

	watchdog := queue.NewWatchdog(consumer, cfg.Queue.WatchdogInterval, cfg.Queue.StallThreshold, log)
	if err := watchdog.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start queue watchdog")
	}
	defer watchdog.Stop()

	deps := router.Dependencies{Queue: producer, Consumer: consumer, Hub: hub}
	if cfg.Jobs.Enabled {
		jobsClient := jobs.NewClient(cfg.Jobs, log)
		defer jobsClient.Close()
		deps.Jobs = jobsClient

		jobsServer := jobs.NewServer(cfg.Jobs, dispatcher, log)
		if err := jobsServer.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start job server")
		}
		defer jobsServer.Shutdown()
	}

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.Validator = validators.NewValidator()

	router.SetupMiddleware(e, log)
	router.SetupRoutes(e, deps, log)

	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()
	log.Info().Str("port", cfg.Port).Msg("Notification service started")

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
}

func newBroker(ctx context.Context, cfg config.QueueConfig, log zerolog.Logger) (queue.Broker, error) {
	if cfg.Driver == config.QueueDriverMemory {
		log.Warn().Msg("Using in-memory queue broker, events are lost on restart")
		return queue.NewMemoryBroker(nil), nil
	}
	return queue.NewSQSBroker(ctx, cfg.AWSRegion, cfg.URL)
}
