package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"openlot-auction-service/internal/adapters/broadcaster"
	"openlot-auction-service/internal/adapters/db"
	"openlot-auction-service/internal/adapters/redis"
	"openlot-auction-service/internal/adapters/ws"
	"openlot-auction-service/internal/app"
	"openlot-auction-service/internal/config"
	"openlot-auction-service/internal/engine"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	initLogging(cfg)

	log.Info().Msg("Starting OpenLot Auction Service...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database connection and stores
	dbConn, err := db.NewConnection(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbConn.Close()

	auctionStore := db.NewAuctionStore(dbConn)
	userStore := db.NewUserStore(dbConn)
	log.Info().Msg("Database connection established")

	// Redis-backed event fan-out
	redisClient := redis.NewClient(cfg)
	if err := redis.Ping(redisClient); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	eventBroadcaster := broadcaster.NewBroadcaster(broadcaster.RedisBroadcasterParams{
		RedisClient: redisClient,
		Logger:      log.Logger,
	})
	log.Info().Msg("Redis broadcaster initialized")

	// Lifecycle engine
	timers := engine.NewTimerManager(log.Logger)
	notifier := engine.NewNotifier(engine.NotifierParams{
		Store:       auctionStore,
		Users:       userStore,
		Broadcaster: eventBroadcaster,
		Logger:      log.Logger,
	})
	lifecycle := engine.NewController(engine.ControllerParams{
		Store:    auctionStore,
		Timers:   timers,
		Notifier: notifier,
		Config: engine.CascadeConfig{
			GoingOnceDelay:  cfg.Cascade.GoingOnceDelay,
			GoingTwiceDelay: cfg.Cascade.GoingTwiceDelay,
			FinalizeDelay:   cfg.Cascade.FinalizeDelay,
		},
		Logger: log.Logger,
	})
	log.Info().Msg("Lifecycle engine initialized")

	// Business services
	auctionService := app.NewAuctionService(app.AuctionServiceParams{
		Store:     auctionStore,
		Users:     userStore,
		Lifecycle: lifecycle,
		Notifier:  notifier,
		Logger:    log.Logger,
	})
	bidService := app.NewBidService(app.BidServiceParams{
		Store:     auctionStore,
		Users:     userStore,
		Lifecycle: lifecycle,
		Notifier:  notifier,
		Logger:    log.Logger,
	})
	log.Info().Msg("Business services initialized")

	wsServer := ws.NewServer(ws.ServerParams{
		Config:         cfg,
		AuctionService: auctionService,
		BidService:     bidService,
		Broadcaster:    eventBroadcaster,
		Logger:         log.Logger,
	})

	go func() {
		if err := wsServer.Start(); err != nil {
			log.Error().Err(err).Msg("Failed to start WebSocket server")
			cancel()
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	case <-ctx.Done():
		log.Info().Msg("Context cancelled")
	}

	log.Info().Msg("Starting graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	lifecycle.Stop()

	if err := wsServer.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping WebSocket server")
	}

	if err := eventBroadcaster.Close(); err != nil {
		log.Error().Err(err).Msg("Error closing broadcaster")
	}

	log.Info().Msg("Graceful shutdown completed")
}

func initLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Logging.Format == "json" {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		log.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	zerolog.DefaultContextLogger = &log.Logger
}
