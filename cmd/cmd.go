package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"timelock-backend/internal/cache"
	"timelock-backend/internal/config"
	"timelock-backend/internal/events"
	"timelock-backend/internal/handlers"
	"timelock-backend/internal/repository"
	"timelock-backend/internal/services"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

func Run() {
	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Setup logger
	closeLog := setupLogger(cfg.Log)
	defer closeLog()

	loc, err := cfg.App.Location()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load time zone")
	}
	cal := services.NewCalendar(loc)

	// Connect to database
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	store, err := openStore(ctx, cfg.Database)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Database.Driver).Msg("Failed to open database")
	}
	defer store.Close()
	log.Info().Str("driver", cfg.Database.Driver).Msg("Database connection established")

	// Optional collaborators
	statsCache, closeCache := setupStatsCache(cfg)
	defer closeCache()
	publisher, closePublisher := setupPublisher(cfg.NATS)
	defer closePublisher()

	// Initialize services
	userService := services.NewUserService(store, cfg.JWT.Secret, cfg.JWT.TokenTTL(), cal)
	partnershipService := services.NewPartnershipService(store, cal, statsCache, publisher)
	streaks := services.NewStreakCalculator(cal)
	messageService := services.NewMessageService(
		store,
		cal,
		streaks,
		partnershipService,
		statsCache,
		publisher,
		cfg.App.MaxMessageLength,
	)

	// Setup router
	router := &handlers.Router{
		Users:          handlers.NewUserHandler(userService),
		Partnerships:   handlers.NewPartnershipHandler(partnershipService),
		Messages:       handlers.NewMessageHandler(messageService),
		Health:         handlers.NewHealthHandler(store),
		Auth:           userService,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("host", cfg.Server.Host).
			Int("port", cfg.Server.Port).
			Str("timezone", loc.String()).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// openStore opens the configured database backend
func openStore(ctx context.Context, cfg config.DatabaseConfig) (repository.Store, error) {
	if cfg.Driver == config.DriverSQLite {
		store, err := repository.OpenSQLite(ctx, cfg.Path)
		if err != nil {
			return nil, err
		}
		return store, nil
	}

	store, err := repository.OpenPostgres(ctx, cfg.DSN())
	if err != nil {
		return nil, err
	}
	return store, nil
}

// setupStatsCache connects the Redis stats cache, falling back to no caching
// when Redis is not configured or unreachable
func setupStatsCache(cfg *config.Config) (services.StatsCache, func()) {
	if cfg.Redis.Addr == "" {
		log.Info().Msg("Redis not configured, stats cache disabled")
		return services.NopStatsCache{}, func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("Redis unreachable, stats cache disabled")
		client.Close()
		return services.NopStatsCache{}, func() {}
	}

	log.Info().Str("addr", cfg.Redis.Addr).Msg("Redis connection established")
	return cache.NewRedisStatsCache(client, cfg.App.StatsCacheTTL), func() {
		if err := client.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close redis client")
		}
	}
}

// setupPublisher connects the NATS event publisher, falling back to dropping
// events when NATS is not configured or unreachable
func setupPublisher(cfg config.NATSConfig) (services.EventPublisher, func()) {
	if cfg.URL == "" {
		log.Info().Msg("NATS not configured, events disabled")
		return services.NopPublisher{}, func() {}
	}

	nc, err := nats.Connect(cfg.URL,
		nats.Name("timelock-backend"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		log.Warn().Err(err).Str("url", cfg.URL).Msg("NATS unreachable, events disabled")
		return services.NopPublisher{}, func() {}
	}

	log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS connection established")
	return events.NewNatsPublisher(nc, cfg.SubjectPrefix), func() {
		if err := nc.Drain(); err != nil {
			log.Error().Err(err).Msg("Failed to drain nats connection")
		}
	}
}
