package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prudhvinik1/slotsync/internal/config"
	"github.com/prudhvinik1/slotsync/internal/database"
	"github.com/prudhvinik1/slotsync/internal/notify"
	"github.com/prudhvinik1/slotsync/internal/realtime"
	"github.com/prudhvinik1/slotsync/internal/repositories"
	"github.com/prudhvinik1/slotsync/internal/services"
	"github.com/prudhvinik1/slotsync/internal/transport/ws"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

func main() {
	godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("Server exited with error")
	}
	logger.Info().Msg("Server stopped gracefully")
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.LogFormat == "console" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database connections
	postgresPool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL, database.PoolOptions{
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to create postgres pool: %w", err)
	}
	defer postgresPool.Close()

	redisClient, err := database.NewRedisClient(ctx, cfg.RedisURL, cfg.RedisPoolSize, logger)
	if err != nil {
		return fmt.Errorf("failed to create redis client: %w", err)
	}
	defer redisClient.Close()

	instance, err := os.Hostname()
	if err != nil || instance == "" {
		instance = uuid.NewString()
	}

	repos := realtime.Repositories{
		Users:         repositories.NewPostgresUserRepository(postgresPool),
		Vendors:       repositories.NewPostgresVendorRepository(postgresPool),
		Devices:       repositories.NewPostgresDeviceRepository(postgresPool),
		Appointments:  repositories.NewPostgresAppointmentRepository(postgresPool),
		Conversations: repositories.NewPostgresConversationRepository(postgresPool),
		Messages:      repositories.NewPostgresMessageRepository(postgresPool),
		Notifications: repositories.NewPostgresNotificationRepository(postgresPool),
		Presence:      repositories.NewRedisPresenceRepository(redisClient, cfg.PresenceTTL, instance),
	}

	engine := realtime.NewEngine(
		repos,
		notify.NewExpoProvider("", cfg.ExpoAccessToken),
		clock.New(),
		realtime.OptionsFromConfig(cfg),
		logger.With().Str("instance", instance).Logger(),
	)

	handler := ws.NewHTTPHandler(engine, services.NewAuthService(cfg.JWTSecret), ws.ServerConfig{
		InternalAPIKey:       cfg.InternalAPIKey,
		PaymentWebhookSecret: cfg.PaymentWebhookSecret,
	}, logger)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("port", cfg.ServerPort).Msg("Starting server")
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return engine.Run(ctx)
	})

	// graceful shutdown
	g.Go(func() error {
		<-ctx.Done()
		logger.Info().Msg("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		err := server.Shutdown(shutdownCtx)
		closed := engine.CloseAll()
		logger.Info().Int("connections", closed).Msg("Closed websocket connections")
		return err
	})

	return g.Wait()
}
