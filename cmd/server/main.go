package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/pastesync/sync-server-go/internal/bus"
	"github.com/pastesync/sync-server-go/internal/client"
	"github.com/pastesync/sync-server-go/internal/config"
	"github.com/pastesync/sync-server-go/internal/database"
	"github.com/pastesync/sync-server-go/internal/handler"
	"github.com/pastesync/sync-server-go/internal/jobs"
	"github.com/pastesync/sync-server-go/internal/middleware"
	"github.com/pastesync/sync-server-go/internal/redis"
	"github.com/pastesync/sync-server-go/internal/repository"
	"github.com/pastesync/sync-server-go/internal/service"
)

// The service layer doubles as the store surface the client engine
// consumes; keep the two in lockstep.
var _ client.Store = (*service.SessionService)(nil)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	cancel()
	log.Info().Msg("database connected")

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	sessionRepo := repository.NewSessionRepository(db.DB)
	deviceRepo := repository.NewDeviceRepository(db.DB)

	broker := bus.NewBroker(redisClient)
	defer broker.Close()

	sessionService := service.NewSessionService(sessionRepo, deviceRepo, broker, cfg.SessionTTL())

	cleanupJob := jobs.NewCleanupJob(
		sessionRepo, deviceRepo,
		config.CleanupJobInterval, config.AbandonedThreshold, config.PresenceStaleness,
	)

	rateLimitMiddleware := middleware.NewRedisRateLimitMiddleware(redisClient.Client, config.DefaultRateLimitPerMin)
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(config.MaxContentBytes)

	sessionHandler := handler.NewSessionHandler(sessionService, cfg.BaseURL)
	eventsHandler := handler.NewEventsHandler(broker, sessionService)
	adminHandler := handler.NewAdminHandler(sessionService, cleanupJob)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
	r.Use(bodyLimitMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UnixMilli(),
		})
	})

	r.Route("/v1/sessions", func(r chi.Router) {
		r.Use(rateLimitMiddleware.Handler)
		r.Get("/{code}/events", eventsHandler.ServeHTTP)
		r.Mount("/", sessionHandler.Routes())
	})

	r.Route("/v1/admin", func(r chi.Router) {
		r.Mount("/", adminHandler.Routes())
	})

	cleanupJob.Start()
	defer cleanupJob.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
