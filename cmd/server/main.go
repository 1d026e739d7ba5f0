package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/edgegraph/chatd/internal/api"
	"github.com/edgegraph/chatd/internal/config"
	"github.com/edgegraph/chatd/internal/llm/openai"
	"github.com/edgegraph/chatd/internal/repository/redis"
	"github.com/edgegraph/chatd/internal/store"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load .env file - optional, env vars may come from the deployment
	if err := godotenv.Load(); err == nil {
		fmt.Println("Loaded environment from .env")
	}

	// Setup logger
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if os.Getenv("ENV") != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	// Load configuration; a missing upstream API key fails here, at startup
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if level, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	log.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Str("model", cfg.Upstream.Model).
		Msg("Starting chatd API server")

	// The process-wide session store; restart loses all sessions
	sessions := store.NewSessionStore()

	completer := openai.NewClient(cfg.Upstream)

	// Optional Redis for rate limiting
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = redis.NewClient(cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer redisClient.Close()
	}

	router := api.NewRouter(cfg, sessions, completer, redisClient)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Idle-session janitor, enabled only when an eviction age is configured
	janitorDone := make(chan struct{})
	if cfg.Session.EvictionAge > 0 {
		go runJanitor(sessions, cfg.Session, janitorDone)
	}

	go func() {
		log.Info().Msgf("Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")
	close(janitorDone)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}

// runJanitor periodically evicts sessions idle longer than the configured age
func runJanitor(sessions *store.SessionStore, cfg config.SessionConfig, done <-chan struct{}) {
	interval := cfg.EvictionInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if removed := sessions.EvictIdle(cfg.EvictionAge); removed > 0 {
				log.Info().Int("removed", removed).Msg("Evicted idle sessions")
			}
		case <-done:
			return
		}
	}
}
