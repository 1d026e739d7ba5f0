package api

import (
	"net/http"

	"github.com/edgegraph/chatd/internal/api/handler"
	customMiddleware "github.com/edgegraph/chatd/internal/api/middleware"
	"github.com/edgegraph/chatd/internal/config"
	"github.com/edgegraph/chatd/internal/llm"
	"github.com/edgegraph/chatd/internal/repository/redis"
	"github.com/edgegraph/chatd/internal/service"
	"github.com/edgegraph/chatd/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates and configures the HTTP router
func NewRouter(cfg *config.Config, sessions *store.SessionStore, completer llm.Completer, redisClient *redis.Client) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(customMiddleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.Server.MiddlewareTimeout))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"X-Request-ID", "X-Session-Id"},
		MaxAge:         300,
	}))

	chatService := service.NewChatService(sessions, completer)
	graphqlHandler := handler.NewGraphQLHandler(chatService)

	r.Get("/health", handler.HealthCheck)

	r.Group(func(r chi.Router) {
		if redisClient != nil {
			limiter := redis.NewRateLimiter(
				redisClient,
				cfg.RateLimit.RequestsPerMinute,
				cfg.RateLimit.Burst,
			)
			r.Use(customMiddleware.NewRateLimitMiddleware(limiter).Limit)
		}

		r.Post("/graphql", graphqlHandler.Handle)
	})

	return r
}
