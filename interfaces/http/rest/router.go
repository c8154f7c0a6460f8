package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"pulse-backend/application/ports"
	"pulse-backend/interfaces/http/rest/handlers"
	"pulse-backend/interfaces/http/rest/middleware"
)

// Router creates and configures the HTTP router
type Router struct {
	feedStore         ports.FeedStore
	notificationStore ports.NotificationStore
	likeStore         ports.LikeStore
	logger            *zap.Logger
}

// NewRouter creates a new router instance
func NewRouter(
	feedStore ports.FeedStore,
	notificationStore ports.NotificationStore,
	likeStore ports.LikeStore,
	logger *zap.Logger,
) *Router {
	return &Router{
		feedStore:         feedStore,
		notificationStore: notificationStore,
		likeStore:         likeStore,
		logger:            logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Logger(rt.logger))

	// CORS configuration
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "https://*.pulse.app"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)

	// API routes
	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Authenticate())

		// Feed endpoints
		r.Route("/feed", func(r chi.Router) {
			feedHandler := handlers.NewFeedHandler(rt.feedStore, rt.logger)
			r.Get("/", feedHandler.GetFeed)
			r.Post("/mark-read", feedHandler.MarkRead)
			r.Delete("/authors/{authorID}", feedHandler.RemoveAuthor)
		})

		// Notification endpoints
		r.Route("/notifications", func(r chi.Router) {
			notificationHandler := handlers.NewNotificationHandler(rt.notificationStore, rt.logger)
			r.Get("/", notificationHandler.List)
			r.Get("/unread-count", notificationHandler.UnreadCount)
			r.Post("/read-all", notificationHandler.MarkAllRead)
			r.Post("/batch", notificationHandler.Batch)
			r.Post("/{notificationID}/read", notificationHandler.MarkRead)
			r.Delete("/{notificationID}", notificationHandler.Delete)
		})

		// Like endpoints
		r.Route("/posts", func(r chi.Router) {
			likeHandler := handlers.NewLikeHandler(rt.likeStore, rt.logger)
			r.Post("/likes/batch", likeHandler.BatchStatus)
			r.Post("/{postID}/like", likeHandler.Like)
			r.Delete("/{postID}/like", likeHandler.Unlike)
			r.Get("/{postID}/like", likeHandler.Status)
		})
	})

	return router
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}

// readinessCheck handles readiness check requests
func (rt *Router) readinessCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}
