// Package main is the entry point for the municipal report server.
// It provides a REST API for citizen issue reports, the staff triage
// workflow, report conversations and notifications, plus a websocket
// endpoint that pushes conversation messages to connected participants.
//
// Every report status transition persists first, then appends a system
// message to the report's conversation and fans it out to live connections.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/civicware/report-server/internal/config"
	"github.com/civicware/report-server/internal/database"
	"github.com/civicware/report-server/internal/handlers"
	"github.com/civicware/report-server/internal/middleware"
	"github.com/civicware/report-server/internal/services"
	"github.com/civicware/report-server/internal/store"
	"github.com/civicware/report-server/internal/ws"
)

func main() {
	// Initialize structured logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()
	sugar := logger.Sugar()

	// Load configuration from environment
	cfg, err := config.Load()
	if err != nil {
		sugar.Fatalf("Failed to load config: %v", err)
	}

	sugar.Infow("Starting report server",
		"port", cfg.Port,
		"env", cfg.Environment,
	)

	// Initialize database connection pool
	db, err := database.NewPool(cfg.DatabaseURL)
	if err != nil {
		sugar.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Redis backs the unread-notification count cache; the server still
	// runs without it.
	var rdb *redis.Client
	if opts, err := redis.ParseURL(cfg.RedisURL); err != nil {
		sugar.Warnf("Invalid REDIS_URL, unread counts uncached: %v", err)
	} else {
		rdb = redis.NewClient(opts)
		defer rdb.Close()
	}

	st := store.NewPostgres(db)

	// Initialize services
	notificationSvc := services.NewNotificationService(st, rdb, sugar)
	emitter := services.NewEmitter(st, notificationSvc, sugar)
	conversationSvc := services.NewConversationService(st, sugar)
	authSvc := services.NewAuthService(st, cfg.JWTSecret, time.Duration(cfg.TokenTTLHours)*time.Hour, sugar)

	// Live connection registry and broadcast engine
	registry := ws.NewRegistry()
	engine := ws.NewEngine(st, emitter, registry, sugar)

	reportSvc := services.NewReportService(st, conversationSvc, emitter, engine, sugar)

	// Initialize handlers
	reportHandler := handlers.NewReportHandler(reportSvc, sugar)
	conversationHandler := handlers.NewConversationHandler(conversationSvc, emitter, engine, sugar)
	notificationHandler := handlers.NewNotificationHandler(notificationSvc, sugar)
	authHandler := handlers.NewAuthHandler(authSvc, sugar)
	healthHandler := handlers.NewHealthHandler(db, sugar)
	wsHandler := ws.NewHandler(authSvc, emitter, engine, registry, cfg.WSAllowedOrigins, sugar)

	// Build router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.StructuredLogger(logger))
	r.Use(chimw.Recoverer)

	// API Routes. The request timeout and rate limiter stay off the
	// websocket route: live connections are long-lived by design.
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(chimw.Timeout(30 * time.Second))
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
		r.Use(middleware.RateLimit(cfg.RateLimitRPM))

		// Health check
		r.Get("/health", healthHandler.Check)
		r.Get("/health/ready", healthHandler.Ready)

		// Login (public)
		r.Post("/auth/login", authHandler.Login)

		// Everything else requires an authenticated user
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(cfg.JWTSecret))

			r.Route("/reports", func(r chi.Router) {
				r.Post("/", reportHandler.Create)
				r.Get("/", reportHandler.List)
				r.Get("/mine", reportHandler.Mine)
				r.Get("/{id}", reportHandler.Get)
				r.Get("/{id}/conversations", conversationHandler.ListForReport)

				// Staff triage and technician workflow
				r.Post("/{id}/review", reportHandler.Review)
				r.Post("/{id}/start", reportHandler.Start)
				r.Post("/{id}/finish", reportHandler.Finish)
				r.Post("/{id}/suspend", reportHandler.Suspend)
				r.Post("/{id}/resume", reportHandler.Resume)
				r.Post("/{id}/assign-external", reportHandler.AssignExternal)

				// External maintainer workflow
				r.Post("/{id}/external/start", reportHandler.ExternalStart)
				r.Post("/{id}/external/finish", reportHandler.ExternalFinish)
				r.Post("/{id}/external/suspend", reportHandler.ExternalSuspend)
				r.Post("/{id}/external/resume", reportHandler.ExternalResume)
			})

			r.Route("/conversations", func(r chi.Router) {
				r.Get("/{id}/messages", conversationHandler.Messages)
				r.Post("/{id}/messages", conversationHandler.PostMessage)
				r.Post("/{id}/participants", conversationHandler.AddParticipant)
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", notificationHandler.List)
				r.Get("/unread-count", notificationHandler.UnreadCount)
				r.Post("/{id}/read", notificationHandler.MarkRead)
			})
		})
	})

	// Live connections authenticate during the handshake
	r.Get("/ws", wsHandler.Serve)

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sugar.Infof("Server listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	sugar.Info("Shutting down gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		sugar.Fatalf("Forced shutdown: %v", err)
	}

	sugar.Info("Server stopped")
}
