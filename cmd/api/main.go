package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/luminara-labs/bizhub/internal/billing"
	"github.com/luminara-labs/bizhub/internal/cache"
	"github.com/luminara-labs/bizhub/internal/handlers"
	"github.com/luminara-labs/bizhub/internal/mailer"
	"github.com/luminara-labs/bizhub/internal/repository"
	"github.com/luminara-labs/bizhub/internal/service"
	"github.com/luminara-labs/bizhub/pkg/config"
	"github.com/luminara-labs/bizhub/pkg/database"
	"github.com/luminara-labs/bizhub/pkg/events"
	"github.com/luminara-labs/bizhub/pkg/logger"
	mw "github.com/luminara-labs/bizhub/pkg/middleware"
	"github.com/luminara-labs/bizhub/pkg/redis"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	ctx := context.Background()

	// Connect to database
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Connect to Redis (verification code TTL cache)
	redisClient, err := redis.Connect(ctx, cfg.Redis)
	if err != nil {
		logger.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	// Connect to event bus
	eventBus, err := events.NewNATSEventBus(cfg.NATS.URL)
	if err != nil {
		logger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer eventBus.Close()

	// Initialize repositories and stores
	userRepo := repository.NewUserRepository(pool)
	businessRepo := repository.NewBusinessRepository(pool)
	invitationRepo := repository.NewInvitationRepository(pool)
	rateLimitRepo := repository.NewRateLimitRepository(pool)
	verificationStore := cache.NewVerificationStore(redisClient)

	// Sweep expired rate limit rows in the background
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			deleted, err := rateLimitRepo.CleanupExpired(ctx)
			if err != nil {
				logger.Error("Rate limit cleanup failed", "error", err)
				continue
			}
			if deleted > 0 {
				logger.Info("Cleaned up expired rate limit entries", "deleted", deleted)
			}
		}
	}()

	// Initialize mailer
	var mailService mailer.Service
	if cfg.Email.DevMode {
		mailService = mailer.NewDevMailer()
	} else {
		mailService = mailer.NewMailerSend(cfg.Email.MailerSendKey, cfg.Email.FromName, cfg.Email.FromEmail)
	}

	// Initialize payment gateway
	stripeGateway := billing.NewStripeService(
		cfg.Stripe.SecretKey,
		cfg.Stripe.PriceID,
		cfg.Stripe.SuccessURL,
		cfg.Stripe.CancelURL,
	)

	// Initialize services
	verificationSvc := service.NewVerificationService(userRepo, verificationStore, rateLimitRepo, mailService, eventBus, cfg)
	authSvc := service.NewAuthService(userRepo, verificationSvc, eventBus, cfg)
	invitationSvc := service.NewInvitationService(invitationRepo, businessRepo, rateLimitRepo, mailService, eventBus, cfg)
	billingSvc := service.NewBillingService(stripeGateway, businessRepo)

	// Initialize handlers
	h := handlers.New(authSvc, verificationSvc, invitationSvc, billingSvc, cfg)

	// Setup router
	r := chi.NewRouter()

	r.Use(mw.RequestID)
	r.Use(mw.Logging)
	r.Use(mw.Health)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.App.BaseURL},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Routes
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.Post("/refresh", h.RefreshToken)

		r.Group(func(r chi.Router) {
			r.Use(h.RequireJWT)
			r.Post("/verify-email", h.VerifyEmail)
			r.Post("/resend-verification", h.ResendVerification)
		})
	})

	r.Get("/join", h.PreviewInvitation) // public preview, no auth

	r.Group(func(r chi.Router) {
		r.Use(h.RequireJWT)

		r.Post("/join", h.Join)

		r.Route("/businesses/{businessID}", func(r chi.Router) {
			r.Post("/invitations", h.CreateInvitation)
			r.Get("/invitations", h.ListInvitations)
			r.Post("/members/{id}/approve", h.ApproveMembership)
		})

		r.Put("/invitations", h.UpdateInvitation)
		r.Delete("/invitations", h.DeleteInvitation)

		r.Post("/billing/checkout", h.CreateCheckout)
		r.Post("/billing/activate", h.ActivatePlan)
	})

	// Start server
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down API server...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	}()

	logger.Info("Starting API server", "port", cfg.Server.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
}
