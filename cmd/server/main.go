package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/protown/backend/internal/config"
	"github.com/protown/backend/internal/handler"
	appMiddleware "github.com/protown/backend/internal/middleware"
	"github.com/protown/backend/internal/repository"
	"github.com/protown/backend/internal/service"
	"github.com/protown/backend/pkg/square"
)

func main() {
	// Load .env file if present (for local development)
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env")
	}

	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Config error: %v", err)
	}

	ctx := context.Background()

	// Initialize database
	db, err := repository.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("❌ Database error: %v", err)
	}
	defer db.Close()

	// Run migrations
	if err := repository.RunMigrations(ctx, db); err != nil {
		log.Fatalf("❌ Migration error: %v", err)
	}
	log.Println("✅ Database connected & migrated")

	// Payment processor client
	processor, err := square.NewClient(square.Config{
		AccessToken: cfg.SquareAccessToken,
		Environment: cfg.SquareEnvironment,
		Timeout:     cfg.SquareTimeout,
	})
	if err != nil {
		log.Fatalf("❌ Square client error: %v", err)
	}
	log.Printf("✅ Square client ready (%s)", cfg.SquareEnvironment)

	// Repositories
	proRepo := repository.NewProfessionalRepository(db)
	instrumentRepo := repository.NewInstrumentRepository(db)
	adminRepo := repository.NewAdminRepository(db)
	catalogCache := repository.NewCatalogCacheRepository(db)

	// Services
	authSvc := service.NewAuthService(cfg.JWTSecret, cfg.AdminEmail, cfg.AdminPassword, adminRepo, proRepo)
	instrumentSvc := service.NewInstrumentService(proRepo, proRepo, instrumentRepo, processor)
	proSvc := service.NewProfessionalService(proRepo, proRepo, instrumentSvc)
	activationSvc := service.NewActivationService(proRepo, instrumentRepo, processor, cfg.SquareLocationID)
	planSvc := service.NewPlanCatalogService(catalogCache, processor, cfg.PlanCacheTTL)

	// Seed admin account on first startup
	if err := authSvc.SeedAdmin(ctx); err != nil {
		log.Fatalf("❌ Admin seed error: %v", err)
	}

	// Handlers
	authHandler := handler.NewAuthHandler(authSvc, proSvc)
	proHandler := handler.NewProfessionalHandler(proSvc)
	paymentHandler := handler.NewPaymentHandler(instrumentSvc)
	adminHandler := handler.NewAdminHandler(proSvc, activationSvc)
	planHandler := handler.NewPlanHandler(planSvc)
	healthHandler := handler.NewHealthHandler(db)

	// Build router
	r := chi.NewRouter()

	// Global middleware
	r.Use(appMiddleware.Recovery)
	r.Use(appMiddleware.Logger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Global rate limiter (20 req/sec per IP, burst of 40)
	globalRL := appMiddleware.NewRateLimiter(20, 40)
	r.Use(globalRL.Middleware())

	// Health check and public routes (no auth)
	r.Get("/health", healthHandler.Check)
	r.Get("/api/plans", planHandler.List)

	// Login and signup are public but strictly rate limited
	r.Group(func(r chi.Router) {
		r.Use(appMiddleware.StrictRateLimiter())
		r.Post("/api/auth/login", authHandler.Login)
		r.Post("/api/professionals/signup", proHandler.Signup)
	})

	// Protected API routes
	r.Group(func(r chi.Router) {
		r.Use(appMiddleware.Auth(authSvc))

		r.Get("/api/auth/me", authHandler.Me)

		// Professional self-service
		r.Get("/api/professionals/{id}", proHandler.Get)
		r.Put("/api/professionals/{id}/plan", proHandler.UpdatePlan)

		// Payment instruments (validation only, never charges)
		r.Post("/api/professionals/{id}/payment/instruments", paymentHandler.Save)
		r.Get("/api/professionals/{id}/payment/instruments", paymentHandler.List)
		r.Put("/api/professionals/{id}/payment/instruments/{instrumentID}/default", paymentHandler.SetDefault)
		r.Delete("/api/professionals/{id}/payment/instruments/{instrumentID}", paymentHandler.Delete)

		// Admin routes
		r.Group(func(r chi.Router) {
			r.Use(appMiddleware.AdminOnly)
			r.Get("/api/admin/professionals", adminHandler.ListProfessionals)
			r.Patch("/api/admin/professionals/{id}/verified", adminHandler.SetVerified)
			r.Post("/api/admin/professionals/{id}/abandon", adminHandler.Abandon)
			r.Post("/api/admin/professionals/{id}/retry", adminHandler.Retry)
		})
	})

	// Start server
	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		log.Println("🛑 Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("🚀 ProTown Backend listening at http://%s", addr)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("❌ Server error: %v", err)
	}
}
