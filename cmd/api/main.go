package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"speed-enforcement-api/config"
	"speed-enforcement-api/handlers"
	"speed-enforcement-api/middleware"
	"speed-enforcement-api/models"
	"speed-enforcement-api/services"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	// Load config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Connect to database
	db, err := gorm.Open(postgres.Open(cfg.Database.GetDSN()), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("Failed to get sql db handle: %v", err)
	}
	if err := sqlDB.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	store := services.NewGormStore(db)
	if err := store.Migrate(); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// Redis cache + live event fan-out. The API stays up without
	// redis; caching and the live feed just switch off.
	cache, err := services.NewCacheService(cfg.Redis)
	if err != nil {
		log.Printf("Redis unavailable, continuing without cache: %v", err)
	}
	publisher := services.NewCachePublisher(cache)

	// Ingest pipeline
	calc, err := services.NewFineCalculator(cfg.Fines)
	if err != nil {
		log.Fatalf("Invalid fine tier config: %v", err)
	}

	var recognizer services.PlateRecognizer
	if cfg.Recognition.URL != "" {
		recognizer = services.NewHTTPRecognizer(cfg.Recognition)
	}

	stats := services.NewStats()
	dedup := services.NewDedupStore(cfg.Dedup)
	engine := services.NewCorrelationEngine(cfg.Correlation)
	recorder := services.NewViolationRecorder(store, calc, recognizer, cfg.Recognition, publisher, stats)
	listener := services.NewListener(cfg.UDP, store, dedup, engine, publisher, stats)
	watcher := services.NewImageWatcher(cfg.Images, engine, stats)
	orch := services.NewOrchestrator(listener, watcher, engine, recorder, dedup, stats)

	authService := services.NewAuthService(cfg.JWT)

	// HTTP surface
	router := gin.Default()
	router.Use(middleware.SetupCORS(cfg.CORS))

	healthHandler := handlers.NewHealthHandler(orch)
	authHandler := handlers.NewAuthHandler(db, authService)
	fineHandler := handlers.NewFineHandler(db, cache)
	readingHandler := handlers.NewReadingHandler(db, cache)
	radarsHandler := handlers.NewRadarsHandler(db, cache)

	router.GET("/health", healthHandler.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := router.Group("/api/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/logout", authHandler.Logout)
		auth.GET("/me", middleware.RequireAuth(authService), authHandler.Me)
	}

	api := router.Group("/api", middleware.RequireAuth(authService))
	{
		api.GET("/stats", healthHandler.Stats)
		api.GET("/radars", radarsHandler.GetRadars)
		api.GET("/readings", readingHandler.List)
		api.GET("/fines", fineHandler.List)
		api.GET("/fines/:id", fineHandler.Get)
		api.POST("/images", middleware.RequireRole(models.RoleOperator), healthHandler.OfferImage)
	}

	router.GET("/ws/live", handlers.LiveWebSocket(cache, authService))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	httpErr := make(chan error, 1)
	go func() {
		log.Printf("Starting server on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			httpErr <- err
		}
	}()

	ingestCtx, ingestCancel := context.WithCancel(context.Background())
	ingestDone := make(chan error, 1)
	go func() {
		ingestDone <- orch.Run(ingestCtx)
	}()

	select {
	case <-ctx.Done():
		log.Printf("Shutdown signal received")
	case err := <-httpErr:
		log.Fatalf("HTTP server failed: %v", err)
	case err := <-ingestDone:
		ingestCancel()
		log.Fatalf("Ingest pipeline stopped: %v", err)
	}

	// Stop the HTTP surface before the pipeline so the image intake
	// endpoint cannot feed an engine that is flushing.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown: %v", err)
	}

	ingestCancel()
	if err := <-ingestDone; err != nil {
		log.Printf("Ingest pipeline: %v", err)
	}

	if err := cache.Close(); err != nil {
		log.Printf("Redis close: %v", err)
	}
	log.Printf("Shutdown complete")
}
