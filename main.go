package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"survey-voice-api/cache"
	"survey-voice-api/config"
	"survey-voice-api/database"
	"survey-voice-api/handlers"
	"survey-voice-api/middleware"
	"survey-voice-api/services"
	"survey-voice-api/worker"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load configuration: %v", err)
	}
	gin.SetMode(cfg.Server.GinMode)

	db, err := database.Open(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to initialize database: %v", err)
	}

	// Clarifier: AI provider behind a circuit breaker, or pass-through
	var clarifier services.Clarifier
	provider, err := services.NewAIProvider(cfg.AI)
	if err != nil {
		log.Fatalf("❌ Failed to initialize AI provider: %v", err)
	}
	if provider != nil {
		breaker := services.NewCircuitBreaker(provider.GetProviderName(), cfg.AI.BreakerMaxFailures, cfg.AI.BreakerCooldown)
		clarifier = services.NewLLMClarifier(provider, breaker)
	}
	pipeline := services.NewResponsePipeline(db, clarifier, cfg.AI.ClarifierTimeout)

	bgCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()
	if monitor := services.NewCreditMonitor(cfg.AI); monitor != nil && provider != nil && provider.GetProviderName() == "openrouter" {
		log.Println("🔍 Starting OpenRouter credit monitor...")
		go monitor.Run(bgCtx, time.Hour)
	}

	tokens := services.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenExpireMin, cfg.Auth.RefreshTokenExpireDays)
	auth := services.NewAuthService(db, tokens)
	analytics := services.NewAnalyticsService(db, cache.New(cfg.Redis.URL, cfg.Redis.TTL), cfg.Analytics.MaxTrendDays)
	voice := services.NewVoiceService(db, services.NewTelephonyProvider(cfg.Telephony), cfg.Telephony)

	var clarificationWorker *worker.ClarificationWorker
	if cfg.Worker.Enabled {
		clarificationWorker = worker.NewClarificationWorker(db, pipeline, cfg.Worker, cfg.Database.DSN())
		go clarificationWorker.Start()
	} else {
		log.Println("⚠️  Clarification worker disabled, responses are processed on request only")
	}

	router := gin.New()
	router.Use(middleware.RequestID(), middleware.Logger(), gin.Recovery(), middleware.CORS())

	h := handlers.New(db, handlers.NewServices(db, auth, pipeline, analytics, voice), cfg.Server.Name)
	h.SetupRoutes(router, cfg.Telephony.WebhookToken)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("🚀 %s starting on port %s (%s)", cfg.Server.Name, cfg.Server.Port, cfg.Server.Environment)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-quit
	log.Println("🛑 Shutting down server...")

	stopBackground()
	if clarificationWorker != nil {
		log.Println("🤖 Stopping clarification worker...")
		clarificationWorker.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
	log.Println("✅ Server exited gracefully")
}
