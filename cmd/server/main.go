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

	"converse-backend/internal/cache"
	"converse-backend/internal/config"
	"converse-backend/internal/database"
	"converse-backend/internal/handlers"
	"converse-backend/internal/middleware"
	"converse-backend/internal/provider"
	"converse-backend/internal/repository"
	"converse-backend/internal/router"
	"converse-backend/internal/services"
	"converse-backend/internal/websocket"
)

func main() {
	log.Println("🚀 Starting Converse Backend...")

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	log.Println("✓ Environment variables loaded")

	// ──── Step 2: Initialize PostgreSQL Connection Pool ────
	pool, err := database.NewPostgresPool(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("✗ PostgreSQL connection failed: %v", err)
	}
	defer pool.Close()
	log.Println("✓ PostgreSQL connected")

	// ──── Step 3: Initialize Redis Clients ────
	redisClients, err := database.NewRedisClients(cfg.RedisURL)
	if err != nil {
		log.Fatalf("✗ Redis connection failed: %v", err)
	}
	defer redisClients.Close()
	log.Println("✓ Redis connected")

	// ──── Step 4: Run Database Migrations ────
	if err := database.RunMigrations(pool, "migrations"); err != nil {
		log.Fatalf("✗ Database migration failed: %v", err)
	}
	log.Println("✓ Database migrations applied")

	// ──── Initialize Repositories ────
	userRepo := repository.NewUserRepo(pool)
	chatRepo := repository.NewChatRepo(pool)

	// ──── Step 5: Initialize Inference Providers ────
	timeout := time.Duration(cfg.ProviderTimeoutSec) * time.Second
	primary := provider.NewTGIClient("primary", cfg.PrimaryModelURL, cfg.ProviderAPIKey, timeout)

	var fallback provider.Provider
	if cfg.GeminiAPIKey != "" {
		gemini, err := provider.NewGeminiProvider(context.Background(), cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			log.Fatalf("✗ Gemini client initialization failed: %v", err)
		}
		defer gemini.Close()
		fallback = gemini
	} else if cfg.FallbackModelURL != "" {
		fallback = provider.NewTGIClient("fallback", cfg.FallbackModelURL, cfg.ProviderAPIKey, timeout)
	} else {
		log.Fatal("✗ No fallback provider configured: set GEMINI_API_KEY or FALLBACK_MODEL_URL")
	}
	llm := provider.NewFallbackChain(primary, fallback)
	log.Printf("✓ Inference providers ready (primary: %s, fallback: %s)", primary.Name(), fallback.Name())

	// ──── Initialize Services ────
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)
	historyCache := cache.NewHistoryCache(redisClients.Cache, time.Duration(cfg.HistoryCacheTTLMin)*time.Minute)
	params := provider.Params{
		MaxTokens:   cfg.GenMaxTokens,
		Temperature: cfg.GenTemperature,
		TopP:        cfg.GenTopP,
	}
	chatService := services.NewChatService(chatRepo, historyCache, llm, redisClients.Cache, params, cfg.HistoryWindow)
	historyService := services.NewHistoryService(chatRepo, historyCache)
	authService := services.NewAuthService(userRepo, jwtAuth)

	// ──── Initialize Handlers ────
	chatGovernor := middleware.NewGovernor(cfg.ChatRateLimit, time.Duration(cfg.ChatRateWindowMin)*time.Minute)
	authHandler := handlers.NewAuthHandler(authService)
	chatHandler := handlers.NewChatHandler(chatService, historyService, chatGovernor)
	diagHandler := handlers.NewDiagnosticsHandler(pool, redisClients.Cache, cfg.PrimaryModelURL)

	// ──── Step 6: Start WebSocket Hub ────
	wsHub := websocket.NewHub(redisClients.PubSub, cfg.JWTSecret)
	log.Println("✓ WebSocket hub started")

	// ──── Step 7: Start HTTP Server ────
	r := router.New(
		jwtAuth,
		authHandler,
		chatHandler,
		diagHandler,
		wsHub,
		cfg.FrontendURL,
	)

	server := &http.Server{
		Addr:        fmt.Sprintf(":%s", cfg.Port),
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		// No write timeout: chat responses stream for as long as the
		// provider generates.
		IdleTimeout: 60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("✓ Converse Backend ready on http://localhost:%s", cfg.Port)
	log.Printf("  API: http://localhost:%s/api", cfg.Port)
	log.Printf("  WS:  ws://localhost:%s/api/ws", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}
