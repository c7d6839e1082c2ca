package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/deskmate/deskmate-be/internal/api"
	"github.com/deskmate/deskmate-be/internal/api/middleware"
	"github.com/deskmate/deskmate-be/internal/chat"
	"github.com/deskmate/deskmate-be/internal/db"
	"github.com/deskmate/deskmate-be/internal/docs"
	"github.com/deskmate/deskmate-be/internal/gateway"
	"github.com/deskmate/deskmate-be/internal/memory"
	"github.com/deskmate/deskmate-be/internal/retrieval"
	"github.com/deskmate/deskmate-be/internal/ws"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	// Get configuration from environment
	port := getEnv("PORT", "8080")
	databaseURL := getEnv("DATABASE_URL", "")
	jwtSecret := getEnv("JWT_SECRET", "")
	openaiEndpoint := getEnv("OPENAI_ENDPOINT", "https://api.openai.com")
	openaiAPIKey := getEnv("OPENAI_API_KEY", "")
	embeddingModel := getEnv("EMBEDDING_MODEL", "text-embedding-3-small")
	completionModel := getEnv("COMPLETION_MODEL", "gpt-4o-mini")
	corsOrigins := getEnv("CORS_ALLOWED_ORIGINS", "")

	if databaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}
	if openaiAPIKey == "" {
		log.Fatal("OPENAI_API_KEY is required")
	}

	// Initialize database
	database, err := db.NewFromURL(databaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	log.Println("✅ Database connected")

	// Initialize the LLM gateway. Token limits arrive as strings and fall
	// back to defaults when unset or malformed.
	gw, err := gateway.New(gateway.Config{
		Endpoint:              openaiEndpoint,
		APIKey:                openaiAPIKey,
		EmbeddingModel:        embeddingModel,
		CompletionModel:       completionModel,
		MaxConversationTokens: getEnv("MAX_CONVERSATION_TOKENS", ""),
		MaxCompletionTokens:   getEnv("MAX_COMPLETION_TOKENS", ""),
		MaxEmbeddingTokens:    getEnv("MAX_EMBEDDING_TOKENS", ""),
	})
	if err != nil {
		log.Fatalf("Failed to configure LLM gateway: %v", err)
	}

	log.Println("✅ LLM gateway configured")

	// Initialize components around the gateway's configured budgets
	memMgr := memory.NewManager(gw.MaxConversationTokens())
	ranker := retrieval.NewRanker(retrieval.Config{})
	ingestor := docs.NewIngestor(gw.MaxEmbeddingTokens())

	chatEngine := chat.NewEngine(gw, database, memMgr, ranker, chat.Config{})

	// Initialize handlers
	authHandler := api.NewAuthHandler(database, jwtSecret)
	oauthHandler := api.NewOAuthHandler(database, jwtSecret)
	documentHandler := api.NewDocumentHandler(database, ingestor, gw)
	conversationHandler := api.NewConversationHandler(database)
	chatHandler := ws.NewChatHandler(chatEngine, jwtSecret)

	// Setup Gin router
	router := gin.Default()

	router.Use(middleware.CORS(splitOrigins(corsOrigins)))
	router.Use(middleware.SecurityHeaders())

	// Global rate limiting (100 requests/minute per IP, burst of 200)
	router.Use(middleware.PerIP(100.0/60.0, 200))

	// Health check, including provider breaker state
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"provider": chatEngine.BreakerState().String(),
			"time":     time.Now().Unix(),
		})
	})

	// Auth routes (public)
	auth := router.Group("/api/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.GET("/me", middleware.JWTAuth(jwtSecret), authHandler.Me)

		auth.GET("/google", oauthHandler.GoogleLogin)
		auth.GET("/google/callback", oauthHandler.GoogleCallback)
	}

	// Protected API routes (per-user rate limiting on top of the IP limit)
	apiGroup := router.Group("/api")
	apiGroup.Use(middleware.JWTAuth(jwtSecret))
	apiGroup.Use(middleware.PerUser(500.0/3600.0, 100)) // 500/hour per user
	{
		documentHandler.RegisterRoutes(apiGroup)
		conversationHandler.RegisterRoutes(apiGroup)
	}

	// WebSocket chat route (token validated in the handler)
	router.GET("/ws/chat", chatHandler.HandleChat)

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Printf("🚀 Server starting on http://localhost:%s", port)
		log.Printf("📝 API endpoints:")
		log.Printf("   POST   /api/auth/register")
		log.Printf("   POST   /api/auth/login")
		log.Printf("   GET    /api/auth/me")
		log.Printf("   GET    /api/auth/google")
		log.Printf("   GET    /api/auth/google/callback")
		log.Printf("   POST   /api/documents")
		log.Printf("   GET    /api/documents")
		log.Printf("   DELETE /api/documents/:id")
		log.Printf("   GET    /api/conversations")
		log.Printf("   GET    /api/conversations/:id")
		log.Printf("   DELETE /api/conversations/:id")
		log.Printf("   GET    /api/conversations/:id/messages")
		log.Printf("   WS     /ws/chat")
		log.Printf("")
		log.Printf("Press Ctrl+C to stop")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitOrigins(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
