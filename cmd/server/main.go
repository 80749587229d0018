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

	"courseta-backend/internal/config"
	"courseta-backend/internal/database"
	"courseta-backend/internal/handlers"
	"courseta-backend/internal/index"
	"courseta-backend/internal/llm"
	"courseta-backend/internal/repository"
	"courseta-backend/internal/router"
	"courseta-backend/internal/services"
	"courseta-backend/internal/websocket"
	"courseta-backend/internal/worker"
)

func main() {
	log.Println("🚀 Starting Course TA Backend...")

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	course := config.LoadCourse(cfg.CourseSettingsPath)
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
	docRepo := repository.NewDocumentRepo(pool)
	jobRepo := repository.NewJobRepo(pool)
	sessionRepo := repository.NewSessionRepo(redisClients.Queue)

	// ──── Step 5: Initialize Model Client ────
	var llmClient llm.Client
	switch cfg.LLMProvider {
	case "gemini":
		llmClient, err = llm.NewGeminiClient(context.Background(), cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiEmbModel)
	default:
		llmClient, err = llm.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel, cfg.OpenAIEmbModel)
	}
	if err != nil {
		log.Fatalf("✗ Model client initialization failed: %v", err)
	}
	defer llmClient.Close()
	log.Printf("✓ Model client initialized (%s)", cfg.LLMProvider)

	// ──── Step 6: Load Retrieval Index ────
	searchIndex := index.New()
	chunks, err := docRepo.AllChunks(context.Background())
	if err != nil {
		log.Fatalf("✗ Failed to load stored chunks: %v", err)
	}
	if err := searchIndex.Load(chunks); err != nil {
		log.Fatalf("✗ Failed to build retrieval index: %v", err)
	}
	log.Printf("✓ Retrieval index loaded (%d chunks)", searchIndex.Size())

	// ──── Initialize Services ────
	extractService := services.NewExtractService()
	youtubeService := services.NewYouTubeService()
	chunker := services.NewChunker(cfg.ChunkSize, cfg.ChunkOverlap)
	ingestor := services.NewIngestor(llmClient, extractService, youtubeService, chunker, docRepo, searchIndex)
	assistant := services.NewAssistant(llmClient, searchIndex, sessionRepo, course, cfg.RetrievalK, cfg.LLMConcurrent)

	// ──── Initialize Handlers ────
	queue := worker.NewQueue(redisClients.Queue)
	chatHandler := handlers.NewChatHandler(assistant)
	documentHandler := handlers.NewDocumentHandler(docRepo, jobRepo, queue, searchIndex, youtubeService, extractService, cfg.StoragePath)
	jobHandler := handlers.NewJobHandler(jobRepo)

	// ──── Step 7: Start Job Worker Pool ────
	publisher := worker.NewPublisher(redisClients.Queue)
	workerPool := worker.NewPool(redisClients.Queue, publisher, ingestor, jobRepo, docRepo, 3)
	workerPool.Start()
	log.Println("✓ Worker pool started (3 goroutines)")

	// ──── Step 8: Start WebSocket Hub ────
	wsHub := websocket.NewHub(redisClients.PubSub)
	log.Println("✓ WebSocket hub started")

	// ──── Step 9: Start HTTP Server ────
	r := router.New(chatHandler, documentHandler, jobHandler, wsHub, cfg.FrontendURL, cfg.StaticDir)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")
		workerPool.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("✓ Course TA Backend ready on http://localhost:%s", cfg.Port)
	log.Printf("  Chat: http://localhost:%s/", cfg.Port)
	log.Printf("  API:  http://localhost:%s/api", cfg.Port)
	log.Printf("  WS:   ws://localhost:%s/api/ws", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}
