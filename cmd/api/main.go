package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/edutoons/backend/internal/api"
	"github.com/edutoons/backend/internal/config"
	"github.com/edutoons/backend/internal/notify"
	"github.com/edutoons/backend/internal/queue"
	"github.com/edutoons/backend/internal/services"
	"github.com/edutoons/backend/internal/storage"
	"github.com/edutoons/backend/internal/worker"
)

func main() {
	log.Println("Starting EduToons API...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Connect to Redis queue
	q, err := queue.New(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to connect to queue: %v", err)
	}
	defer q.Close()
	log.Println("Connected to Redis queue")

	// Initialize storage
	stor := storage.New(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.SupabaseStorageBucket)
	log.Println("Initialized Supabase storage")

	// Initialize generation services (shared by API and worker)
	openaiSvc := services.NewOpenAIService(cfg.OpenAIKey)
	geminiSvc := services.NewGeminiService(cfg.GeminiKey)

	// Create API handler
	handler := api.NewHandler(q, stor, openaiSvc, geminiSvc)
	router := api.NewRouter(handler, api.RouterConfig{
		BackendAPIKey:      cfg.BackendAPIKey,
		CorsAllowedOrigins: cfg.CorsAllowedOrigins,
	})

	if cfg.BackendAPIKey != "" {
		log.Println("API key authentication enabled")
	} else {
		log.Println("WARNING: No BACKEND_API_KEY set — API is unprotected (dev mode)")
	}

	// Start HTTP server
	server := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: router,
	}

	// Start worker if enabled
	var workerCtx context.Context
	var workerCancel context.CancelFunc
	if cfg.WorkerEnabled {
		log.Println("Worker enabled, starting background processing...")

		ttsSvc := services.NewElevenLabsService(cfg.ElevenLabsKey, cfg.ElevenLabsVoiceID)
		ffmpegSvc := services.NewFFmpegService()
		mailer := notify.NewMailer(cfg.SendGridKey, cfg.SenderEmail)

		// Animation provider — Veo preferred, standalone animator as fallback
		var animator services.Animator
		if cfg.VeoEnabled {
			animator = services.NewVeoAnimator(cfg.GeminiKey, cfg.VeoModel, stor)
			log.Printf("Animation provider: Veo (model: %s)", cfg.VeoModel)
		} else {
			animator = services.NewAnimatorService(cfg.AnimatorURL, cfg.AnimatorKey)
			log.Printf("Animation provider: standalone animator (%s)", cfg.AnimatorURL)
		}

		pipeline := worker.NewPipeline(
			stor,
			ffmpegSvc,
			animator,
			ttsSvc,
			mailer,
			cfg.WorkspaceRoot,
			cfg.SceneConcurrency,
			time.Duration(cfg.SignedURLTTLHours)*time.Hour,
		)

		w := worker.New(q, pipeline)

		// Start worker in background
		workerCtx, workerCancel = context.WithCancel(context.Background())
		go w.Start(workerCtx, cfg.MaxConcurrentJobs)
	}

	// Start server in goroutine
	go func() {
		log.Printf("API server listening on :%s", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Shutdown worker
	if workerCancel != nil {
		workerCancel()
	}

	// Shutdown HTTP server
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
