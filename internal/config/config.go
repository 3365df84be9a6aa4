package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	APIPort            string
	WorkerEnabled      bool
	BackendAPIKey      string // API key for authenticating requests (empty = no auth, dev mode)
	CorsAllowedOrigins string // Comma-separated allowed origins (empty = *, dev mode)

	// Redis
	RedisURL string

	// Supabase storage
	SupabaseURL           string
	SupabaseServiceKey    string
	SupabaseStorageBucket string

	// OpenAI (storyboard generation)
	OpenAIKey string

	// Gemini (still-image generation; same key drives Veo animation)
	GeminiKey string

	// Veo (image-to-video animation)
	VeoEnabled bool   // Feature flag: when false, the standalone animator API is used instead
	VeoModel   string // Veo model identifier

	// Standalone animation service (legacy image-to-video provider)
	AnimatorURL string
	AnimatorKey string

	// ElevenLabs TTS
	ElevenLabsKey     string
	ElevenLabsVoiceID string

	// SendGrid (completion emails)
	SendGridKey string
	SenderEmail string

	// Worker
	WorkspaceRoot     string // Root directory for per-job transient workspaces
	MaxConcurrentJobs int    // Jobs processed in parallel across workers
	SceneConcurrency  int    // Scenes processed in parallel within one job (1 = sequential)
	SignedURLTTLHours int    // Lifetime of the final video's download link
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	_ = godotenv.Load()

	cfg := &Config{
		APIPort:               getEnv("API_PORT", "8080"),
		WorkerEnabled:         getEnvBool("WORKER_ENABLED", true),
		BackendAPIKey:         getEnv("BACKEND_API_KEY", ""),
		CorsAllowedOrigins:    getEnv("CORS_ALLOWED_ORIGINS", ""),
		RedisURL:              getEnv("REDIS_URL", "redis://localhost:6379"),
		SupabaseURL:           getEnv("SUPABASE_URL", ""),
		SupabaseServiceKey:    getEnv("SUPABASE_SERVICE_KEY", ""),
		SupabaseStorageBucket: getEnv("SUPABASE_STORAGE_BUCKET", "edutoons-storage"),
		OpenAIKey:             getEnv("OPENAI_API_KEY", ""),
		GeminiKey:             getEnv("GEMINI_API_KEY", ""),
		VeoEnabled:            getEnvBool("VEO_ENABLED", true),
		VeoModel:              getEnv("VEO_MODEL", "veo-3.1-generate-preview"),
		AnimatorURL:           getEnv("ANIMATOR_API_URL", ""),
		AnimatorKey:           getEnv("ANIMATOR_API_KEY", ""),
		ElevenLabsKey:         getEnv("ELEVENLABS_API_KEY", ""),
		ElevenLabsVoiceID:     getEnv("ELEVENLABS_VOICE_ID", ""),
		SendGridKey:           getEnv("SENDGRID_API_KEY", ""),
		SenderEmail:           getEnv("SENDER_EMAIL", ""),
		WorkspaceRoot:         getEnv("WORKSPACE_ROOT", "/tmp/edutoons"),
		MaxConcurrentJobs:     getEnvInt("MAX_CONCURRENT_JOBS", 5),
		SceneConcurrency:      getEnvInt("SCENE_CONCURRENCY", 1),
		SignedURLTTLHours:     getEnvInt("SIGNED_URL_TTL_HOURS", 10),
	}

	// Validate required fields
	if cfg.OpenAIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}

	if cfg.GeminiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}

	if cfg.ElevenLabsKey == "" {
		return nil, fmt.Errorf("ELEVENLABS_API_KEY is required")
	}

	if cfg.SupabaseURL == "" || cfg.SupabaseServiceKey == "" {
		return nil, fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_KEY are required")
	}

	// At least one image-to-video provider must be configured
	if !cfg.VeoEnabled && cfg.AnimatorURL == "" {
		return nil, fmt.Errorf("either VEO_ENABLED or ANIMATOR_API_URL is required for animation")
	}

	if cfg.SendGridKey == "" || cfg.SenderEmail == "" {
		return nil, fmt.Errorf("SENDGRID_API_KEY and SENDER_EMAIL are required for notifications")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		b, err := strconv.ParseBool(value)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		i, err := strconv.Atoi(value)
		if err == nil {
			return i
		}
	}
	return defaultValue
}
