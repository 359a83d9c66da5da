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

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// Supabase storage
	SupabaseURL         string
	SupabaseServiceKey  string
	SupabaseVideoBucket string
	SupabaseImageBucket string

	// Gemini (video analysis)
	GeminiKey   string
	GeminiModel string

	// WaveSpeed (image + video generation, music fallback endpoint)
	WaveSpeedAPIKey string

	// Kie AI (primary music generation; the WaveSpeed key also works here)
	KieAPIKey string

	// Pipeline pacing
	ScenePacingSeconds int // Minimum spacing between consecutive provider submissions
	PollIntervalSecs   int // Interval between provider task status queries
	ImageSettleSecs    int // Wait between the image phase and the video phase
	TaskTimeoutSecs    int // Hard deadline for awaiting a single provider task

	// Worker
	MaxConcurrentRuns int
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	_ = godotenv.Load()

	cfg := &Config{
		APIPort:             getEnv("API_PORT", "8080"),
		WorkerEnabled:       getEnvBool("WORKER_ENABLED", true),
		BackendAPIKey:       getEnv("BACKEND_API_KEY", ""),
		CorsAllowedOrigins:  getEnv("CORS_ALLOWED_ORIGINS", ""),
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		RedisURL:            getEnv("REDIS_URL", "redis://localhost:6379"),
		SupabaseURL:         getEnv("SUPABASE_URL", ""),
		SupabaseServiceKey:  getEnv("SUPABASE_SERVICE_KEY", ""),
		SupabaseVideoBucket: getEnv("SUPABASE_VIDEO_BUCKET", "videos"),
		SupabaseImageBucket: getEnv("SUPABASE_IMAGE_BUCKET", "images"),
		GeminiKey:           getEnv("GEMINI_API_KEY", ""),
		GeminiModel:         getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		WaveSpeedAPIKey:     getEnv("WAVESPEED_API_KEY", ""),
		KieAPIKey:           getEnv("KIE_API_KEY", ""),
		ScenePacingSeconds:  getEnvInt("SCENE_PACING_SECONDS", 3),
		PollIntervalSecs:    getEnvInt("POLL_INTERVAL_SECONDS", 5),
		ImageSettleSecs:     getEnvInt("IMAGE_SETTLE_SECONDS", 10),
		TaskTimeoutSecs:     getEnvInt("TASK_TIMEOUT_SECONDS", 300),
		MaxConcurrentRuns:   getEnvInt("MAX_CONCURRENT_RUNS", 2),
	}

	// The Kie and WaveSpeed accounts share billing; one key can serve both
	if cfg.KieAPIKey == "" {
		cfg.KieAPIKey = cfg.WaveSpeedAPIKey
	}

	// Validate required fields
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.GeminiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}

	if cfg.WaveSpeedAPIKey == "" {
		return nil, fmt.Errorf("WAVESPEED_API_KEY is required")
	}

	if cfg.SupabaseURL == "" || cfg.SupabaseServiceKey == "" {
		return nil, fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_KEY are required")
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
