package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	// Generation worker
	WorkerBaseURL      string
	WorkerAPIKey       string
	WorkerWebhookToken string

	// Supabase
	SupabaseURL            string
	SupabasePublishableKey string
	SupabaseJWTSecret      string
	SupabaseStorageBucket  string

	// Database
	DatabaseURL string

	// Server
	Port        string
	Environment string
	BaseURL     string
}

// Load reads configuration from the environment. Every key has a
// WORKER_/SUPABASE_/etc. environment variable of the same name.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("WORKER_BASE_URL", "http://localhost:9090/v1/")
	v.SetDefault("SUPABASE_STORAGE_BUCKET", "chat-attachments")
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("BASE_URL", "http://localhost:8080")

	cfg := &Config{
		WorkerBaseURL:      v.GetString("WORKER_BASE_URL"),
		WorkerAPIKey:       v.GetString("WORKER_API_KEY"),
		WorkerWebhookToken: v.GetString("WORKER_WEBHOOK_TOKEN"),

		SupabaseURL:            v.GetString("SUPABASE_URL"),
		SupabasePublishableKey: v.GetString("SUPABASE_PUBLISHABLE_KEY"),
		SupabaseJWTSecret:      v.GetString("SUPABASE_JWT_SECRET"),
		SupabaseStorageBucket:  v.GetString("SUPABASE_STORAGE_BUCKET"),

		DatabaseURL: v.GetString("DATABASE_URL"),

		Port:        v.GetString("PORT"),
		Environment: v.GetString("ENVIRONMENT"),
		BaseURL:     v.GetString("BASE_URL"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.WorkerAPIKey == "" {
		return fmt.Errorf("WORKER_API_KEY is required")
	}
	if c.SupabaseURL == "" {
		return fmt.Errorf("SUPABASE_URL is required")
	}
	if c.SupabasePublishableKey == "" {
		return fmt.Errorf("SUPABASE_PUBLISHABLE_KEY is required")
	}
	if c.SupabaseJWTSecret == "" {
		return fmt.Errorf("SUPABASE_JWT_SECRET is required")
	}
	return nil
}
