package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port            string
	Environment     string
	SupabaseURL     string
	SupabaseDBURL   string
	SupabaseJWKSURL string // Constructed from SupabaseURL + /auth/v1/.well-known/jwks.json
	CORSOrigins     string
	TablePrefix     string
	// StoreBackend selects the remote store gateway: "postgres" or "memory"
	StoreBackend string
	// DevUserID bypasses JWT auth in dev when set
	DevUserID string
	// Sweeper
	SweepInterval time.Duration // 0 disables the background loop
	SweepMinGap   time.Duration // minimum gap between sweep batch writes
	// Posting-time advisor
	AdvisorTimezone   string
	AdvisorConfigPath string
	// External scorer; RescorePost is disabled when ScorerURL is empty
	ScorerURL string
	ScorerKey string
	// ProfileRefreshGap limits how often an unknown user triggers a profile reload
	ProfileRefreshGap time.Duration
	// LogDir enables a rotating set of log files alongside stdout when set
	LogDir      string
	LogMaxFiles int
	// Display names used when no profile holds a role yet
	AuthorName   string
	DesignerName string
	ApproverName string
}

func Load() *Config {
	env := getEnv("ENVIRONMENT", "dev")
	supabaseURL := getEnv("SUPABASE_URL", "")

	jwksURL := ""
	if supabaseURL != "" {
		jwksURL = supabaseURL + "/auth/v1/.well-known/jwks.json"
	}

	return &Config{
		Port:              getEnv("PORT", "8080"),
		Environment:       env,
		SupabaseURL:       supabaseURL,
		SupabaseDBURL:     getEnv("SUPABASE_DB_URL", ""),
		SupabaseJWKSURL:   jwksURL,
		CORSOrigins:       getEnv("CORS_ORIGINS", "http://localhost:3000"),
		TablePrefix:       getTablePrefix(env),
		StoreBackend:      getEnv("STORE_BACKEND", getDefaultBackend(env)),
		DevUserID:         getEnv("DEV_USER_ID", ""),
		SweepInterval:     getDuration("SWEEP_INTERVAL", 5*time.Minute),
		SweepMinGap:       getDuration("SWEEP_MIN_GAP", time.Second),
		AdvisorTimezone:   getEnv("ADVISOR_TIMEZONE", "UTC"),
		AdvisorConfigPath: getEnv("ADVISOR_CONFIG_PATH", ""),
		ScorerURL:         getEnv("SCORER_URL", ""),
		ScorerKey:         getEnv("SCORER_API_KEY", ""),
		ProfileRefreshGap: getDuration("PROFILE_REFRESH_GAP", time.Minute),
		LogDir:            getEnv("LOG_DIR", ""),
		LogMaxFiles:       getInt("LOG_MAX_FILES", 10),
		AuthorName:        getEnv("AUTHOR_NAME", "Author"),
		DesignerName:      getEnv("DESIGNER_NAME", "Designer"),
		ApproverName:      getEnv("APPROVER_NAME", "Approver"),
	}
}

// getDefaultBackend keeps local development runnable without a database
func getDefaultBackend(env string) string {
	if env == "dev" && os.Getenv("SUPABASE_DB_URL") == "" {
		return "memory"
	}
	return "postgres"
}

// getTablePrefix returns the table prefix based on environment
func getTablePrefix(env string) string {
	// Allow manual override via TABLE_PREFIX env var
	if prefix, ok := os.LookupEnv("TABLE_PREFIX"); ok {
		return prefix
	}

	switch env {
	case "prod":
		return "prod_"
	case "test":
		return "test_"
	default:
		return "dev_"
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}

func getInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}
