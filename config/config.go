package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds process-level settings and secrets. Structured pipeline
// configuration (brands, feeds, slots, budgets) lives in the YAML file
// referenced by PipelinePath; see pipeline.go.
type AppConfig struct {
	Port     string
	Timezone string
	DBPath   string
	LogLevel string

	PipelinePath string
	SlotSheet    string // optional XLSX overriding the YAML slot lists

	BaseURL string // public base URL provider callbacks are built from

	ScorerEndpoint string
	ScorerAPIKey   string
	ScorerModel    string

	VideoGenEndpoint string
	VideoGenAPIKey   string

	CaptionsEndpoint      string
	CaptionsAPIKey        string
	CaptionsWebhookSecret string

	BrokerEndpoint string
	BrokerAPIKey   string

	VideoHostEndpoint string
	VideoHostAPIKey   string

	EnforceBudget bool
	CronSecret    string

	// How long a workflow may sit in a processing state before the sweep
	// polls the provider directly.
	StuckAfter time.Duration
}

func Load() AppConfig {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Printf("[cfg] No .env file found or error loading: %v", err)
	}

	get := func(k, def string) string {
		if v := os.Getenv(k); v != "" {
			return v
		}
		return def
	}

	stuckMin, err := strconv.Atoi(get("STUCK_AFTER_MINUTES", "30"))
	if err != nil || stuckMin <= 0 {
		stuckMin = 30
	}

	cfg := AppConfig{
		Port:     get("PORT", "8080"),
		Timezone: get("TZ", "America/New_York"),
		DBPath:   get("DB_PATH", "socialcast.db"),
		LogLevel: get("LOG_LEVEL", "info"),

		PipelinePath: get("PIPELINE_CONFIG", "pipeline.yaml"),
		SlotSheet:    get("SLOT_SHEET", ""),

		BaseURL: get("BASE_URL", "http://localhost:8080"),

		ScorerEndpoint: get("SCORER_ENDPOINT", "https://api.openai.com/v1"),
		ScorerAPIKey:   get("SCORER_API_KEY", ""),
		ScorerModel:    get("SCORER_MODEL", "gpt-4o-mini"),

		VideoGenEndpoint: get("VIDEOGEN_ENDPOINT", ""),
		VideoGenAPIKey:   get("VIDEOGEN_API_KEY", ""),

		CaptionsEndpoint:      get("CAPTIONS_ENDPOINT", ""),
		CaptionsAPIKey:        get("CAPTIONS_API_KEY", ""),
		CaptionsWebhookSecret: get("CAPTIONS_WEBHOOK_SECRET", ""),

		BrokerEndpoint: get("BROKER_ENDPOINT", ""),
		BrokerAPIKey:   get("BROKER_API_KEY", ""),

		VideoHostEndpoint: get("VIDEOHOST_ENDPOINT", ""),
		VideoHostAPIKey:   get("VIDEOHOST_API_KEY", ""),

		EnforceBudget: get("ENFORCE_BUDGET", "true") == "true",
		CronSecret:    get("CRON_SECRET", ""),

		StuckAfter: time.Duration(stuckMin) * time.Minute,
	}
	return cfg
}
