package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the support bot server.
type Config struct {
	Port          int
	Version       string
	TenantDir     string
	WebhookSecret string
	Cascade       CascadeConfig
	Remote        RemoteConfig
	Embeddings    EmbeddingsConfig
	Sessions      SessionConfig
	Telemetry     TelemetryConfig
}

// CascadeConfig is the single documented default set for the decision
// cascade. Tenant files may override these per tenant; nothing else does.
type CascadeConfig struct {
	ConfidenceFloor   float64 // below this a local answer counts as unresolved
	LeadThreshold     int     // crossing emits a lead event
	MaxTurns          int     // turn ceiling before forced escalation
	AngryStreak       int     // consecutive angry turns before escalation
	MaxMessageChars   int     // oversized input is rejected
	SemanticThreshold float64 // min cosine similarity for a semantic hit
	KeywordMinOverlap float64 // min keyword fraction for a keyword hit
	MaxFollowups      int
}

type RemoteConfig struct {
	Provider    string // anthropic | openai | ollama
	Model       string
	APIKey      string
	Endpoint    string
	Timeout     time.Duration
	MaxAttempts int
}

// EmbeddingsConfig selects the optional embedding provider for semantic
// knowledge lookup. Empty provider disables semantic lookup.
type EmbeddingsConfig struct {
	Provider string // openai | ollama | ""
	Model    string
	APIKey   string
	Endpoint string
}

type SessionConfig struct {
	TTL            time.Duration
	ReaperInterval time.Duration
}

type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	ServiceName  string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		Port:          envInt("SUPPORTBOT_PORT", 8080),
		Version:       envStr("SUPPORTBOT_VERSION", "0.4.0"),
		TenantDir:     envStr("SUPPORTBOT_TENANT_DIR", "config/tenants"),
		WebhookSecret: envStr("SUPPORTBOT_WEBHOOK_SECRET", ""),
		Cascade: CascadeConfig{
			ConfidenceFloor:   envFloat("SUPPORTBOT_CONFIDENCE_FLOOR", 0.7),
			LeadThreshold:     envInt("SUPPORTBOT_LEAD_THRESHOLD", 4),
			MaxTurns:          envInt("SUPPORTBOT_MAX_TURNS", 8),
			AngryStreak:       envInt("SUPPORTBOT_ANGRY_STREAK", 2),
			MaxMessageChars:   envInt("SUPPORTBOT_MAX_MESSAGE_CHARS", 2000),
			SemanticThreshold: envFloat("SUPPORTBOT_SEMANTIC_THRESHOLD", 0.78),
			KeywordMinOverlap: envFloat("SUPPORTBOT_KEYWORD_MIN_OVERLAP", 0.34),
			MaxFollowups:      envInt("SUPPORTBOT_MAX_FOLLOWUPS", 4),
		},
		Remote: RemoteConfig{
			Provider:    envStr("SUPPORTBOT_MODEL_PROVIDER", "anthropic"),
			Model:       envStr("SUPPORTBOT_MODEL", "claude-3-5-haiku-20241022"),
			APIKey:      envStr("SUPPORTBOT_MODEL_API_KEY", os.Getenv("ANTHROPIC_API_KEY")),
			Endpoint:    envStr("SUPPORTBOT_MODEL_ENDPOINT", ""),
			Timeout:     envDuration("SUPPORTBOT_MODEL_TIMEOUT", 12*time.Second),
			MaxAttempts: envInt("SUPPORTBOT_MODEL_MAX_ATTEMPTS", 2),
		},
		Embeddings: EmbeddingsConfig{
			Provider: envStr("SUPPORTBOT_EMBEDDINGS_PROVIDER", ""),
			Model:    envStr("SUPPORTBOT_EMBEDDINGS_MODEL", "text-embedding-3-small"),
			APIKey:   envStr("SUPPORTBOT_EMBEDDINGS_API_KEY", os.Getenv("OPENAI_API_KEY")),
			Endpoint: envStr("SUPPORTBOT_EMBEDDINGS_ENDPOINT", ""),
		},
		Sessions: SessionConfig{
			TTL:            envDuration("SUPPORTBOT_SESSION_TTL", time.Hour),
			ReaperInterval: envDuration("SUPPORTBOT_REAPER_INTERVAL", 5*time.Minute),
		},
		Telemetry: TelemetryConfig{
			Enabled:      envBool("OTEL_ENABLED", false),
			OTLPEndpoint: envStr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			ServiceName:  envStr("OTEL_SERVICE_NAME", "vallhamragruppen-support-bot"),
		},
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
