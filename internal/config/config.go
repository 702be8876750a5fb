package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime settings, loaded from the environment.
type Config struct {
	Env  string
	Port int

	// Club server endpoints.
	ServerBaseURL string
	ChannelURL    string

	// Local UI API token; UI consumers attach it as a bearer token.
	LocalAPIToken string

	// Connection policy.
	BackoffBase       time.Duration
	BackoffCap        time.Duration
	HeartbeatInterval time.Duration

	// Presence policy.
	TypingDebounce time.Duration
	TypingTTL      time.Duration

	// Alert policy.
	DismissalTTL time.Duration
	DueSoonDays  int

	// Modal policy.
	ModalCoalesceDelay time.Duration

	MessagePageSize int

	AMQPURL      string
	AMQPExchange string

	SQLitePath   string
	OTLPEndpoint string
	Debug        bool
}

// Load reads the configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Env:           getEnv("APP_ENV", "development"),
		Port:          getEnvAsInt("PORT", 8086),
		ServerBaseURL: getEnv("CLUB_SERVER_URL", "http://localhost:8080"),
		ChannelURL:    getEnv("CLUB_CHANNEL_URL", "ws://localhost:8080/ws"),
		LocalAPIToken: os.Getenv("LOCAL_API_TOKEN"),

		BackoffBase:       getEnvAsDuration("BACKOFF_BASE", time.Second),
		BackoffCap:        getEnvAsDuration("BACKOFF_CAP", 30*time.Second),
		HeartbeatInterval: getEnvAsDuration("HEARTBEAT_INTERVAL", 25*time.Second),

		TypingDebounce: getEnvAsDuration("TYPING_DEBOUNCE", 3*time.Second),
		TypingTTL:      getEnvAsDuration("TYPING_TTL", 6*time.Second),

		DismissalTTL: getEnvAsDuration("DISMISSAL_TTL", 30*time.Minute),
		DueSoonDays:  getEnvAsInt("DUE_SOON_DAYS", 7),

		ModalCoalesceDelay: getEnvAsDuration("MODAL_COALESCE_DELAY", 300*time.Millisecond),

		MessagePageSize: getEnvAsInt("MESSAGE_PAGE_SIZE", 50),

		AMQPURL:      os.Getenv("AMQP_URL"),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "clubsync.events"),

		SQLitePath:   getEnv("SQLITE_PATH", "clubsync.db"),
		OTLPEndpoint: os.Getenv("OTLP_ENDPOINT"),
		Debug:        getEnvAsBool("DEBUG", false),
	}

	if cfg.BackoffBase <= 0 || cfg.BackoffCap < cfg.BackoffBase {
		return nil, fmt.Errorf("invalid backoff window: base=%s cap=%s", cfg.BackoffBase, cfg.BackoffCap)
	}
	if cfg.MessagePageSize <= 0 {
		return nil, fmt.Errorf("MESSAGE_PAGE_SIZE must be positive")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}
