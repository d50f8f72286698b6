package api

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.temporal.io/sdk/client"
)

// Change feed modes.
const (
	ChangeFeedMemory   = "memory"
	ChangeFeedPostgres = "postgres"
	ChangeFeedAMQP     = "amqp"
)

// Config carries environment-driven settings for the dispatch API process.
type Config struct {
	Port               string
	PostgresDSN        string
	ChangeFeed         string
	AMQPURL            string
	StatusPollInterval time.Duration
	SessionResetDelay  time.Duration
	RetryMaxAttempts   int
	RetryBaseDelay     time.Duration
	RetryMaxDelay      time.Duration
	LockTimeout        time.Duration
	CORSAllowedOrigins []string
	TemporalAddress    string
	TemporalNamespace  string
	TemporalDisabled   bool
}

// LoadDotEnv loads a .env file into the environment when one exists. Variables already set win.
func LoadDotEnv(paths ...string) error {
	if err := godotenv.Load(paths...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// LoadConfig reads environment variables, applies defaults, and validates basic constraints.
func LoadConfig() (Config, error) {
	cfg := Config{
		Port:               envDefault("PORT", "8080"),
		PostgresDSN:        strings.TrimSpace(os.Getenv("POSTGRES_DSN")),
		AMQPURL:            strings.TrimSpace(os.Getenv("AMQP_URL")),
		CORSAllowedOrigins: splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		TemporalAddress:    envDefault("TEMPORAL_ADDRESS", client.DefaultHostPort),
		TemporalNamespace:  envDefault("TEMPORAL_NAMESPACE", client.DefaultNamespace),
		TemporalDisabled:   isTruthy(os.Getenv("TEMPORAL_DISABLED")),
	}

	defaultFeed := ChangeFeedMemory
	if cfg.PostgresDSN != "" {
		defaultFeed = ChangeFeedPostgres
	}
	cfg.ChangeFeed = strings.ToLower(envDefault("CHANGE_FEED", defaultFeed))
	switch cfg.ChangeFeed {
	case ChangeFeedMemory:
	case ChangeFeedPostgres:
		if cfg.PostgresDSN == "" {
			return Config{}, fmt.Errorf("CHANGE_FEED=postgres requires POSTGRES_DSN")
		}
	case ChangeFeedAMQP:
		if cfg.AMQPURL == "" {
			return Config{}, fmt.Errorf("CHANGE_FEED=amqp requires AMQP_URL")
		}
	default:
		return Config{}, fmt.Errorf("CHANGE_FEED must be one of memory, postgres, amqp")
	}

	var err error
	if cfg.StatusPollInterval, err = positiveDuration("STATUS_POLL_INTERVAL_SECONDS", 10, time.Second); err != nil {
		return Config{}, err
	}
	if cfg.SessionResetDelay, err = positiveDuration("SESSION_RESET_DELAY_MS", 1500, time.Millisecond); err != nil {
		return Config{}, err
	}
	if cfg.RetryMaxAttempts, err = positiveInt("RETRY_MAX_ATTEMPTS", 3); err != nil {
		return Config{}, err
	}
	if cfg.RetryBaseDelay, err = positiveDuration("RETRY_BASE_DELAY_MS", 200, time.Millisecond); err != nil {
		return Config{}, err
	}
	if cfg.RetryMaxDelay, err = positiveDuration("RETRY_MAX_DELAY_MS", 2000, time.Millisecond); err != nil {
		return Config{}, err
	}
	if cfg.RetryMaxDelay < cfg.RetryBaseDelay {
		return Config{}, fmt.Errorf("RETRY_MAX_DELAY_MS must not be lower than RETRY_BASE_DELAY_MS")
	}
	if cfg.LockTimeout, err = positiveDuration("LOCK_TIMEOUT_MS", 2000, time.Millisecond); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func envDefault(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

func positiveInt(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer", key)
	}
	return n, nil
}

func positiveDuration(key string, fallback int, unit time.Duration) (time.Duration, error) {
	n, err := positiveInt(key, fallback)
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * unit, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func isTruthy(value string) bool {
	value = strings.TrimSpace(strings.ToLower(value))
	return value == "1" || value == "true" || value == "yes"
}
