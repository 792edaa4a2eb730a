package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// DefaultUpstreamURL is the university's public garage status page.
const DefaultUpstreamURL = "https://sjsuparkingstatus.sjsu.edu/"

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Upstream status page.
	UpstreamURL string

	// CacheMaxAge is advertised to shared caches on successful snapshot responses.
	CacheMaxAge time.Duration

	// RefreshInterval enables the background poller when non-zero.
	RefreshInterval time.Duration

	// Snapshot publishing; disabled when KafkaBrokers is empty.
	KafkaBrokers []string
	KafkaTopic   string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	cacheMaxAge, err := parseDuration("CACHE_MAX_AGE", "60s")
	if err != nil {
		return nil, err
	}

	refreshInterval, err := parseDuration("REFRESH_INTERVAL", "0")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        strings.ToLower(sharedcfg.EnvOrDefault("LOG_LEVEL", "info")),
		LogFormat:       strings.ToLower(sharedcfg.EnvOrDefault("LOG_FORMAT", "json")),
		ShutdownTimeout: shutdownTimeout,
		UpstreamURL:     sharedcfg.EnvOrDefault("UPSTREAM_URL", DefaultUpstreamURL),
		CacheMaxAge:     cacheMaxAge,
		RefreshInterval: refreshInterval,
		KafkaBrokers:    sharedcfg.ParseBrokers(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:      sharedcfg.EnvOrDefault("KAFKA_TOPIC", "garage-occupancy"),
	}

	if err := validateUpstreamURL(cfg.UpstreamURL); err != nil {
		return nil, err
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("invalid LOG_LEVEL %q", cfg.LogLevel)
	}
	switch cfg.LogFormat {
	case "json", "text":
	default:
		return nil, fmt.Errorf("invalid LOG_FORMAT %q", cfg.LogFormat)
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

// PublishEnabled reports whether snapshots should be published to Kafka.
// Publishing rides on the poller, so both must be configured.
func (c *Config) PublishEnabled() bool {
	return len(c.KafkaBrokers) > 0 && c.RefreshInterval > 0
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func validateUpstreamURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid UPSTREAM_URL: %w", err)
	}
	if (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return fmt.Errorf("invalid UPSTREAM_URL %q: must be an absolute http(s) URL", raw)
	}
	return nil
}
