package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"randomvoice/native/internal/domain"
)

// Config holds the application configuration.
type Config struct {
	API                 string
	Nickname            string
	ICEServers          []domain.ICEServer
	ICEURL              string
	CaptureAddr         string
	PlaybackPath        string
	MetricsAddr         string
	ConnectivityTimeout time.Duration
	PingInterval        time.Duration
	Debug               bool
}

const (
	defaultCaptureAddr         = "127.0.0.1:5004"
	defaultPlaybackPath        = "partner.ogg"
	defaultConnectivityTimeout = 15 * time.Second
	defaultPingInterval        = 25 * time.Second
)

// Load reads configuration from a .env file (if present) and environment variables.
// Environment variables take precedence over .env values.
func Load() (*Config, error) {
	// godotenv.Load does not overwrite existing env vars
	_ = godotenv.Load()
	return fromEnv(os.Getenv)
}

func fromEnv(getenv func(string) string) (*Config, error) {
	api := getenv("RV_API")
	if api == "" {
		return nil, fmt.Errorf("RV_API environment variable is required")
	}

	cfg := &Config{
		API:                 api,
		Nickname:            getenv("RV_NICKNAME"),
		ICEServers:          domain.DefaultICEServers(),
		ICEURL:              getenv("RV_ICE_URL"),
		CaptureAddr:         orDefault(getenv("RV_CAPTURE_ADDR"), defaultCaptureAddr),
		PlaybackPath:        orDefault(getenv("RV_PLAYBACK_PATH"), defaultPlaybackPath),
		MetricsAddr:         getenv("RV_METRICS_ADDR"),
		ConnectivityTimeout: defaultConnectivityTimeout,
		PingInterval:        defaultPingInterval,
	}

	if raw := getenv("RV_ICE_SERVERS"); raw != "" {
		var servers []domain.ICEServer
		if err := json.Unmarshal([]byte(raw), &servers); err != nil {
			return nil, fmt.Errorf("RV_ICE_SERVERS: %w", err)
		}
		cfg.ICEServers = servers
	}

	var err error
	if cfg.ConnectivityTimeout, err = duration(getenv, "RV_CONNECTIVITY_TIMEOUT", cfg.ConnectivityTimeout); err != nil {
		return nil, err
	}
	if cfg.PingInterval, err = duration(getenv, "RV_PING_INTERVAL", cfg.PingInterval); err != nil {
		return nil, err
	}

	if raw := getenv("RV_DEBUG"); raw != "" {
		if cfg.Debug, err = strconv.ParseBool(raw); err != nil {
			return nil, fmt.Errorf("RV_DEBUG: %w", err)
		}
	}

	return cfg, nil
}

func duration(getenv func(string) string, key string, def time.Duration) (time.Duration, error) {
	raw := getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: must not be negative", key)
	}
	return d, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
