package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/joho/godotenv"
)

// Sync scopes
const (
	ScopeAll    = "all"
	ScopePeriod = "period"
)

// Sync auth policies
const (
	AuthOptional = "optional"
	AuthRequired = "required"
)

// Config holds the service configuration
type Config struct {
	Port          string
	DBPath        string
	BusyTimeoutMS int

	DeviceID           string
	LocationPermission bool

	Sync  SyncConfig
	OAuth OAuthConfig

	RateLimitRPS   float64
	RateLimitBurst int

	LogLevel  string
	LogFormat string
}

// SyncConfig configures the remote sync endpoint and scheduler
type SyncConfig struct {
	URL         string
	Interval    time.Duration
	Timeout     time.Duration
	MinGap      time.Duration
	Scope       string
	Auth        string
	BearerToken string
}

// OAuthConfig configures the refresh-token flow used to obtain bearer tokens
type OAuthConfig struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	RefreshToken string
}

// Enabled reports whether enough OAuth settings are present to refresh tokens
func (c OAuthConfig) Enabled() bool {
	return c.TokenURL != "" && c.RefreshToken != ""
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first if present; real environment variables win.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("failed to load .env file")
	}

	cfg := &Config{
		Port:               getString("PORT", ":8080"),
		DBPath:             getString("DB_PATH", "./data/fishing.db"),
		BusyTimeoutMS:      getInt("DB_BUSY_TIMEOUT_MS", 5000),
		DeviceID:           strings.TrimSpace(os.Getenv("DEVICE_ID")),
		LocationPermission: getBool("LOCATION_PERMISSION", false),
		Sync: SyncConfig{
			URL:         os.Getenv("SYNC_URL"),
			Interval:    getDuration("SYNC_INTERVAL", 15*time.Minute),
			Timeout:     getDuration("SYNC_TIMEOUT", 30*time.Second),
			MinGap:      getDuration("SYNC_MIN_GAP", 10*time.Second),
			Scope:       getChoice("SYNC_SCOPE", ScopeAll, ScopeAll, ScopePeriod),
			Auth:        getChoice("SYNC_AUTH", AuthOptional, AuthOptional, AuthRequired),
			BearerToken: strings.TrimSpace(os.Getenv("SYNC_BEARER_TOKEN")),
		},
		OAuth: OAuthConfig{
			TokenURL:     os.Getenv("OAUTH_TOKEN_URL"),
			ClientID:     os.Getenv("OAUTH_CLIENT_ID"),
			ClientSecret: os.Getenv("OAUTH_CLIENT_SECRET"),
			RefreshToken: os.Getenv("OAUTH_REFRESH_TOKEN"),
		},
		RateLimitRPS:   getFloat("RATE_LIMIT_RPS", 20),
		RateLimitBurst: getInt("RATE_LIMIT_BURST", 40),
		LogLevel:       getString("LOG_LEVEL", "info"),
		LogFormat:      getString("LOG_FORMAT", "text"),
	}

	return cfg
}

func getString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		log.Warnf("invalid %s=%q, using default %d", key, v, def)
		return def
	}
	return n
}

func getFloat(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		log.Warnf("invalid %s=%q, using default %v", key, v, def)
		return def
	}
	return f
}

func getBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Warnf("invalid %s=%q, using default %t", key, v, def)
		return def
	}
	return b
}

func getDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		log.Warnf("invalid %s=%q, using default %s", key, v, def)
		return def
	}
	return d
}

func getChoice(key, def string, allowed ...string) string {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if v == "" {
		return def
	}
	for _, a := range allowed {
		if v == a {
			return v
		}
	}
	log.Warnf("invalid %s=%q, using default %s", key, v, def)
	return def
}
