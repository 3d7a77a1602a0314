package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/roomcast/roomcast/internal/audio"
)

// Config holds all runtime configuration, loaded from environment variables.
type Config struct {
	// Room connection
	URL       string // SDP ingest endpoint of the media server
	APIKey    string
	APISecret string

	// Published PCM format
	SampleRate int
	Channels   int

	// Token validity
	TokenTTL time.Duration
}

// Load reads configuration from the environment. A .env.local file is loaded
// first when present; values already in the environment win.
func Load() Config {
	godotenv.Load(".env.local")

	return Config{
		URL:       envStr("ROOMCAST_URL", ""),
		APIKey:    envStr("ROOMCAST_API_KEY", ""),
		APISecret: envStr("ROOMCAST_API_SECRET", ""),

		SampleRate: envInt("ROOMCAST_SAMPLE_RATE", audio.SampleRate),
		Channels:   envInt("ROOMCAST_CHANNELS", audio.Channels),

		TokenTTL: time.Duration(envInt("ROOMCAST_TOKEN_TTL", 3600)) * time.Second,
	}
}

// Validate reports missing connection parameters.
func (c Config) Validate() error {
	var missing []string
	if c.URL == "" {
		missing = append(missing, "ROOMCAST_URL")
	}
	if c.APIKey == "" {
		missing = append(missing, "ROOMCAST_API_KEY")
	}
	if c.APISecret == "" {
		missing = append(missing, "ROOMCAST_API_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing connection parameters: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Format returns the configured PCM format.
func (c Config) Format() audio.Format {
	return audio.Format{SampleRate: c.SampleRate, Channels: c.Channels}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
