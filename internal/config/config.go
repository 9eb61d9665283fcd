package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the chat daemon.
type Config struct {
	API       APIConfig
	Bridge    BridgeConfig
	Session   SessionConfig
	Poll      PollConfig
	Reconnect ReconnectConfig
	Logger    LoggerConfig
}

// APIConfig locates the HTTP collaborator.
type APIConfig struct {
	BaseURL        string
	TimeoutSeconds int
}

// BridgeConfig controls the local UI bridge listener.
type BridgeConfig struct {
	Addr string
}

// SessionConfig locates the console's local session database.
type SessionConfig struct {
	DBPath string
}

// PollConfig controls the team-chat poll cadence.
type PollConfig struct {
	IntervalSeconds int
}

// ReconnectConfig controls the push-channel retry policy.
type ReconnectConfig struct {
	BaseSeconds int
	MaxSeconds  int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// Load reads configuration from environment variables, applying defaults
// where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	base := os.Getenv("CHAT_API_BASE_URL")
	if base == "" {
		return nil, fmt.Errorf("CHAT_API_BASE_URL is required")
	}

	cfg := &Config{
		API: APIConfig{
			BaseURL:        base,
			TimeoutSeconds: getEnvAsInt("CHAT_API_TIMEOUT_SECONDS", 15),
		},
		Bridge: BridgeConfig{
			Addr: getEnv("CHAT_BRIDGE_ADDR", "127.0.0.1:7450"),
		},
		Session: SessionConfig{
			DBPath: getEnv("CHAT_SESSION_DB", defaultSessionDB()),
		},
		Poll: PollConfig{
			IntervalSeconds: getEnvAsInt("CHAT_POLL_INTERVAL_SECONDS", 3),
		},
		Reconnect: ReconnectConfig{
			BaseSeconds: getEnvAsInt("CHAT_RECONNECT_BASE_SECONDS", 1),
			MaxSeconds:  getEnvAsInt("CHAT_RECONNECT_MAX_SECONDS", 30),
		},
		Logger: LoggerConfig{
			Level: getEnv("CHAT_LOG_LEVEL", "info"),
		},
	}

	return cfg, nil
}

// Timeout returns the HTTP request timeout.
func (a APIConfig) Timeout() time.Duration {
	if a.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// Interval returns the poll cadence.
func (p PollConfig) Interval() time.Duration {
	if p.IntervalSeconds <= 0 {
		return 3 * time.Second
	}
	return time.Duration(p.IntervalSeconds) * time.Second
}

// Base returns the initial reconnect delay.
func (r ReconnectConfig) Base() time.Duration {
	if r.BaseSeconds <= 0 {
		return time.Second
	}
	return time.Duration(r.BaseSeconds) * time.Second
}

// Max returns the reconnect delay cap.
func (r ReconnectConfig) Max() time.Duration {
	if r.MaxSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(r.MaxSeconds) * time.Second
}

func defaultSessionDB() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "console.db"
	}
	return home + "/.config/creativindustry/console.db"
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}
