// Package config loads go-fitdesk settings from the environment.
//
// An optional .env file in the working directory is read first; real
// environment variables always win over it. Command-line flags are applied
// on top by the commands themselves.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Defaults.
const (
	DefaultPort      = "8080"
	DefaultLogLevel  = "info"
	DefaultTTS       = "none"
	DefaultQueueSize = 64
)

// Config holds process-wide settings.
type Config struct {
	Port        string
	LogLevel    string
	Environment string

	// ProfilesDir is an optional directory of extra exercise profiles (*.yaml).
	ProfilesDir string

	// TTS selects the voice backend: "none", "openai" or "mock".
	TTS        string
	TTSVoice   string
	OpenAIKey  string
	TTSTimeout time.Duration

	// QueueSize is the per-sink feedback queue length.
	QueueSize int

	// LandmarkURL is the estimator websocket the tracker connects to.
	LandmarkURL string
}

// Load reads .env (if present) and the environment.
func Load() *Config {
	// Missing .env is normal outside development.
	_ = godotenv.Load()

	return &Config{
		Port:        getEnv("FITDESK_PORT", DefaultPort),
		LogLevel:    getEnv("FITDESK_LOG_LEVEL", DefaultLogLevel),
		Environment: getEnv("FITDESK_ENV", "development"),
		ProfilesDir: os.Getenv("FITDESK_PROFILES_DIR"),
		TTS:         getEnv("FITDESK_TTS", DefaultTTS),
		TTSVoice:    os.Getenv("FITDESK_TTS_VOICE"),
		OpenAIKey:   os.Getenv("OPENAI_API_KEY"),
		TTSTimeout:  getEnvDuration("FITDESK_TTS_TIMEOUT", 15*time.Second),
		QueueSize:   getEnvInt("FITDESK_QUEUE_SIZE", DefaultQueueSize),
		LandmarkURL: getEnv("FITDESK_LANDMARK_URL", "ws://localhost:8765/landmarks"),
	}
}

// IsProduction reports whether JSON logging and release defaults apply.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
