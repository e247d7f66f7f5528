package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all server configuration
type Config struct {
	Port           int
	AppName        string
	GeminiAPIKey   string
	GeminiModel    string
	Voice          string
	SystemPrompt   string
	RedisURL       string
	RedisPassword  string
	MaxSessions    int
	SessionTimeout time.Duration // 0 disables idle cleanup
	AllowedOrigins []string

	// TLS material; serving is plaintext when CertFile/KeyFile are unset
	TLSCertFile string
	TLSKeyFile  string
	TLSCAFile   string
}

// LoadConfig loads configuration from environment variables with defaults
func LoadConfig() (*Config, error) {
	// Load .env file if it exists (doesn't error if missing)
	_ = godotenv.Load()

	config := &Config{
		Port:           8000,
		AppName:        "AI Agent Streaming example",
		GeminiModel:    "models/gemini-2.5-flash-native-audio-preview-12-2025",
		Voice:          "Zephyr",
		RedisURL:       "localhost:6379",
		RedisPassword:  "",
		MaxSessions:    100,
		SessionTimeout: 0,
		AllowedOrigins: []string{"*"},
	}

	// Required: GEMINI_API_KEY
	config.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	if config.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable is required")
	}

	// Optional: PORT
	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT: %w", err)
		}
		config.Port = p
	}

	// Optional: APP_NAME
	if appName := os.Getenv("APP_NAME"); appName != "" {
		config.AppName = appName
	}

	// Optional: GEMINI_MODEL
	if model := os.Getenv("GEMINI_MODEL"); model != "" {
		config.GeminiModel = model
	}

	// Optional: VOICE_NAME
	// Available voices: Puck, Charon, Kore, Fenrir, Aoede, Leda, Orus, Zephyr
	if voice := os.Getenv("VOICE_NAME"); voice != "" {
		config.Voice = voice
	}

	// Optional: SYSTEM_PROMPT
	if prompt := os.Getenv("SYSTEM_PROMPT"); prompt != "" {
		config.SystemPrompt = prompt
	}

	// Optional: REDIS_URL
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		config.RedisURL = redisURL
	}

	// Optional: REDIS_PASSWORD
	if redisPassword := os.Getenv("REDIS_PASSWORD"); redisPassword != "" {
		config.RedisPassword = redisPassword
	}

	// Optional: MAX_SESSIONS
	if maxSessions := os.Getenv("MAX_SESSIONS"); maxSessions != "" {
		m, err := strconv.Atoi(maxSessions)
		if err != nil {
			return nil, fmt.Errorf("invalid MAX_SESSIONS: %w", err)
		}
		config.MaxSessions = m
	}

	// Optional: SESSION_TIMEOUT (in minutes, 0 disables idle cleanup)
	if timeout := os.Getenv("SESSION_TIMEOUT"); timeout != "" {
		t, err := strconv.Atoi(timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid SESSION_TIMEOUT: %w", err)
		}
		config.SessionTimeout = time.Duration(t) * time.Minute
	}

	// Optional: ALLOWED_ORIGINS (comma-separated)
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		config.AllowedOrigins = strings.Split(origins, ",")
	}

	// Optional: SSL_CERTFILE / SSL_KEYFILE / SSL_CA_CERTS
	config.TLSCertFile = os.Getenv("SSL_CERTFILE")
	config.TLSKeyFile = os.Getenv("SSL_KEYFILE")
	config.TLSCAFile = os.Getenv("SSL_CA_CERTS")
	if (config.TLSCertFile == "") != (config.TLSKeyFile == "") {
		return nil, fmt.Errorf("SSL_CERTFILE and SSL_KEYFILE must be set together")
	}

	return config, nil
}

// TLSEnabled reports whether the server should serve TLS.
func (c *Config) TLSEnabled() bool {
	return c.TLSCertFile != "" && c.TLSKeyFile != ""
}
