// Package config loads the crossfade configuration from a TOML file, an
// optional .env file and environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const (
	ProviderOllama = "ollama"
	ProviderGemini = "gemini"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Spotify  SpotifyConfig  `toml:"spotify"`
	LLM      LLMConfig      `toml:"llm"`
	Dialogue DialogueConfig `toml:"dialogue"`
	Worker   WorkerConfig   `toml:"worker"`
	Logging  LoggingConfig  `toml:"logging"`
}

type ServerConfig struct {
	Host                     string `toml:"host"`
	Port                     string `toml:"port"`
	ReadHeaderTimeoutSeconds int    `toml:"read_header_timeout_seconds"`
	EnableCORS               bool   `toml:"enable_cors"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

// SpotifyConfig holds the catalog credentials and retry policy. A
// max_retries of 1 means a single attempt.
type SpotifyConfig struct {
	ClientID       string `toml:"client_id"`
	ClientSecret   string `toml:"client_secret"`
	APIBaseURL     string `toml:"api_base_url"`
	TokenURL       string `toml:"token_url"`
	Market         string `toml:"market"`
	MaxRetries     int    `toml:"max_retries"`
	RetryBackoffMs int    `toml:"retry_backoff_ms"`
}

type LLMConfig struct {
	Provider     string  `toml:"provider"`
	OllamaHost   string  `toml:"ollama_host"`
	Model        string  `toml:"model"`
	GeminiAPIKey string  `toml:"gemini_api_key"`
	GeminiModel  string  `toml:"gemini_model"`
	Temperature  float64 `toml:"temperature"`
	MaxTokens    int     `toml:"max_tokens"`
}

type DialogueConfig struct {
	MaxQuestionRounds int `toml:"max_question_rounds"`
	TargetTracks      int `toml:"target_tracks"`
}

type WorkerConfig struct {
	Workers              int `toml:"workers"`
	QueueSize            int `toml:"queue_size"`
	PurgeIntervalMinutes int `toml:"purge_interval_minutes"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	File   string `toml:"file"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:                     "0.0.0.0",
			Port:                     "8080",
			ReadHeaderTimeoutSeconds: 10,
			EnableCORS:               true,
		},
		Database: DatabaseConfig{
			Path: "./crossfade.db",
		},
		Spotify: SpotifyConfig{
			APIBaseURL:     "https://api.spotify.com/v1",
			TokenURL:       "https://accounts.spotify.com/api/token",
			Market:         "US",
			MaxRetries:     1,
			RetryBackoffMs: 500,
		},
		LLM: LLMConfig{
			Provider:    ProviderOllama,
			OllamaHost:  "http://localhost:11434",
			Model:       "llama3.1:8b",
			GeminiModel: "gemini-2.0-flash",
			Temperature: 0.7,
			MaxTokens:   300,
		},
		Dialogue: DialogueConfig{
			MaxQuestionRounds: 2,
			TargetTracks:      20,
		},
		Worker: WorkerConfig{
			Workers:              2,
			QueueSize:            100,
			PurgeIntervalMinutes: 60,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig loads configuration from a TOML file, writing the defaults
// when the file does not exist, then applies environment overrides.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); errors.Is(err, fs.ErrNotExist) {
		if err := cfg.SaveToFile(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config file: %w", err)
		}
	} else if _, err := toml.DecodeFile(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment
// without overwriting variables that are already set. A missing file is ignored.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// SaveToFile saves the configuration to a TOML file
func (c *Config) SaveToFile(configPath string) error {
	if dir := filepath.Dir(configPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	file, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	header := "# crossfade configuration\n# Secrets can be left empty here and supplied through the environment or .env.\n\n"
	if _, err := file.WriteString(header); err != nil {
		return fmt.Errorf("failed to write config header: %w", err)
	}
	if err := toml.NewEncoder(file).Encode(c); err != nil {
		return fmt.Errorf("failed to encode config to TOML: %w", err)
	}
	return nil
}

// ApplyEnv overrides file values with the environment variables present in lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", key, v, err)
		}
		*dst = n
		return nil
	}

	str("SPOTIFY_CLIENT_ID", &c.Spotify.ClientID)
	str("SPOTIFY_CLIENT_SECRET", &c.Spotify.ClientSecret)
	str("LLM_PROVIDER", &c.LLM.Provider)
	str("OLLAMA_HOST", &c.LLM.OllamaHost)
	str("OLLAMA_MODEL", &c.LLM.Model)
	str("GEMINI_API_KEY", &c.LLM.GeminiAPIKey)
	str("DATABASE_PATH", &c.Database.Path)
	str("PORT", &c.Server.Port)
	str("LOG_LEVEL", &c.Logging.Level)
	if err := num("SPOTIFY_MAX_RETRIES", &c.Spotify.MaxRetries); err != nil {
		return err
	}
	return num("SPOTIFY_RETRY_BACKOFF_MS", &c.Spotify.RetryBackoffMs)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port cannot be empty")
	}
	if c.Server.ReadHeaderTimeoutSeconds < 0 {
		return fmt.Errorf("server read header timeout must be positive")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if c.Spotify.MaxRetries < 1 {
		return fmt.Errorf("spotify max retries must be at least 1")
	}
	if c.Spotify.RetryBackoffMs < 0 {
		return fmt.Errorf("spotify retry backoff cannot be negative")
	}

	switch c.LLM.Provider {
	case ProviderOllama:
		if c.LLM.OllamaHost == "" {
			return fmt.Errorf("ollama host cannot be empty")
		}
	case ProviderGemini:
		if c.LLM.GeminiAPIKey == "" {
			return fmt.Errorf("gemini provider requires an API key")
		}
	default:
		return fmt.Errorf("invalid llm provider: %s (must be ollama or gemini)", c.LLM.Provider)
	}

	if c.Dialogue.MaxQuestionRounds < 1 {
		return fmt.Errorf("dialogue max question rounds must be at least 1")
	}
	if c.Dialogue.TargetTracks < 1 {
		return fmt.Errorf("dialogue target tracks must be at least 1")
	}
	if c.Worker.Workers < 1 || c.Worker.QueueSize < 1 {
		return fmt.Errorf("worker count and queue size must be at least 1")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}
	validLogFormats := map[string]bool{
		"text": true, "json": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Logging.Format)
	}
	return nil
}

// Address returns the full server address
func (c *Config) Address() string {
	return c.Server.Host + ":" + c.Server.Port
}

// HasSpotifyCredentials reports whether client credentials are configured.
func (c *Config) HasSpotifyCredentials() bool {
	return c.Spotify.ClientID != "" && c.Spotify.ClientSecret != ""
}
