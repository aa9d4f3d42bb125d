// Package config provides configuration management with hot-reload support.
// It uses fsnotify to watch for file changes and atomic pointer swaps for zero-downtime updates.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Supported model providers.
const (
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
)

// Supported memory backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Supported emotion cache types.
const (
	CacheNone  = "none"
	CacheLocal = "local"
	CacheRedis = "redis"
)

// Config represents the complete companion service configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	LLM        LLMConfig        `yaml:"llm"`
	ElevenLabs ElevenLabsConfig `yaml:"elevenlabs"`
	Memory     MemoryConfig     `yaml:"memory"`
	Persona    PersonaConfig    `yaml:"persona"`
	Session    SessionConfig    `yaml:"session"`
	Cache      CacheConfig      `yaml:"cache"`
	Archive    ArchiveConfig    `yaml:"archive"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Tracing    TracingConfig    `yaml:"tracing"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
	CORS         CORSConfig    `yaml:"cors"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// CORSConfig lists the origins allowed to call the API.
// An empty list or "*" allows every origin.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// LLMConfig selects and configures the conversational model.
type LLMConfig struct {
	Provider    string        `yaml:"provider"` // gemini, anthropic
	APIKey      string        `yaml:"api_key"`
	BaseURL     string        `yaml:"base_url"`
	Model       string        `yaml:"model"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature *float64      `yaml:"temperature"`
}

// ElevenLabsConfig configures the voice agent provider.
type ElevenLabsConfig struct {
	APIKey  string        `yaml:"api_key"`
	AgentID string        `yaml:"agent_id"`
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// MemoryConfig selects where user memory is persisted.
type MemoryConfig struct {
	Backend    string `yaml:"backend"` // file, sqlite
	Dir        string `yaml:"dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// PersonaConfig controls the companion's system prompt.
type PersonaConfig struct {
	Path          string `yaml:"path"` // empty uses the built-in persona
	CompanionName string `yaml:"companion_name"`
}

// SessionConfig controls idle session expiry. A zero IdleTimeout disables it.
type SessionConfig struct {
	IdleTimeout   time.Duration `yaml:"idle_timeout"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// CacheConfig configures the emotion analysis cache.
type CacheConfig struct {
	Type  string        `yaml:"type"` // none, local, redis
	TTL   time.Duration `yaml:"ttl"`
	Redis RedisConfig   `yaml:"redis"`
}

// RedisConfig holds the redis connection settings.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	Namespace string `yaml:"namespace"`
}

// ArchiveConfig configures the optional transcript archive.
type ArchiveConfig struct {
	S3 S3Config `yaml:"s3"`
}

// S3Config holds the S3 archive settings.
type S3Config struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	UsePathStyle    bool   `yaml:"use_path_style"`
}

// RateLimitConfig defines rate limiting parameters.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
	BurstSize         int  `yaml:"burst_size"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// TracingConfig contains OpenTelemetry tracing settings.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`     // OTLP endpoint (e.g., "localhost:4317")
	ServiceName string  `yaml:"service_name"` // Service name for traces
	SampleRate  float64 `yaml:"sample_rate"`  // Sampling rate (0.0 to 1.0)
	Insecure    bool    `yaml:"insecure"`     // Use insecure connection (no TLS)
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8000,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 120 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		LLM: LLMConfig{
			Provider:  ProviderGemini,
			Model:     "gemini-2.0-flash",
			Timeout:   60 * time.Second,
			MaxTokens: 1024,
		},
		ElevenLabs: ElevenLabsConfig{
			BaseURL: "https://api.elevenlabs.io",
			Timeout: 15 * time.Second,
		},
		Memory: MemoryConfig{
			Backend:    BackendFile,
			Dir:        "memories",
			SQLitePath: "memories/grandpal.db",
		},
		Persona: PersonaConfig{
			CompanionName: "GrandPal",
		},
		Session: SessionConfig{
			IdleTimeout:   30 * time.Minute,
			SweepInterval: time.Minute,
		},
		Cache: CacheConfig{
			Type: CacheLocal,
			TTL:  10 * time.Minute,
			Redis: RedisConfig{
				Addr:      "localhost:6379",
				Namespace: "grandpal",
			},
		},
		Archive: ArchiveConfig{
			S3: S3Config{
				Prefix: "transcripts/",
				Region: "us-east-1",
			},
		},
		RateLimit: RateLimitConfig{
			Enabled:           false,
			RequestsPerMinute: 60,
			BurstSize:         10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			Endpoint:    "localhost:4317",
			ServiceName: "grandpal",
			SampleRate:  1.0,
			Insecure:    true,
		},
	}
}

// Load builds the configuration from an optional YAML file plus the process
// environment. An empty path skips the file.
func Load(path string) (*Config, error) {
	if path != "" {
		return LoadFromFile(path)
	}
	cfg := DefaultConfig()
	cfg.ApplyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// LoadFromFile reads and parses a YAML configuration file.
// Environment variables in the format ${VAR_NAME} are expanded.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration data on top of the defaults, applies
// environment fallbacks and validates the result.
func Parse(data []byte) (*Config, error) {
	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.ApplyEnv(os.LookupEnv)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// ApplyEnv fills unset credentials from well-known environment variables.
// API_HOST and API_PORT override the listen address when present.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	get := func(key string) string {
		v, ok := lookup(key)
		if !ok {
			return ""
		}
		return strings.TrimSpace(v)
	}

	if c.LLM.APIKey == "" {
		switch c.LLM.Provider {
		case ProviderAnthropic:
			c.LLM.APIKey = get("ANTHROPIC_API_KEY")
		default:
			c.LLM.APIKey = get("GEMINI_API_KEY")
		}
	}
	if c.ElevenLabs.APIKey == "" {
		c.ElevenLabs.APIKey = get("ELEVENLABS_API_KEY")
	}
	if c.ElevenLabs.AgentID == "" {
		c.ElevenLabs.AgentID = get("ELEVENLABS_AGENT_ID")
	}
	if host := get("API_HOST"); host != "" {
		c.Server.Host = host
	}
	if port := get("API_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	switch c.LLM.Provider {
	case ProviderGemini, ProviderAnthropic:
	default:
		return fmt.Errorf("llm.provider %q is not supported", c.LLM.Provider)
	}
	if c.LLM.APIKey == "" {
		return fmt.Errorf("llm.api_key is required (set %s)", c.llmKeyEnv())
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm.model is required")
	}
	if c.LLM.Timeout < 0 {
		return fmt.Errorf("llm.timeout cannot be negative")
	}
	if c.ElevenLabs.APIKey == "" {
		return fmt.Errorf("elevenlabs.api_key is required (set ELEVENLABS_API_KEY)")
	}

	switch c.Memory.Backend {
	case BackendFile:
		if c.Memory.Dir == "" {
			return fmt.Errorf("memory.dir is required for the file backend")
		}
	case BackendSQLite:
		if c.Memory.SQLitePath == "" {
			return fmt.Errorf("memory.sqlite_path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("memory.backend %q is not supported", c.Memory.Backend)
	}

	if c.Session.IdleTimeout < 0 || c.Session.SweepInterval < 0 {
		return fmt.Errorf("session durations cannot be negative")
	}
	if c.Session.IdleTimeout > 0 && c.Session.SweepInterval == 0 {
		return fmt.Errorf("session.sweep_interval is required when idle_timeout is set")
	}

	switch c.Cache.Type {
	case "", CacheNone, CacheLocal:
	case CacheRedis:
		if c.Cache.Redis.Addr == "" {
			return fmt.Errorf("cache.redis.addr is required for the redis cache")
		}
	default:
		return fmt.Errorf("cache.type %q is not supported", c.Cache.Type)
	}

	if c.Archive.S3.Enabled && c.Archive.S3.Bucket == "" {
		return fmt.Errorf("archive.s3.bucket is required when the archive is enabled")
	}

	if c.RateLimit.Enabled && c.RateLimit.RequestsPerMinute <= 0 {
		return fmt.Errorf("rate_limit.requests_per_minute must be positive")
	}

	return nil
}

func (c *Config) llmKeyEnv() string {
	if c.LLM.Provider == ProviderAnthropic {
		return "ANTHROPIC_API_KEY"
	}
	return "GEMINI_API_KEY"
}
