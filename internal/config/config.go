// Package config provides configuration for the research service.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the research service configuration.
type Config struct {
	// Server settings
	HTTPPort    int
	CORSOrigins []string

	// LLM settings
	Mode            string // live or mock
	LLMBaseURL      string
	LLMAPIKey       string
	LLMTimeout      time.Duration
	SearchModel     string
	SpecialistModel string
	ResponseModel   string

	// Flow timeouts
	SearchTimeout     time.Duration
	ExtractionTimeout time.Duration
	FanOutTimeout     time.Duration
	SynthesisTimeout  time.Duration

	MaxConcurrentExtractions int
	MaxSourcesPerPlatform    int
	MaxQueryLength           int

	// Session lifecycle
	SessionTTL    time.Duration
	SessionMaxAge time.Duration
	SweepInterval time.Duration

	// WebSocket settings
	SubscriberBuffer  int
	HeartbeatInterval time.Duration
	WriteTimeout      time.Duration
	ReadTimeout       time.Duration
	MaxMessageSize    int64

	// Database
	DatabaseURL string

	// Policy
	PolicyFile string

	// Rate limits
	CreateRateLimitPerMin int
	StatusRateLimitPerMin int
	RateLimitMaxClients   int

	// Tracing
	TracingExporter string
	OTLPEndpoint    string

	// Logging
	LogLevel string
	Debug    bool
}

// DefaultCORSOrigins are the development frontends allowed when CORS_ORIGINS is unset.
var DefaultCORSOrigins = []string{
	"http://localhost:5173",
	"http://localhost:3000",
	"http://localhost:3014",
	"http://127.0.0.1:5173",
	"http://127.0.0.1:3014",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("HTTP_PORT", 8097)
	v.SetDefault("CORS_ORIGINS", "")
	v.SetDefault("RESEARCH_MODE", "live")
	v.SetDefault("LLM_BASE_URL", "https://openrouter.ai/api")
	v.SetDefault("LLM_API_KEY", "")
	v.SetDefault("OPENROUTER_API_KEY", "")
	v.SetDefault("LLM_TIMEOUT_MS", 120000)
	v.SetDefault("SEARCH_MODEL", "openai/gpt-4o")
	v.SetDefault("SPECIALIST_MODEL", "openai/o3-mini")
	v.SetDefault("RESPONSE_MODEL", "google/gemini-2.0-flash-001")
	v.SetDefault("SEARCH_TIMEOUT_MS", 90000)
	v.SetDefault("EXTRACTION_TIMEOUT_MS", 120000)
	v.SetDefault("FANOUT_TIMEOUT_MS", 180000)
	v.SetDefault("SYNTHESIS_TIMEOUT_MS", 120000)
	v.SetDefault("MAX_CONCURRENT_EXTRACTIONS", 5)
	v.SetDefault("MAX_SOURCES_PER_PLATFORM", 3)
	v.SetDefault("MAX_QUERY_LENGTH", 1000)
	v.SetDefault("SESSION_TTL_MS", 1800000)
	v.SetDefault("SESSION_MAX_AGE_MS", 7200000)
	v.SetDefault("SWEEP_INTERVAL_MS", 30000)
	v.SetDefault("WS_SUBSCRIBER_BUFFER", 64)
	v.SetDefault("WS_HEARTBEAT_INTERVAL_MS", 30000)
	v.SetDefault("WS_WRITE_TIMEOUT_MS", 10000)
	v.SetDefault("WS_READ_TIMEOUT_MS", 60000)
	v.SetDefault("WS_MAX_MESSAGE_SIZE", 65536)
	v.SetDefault("DATABASE_URL", "file:research?mode=memory&cache=shared")
	v.SetDefault("POLICY_FILE", "")
	v.SetDefault("CREATE_RATE_LIMIT_PER_MIN", 10)
	v.SetDefault("STATUS_RATE_LIMIT_PER_MIN", 60)
	v.SetDefault("RATE_LIMIT_MAX_CLIENTS", 10000)
	v.SetDefault("TRACING_EXPORTER", "")
	v.SetDefault("OTLP_ENDPOINT", "localhost:4318")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DEBUG", false)
}

// Load loads configuration from environment variables and, when configFile is
// set, from a YAML file whose keys use the same names. Environment wins.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	apiKey := v.GetString("LLM_API_KEY")
	if apiKey == "" {
		apiKey = v.GetString("OPENROUTER_API_KEY")
	}

	cfg := &Config{
		HTTPPort:                 v.GetInt("HTTP_PORT"),
		CORSOrigins:              parseList(v.GetString("CORS_ORIGINS")),
		Mode:                     strings.ToLower(v.GetString("RESEARCH_MODE")),
		LLMBaseURL:               v.GetString("LLM_BASE_URL"),
		LLMAPIKey:                apiKey,
		LLMTimeout:               millis(v, "LLM_TIMEOUT_MS"),
		SearchModel:              v.GetString("SEARCH_MODEL"),
		SpecialistModel:          v.GetString("SPECIALIST_MODEL"),
		ResponseModel:            v.GetString("RESPONSE_MODEL"),
		SearchTimeout:            millis(v, "SEARCH_TIMEOUT_MS"),
		ExtractionTimeout:        millis(v, "EXTRACTION_TIMEOUT_MS"),
		FanOutTimeout:            millis(v, "FANOUT_TIMEOUT_MS"),
		SynthesisTimeout:         millis(v, "SYNTHESIS_TIMEOUT_MS"),
		MaxConcurrentExtractions: v.GetInt("MAX_CONCURRENT_EXTRACTIONS"),
		MaxSourcesPerPlatform:    v.GetInt("MAX_SOURCES_PER_PLATFORM"),
		MaxQueryLength:           v.GetInt("MAX_QUERY_LENGTH"),
		SessionTTL:               millis(v, "SESSION_TTL_MS"),
		SessionMaxAge:            millis(v, "SESSION_MAX_AGE_MS"),
		SweepInterval:            millis(v, "SWEEP_INTERVAL_MS"),
		SubscriberBuffer:         v.GetInt("WS_SUBSCRIBER_BUFFER"),
		HeartbeatInterval:        millis(v, "WS_HEARTBEAT_INTERVAL_MS"),
		WriteTimeout:             millis(v, "WS_WRITE_TIMEOUT_MS"),
		ReadTimeout:              millis(v, "WS_READ_TIMEOUT_MS"),
		MaxMessageSize:           v.GetInt64("WS_MAX_MESSAGE_SIZE"),
		DatabaseURL:              v.GetString("DATABASE_URL"),
		PolicyFile:               v.GetString("POLICY_FILE"),
		CreateRateLimitPerMin:    v.GetInt("CREATE_RATE_LIMIT_PER_MIN"),
		StatusRateLimitPerMin:    v.GetInt("STATUS_RATE_LIMIT_PER_MIN"),
		RateLimitMaxClients:      v.GetInt("RATE_LIMIT_MAX_CLIENTS"),
		TracingExporter:          strings.ToLower(v.GetString("TRACING_EXPORTER")),
		OTLPEndpoint:             v.GetString("OTLP_ENDPOINT"),
		LogLevel:                 v.GetString("LOG_LEVEL"),
		Debug:                    v.GetBool("DEBUG"),
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = append([]string(nil), DefaultCORSOrigins...)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	var errs []error
	positive := map[string]time.Duration{
		"LLM_TIMEOUT_MS":           c.LLMTimeout,
		"SEARCH_TIMEOUT_MS":        c.SearchTimeout,
		"EXTRACTION_TIMEOUT_MS":    c.ExtractionTimeout,
		"FANOUT_TIMEOUT_MS":        c.FanOutTimeout,
		"SYNTHESIS_TIMEOUT_MS":     c.SynthesisTimeout,
		"SESSION_TTL_MS":           c.SessionTTL,
		"SESSION_MAX_AGE_MS":       c.SessionMaxAge,
		"SWEEP_INTERVAL_MS":        c.SweepInterval,
		"WS_HEARTBEAT_INTERVAL_MS": c.HeartbeatInterval,
		"WS_WRITE_TIMEOUT_MS":      c.WriteTimeout,
		"WS_READ_TIMEOUT_MS":       c.ReadTimeout,
	}
	for key, d := range positive {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", key))
		}
	}
	ints := map[string]int{
		"HTTP_PORT":                  c.HTTPPort,
		"MAX_CONCURRENT_EXTRACTIONS": c.MaxConcurrentExtractions,
		"MAX_SOURCES_PER_PLATFORM":   c.MaxSourcesPerPlatform,
		"MAX_QUERY_LENGTH":           c.MaxQueryLength,
		"WS_SUBSCRIBER_BUFFER":       c.SubscriberBuffer,
		"CREATE_RATE_LIMIT_PER_MIN":  c.CreateRateLimitPerMin,
		"STATUS_RATE_LIMIT_PER_MIN":  c.StatusRateLimitPerMin,
		"RATE_LIMIT_MAX_CLIENTS":     c.RateLimitMaxClients,
	}
	for key, n := range ints {
		if n <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", key))
		}
	}
	if c.MaxMessageSize <= 0 {
		errs = append(errs, errors.New("WS_MAX_MESSAGE_SIZE must be positive"))
	}
	if c.Mode != "live" && c.Mode != "mock" {
		errs = append(errs, fmt.Errorf("RESEARCH_MODE must be live or mock, got %q", c.Mode))
	}
	if c.TracingExporter != "" && c.TracingExporter != "otlp" {
		errs = append(errs, fmt.Errorf("unsupported TRACING_EXPORTER %q", c.TracingExporter))
	}
	if c.ReadTimeout <= c.HeartbeatInterval && c.ReadTimeout > 0 {
		errs = append(errs, errors.New("WS_READ_TIMEOUT_MS must be longer than WS_HEARTBEAT_INTERVAL_MS"))
	}
	return errors.Join(errs...)
}

// IsMock reports whether the offline research toolkit is selected.
func (c *Config) IsMock() bool {
	return c.Mode == "mock"
}

func millis(v *viper.Viper, key string) time.Duration {
	return time.Duration(v.GetInt64(key)) * time.Millisecond
}

func parseList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
