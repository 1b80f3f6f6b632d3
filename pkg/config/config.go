// Package config loads service configuration from defaults, an optional
// config file, EVENTBRIEF_* environment variables and command line flags,
// in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable: llm.api_key is read from
// EVENTBRIEF_LLM_API_KEY.
const EnvPrefix = "EVENTBRIEF"

const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"

	BackendMemory = "memory"
	BackendQdrant = "qdrant"
)

// Config is the resolved service configuration.
type Config struct {
	Port       int
	CORSOrigin string
	UploadDir  string
	LogLevel   string

	LLM     LLM
	Embed   Embed
	Index   Index
	Extract Extract
	Context Context

	HistoryPath string
	NATSURL     string
}

// LLM configures the chat completion endpoint.
type LLM struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	RPS         float64
}

// Embed configures the embedding provider. Empty BaseURL and APIKey fall
// back to the LLM ones for the openai provider.
type Embed struct {
	Provider  string
	Model     string
	OllamaURL string
	BaseURL   string
	APIKey    string
}

// Index selects the vector store.
type Index struct {
	Backend   string
	QdrantURL string
}

// Extract tunes batching, retries and pacing.
type Extract struct {
	BatchSize    int
	MaxAttempts  int
	BatchDelay   time.Duration
	SectionDelay time.Duration
}

// Context bounds the document context sent per call.
type Context struct {
	MaxChars      int
	SanitizeLimit int
}

var defaults = map[string]any{
	"port":        8000,
	"cors_origin": "*",
	"upload_dir":  "temp_uploads",
	"log_level":   "info",

	"llm.base_url":    "https://api.groq.com/openai/v1",
	"llm.api_key":     "",
	"llm.model":       "openai/gpt-oss-120b",
	"llm.temperature": 0.0,
	"llm.rps":         2.0,

	"embed.provider":   ProviderOllama,
	"embed.model":      "all-minilm",
	"embed.ollama_url": "http://localhost:11434",
	"embed.base_url":   "",
	"embed.api_key":    "",

	"index.backend":    BackendMemory,
	"index.qdrant_url": "localhost:6334",

	"extract.batch_size":    3,
	"extract.max_attempts":  3,
	"extract.batch_delay":   500 * time.Millisecond,
	"extract.section_delay": time.Second,

	"context.max_chars":      6000,
	"context.sanitize_limit": 2000,

	"history.path": "data/history.db",
	"nats.url":     "",
}

// RegisterFlags adds the commonly overridden settings to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "path to a yaml, json or .env config file")
	fs.Int("port", defaults["port"].(int), "HTTP listen port")
	fs.String("log-level", defaults["log_level"].(string), "log level (debug, info, warn, error)")
	fs.String("upload-dir", defaults["upload_dir"].(string), "directory for per-request uploads")
	fs.String("llm-model", defaults["llm.model"].(string), "chat completion model")
	fs.String("llm-base-url", defaults["llm.base_url"].(string), "OpenAI-compatible API base URL")
	fs.String("embed-provider", defaults["embed.provider"].(string), "embedding provider (openai, ollama)")
	fs.String("index-backend", defaults["index.backend"].(string), "vector store (memory, qdrant)")
	fs.String("history-path", defaults["history.path"].(string), "sqlite fill history path; empty disables history")
	fs.String("nats-url", defaults["nats.url"].(string), "NATS URL for fill events; empty disables events")
}

var flagKeys = map[string]string{
	"port":           "port",
	"log-level":      "log_level",
	"upload-dir":     "upload_dir",
	"llm-model":      "llm.model",
	"llm-base-url":   "llm.base_url",
	"embed-provider": "embed.provider",
	"index-backend":  "index.backend",
	"history-path":   "history.path",
	"nats-url":       "nats.url",
}

// Load resolves the configuration. fs may be nil; flags registered with
// RegisterFlags override everything else when set.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("llm.api_key", EnvPrefix+"_LLM_API_KEY", "GROQ_API_KEY", "OPENAI_API_KEY")

	if fs != nil {
		for flag, key := range flagKeys {
			if f := fs.Lookup(flag); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("config: bind %s: %w", flag, err)
				}
			}
		}
		if f := fs.Lookup("config"); f != nil && f.Value.String() != "" {
			v.SetConfigFile(f.Value.String())
			if strings.HasSuffix(f.Value.String(), ".env") {
				v.SetConfigType("env")
			}
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("config: read %s: %w", f.Value.String(), err)
			}
		}
	}

	cfg := &Config{
		Port:       v.GetInt("port"),
		CORSOrigin: v.GetString("cors_origin"),
		UploadDir:  v.GetString("upload_dir"),
		LogLevel:   strings.ToLower(v.GetString("log_level")),
		LLM: LLM{
			BaseURL:     v.GetString("llm.base_url"),
			APIKey:      v.GetString("llm.api_key"),
			Model:       v.GetString("llm.model"),
			Temperature: v.GetFloat64("llm.temperature"),
			RPS:         v.GetFloat64("llm.rps"),
		},
		Embed: Embed{
			Provider:  strings.ToLower(v.GetString("embed.provider")),
			Model:     v.GetString("embed.model"),
			OllamaURL: v.GetString("embed.ollama_url"),
			BaseURL:   v.GetString("embed.base_url"),
			APIKey:    v.GetString("embed.api_key"),
		},
		Index: Index{
			Backend:   strings.ToLower(v.GetString("index.backend")),
			QdrantURL: v.GetString("index.qdrant_url"),
		},
		Extract: Extract{
			BatchSize:    v.GetInt("extract.batch_size"),
			MaxAttempts:  v.GetInt("extract.max_attempts"),
			BatchDelay:   v.GetDuration("extract.batch_delay"),
			SectionDelay: v.GetDuration("extract.section_delay"),
		},
		Context: Context{
			MaxChars:      v.GetInt("context.max_chars"),
			SanitizeLimit: v.GetInt("context.sanitize_limit"),
		},
		HistoryPath: v.GetString("history.path"),
		NATSURL:     v.GetString("nats.url"),
	}
	if cfg.Embed.BaseURL == "" {
		cfg.Embed.BaseURL = cfg.LLM.BaseURL
	}
	if cfg.Embed.APIKey == "" {
		cfg.Embed.APIKey = cfg.LLM.APIKey
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port must be between 1 and 65535, got %d", c.Port))
	}
	if c.UploadDir == "" {
		errs = append(errs, errors.New("upload_dir must not be empty"))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.LLM.Model == "" {
		errs = append(errs, errors.New("llm.model must not be empty"))
	}
	if c.LLM.RPS < 0 {
		errs = append(errs, errors.New("llm.rps must not be negative"))
	}
	switch c.Embed.Provider {
	case ProviderOpenAI, ProviderOllama:
	default:
		errs = append(errs, fmt.Errorf("embed.provider must be openai or ollama, got %q", c.Embed.Provider))
	}
	switch c.Index.Backend {
	case BackendMemory:
	case BackendQdrant:
		if c.Index.QdrantURL == "" {
			errs = append(errs, errors.New("index.qdrant_url is required for the qdrant backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("index.backend must be memory or qdrant, got %q", c.Index.Backend))
	}
	if c.Extract.BatchSize < 1 {
		errs = append(errs, errors.New("extract.batch_size must be at least 1"))
	}
	if c.Extract.MaxAttempts < 1 {
		errs = append(errs, errors.New("extract.max_attempts must be at least 1"))
	}
	if c.Extract.BatchDelay < 0 || c.Extract.SectionDelay < 0 {
		errs = append(errs, errors.New("extract delays must not be negative"))
	}
	if c.Context.MaxChars < 1 || c.Context.SanitizeLimit < 1 {
		errs = append(errs, errors.New("context limits must be positive"))
	}
	return errors.Join(errs...)
}

// Address is the HTTP listen address.
func (c *Config) Address() string { return fmt.Sprintf(":%d", c.Port) }

// ParseLevel maps a level name onto a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level %q (must be debug, info, warn or error)", s)
	}
}

// NewLogger returns a JSON logger on stdout at the configured level.
func (c *Config) NewLogger() *slog.Logger {
	level, _ := ParseLevel(c.LogLevel)
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
