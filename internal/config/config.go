// Package config loads go-genui process configuration from flags, GENUI_*
// environment variables and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment key.
const EnvPrefix = "GENUI"

// Providers accepted by the provider key.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderMock   = "mock"
)

// Errors returned by Validate.
var (
	ErrUnknownProvider = errors.New("config: unknown provider")
	ErrMissingAPIKey   = errors.New("config: missing API key")
	ErrInvalidValue    = errors.New("config: invalid value")
)

// Config is the resolved process configuration.
type Config struct {
	Provider     string        `yaml:"provider"`
	Fallback     string        `yaml:"fallback,omitempty"`
	Model        string        `yaml:"model,omitempty"`
	BaseURL      string        `yaml:"base-url,omitempty"`
	APIKey       string        `yaml:"api-key,omitempty"`
	FallbackKey  string        `yaml:"fallback-api-key,omitempty"`
	Temperature  float64       `yaml:"temperature"`
	MaxRetries   int           `yaml:"max-retries"`
	SystemPrompt string        `yaml:"system-prompt,omitempty"`
	WrapUp       bool          `yaml:"wrap-up"`
	HistoryLimit int           `yaml:"history-limit"`
	TurnTimeout  time.Duration `yaml:"turn-timeout"`
	FetchTimeout time.Duration `yaml:"fetch-timeout"`
	DataLatency  bool          `yaml:"data-latency"`

	Listen string `yaml:"listen"`

	RealtimeModel  string        `yaml:"realtime-model,omitempty"`
	RealtimeVoice  string        `yaml:"realtime-voice,omitempty"`
	RealtimeURL    string        `yaml:"realtime-url,omitempty"`
	RealtimeAPIKey string        `yaml:"realtime-api-key,omitempty"`
	AudioBackend   string        `yaml:"audio-backend"`
	CloseTimeout   time.Duration `yaml:"close-timeout"`

	LogLevel  string `yaml:"log-level"`
	LogFormat string `yaml:"log-format"`
}

// SetDefaults registers the default of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("provider", ProviderOpenAI)
	v.SetDefault("fallback", "")
	v.SetDefault("model", "")
	v.SetDefault("base-url", "")
	v.SetDefault("temperature", 0.7)
	v.SetDefault("max-retries", 0)
	v.SetDefault("system-prompt", "")
	v.SetDefault("wrap-up", true)
	v.SetDefault("history-limit", 0)
	v.SetDefault("turn-timeout", 60*time.Second)
	v.SetDefault("fetch-timeout", 10*time.Second)
	v.SetDefault("data-latency", true)
	v.SetDefault("listen", ":8080")
	v.SetDefault("realtime-model", "")
	v.SetDefault("realtime-voice", "")
	v.SetDefault("realtime-url", "")
	v.SetDefault("audio-backend", "mock")
	v.SetDefault("close-timeout", 2*time.Second)
	v.SetDefault("log-level", "info")
	v.SetDefault("log-format", "text")
}

// New returns a viper instance reading GENUI_* variables with defaults set.
// The provider keys also fall back to the conventional unprefixed variables.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("openai-api-key", EnvPrefix+"_OPENAI_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("gemini-api-key", EnvPrefix+"_GEMINI_API_KEY", "GEMINI_API_KEY")
	SetDefaults(v)
	return v
}

// RegisterFlags adds the process flags to fs. Use BindFlags to attach them.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "YAML config file")
	fs.String("provider", ProviderOpenAI, "model provider (openai|gemini|mock)")
	fs.String("fallback", "", "provider tried when the first fails (openai|gemini|mock)")
	fs.String("model", "", "model name (provider default when empty)")
	fs.String("base-url", "", "provider API base URL")
	fs.Float64("temperature", 0.7, "sampling temperature")
	fs.Bool("wrap-up", true, "send a second request to write text after tool calls")
	fs.Duration("turn-timeout", 60*time.Second, "bound on one provider request")
	fs.Duration("fetch-timeout", 10*time.Second, "bound on one data fetch")
	fs.Bool("data-latency", true, "simulate data source latency")
	fs.String("listen", ":8080", "HTTP listen address")
	fs.String("audio-backend", "mock", "audio backend (mock|tone)")
	fs.String("log-level", "info", "log level (debug|info|warn|error)")
	fs.String("log-format", "text", "log format (text|json)")
	fs.Bool("debug", false, "shorthand for --log-level debug")
}

// BindFlags attaches every flag in fs to the key of the same name.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	var err error
	fs.VisitAll(func(f *pflag.Flag) {
		if bindErr := v.BindPFlag(f.Name, f); bindErr != nil && err == nil {
			err = bindErr
		}
	})
	return err
}

// Load reads the config file named by the config key, if any, and resolves
// every key into a Config.
func Load(v *viper.Viper) (*Config, error) {
	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", file, err)
		}
	}

	cfg := &Config{
		Provider:     strings.ToLower(v.GetString("provider")),
		Fallback:     strings.ToLower(v.GetString("fallback")),
		Model:        v.GetString("model"),
		BaseURL:      v.GetString("base-url"),
		Temperature:  v.GetFloat64("temperature"),
		MaxRetries:   v.GetInt("max-retries"),
		SystemPrompt: v.GetString("system-prompt"),
		WrapUp:       v.GetBool("wrap-up"),
		HistoryLimit: v.GetInt("history-limit"),
		TurnTimeout:  v.GetDuration("turn-timeout"),
		FetchTimeout: v.GetDuration("fetch-timeout"),
		DataLatency:  v.GetBool("data-latency"),
		Listen:       v.GetString("listen"),

		RealtimeModel:  v.GetString("realtime-model"),
		RealtimeVoice:  v.GetString("realtime-voice"),
		RealtimeURL:    v.GetString("realtime-url"),
		RealtimeAPIKey: v.GetString("openai-api-key"),
		AudioBackend:   v.GetString("audio-backend"),
		CloseTimeout:   v.GetDuration("close-timeout"),

		LogLevel:  v.GetString("log-level"),
		LogFormat: v.GetString("log-format"),
	}
	if v.GetBool("debug") {
		cfg.LogLevel = "debug"
	}

	cfg.APIKey = v.GetString("api-key")
	if cfg.APIKey == "" {
		cfg.APIKey = providerKey(v, cfg.Provider)
	}
	cfg.FallbackKey = providerKey(v, cfg.Fallback)
	return cfg, nil
}

func providerKey(v *viper.Viper, provider string) string {
	switch provider {
	case ProviderOpenAI:
		return v.GetString("openai-api-key")
	case ProviderGemini:
		return v.GetString("gemini-api-key")
	default:
		return ""
	}
}

// Validate checks the configuration. Gemini may run without a key, through
// Application Default Credentials.
func (c *Config) Validate() error {
	if !slices.Contains([]string{ProviderOpenAI, ProviderGemini, ProviderMock}, c.Provider) {
		return fmt.Errorf("%w: %q", ErrUnknownProvider, c.Provider)
	}
	if c.Provider == ProviderOpenAI && c.APIKey == "" {
		return fmt.Errorf("%w: set OPENAI_API_KEY or GENUI_API_KEY", ErrMissingAPIKey)
	}
	if c.Fallback != "" {
		if c.Fallback == c.Provider || !slices.Contains([]string{ProviderOpenAI, ProviderGemini, ProviderMock}, c.Fallback) {
			return fmt.Errorf("%w: fallback %q", ErrUnknownProvider, c.Fallback)
		}
		if c.Fallback == ProviderOpenAI && c.FallbackKey == "" {
			return fmt.Errorf("%w: fallback needs OPENAI_API_KEY", ErrMissingAPIKey)
		}
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("%w: temperature %v outside [0, 2]", ErrInvalidValue, c.Temperature)
	}
	if c.TurnTimeout <= 0 || c.FetchTimeout <= 0 || c.CloseTimeout <= 0 {
		return fmt.Errorf("%w: timeouts must be positive", ErrInvalidValue)
	}
	if c.HistoryLimit < 0 || c.MaxRetries < 0 {
		return fmt.Errorf("%w: negative limit", ErrInvalidValue)
	}
	return nil
}

// ValidateRealtime checks the keys the live voice session needs.
func (c *Config) ValidateRealtime() error {
	if c.RealtimeAPIKey == "" {
		return fmt.Errorf("%w: live sessions need OPENAI_API_KEY", ErrMissingAPIKey)
	}
	return nil
}

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	if c.APIKey != "" {
		c.APIKey = "****"
	}
	if c.RealtimeAPIKey != "" {
		c.RealtimeAPIKey = "****"
	}
	if c.FallbackKey != "" {
		c.FallbackKey = "****"
	}
	return c
}
