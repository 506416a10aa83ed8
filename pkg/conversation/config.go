package conversation

import (
	"log/slog"
	"time"
)

// Defaults for the OpenAI Realtime provider.
const (
	DefaultRealtimeURL = "wss://api.openai.com/v1/realtime"
	DefaultModel       = "gpt-4o-realtime-preview-2024-12-17"
	DefaultVoice       = VoiceShimmer
)

// OpenAI voices.
const (
	VoiceAlloy   = "alloy"
	VoiceEcho    = "echo"
	VoiceShimmer = "shimmer"
)

// Config holds provider configuration.
type Config struct {
	APIKey string

	// BaseURL is the websocket endpoint.
	BaseURL string

	Model string
	Voice string

	// Timeout bounds the websocket handshake.
	Timeout time.Duration

	// ReadTimeout is the idle limit between server events.
	ReadTimeout time.Duration

	// WriteTimeout bounds each frame write.
	WriteTimeout time.Duration

	Logger *slog.Logger
}

// Option configures a provider.
type Option func(*Config)

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(c *Config) { c.APIKey = key }
}

// WithBaseURL sets the websocket endpoint.
func WithBaseURL(url string) Option {
	return func(c *Config) { c.BaseURL = url }
}

// WithModel sets the model.
func WithModel(model string) Option {
	return func(c *Config) { c.Model = model }
}

// WithVoice sets the default voice.
func WithVoice(voice string) Option {
	return func(c *Config) { c.Voice = voice }
}

// WithTimeout sets the handshake timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) { c.Timeout = d }
}

// WithReadTimeout sets the idle limit between server events.
func WithReadTimeout(d time.Duration) Option {
	return func(c *Config) { c.ReadTimeout = d }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:      DefaultRealtimeURL,
		Model:        DefaultModel,
		Voice:        DefaultVoice,
		Timeout:      30 * time.Second,
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 10 * time.Second,
		Logger:       slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	return nil
}
