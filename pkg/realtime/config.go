package realtime

import (
	"log/slog"
	"time"

	"github.com/teslashibe/go-genui/pkg/audioio"
)

// Default texts of the voice path.
const (
	DefaultSystemPrompt = "You are a dashboard AI. When asked, you can call tools to show stocks, weather, or kanban boards. " +
		"Keep audio responses brief and professional."

	DefaultStartText = "Live session started. I'm listening..."
)

// Tool results sent back on the session.
const (
	resultDisplayed = `{"result":"Widget displayed"}`
)

// Config holds manager configuration.
type Config struct {
	// SystemPrompt is the session instruction text.
	SystemPrompt string

	// StartText is the system message appended once connected. Empty disables it.
	StartText string

	Voice string

	// Input configures capture; frames are resampled to the provider's rate.
	Input audioio.Config

	// Output configures playback.
	Output audioio.Config

	// OpenSource and OpenSink acquire the audio devices on every connect.
	OpenSource func() (audioio.Source, error)
	OpenSink   func() (audioio.Sink, error)

	// CloseTimeout bounds the wait for the provider to close.
	CloseTimeout time.Duration

	// FetchTimeout bounds each adapter fetch for a voice tool call.
	FetchTimeout time.Duration

	Logger *slog.Logger
}

// Option configures a Manager.
type Option func(*Config)

// WithSystemPrompt sets the session instructions.
func WithSystemPrompt(s string) Option {
	return func(c *Config) { c.SystemPrompt = s }
}

// WithStartText sets the message appended when a session opens.
func WithStartText(s string) Option {
	return func(c *Config) { c.StartText = s }
}

// WithVoice sets the provider voice.
func WithVoice(v string) Option {
	return func(c *Config) { c.Voice = v }
}

// WithAudio sets the capture and playback configuration.
func WithAudio(in, out audioio.Config) Option {
	return func(c *Config) {
		c.Input = in
		c.Output = out
	}
}

// WithDevices overrides how audio devices are opened.
func WithDevices(openSource func() (audioio.Source, error), openSink func() (audioio.Sink, error)) Option {
	return func(c *Config) {
		c.OpenSource = openSource
		c.OpenSink = openSink
	}
}

// WithCloseTimeout bounds session teardown.
func WithCloseTimeout(d time.Duration) Option {
	return func(c *Config) { c.CloseTimeout = d }
}

// WithFetchTimeout bounds each voice tool fetch.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *Config) { c.FetchTimeout = d }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		SystemPrompt: DefaultSystemPrompt,
		StartText:    DefaultStartText,
		Input:        audioio.DefaultInputConfig(),
		Output:       audioio.DefaultOutputConfig(),
		CloseTimeout: 2 * time.Second,
		FetchTimeout: 10 * time.Second,
		Logger:       slog.Default(),
	}
}

// Apply applies functional options and fills in the device openers.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.OpenSource == nil {
		in, logger := c.Input, c.Logger
		c.OpenSource = func() (audioio.Source, error) { return audioio.NewSource(in, logger) }
	}
	if c.OpenSink == nil {
		out, logger := c.Output, c.Logger
		c.OpenSink = func() (audioio.Sink, error) { return audioio.NewSink(out, logger) }
	}
}
