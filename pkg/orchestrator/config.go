package orchestrator

import (
	"log/slog"
	"time"
)

// Default texts of the text path.
const (
	DefaultSystemPrompt = "You are a helpful AI assistant for a dashboard. You can display UI widgets using tools. " +
		"If the user asks for stock, weather, or tasks, call the appropriate function. " +
		"Be concise in text responses. Do not output markdown, just plain text."

	DefaultWelcomeText = "Welcome to Generative UI Dashboard. Ask me to show stocks, weather, or tasks."

	DefaultAckText = "I've generated that widget for you."

	DefaultErrorText = "Sorry, I encountered an error processing your request."
)

// MaxInputRunes bounds the length of a user input.
const MaxInputRunes = 4000

// Config holds orchestrator configuration.
type Config struct {
	// SystemPrompt is sent with the first round trip.
	SystemPrompt string

	// WelcomeText is appended by Start. Empty disables it.
	WelcomeText string

	// AckText is used when a tool turn has no text of its own.
	AckText string

	// ErrorText is the system notice appended when a turn fails.
	ErrorText string

	// WrapUp enables the second round trip after fetching.
	WrapUp bool

	// TurnTimeout bounds each model round trip. Zero means no bound.
	TurnTimeout time.Duration

	// FetchTimeout bounds each adapter fetch. Zero means no bound.
	FetchTimeout time.Duration

	// HistoryLimit caps how many past messages are sent. Zero sends all.
	HistoryLimit int

	Observers []func(TurnEvent)

	Logger *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Config)

// WithSystemPrompt sets the system guidance text.
func WithSystemPrompt(s string) Option {
	return func(c *Config) { c.SystemPrompt = s }
}

// WithWelcomeText sets the welcome message. Empty disables it.
func WithWelcomeText(s string) Option {
	return func(c *Config) { c.WelcomeText = s }
}

// WithAckText sets the fallback acknowledgement.
func WithAckText(s string) Option {
	return func(c *Config) { c.AckText = s }
}

// WithErrorText sets the failure notice.
func WithErrorText(s string) Option {
	return func(c *Config) { c.ErrorText = s }
}

// WithWrapUp enables or disables the wrap-up round trip.
func WithWrapUp(enabled bool) Option {
	return func(c *Config) { c.WrapUp = enabled }
}

// WithTurnTimeout bounds each model round trip.
func WithTurnTimeout(d time.Duration) Option {
	return func(c *Config) { c.TurnTimeout = d }
}

// WithFetchTimeout bounds each adapter fetch.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *Config) { c.FetchTimeout = d }
}

// WithHistoryLimit caps the history sent to the provider.
func WithHistoryLimit(n int) Option {
	return func(c *Config) { c.HistoryLimit = n }
}

// WithObserver registers fn for state transitions. Observers run on the
// submitting goroutine and must not block.
func WithObserver(fn func(TurnEvent)) Option {
	return func(c *Config) {
		if fn != nil {
			c.Observers = append(c.Observers, fn)
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		SystemPrompt: DefaultSystemPrompt,
		WelcomeText:  DefaultWelcomeText,
		AckText:      DefaultAckText,
		ErrorText:    DefaultErrorText,
		WrapUp:       true,
		TurnTimeout:  60 * time.Second,
		FetchTimeout: 10 * time.Second,
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
	if c.AckText == "" {
		c.AckText = DefaultAckText
	}
	if c.ErrorText == "" {
		c.ErrorText = DefaultErrorText
	}
}
