package resolver

import (
	"log/slog"

	"github.com/teslashibe/go-genui/pkg/inference"
)

// Config holds resolver configuration.
type Config struct {
	// ToolChoice is sent with the first round trip.
	ToolChoice string

	// Temperature for both round trips. Zero uses the provider default.
	Temperature float64

	// WrapUpSystem is the system instruction of the second round trip.
	WrapUpSystem string

	Logger *slog.Logger
}

// Option configures a Resolver.
type Option func(*Config)

// WithToolChoice sets the tool-choice policy.
func WithToolChoice(choice string) Option {
	return func(c *Config) { c.ToolChoice = choice }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(c *Config) { c.Temperature = t }
}

// WithWrapUpSystem sets the wrap-up system instruction.
func WithWrapUpSystem(s string) Option {
	return func(c *Config) { c.WrapUpSystem = s }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		ToolChoice:   inference.ToolChoiceAuto,
		WrapUpSystem: DefaultWrapUpSystem,
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
	if c.ToolChoice == "" {
		c.ToolChoice = inference.ToolChoiceAuto
	}
}
