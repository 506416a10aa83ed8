// Package genui assembles the dashboard: provider, resolver, data sources,
// orchestrator, transcript, optional live voice session and web server.
package genui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/teslashibe/go-genui/internal/config"
	"github.com/teslashibe/go-genui/pkg/audioio"
	"github.com/teslashibe/go-genui/pkg/conversation"
	"github.com/teslashibe/go-genui/pkg/datasource"
	"github.com/teslashibe/go-genui/pkg/inference"
	"github.com/teslashibe/go-genui/pkg/orchestrator"
	"github.com/teslashibe/go-genui/pkg/realtime"
	"github.com/teslashibe/go-genui/pkg/resolver"
	"github.com/teslashibe/go-genui/pkg/store"
	"github.com/teslashibe/go-genui/pkg/web"
	"github.com/teslashibe/go-genui/pkg/widget"
)

// ErrNotInitialized is returned by Run before Init.
var ErrNotInitialized = errors.New("genui: Init not called")

// App owns every component and their lifecycle.
type App struct {
	cfg    config.Config
	logger *slog.Logger

	provider inference.Provider
	voice    conversation.Provider
	adapter  datasource.Adapter

	registry *widget.Registry
	store    *store.Store
	resolver *resolver.Resolver
	orch     *orchestrator.Orchestrator
	session  *realtime.Manager
	server   *web.Server

	observers []func(orchestrator.TurnEvent)
}

// Option configures an App.
type Option func(*App)

// WithProvider replaces the model provider built from config.
func WithProvider(p inference.Provider) Option {
	return func(a *App) { a.provider = p }
}

// WithVoiceProvider replaces the realtime provider built from config.
func WithVoiceProvider(p conversation.Provider) Option {
	return func(a *App) { a.voice = p }
}

// WithAdapter replaces the mock data sources.
func WithAdapter(ad datasource.Adapter) Option {
	return func(a *App) { a.adapter = ad }
}

// WithTurnObserver receives every turn transition.
func WithTurnObserver(fn func(orchestrator.TurnEvent)) Option {
	return func(a *App) { a.observers = append(a.observers, fn) }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *App) {
		if l != nil {
			a.logger = l
		}
	}
}

// New validates cfg and returns an App. Call Init before use.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("genui: config required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &App{cfg: *cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Init builds the components. The live session is built only when a realtime
// key or provider is available.
func (a *App) Init() error {
	if a.provider == nil {
		p, err := a.newProvider()
		if err != nil {
			return fmt.Errorf("provider: %w", err)
		}
		a.provider = p
	}
	if a.adapter == nil {
		opts := []datasource.Option{datasource.WithLogger(a.logger)}
		if !a.cfg.DataLatency {
			opts = append(opts, datasource.WithoutLatency())
		}
		a.adapter = datasource.NewMockRouter(opts...)
	}

	a.registry = widget.DefaultRegistry()
	a.store = store.New()

	var err error
	a.resolver, err = resolver.New(a.provider, a.registry,
		resolver.WithTemperature(a.cfg.Temperature),
		resolver.WithLogger(a.logger),
	)
	if err != nil {
		return fmt.Errorf("resolver: %w", err)
	}

	orchOpts := []orchestrator.Option{
		orchestrator.WithWrapUp(a.cfg.WrapUp),
		orchestrator.WithTurnTimeout(a.cfg.TurnTimeout),
		orchestrator.WithFetchTimeout(a.cfg.FetchTimeout),
		orchestrator.WithHistoryLimit(a.cfg.HistoryLimit),
		orchestrator.WithLogger(a.logger),
		orchestrator.WithObserver(a.publishTurn),
	}
	if a.cfg.SystemPrompt != "" {
		orchOpts = append(orchOpts, orchestrator.WithSystemPrompt(a.cfg.SystemPrompt))
	}
	a.orch, err = orchestrator.New(a.resolver, a.adapter, a.store, orchOpts...)
	if err != nil {
		return fmt.Errorf("orchestrator: %w", err)
	}

	if err := a.initSession(); err != nil {
		return fmt.Errorf("realtime: %w", err)
	}

	webOpts := []web.Option{web.WithAddr(a.cfg.Listen), web.WithLogger(a.logger)}
	if a.session != nil {
		webOpts = append(webOpts, web.WithSession(a.session))
	}
	a.server, err = web.NewServer(a.orch, a.store, a.registry, webOpts...)
	if err != nil {
		return fmt.Errorf("web: %w", err)
	}
	if a.session != nil {
		a.session.OnStatus(a.server.PublishSession)
	}

	if err := a.orch.Start(); err != nil {
		return fmt.Errorf("welcome: %w", err)
	}
	a.logger.Info("initialized",
		"provider", a.cfg.Provider,
		"model", a.cfg.Model,
		"tools", a.registry.Names(),
		"voice", a.session != nil,
	)
	return nil
}

func (a *App) newProvider() (inference.Provider, error) {
	primary, err := a.buildProvider(a.cfg.Provider, a.cfg.APIKey, a.cfg.Model)
	if err != nil || a.cfg.Fallback == "" {
		return primary, err
	}
	// The model name belongs to the primary provider.
	fallback, err := a.buildProvider(a.cfg.Fallback, a.cfg.FallbackKey, "")
	if err != nil {
		primary.Close()
		return nil, fmt.Errorf("fallback: %w", err)
	}
	return inference.NewChainWithLogger(a.logger, primary, fallback)
}

func (a *App) buildProvider(name, key, model string) (inference.Provider, error) {
	opts := []inference.Option{
		inference.WithTemperature(a.cfg.Temperature),
		inference.WithTimeout(a.cfg.TurnTimeout),
		inference.WithRetry(a.cfg.MaxRetries, 250*time.Millisecond),
		inference.WithLogger(a.logger),
	}
	if key != "" {
		opts = append(opts, inference.WithAPIKey(key))
	}
	if model != "" {
		opts = append(opts, inference.WithModel(model))
	}
	if a.cfg.BaseURL != "" && name == a.cfg.Provider {
		opts = append(opts, inference.WithBaseURL(a.cfg.BaseURL))
	}

	switch name {
	case config.ProviderOpenAI:
		return inference.NewClient(opts...)
	case config.ProviderGemini:
		return inference.NewGemini(opts...)
	case config.ProviderMock:
		return inference.NewMock(), nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownProvider, name)
	}
}

func (a *App) initSession() error {
	if a.voice == nil {
		if a.cfg.ValidateRealtime() != nil {
			a.logger.Info("live session disabled, no realtime key")
			return nil
		}
		opts := []conversation.Option{
			conversation.WithAPIKey(a.cfg.RealtimeAPIKey),
			conversation.WithLogger(a.logger),
		}
		if a.cfg.RealtimeModel != "" {
			opts = append(opts, conversation.WithModel(a.cfg.RealtimeModel))
		}
		if a.cfg.RealtimeVoice != "" {
			opts = append(opts, conversation.WithVoice(a.cfg.RealtimeVoice))
		}
		if a.cfg.RealtimeURL != "" {
			opts = append(opts, conversation.WithBaseURL(a.cfg.RealtimeURL))
		}
		p, err := conversation.NewOpenAI(opts...)
		if err != nil {
			return err
		}
		a.voice = p
	}

	in := audioio.DefaultInputConfig()
	out := audioio.DefaultOutputConfig()
	in.Backend = audioio.Backend(a.cfg.AudioBackend)
	out.Backend = audioio.Backend(a.cfg.AudioBackend)

	opts := []realtime.Option{
		realtime.WithAudio(in, out),
		realtime.WithCloseTimeout(a.cfg.CloseTimeout),
		realtime.WithFetchTimeout(a.cfg.FetchTimeout),
		realtime.WithLogger(a.logger),
	}
	if a.cfg.RealtimeVoice != "" {
		opts = append(opts, realtime.WithVoice(a.cfg.RealtimeVoice))
	}
	m, err := realtime.New(a.voice, a.resolver, a.adapter, a.store, opts...)
	if err != nil {
		return err
	}
	a.session = m
	return nil
}

func (a *App) publishTurn(ev orchestrator.TurnEvent) {
	if a.server != nil {
		a.server.PublishTurn(ev)
	}
	for _, fn := range a.observers {
		fn(ev)
	}
}

// Run serves the web surface until ctx is done.
func (a *App) Run(ctx context.Context) error {
	if a.server == nil {
		return ErrNotInitialized
	}
	return a.server.Run(ctx)
}

// Shutdown ends the live session and releases the providers.
func (a *App) Shutdown() {
	if a.session != nil {
		if err := a.session.Close(); err != nil {
			a.logger.Warn("session close failed", "error", err)
		}
	}
	if a.server != nil {
		if err := a.server.Shutdown(); err != nil {
			a.logger.Debug("server shutdown", "error", err)
		}
	}
	if a.provider != nil {
		if err := a.provider.Close(); err != nil {
			a.logger.Warn("provider close failed", "error", err)
		}
	}
	a.logger.Info("shutdown complete")
}

// Config returns the resolved configuration.
func (a *App) Config() config.Config { return a.cfg }

// Provider returns the model provider.
func (a *App) Provider() inference.Provider { return a.provider }

// Orchestrator returns the text turn runner.
func (a *App) Orchestrator() *orchestrator.Orchestrator { return a.orch }

// Store returns the transcript.
func (a *App) Store() *store.Store { return a.store }

// Registry returns the tool registry.
func (a *App) Registry() *widget.Registry { return a.registry }

// Session returns the live session manager, nil when voice is disabled.
func (a *App) Session() *realtime.Manager { return a.session }

// Server returns the web server.
func (a *App) Server() *web.Server { return a.server }
