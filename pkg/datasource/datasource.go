// Package datasource produces widget payloads from validated tool arguments.
//
// Every widget kind has one Adapter. The mock adapters reproduce the demo
// dashboard's generators, including their simulated latency; tests swap them
// for a Fixture or inject a seeded random source.
package datasource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/teslashibe/go-genui/pkg/fault"
	"github.com/teslashibe/go-genui/pkg/widget"
)

// Sentinel errors for data sources.
var (
	// ErrUnavailable is wrapped in a fault.DataSourceUnavailable error.
	ErrUnavailable = errors.New("datasource: unavailable")

	// ErrWrongKind is returned when an adapter receives another kind's arguments.
	ErrWrongKind = errors.New("datasource: arguments of wrong kind")

	// ErrNoAdapter is returned by Router for kinds without an adapter.
	ErrNoAdapter = errors.New("datasource: no adapter for kind")
)

// Adapter fetches the payload for one invocation. Implementations hold no
// mutable state across calls and must honour ctx cancellation.
type Adapter interface {
	Fetch(ctx context.Context, args widget.Args) (widget.Payload, error)
}

// AdapterFunc adapts a plain function to Adapter.
type AdapterFunc func(ctx context.Context, args widget.Args) (widget.Payload, error)

// Fetch calls f.
func (f AdapterFunc) Fetch(ctx context.Context, args widget.Args) (widget.Payload, error) {
	return f(ctx, args)
}

// Rand is the subset of math/rand/v2 the generators draw from.
type Rand interface {
	Float64() float64
	IntN(n int) int
}

// Config holds adapter configuration.
type Config struct {
	// Rand supplies randomness. Nil uses the concurrency-safe global source.
	Rand Rand

	// Latency is the simulated fetch delay. Negative means the adapter default.
	Latency time.Duration

	Logger *slog.Logger
}

// Option configures an adapter.
type Option func(*Config)

// WithRand injects a random source, typically a seeded *rand.Rand in tests.
// Access to it is serialised.
func WithRand(r Rand) Option {
	lr := &lockedRand{r: r}
	return func(c *Config) { c.Rand = lr }
}

// WithLatency overrides the simulated delay.
func WithLatency(d time.Duration) Option {
	return func(c *Config) { c.Latency = d }
}

// WithoutLatency disables the simulated delay.
func WithoutLatency() Option {
	return WithLatency(0)
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

func newConfig(defaultLatency time.Duration, opts []Option) *Config {
	cfg := &Config{Latency: -1}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.Latency < 0 {
		cfg.Latency = defaultLatency
	}
	if cfg.Rand == nil {
		cfg.Rand = globalRand{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return cfg
}

type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }
func (globalRand) IntN(n int) int   { return rand.IntN(n) }

type lockedRand struct {
	mu sync.Mutex
	r  Rand
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

func (l *lockedRand) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.IntN(n)
}

// Unavailable wraps err as a DataSourceUnavailable fault.
func Unavailable(op string, err error) error {
	if err == nil {
		err = ErrUnavailable
	} else if !errors.Is(err, ErrUnavailable) {
		err = fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return fault.New(fault.DataSourceUnavailable, op, err)
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Router dispatches each invocation to the adapter for its kind.
type Router struct {
	adapters map[widget.Kind]Adapter
	logger   *slog.Logger
}

// NewRouter creates a router over the given adapters.
func NewRouter(adapters map[widget.Kind]Adapter, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	m := make(map[widget.Kind]Adapter, len(adapters))
	for k, a := range adapters {
		m[k] = a
	}
	return &Router{adapters: m, logger: logger.With("component", "datasource.router")}
}

// NewMockRouter creates a router over the three demo generators.
func NewMockRouter(opts ...Option) *Router {
	cfg := newConfig(0, opts)
	return NewRouter(map[widget.Kind]Adapter{
		widget.KindStock:   NewStock(opts...),
		widget.KindWeather: NewWeather(opts...),
		widget.KindKanban:  NewKanban(opts...),
	}, cfg.Logger)
}

// Fetch implements Adapter. Payloads that break widget invariants are
// reported as unavailable rather than passed on.
func (r *Router) Fetch(ctx context.Context, args widget.Args) (widget.Payload, error) {
	if args == nil {
		return nil, Unavailable("datasource.fetch", ErrWrongKind)
	}
	a, ok := r.adapters[args.Kind()]
	if !ok {
		return nil, Unavailable("datasource.fetch", fmt.Errorf("%w: %s", ErrNoAdapter, args.Kind()))
	}

	start := time.Now()
	p, err := a.Fetch(ctx, args)
	if err != nil {
		r.logger.Warn("fetch failed", "kind", args.Kind(), "error", err)
		if fault.KindOf(err) == fault.KindUnknown {
			err = Unavailable("datasource.fetch", err)
		}
		return nil, err
	}
	if err := widget.Validate(p); err != nil {
		return nil, Unavailable("datasource.fetch", err)
	}

	r.logger.Debug("fetched", "kind", args.Kind(), "latency_ms", time.Since(start).Milliseconds())
	return p, nil
}

var _ Adapter = (*Router)(nil)
