package datasource

import (
	"context"
	"sync"
	"time"

	"github.com/teslashibe/go-genui/pkg/widget"
)

// Fixture is a deterministic Adapter for tests. Kinds without a configured
// payload or error get a minimal payload echoing their arguments.
type Fixture struct {
	mu       sync.Mutex
	payloads map[widget.Kind]widget.Payload
	errors   map[widget.Kind]error
	delay    time.Duration
	calls    []widget.Args
}

// NewFixture creates an empty fixture.
func NewFixture() *Fixture {
	return &Fixture{
		payloads: make(map[widget.Kind]widget.Payload),
		errors:   make(map[widget.Kind]error),
	}
}

// With makes kind return p.
func (f *Fixture) With(kind widget.Kind, p widget.Payload) *Fixture {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads[kind] = p
	return f
}

// Fail makes kind return err, wrapped as unavailable.
func (f *Fixture) Fail(kind widget.Kind, err error) *Fixture {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors[kind] = err
	return f
}

// Delay makes every fetch wait d, honouring cancellation.
func (f *Fixture) Delay(d time.Duration) *Fixture {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delay = d
	return f
}

// Fetch implements Adapter.
func (f *Fixture) Fetch(ctx context.Context, args widget.Args) (widget.Payload, error) {
	f.mu.Lock()
	f.calls = append(f.calls, args)
	p, hasPayload := f.payloads[args.Kind()]
	err, hasErr := f.errors[args.Kind()]
	delay := f.delay
	f.mu.Unlock()

	if err := sleep(ctx, delay); err != nil {
		return nil, Unavailable("datasource.fixture", err)
	}
	if hasErr {
		return nil, Unavailable("datasource.fixture", err)
	}
	if hasPayload {
		return p, nil
	}

	switch a := args.(type) {
	case widget.StockArgs:
		return &widget.StockData{Symbol: a.Symbol, Price: 100, Open: 100, High: 100, Low: 100}, nil
	case widget.WeatherArgs:
		return &widget.WeatherData{Location: a.Location, Temperature: 72, Condition: widget.Sunny}, nil
	case widget.KanbanArgs:
		return &widget.KanbanData{Title: a.Title}, nil
	}
	return nil, Unavailable("datasource.fixture", ErrWrongKind)
}

// Calls returns the arguments of every fetch, in call order.
func (f *Fixture) Calls() []widget.Args {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]widget.Args, len(f.calls))
	copy(out, f.calls)
	return out
}

var _ Adapter = (*Fixture)(nil)
