package audioio

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// MockSource produces synthetic frames: silence, a sine tone, or a fixed
// script of chunks.
type MockSource struct {
	cfg    Config
	logger *slog.Logger

	interval  time.Duration
	frequency float64
	amplitude float64
	script    []Chunk

	mu      sync.Mutex
	started bool
	closed  bool
	stream  chan Chunk
	stop    chan struct{}
	done    chan struct{}
	phase   float64

	frames atomic.Int64
	drops  atomic.Int64
	closes atomic.Int64
}

// MockSourceOption configures a MockSource.
type MockSourceOption func(*MockSource)

// WithTone makes the source produce a sine wave.
func WithTone(frequency, amplitude float64) MockSourceOption {
	return func(m *MockSource) {
		m.frequency = frequency
		m.amplitude = amplitude
	}
}

// WithInterval overrides the frame period, which defaults to the frame duration.
func WithInterval(d time.Duration) MockSourceOption {
	return func(m *MockSource) { m.interval = d }
}

// WithScript makes the source emit the given chunks, then end its stream.
func WithScript(chunks ...Chunk) MockSourceOption {
	return func(m *MockSource) { m.script = chunks }
}

// NewMockSource creates a mock capture device.
func NewMockSource(cfg Config, logger *slog.Logger, opts ...MockSourceOption) *MockSource {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.FrameSamples <= 0 {
		cfg.FrameSamples = DefaultFrameSamples
	}
	m := &MockSource{
		cfg:    cfg,
		logger: logger.With("component", "audioio.mock_source"),
		stream: make(chan Chunk, 8),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.interval <= 0 {
		m.interval = cfg.FrameDuration()
	}
	return m
}

// Start begins producing frames. Starting twice is a no-op.
func (m *MockSource) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if m.started {
		return nil
	}
	m.started = true
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	go m.run(ctx)
	m.logger.Debug("capture started", "sample_rate", m.cfg.SampleRate, "frame_samples", m.cfg.FrameSamples)
	return nil
}

func (m *MockSource) run(ctx context.Context) {
	defer close(m.done)
	defer close(m.stream)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	next := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stop:
			return
		case <-ticker.C:
		}

		var chunk Chunk
		if m.script != nil {
			if next >= len(m.script) {
				return
			}
			chunk = m.script[next]
			next++
		} else {
			chunk = m.frame()
		}

		select {
		case m.stream <- chunk:
			m.frames.Add(1)
		default:
			m.drops.Add(1)
		}
	}
}

func (m *MockSource) frame() Chunk {
	samples := make([]int16, m.cfg.FrameSamples)
	if m.frequency > 0 {
		rate := float64(m.cfg.SampleRate)
		for i := range samples {
			v := m.amplitude * math.Sin(2*math.Pi*m.frequency*m.phase/rate)
			samples[i] = int16(v * math.MaxInt16)
			m.phase++
			if m.phase >= rate {
				m.phase = 0
			}
		}
	}
	return Chunk{Samples: samples, SampleRate: m.cfg.SampleRate}
}

// Stream implements Source.
func (m *MockSource) Stream() <-chan Chunk {
	return m.stream
}

// Name implements Source.
func (m *MockSource) Name() string {
	return string(BackendMock)
}

// Close stops capture and waits for the producer to exit.
func (m *MockSource) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.closes.Add(1)
	started := m.started
	m.mu.Unlock()

	if started {
		close(m.stop)
		<-m.done
	} else {
		close(m.stream)
	}
	m.logger.Debug("capture closed", "frames", m.frames.Load(), "dropped", m.drops.Load())
	return nil
}

// Closed reports whether Close has run.
func (m *MockSource) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Releases counts how many times the device was actually released.
func (m *MockSource) Releases() int64 {
	return m.closes.Load()
}

// Frames returns the number of frames delivered.
func (m *MockSource) Frames() int64 {
	return m.frames.Load()
}

var _ Source = (*MockSource)(nil)

// MockSink records written chunks instead of playing them.
type MockSink struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	started bool
	closed  bool
	written []Chunk
	end     time.Time
	clears  int
	closes  int
}

// NewMockSink creates a mock playback device.
func NewMockSink(cfg Config, logger *slog.Logger) *MockSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &MockSink{cfg: cfg, logger: logger.With("component", "audioio.mock_sink")}
}

// Start implements Sink.
func (m *MockSink) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.started = true
	return nil
}

// Write implements Sink.
func (m *MockSink) Write(ctx context.Context, chunk Chunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || !m.started {
		return ErrClosed
	}
	if !chunk.At.IsZero() {
		if chunk.At.Before(m.end) {
			return fmt.Errorf("%w: starts %v before %v", ErrOverlap, chunk.At, m.end)
		}
		m.end = chunk.End()
	}
	m.written = append(m.written, chunk)
	return nil
}

// Clear implements Sink.
func (m *MockSink) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clears++
	m.written = m.written[:0]
	m.end = time.Time{}
	return nil
}

// Name implements Sink.
func (m *MockSink) Name() string {
	return string(BackendMock)
}

// Close implements Sink.
func (m *MockSink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	m.closes++
	return nil
}

// Written returns a copy of the chunks written since the last Clear.
func (m *MockSink) Written() []Chunk {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Chunk, len(m.written))
	copy(out, m.written)
	return out
}

// Closed reports whether Close has run.
func (m *MockSink) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Releases counts how many times the device was actually released.
func (m *MockSink) Releases() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closes
}

var _ Sink = (*MockSink)(nil)
