package audioio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"
)

var (
	// ErrClosed is returned when using a closed device.
	ErrClosed = errors.New("audioio: device closed")

	// ErrOverlap is returned when a chunk is scheduled before the end of
	// audio already queued.
	ErrOverlap = errors.New("audioio: chunk overlaps queued audio")
)

// Chunk is a block of mono PCM16 audio.
type Chunk struct {
	Samples    []int16
	SampleRate int

	// At is the scheduled playback start. Zero plays on arrival.
	At time.Time
}

// ChunkFromBytes decodes little-endian PCM16 bytes.
func ChunkFromBytes(data []byte, sampleRate int) Chunk {
	return Chunk{Samples: BytesToSamples(data), SampleRate: sampleRate}
}

// Bytes encodes the chunk as little-endian PCM16.
func (c Chunk) Bytes() []byte {
	return SamplesToBytes(c.Samples)
}

// Duration is the playing time of the chunk.
func (c Chunk) Duration() time.Duration {
	return samplesDuration(len(c.Samples), c.SampleRate)
}

// End is when a scheduled chunk finishes playing.
func (c Chunk) End() time.Time {
	if c.At.IsZero() {
		return time.Time{}
	}
	return c.At.Add(c.Duration())
}

// Source captures audio.
type Source interface {
	// Start begins capture. Frames arrive on Stream until Close.
	Start(ctx context.Context) error

	// Stream returns the frame channel, closed when capture ends.
	Stream() <-chan Chunk

	// Name returns the backend name.
	Name() string

	// Close stops capture and releases the device. It is idempotent.
	io.Closer
}

// Sink plays audio.
type Sink interface {
	Start(ctx context.Context) error

	// Write queues a chunk to start at chunk.At, or on arrival when At is
	// zero. A chunk starting before queued audio ends fails with ErrOverlap.
	Write(ctx context.Context, chunk Chunk) error

	// Clear drops queued audio.
	Clear() error

	Name() string

	// Close stops playback and releases the device. It is idempotent.
	io.Closer
}

// NewSource opens a capture device for cfg.
func NewSource(cfg Config, logger *slog.Logger) (Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Backend {
	case BackendMock, "":
		return NewMockSource(cfg, logger), nil
	case BackendTone:
		return NewMockSource(cfg, logger, WithTone(440, 0.3)), nil
	default:
		return nil, fmt.Errorf("audioio: unsupported backend %q", cfg.Backend)
	}
}

// NewSink opens a playback device for cfg.
func NewSink(cfg Config, logger *slog.Logger) (Sink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Backend {
	case BackendMock, BackendTone, "":
		return NewMockSink(cfg, logger), nil
	default:
		return nil, fmt.Errorf("audioio: unsupported backend %q", cfg.Backend)
	}
}

// Backends lists the available backends.
func Backends() []Backend {
	return []Backend{BackendMock, BackendTone}
}
