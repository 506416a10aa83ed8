// Package audioio owns the microphone and speaker of a voice session.
//
// Audio moves as Chunks of mono PCM16 samples. Capture produces fixed-size
// frames (4096 samples at 16kHz by default) and playback accepts chunks at
// the provider's output rate (24kHz). Devices sit behind the Source and Sink
// interfaces; the mock backends stand in for hardware in tests and headless
// runs.
package audioio

import (
	"fmt"
	"time"
)

// Backend names an audio implementation.
type Backend string

const (
	// BackendMock captures silence and discards playback.
	BackendMock Backend = "mock"
	// BackendTone captures a 440Hz test tone and discards playback.
	BackendTone Backend = "tone"
)

// Default audio formats of a voice session.
const (
	DefaultInputRate    = 16000
	DefaultOutputRate   = 24000
	DefaultFrameSamples = 4096
)

// Config describes one audio stream.
type Config struct {
	Backend Backend `yaml:"backend" json:"backend"`

	// SampleRate in Hz.
	SampleRate int `yaml:"sample_rate" json:"sample_rate"`

	// FrameSamples is the capture frame size. Ignored by sinks.
	FrameSamples int `yaml:"frame_samples" json:"frame_samples"`
}

// DefaultInputConfig returns the microphone format.
func DefaultInputConfig() Config {
	return Config{
		Backend:      BackendMock,
		SampleRate:   DefaultInputRate,
		FrameSamples: DefaultFrameSamples,
	}
}

// DefaultOutputConfig returns the speaker format.
func DefaultOutputConfig() Config {
	return Config{
		Backend:    BackendMock,
		SampleRate: DefaultOutputRate,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("audioio: sample rate must be positive, got %d", c.SampleRate)
	}
	if c.FrameSamples < 0 {
		return fmt.Errorf("audioio: frame size must not be negative, got %d", c.FrameSamples)
	}
	return nil
}

// FrameDuration is the playing time of one capture frame.
func (c Config) FrameDuration() time.Duration {
	return samplesDuration(c.FrameSamples, c.SampleRate)
}

// FrameBytes is the encoded size of one capture frame.
func (c Config) FrameBytes() int {
	return c.FrameSamples * 2
}

func samplesDuration(n, rate int) time.Duration {
	if rate <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(rate)
}
