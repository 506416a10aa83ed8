package conversation

import (
	"context"
	"sync"
)

// Mock implements Provider for testing.
type Mock struct {
	mu sync.RWMutex

	connected bool

	onAudio      func([]byte)
	onAudioDone  func()
	onTranscript func(TranscriptRole, string, bool)
	onToolCall   func(ToolCall)
	onError      func(error)
	onClose      func(error)

	// ConnectFunc, CloseFunc and SubmitToolResultFunc replace the default
	// behaviour when set.
	ConnectFunc          func(ctx context.Context) error
	CloseFunc            func() error
	SubmitToolResultFunc func(callID, output string) error

	// CapabilitiesOverride replaces the default capabilities.
	CapabilitiesOverride *Capabilities

	audioSent   [][]byte
	session     *SessionOptions
	toolResults map[string]string
	resultOrder []string
	closeCalls  int
}

// NewMock creates a mock provider.
func NewMock() *Mock {
	return &Mock{toolResults: make(map[string]string)}
}

// Connect implements Provider.
func (m *Mock) Connect(ctx context.Context) error {
	if m.ConnectFunc != nil {
		if err := m.ConnectFunc(ctx); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.connected {
		return ErrAlreadyConnected
	}
	m.connected = true
	return nil
}

// Close implements Provider.
func (m *Mock) Close() error {
	m.mu.Lock()
	m.closeCalls++
	m.connected = false
	fn := m.CloseFunc
	m.mu.Unlock()
	if fn != nil {
		return fn()
	}
	return nil
}

// IsConnected implements Provider.
func (m *Mock) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// ConfigureSession implements Provider.
func (m *Mock) ConfigureSession(opts SessionOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return ErrNotConnected
	}
	m.session = &opts
	return nil
}

// SendAudio implements Provider.
func (m *Mock) SendAudio(pcm []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return ErrNotConnected
	}
	m.audioSent = append(m.audioSent, pcm)
	return nil
}

// SubmitToolResult implements Provider.
func (m *Mock) SubmitToolResult(callID, output string) error {
	if m.SubmitToolResultFunc != nil {
		return m.SubmitToolResultFunc(callID, output)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return ErrNotConnected
	}
	m.toolResults[callID] = output
	m.resultOrder = append(m.resultOrder, callID)
	return nil
}

// Capabilities implements Provider.
func (m *Mock) Capabilities() Capabilities {
	if m.CapabilitiesOverride != nil {
		return *m.CapabilitiesOverride
	}
	return Capabilities{
		SupportsToolCalls: true,
		InputSampleRate:   16000,
		OutputSampleRate:  24000,
		Models:            []string{"mock-realtime"},
	}
}

// OnAudio implements Provider.
func (m *Mock) OnAudio(fn func([]byte)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onAudio = fn
}

// OnAudioDone implements Provider.
func (m *Mock) OnAudioDone(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onAudioDone = fn
}

// OnTranscript implements Provider.
func (m *Mock) OnTranscript(fn func(TranscriptRole, string, bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onTranscript = fn
}

// OnToolCall implements Provider.
func (m *Mock) OnToolCall(fn func(ToolCall)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onToolCall = fn
}

// OnError implements Provider.
func (m *Mock) OnError(fn func(error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onError = fn
}

// OnClose implements Provider.
func (m *Mock) OnClose(fn func(error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onClose = fn
}

// SimulateAudio delivers server audio.
func (m *Mock) SimulateAudio(pcm []byte) {
	m.mu.RLock()
	fn := m.onAudio
	m.mu.RUnlock()
	if fn != nil {
		fn(pcm)
	}
}

// SimulateAudioDone signals the end of a spoken response.
func (m *Mock) SimulateAudioDone() {
	m.mu.RLock()
	fn := m.onAudioDone
	m.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

// SimulateTranscript delivers a transcript.
func (m *Mock) SimulateTranscript(role TranscriptRole, text string, final bool) {
	m.mu.RLock()
	fn := m.onTranscript
	m.mu.RUnlock()
	if fn != nil {
		fn(role, text, final)
	}
}

// SimulateToolCall delivers a tool call request.
func (m *Mock) SimulateToolCall(id, name, arguments string) {
	m.mu.RLock()
	fn := m.onToolCall
	m.mu.RUnlock()
	if fn != nil {
		fn(ToolCall{ID: id, Name: name, Arguments: arguments})
	}
}

// SimulateError delivers a provider error.
func (m *Mock) SimulateError(err error) {
	m.mu.RLock()
	fn := m.onError
	m.mu.RUnlock()
	if fn != nil {
		fn(err)
	}
}

// SimulateDrop ends the session from the server side.
func (m *Mock) SimulateDrop(err error) {
	m.mu.Lock()
	m.connected = false
	fn := m.onClose
	m.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

// AudioSent returns a copy of every frame sent.
func (m *Mock) AudioSent() [][]byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([][]byte, len(m.audioSent))
	copy(out, m.audioSent)
	return out
}

// Session returns the last session configuration, nil before ConfigureSession.
func (m *Mock) Session() *SessionOptions {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session
}

// ToolResult returns the output submitted for callID.
func (m *Mock) ToolResult(callID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out, ok := m.toolResults[callID]
	return out, ok
}

// ToolResultIDs returns the call ids answered, in submission order.
func (m *Mock) ToolResultIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.resultOrder...)
}

// CloseCalls returns how many times Close was called.
func (m *Mock) CloseCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closeCalls
}

var _ Provider = (*Mock)(nil)
