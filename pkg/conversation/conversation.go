// Package conversation is the real-time side of the model provider: a
// persistent bidirectional session that takes microphone audio, answers with
// synthesized audio and requests tool calls along the way.
//
// Event handlers are registered before Connect and run on the session's read
// goroutine, so they must hand work off rather than block.
//
//	p, err := conversation.NewOpenAI(conversation.WithAPIKey(key))
//	if err != nil {
//	    return err
//	}
//	p.OnAudio(func(pcm []byte) { play(pcm) })
//	p.OnToolCall(func(call conversation.ToolCall) { go handle(call) })
//	if err := p.Connect(ctx); err != nil {
//	    return err
//	}
//	defer p.Close()
package conversation

import "context"

// Provider is a real-time voice session.
type Provider interface {
	// Connect opens the session.
	Connect(ctx context.Context) error

	// Close ends the session. It is idempotent.
	Close() error

	IsConnected() bool

	// ConfigureSession sends the instructions, voice and tools.
	ConfigureSession(opts SessionOptions) error

	// SendAudio streams PCM16 mono audio at Capabilities().InputSampleRate.
	// Frames are fire-and-forget.
	SendAudio(pcm []byte) error

	// SubmitToolResult answers a tool call and asks the model to continue.
	SubmitToolResult(callID, output string) error

	// OnAudio receives PCM16 mono audio at Capabilities().OutputSampleRate.
	OnAudio(fn func(pcm []byte))

	// OnAudioDone fires when a response finishes speaking.
	OnAudioDone(fn func())

	// OnTranscript receives user and agent transcripts.
	OnTranscript(fn func(role TranscriptRole, text string, final bool))

	// OnToolCall receives tool call requests.
	OnToolCall(fn func(call ToolCall))

	// OnError receives provider-reported errors that do not end the session.
	OnError(fn func(err error))

	// OnClose fires once when the session ends without Close being called.
	OnClose(fn func(err error))

	Capabilities() Capabilities
}

// ToolCall is a tool invocation requested during a session.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// Tool declares a callable function to the session.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// SessionOptions configures a session.
type SessionOptions struct {
	SystemPrompt string
	Voice        string
	Temperature  float64
	Tools        []Tool

	// TurnDetection nil uses server-side voice activity detection defaults.
	TurnDetection *TurnDetection
}

// TurnDetection configures voice activity detection.
type TurnDetection struct {
	Type              string
	Threshold         float64
	PrefixPaddingMs   int
	SilenceDurationMs int
}

// DefaultTurnDetection returns server VAD settings.
func DefaultTurnDetection() *TurnDetection {
	return &TurnDetection{
		Type:              "server_vad",
		Threshold:         0.5,
		PrefixPaddingMs:   300,
		SilenceDurationMs: 500,
	}
}

// Capabilities describes a provider.
type Capabilities struct {
	SupportsToolCalls bool
	InputSampleRate   int
	OutputSampleRate  int
	Models            []string
}

// TranscriptRole identifies who is speaking.
type TranscriptRole string

const (
	RoleUser  TranscriptRole = "user"
	RoleAgent TranscriptRole = "agent"
)

// ConnectionState is the state of a provider connection.
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}
