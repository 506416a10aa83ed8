package conversation

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// OpenAI implements Provider over the OpenAI Realtime websocket API.
type OpenAI struct {
	config *Config
	logger *slog.Logger

	mu     sync.RWMutex
	conn   *websocket.Conn
	state  ConnectionState
	cancel context.CancelFunc

	writeMu sync.Mutex

	onAudio      func([]byte)
	onAudioDone  func()
	onTranscript func(TranscriptRole, string, bool)
	onToolCall   func(ToolCall)
	onError      func(error)
	onClose      func(error)

	sent     atomic.Int64
	received atomic.Int64
}

// NewOpenAI creates an OpenAI Realtime provider.
func NewOpenAI(opts ...Option) (*OpenAI, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &OpenAI{
		config: cfg,
		logger: cfg.Logger.With("component", "conversation.openai"),
	}, nil
}

// Connect dials the realtime endpoint and starts the read loop.
func (o *OpenAI) Connect(ctx context.Context) error {
	o.mu.Lock()
	if o.state != StateDisconnected {
		o.mu.Unlock()
		return ErrAlreadyConnected
	}
	o.state = StateConnecting
	o.mu.Unlock()

	endpoint, err := url.Parse(o.config.BaseURL)
	if err != nil {
		o.setState(StateDisconnected)
		return connError("parse url", err, false)
	}
	q := endpoint.Query()
	q.Set("model", o.config.Model)
	endpoint.RawQuery = q.Encode()

	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+o.config.APIKey)
	headers.Set("OpenAI-Beta", "realtime=v1")

	dialer := websocket.Dialer{HandshakeTimeout: o.config.Timeout}

	o.logger.Info("connecting", "model", o.config.Model)
	conn, resp, err := dialer.DialContext(ctx, endpoint.String(), headers)
	if err != nil {
		o.setState(StateDisconnected)
		if resp != nil {
			return &APIError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("handshake failed: %v", err)}
		}
		return connError("dial", err, true)
	}

	readCtx, cancel := context.WithCancel(context.Background())
	o.mu.Lock()
	o.conn = conn
	o.state = StateConnected
	o.cancel = cancel
	o.mu.Unlock()

	go o.readLoop(readCtx, conn)

	o.logger.Info("connected")
	return nil
}

// Close ends the session. Calling it on a closed session does nothing.
func (o *OpenAI) Close() error {
	o.mu.Lock()
	if o.conn == nil {
		o.mu.Unlock()
		return nil
	}
	conn := o.conn
	cancel := o.cancel
	o.conn = nil
	o.state = StateDisconnected
	o.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		o.writeMu.Lock()
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		o.writeMu.Unlock()
		conn.Close()
	}

	o.logger.Info("disconnected", "sent", o.sent.Load(), "received", o.received.Load())
	return nil
}

// IsConnected implements Provider.
func (o *OpenAI) IsConnected() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state == StateConnected
}

// State returns the connection state.
func (o *OpenAI) State() ConnectionState {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

// SendAudio appends a frame to the input audio buffer.
func (o *OpenAI) SendAudio(pcm []byte) error {
	return o.send(map[string]any{
		"type":  "input_audio_buffer.append",
		"audio": base64.StdEncoding.EncodeToString(pcm),
	}, "send audio")
}

// ConfigureSession sends session.update.
func (o *OpenAI) ConfigureSession(opts SessionOptions) error {
	voice := opts.Voice
	if voice == "" {
		voice = o.config.Voice
	}

	tools := make([]map[string]any, 0, len(opts.Tools))
	for _, t := range opts.Tools {
		params := t.Parameters
		if params == nil {
			params = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		tools = append(tools, map[string]any{
			"type":        "function",
			"name":        t.Name,
			"description": t.Description,
			"parameters":  params,
		})
	}

	td := opts.TurnDetection
	if td == nil {
		td = DefaultTurnDetection()
	}

	session := map[string]any{
		"modalities":          []string{"text", "audio"},
		"instructions":        opts.SystemPrompt,
		"voice":               voice,
		"input_audio_format":  "pcm16",
		"output_audio_format": "pcm16",
		"input_audio_transcription": map[string]any{
			"model": "whisper-1",
		},
		"turn_detection": map[string]any{
			"type":                td.Type,
			"threshold":           td.Threshold,
			"prefix_padding_ms":   td.PrefixPaddingMs,
			"silence_duration_ms": td.SilenceDurationMs,
		},
		"tools":       tools,
		"tool_choice": "auto",
	}
	if opts.Temperature > 0 {
		session["temperature"] = opts.Temperature
	}

	return o.send(map[string]any{"type": "session.update", "session": session}, "configure session")
}

// SubmitToolResult sends the function output and requests a new response.
func (o *OpenAI) SubmitToolResult(callID, output string) error {
	err := o.send(map[string]any{
		"type": "conversation.item.create",
		"item": map[string]any{
			"type":    "function_call_output",
			"call_id": callID,
			"output":  output,
		},
	}, "submit tool result")
	if err != nil {
		return err
	}
	if err := o.send(map[string]any{"type": "response.create"}, "request response"); err != nil {
		return err
	}
	o.logger.Debug("tool result submitted", "call_id", callID, "output_len", len(output))
	return nil
}

func (o *OpenAI) send(msg any, op string) error {
	o.mu.RLock()
	conn := o.conn
	state := o.state
	o.mu.RUnlock()

	if state != StateConnected || conn == nil {
		return ErrNotConnected
	}

	o.writeMu.Lock()
	defer o.writeMu.Unlock()
	if o.config.WriteTimeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(o.config.WriteTimeout))
	}
	if err := conn.WriteJSON(msg); err != nil {
		return connError(op, err, true)
	}
	o.sent.Add(1)
	return nil
}

// Capabilities implements Provider.
func (o *OpenAI) Capabilities() Capabilities {
	return Capabilities{
		SupportsToolCalls: true,
		InputSampleRate:   24000,
		OutputSampleRate:  24000,
		Models:            []string{DefaultModel},
	}
}

// OnAudio implements Provider.
func (o *OpenAI) OnAudio(fn func([]byte)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onAudio = fn
}

// OnAudioDone implements Provider.
func (o *OpenAI) OnAudioDone(fn func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onAudioDone = fn
}

// OnTranscript implements Provider.
func (o *OpenAI) OnTranscript(fn func(TranscriptRole, string, bool)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onTranscript = fn
}

// OnToolCall implements Provider.
func (o *OpenAI) OnToolCall(fn func(ToolCall)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onToolCall = fn
}

// OnError implements Provider.
func (o *OpenAI) OnError(fn func(error)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onError = fn
}

// OnClose implements Provider.
func (o *OpenAI) OnClose(fn func(error)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onClose = fn
}

// serverEvent covers the fields of the server events the provider handles.
type serverEvent struct {
	Type       string `json:"type"`
	Delta      string `json:"delta"`
	Transcript string `json:"transcript"`
	CallID     string `json:"call_id"`
	Name       string `json:"name"`
	Arguments  string `json:"arguments"`
	Error      *struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (o *OpenAI) readLoop(ctx context.Context, conn *websocket.Conn) {
	var cause error
	defer func() {
		o.mu.Lock()
		current := o.conn == conn
		if current {
			o.state = StateDisconnected
			o.conn = nil
		}
		fn := o.onClose
		o.mu.Unlock()
		if current {
			conn.Close()
			if fn != nil {
				fn(cause)
			}
		}
	}()

	for {
		if o.config.ReadTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(o.config.ReadTimeout))
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				cause = ErrConnectionClosed
			} else {
				cause = connError("read", err, true)
			}
			o.logger.Warn("session ended", "error", err)
			return
		}
		o.received.Add(1)

		var ev serverEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			o.logger.Warn("unparseable event", "error", err)
			continue
		}
		o.dispatch(ev)
	}
}

func (o *OpenAI) dispatch(ev serverEvent) {
	o.mu.RLock()
	onAudio, onAudioDone, onTranscript := o.onAudio, o.onAudioDone, o.onTranscript
	onToolCall, onError := o.onToolCall, o.onError
	o.mu.RUnlock()

	switch ev.Type {
	case "session.created", "session.updated":
		o.logger.Debug(ev.Type)

	case "response.audio.delta":
		pcm, err := base64.StdEncoding.DecodeString(ev.Delta)
		if err != nil {
			o.logger.Warn("bad audio delta", "error", err)
			return
		}
		if onAudio != nil {
			onAudio(pcm)
		}

	case "response.audio.done":
		if onAudioDone != nil {
			onAudioDone()
		}

	case "conversation.item.input_audio_transcription.completed":
		if onTranscript != nil {
			onTranscript(RoleUser, ev.Transcript, true)
		}

	case "response.audio_transcript.delta":
		if onTranscript != nil {
			onTranscript(RoleAgent, ev.Delta, false)
		}

	case "response.audio_transcript.done":
		if onTranscript != nil {
			onTranscript(RoleAgent, ev.Transcript, true)
		}

	case "response.function_call_arguments.done":
		o.logger.Info("tool call", "name", ev.Name, "call_id", ev.CallID)
		if onToolCall != nil {
			onToolCall(ToolCall{ID: ev.CallID, Name: ev.Name, Arguments: ev.Arguments})
		}

	case "error":
		err := &APIError{Message: "unknown error"}
		if ev.Error != nil {
			err = &APIError{Code: ev.Error.Code, Type: ev.Error.Type, Message: ev.Error.Message}
		}
		o.logger.Warn("server error", "code", err.Code, "message", err.Message)
		if onError != nil {
			onError(err)
		}
	}
}

func (o *OpenAI) setState(s ConnectionState) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

// HandshakeStatus returns the HTTP status of a failed Connect, or 0.
func HandshakeStatus(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

var _ Provider = (*OpenAI)(nil)
