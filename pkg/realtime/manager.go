// Package realtime runs the voice path: a live provider session fed by the
// microphone, played back through the speaker, with tool calls answered on the
// same session and their widgets appended to the transcript.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-genui/pkg/audioio"
	"github.com/teslashibe/go-genui/pkg/conversation"
	"github.com/teslashibe/go-genui/pkg/datasource"
	"github.com/teslashibe/go-genui/pkg/fault"
	"github.com/teslashibe/go-genui/pkg/inference"
	"github.com/teslashibe/go-genui/pkg/resolver"
	"github.com/teslashibe/go-genui/pkg/store"
	"github.com/teslashibe/go-genui/pkg/widget"
)

var (
	// ErrMissingDependency is returned by New when a collaborator is nil.
	ErrMissingDependency = errors.New("realtime: missing dependency")

	// errCanceled marks a connect overtaken by Close.
	errCanceled = errors.New("realtime: session closed while connecting")
)

// Status is the state of the live session.
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(b []byte) error {
	for c := StatusDisconnected; c <= StatusError; c++ {
		if c.String() == string(b) {
			*s = c
			return nil
		}
	}
	return fmt.Errorf("realtime: unknown status %q", b)
}

// Active reports whether a session is open or opening.
func (s Status) Active() bool {
	return s == StatusConnecting || s == StatusConnected
}

// Tools declares and validates the tool set shared with the text path.
type Tools interface {
	Tools() []inference.Tool
	ValidateCall(call inference.ToolCall) resolver.Invocation
}

// session owns the resources of one connect.
type session struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	closed       bool
	source       audioio.Source
	sink         audioio.Sink
	providerOpen bool
	captureDone  chan struct{}
}

// adopt runs set under the session lock unless the session is already closed.
func (s *session) adopt(set func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	set()
	return true
}

func (s *session) output() audioio.Sink {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	return s.sink
}

// Manager drives the live session state machine. It is safe for concurrent use.
type Manager struct {
	provider   conversation.Provider
	tools      Tools
	adapter    datasource.Adapter
	transcript store.Appender
	cfg        *Config
	logger     *slog.Logger

	sched Scheduler

	mu           sync.Mutex
	status       Status
	sess         *session
	lastErr      error
	observers    []func(Status)
	onTranscript func(conversation.TranscriptRole, string, bool)

	framesSent atomic.Int64
	calls      sync.WaitGroup
	now        func() time.Time
}

// New creates a manager and registers its handlers on the provider.
func New(p conversation.Provider, tools Tools, adapter datasource.Adapter, transcript store.Appender, opts ...Option) (*Manager, error) {
	if p == nil || tools == nil || adapter == nil || transcript == nil {
		return nil, ErrMissingDependency
	}
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	m := &Manager{
		provider:   p,
		tools:      tools,
		adapter:    adapter,
		transcript: transcript,
		cfg:        cfg,
		logger:     cfg.Logger.With("component", "realtime.manager"),
		now:        time.Now,
	}

	p.OnAudio(m.handleAudio)
	p.OnAudioDone(func() {
		m.logger.Debug("response audio done", "backlog", m.sched.Backlog(m.now()))
	})
	p.OnTranscript(m.handleTranscript)
	p.OnToolCall(m.handleToolCall)
	p.OnError(m.handleError)
	p.OnClose(m.handleDrop)
	return m, nil
}

// OnStatus registers fn for every status change.
func (m *Manager) OnStatus(fn func(Status)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, fn)
}

// OnTranscript registers fn for session transcripts.
func (m *Manager) OnTranscript(fn func(role conversation.TranscriptRole, text string, final bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onTranscript = fn
}

// Status returns the current status.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// LastError returns the error behind the last StatusError.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// SessionID returns the id of the open session, or "".
func (m *Manager) SessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil {
		return ""
	}
	return m.sess.id
}

// FramesSent returns the number of capture frames streamed so far.
func (m *Manager) FramesSent() int64 {
	return m.framesSent.Load()
}

// Backlog returns how much playback is still scheduled.
func (m *Manager) Backlog() time.Duration {
	return m.sched.Backlog(m.now())
}

// Toggle opens a session when disconnected or errored and closes it when
// connecting or connected. It returns the resulting status.
func (m *Manager) Toggle(ctx context.Context) (Status, error) {
	m.mu.Lock()
	if m.status.Active() {
		m.mu.Unlock()
		return StatusDisconnected, m.Close()
	}
	sessCtx, cancel := context.WithCancel(context.Background())
	sess := &session{id: uuid.NewString(), ctx: sessCtx, cancel: cancel}
	m.sess = sess
	m.lastErr = nil
	observers := m.setStatusLocked(StatusConnecting)
	m.mu.Unlock()
	notify(observers, StatusConnecting)

	if err := m.open(ctx, sess); err != nil {
		if errors.Is(err, errCanceled) {
			return m.Status(), nil
		}
		m.abort(sess, err)
		return StatusError, err
	}
	return StatusConnected, nil
}

func (m *Manager) open(ctx context.Context, sess *session) error {
	logger := m.logger.With("session_id", sess.id)
	logger.Info("connecting")

	src, err := m.cfg.OpenSource()
	if err != nil {
		return fmt.Errorf("realtime: open microphone: %w", err)
	}
	if !sess.adopt(func() { sess.source = src }) {
		src.Close()
		return errCanceled
	}
	sink, err := m.cfg.OpenSink()
	if err != nil {
		return fmt.Errorf("realtime: open speaker: %w", err)
	}
	if !sess.adopt(func() { sess.sink = sink }) {
		sink.Close()
		return errCanceled
	}
	if err := sink.Start(sess.ctx); err != nil {
		return fmt.Errorf("realtime: start speaker: %w", err)
	}

	if err := m.provider.Connect(ctx); err != nil {
		return fault.New(fault.ProviderUnavailable, "realtime.connect", err)
	}
	if !sess.adopt(func() { sess.providerOpen = true }) {
		m.closeProvider()
		return errCanceled
	}

	err = m.provider.ConfigureSession(conversation.SessionOptions{
		SystemPrompt: m.cfg.SystemPrompt,
		Voice:        m.cfg.Voice,
		Tools:        sessionTools(m.tools.Tools()),
	})
	if err != nil {
		return fault.New(fault.ProviderUnavailable, "realtime.configure", err)
	}

	m.mu.Lock()
	if m.sess != sess {
		m.mu.Unlock()
		return errCanceled
	}
	observers := m.setStatusLocked(StatusConnected)
	m.mu.Unlock()
	notify(observers, StatusConnected)

	if m.cfg.StartText != "" {
		if _, err := m.transcript.Append(store.Message{Role: store.RoleSystem, Text: m.cfg.StartText}); err != nil {
			logger.Warn("append start message failed", "error", err)
		}
	}

	if err := src.Start(sess.ctx); err != nil {
		return fmt.Errorf("realtime: start microphone: %w", err)
	}
	done := make(chan struct{})
	if !sess.adopt(func() { sess.captureDone = done }) {
		return errCanceled
	}
	go m.capture(sess, src, done)

	logger.Info("connected", "microphone", src.Name(), "speaker", sink.Name())
	return nil
}

// capture streams microphone frames without waiting for acknowledgement.
func (m *Manager) capture(sess *session, src audioio.Source, done chan struct{}) {
	defer close(done)
	rate := m.provider.Capabilities().InputSampleRate
	for {
		select {
		case <-sess.ctx.Done():
			return
		case chunk, ok := <-src.Stream():
			if !ok {
				return
			}
			if rate > 0 && chunk.SampleRate != rate {
				chunk = audioio.ResampleChunk(chunk, rate)
			}
			if err := m.provider.SendAudio(chunk.Bytes()); err != nil {
				if conversation.IsNotConnected(err) {
					return
				}
				m.logger.Debug("send audio failed", "session_id", sess.id, "error", err)
				continue
			}
			m.framesSent.Add(1)
		}
	}
}

// Close ends the session and releases the audio devices. It is safe from
// any state and idempotent.
func (m *Manager) Close() error {
	m.mu.Lock()
	sess := m.sess
	m.sess = nil
	observers := m.setStatusLocked(StatusDisconnected)
	m.mu.Unlock()

	if sess != nil {
		m.teardown(sess, true)
		m.logger.Info("session closed", "session_id", sess.id, "frames_sent", m.framesSent.Load())
	}
	notify(observers, StatusDisconnected)
	return nil
}

// abort tears down a session whose connect failed.
func (m *Manager) abort(sess *session, err error) {
	m.mu.Lock()
	current := m.sess == sess
	var observers []func(Status)
	if current {
		m.sess = nil
		m.lastErr = err
		observers = m.setStatusLocked(StatusError)
	}
	m.mu.Unlock()

	m.teardown(sess, true)
	m.logger.Warn("connect failed", "session_id", sess.id, "error", err)
	if current {
		notify(observers, StatusError)
	}
}

// teardown releases everything the session acquired, once.
func (m *Manager) teardown(sess *session, closeProvider bool) {
	sess.mu.Lock()
	if sess.closed {
		sess.mu.Unlock()
		return
	}
	sess.closed = true
	src, sink, providerOpen, done := sess.source, sess.sink, sess.providerOpen, sess.captureDone
	sess.mu.Unlock()

	sess.cancel()
	if providerOpen && closeProvider {
		m.closeProvider()
	}
	if src != nil {
		if err := src.Close(); err != nil {
			m.logger.Warn("close microphone failed", "error", err)
		}
	}
	if done != nil {
		select {
		case <-done:
		case <-time.After(m.cfg.CloseTimeout):
			m.logger.Warn("capture loop did not stop", "session_id", sess.id)
		}
	}
	if sink != nil {
		_ = sink.Clear()
		if err := sink.Close(); err != nil {
			m.logger.Warn("close speaker failed", "error", err)
		}
	}
	m.sched.Reset()
}

// closeProvider closes the provider session, giving up after CloseTimeout.
func (m *Manager) closeProvider() {
	done := make(chan error, 1)
	go func() { done <- m.provider.Close() }()

	timeout := m.cfg.CloseTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	select {
	case err := <-done:
		if err != nil {
			m.logger.Warn("provider close failed", "error", err)
		}
	case <-time.After(timeout):
		m.logger.Warn("provider close timed out", "timeout", timeout)
	}
}

func (m *Manager) current() *session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sess
}

func (m *Manager) handleAudio(pcm []byte) {
	sess := m.current()
	if sess == nil {
		return
	}
	sink := sess.output()
	if sink == nil {
		return
	}

	chunk := audioio.ChunkFromBytes(pcm, m.provider.Capabilities().OutputSampleRate)
	if out := m.cfg.Output.SampleRate; out > 0 && chunk.SampleRate != out {
		chunk = audioio.ResampleChunk(chunk, out)
	}
	now := m.now()
	chunk.At = m.sched.Schedule(now, chunk.Duration())
	if err := sink.Write(sess.ctx, chunk); err != nil {
		m.logger.Debug("playback write failed", "error", err)
		return
	}
	m.logger.Debug("playback scheduled", "delay", chunk.At.Sub(now), "duration", chunk.Duration())
}

func (m *Manager) handleTranscript(role conversation.TranscriptRole, text string, final bool) {
	m.mu.Lock()
	fn := m.onTranscript
	m.mu.Unlock()
	if final {
		m.logger.Debug("transcript", "role", role, "text", text)
	}
	if fn != nil {
		fn(role, text, final)
	}
}

// handleError records provider errors that leave the session open.
func (m *Manager) handleError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
	m.logger.Warn("provider error", "error", err)
}

// handleDrop runs when the provider ends the session on its own. A clean
// close returns to Disconnected, anything else to Error.
func (m *Manager) handleDrop(cause error) {
	m.mu.Lock()
	sess := m.sess
	if sess == nil {
		m.mu.Unlock()
		return
	}
	m.sess = nil
	next := StatusDisconnected
	if cause != nil && !errors.Is(cause, conversation.ErrConnectionClosed) {
		next = StatusError
		m.lastErr = cause
	}
	observers := m.setStatusLocked(next)
	m.mu.Unlock()

	m.teardown(sess, false)
	m.logger.Warn("session dropped", "session_id", sess.id, "status", next, "error", cause)
	notify(observers, next)
}

// handleToolCall answers on the read goroutine's behalf.
func (m *Manager) handleToolCall(call conversation.ToolCall) {
	sess := m.current()
	if sess == nil {
		return
	}
	m.calls.Add(1)
	go func() {
		defer m.calls.Done()
		m.runTool(sess, call)
	}()
}

// runTool validates and fetches one voice tool call, appends its widget to
// the transcript and submits the result on the session.
func (m *Manager) runTool(sess *session, call conversation.ToolCall) {
	logger := m.logger.With("session_id", sess.id, "tool", call.Name, "call_id", call.ID)

	inv := m.tools.ValidateCall(inference.ToolCall{ID: call.ID, Name: call.Name, Arguments: call.Arguments})
	err := inv.Err
	var payload widget.Payload
	if err == nil {
		ctx, cancel := sess.ctx, context.CancelFunc(func() {})
		if m.cfg.FetchTimeout > 0 {
			ctx, cancel = context.WithTimeout(sess.ctx, m.cfg.FetchTimeout)
		}
		payload, err = m.adapter.Fetch(ctx, inv.Args)
		cancel()
		if err != nil && fault.KindOf(err) == fault.KindUnknown {
			err = datasource.Unavailable("realtime.fetch", err)
		}
	}

	output := resultDisplayed
	if err != nil {
		logger.Warn("tool call failed", "kind", fault.KindOf(err), "error", err)
		payload = &widget.ErrorData{Tool: call.Name, Kind: fault.KindOf(err).String(), Message: fault.Message(err)}
		output = errorResult(err)
	}

	_, aerr := m.transcript.Append(store.Message{
		Role:   store.RoleAssistant,
		Text:   fmt.Sprintf("Showing %s...", call.Name),
		Widget: payload,
		Error:  widget.IsError(payload),
	})
	if aerr != nil {
		logger.Warn("append widget message failed", "error", aerr)
	}

	if m.current() != sess {
		logger.Debug("session ended before tool result")
		return
	}
	if err := m.provider.SubmitToolResult(call.ID, output); err != nil {
		logger.Warn("submit tool result failed", "error", err)
		return
	}
	logger.Info("tool call answered", "ok", err == nil)
}

// Wait blocks until in-flight tool calls finish.
func (m *Manager) Wait() {
	m.calls.Wait()
}

func (m *Manager) setStatusLocked(s Status) []func(Status) {
	if m.status == s {
		return nil
	}
	m.logger.Debug("status", "from", m.status, "to", s)
	m.status = s
	return slices.Clone(m.observers)
}

func notify(observers []func(Status), s Status) {
	for _, fn := range observers {
		fn(s)
	}
}

func sessionTools(tools []inference.Tool) []conversation.Tool {
	out := make([]conversation.Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, conversation.Tool{
			Name:        t.Function.Name,
			Description: t.Function.Description,
			Parameters:  t.Function.Parameters,
		})
	}
	return out
}

func errorResult(err error) string {
	b, _ := json.Marshal(map[string]string{"error": fault.Message(err)})
	return string(b)
}
