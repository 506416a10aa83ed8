// Package orchestrator drives one chat turn end to end.
//
// A turn moves through submitted, resolving, then either no_tool_needed or
// tool_requested, fetching and result_submitted, and ends completed or failed.
// Only one turn runs at a time; Submit rejects input with ErrBusy while a
// turn is in flight. Every turn appends exactly one assistant or system
// message to the store after the user message.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/teslashibe/go-genui/pkg/datasource"
	"github.com/teslashibe/go-genui/pkg/fault"
	"github.com/teslashibe/go-genui/pkg/inference"
	"github.com/teslashibe/go-genui/pkg/resolver"
	"github.com/teslashibe/go-genui/pkg/store"
	"github.com/teslashibe/go-genui/pkg/widget"
)

// Sentinel errors for the orchestrator.
var (
	// ErrBusy is returned by Submit while another turn is in flight.
	ErrBusy = errors.New("orchestrator: already processing")

	// ErrInvalidInput is returned by Submit for empty, oversized or non UTF-8 text.
	ErrInvalidInput = errors.New("orchestrator: invalid input")

	// ErrMissingDependency is returned by New when the resolver, adapter or
	// store is nil.
	ErrMissingDependency = errors.New("orchestrator: missing dependency")
)

// Resolver is the model side of a turn.
type Resolver interface {
	Resolve(ctx context.Context, req resolver.Request) (*resolver.Resolution, error)
	WrapUp(ctx context.Context, req resolver.Request, res *resolver.Resolution, results []resolver.Result) (string, error)
}

// Transcript is the part of the message store the orchestrator uses.
type Transcript interface {
	store.Appender
	Snapshot() []store.Message
}

// Orchestrator runs turns against a resolver, an adapter and a transcript.
type Orchestrator struct {
	resolver Resolver
	adapter  datasource.Adapter
	store    Transcript
	cfg      *Config
	logger   *slog.Logger

	busy    atomic.Bool
	started sync.Once
	now     func() time.Time
}

// New creates an orchestrator.
func New(r Resolver, adapter datasource.Adapter, s Transcript, opts ...Option) (*Orchestrator, error) {
	switch {
	case r == nil:
		return nil, fmt.Errorf("%w: resolver", ErrMissingDependency)
	case adapter == nil:
		return nil, fmt.Errorf("%w: adapter", ErrMissingDependency)
	case s == nil:
		return nil, fmt.Errorf("%w: store", ErrMissingDependency)
	}
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	return &Orchestrator{
		resolver: r,
		adapter:  adapter,
		store:    s,
		cfg:      cfg,
		logger:   cfg.Logger.With("component", "orchestrator"),
		now:      time.Now,
	}, nil
}

// Start appends the welcome message. Later calls do nothing.
func (o *Orchestrator) Start() error {
	var err error
	o.started.Do(func() {
		if o.cfg.WelcomeText == "" {
			return
		}
		_, err = o.store.Append(store.Message{Role: store.RoleSystem, Text: o.cfg.WelcomeText})
	})
	return err
}

// Busy reports whether a turn is in flight.
func (o *Orchestrator) Busy() bool {
	return o.busy.Load()
}

// ValidateInput trims text and checks it can start a turn.
func ValidateInput(text string) (string, error) {
	if !utf8.ValidString(text) {
		return "", fmt.Errorf("%w: not valid UTF-8", ErrInvalidInput)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidInput)
	}
	if n := utf8.RuneCountInString(text); n > MaxInputRunes {
		return "", fmt.Errorf("%w: %d characters exceeds %d", ErrInvalidInput, n, MaxInputRunes)
	}
	return text, nil
}

// Submit runs one turn to completion. The returned error is non-nil only when
// the turn could not start (ErrInvalidInput, ErrBusy) or the store refused a
// write; a turn that fails on the provider is returned in StateFailed with
// Turn.Err set.
func (o *Orchestrator) Submit(ctx context.Context, text string) (*Turn, error) {
	input, err := ValidateInput(text)
	if err != nil {
		return nil, err
	}
	if !o.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer o.busy.Store(false)

	turn := &Turn{ID: uuid.NewString(), Input: input, StartedAt: o.now()}
	logger := o.logger.With("turn_id", turn.ID)

	if _, err := o.store.Append(store.Message{Role: store.RoleUser, Text: input}); err != nil {
		return nil, fmt.Errorf("orchestrator: append user message: %w", err)
	}
	o.transition(turn, StateSubmitted)

	req := resolver.Request{System: o.cfg.SystemPrompt, History: o.history()}

	o.transition(turn, StateResolving)
	rctx, cancel := hopContext(ctx, o.cfg.TurnTimeout)
	res, err := o.resolver.Resolve(rctx, req)
	cancel()
	if err != nil {
		logger.Error("resolve failed", "error", err)
		return turn, o.fail(turn, err)
	}

	if !res.NeedsTools() {
		o.transition(turn, StateNoToolNeeded)
		turn.Text = res.Text
		if turn.Text == "" {
			turn.Text = o.cfg.AckText
		}
		return turn, o.complete(turn, logger)
	}

	o.transition(turn, StateToolRequested)
	turn.Invocations = o.fetchAll(ctx, turn, res.Invocations, logger)
	turn.Widget = pickWidget(turn.Invocations)

	turn.Text = res.Text
	if o.cfg.WrapUp {
		o.transition(turn, StateResultSubmitted)
		wctx, cancel := hopContext(ctx, o.cfg.TurnTimeout)
		text, err := o.resolver.WrapUp(wctx, req, res, results(turn.Invocations))
		cancel()
		if err != nil {
			logger.Warn("wrap-up failed, using acknowledgement", "error", err)
		} else if text != "" {
			turn.Text = text
		}
	}
	if turn.Text == "" {
		turn.Text = o.cfg.AckText
	}
	return turn, o.complete(turn, logger)
}

// fetchAll fetches every valid invocation concurrently. A failure stays with
// its invocation and never cancels its siblings.
func (o *Orchestrator) fetchAll(ctx context.Context, turn *Turn, invs []resolver.Invocation, logger *slog.Logger) []Invocation {
	out := make([]Invocation, len(invs))
	o.transition(turn, StateFetching)

	var wg sync.WaitGroup
	for i, inv := range invs {
		out[i] = Invocation{CallID: inv.Call.ID, Tool: inv.Call.Name, Args: inv.RawArguments()}
		if !inv.OK() {
			out[i].Err = inv.Err
			out[i].Payload = errorPayload(inv.Call.Name, inv.Err)
			continue
		}

		wg.Add(1)
		go func(i int, inv resolver.Invocation) {
			defer wg.Done()
			fctx, cancel := hopContext(ctx, o.cfg.FetchTimeout)
			defer cancel()

			start := o.now()
			p, err := o.adapter.Fetch(fctx, inv.Args)
			if err != nil {
				if fault.KindOf(err) == fault.KindUnknown {
					err = fault.New(fault.DataSourceUnavailable, "orchestrator.fetch", err)
				}
				err = withCall(err, inv.Call.Name, inv.Call.ID)
				logger.Warn("fetch failed", "tool", inv.Call.Name, "call_id", inv.Call.ID, "error", err)
				out[i].Err = err
				out[i].Payload = errorPayload(inv.Call.Name, err)
				return
			}
			logger.Debug("fetched",
				"tool", inv.Call.Name,
				"call_id", inv.Call.ID,
				"latency_ms", o.now().Sub(start).Milliseconds(),
			)
			out[i].Payload = p
		}(i, inv)
	}
	wg.Wait()
	return out
}

func (o *Orchestrator) complete(turn *Turn, logger *slog.Logger) error {
	msg, err := o.store.Append(store.Message{
		Role:   store.RoleAssistant,
		Text:   turn.Text,
		Widget: turn.Widget,
		Error:  turn.Widget != nil && widget.IsError(turn.Widget),
	})
	if err != nil {
		return fmt.Errorf("orchestrator: append assistant message: %w", err)
	}
	turn.MessageID = msg.ID
	turn.EndedAt = o.now()
	o.transition(turn, StateCompleted)

	widgetType := ""
	if turn.Widget != nil {
		widgetType = turn.Widget.Type()
	}
	logger.Info("turn completed",
		"invocations", len(turn.Invocations),
		"widget", widgetType,
		"duration_ms", turn.Duration().Milliseconds(),
	)
	return nil
}

func (o *Orchestrator) fail(turn *Turn, cause error) error {
	turn.Err = cause
	msg, err := o.store.Append(store.Message{
		Role:  store.RoleSystem,
		Text:  o.cfg.ErrorText,
		Error: true,
	})
	if err != nil {
		return fmt.Errorf("orchestrator: append error message: %w", err)
	}
	turn.MessageID = msg.ID
	turn.EndedAt = o.now()
	o.transition(turn, StateFailed)
	return nil
}

func (o *Orchestrator) transition(turn *Turn, state TurnState) {
	turn.State = state
	o.logger.Debug("turn state", "turn_id", turn.ID, "state", state.String())
	if len(o.cfg.Observers) == 0 {
		return
	}
	ev := TurnEvent{TurnID: turn.ID, State: state, At: o.now()}
	for _, fn := range o.cfg.Observers {
		fn(ev)
	}
}

// history converts the transcript into provider messages. System notices are
// presentation only and are left out.
func (o *Orchestrator) history() []inference.Message {
	msgs := o.store.Snapshot()
	if n := o.cfg.HistoryLimit; n > 0 && len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	out := make([]inference.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Text == "" {
			continue
		}
		switch m.Role {
		case store.RoleUser:
			out = append(out, inference.NewUserMessage(m.Text))
		case store.RoleAssistant:
			out = append(out, inference.NewAssistantMessage(m.Text))
		}
	}
	return out
}

// pickWidget attaches the first successful payload in request order, or the
// first invocation's error payload when none succeeded.
func pickWidget(invs []Invocation) widget.Payload {
	for _, inv := range invs {
		if inv.OK() {
			return inv.Payload
		}
	}
	if len(invs) > 0 {
		return invs[0].Payload
	}
	return nil
}

func results(invs []Invocation) []resolver.Result {
	out := make([]resolver.Result, 0, len(invs))
	for _, inv := range invs {
		out = append(out, resolver.Result{CallID: inv.CallID, Tool: inv.Tool, Payload: inv.Payload})
	}
	return out
}

func errorPayload(tool string, err error) *widget.ErrorData {
	return &widget.ErrorData{
		Tool:    tool,
		Kind:    fault.KindOf(err).String(),
		Message: fault.Message(err),
	}
}

func withCall(err error, tool, callID string) error {
	var fe *fault.Error
	if errors.As(err, &fe) && fe.CallID == "" {
		cp := *fe
		return cp.ForCall(tool, callID)
	}
	return err
}

func hopContext(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
