package orchestrator

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/teslashibe/go-genui/pkg/fault"
	"github.com/teslashibe/go-genui/pkg/widget"
)

// TurnState is the position of a turn in its state machine.
type TurnState int

const (
	StateSubmitted TurnState = iota
	StateResolving
	StateNoToolNeeded
	StateToolRequested
	StateFetching
	StateResultSubmitted
	StateCompleted
	StateFailed
)

// String returns the wire name of the state.
func (s TurnState) String() string {
	switch s {
	case StateSubmitted:
		return "submitted"
	case StateResolving:
		return "resolving"
	case StateNoToolNeeded:
		return "no_tool_needed"
	case StateToolRequested:
		return "tool_requested"
	case StateFetching:
		return "fetching"
	case StateResultSubmitted:
		return "result_submitted"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition can follow.
func (s TurnState) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// MarshalText encodes the state by name.
func (s TurnState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name written by MarshalText.
func (s *TurnState) UnmarshalText(b []byte) error {
	for c := StateSubmitted; c <= StateFailed; c++ {
		if c.String() == string(b) {
			*s = c
			return nil
		}
	}
	return fmt.Errorf("orchestrator: unknown turn state %q", b)
}

// Invocation reports one tool call of a turn and what came of it.
type Invocation struct {
	CallID string
	Tool   string
	Args   json.RawMessage

	// Payload is the adapter result, or an ErrorData standing in for a failure.
	Payload widget.Payload

	// Err is the classified failure, nil on success.
	Err error
}

// OK reports whether the invocation produced real data.
func (inv Invocation) OK() bool {
	return inv.Err == nil && inv.Payload != nil && !widget.IsError(inv.Payload)
}

type invocationJSON struct {
	CallID string           `json:"toolCallId"`
	Tool   string           `json:"toolName"`
	Args   json.RawMessage  `json:"args"`
	Result *widget.Envelope `json:"result,omitempty"`
	Kind   string           `json:"errorKind,omitempty"`
}

// MarshalJSON encodes the invocation with its result as a widget envelope.
func (inv Invocation) MarshalJSON() ([]byte, error) {
	out := invocationJSON{CallID: inv.CallID, Tool: inv.Tool, Args: inv.Args}
	if len(out.Args) == 0 {
		out.Args = json.RawMessage("{}")
	}
	if inv.Payload != nil {
		env, err := widget.Wrap(inv.Payload)
		if err != nil {
			return nil, err
		}
		out.Result = &env
	}
	if inv.Err != nil {
		out.Kind = fault.KindOf(inv.Err).String()
	}
	return json.Marshal(out)
}

// Turn is one user input and its resolution.
type Turn struct {
	ID    string
	Input string
	State TurnState

	// Text is the assistant text appended at completion.
	Text string

	// Widget is the payload attached to the assistant message, if any.
	Widget widget.Payload

	Invocations []Invocation

	// MessageID is the id of the assistant or system message the turn appended.
	MessageID string

	// Err is the failure that ended the turn in StateFailed.
	Err error

	StartedAt time.Time
	EndedAt   time.Time
}

// Duration returns how long the turn took, zero while it is running.
func (t *Turn) Duration() time.Duration {
	if t.EndedAt.IsZero() {
		return 0
	}
	return t.EndedAt.Sub(t.StartedAt)
}

type turnJSON struct {
	ID          string           `json:"id"`
	Input       string           `json:"input"`
	State       TurnState        `json:"state"`
	Text        string           `json:"text,omitempty"`
	Widget      *widget.Envelope `json:"widget,omitempty"`
	Invocations []Invocation     `json:"invocations,omitempty"`
	MessageID   string           `json:"messageId,omitempty"`
	Error       string           `json:"error,omitempty"`
	ErrorKind   string           `json:"errorKind,omitempty"`
	DurationMs  int64            `json:"durationMs"`
}

// MarshalJSON encodes the turn for API clients.
func (t *Turn) MarshalJSON() ([]byte, error) {
	out := turnJSON{
		ID:          t.ID,
		Input:       t.Input,
		State:       t.State,
		Text:        t.Text,
		Invocations: t.Invocations,
		MessageID:   t.MessageID,
		DurationMs:  t.Duration().Milliseconds(),
	}
	if t.Widget != nil {
		env, err := widget.Wrap(t.Widget)
		if err != nil {
			return nil, err
		}
		out.Widget = &env
	}
	if t.Err != nil {
		out.Error = t.Err.Error()
		out.ErrorKind = fault.KindOf(t.Err).String()
	}
	return json.Marshal(out)
}

// TurnEvent is delivered to observers on every state transition.
type TurnEvent struct {
	TurnID string    `json:"turnId"`
	State  TurnState `json:"state"`
	At     time.Time `json:"at"`
}
