package widget

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownWidget is returned by Decode for an unrecognised type tag.
var ErrUnknownWidget = errors.New("widget: unknown widget type")

// Envelope is the tagged wire form of a Payload: {"type": ..., "data": {...}}.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Wrap encodes a payload into its envelope.
func Wrap(p Payload) (Envelope, error) {
	if p == nil {
		return Envelope{}, fmt.Errorf("%w: nil", ErrInvalidPayload)
	}
	data, err := json.Marshal(p)
	if err != nil {
		return Envelope{}, fmt.Errorf("widget: encode %s: %w", p.Type(), err)
	}
	return Envelope{Type: p.Type(), Data: data}, nil
}

// Decode turns an envelope back into a typed payload.
func Decode(env Envelope) (Payload, error) {
	var p Payload
	switch env.Type {
	case string(KindStock):
		p = &StockData{}
	case string(KindWeather):
		p = &WeatherData{}
	case string(KindKanban):
		p = &KanbanData{}
	case TypeError:
		p = &ErrorData{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownWidget, env.Type)
	}
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, p); err != nil {
			return nil, fmt.Errorf("widget: decode %s: %w", env.Type, err)
		}
	}
	return p, nil
}

// MarshalPayload encodes a payload as its envelope JSON.
func MarshalPayload(p Payload) ([]byte, error) {
	env, err := Wrap(p)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

// UnmarshalPayload parses envelope JSON. An unknown type yields the raw
// envelope alongside ErrUnknownWidget so callers can still render a fallback.
func UnmarshalPayload(data []byte) (Payload, Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, env, fmt.Errorf("widget: decode envelope: %w", err)
	}
	p, err := Decode(env)
	return p, env, err
}
