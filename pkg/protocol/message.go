// Package protocol defines the WebSocket frames exchanged between the server
// and dashboard clients. Every frame is a {type, ts, data} envelope.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/teslashibe/go-genui/pkg/store"
)

// MessageType identifies the type of WebSocket message
type MessageType string

const (
	// Server → client
	TypeHello   MessageType = "hello"   // Snapshot sent on connect
	TypeMessage MessageType = "message" // Transcript entry appended
	TypeTurn    MessageType = "turn"    // Turn state transition
	TypeSession MessageType = "session" // Live session status change
	TypeError   MessageType = "error"   // Rejected client frame

	// Client → server
	TypeChat MessageType = "chat" // User input

	// Bidirectional
	TypePing MessageType = "ping"
	TypePong MessageType = "pong"
)

// Message is the base wrapper for all WebSocket messages
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType MessageType, data any) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("protocol: marshal %s data: %w", msgType, err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// ParseData unmarshals the message data into v
func (m *Message) ParseData(v any) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("protocol: parse message: %w", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("protocol: parse message: missing type")
	}
	return &msg, nil
}

// =============================================================================
// Server → Client
// =============================================================================

// HelloData is the state a client needs to draw the dashboard from scratch.
type HelloData struct {
	Messages []store.Message `json:"messages"`
	Session  SessionData     `json:"session"`
	Tools    []string        `json:"tools"`
	Busy     bool            `json:"busy"`
}

// TurnData reports a turn state transition.
type TurnData struct {
	TurnID string `json:"turnId"`
	State  string `json:"state"`
	At     int64  `json:"at"` // Unix milliseconds
}

// SessionData reports the live session status.
type SessionData struct {
	Status    string `json:"status"`
	SessionID string `json:"sessionId,omitempty"`
	Error     string `json:"error,omitempty"`
}

// ErrorData explains why a client frame was rejected.
type ErrorData struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// =============================================================================
// Client → Server
// =============================================================================

// ChatData carries user input.
type ChatData struct {
	Text string `json:"text"`
}

// =============================================================================
// Bidirectional
// =============================================================================

// PingData contains ping information
type PingData struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"ts"`
}

// PongData contains pong response
type PongData struct {
	ID        string `json:"id"`
	PingTS    int64  `json:"ping_ts"`
	PongTS    int64  `json:"pong_ts"`
	LatencyMs int64  `json:"latency_ms"`
}
