package protocol

import (
	"time"

	"github.com/teslashibe/go-genui/pkg/orchestrator"
	"github.com/teslashibe/go-genui/pkg/store"
)

// =============================================================================
// Helper functions for creating messages
// =============================================================================

// NewHelloMessage creates the connect snapshot
func NewHelloMessage(data HelloData) (*Message, error) {
	if data.Messages == nil {
		data.Messages = []store.Message{}
	}
	if data.Tools == nil {
		data.Tools = []string{}
	}
	return NewMessage(TypeHello, data)
}

// NewChatMessage creates a transcript message frame
func NewChatMessage(msg store.Message) (*Message, error) {
	return NewMessage(TypeMessage, msg)
}

// NewTurnMessage creates a turn transition frame
func NewTurnMessage(ev orchestrator.TurnEvent) (*Message, error) {
	return NewMessage(TypeTurn, TurnData{
		TurnID: ev.TurnID,
		State:  ev.State.String(),
		At:     ev.At.UnixMilli(),
	})
}

// NewSessionMessage creates a session status frame
func NewSessionMessage(status, sessionID string, err error) (*Message, error) {
	data := SessionData{Status: status, SessionID: sessionID}
	if err != nil {
		data.Error = err.Error()
	}
	return NewMessage(TypeSession, data)
}

// NewErrorMessage creates an error frame
func NewErrorMessage(code int, message string) (*Message, error) {
	return NewMessage(TypeError, ErrorData{Code: code, Message: message})
}

// NewPingMessage creates a ping message
func NewPingMessage(id string) (*Message, error) {
	return NewMessage(TypePing, PingData{
		ID:        id,
		Timestamp: time.Now().UnixMilli(),
	})
}

// NewPongMessage creates a pong response to a ping
func NewPongMessage(ping PingData) (*Message, error) {
	now := time.Now().UnixMilli()
	return NewMessage(TypePong, PongData{
		ID:        ping.ID,
		PingTS:    ping.Timestamp,
		PongTS:    now,
		LatencyMs: now - ping.Timestamp,
	})
}
