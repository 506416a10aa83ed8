package web

import (
	"context"
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-genui/pkg/hub"
	"github.com/teslashibe/go-genui/pkg/orchestrator"
	"github.com/teslashibe/go-genui/pkg/protocol"
	"github.com/teslashibe/go-genui/pkg/realtime"
	"github.com/teslashibe/go-genui/pkg/store"
)

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Text string `json:"text"`
}

// ChatResponse is the result of a text turn.
type ChatResponse struct {
	Turn    *orchestrator.Turn `json:"turn"`
	Message *store.Message     `json:"message,omitempty"`
}

// SessionResponse describes the live voice session.
type SessionResponse struct {
	Status    realtime.Status `json:"status"`
	SessionID string          `json:"sessionId,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// handleError renders every error as {"error": ...}.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code >= 500 {
		s.logger.Error("request failed", "path", c.Path(), "error", err)
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

// handleHealth reports liveness and a few counters
func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":   "ok",
		"messages": s.transcript.Len(),
		"clients":  s.events.ClientCount(),
		"busy":     s.chat.Busy(),
	})
}

// handleListTools returns the registered tool schemas
func (s *Server) handleListTools(c *fiber.Ctx) error {
	return c.JSON(s.registry.DescribeAll())
}

// handleListMessages returns the transcript from ?since=n on
func (s *Server) handleListMessages(c *fiber.Ctx) error {
	since := c.QueryInt("since", 0)
	if since < 0 {
		return fiber.NewError(fiber.StatusBadRequest, "since must not be negative")
	}
	msgs := s.transcript.Since(since)
	if msgs == nil {
		msgs = []store.Message{}
	}
	return c.JSON(msgs)
}

// handleGetMessage returns one message by id
func (s *Server) handleGetMessage(c *fiber.Ctx) error {
	msg, err := s.transcript.Get(c.Params("id"))
	if errors.Is(err, store.ErrNotFound) {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}
	if err != nil {
		return err
	}
	return c.JSON(msg)
}

// handleChat runs one text turn to completion
func (s *Server) handleChat(c *fiber.Ctx) error {
	var req ChatRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	turn, err := s.chat.Submit(c.UserContext(), req.Text)
	if err != nil {
		return fiber.NewError(chatStatus(err), err.Error())
	}

	resp := ChatResponse{Turn: turn}
	if turn.MessageID != "" {
		if msg, err := s.transcript.Get(turn.MessageID); err == nil {
			resp.Message = &msg
		}
	}
	return c.JSON(resp)
}

// chatStatus maps a Submit rejection to an HTTP status.
func chatStatus(err error) int {
	switch {
	case errors.Is(err, orchestrator.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, orchestrator.ErrBusy):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// handleSession returns the live session status
func (s *Server) handleSession(c *fiber.Ctx) error {
	if s.session == nil {
		return fiber.NewError(fiber.StatusNotImplemented, "live session not configured")
	}
	return c.JSON(s.sessionResponse(s.session.Status()))
}

// handleToggleSession starts or ends the live session
func (s *Server) handleToggleSession(c *fiber.Ctx) error {
	if s.session == nil {
		return fiber.NewError(fiber.StatusNotImplemented, "live session not configured")
	}
	status, err := s.session.Toggle(c.UserContext())
	resp := s.sessionResponse(status)
	if err != nil {
		resp.Error = err.Error()
		return c.Status(fiber.StatusBadGateway).JSON(resp)
	}
	return c.JSON(resp)
}

func (s *Server) sessionResponse(status realtime.Status) SessionResponse {
	resp := SessionResponse{Status: status, SessionID: s.session.SessionID()}
	if status == realtime.StatusError {
		if err := s.session.LastError(); err != nil {
			resp.Error = err.Error()
		}
	}
	return resp
}

// handleEventsWS streams protocol frames. The first frame is a hello
// snapshot; clients may send ping and chat frames.
func (s *Server) handleEventsWS(conn *websocket.Conn) {
	client := hub.NewClient(s.events, conn)
	client.OnMessage = func(data []byte) {
		s.handleClientFrame(client, data)
	}
	client.Run(s.hello)
}

// hello builds the snapshot queued for a client as it joins.
func (s *Server) hello() []hub.Message {
	data := protocol.HelloData{
		Messages: s.transcript.Snapshot(),
		Session:  protocol.SessionData{Status: realtime.StatusDisconnected.String()},
		Tools:    s.registry.Names(),
		Busy:     s.chat.Busy(),
	}
	if s.session != nil {
		resp := s.sessionResponse(s.session.Status())
		data.Session = protocol.SessionData{
			Status:    resp.Status.String(),
			SessionID: resp.SessionID,
			Error:     resp.Error,
		}
	}
	msg, err := protocol.NewHelloMessage(data)
	if err != nil {
		s.logger.Warn("encode hello failed", "error", err)
		return nil
	}
	bytes, err := msg.Bytes()
	if err != nil {
		s.logger.Warn("encode hello failed", "error", err)
		return nil
	}
	return []hub.Message{hub.NewJSONMessage(bytes)}
}

func (s *Server) handleClientFrame(client *hub.Client, data []byte) {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		s.replyError(client, http.StatusBadRequest, err.Error())
		return
	}

	switch msg.Type {
	case protocol.TypePing:
		var ping protocol.PingData
		if err := msg.ParseData(&ping); err != nil {
			s.replyError(client, http.StatusBadRequest, err.Error())
			return
		}
		pong, err := protocol.NewPongMessage(ping)
		s.reply(client, pong, err)

	case protocol.TypeChat:
		var chat protocol.ChatData
		if err := msg.ParseData(&chat); err != nil {
			s.replyError(client, http.StatusBadRequest, err.Error())
			return
		}
		// The turn outlives the socket; results arrive as message frames.
		go func() {
			if _, err := s.chat.Submit(context.Background(), chat.Text); err != nil {
				s.replyError(client, chatStatus(err), err.Error())
			}
		}()

	default:
		s.replyError(client, http.StatusBadRequest, "unsupported frame type: "+string(msg.Type))
	}
}

func (s *Server) replyError(client *hub.Client, code int, text string) {
	msg, err := protocol.NewErrorMessage(code, text)
	s.reply(client, msg, err)
}

func (s *Server) reply(client *hub.Client, msg *protocol.Message, err error) {
	if err != nil {
		s.logger.Warn("encode reply failed", "error", err)
		return
	}
	bytes, err := msg.Bytes()
	if err != nil {
		s.logger.Warn("encode reply failed", "error", err)
		return
	}
	if !client.Send(hub.NewJSONMessage(bytes)) {
		s.logger.Debug("reply dropped", "type", msg.Type)
	}
}
