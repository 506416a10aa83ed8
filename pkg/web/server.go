// Package web serves the chat API and the live event stream for dashboard
// clients.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-genui/pkg/hub"
	"github.com/teslashibe/go-genui/pkg/orchestrator"
	"github.com/teslashibe/go-genui/pkg/protocol"
	"github.com/teslashibe/go-genui/pkg/realtime"
	"github.com/teslashibe/go-genui/pkg/store"
	"github.com/teslashibe/go-genui/pkg/widget"
)

// ErrMissingDependency is returned by NewServer when a collaborator is nil.
var ErrMissingDependency = errors.New("web: missing dependency")

// Chat runs text turns.
type Chat interface {
	Submit(ctx context.Context, text string) (*orchestrator.Turn, error)
	Busy() bool
}

// Transcript is the read side of the message store.
type Transcript interface {
	Len() int
	Get(id string) (store.Message, error)
	Since(n int) []store.Message
	Snapshot() []store.Message
	Subscribe(fn func(store.Message)) (cancel func())
}

// Session is the live voice session.
type Session interface {
	Toggle(ctx context.Context) (realtime.Status, error)
	Status() realtime.Status
	SessionID() string
	LastError() error
}

// Server is the HTTP and websocket front end
type Server struct {
	app        *fiber.App
	addr       string
	chat       Chat
	transcript Transcript
	registry   *widget.Registry
	session    Session
	events     *hub.Hub
	logger     *slog.Logger

	unsubscribe func()
}

// Option configures a Server.
type Option func(*Server)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(s *Server) { s.addr = addr }
}

// WithSession enables the live session routes.
func WithSession(sess Session) Option {
	return func(s *Server) { s.session = sess }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates the server and subscribes it to the transcript.
func NewServer(chat Chat, transcript Transcript, registry *widget.Registry, opts ...Option) (*Server, error) {
	if chat == nil || transcript == nil || registry == nil {
		return nil, ErrMissingDependency
	}
	s := &Server{
		addr:       ":8080",
		chat:       chat,
		transcript: transcript,
		registry:   registry,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "web")
	s.events = hub.New("events", s.logger)

	app := fiber.New(fiber.Config{
		AppName:               "GenUI Dashboard",
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})
	app.Use(recover.New())
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/health", s.handleHealth)
	api.Get("/tools", s.handleListTools)
	api.Get("/messages", s.handleListMessages)
	api.Get("/messages/:id", s.handleGetMessage)
	api.Post("/chat", s.handleChat)
	api.Get("/session", s.handleSession)
	api.Post("/session/toggle", s.handleToggleSession)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/events", websocket.New(s.handleEventsWS))

	s.app = app
	s.unsubscribe = transcript.Subscribe(s.PublishMessage)
	return s, nil
}

// App returns the fiber app, for tests and embedding.
func (s *Server) App() *fiber.App {
	return s.app
}

// Events returns the broadcast hub.
func (s *Server) Events() *hub.Hub {
	return s.events
}

// Run starts the hub and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go s.events.Run(ctx)

	errCh := make(chan error, 1)
	go func() { errCh <- s.app.Listener(ln) }()
	s.logger.Info("listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return s.Shutdown()
	}
}

// Shutdown stops accepting requests and detaches from the transcript.
func (s *Server) Shutdown() error {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	return s.app.Shutdown()
}

// PublishMessage broadcasts a transcript entry.
func (s *Server) PublishMessage(msg store.Message) {
	s.publish(protocol.NewChatMessage(msg))
}

// PublishTurn broadcasts a turn transition.
func (s *Server) PublishTurn(ev orchestrator.TurnEvent) {
	s.publish(protocol.NewTurnMessage(ev))
}

// PublishSession broadcasts a session status change.
func (s *Server) PublishSession(status realtime.Status) {
	var id string
	var err error
	if s.session != nil {
		id = s.session.SessionID()
		if status == realtime.StatusError {
			err = s.session.LastError()
		}
	}
	s.publish(protocol.NewSessionMessage(status.String(), id, err))
}

func (s *Server) publish(msg *protocol.Message, err error) {
	if err != nil {
		s.logger.Warn("encode event failed", "error", err)
		return
	}
	data, err := msg.Bytes()
	if err != nil {
		s.logger.Warn("encode event failed", "error", err)
		return
	}
	s.events.Broadcast(hub.NewJSONMessage(data))
}
