// Package store holds the conversation transcript: an ordered, append-only log
// of messages, each optionally carrying one widget payload.
//
// Messages are never modified after Append. Readers get copies, and All
// yields a restartable sequence from the first message, so the presentation
// layer can re-render the whole transcript at any time.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-genui/pkg/widget"
)

// Sentinel errors for the store.
var (
	// ErrNotFound is returned by Get for unknown ids.
	ErrNotFound = errors.New("store: message not found")

	// ErrInvalidRole is returned by Append for roles outside user, assistant and system.
	ErrInvalidRole = errors.New("store: invalid role")

	// ErrDuplicateID is returned by Append when the id is already in the log.
	ErrDuplicateID = errors.New("store: duplicate message id")
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether r is one of the three roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant || r == RoleSystem
}

// Message is one entry of the transcript.
type Message struct {
	ID   string
	Role Role
	Text string

	// Widget is the attached payload, nil for text-only messages. It must
	// not be modified once appended.
	Widget widget.Payload

	// Error marks system error notices and widgets standing in for a failure.
	Error bool

	Timestamp time.Time
}

// HasWidget reports whether a payload is attached.
func (m Message) HasWidget() bool {
	return m.Widget != nil
}

type messageJSON struct {
	ID        string           `json:"id"`
	Role      Role             `json:"role"`
	Text      string           `json:"text,omitempty"`
	Widget    *widget.Envelope `json:"widget,omitempty"`
	Error     bool             `json:"error,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// MarshalJSON encodes the widget as a {type, data} envelope.
func (m Message) MarshalJSON() ([]byte, error) {
	out := messageJSON{
		ID:        m.ID,
		Role:      m.Role,
		Text:      m.Text,
		Error:     m.Error,
		Timestamp: m.Timestamp,
	}
	if m.Widget != nil {
		env, err := widget.Wrap(m.Widget)
		if err != nil {
			return nil, fmt.Errorf("store: encode widget: %w", err)
		}
		out.Widget = &env
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a message produced by MarshalJSON.
func (m *Message) UnmarshalJSON(data []byte) error {
	var in messageJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*m = Message{
		ID:        in.ID,
		Role:      in.Role,
		Text:      in.Text,
		Error:     in.Error,
		Timestamp: in.Timestamp,
	}
	if in.Widget != nil {
		p, err := widget.Decode(*in.Widget)
		if err != nil {
			return fmt.Errorf("store: decode widget: %w", err)
		}
		m.Widget = p
	}
	return nil
}

// Appender is the write side of the store.
type Appender interface {
	Append(msg Message) (Message, error)
}

// Store is the in-memory transcript. It is safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	messages []Message
	index    map[string]int

	subMu  sync.Mutex
	subs   map[int]func(Message)
	nextID int

	// deliver serialises notification so subscribers see log order.
	deliver sync.Mutex

	now func() time.Time
}

// New creates an empty store.
func New() *Store {
	return &Store{
		index: make(map[string]int),
		subs:  make(map[int]func(Message)),
		now:   time.Now,
	}
}

// Append adds msg to the end of the log, assigning an id and timestamp when
// missing, and notifies subscribers. It returns the stored message.
func (s *Store) Append(msg Message) (Message, error) {
	if !msg.Role.Valid() {
		return Message{}, fmt.Errorf("%w: %q", ErrInvalidRole, msg.Role)
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = s.now()
	}

	s.mu.Lock()
	if _, exists := s.index[msg.ID]; exists {
		s.mu.Unlock()
		return Message{}, fmt.Errorf("%w: %s", ErrDuplicateID, msg.ID)
	}
	s.index[msg.ID] = len(s.messages)
	s.messages = append(s.messages, msg)
	s.deliver.Lock()
	s.mu.Unlock()

	s.notify(msg)
	s.deliver.Unlock()
	return msg, nil
}

// Len returns the number of messages.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// Get returns the message with the given id.
func (s *Store) Get(id string) (Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return Message{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s.messages[i], nil
}

// Last returns the most recent message, if any.
func (s *Store) Last() (Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.messages) == 0 {
		return Message{}, false
	}
	return s.messages[len(s.messages)-1], true
}

// Snapshot returns a copy of every message in order.
func (s *Store) Snapshot() []Message {
	return s.Since(0)
}

// Since returns a copy of the messages from position n on.
func (s *Store) Since(n int) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n < 0 {
		n = 0
	}
	if n >= len(s.messages) {
		return nil
	}
	out := make([]Message, len(s.messages)-n)
	copy(out, s.messages[n:])
	return out
}

// All yields every message from the start. Each range over it starts again
// from the first message and sees messages appended while it runs.
func (s *Store) All() iter.Seq[Message] {
	return func(yield func(Message) bool) {
		for i := 0; ; i++ {
			s.mu.RLock()
			if i >= len(s.messages) {
				s.mu.RUnlock()
				return
			}
			msg := s.messages[i]
			s.mu.RUnlock()
			if !yield(msg) {
				return
			}
		}
	}
}

// Subscribe registers fn to be called with every appended message, from the
// appending goroutine, after the message is stored. Calls arrive one at a time
// in log order; fn must not Append. The returned func unsubscribes.
func (s *Store) Subscribe(fn func(Message)) (cancel func()) {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

func (s *Store) notify(msg Message) {
	s.subMu.Lock()
	fns := make([]func(Message), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(msg)
	}
}

var _ Appender = (*Store)(nil)
