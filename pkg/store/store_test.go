package store

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/teslashibe/go-genui/pkg/widget"
)

func TestAppendAssignsIDAndTimestamp(t *testing.T) {
	s := New()

	msg, err := s.Append(Message{Role: RoleUser, Text: "hello"})
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if msg.ID == "" {
		t.Error("ID not assigned")
	}
	if msg.Timestamp.IsZero() {
		t.Error("Timestamp not assigned")
	}

	got, err := s.Get(msg.ID)
	if err != nil || got.Text != "hello" {
		t.Errorf("Get() = %+v, %v", got, err)
	}
}

func TestAppendRejects(t *testing.T) {
	s := New()

	if _, err := s.Append(Message{Role: "tool"}); !errors.Is(err, ErrInvalidRole) {
		t.Errorf("invalid role error = %v", err)
	}

	s.Append(Message{ID: "m1", Role: RoleSystem})
	if _, err := s.Append(Message{ID: "m1", Role: RoleUser}); !errors.Is(err, ErrDuplicateID) {
		t.Errorf("duplicate id error = %v", err)
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}

func TestGetNotFound(t *testing.T) {
	if _, err := New().Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v", err)
	}
}

func TestAppendOnly(t *testing.T) {
	s := New()
	first, _ := s.Append(Message{Role: RoleUser, Text: "one"})
	s.Append(Message{Role: RoleAssistant, Text: "two"})

	snap := s.Snapshot()
	snap[0].Text = "changed"

	got, _ := s.Get(first.ID)
	if got.Text != "one" {
		t.Errorf("stored message mutated through snapshot: %q", got.Text)
	}
}

func TestSince(t *testing.T) {
	s := New()
	for _, text := range []string{"a", "b", "c"} {
		s.Append(Message{Role: RoleUser, Text: text})
	}

	tests := []struct {
		n    int
		want int
	}{
		{-1, 3},
		{0, 3},
		{2, 1},
		{3, 0},
		{10, 0},
	}
	for _, tt := range tests {
		if got := len(s.Since(tt.n)); got != tt.want {
			t.Errorf("Since(%d) = %d messages, want %d", tt.n, got, tt.want)
		}
	}
}

func TestAllRestartable(t *testing.T) {
	s := New()
	s.Append(Message{Role: RoleSystem, Text: "welcome"})
	s.Append(Message{Role: RoleUser, Text: "hi"})

	for pass := 0; pass < 2; pass++ {
		var texts []string
		for m := range s.All() {
			texts = append(texts, m.Text)
		}
		if len(texts) != 2 || texts[0] != "welcome" {
			t.Errorf("pass %d = %v", pass, texts)
		}
	}

	count := 0
	for range s.All() {
		count++
		break
	}
	if count != 1 {
		t.Errorf("early break yielded %d", count)
	}
}

func TestSubscribe(t *testing.T) {
	s := New()
	var mu sync.Mutex
	var seen []string
	cancel := s.Subscribe(func(m Message) {
		mu.Lock()
		seen = append(seen, m.Text)
		mu.Unlock()
	})

	s.Append(Message{Role: RoleUser, Text: "one"})
	cancel()
	cancel()
	s.Append(Message{Role: RoleUser, Text: "two"})

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 1 || seen[0] != "one" {
		t.Errorf("seen = %v", seen)
	}
}

func TestConcurrentAppend(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Append(Message{Role: RoleAssistant, Text: "x"})
		}()
	}
	wg.Wait()
	if s.Len() != 50 {
		t.Errorf("Len() = %d, want 50", s.Len())
	}
}

func TestSubscribersSeeLogOrder(t *testing.T) {
	s := New()
	var mu sync.Mutex
	var seen []string
	s.Subscribe(func(m Message) {
		mu.Lock()
		seen = append(seen, m.ID)
		mu.Unlock()
		// Widen the window between storing and delivering.
		time.Sleep(time.Millisecond)
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Append(Message{Role: RoleAssistant, Text: "x"})
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	log := s.Snapshot()
	if len(seen) != len(log) {
		t.Fatalf("delivered %d of %d", len(seen), len(log))
	}
	for i, m := range log {
		if seen[i] != m.ID {
			t.Fatalf("delivery %d = %s, log has %s", i, seen[i], m.ID)
		}
	}
}

func TestMessageJSON(t *testing.T) {
	s := New()
	msg, _ := s.Append(Message{
		Role:   RoleAssistant,
		Text:   "Here you go",
		Widget: &widget.WeatherData{Location: "Paris", Temperature: 72, Condition: widget.Sunny},
	})

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var raw map[string]any
	json.Unmarshal(data, &raw)
	w := raw["widget"].(map[string]any)
	if w["type"] != "weather" {
		t.Errorf("widget type = %v", w["type"])
	}

	var back Message
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	wd, ok := back.Widget.(*widget.WeatherData)
	if !ok || wd.Location != "Paris" {
		t.Errorf("widget = %#v", back.Widget)
	}
	if back.ID != msg.ID || !back.Timestamp.Equal(msg.Timestamp) {
		t.Errorf("round trip = %+v", back)
	}
}

func TestMessageJSONWithoutWidget(t *testing.T) {
	data, _ := json.Marshal(Message{ID: "1", Role: RoleUser, Text: "hi"})
	var raw map[string]any
	json.Unmarshal(data, &raw)
	if _, ok := raw["widget"]; ok {
		t.Error("widget should be omitted")
	}
}
