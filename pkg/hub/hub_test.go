package hub

import (
	"context"
	"testing"
	"time"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	h := New("test", nil)
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-h.Done()
	})
	return h
}

// join registers a connectionless client, as Run would.
func join(h *Hub, buffer int, snapshot func() []Message) *Client {
	c := &Client{hub: h, send: make(chan Message, buffer), snapshot: snapshot}
	h.register <- c
	return c
}

func receive(t *testing.T, c *Client) (Message, bool) {
	t.Helper()
	select {
	case msg, ok := <-c.send:
		return msg, ok
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for a frame")
		return Message{}, false
	}
}

func TestBroadcast(t *testing.T) {
	h := startHub(t)
	a := join(h, 4, nil)
	b := join(h, 4, nil)

	if err := h.BroadcastJSON(map[string]string{"type": "message"}); err != nil {
		t.Fatal(err)
	}
	for _, c := range []*Client{a, b} {
		msg, ok := receive(t, c)
		if !ok || string(msg.Data) != `{"type":"message"}` || msg.Type != JSONMessage {
			t.Errorf("frame = %+v, %v", msg, ok)
		}
	}
	if h.ClientCount() != 2 {
		t.Errorf("ClientCount = %d", h.ClientCount())
	}
}

func TestSnapshotPrecedesBroadcast(t *testing.T) {
	h := startHub(t)
	c := join(h, 4, func() []Message {
		return []Message{NewJSONMessage([]byte(`"hello"`))}
	})
	h.Broadcast(NewJSONMessage([]byte(`"later"`)))

	first, _ := receive(t, c)
	second, _ := receive(t, c)
	if string(first.Data) != `"hello"` || string(second.Data) != `"later"` {
		t.Errorf("order = %s, %s", first.Data, second.Data)
	}
}

func TestSlowClientDropped(t *testing.T) {
	h := startHub(t)
	slow := join(h, 1, nil)
	fast := join(h, 8, nil)

	h.Broadcast(NewJSONMessage([]byte("1")))
	h.Broadcast(NewJSONMessage([]byte("2")))

	receive(t, fast)
	receive(t, fast)

	deadline := time.Now().Add(time.Second)
	for h.ClientCount() != 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if h.ClientCount() != 1 || h.Dropped() != 1 {
		t.Fatalf("ClientCount = %d, Dropped = %d", h.ClientCount(), h.Dropped())
	}

	if _, ok := receive(t, slow); !ok {
		t.Fatal("first frame should have been queued")
	}
	if _, ok := receive(t, slow); ok {
		t.Error("slow client's channel should be closed")
	}
}

func TestSendDirect(t *testing.T) {
	h := startHub(t)
	a := join(h, 1, nil)
	b := join(h, 1, nil)

	if !a.Send(NewJSONMessage([]byte(`"pong"`))) {
		t.Fatal("Send failed")
	}
	if msg, _ := receive(t, a); string(msg.Data) != `"pong"` {
		t.Errorf("frame = %s", msg.Data)
	}
	select {
	case msg := <-b.send:
		t.Errorf("other client got %s", msg.Data)
	default:
	}

	a.Send(NewJSONMessage([]byte("x")))
	if a.Send(NewJSONMessage([]byte("y"))) {
		t.Error("Send should fail when the buffer is full")
	}
}

func TestUnregister(t *testing.T) {
	h := startHub(t)
	c := join(h, 1, nil)
	h.unregister <- c
	if _, ok := receive(t, c); ok {
		t.Error("send channel should be closed")
	}
	if c.Send(NewJSONMessage([]byte("x"))) {
		t.Error("Send to an unregistered client should fail")
	}
}

func TestRunStops(t *testing.T) {
	h := New("stop", nil)
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	c := join(h, 1, nil)
	if !h.IsRunning() {
		t.Error("hub should be running")
	}
	cancel()
	<-h.Done()
	if _, ok := receive(t, c); ok {
		t.Error("clients should be closed when the hub stops")
	}
	if h.IsRunning() {
		t.Error("hub should have stopped")
	}
}
