package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-genui/pkg/datasource"
	"github.com/teslashibe/go-genui/pkg/inference"
	"github.com/teslashibe/go-genui/pkg/orchestrator"
	"github.com/teslashibe/go-genui/pkg/protocol"
	"github.com/teslashibe/go-genui/pkg/realtime"
	"github.com/teslashibe/go-genui/pkg/resolver"
	"github.com/teslashibe/go-genui/pkg/store"
	"github.com/teslashibe/go-genui/pkg/widget"
)

type fakeSession struct {
	mu        sync.Mutex
	status    realtime.Status
	toggleErr error
}

func (f *fakeSession) Toggle(ctx context.Context) (realtime.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.toggleErr != nil {
		f.status = realtime.StatusError
		return f.status, f.toggleErr
	}
	if f.status.Active() {
		f.status = realtime.StatusDisconnected
	} else {
		f.status = realtime.StatusConnected
	}
	return f.status, nil
}

func (f *fakeSession) Status() realtime.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeSession) SessionID() string {
	if f.Status() == realtime.StatusConnected {
		return "sess-1"
	}
	return ""
}

func (f *fakeSession) LastError() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.toggleErr
}

type testServer struct {
	srv     *Server
	store   *store.Store
	orch    *orchestrator.Orchestrator
	session *fakeSession
}

func newTestServer(t *testing.T, mock *inference.Mock) *testServer {
	t.Helper()
	r, err := resolver.New(mock, widget.DefaultRegistry())
	if err != nil {
		t.Fatal(err)
	}
	fixture := datasource.NewFixture().With(widget.KindWeather, &widget.WeatherData{Location: "Paris", Temperature: 68})

	ts := &testServer{store: store.New(), session: &fakeSession{}}
	var srv *Server
	ts.orch, err = orchestrator.New(r, fixture, ts.store, orchestrator.WithObserver(func(ev orchestrator.TurnEvent) {
		srv.PublishTurn(ev)
	}))
	if err != nil {
		t.Fatal(err)
	}
	srv, err = NewServer(ts.orch, ts.store, widget.DefaultRegistry(), WithSession(ts.session))
	if err != nil {
		t.Fatal(err)
	}
	ts.srv = srv
	t.Cleanup(func() { srv.Shutdown() })
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	resp, err := ts.srv.App().Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, data
}

func weatherCall() *inference.ChatResponse {
	return inference.ToolCallResponse("", inference.ToolCall{
		ID: "call_1", Name: "showWeather", Arguments: `{"location":"Paris"}`,
	})
}

func TestNewServerRequiresDependencies(t *testing.T) {
	if _, err := NewServer(nil, store.New(), widget.DefaultRegistry()); !errors.Is(err, ErrMissingDependency) {
		t.Errorf("error = %v", err)
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, inference.NewMock())
	code, body := ts.do(t, http.MethodGet, "/api/health", nil)
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	var got map[string]any
	json.Unmarshal(body, &got)
	if got["status"] != "ok" || got["busy"] != false {
		t.Errorf("health = %s", body)
	}
}

func TestListTools(t *testing.T) {
	ts := newTestServer(t, inference.NewMock())
	code, body := ts.do(t, http.MethodGet, "/api/tools", nil)
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	var tools []widget.ToolSchema
	if err := json.Unmarshal(body, &tools); err != nil {
		t.Fatal(err)
	}
	if len(tools) != 3 || tools[0].Name != "showStockPrice" {
		t.Errorf("tools = %s", body)
	}
}

func TestChat(t *testing.T) {
	ts := newTestServer(t, inference.NewScripted(weatherCall(), inference.TextResponse("Sunny in Paris.")))

	code, body := ts.do(t, http.MethodPost, "/api/chat", ChatRequest{Text: "weather in Paris"})
	if code != http.StatusOK {
		t.Fatalf("status = %d body = %s", code, body)
	}
	var resp struct {
		Turn    map[string]any `json:"turn"`
		Message store.Message  `json:"message"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Turn["state"] != "completed" {
		t.Errorf("turn = %v", resp.Turn)
	}
	w, ok := resp.Message.Widget.(*widget.WeatherData)
	if !ok || w.Location != "Paris" {
		t.Errorf("message widget = %#v", resp.Message.Widget)
	}

	code, body = ts.do(t, http.MethodGet, "/api/messages?since=0", nil)
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	var msgs []store.Message
	json.Unmarshal(body, &msgs)
	if len(msgs) != 2 || msgs[0].Role != store.RoleUser || msgs[1].Role != store.RoleAssistant {
		t.Errorf("messages = %s", body)
	}

	_, body = ts.do(t, http.MethodGet, "/api/messages?since=1", nil)
	json.Unmarshal(body, &msgs)
	if len(msgs) != 1 {
		t.Errorf("since=1 returned %d messages", len(msgs))
	}

	code, _ = ts.do(t, http.MethodGet, "/api/messages/"+resp.Message.ID, nil)
	if code != http.StatusOK {
		t.Errorf("get message status = %d", code)
	}
	code, _ = ts.do(t, http.MethodGet, "/api/messages/nope", nil)
	if code != http.StatusNotFound {
		t.Errorf("unknown message status = %d", code)
	}
}

func TestChatRejections(t *testing.T) {
	tests := []struct {
		name string
		body any
		want int
	}{
		{"empty text", ChatRequest{Text: "   "}, http.StatusBadRequest},
		{"missing body", nil, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, inference.NewMock())
			code, body := ts.do(t, http.MethodPost, "/api/chat", tt.body)
			if code != tt.want {
				t.Errorf("status = %d, want %d (%s)", code, tt.want, body)
			}
			if ts.store.Len() != 0 {
				t.Errorf("store has %d messages", ts.store.Len())
			}
		})
	}
}

func TestChatBusy(t *testing.T) {
	release := make(chan struct{})
	mock := inference.NewMock()
	mock.ChatFunc = func(ctx context.Context, req *inference.ChatRequest) (*inference.ChatResponse, error) {
		<-release
		return inference.TextResponse("done"), nil
	}
	ts := newTestServer(t, mock)

	first := make(chan int, 1)
	go func() {
		code, _ := ts.do(t, http.MethodPost, "/api/chat", ChatRequest{Text: "slow"})
		first <- code
	}()

	deadline := time.Now().Add(2 * time.Second)
	for !ts.orch.Busy() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	code, _ := ts.do(t, http.MethodPost, "/api/chat", ChatRequest{Text: "second"})
	if code != http.StatusConflict {
		t.Errorf("concurrent status = %d, want 409", code)
	}
	close(release)
	if code := <-first; code != http.StatusOK {
		t.Errorf("first status = %d", code)
	}
}

func TestSession(t *testing.T) {
	ts := newTestServer(t, inference.NewMock())

	var resp SessionResponse
	_, body := ts.do(t, http.MethodGet, "/api/session", nil)
	json.Unmarshal(body, &resp)
	if resp.Status != realtime.StatusDisconnected {
		t.Errorf("initial = %s", body)
	}

	code, body := ts.do(t, http.MethodPost, "/api/session/toggle", nil)
	json.Unmarshal(body, &resp)
	if code != http.StatusOK || resp.Status != realtime.StatusConnected || resp.SessionID != "sess-1" {
		t.Errorf("toggle on = %d %s", code, body)
	}

	code, body = ts.do(t, http.MethodPost, "/api/session/toggle", nil)
	json.Unmarshal(body, &resp)
	if code != http.StatusOK || resp.Status != realtime.StatusDisconnected {
		t.Errorf("toggle off = %d %s", code, body)
	}

	ts.session.toggleErr = errors.New("dial refused")
	code, body = ts.do(t, http.MethodPost, "/api/session/toggle", nil)
	json.Unmarshal(body, &resp)
	if code != http.StatusBadGateway || resp.Status != realtime.StatusError || resp.Error == "" {
		t.Errorf("toggle failure = %d %s", code, body)
	}
}

func TestSessionNotConfigured(t *testing.T) {
	r, _ := resolver.New(inference.NewMock(), widget.DefaultRegistry())
	s := store.New()
	orch, _ := orchestrator.New(r, datasource.NewFixture(), s)
	srv, err := NewServer(orch, s, widget.DefaultRegistry())
	if err != nil {
		t.Fatal(err)
	}
	resp, err := srv.App().Test(httptest.NewRequest(http.MethodGet, "/api/session", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusNotImplemented {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestEventsRequiresUpgrade(t *testing.T) {
	ts := newTestServer(t, inference.NewMock())
	code, _ := ts.do(t, http.MethodGet, "/ws/events", nil)
	if code != http.StatusUpgradeRequired {
		t.Errorf("status = %d", code)
	}
}

func TestEventsStream(t *testing.T) {
	ts := newTestServer(t, inference.NewScripted(weatherCall(), inference.TextResponse("Sunny.")))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ts.srv.Serve(ctx, ln)

	var conn *websocket.Conn
	deadline := time.Now().Add(2 * time.Second)
	for {
		conn, _, err = websocket.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/ws/events", nil)
		if err == nil || time.Now().After(deadline) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	read := func() *protocol.Message {
		t.Helper()
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		msg, err := protocol.ParseMessage(data)
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		return msg
	}

	hello := read()
	if hello.Type != protocol.TypeHello {
		t.Fatalf("first frame = %s", hello.Type)
	}
	var hd protocol.HelloData
	hello.ParseData(&hd)
	if len(hd.Tools) != 3 || hd.Session.Status != "disconnected" {
		t.Errorf("hello = %+v", hd)
	}

	ping, _ := protocol.NewPingMessage("p1")
	data, _ := ping.Bytes()
	conn.WriteMessage(websocket.TextMessage, data)
	if pong := read(); pong.Type != protocol.TypePong {
		t.Errorf("reply to ping = %s", pong.Type)
	}

	bogus, _ := protocol.NewMessage(protocol.TypeSession, nil)
	data, _ = bogus.Bytes()
	conn.WriteMessage(websocket.TextMessage, data)
	rejected := read()
	var ed protocol.ErrorData
	rejected.ParseData(&ed)
	if rejected.Type != protocol.TypeError || ed.Code != http.StatusBadRequest {
		t.Errorf("reply to session frame = %s %+v", rejected.Type, ed)
	}

	conn.WriteMessage(websocket.TextMessage, []byte("not json"))
	if garbled := read(); garbled.Type != protocol.TypeError {
		t.Errorf("reply to garbage = %s", garbled.Type)
	}

	chat, _ := protocol.NewMessage(protocol.TypeChat, protocol.ChatData{Text: "weather in Paris"})
	data, _ = chat.Bytes()
	conn.WriteMessage(websocket.TextMessage, data)

	var roles []store.Role
	var states []string
	completed := false
	for len(roles) < 2 || !completed {
		msg := read()
		switch msg.Type {
		case protocol.TypeMessage:
			var m store.Message
			msg.ParseData(&m)
			roles = append(roles, m.Role)
		case protocol.TypeTurn:
			var td protocol.TurnData
			msg.ParseData(&td)
			states = append(states, td.State)
			completed = td.State == "completed"
		}
	}
	if roles[0] != store.RoleUser || roles[1] != store.RoleAssistant {
		t.Errorf("roles = %v", roles)
	}
	if states[0] != "submitted" {
		t.Errorf("states = %v", states)
	}
}
