package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/teslashibe/go-genui/pkg/fault"
	"github.com/teslashibe/go-genui/pkg/inference"
	"github.com/teslashibe/go-genui/pkg/widget"
)

func newResolver(t *testing.T, p inference.Provider) *Resolver {
	t.Helper()
	r, err := New(p, widget.DefaultRegistry())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return r
}

func call(id, name, args string) inference.ToolCall {
	return inference.ToolCall{ID: id, Name: name, Arguments: args}
}

func TestNewRequiresDependencies(t *testing.T) {
	if _, err := New(nil, widget.DefaultRegistry()); !errors.Is(err, ErrNoProvider) {
		t.Errorf("nil provider error = %v", err)
	}
	if _, err := New(inference.NewMock(), nil); !errors.Is(err, ErrNoRegistry) {
		t.Errorf("nil registry error = %v", err)
	}
}

func TestResolveTextOnly(t *testing.T) {
	mock := inference.NewScripted(inference.TextResponse("  Hello there. "))
	r := newResolver(t, mock)

	res, err := r.Resolve(context.Background(), Request{
		System:  "be a dashboard",
		History: []inference.Message{inference.NewUserMessage("hi")},
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.NeedsTools() {
		t.Error("NeedsTools() = true, want false")
	}
	if res.Text != "Hello there." {
		t.Errorf("Text = %q", res.Text)
	}

	req := mock.Requests()[0]
	if req.System != "be a dashboard" {
		t.Errorf("System = %q", req.System)
	}
	if req.ToolChoice != inference.ToolChoiceAuto {
		t.Errorf("ToolChoice = %q", req.ToolChoice)
	}
	if len(req.Tools) != 3 || req.Tools[0].Function.Name != widget.ToolShowStockPrice {
		t.Errorf("Tools = %+v", req.Tools)
	}
}

func TestResolvePartialFailure(t *testing.T) {
	mock := inference.NewScripted(inference.ToolCallResponse("",
		call("a", widget.ToolShowStockPrice, `{"symbol":"AAPL"}`),
		call("b", "showCrystalBall", `{}`),
		call("c", widget.ToolShowWeather, `{"location":`),
		call("d", widget.ToolShowStockPrice, `{}`),
		call("e", widget.ToolCreateKanbanBoard, `{"title":"Launch"}`),
	))
	r := newResolver(t, mock)

	res, err := r.Resolve(context.Background(), Request{
		History: []inference.Message{inference.NewUserMessage("everything")},
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(res.Invocations) != 5 {
		t.Fatalf("Invocations = %d, want 5", len(res.Invocations))
	}

	tests := []struct {
		id   string
		ok   bool
		kind fault.Kind
	}{
		{"a", true, fault.KindUnknown},
		{"b", false, fault.UnknownTool},
		{"c", false, fault.MalformedArguments},
		{"d", false, fault.MalformedArguments},
		{"e", true, fault.KindUnknown},
	}
	for i, tt := range tests {
		inv := res.Invocations[i]
		if inv.Call.ID != tt.id {
			t.Errorf("invocation %d id = %q, want %q", i, inv.Call.ID, tt.id)
		}
		if inv.OK() != tt.ok {
			t.Errorf("invocation %s OK() = %v, want %v (err %v)", tt.id, inv.OK(), tt.ok, inv.Err)
		}
		if got := fault.KindOf(inv.Err); got != tt.kind {
			t.Errorf("invocation %s kind = %v, want %v", tt.id, got, tt.kind)
		}
	}

	if a, ok := res.Invocations[0].Args.(widget.StockArgs); !ok || a.Symbol != "AAPL" {
		t.Errorf("Args = %#v", res.Invocations[0].Args)
	}

	var fe *fault.Error
	if !errors.As(res.Invocations[3].Err, &fe) || fe.CallID != "d" || fe.Tool != widget.ToolShowStockPrice {
		t.Errorf("malformed error = %+v", fe)
	}
	if !errors.Is(res.Invocations[3].Err, ErrSchemaViolation) {
		t.Errorf("missing symbol should be a schema violation, got %v", res.Invocations[3].Err)
	}
	if !errors.Is(res.Invocations[1].Err, widget.ErrUnknownTool) {
		t.Errorf("unknown tool error = %v", res.Invocations[1].Err)
	}
}

func TestResolveSynthesizesMissingIDs(t *testing.T) {
	mock := inference.NewScripted(inference.ToolCallResponse("",
		call("", widget.ToolShowWeather, `{"location":"Oslo"}`),
		call("", widget.ToolShowWeather, `{"location":"Rome"}`),
	))
	r := newResolver(t, mock)

	res, err := r.Resolve(context.Background(), Request{})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.Invocations[0].Call.ID != "call_0" || res.Invocations[1].Call.ID != "call_1" {
		t.Errorf("ids = %q, %q", res.Invocations[0].Call.ID, res.Invocations[1].Call.ID)
	}
	if res.Assistant.ToolCalls[1].ID != "call_1" {
		t.Errorf("assistant ids not rewritten: %+v", res.Assistant.ToolCalls)
	}
}

func TestResolveProviderUnavailable(t *testing.T) {
	r := newResolver(t, inference.WithError(&inference.APIError{StatusCode: 500, Message: "boom", Provider: "openai"}))

	_, err := r.Resolve(context.Background(), Request{})
	if fault.KindOf(err) != fault.ProviderUnavailable {
		t.Fatalf("kind = %v, want ProviderUnavailable", fault.KindOf(err))
	}
	var apiErr *inference.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != 500 {
		t.Errorf("APIError not preserved: %v", err)
	}
}

func TestValidateCall(t *testing.T) {
	r := newResolver(t, inference.NewMock())

	tests := []struct {
		name string
		call inference.ToolCall
		kind fault.Kind
	}{
		{"valid", call("1", widget.ToolShowWeather, `{"location":"Paris"}`), fault.KindUnknown},
		{"empty symbol", call("2", widget.ToolShowStockPrice, `{"symbol":""}`), fault.MalformedArguments},
		{"blank symbol", call("2b", widget.ToolShowStockPrice, `{"symbol":"   "}`), fault.MalformedArguments},
		{"blank location", call("2c", widget.ToolShowWeather, `{"location":"\t\n"}`), fault.MalformedArguments},
		{"blank title", call("2d", widget.ToolCreateKanbanBoard, `{"title":" "}`), fault.MalformedArguments},
		{"wrong type", call("3", widget.ToolShowStockPrice, `{"symbol":42}`), fault.MalformedArguments},
		{"extra field", call("4", widget.ToolShowWeather, `{"location":"x","units":"C"}`), fault.MalformedArguments},
		{"array", call("5", widget.ToolShowWeather, `[]`), fault.MalformedArguments},
		{"empty is object", call("6", widget.ToolCreateKanbanBoard, ``), fault.MalformedArguments},
		{"unknown", call("7", "nope", `{}`), fault.UnknownTool},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := r.ValidateCall(tt.call)
			if got := fault.KindOf(inv.Err); got != tt.kind {
				t.Errorf("kind = %v, want %v (err %v)", got, tt.kind, inv.Err)
			}
		})
	}
}

func TestRawArguments(t *testing.T) {
	inv := Invocation{Call: call("1", "x", "  ")}
	if string(inv.RawArguments()) != "{}" {
		t.Errorf("RawArguments() = %s", inv.RawArguments())
	}
}

func TestWrapUp(t *testing.T) {
	mock := inference.NewScripted(
		inference.ToolCallResponse("",
			call("a", widget.ToolShowStockPrice, `{"symbol":"AAPL"}`),
			call("b", "nope", `{}`),
		),
		inference.TextResponse("Here is AAPL."),
	)
	r := newResolver(t, mock)
	ctx := context.Background()
	req := Request{History: []inference.Message{inference.NewUserMessage("AAPL please")}}

	res, err := r.Resolve(ctx, req)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	text, err := r.WrapUp(ctx, req, res, []Result{
		{CallID: "a", Tool: widget.ToolShowStockPrice, Payload: &widget.StockData{Symbol: "AAPL", Price: 176}},
		{CallID: "b", Tool: "nope", Payload: &widget.ErrorData{Tool: "nope", Kind: "unknown_tool", Message: "no such tool"}},
	})
	if err != nil {
		t.Fatalf("WrapUp() error = %v", err)
	}
	if text != "Here is AAPL." {
		t.Errorf("text = %q", text)
	}

	wrap := mock.Requests()[1]
	if wrap.System != DefaultWrapUpSystem {
		t.Errorf("System = %q", wrap.System)
	}
	if len(wrap.Tools) != 0 {
		t.Error("wrap-up should not offer tools")
	}
	if len(wrap.Messages) != 4 {
		t.Fatalf("Messages = %d, want 4", len(wrap.Messages))
	}
	if wrap.Messages[1].Role != inference.RoleAssistant || len(wrap.Messages[1].ToolCalls) != 2 {
		t.Errorf("assistant turn = %+v", wrap.Messages[1])
	}
	toolMsg := wrap.Messages[2]
	if toolMsg.Role != inference.RoleTool || toolMsg.ToolCallID != "a" {
		t.Errorf("tool message = %+v", toolMsg)
	}
	var stock widget.StockData
	if err := json.Unmarshal([]byte(toolMsg.Content), &stock); err != nil || stock.Price != 176 {
		t.Errorf("tool content = %s", toolMsg.Content)
	}
}

func TestWrapUpFailure(t *testing.T) {
	mock := inference.NewScripted(inference.ToolCallResponse("", call("a", widget.ToolShowWeather, `{"location":"Oslo"}`)))
	r := newResolver(t, mock)
	ctx := context.Background()

	res, _ := r.Resolve(ctx, Request{})
	_, err := r.WrapUp(ctx, Request{}, res, nil)
	if fault.KindOf(err) != fault.ProviderUnavailable {
		t.Errorf("kind = %v, want ProviderUnavailable", fault.KindOf(err))
	}
}

func TestWrapUpWithoutTools(t *testing.T) {
	mock := inference.NewMock()
	r := newResolver(t, mock)

	text, err := r.WrapUp(context.Background(), Request{}, &Resolution{Text: "plain"}, nil)
	if err != nil || text != "plain" {
		t.Errorf("WrapUp() = %q, %v", text, err)
	}
	if mock.CallCount("Chat") != 0 {
		t.Error("no round trip expected without tools")
	}
}
