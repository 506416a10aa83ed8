package inference

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
)

func TestGeminiChatToolCalls(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/models/gemini-2.0-flash:generateContent") {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "g-key" {
			t.Errorf("key = %q", r.URL.Query().Get("key"))
		}

		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)

		sys := body["systemInstruction"].(map[string]any)["parts"].([]any)[0].(map[string]any)
		if sys["text"] != "be a dashboard" {
			t.Errorf("systemInstruction = %v", sys)
		}
		tools := body["tools"].([]any)[0].(map[string]any)
		decls := tools["functionDeclarations"].([]any)
		params := decls[0].(map[string]any)["parameters"].(map[string]any)
		if _, ok := params["additionalProperties"]; ok {
			t.Error("additionalProperties should be stripped")
		}
		if params["type"] != "object" {
			t.Errorf("parameters = %v", params)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{{
				"content": map[string]any{
					"role": "model",
					"parts": []map[string]any{
						{"text": "Sure."},
						{"functionCall": map[string]any{"name": "showStockPrice", "args": map[string]any{"symbol": "TSLA"}}},
						{"functionCall": map[string]any{"name": "showWeather", "args": map[string]any{"location": "Oslo"}}},
					},
				},
				"finishReason": "STOP",
			}},
			"usageMetadata": map[string]int{"promptTokenCount": 7, "candidatesTokenCount": 3, "totalTokenCount": 10},
		})
	}))
	defer server.Close()

	g, err := NewGemini(WithBaseURL(server.URL), WithAPIKey("g-key"))
	if err != nil {
		t.Fatalf("NewGemini failed: %v", err)
	}
	defer g.Close()

	tool := stockTool()
	tool.Function.Parameters["additionalProperties"] = false

	resp, err := g.Chat(context.Background(), &ChatRequest{
		System:     "be a dashboard",
		Messages:   []Message{NewUserMessage("TSLA and Oslo weather")},
		Tools:      []Tool{tool},
		ToolChoice: ToolChoiceAuto,
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}

	if resp.Message.Content != "Sure." {
		t.Errorf("content = %q", resp.Message.Content)
	}
	calls := resp.Message.ToolCalls
	if len(calls) != 2 {
		t.Fatalf("Expected 2 tool calls, got %d", len(calls))
	}
	if calls[0].ID != "call_0" || calls[1].ID != "call_1" {
		t.Errorf("ids = %s, %s", calls[0].ID, calls[1].ID)
	}
	if calls[0].Arguments != `{"symbol":"TSLA"}` {
		t.Errorf("arguments = %s", calls[0].Arguments)
	}
	if resp.Usage.TotalTokens != 10 {
		t.Errorf("usage = %+v", resp.Usage)
	}
}

func TestGeminiConvertMessages(t *testing.T) {
	contents := convertMessages([]Message{
		NewUserMessage("board please"),
		NewToolCallMessage("", ToolCall{ID: "call_0", Name: "createKanbanBoard", Arguments: `{"title":"Q3"}`}),
		NewToolMessage("call_0", "createKanbanBoard", `{"title":"Q3","columns":[]}`),
	})
	if len(contents) != 3 {
		t.Fatalf("contents = %d", len(contents))
	}
	if contents[1]["role"] != "model" {
		t.Errorf("assistant role = %v", contents[1]["role"])
	}
	part := contents[2]["parts"].([]map[string]any)[0]
	fr := part["functionResponse"].(map[string]any)
	if fr["name"] != "createKanbanBoard" {
		t.Errorf("functionResponse = %v", fr)
	}
}

func TestGeminiError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "overloaded", "status": "UNAVAILABLE"},
		})
	}))
	defer server.Close()

	g, _ := NewGemini(WithBaseURL(server.URL), WithAPIKey("k"))
	_, err := g.Chat(context.Background(), &ChatRequest{Messages: []Message{NewUserMessage("x")}})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want APIError", err)
	}
	if apiErr.Provider != "gemini" || apiErr.Code != "UNAVAILABLE" || !apiErr.IsServerError() {
		t.Errorf("apiErr = %+v", apiErr)
	}
}

func TestGeminiNoCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", filepath.Join(t.TempDir(), "missing.json"))

	_, err := NewGemini()
	if !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("err = %v, want ErrNoAPIKey", err)
	}
}

func TestGeminiSchema(t *testing.T) {
	in := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"symbol": map[string]any{"type": "string", "minLength": 1, "description": "ticker"},
		},
		"required": []string{"symbol"},
	}
	out := geminiSchema(in)
	if _, ok := out["additionalProperties"]; ok {
		t.Error("additionalProperties kept")
	}
	sym := out["properties"].(map[string]any)["symbol"].(map[string]any)
	if _, ok := sym["minLength"]; ok {
		t.Error("minLength kept")
	}
	if sym["description"] != "ticker" {
		t.Errorf("symbol = %v", sym)
	}
}
