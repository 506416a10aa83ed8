package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2/google"
)

const providerGemini = "gemini"

// GeminiScope is the OAuth2 scope used with Application Default Credentials.
const GeminiScope = "https://www.googleapis.com/auth/generative-language"

// Gemini implements Provider for Google's generateContent API.
//
// Gemini function calls carry no ids, so Chat assigns "call_<n>" ids in
// response order. Tool results are sent back as functionResponse parts keyed
// by tool name.
type Gemini struct {
	config *Config
	http   *http.Client
	logger *slog.Logger
}

// NewGemini creates a Gemini provider. Without an API key or token source it
// falls back to Application Default Credentials.
func NewGemini(opts ...Option) (*Gemini, error) {
	cfg := DefaultConfig()
	cfg.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	cfg.Model = "gemini-2.0-flash"
	cfg.Apply(opts...)
	if err := cfg.Validate(); err != nil {
		return nil, WrapError(providerGemini, err)
	}

	if cfg.APIKey == "" && cfg.TokenSource == nil {
		ts, err := google.DefaultTokenSource(context.Background(), GeminiScope)
		if err != nil {
			return nil, WrapError(providerGemini, fmt.Errorf("%w: %v", ErrNoAPIKey, err))
		}
		cfg.TokenSource = ts
	}

	return &Gemini{
		config: cfg,
		http:   cfg.httpClient(),
		logger: cfg.Logger.With("component", "inference.gemini"),
	}, nil
}

// Chat generates a response using Gemini.
func (g *Gemini) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	start := time.Now()

	model := req.Model
	if model == "" {
		model = g.config.Model
	}

	body, err := json.Marshal(g.buildPayload(req))
	if err != nil {
		return nil, WrapError(providerGemini, err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", strings.TrimSuffix(g.config.BaseURL, "/"), model)
	if g.config.APIKey != "" {
		endpoint += "?key=" + url.QueryEscape(g.config.APIKey)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, WrapError(providerGemini, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if g.config.APIKey == "" && g.config.TokenSource != nil {
		tok, err := g.config.TokenSource.Token()
		if err != nil {
			return nil, WrapError(providerGemini, fmt.Errorf("token source: %w", err))
		}
		tok.SetAuthHeader(httpReq)
	}

	resp, err := doWithRetry(ctx, g.http, g.config, g.logger, providerGemini, httpReq, body, g.parseError)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, g.parseError(resp)
	}

	var result geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, WrapError(providerGemini, fmt.Errorf("decode response: %w", err))
	}

	if result.Error.Message != "" {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    result.Error.Message,
			Provider:   providerGemini,
		}
	}

	if len(result.Candidates) == 0 {
		return nil, WrapError(providerGemini, ErrEmptyResponse)
	}

	cand := result.Candidates[0]
	msg := Message{Role: RoleAssistant}
	var text strings.Builder
	for _, part := range cand.Content.Parts {
		if part.FunctionCall != nil {
			args := "{}"
			if len(part.FunctionCall.Args) > 0 && string(part.FunctionCall.Args) != "null" {
				args = string(part.FunctionCall.Args)
			}
			msg.ToolCalls = append(msg.ToolCalls, ToolCall{
				ID:        fmt.Sprintf("call_%d", len(msg.ToolCalls)),
				Name:      part.FunctionCall.Name,
				Arguments: args,
			})
			continue
		}
		text.WriteString(part.Text)
	}
	msg.Content = text.String()

	g.logger.Debug("chat completed",
		"model", model,
		"finish_reason", cand.FinishReason,
		"tool_calls", len(msg.ToolCalls),
		"latency_ms", time.Since(start).Milliseconds(),
	)

	return &ChatResponse{
		Message:      msg,
		FinishReason: cand.FinishReason,
		Usage: Usage{
			PromptTokens:     result.UsageMetadata.PromptTokenCount,
			CompletionTokens: result.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      result.UsageMetadata.TotalTokenCount,
		},
		Model:     model,
		LatencyMs: time.Since(start).Milliseconds(),
	}, nil
}

// Capabilities returns Gemini's capabilities.
func (g *Gemini) Capabilities() Capabilities {
	return Capabilities{Chat: true, Tools: true}
}

// Health sends a one-token request.
func (g *Gemini) Health(ctx context.Context) error {
	_, err := g.Chat(ctx, &ChatRequest{
		Messages:  []Message{NewUserMessage("ping")},
		MaxTokens: 1,
	})
	return err
}

// Close releases resources.
func (g *Gemini) Close() error {
	g.http.CloseIdleConnections()
	return nil
}

// buildPayload converts a request to Gemini's format.
func (g *Gemini) buildPayload(req *ChatRequest) map[string]any {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = g.config.MaxTokens
	}
	temp := req.Temperature
	if temp == 0 {
		temp = g.config.Temperature
	}

	payload := map[string]any{
		"contents": convertMessages(req.Messages),
		"generationConfig": map[string]any{
			"temperature":     temp,
			"maxOutputTokens": maxTokens,
		},
	}

	if req.System != "" {
		payload["systemInstruction"] = map[string]any{
			"parts": []map[string]any{{"text": req.System}},
		}
	}

	if len(req.Tools) > 0 {
		decls := make([]map[string]any, len(req.Tools))
		for i, t := range req.Tools {
			decls[i] = map[string]any{
				"name":        t.Function.Name,
				"description": t.Function.Description,
				"parameters":  geminiSchema(t.Function.Parameters),
			}
		}
		payload["tools"] = []map[string]any{{"functionDeclarations": decls}}

		if mode := geminiMode(req.ToolChoice); mode != "" {
			payload["toolConfig"] = map[string]any{
				"functionCallingConfig": map[string]any{"mode": mode},
			}
		}
	}

	return payload
}

// convertMessages maps roles to "user" and "model". Tool calls become
// functionCall parts and tool results functionResponse parts.
func convertMessages(msgs []Message) []map[string]any {
	contents := make([]map[string]any, 0, len(msgs))

	for _, msg := range msgs {
		var role string
		var parts []map[string]any

		switch msg.Role {
		case RoleAssistant:
			role = "model"
			if msg.Content != "" {
				parts = append(parts, map[string]any{"text": msg.Content})
			}
			for _, tc := range msg.ToolCalls {
				parts = append(parts, map[string]any{
					"functionCall": map[string]any{
						"name": tc.Name,
						"args": argumentsObject(tc.Arguments),
					},
				})
			}
		case RoleTool:
			role = "user"
			parts = append(parts, map[string]any{
				"functionResponse": map[string]any{
					"name":     msg.Name,
					"response": argumentsObject(msg.Content),
				},
			})
		default:
			role = "user"
			parts = append(parts, map[string]any{"text": msg.Content})
		}

		if len(parts) == 0 {
			continue
		}
		contents = append(contents, map[string]any{
			"role":  role,
			"parts": parts,
		})
	}

	return contents
}

// geminiSchemaKeys are the JSON Schema keywords the API accepts.
var geminiSchemaKeys = map[string]bool{
	"type":        true,
	"description": true,
	"properties":  true,
	"required":    true,
	"enum":        true,
	"items":       true,
	"format":      true,
	"nullable":    true,
}

// geminiSchema drops keywords Gemini rejects, such as additionalProperties.
func geminiSchema(schema map[string]any) map[string]any {
	if schema == nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}
	out := make(map[string]any, len(schema))
	for k, v := range schema {
		if !geminiSchemaKeys[k] {
			continue
		}
		switch k {
		case "properties":
			props, _ := v.(map[string]any)
			clean := make(map[string]any, len(props))
			for name, p := range props {
				if pm, ok := p.(map[string]any); ok {
					clean[name] = geminiSchema(pm)
				}
			}
			out[k] = clean
		case "items":
			if im, ok := v.(map[string]any); ok {
				out[k] = geminiSchema(im)
			}
		default:
			out[k] = v
		}
	}
	return out
}

func geminiMode(choice string) string {
	switch choice {
	case ToolChoiceAuto:
		return "AUTO"
	case "none":
		return "NONE"
	case "required":
		return "ANY"
	}
	return ""
}

// parseError reads and parses an error response.
func (g *Gemini) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"error"`
	}

	message := string(body)
	code := ""
	if json.Unmarshal(body, &errResp) == nil && errResp.Error.Message != "" {
		message = errResp.Error.Message
		code = errResp.Error.Status
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    message,
		Code:       code,
		Provider:   providerGemini,
	}
}

// geminiResponse is the Gemini API response format.
type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text         string `json:"text"`
				FunctionCall *struct {
					Name string          `json:"name"`
					Args json.RawMessage `json:"args"`
				} `json:"functionCall"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
	Error struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// Verify Gemini implements Provider at compile time.
var _ Provider = (*Gemini)(nil)
