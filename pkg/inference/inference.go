// Package inference provides a uniform chat interface over model providers
// that support function calling.
//
// One round trip takes the conversation, a system instruction and the tool
// declarations, and returns either assistant text or one or more tool calls.
// Two backends are provided: Client for OpenAI-compatible chat completions and
// Gemini for Google's generateContent API. Chain falls back across providers
// and Mock records calls for tests.
//
// Example usage:
//
//	client, _ := inference.NewClient(
//	    inference.WithAPIKey(os.Getenv("OPENAI_API_KEY")),
//	    inference.WithModel("gpt-4o-mini"),
//	)
//	defer client.Close()
//
//	resp, _ := client.Chat(ctx, &inference.ChatRequest{
//	    System:     "You are a helpful dashboard assistant.",
//	    Messages:   []inference.Message{inference.NewUserMessage("Show me AAPL")},
//	    Tools:      tools,
//	    ToolChoice: inference.ToolChoiceAuto,
//	})
package inference

import "context"

// ToolChoiceAuto lets the model decide whether to call a tool.
const ToolChoiceAuto = "auto"

// Provider is the chat interface every backend implements.
type Provider interface {
	// Chat performs one round trip.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// Capabilities returns what features this provider supports.
	Capabilities() Capabilities

	// Health checks provider connectivity and credentials.
	Health(ctx context.Context) error

	// Close releases any resources held by the provider.
	Close() error
}

// Capabilities describes what features a provider supports.
type Capabilities struct {
	Chat  bool // Supports chat completions
	Tools bool // Supports function calling
}

// ChatRequest for chat completions.
type ChatRequest struct {
	// System is the system instruction. Providers place it where their API
	// expects it.
	System string

	// Messages is the conversation history.
	Messages []Message

	// Model overrides the default model.
	Model string

	// MaxTokens limits the response length.
	MaxTokens int

	// Temperature controls randomness (0.0-2.0).
	Temperature float64

	// Tools available for the model to call.
	Tools []Tool

	// ToolChoice controls tool use: "auto", "none", "required".
	ToolChoice string
}

// ChatResponse from chat completion.
type ChatResponse struct {
	// Message is the assistant's response, including any tool calls.
	Message Message

	// FinishReason indicates why generation stopped.
	FinishReason string

	// Usage tracks token consumption.
	Usage Usage

	// Model used for generation.
	Model string

	// LatencyMs is the response time in milliseconds.
	LatencyMs int64
}

// HasToolCalls reports whether the model asked for at least one tool.
func (r *ChatResponse) HasToolCalls() bool {
	return r != nil && len(r.Message.ToolCalls) > 0
}

// Usage tracks token consumption.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}
