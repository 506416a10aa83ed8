// Package resolver asks the model whether a turn needs a tool and validates
// the invocations it requests.
//
// Resolve performs the first round trip and returns the assistant text plus
// one Invocation per requested tool call, in request order. Every invocation
// is validated independently: an unknown tool name or arguments that fail the
// tool's JSON Schema mark that invocation only, never its siblings or the
// turn. WrapUp performs the optional second round trip with the tool results.
package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/teslashibe/go-genui/pkg/fault"
	"github.com/teslashibe/go-genui/pkg/inference"
	"github.com/teslashibe/go-genui/pkg/widget"
)

// DefaultWrapUpSystem is the system instruction of the wrap-up round trip.
const DefaultWrapUpSystem = "You represent a futuristic dashboard OS that brings data to life through interactive visualizations."

// Sentinel errors for the resolver.
var (
	// ErrNoProvider is returned by New without a provider.
	ErrNoProvider = errors.New("resolver: provider required")

	// ErrNoRegistry is returned by New without a registry.
	ErrNoRegistry = errors.New("resolver: registry required")

	// ErrInvalidJSON marks arguments that are not a JSON object.
	ErrInvalidJSON = errors.New("resolver: arguments are not a JSON object")

	// ErrSchemaViolation marks arguments that fail the tool's schema.
	ErrSchemaViolation = errors.New("resolver: arguments violate schema")
)

// Request is the input of one round trip.
type Request struct {
	// System is the system guidance text.
	System string

	// History is the ordered conversation, oldest first.
	History []inference.Message
}

// Invocation is one validated tool call request.
type Invocation struct {
	// Call is the request as the model sent it.
	Call inference.ToolCall

	// Schema is the matching tool; zero when the tool is unknown.
	Schema widget.ToolSchema

	// Args are the typed arguments when validation passed.
	Args widget.Args

	// Err is a fault.UnknownTool or fault.MalformedArguments error.
	Err error
}

// OK reports whether the invocation can be dispatched.
func (inv Invocation) OK() bool {
	return inv.Err == nil && inv.Args != nil
}

// RawArguments returns the arguments as JSON, "{}" when the model sent none.
func (inv Invocation) RawArguments() json.RawMessage {
	if strings.TrimSpace(inv.Call.Arguments) == "" {
		return json.RawMessage("{}")
	}
	return json.RawMessage(inv.Call.Arguments)
}

// Resolution is the outcome of the first round trip.
type Resolution struct {
	// Text is the assistant text, possibly empty when tools were requested.
	Text string

	// Invocations are the requested tool calls in request order.
	Invocations []Invocation

	// Assistant is the assistant turn as returned, replayed by WrapUp.
	Assistant inference.Message
}

// NeedsTools reports whether the model requested at least one tool.
func (r *Resolution) NeedsTools() bool {
	return r != nil && len(r.Invocations) > 0
}

// Result is the outcome of one invocation, fed back by WrapUp.
type Result struct {
	CallID  string
	Tool    string
	Payload widget.Payload
}

// Resolver talks to the provider on behalf of the orchestrator and the
// realtime manager. It is safe for concurrent use.
type Resolver struct {
	provider   inference.Provider
	registry   *widget.Registry
	tools      []inference.Tool
	validators map[string]*jsonschema.Schema
	cfg        *Config
	logger     *slog.Logger
}

// New creates a resolver and compiles one validator per registered tool.
func New(provider inference.Provider, registry *widget.Registry, opts ...Option) (*Resolver, error) {
	if provider == nil {
		return nil, ErrNoProvider
	}
	if registry == nil {
		return nil, ErrNoRegistry
	}
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	r := &Resolver{
		provider:   provider,
		registry:   registry,
		validators: make(map[string]*jsonschema.Schema, registry.Len()),
		cfg:        cfg,
		logger:     cfg.Logger.With("component", "resolver"),
	}

	for _, s := range registry.DescribeAll() {
		v, err := compileSchema(s)
		if err != nil {
			return nil, err
		}
		r.validators[s.Name] = v
		r.tools = append(r.tools, inference.NewTool(s.Name, s.Description, s.Parameters))
	}

	return r, nil
}

func compileSchema(s widget.ToolSchema) (*jsonschema.Schema, error) {
	url := s.Name + ".json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, strings.NewReader(string(s.Raw))); err != nil {
		return nil, fmt.Errorf("resolver: add schema %s: %w", s.Name, err)
	}
	schema, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("resolver: compile schema %s: %w", s.Name, err)
	}
	return schema, nil
}

// Tools returns the tool declarations sent to the provider.
func (r *Resolver) Tools() []inference.Tool {
	out := make([]inference.Tool, len(r.tools))
	copy(out, r.tools)
	return out
}

// Registry returns the registry the resolver validates against.
func (r *Resolver) Registry() *widget.Registry {
	return r.registry
}

// Resolve performs the first round trip. Any provider failure is returned as
// a fault.ProviderUnavailable error; invocation-level problems are reported on
// the invocations themselves.
func (r *Resolver) Resolve(ctx context.Context, req Request) (*Resolution, error) {
	resp, err := r.provider.Chat(ctx, &inference.ChatRequest{
		System:      req.System,
		Messages:    req.History,
		Tools:       r.tools,
		ToolChoice:  r.cfg.ToolChoice,
		Temperature: r.cfg.Temperature,
	})
	if err != nil {
		return nil, fault.New(fault.ProviderUnavailable, "resolver.resolve", err)
	}
	if resp == nil {
		return nil, fault.New(fault.ProviderUnavailable, "resolver.resolve", inference.ErrEmptyResponse)
	}

	assistant := resp.Message
	assistant.Role = inference.RoleAssistant

	res := &Resolution{Text: strings.TrimSpace(assistant.Content)}
	seen := make(map[string]bool, len(assistant.ToolCalls))
	for i, call := range assistant.ToolCalls {
		if call.ID == "" || seen[call.ID] {
			call.ID = fmt.Sprintf("call_%d", i)
			assistant.ToolCalls[i].ID = call.ID
		}
		seen[call.ID] = true

		inv := r.ValidateCall(call)
		if inv.Err != nil {
			r.logger.Warn("invocation rejected",
				"tool", call.Name,
				"call_id", call.ID,
				"kind", fault.KindOf(inv.Err),
				"error", inv.Err,
			)
		}
		res.Invocations = append(res.Invocations, inv)
	}
	res.Assistant = assistant

	r.logger.Debug("resolved",
		"invocations", len(res.Invocations),
		"text_len", len(res.Text),
		"latency_ms", resp.LatencyMs,
	)
	return res, nil
}

// ValidateCall checks one tool call against the registry: the name must be
// registered and the arguments must be a JSON object satisfying the tool's
// schema. Empty arguments are treated as {}.
func (r *Resolver) ValidateCall(call inference.ToolCall) Invocation {
	inv := Invocation{Call: call}

	schema, err := r.registry.Lookup(call.Name)
	if err != nil {
		inv.Err = withCallID(err, call.Name, call.ID)
		return inv
	}
	inv.Schema = schema

	raw := inv.RawArguments()
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		inv.Err = malformed(call, fmt.Errorf("%w: %v", ErrInvalidJSON, err))
		return inv
	}
	if _, ok := doc.(map[string]any); !ok {
		inv.Err = malformed(call, ErrInvalidJSON)
		return inv
	}

	if v := r.validators[call.Name]; v != nil {
		if err := v.Validate(doc); err != nil {
			inv.Err = malformed(call, fmt.Errorf("%w: %s", ErrSchemaViolation, describe(err)))
			return inv
		}
	}

	args, err := schema.DecodeArgs(raw)
	if err != nil {
		inv.Err = withCallID(err, call.Name, call.ID)
		return inv
	}
	inv.Args = args
	return inv
}

// WrapUp performs the second round trip: the history, the assistant turn that
// requested the tools, and one tool message per invocation. Failed
// invocations are answered with their ErrorData so the provider sees a reply
// to every call id.
func (r *Resolver) WrapUp(ctx context.Context, req Request, res *Resolution, results []Result) (string, error) {
	if !res.NeedsTools() {
		return res.Text, nil
	}

	byID := make(map[string]Result, len(results))
	for _, result := range results {
		byID[result.CallID] = result
	}

	msgs := make([]inference.Message, 0, len(req.History)+1+len(res.Invocations))
	msgs = append(msgs, req.History...)
	msgs = append(msgs, res.Assistant)
	for _, inv := range res.Invocations {
		content := `{"error":"no result"}`
		if result, ok := byID[inv.Call.ID]; ok && result.Payload != nil {
			if b, err := json.Marshal(result.Payload); err == nil {
				content = string(b)
			}
		}
		msgs = append(msgs, inference.NewToolMessage(inv.Call.ID, inv.Call.Name, content))
	}

	resp, err := r.provider.Chat(ctx, &inference.ChatRequest{
		System:      r.cfg.WrapUpSystem,
		Messages:    msgs,
		Temperature: r.cfg.Temperature,
	})
	if err != nil {
		return "", fault.New(fault.ProviderUnavailable, "resolver.wrapup", err)
	}
	if resp == nil {
		return "", fault.New(fault.ProviderUnavailable, "resolver.wrapup", inference.ErrEmptyResponse)
	}
	return strings.TrimSpace(resp.Message.Content), nil
}

func malformed(call inference.ToolCall, err error) error {
	return fault.New(fault.MalformedArguments, "resolver.validate", err).ForCall(call.Name, call.ID)
}

// withCallID stamps the call id on a classified error.
func withCallID(err error, tool, callID string) error {
	var fe *fault.Error
	if errors.As(err, &fe) {
		cp := *fe
		return cp.ForCall(tool, callID)
	}
	return err
}

// describe flattens a schema validation error into "location: message" pairs.
func describe(err error) string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err.Error()
	}
	var msgs []string
	collect(ve, &msgs)
	if len(msgs) == 0 {
		return ve.Message
	}
	return strings.Join(msgs, "; ")
}

func collect(err *jsonschema.ValidationError, msgs *[]string) {
	if len(err.Causes) == 0 {
		loc := err.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		*msgs = append(*msgs, loc+": "+err.Message)
	}
	for _, cause := range err.Causes {
		collect(cause, msgs)
	}
}
