package widget

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/teslashibe/go-genui/pkg/fault"
)

// Sentinel errors for the registry.
var (
	// ErrUnknownTool is wrapped in a fault.UnknownTool error by Lookup.
	ErrUnknownTool = errors.New("widget: unknown tool")

	// ErrDuplicateTool is returned when two schemas share a name.
	ErrDuplicateTool = errors.New("widget: duplicate tool name")

	// ErrInvalidSchema is returned for schemas missing a name or kind.
	ErrInvalidSchema = errors.New("widget: invalid tool schema")
)

// Registry is the immutable set of tool schemas known at startup.
// It is safe for concurrent use.
type Registry struct {
	schemas []ToolSchema
	byName  map[string]int
}

// NewRegistry builds a registry, rejecting duplicate names.
func NewRegistry(schemas ...ToolSchema) (*Registry, error) {
	r := &Registry{
		schemas: make([]ToolSchema, 0, len(schemas)),
		byName:  make(map[string]int, len(schemas)),
	}
	for _, s := range schemas {
		if s.Name == "" || !s.Kind.Valid() {
			return nil, fmt.Errorf("%w: name=%q kind=%q", ErrInvalidSchema, s.Name, s.Kind)
		}
		if _, exists := r.byName[s.Name]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTool, s.Name)
		}
		r.byName[s.Name] = len(r.schemas)
		r.schemas = append(r.schemas, s)
	}
	return r, nil
}

// DefaultSchemas returns the dashboard's three tools.
func DefaultSchemas() []ToolSchema {
	return []ToolSchema{
		MustDefine[StockArgs](ToolShowStockPrice,
			"Displays a stock price card with a chart for a given symbol."),
		MustDefine[WeatherArgs](ToolShowWeather,
			"Displays a weather widget for a specific location."),
		MustDefine[KanbanArgs](ToolCreateKanbanBoard,
			"Creates a Kanban board for task management."),
	}
}

// DefaultRegistry returns a registry of DefaultSchemas.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(DefaultSchemas()...)
	if err != nil {
		panic(err)
	}
	return r
}

// DescribeAll returns every schema in registration order.
func (r *Registry) DescribeAll() []ToolSchema {
	out := make([]ToolSchema, len(r.schemas))
	copy(out, r.schemas)
	return out
}

// Names returns the tool names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.schemas))
	for i, s := range r.schemas {
		names[i] = s.Name
	}
	return names
}

// Len returns the number of tools.
func (r *Registry) Len() int {
	return len(r.schemas)
}

// Lookup finds a schema by tool name.
func (r *Registry) Lookup(name string) (ToolSchema, error) {
	i, ok := r.byName[name]
	if !ok {
		return ToolSchema{}, fault.New(fault.UnknownTool, "widget.lookup",
			fmt.Errorf("%w: %q", ErrUnknownTool, name)).ForCall(name, "")
	}
	return r.schemas[i], nil
}

// ForKind returns the schema producing widgets of kind k.
func (r *Registry) ForKind(k Kind) (ToolSchema, bool) {
	for _, s := range r.schemas {
		if s.Kind == k {
			return s, true
		}
	}
	return ToolSchema{}, false
}

// DecodeArgs looks up name and decodes raw into its typed arguments.
func (r *Registry) DecodeArgs(name string, raw json.RawMessage) (Args, error) {
	s, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}
	return s.DecodeArgs(raw)
}
