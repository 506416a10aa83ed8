package widget

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/invopop/jsonschema"

	"github.com/teslashibe/go-genui/pkg/fault"
)

// Field is one entry of a tool's argument shape.
type Field struct {
	Name        string `json:"name" yaml:"name"`
	Type        string `json:"type" yaml:"type"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Required    bool   `json:"required" yaml:"required"`
}

// ToolSchema describes one tool: its dispatch name, the widget it produces and
// the shape of its arguments.
type ToolSchema struct {
	Name        string `json:"name" yaml:"name"`
	Kind        Kind   `json:"kind" yaml:"kind"`
	Description string `json:"description" yaml:"description"`

	// Fields lists the argument shape in declaration order.
	Fields []Field `json:"fields" yaml:"fields"`

	// Parameters is the JSON Schema of the arguments as a generic map, the
	// form tool declarations are sent to providers in.
	Parameters map[string]any `json:"parameters" yaml:"-"`

	// Raw is the same JSON Schema document, for validators.
	Raw json.RawMessage `json:"-" yaml:"-"`

	decode func(json.RawMessage) (Args, error)
}

// Define builds the schema of a tool whose arguments decode into A.
// The argument shape is reflected from A's struct tags.
func Define[A Args](name, description string) (ToolSchema, error) {
	var zero A

	r := &jsonschema.Reflector{
		Anonymous:      true,
		ExpandedStruct: true,
		DoNotReference: true,
	}
	s := r.Reflect(&zero)
	s.Version = ""

	raw, err := json.Marshal(s)
	if err != nil {
		return ToolSchema{}, fmt.Errorf("widget: reflect %s: %w", name, err)
	}
	var params map[string]any
	if err := json.Unmarshal(raw, &params); err != nil {
		return ToolSchema{}, fmt.Errorf("widget: reflect %s: %w", name, err)
	}

	var fields []Field
	if s.Properties != nil {
		for pair := s.Properties.Oldest(); pair != nil; pair = pair.Next() {
			fields = append(fields, Field{
				Name:        pair.Key,
				Type:        pair.Value.Type,
				Description: pair.Value.Description,
				Required:    slices.Contains(s.Required, pair.Key),
			})
		}
	}

	return ToolSchema{
		Name:        name,
		Kind:        zero.Kind(),
		Description: description,
		Fields:      fields,
		Parameters:  params,
		Raw:         raw,
		decode: func(data json.RawMessage) (Args, error) {
			var a A
			if err := json.Unmarshal(data, &a); err != nil {
				return nil, err
			}
			return a, nil
		},
	}, nil
}

// MustDefine is Define for package-level tables; it panics on error.
func MustDefine[A Args](name, description string) ToolSchema {
	s, err := Define[A](name, description)
	if err != nil {
		panic(err)
	}
	return s
}

// DecodeArgs decodes raw JSON arguments into the tool's typed Args. It does not
// apply the schema's constraints; see the resolver for full validation.
func (s ToolSchema) DecodeArgs(raw json.RawMessage) (Args, error) {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	if s.decode == nil {
		return nil, fault.Newf(fault.MalformedArguments, "widget.decode", "tool %s has no decoder", s.Name).ForCall(s.Name, "")
	}
	a, err := s.decode(raw)
	if err != nil {
		return nil, fault.New(fault.MalformedArguments, "widget.decode", err).ForCall(s.Name, "")
	}
	return a, nil
}

// RequiredFields returns the names of required arguments.
func (s ToolSchema) RequiredFields() []string {
	var out []string
	for _, f := range s.Fields {
		if f.Required {
			out = append(out, f.Name)
		}
	}
	return out
}
