// Package widget declares the closed set of widgets the dashboard can render,
// the argument shape of the tool that produces each one, and the typed payloads
// handed to the presentation layer.
//
// Arguments and payloads are sealed interfaces: only the types in this package
// implement them. Consumers that must handle every payload implement Visitor,
// which makes a missing case a compile error instead of a runtime default.
package widget

// Kind identifies a widget family.
type Kind string

const (
	KindStock   Kind = "stock"
	KindWeather Kind = "weather"
	KindKanban  Kind = "kanban"
)

// Kinds returns every widget kind in declaration order.
func Kinds() []Kind {
	return []Kind{KindStock, KindWeather, KindKanban}
}

// Valid reports whether k is one of the declared kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindStock, KindWeather, KindKanban:
		return true
	}
	return false
}

func (k Kind) String() string { return string(k) }

// Tool names exposed to the model.
const (
	ToolShowStockPrice    = "showStockPrice"
	ToolShowWeather       = "showWeather"
	ToolCreateKanbanBoard = "createKanbanBoard"
)
