package widget

import (
	"errors"
	"fmt"
)

// TypeError tags an ErrorData payload.
const TypeError = "error"

// Payload is the typed result of a tool invocation.
type Payload interface {
	// Type is the tag used on the wire: a Kind, or "error".
	Type() string

	// Accept dispatches to the matching Visitor method.
	Accept(v Visitor) error

	sealedPayload()
}

// Visitor handles every concrete payload.
type Visitor interface {
	VisitStock(*StockData) error
	VisitWeather(*WeatherData) error
	VisitKanban(*KanbanData) error
	VisitError(*ErrorData) error
}

// PricePoint is one sample of intraday history.
type PricePoint struct {
	Time  string  `json:"time"`
	Value float64 `json:"value"`
}

// StockData is the payload of a stock card.
type StockData struct {
	Symbol    string       `json:"symbol"`
	Price     float64      `json:"price"`
	Delta     float64      `json:"delta"` // percent change
	History   []PricePoint `json:"history"`
	Open      float64      `json:"open"`
	High      float64      `json:"high"`
	Low       float64      `json:"low"`
	Volume    string       `json:"volume"`
	MarketCap string       `json:"marketCap"`
}

// Condition is a weather condition.
type Condition string

const (
	Sunny  Condition = "Sunny"
	Cloudy Condition = "Cloudy"
	Rainy  Condition = "Rainy"
	Snowy  Condition = "Snowy"
)

// Conditions returns the fixed condition set.
func Conditions() []Condition {
	return []Condition{Sunny, Cloudy, Rainy, Snowy}
}

// Valid reports whether c is in the fixed set.
func (c Condition) Valid() bool {
	switch c {
	case Sunny, Cloudy, Rainy, Snowy:
		return true
	}
	return false
}

// ForecastDay is one day of the short forecast.
type ForecastDay struct {
	Day       string    `json:"day"`
	Temp      int       `json:"temp"`
	Condition Condition `json:"condition"`
}

// WeatherData is the payload of a weather card. Temperatures are Fahrenheit.
type WeatherData struct {
	Location    string        `json:"location"`
	Temperature int           `json:"temperature"`
	Condition   Condition     `json:"condition"`
	Humidity    int           `json:"humidity"`
	WindSpeed   int           `json:"windSpeed"`
	FeelsLike   int           `json:"feelsLike"`
	UVIndex     int           `json:"uvIndex"`
	Forecast    []ForecastDay `json:"forecast"`
}

// Priority ranks a kanban task.
type Priority string

const (
	High   Priority = "High"
	Medium Priority = "Medium"
	Low    Priority = "Low"
)

// Valid reports whether p is High, Medium or Low.
func (p Priority) Valid() bool {
	return p == High || p == Medium || p == Low
}

// Task is a kanban card.
type Task struct {
	ID       string   `json:"id"`
	Content  string   `json:"content"`
	Priority Priority `json:"priority"`
	Tag      string   `json:"tag"`
}

// Column is a kanban lane.
type Column struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Tasks []Task `json:"tasks"`
}

// KanbanData is the payload of a kanban board.
type KanbanData struct {
	Title   string   `json:"title"`
	Columns []Column `json:"columns"`
}

// ErrorData stands in for a widget whose invocation failed.
type ErrorData struct {
	Tool    string `json:"tool"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (*StockData) Type() string   { return string(KindStock) }
func (*WeatherData) Type() string { return string(KindWeather) }
func (*KanbanData) Type() string  { return string(KindKanban) }
func (*ErrorData) Type() string   { return TypeError }

func (p *StockData) Accept(v Visitor) error   { return v.VisitStock(p) }
func (p *WeatherData) Accept(v Visitor) error { return v.VisitWeather(p) }
func (p *KanbanData) Accept(v Visitor) error  { return v.VisitKanban(p) }
func (p *ErrorData) Accept(v Visitor) error   { return v.VisitError(p) }

func (*StockData) sealedPayload()   {}
func (*WeatherData) sealedPayload() {}
func (*KanbanData) sealedPayload()  {}
func (*ErrorData) sealedPayload()   {}

// IsError reports whether p is an error stand-in.
func IsError(p Payload) bool {
	_, ok := p.(*ErrorData)
	return ok
}

// ErrInvalidPayload is returned by Validate.
var ErrInvalidPayload = errors.New("widget: invalid payload")

// Validate checks the enum and uniqueness invariants of the payload.
func Validate(p Payload) error {
	switch d := p.(type) {
	case *WeatherData:
		if !d.Condition.Valid() {
			return fmt.Errorf("%w: condition %q", ErrInvalidPayload, d.Condition)
		}
		for _, f := range d.Forecast {
			if !f.Condition.Valid() {
				return fmt.Errorf("%w: forecast %s condition %q", ErrInvalidPayload, f.Day, f.Condition)
			}
		}
	case *KanbanData:
		cols := make(map[string]bool, len(d.Columns))
		for _, c := range d.Columns {
			if cols[c.ID] {
				return fmt.Errorf("%w: duplicate column %q", ErrInvalidPayload, c.ID)
			}
			cols[c.ID] = true
			tasks := make(map[string]bool, len(c.Tasks))
			for _, t := range c.Tasks {
				if tasks[t.ID] {
					return fmt.Errorf("%w: duplicate task %q in column %q", ErrInvalidPayload, t.ID, c.ID)
				}
				tasks[t.ID] = true
				if !t.Priority.Valid() {
					return fmt.Errorf("%w: task %q priority %q", ErrInvalidPayload, t.ID, t.Priority)
				}
			}
		}
	case nil:
		return fmt.Errorf("%w: nil", ErrInvalidPayload)
	}
	return nil
}
