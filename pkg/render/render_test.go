package render

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/teslashibe/go-genui/pkg/fault"
	"github.com/teslashibe/go-genui/pkg/store"
	"github.com/teslashibe/go-genui/pkg/widget"
)

func TestRenderStock(t *testing.T) {
	r := New()
	out, err := r.Render(&widget.StockData{
		Symbol: "AAPL", Price: 152.4, Delta: -1.25,
		History: []widget.PricePoint{{Time: "9:00", Value: 150}, {Time: "9:30", Value: 155}},
		Open:    150, High: 155, Low: 148, Volume: "45.2M", MarketCap: "2.4T",
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"AAPL", "$152.40", "▼ 1.25%", "45.2M", "2.4T", "9:00", "▁█"} {
		if !strings.Contains(out, want) {
			t.Errorf("stock card missing %q:\n%s", want, out)
		}
	}
}

func TestRenderWeather(t *testing.T) {
	out, err := New().Render(&widget.WeatherData{
		Location: "Paris", Temperature: 72, Condition: widget.Rainy, Humidity: 60,
		Forecast: []widget.ForecastDay{{Day: "Tue", Temp: 73, Condition: widget.Sunny}},
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Paris", "72°F", "Rainy", "Humidity 60%", "Tue", "73°F"} {
		if !strings.Contains(out, want) {
			t.Errorf("weather card missing %q:\n%s", want, out)
		}
	}
}

func TestRenderKanban(t *testing.T) {
	out, err := New().Render(&widget.KanbanData{
		Title: "Launch",
		Columns: []widget.Column{
			{ID: "todo", Title: "To Do", Tasks: []widget.Task{{ID: "1", Content: "Write docs", Priority: widget.High, Tag: "docs"}}},
			{ID: "in-progress", Title: "In Progress"},
			{ID: "done", Title: "Done"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Launch", "To Do (1)", "In Progress (0)", "Write docs", "[High] #docs"} {
		if !strings.Contains(out, want) {
			t.Errorf("kanban card missing %q:\n%s", want, out)
		}
	}
}

func TestRenderKanbanUnevenColumns(t *testing.T) {
	tasks := func(n int) []widget.Task {
		out := make([]widget.Task, n)
		for i := range out {
			out[i] = widget.Task{ID: string(rune('a' + i)), Content: "task", Priority: widget.Low, Tag: "ops"}
		}
		return out
	}
	out, err := New().Render(&widget.KanbanData{
		Title: "Sprint",
		Columns: []widget.Column{
			{ID: "todo", Title: "To Do", Tasks: tasks(3)},
			{ID: "in-progress", Title: "In Progress", Tasks: tasks(3)},
			{ID: "done", Title: "Done", Tasks: tasks(1)},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out, "<nil>") {
		t.Errorf("empty lane cells leaked:\n%s", out)
	}
	for _, want := range []string{"To Do (3)", "In Progress (3)", "Done (1)"} {
		if !strings.Contains(out, want) {
			t.Errorf("kanban header missing %q:\n%s", want, out)
		}
	}
}

func TestRenderError(t *testing.T) {
	out, err := New().Render(&widget.ErrorData{Tool: "showStockPrice", Kind: "data_source_unavailable", Message: "feed offline"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "showStockPrice") || !strings.Contains(out, "feed offline") {
		t.Errorf("error card = %q", out)
	}
}

func TestRenderFailureIsContained(t *testing.T) {
	r := New()

	t.Run("panic", func(t *testing.T) {
		var nilStock *widget.StockData
		_, err := r.Render(nilStock)
		if !fault.Is(err, fault.RenderFailure) {
			t.Errorf("err = %v, want RenderFailure", err)
		}
		if got := r.RenderWidget(nilStock); !strings.Contains(got, "Error rendering stock") {
			t.Errorf("fallback = %q", got)
		}
	})

	t.Run("nil payload", func(t *testing.T) {
		if _, err := r.Render(nil); !fault.Is(err, fault.RenderFailure) {
			t.Errorf("err = %v", err)
		}
	})
}

func TestRenderEnvelope(t *testing.T) {
	r := New()

	t.Run("known", func(t *testing.T) {
		env, err := widget.Wrap(&widget.WeatherData{Location: "Oslo", Condition: widget.Snowy})
		if err != nil {
			t.Fatal(err)
		}
		if got := r.RenderEnvelope(env); !strings.Contains(got, "Oslo") {
			t.Errorf("got %q", got)
		}
	})

	t.Run("unknown type", func(t *testing.T) {
		got := r.RenderEnvelope(widget.Envelope{Type: "chart", Data: json.RawMessage(`{}`)})
		if !strings.Contains(got, "Unknown tool: chart") {
			t.Errorf("got %q", got)
		}
	})

	t.Run("bad data", func(t *testing.T) {
		got := r.RenderEnvelope(widget.Envelope{Type: "stock", Data: json.RawMessage(`[1,2]`)})
		if !strings.Contains(got, "Error rendering stock") {
			t.Errorf("got %q", got)
		}
	})
}

func TestRenderMessage(t *testing.T) {
	r := New()
	tests := []struct {
		name string
		msg  store.Message
		want []string
	}{
		{"user", store.Message{Role: store.RoleUser, Text: "hello"}, []string{"You: hello"}},
		{"assistant text", store.Message{Role: store.RoleAssistant, Text: "Hi there"}, []string{"AI: Hi there"}},
		{"system", store.Message{Role: store.RoleSystem, Text: "Welcome"}, []string{"Welcome"}},
		{
			"assistant widget",
			store.Message{Role: store.RoleAssistant, Text: "Here", Widget: &widget.StockData{Symbol: "TSLA", Price: 200}},
			[]string{"AI: Here", "TSLA", "$200.00"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.RenderMessage(tt.msg)
			for _, want := range tt.want {
				if !strings.Contains(got, want) {
					t.Errorf("missing %q in %q", want, got)
				}
			}
		})
	}
}

func TestSparkline(t *testing.T) {
	if got := Sparkline([]float64{1, 2, 3}); got != "▁▄█" {
		t.Errorf("Sparkline = %q", got)
	}
	if got := Sparkline([]float64{5, 5}); got != "▁▁" {
		t.Errorf("flat Sparkline = %q", got)
	}
	if Sparkline(nil) != "" {
		t.Error("empty input should give empty output")
	}
}
