package datasource

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"testing"
	"time"

	"github.com/teslashibe/go-genui/pkg/fault"
	"github.com/teslashibe/go-genui/pkg/widget"
)

func seeded() Option {
	return WithRand(rand.New(rand.NewPCG(1, 2)))
}

func TestDistribute(t *testing.T) {
	tests := []struct {
		n    int
		want [3]int
	}{
		{0, [3]int{0, 0, 0}},
		{1, [3]int{1, 0, 0}},
		{2, [3]int{1, 1, 0}},
		{3, [3]int{1, 1, 1}},
		{4, [3]int{2, 2, 0}},
		{5, [3]int{2, 2, 1}},
		{6, [3]int{2, 2, 2}},
		{7, [3]int{3, 3, 1}},
		{10, [3]int{4, 4, 2}},
	}
	for _, tt := range tests {
		got := Distribute(tt.n)
		if got != tt.want {
			t.Errorf("Distribute(%d) = %v, want %v", tt.n, got, tt.want)
		}
		if got[0]+got[1]+got[2] != tt.n {
			t.Errorf("Distribute(%d) sums to %d", tt.n, got[0]+got[1]+got[2])
		}
	}
}

func TestDistributeTasksPreservesOrder(t *testing.T) {
	lanes := DistributeTasks(DemoTasks)
	var ids []string
	for _, lane := range lanes {
		for _, task := range lane {
			ids = append(ids, task.ID)
		}
	}
	if got := strings.Join(ids, ","); got != "1,2,3,4,5,6" {
		t.Errorf("task order = %s", got)
	}
}

func TestStockBounds(t *testing.T) {
	s := NewStock(seeded(), WithoutLatency())
	ctx := context.Background()

	for i := 0; i < 200; i++ {
		for symbol, base := range BasePrices {
			p, err := s.Fetch(ctx, widget.StockArgs{Symbol: strings.ToLower(symbol)})
			if err != nil {
				t.Fatalf("Fetch(%s) error = %v", symbol, err)
			}
			d := p.(*widget.StockData)
			if d.Symbol != symbol {
				t.Errorf("Symbol = %q, want %q", d.Symbol, symbol)
			}
			if d.Delta < -5 || d.Delta > 5 {
				t.Errorf("Delta = %v out of [-5, 5]", d.Delta)
			}
			if d.Price < base*0.95-0.01 || d.Price > base*1.05+0.01 {
				t.Errorf("%s price %v not within 5%% of %v", symbol, d.Price, base)
			}
			if len(d.History) != historyPoints {
				t.Errorf("history len = %d", len(d.History))
			}
			if d.Low > d.Price || d.High < d.Price {
				t.Errorf("price %v outside [%v, %v]", d.Price, d.Low, d.High)
			}
		}
	}
}

func TestStockUnknownSymbol(t *testing.T) {
	s := NewStock(seeded(), WithoutLatency())
	p, err := s.Fetch(context.Background(), widget.StockArgs{Symbol: "ZZZZ"})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	d := p.(*widget.StockData)
	if d.Open < 100 || d.Open > 300 {
		t.Errorf("Open = %v, want within [100, 300]", d.Open)
	}
}

func TestStockHistoryLabels(t *testing.T) {
	if got := historyLabel(0); got != "9:00" {
		t.Errorf("historyLabel(0) = %q", got)
	}
	if got := historyLabel(3); got != "10:30" {
		t.Errorf("historyLabel(3) = %q", got)
	}
}

func TestWeatherBounds(t *testing.T) {
	w := NewWeather(seeded(), WithoutLatency())
	for i := 0; i < 500; i++ {
		p, err := w.Fetch(context.Background(), widget.WeatherArgs{Location: " Paris "})
		if err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
		d := p.(*widget.WeatherData)
		if d.Location != "Paris" {
			t.Errorf("Location = %q", d.Location)
		}
		if d.Temperature < 60 || d.Temperature > 100 {
			t.Errorf("Temperature = %d out of [60, 100]", d.Temperature)
		}
		if !d.Condition.Valid() {
			t.Errorf("Condition = %q not in fixed set", d.Condition)
		}
		if d.Humidity < 40 || d.Humidity >= 100 {
			t.Errorf("Humidity = %d", d.Humidity)
		}
		if len(d.Forecast) != 3 || d.Forecast[1].Temp != d.Temperature-2 {
			t.Errorf("Forecast = %+v", d.Forecast)
		}
		for _, f := range d.Forecast {
			if !f.Condition.Valid() {
				t.Errorf("forecast condition %q not in fixed set", f.Condition)
			}
		}
	}
}

func TestKanbanBoard(t *testing.T) {
	k := NewKanban(WithoutLatency())
	p, err := k.Fetch(context.Background(), widget.KanbanArgs{Title: "Launch"})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	d := p.(*widget.KanbanData)
	if d.Title != "Launch" {
		t.Errorf("Title = %q", d.Title)
	}
	wantIDs := []string{"todo", "in-progress", "done"}
	if len(d.Columns) != 3 {
		t.Fatalf("columns = %d", len(d.Columns))
	}
	for i, c := range d.Columns {
		if c.ID != wantIDs[i] {
			t.Errorf("column %d id = %q, want %q", i, c.ID, wantIDs[i])
		}
		if len(c.Tasks) != 2 {
			t.Errorf("column %q has %d tasks, want 2", c.ID, len(c.Tasks))
		}
	}
	if err := widget.Validate(d); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestKanbanBlankTitle(t *testing.T) {
	k := NewKanbanWithTasks(DemoTasks[:4], WithoutLatency())
	p, err := k.Fetch(context.Background(), widget.KanbanArgs{Title: "  "})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	d := p.(*widget.KanbanData)
	if d.Title != DefaultBoardTitle {
		t.Errorf("Title = %q", d.Title)
	}
	if n := len(d.Columns[2].Tasks); n != 0 {
		t.Errorf("done column has %d tasks, want 0", n)
	}
}

func TestFetchCancelled(t *testing.T) {
	adapters := map[string]Adapter{
		"stock":   NewStock(WithLatency(time.Second)),
		"weather": NewWeather(WithLatency(time.Second)),
		"kanban":  NewKanban(WithLatency(time.Second)),
	}
	args := map[string]widget.Args{
		"stock":   widget.StockArgs{Symbol: "AAPL"},
		"weather": widget.WeatherArgs{Location: "Oslo"},
		"kanban":  widget.KanbanArgs{Title: "Q3"},
	}
	for name, a := range adapters {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
			defer cancel()
			_, err := a.Fetch(ctx, args[name])
			if fault.KindOf(err) != fault.DataSourceUnavailable {
				t.Errorf("kind = %v, want DataSourceUnavailable", fault.KindOf(err))
			}
			if !errors.Is(err, context.DeadlineExceeded) {
				t.Errorf("error %v does not wrap DeadlineExceeded", err)
			}
		})
	}
}

func TestWrongKind(t *testing.T) {
	_, err := NewStock(WithoutLatency()).Fetch(context.Background(), widget.WeatherArgs{Location: "x"})
	if !errors.Is(err, ErrWrongKind) || !errors.Is(err, ErrUnavailable) {
		t.Errorf("error = %v", err)
	}
}

func TestRouter(t *testing.T) {
	t.Run("dispatches by kind", func(t *testing.T) {
		r := NewMockRouter(seeded(), WithoutLatency())
		p, err := r.Fetch(context.Background(), widget.WeatherArgs{Location: "Rome"})
		if err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
		if p.Type() != "weather" {
			t.Errorf("Type() = %q", p.Type())
		}
	})

	t.Run("no adapter", func(t *testing.T) {
		r := NewRouter(map[widget.Kind]Adapter{}, nil)
		_, err := r.Fetch(context.Background(), widget.KanbanArgs{Title: "x"})
		if !errors.Is(err, ErrNoAdapter) {
			t.Errorf("error = %v, want ErrNoAdapter", err)
		}
		if fault.KindOf(err) != fault.DataSourceUnavailable {
			t.Errorf("kind = %v", fault.KindOf(err))
		}
	})

	t.Run("classifies plain errors", func(t *testing.T) {
		boom := errors.New("boom")
		r := NewRouter(map[widget.Kind]Adapter{
			widget.KindStock: AdapterFunc(func(context.Context, widget.Args) (widget.Payload, error) {
				return nil, boom
			}),
		}, nil)
		_, err := r.Fetch(context.Background(), widget.StockArgs{Symbol: "AAPL"})
		if !errors.Is(err, boom) || fault.KindOf(err) != fault.DataSourceUnavailable {
			t.Errorf("error = %v", err)
		}
	})

	t.Run("rejects invalid payloads", func(t *testing.T) {
		r := NewRouter(map[widget.Kind]Adapter{
			widget.KindWeather: AdapterFunc(func(context.Context, widget.Args) (widget.Payload, error) {
				return &widget.WeatherData{Location: "x", Condition: "Hail"}, nil
			}),
		}, nil)
		_, err := r.Fetch(context.Background(), widget.WeatherArgs{Location: "x"})
		if !errors.Is(err, widget.ErrInvalidPayload) {
			t.Errorf("error = %v, want ErrInvalidPayload", err)
		}
	})
}

func TestFixture(t *testing.T) {
	f := NewFixture().
		With(widget.KindStock, &widget.StockData{Symbol: "AAPL", Price: 1}).
		Fail(widget.KindWeather, errors.New("down"))

	p, err := f.Fetch(context.Background(), widget.StockArgs{Symbol: "AAPL"})
	if err != nil || p.(*widget.StockData).Price != 1 {
		t.Errorf("stock = %v, %v", p, err)
	}
	if _, err := f.Fetch(context.Background(), widget.WeatherArgs{Location: "x"}); fault.KindOf(err) != fault.DataSourceUnavailable {
		t.Errorf("weather error = %v", err)
	}
	p, err = f.Fetch(context.Background(), widget.KanbanArgs{Title: "T"})
	if err != nil || p.(*widget.KanbanData).Title != "T" {
		t.Errorf("kanban = %v, %v", p, err)
	}
	if n := len(f.Calls()); n != 3 {
		t.Errorf("Calls() = %d, want 3", n)
	}
}
