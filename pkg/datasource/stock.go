package datasource

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/teslashibe/go-genui/pkg/widget"
)

// DefaultStockLatency matches the demo backend.
const DefaultStockLatency = 800 * time.Millisecond

// historyPoints is the number of half-hour samples from 9:00.
const historyPoints = 20

// BasePrices are the reference prices of the well-known symbols.
var BasePrices = map[string]float64{
	"AAPL":  175.50,
	"TSLA":  245.30,
	"GOOGL": 142.80,
	"MSFT":  378.90,
	"AMZN":  152.40,
}

// Stock generates stock quotes around a base price.
//
// delta is drawn from [-5, 5) percent and rounded to two decimals; price is
// base*(1+delta/100) rounded to two decimals, so price is always within 5% of
// the base. Unknown symbols draw their base from [100, 300).
type Stock struct {
	cfg *Config
}

// NewStock creates the stock generator.
func NewStock(opts ...Option) *Stock {
	cfg := newConfig(DefaultStockLatency, opts)
	cfg.Logger = cfg.Logger.With("component", "datasource.stock")
	return &Stock{cfg: cfg}
}

// BasePrice returns the base used for symbol, drawing one for unknown symbols.
func (s *Stock) BasePrice(symbol string) float64 {
	if p, ok := BasePrices[symbol]; ok {
		return p
	}
	return 100 + s.cfg.Rand.Float64()*200
}

// Fetch implements Adapter.
func (s *Stock) Fetch(ctx context.Context, args widget.Args) (widget.Payload, error) {
	a, ok := args.(widget.StockArgs)
	if !ok {
		return nil, Unavailable("datasource.stock", fmt.Errorf("%w: %T", ErrWrongKind, args))
	}
	symbol := strings.ToUpper(strings.TrimSpace(a.Symbol))
	if symbol == "" {
		return nil, Unavailable("datasource.stock", fmt.Errorf("empty symbol"))
	}

	if err := sleep(ctx, s.cfg.Latency); err != nil {
		return nil, Unavailable("datasource.stock", err)
	}

	r := s.cfg.Rand
	base := s.BasePrice(symbol)
	delta := round2((r.Float64() - 0.5) * 10)
	price := round2(base * (1 + delta/100))

	history := make([]widget.PricePoint, historyPoints)
	low, high := math.Min(price, base), math.Max(price, base)
	for i := range history {
		v := round2(base + (r.Float64()-0.5)*20)
		history[i] = widget.PricePoint{Time: historyLabel(i), Value: v}
		low = math.Min(low, v)
		high = math.Max(high, v)
	}

	return &widget.StockData{
		Symbol:    symbol,
		Price:     price,
		Delta:     delta,
		History:   history,
		Open:      round2(base),
		High:      high,
		Low:       low,
		Volume:    fmt.Sprintf("%.1fM", r.Float64()*10+1),
		MarketCap: fmt.Sprintf("%.1fT", r.Float64()*2+0.5),
	}, nil
}

// historyLabel returns "9:00", "9:30", "10:00", ... for sample i.
func historyLabel(i int) string {
	minute := "00"
	if i%2 == 1 {
		minute = "30"
	}
	return fmt.Sprintf("%d:%s", 9+i/2, minute)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

var _ Adapter = (*Stock)(nil)
