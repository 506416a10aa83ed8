package datasource

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/teslashibe/go-genui/pkg/widget"
)

// DefaultWeatherLatency matches the demo backend.
const DefaultWeatherLatency = 600 * time.Millisecond

// forecastOffsets are the temperature offsets of the three forecast days.
var forecastOffsets = []struct {
	day    string
	offset int
}{
	{"Tue", 1},
	{"Wed", -2},
	{"Thu", 3},
}

// Weather generates current conditions in Fahrenheit.
//
// temperature is 60 + U[0,40) rounded to the nearest degree, so it lies in
// [60, 100]. Conditions are drawn uniformly from widget.Conditions.
type Weather struct {
	cfg *Config
}

// NewWeather creates the weather generator.
func NewWeather(opts ...Option) *Weather {
	cfg := newConfig(DefaultWeatherLatency, opts)
	cfg.Logger = cfg.Logger.With("component", "datasource.weather")
	return &Weather{cfg: cfg}
}

// Fetch implements Adapter.
func (w *Weather) Fetch(ctx context.Context, args widget.Args) (widget.Payload, error) {
	a, ok := args.(widget.WeatherArgs)
	if !ok {
		return nil, Unavailable("datasource.weather", fmt.Errorf("%w: %T", ErrWrongKind, args))
	}
	location := strings.TrimSpace(a.Location)
	if location == "" {
		return nil, Unavailable("datasource.weather", fmt.Errorf("empty location"))
	}

	if err := sleep(ctx, w.cfg.Latency); err != nil {
		return nil, Unavailable("datasource.weather", err)
	}

	r := w.cfg.Rand
	temp := int(math.Round(60 + r.Float64()*40))

	forecast := make([]widget.ForecastDay, len(forecastOffsets))
	for i, f := range forecastOffsets {
		forecast[i] = widget.ForecastDay{
			Day:       f.day,
			Temp:      temp + f.offset,
			Condition: w.condition(),
		}
	}

	return &widget.WeatherData{
		Location:    location,
		Temperature: temp,
		Condition:   w.condition(),
		Humidity:    40 + r.IntN(60),
		WindSpeed:   5 + r.IntN(20),
		FeelsLike:   temp + r.IntN(4) - 2,
		UVIndex:     r.IntN(10),
		Forecast:    forecast,
	}, nil
}

func (w *Weather) condition() widget.Condition {
	conds := widget.Conditions()
	return conds[w.cfg.Rand.IntN(len(conds))]
}

var _ Adapter = (*Weather)(nil)
