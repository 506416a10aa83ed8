// Package render turns widget payloads and transcript messages into terminal
// cards. Rendering never takes the caller down: unknown widget types and
// renderer failures produce a visible fallback line instead.
package render

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/teslashibe/go-genui/pkg/fault"
	"github.com/teslashibe/go-genui/pkg/store"
	"github.com/teslashibe/go-genui/pkg/widget"
)

// Renderer draws widgets. It is safe for concurrent use.
type Renderer struct {
	styles Styles
	width  int
	logger *slog.Logger
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithStyles overrides the styles.
func WithStyles(s Styles) Option {
	return func(r *Renderer) { r.styles = s }
}

// WithWidth sets the card width. Zero sizes cards to their content.
func WithWidth(w int) Option {
	return func(r *Renderer) { r.width = w }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Renderer) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a renderer.
func New(opts ...Option) *Renderer {
	r := &Renderer{styles: DefaultStyles(), logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "render")
	return r
}

// Render draws p. Panics and errors inside a card become RenderFailure.
func (r *Renderer) Render(p widget.Payload) (out string, err error) {
	if p == nil {
		return "", fault.New(fault.RenderFailure, "render", widget.ErrInvalidPayload)
	}
	defer func() {
		if rec := recover(); rec != nil {
			out = ""
			err = fault.Newf(fault.RenderFailure, "render."+p.Type(), "panic: %v", rec)
		}
	}()

	c := &card{r: r}
	if err := p.Accept(c); err != nil {
		return "", fault.New(fault.RenderFailure, "render."+p.Type(), err)
	}
	style := r.styles.Card
	if widget.IsError(p) {
		style = r.styles.ErrorCard
	}
	if r.width > 0 {
		style = style.Width(r.width)
	}
	return style.Render(strings.TrimRight(c.b.String(), "\n")), nil
}

// RenderWidget draws p, falling back to "Error rendering <type>".
func (r *Renderer) RenderWidget(p widget.Payload) string {
	out, err := r.Render(p)
	if err != nil {
		typ := "widget"
		if p != nil {
			typ = p.Type()
		}
		r.logger.Warn("render failed", "type", typ, "error", err)
		return r.styles.Failure.Render(ErrorText(typ))
	}
	return out
}

// RenderEnvelope decodes and draws a wire envelope. Unknown types render
// "Unknown tool: <type>".
func (r *Renderer) RenderEnvelope(env widget.Envelope) string {
	p, err := widget.Decode(env)
	switch {
	case errors.Is(err, widget.ErrUnknownWidget):
		return r.styles.Failure.Render(UnknownText(env.Type))
	case err != nil:
		r.logger.Warn("decode failed", "type", env.Type, "error", err)
		return r.styles.Failure.Render(ErrorText(env.Type))
	}
	return r.RenderWidget(p)
}

// RenderMessage draws one transcript entry: a role label, its text and its
// widget card when present.
func (r *Renderer) RenderMessage(msg store.Message) string {
	var b strings.Builder
	switch msg.Role {
	case store.RoleUser:
		b.WriteString(r.styles.User.Render("You: " + msg.Text))
	case store.RoleAssistant:
		b.WriteString(r.styles.Assistant.Render("AI: " + msg.Text))
	default:
		style := r.styles.System
		if msg.Error {
			style = r.styles.Failure
		}
		b.WriteString(style.Render(msg.Text))
	}
	if msg.Widget != nil {
		b.WriteString("\n")
		b.WriteString(r.RenderWidget(msg.Widget))
	}
	return b.String()
}

// UnknownText is the fallback for a widget type outside the registry.
func UnknownText(typ string) string {
	return "Unknown tool: " + typ
}

// ErrorText is the fallback for a widget that failed to render.
func ErrorText(typ string) string {
	return "Error rendering " + typ
}

// card is the Visitor that fills one card body.
type card struct {
	r *Renderer
	b strings.Builder
}

func (c *card) line(s string) {
	c.b.WriteString(s)
	c.b.WriteString("\n")
}

func (c *card) VisitStock(d *widget.StockData) error {
	s := c.r.styles
	change := s.Up.Render(fmt.Sprintf("▲ %.2f%%", d.Delta))
	if d.Delta < 0 {
		change = s.Down.Render(fmt.Sprintf("▼ %.2f%%", math.Abs(d.Delta)))
	}
	c.line(lipgloss.JoinHorizontal(lipgloss.Top,
		s.Title.Render(d.Symbol), "  ",
		s.Value.Render(fmt.Sprintf("$%.2f", d.Price)), "  ",
		change,
	))
	if len(d.History) > 0 {
		values := make([]float64, len(d.History))
		for i, p := range d.History {
			values[i] = p.Value
		}
		c.line(s.Muted.Render(d.History[0].Time+" ") + Sparkline(values) + s.Muted.Render(" "+d.History[len(d.History)-1].Time))
	}

	tw := newTable()
	tw.AppendHeader(table.Row{"Open", "High", "Low", "Volume", "Market Cap"})
	tw.AppendRow(table.Row{
		fmt.Sprintf("%.2f", d.Open),
		fmt.Sprintf("%.2f", d.High),
		fmt.Sprintf("%.2f", d.Low),
		orDash(d.Volume),
		orDash(d.MarketCap),
	})
	c.line(tw.Render())
	return nil
}

func (c *card) VisitWeather(d *widget.WeatherData) error {
	s := c.r.styles
	c.line(s.Title.Render(d.Location))
	c.line(s.Value.Render(fmt.Sprintf("%d°F", d.Temperature)) + "  " + ConditionIcon(d.Condition) + " " + string(d.Condition))
	c.line(s.Muted.Render(fmt.Sprintf("Feels like %d°F · Humidity %d%% · Wind %d mph · UV %d",
		d.FeelsLike, d.Humidity, d.WindSpeed, d.UVIndex)))

	if len(d.Forecast) > 0 {
		tw := newTable()
		tw.AppendHeader(table.Row{"Day", "Temp", "Condition"})
		for _, f := range d.Forecast {
			tw.AppendRow(table.Row{f.Day, fmt.Sprintf("%d°F", f.Temp), ConditionIcon(f.Condition) + " " + string(f.Condition)})
		}
		c.line(tw.Render())
	}
	return nil
}

func (c *card) VisitKanban(d *widget.KanbanData) error {
	s := c.r.styles
	c.line(s.Title.Render(d.Title))

	header := make(table.Row, len(d.Columns))
	depth := 0
	for i, col := range d.Columns {
		header[i] = fmt.Sprintf("%s (%d)", col.Title, len(col.Tasks))
		depth = max(depth, len(col.Tasks))
	}
	tw := newTable()
	tw.AppendHeader(header)
	for row := range depth {
		cells := make(table.Row, len(d.Columns))
		for i, col := range d.Columns {
			cells[i] = ""
			if row < len(col.Tasks) {
				t := col.Tasks[row]
				cells[i] = fmt.Sprintf("%s\n[%s] #%s", t.Content, t.Priority, t.Tag)
			}
		}
		tw.AppendRow(cells)
		if row < depth-1 {
			tw.AppendSeparator()
		}
	}
	c.line(tw.Render())
	return nil
}

func (c *card) VisitError(d *widget.ErrorData) error {
	title := "⚠ " + d.Tool
	if d.Tool == "" {
		title = "⚠ widget"
	}
	c.line(c.r.styles.Title.Foreground(c.r.styles.ErrorCard.GetForeground()).Render(title))
	c.line(d.Message)
	if d.Kind != "" {
		c.line(c.r.styles.Muted.Render(d.Kind))
	}
	return nil
}

func newTable() table.Writer {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.Style().Format.Header = text.FormatDefault
	return tw
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

var sparks = []rune("▁▂▃▄▅▆▇█")

// Sparkline draws values as a one-line bar chart.
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	out := make([]rune, len(values))
	for i, v := range values {
		idx := 0
		if hi > lo {
			idx = int((v - lo) / (hi - lo) * float64(len(sparks)-1))
		}
		out[i] = sparks[idx]
	}
	return string(out)
}

// ConditionIcon returns a glyph for a weather condition.
func ConditionIcon(c widget.Condition) string {
	switch c {
	case widget.Sunny:
		return "☀"
	case widget.Cloudy:
		return "☁"
	case widget.Rainy:
		return "☂"
	case widget.Snowy:
		return "❄"
	default:
		return "?"
	}
}

var _ widget.Visitor = (*card)(nil)
