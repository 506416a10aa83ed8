package datasource

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/teslashibe/go-genui/pkg/widget"
)

// DefaultKanbanLatency matches the demo backend.
const DefaultKanbanLatency = 700 * time.Millisecond

// DefaultBoardTitle is used when the model supplies a blank title.
const DefaultBoardTitle = "Project Board"

// DemoTasks is the fixed demo task list.
var DemoTasks = []widget.Task{
	{ID: "1", Content: "Design new dashboard", Priority: widget.High, Tag: "Design"},
	{ID: "2", Content: "Implement API endpoints", Priority: widget.High, Tag: "Dev"},
	{ID: "3", Content: "Write unit tests", Priority: widget.Medium, Tag: "QA"},
	{ID: "4", Content: "Update documentation", Priority: widget.Low, Tag: "Docs"},
	{ID: "5", Content: "Code review", Priority: widget.Medium, Tag: "Dev"},
	{ID: "6", Content: "Deploy to staging", Priority: widget.High, Tag: "Ops"},
}

// boardColumns are the three lanes, in order.
var boardColumns = [3]struct{ id, title string }{
	{"todo", "To Do"},
	{"in-progress", "In Progress"},
	{"done", "Done"},
}

// Distribute splits n items into three lanes of ceil(n/3), ceil(n/3) and the
// remainder, clamping each lane to what is left. 6 gives [2 2 2], 7 gives
// [3 3 1], 4 gives [2 2 0].
func Distribute(n int) [3]int {
	if n <= 0 {
		return [3]int{}
	}
	per := (n + 2) / 3
	first := min(per, n)
	second := min(per, n-first)
	return [3]int{first, second, n - first - second}
}

// DistributeTasks slices tasks into three lanes according to Distribute.
func DistributeTasks(tasks []widget.Task) [3][]widget.Task {
	sizes := Distribute(len(tasks))
	var lanes [3][]widget.Task
	start := 0
	for i, size := range sizes {
		lane := make([]widget.Task, size)
		copy(lane, tasks[start:start+size])
		lanes[i] = lane
		start += size
	}
	return lanes
}

// Kanban builds a board from a task list.
type Kanban struct {
	cfg   *Config
	tasks []widget.Task
}

// NewKanban creates the board generator over DemoTasks.
func NewKanban(opts ...Option) *Kanban {
	return NewKanbanWithTasks(DemoTasks, opts...)
}

// NewKanbanWithTasks creates a board generator over a custom task list.
func NewKanbanWithTasks(tasks []widget.Task, opts ...Option) *Kanban {
	cfg := newConfig(DefaultKanbanLatency, opts)
	cfg.Logger = cfg.Logger.With("component", "datasource.kanban")
	own := make([]widget.Task, len(tasks))
	copy(own, tasks)
	return &Kanban{cfg: cfg, tasks: own}
}

// Fetch implements Adapter.
func (k *Kanban) Fetch(ctx context.Context, args widget.Args) (widget.Payload, error) {
	a, ok := args.(widget.KanbanArgs)
	if !ok {
		return nil, Unavailable("datasource.kanban", fmt.Errorf("%w: %T", ErrWrongKind, args))
	}
	title := strings.TrimSpace(a.Title)
	if title == "" {
		title = DefaultBoardTitle
	}

	if err := sleep(ctx, k.cfg.Latency); err != nil {
		return nil, Unavailable("datasource.kanban", err)
	}

	lanes := DistributeTasks(k.tasks)
	board := &widget.KanbanData{Title: title, Columns: make([]widget.Column, len(boardColumns))}
	for i, c := range boardColumns {
		board.Columns[i] = widget.Column{ID: c.id, Title: c.title, Tasks: lanes[i]}
	}
	return board, nil
}

var _ Adapter = (*Kanban)(nil)
