package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"gopkg.in/yaml.v3"

	"github.com/teslashibe/go-genui/internal/config"
	"github.com/teslashibe/go-genui/internal/log"
	"github.com/teslashibe/go-genui/pkg/genui"
	"github.com/teslashibe/go-genui/pkg/inference"
	"github.com/teslashibe/go-genui/pkg/orchestrator"
	"github.com/teslashibe/go-genui/pkg/store"
	"github.com/teslashibe/go-genui/pkg/widget"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestToolsTable(t *testing.T) {
	out, err := execute(t, "tools")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"showStockPrice", "showWeather", "createKanbanBoard", "symbol string"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestToolsFormats(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		out, err := execute(t, "tools", "-o", "json")
		if err != nil {
			t.Fatal(err)
		}
		var tools []map[string]any
		if err := json.Unmarshal([]byte(out), &tools); err != nil {
			t.Fatalf("not JSON: %v", err)
		}
		if len(tools) != 3 || tools[0]["parameters"] == nil {
			t.Errorf("tools = %v", tools)
		}
	})

	t.Run("yaml", func(t *testing.T) {
		out, err := execute(t, "tools", "-o", "yaml")
		if err != nil {
			t.Fatal(err)
		}
		var tools []widget.ToolSchema
		if err := yaml.Unmarshal([]byte(out), &tools); err != nil {
			t.Fatalf("not YAML: %v", err)
		}
		if len(tools) != 3 || tools[1].Name != "showWeather" {
			t.Errorf("tools = %+v", tools)
		}
	})

	t.Run("unknown", func(t *testing.T) {
		if _, err := execute(t, "tools", "-o", "xml"); err == nil {
			t.Error("expected an error")
		}
	})
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, Version) {
		t.Errorf("output = %q", out)
	}
}

func TestChatOnceNeedsText(t *testing.T) {
	if _, err := execute(t, "chat", "--once", "--provider", "mock"); err == nil {
		t.Error("expected an error")
	}
}

func TestRunOnce(t *testing.T) {
	cfg := &config.Config{
		Provider:     config.ProviderMock,
		TurnTimeout:  time.Second,
		FetchTimeout: time.Second,
		CloseTimeout: time.Second,
		AudioBackend: "mock",
	}
	provider := inference.NewScripted(inference.ToolCallResponse("", inference.ToolCall{
		ID: "call_1", Name: "createKanbanBoard", Arguments: `{"title":"Launch"}`,
	}))
	app, err := genui.New(cfg, genui.WithProvider(provider), genui.WithLogger(log.Discard()))
	if err != nil {
		t.Fatal(err)
	}
	if err := app.Init(); err != nil {
		t.Fatal(err)
	}
	defer app.Shutdown()

	var out bytes.Buffer
	if err := runOnce(context.Background(), &out, app, "show my tasks"); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"You: show my tasks", "AI: ", "To Do"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestChatModel(t *testing.T) {
	var submitted []string
	m := newChatModel(nil, func(text string) tea.Cmd {
		submitted = append(submitted, text)
		return func() tea.Msg { return nil }
	})

	var model tea.Model = m
	model, _ = model.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	m = model.(chatModel)
	m.input.SetValue("  weather in Paris ")
	model, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = model.(chatModel)
	if cmd == nil || !m.busy || len(submitted) != 1 || submitted[0] != "weather in Paris" {
		t.Fatalf("after enter: busy=%v submitted=%v", m.busy, submitted)
	}

	m.input.SetValue("again")
	model, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil || len(submitted) != 1 {
		t.Error("enter while busy should be ignored")
	}
	m = model.(chatModel)

	model, _ = m.Update(turnMsg{ev: orchestrator.TurnEvent{State: orchestrator.StateFetching}})
	m = model.(chatModel)
	if m.state != "fetching" {
		t.Errorf("state = %q", m.state)
	}

	model, _ = m.Update(appendedMsg{msg: store.Message{Role: store.RoleAssistant, Text: "Here you go"}})
	model, _ = model.Update(turnDoneMsg{err: errors.New("boom")})
	m = model.(chatModel)
	if m.busy || len(m.messages) != 1 {
		t.Errorf("busy=%v messages=%d", m.busy, len(m.messages))
	}
	view := m.View()
	if !strings.Contains(view, "Here you go") || !strings.Contains(view, "boom") {
		t.Errorf("view = %q", view)
	}

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if cmd == nil {
		t.Error("esc should quit")
	}
}
