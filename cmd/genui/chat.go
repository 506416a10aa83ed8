package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/teslashibe/go-genui/pkg/genui"
	"github.com/teslashibe/go-genui/pkg/orchestrator"
	"github.com/teslashibe/go-genui/pkg/render"
	"github.com/teslashibe/go-genui/pkg/store"
)

func newChatCmd(c *cli) *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:   "chat [text]",
		Short: "Chat with the dashboard in the terminal",
		Long: `Chat with the dashboard. Widgets are drawn as terminal cards.

Examples:
  genui chat
  genui chat --once "show me the weather in Paris"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if once {
				if len(args) == 0 {
					return fmt.Errorf("--once needs the text of the turn")
				}
				app, err := c.app()
				if err != nil {
					return err
				}
				defer app.Shutdown()
				return runOnce(cmd.Context(), cmd.OutOrStdout(), app, strings.Join(args, " "))
			}
			return runChat(c)
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "run a single turn and print the result")
	return cmd
}

// runOnce runs one turn and prints every message it appended.
func runOnce(ctx context.Context, w io.Writer, app *genui.App, text string) error {
	before := app.Store().Len()
	turn, err := app.Orchestrator().Submit(ctx, text)
	if err != nil {
		return err
	}
	r := render.New()
	for _, msg := range app.Store().Since(before) {
		fmt.Fprintln(w, r.RenderMessage(msg))
	}
	if turn.State == orchestrator.StateFailed {
		return turn.Err
	}
	return nil
}

func runChat(c *cli) error {
	var p *tea.Program
	app, err := c.app(genui.WithTurnObserver(func(ev orchestrator.TurnEvent) {
		if p != nil {
			p.Send(turnMsg{ev: ev})
		}
	}))
	if err != nil {
		return err
	}
	defer app.Shutdown()

	orch := app.Orchestrator()
	model := newChatModel(app.Store().Snapshot(), func(text string) tea.Cmd {
		return func() tea.Msg {
			turn, err := orch.Submit(context.Background(), text)
			return turnDoneMsg{turn: turn, err: err}
		}
	})

	p = tea.NewProgram(model, tea.WithAltScreen())
	unsubscribe := app.Store().Subscribe(func(msg store.Message) {
		p.Send(appendedMsg{msg: msg})
	})
	defer unsubscribe()

	_, err = p.Run()
	return err
}
