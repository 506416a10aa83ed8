package main

import (
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/teslashibe/go-genui/pkg/orchestrator"
	"github.com/teslashibe/go-genui/pkg/render"
	"github.com/teslashibe/go-genui/pkg/store"
)

// Messages delivered to the chat model.
type (
	appendedMsg struct{ msg store.Message }
	turnMsg     struct{ ev orchestrator.TurnEvent }
	turnDoneMsg struct {
		turn *orchestrator.Turn
		err  error
	}
)

// chatModel is the Bubble Tea model of the terminal chat.
type chatModel struct {
	input    textinput.Model
	spinner  spinner.Model
	viewport viewport.Model
	renderer *render.Renderer
	styles   render.Styles

	messages []store.Message
	state    string
	busy     bool
	err      error

	width  int
	height int
	ready  bool

	// submit starts a turn and reports it as a turnDoneMsg.
	submit func(text string) tea.Cmd
}

func newChatModel(history []store.Message, submit func(string) tea.Cmd) chatModel {
	ti := textinput.New()
	ti.Placeholder = "Ask for a stock, the weather or your tasks..."
	ti.Focus()
	ti.CharLimit = orchestrator.MaxInputRunes
	ti.Width = 80

	styles := render.DefaultStyles()
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.Title

	return chatModel{
		input:    ti,
		spinner:  s,
		viewport: viewport.New(80, 20),
		renderer: render.New(),
		styles:   styles,
		messages: append([]store.Message(nil), history...),
		submit:   submit,
	}
}

func (m chatModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			text := strings.TrimSpace(m.input.Value())
			if text == "" || m.busy {
				return m, nil
			}
			m.input.SetValue("")
			m.busy = true
			m.err = nil
			m.state = orchestrator.StateSubmitted.String()
			m.refresh()
			return m, m.submit(text)
		}

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.input.Width = max(msg.Width-10, 10)
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-5, 1)
		m.renderer = render.New(render.WithWidth(msg.Width - 4))
		m.ready = true
		m.refresh()
		return m, nil

	case appendedMsg:
		m.messages = append(m.messages, msg.msg)
		m.refresh()
		return m, nil

	case turnMsg:
		m.state = msg.ev.State.String()
		return m, nil

	case turnDoneMsg:
		m.busy = false
		m.state = ""
		m.err = msg.err
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// refresh rebuilds the transcript and scrolls to the bottom.
func (m *chatModel) refresh() {
	var b strings.Builder
	for _, msg := range m.messages {
		b.WriteString(m.renderer.RenderMessage(msg))
		b.WriteString("\n\n")
	}
	m.viewport.SetContent(b.String())
	m.viewport.GotoBottom()
}

func (m chatModel) View() string {
	var status string
	switch {
	case m.busy:
		status = m.spinner.View() + " " + m.styles.Muted.Render(m.state)
	case m.err != nil:
		status = m.styles.Failure.Render(m.err.Error())
	default:
		status = m.styles.Muted.Render("enter: send  esc: quit")
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.styles.Title.Render("Generative UI"),
		m.viewport.View(),
		status,
		"> "+m.input.View(),
	)
}
