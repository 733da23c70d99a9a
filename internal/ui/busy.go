package ui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/jira-import/internal/keys"
	"github.com/nhle/jira-import/internal/model"
	"github.com/nhle/jira-import/internal/theme"
)

// busyDoneMsg carries the result of the action behind a busy spinner.
type busyDoneMsg struct {
	err error
}

// busyModel shows a spinner while action runs. Cancel stops waiting and
// cancels the action's context.
type busyModel struct {
	title   string
	action  func(ctx context.Context) error
	ctx     context.Context
	cancel  context.CancelFunc
	keys    *keys.KeyMap
	spinner spinner.Model

	err  error
	done bool
}

func newBusyModel(ctx context.Context, title string, k *keys.KeyMap, action func(ctx context.Context) error) busyModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = theme.FolderStyle

	ctx, cancel := context.WithCancel(ctx)
	return busyModel{
		title:   title,
		action:  action,
		ctx:     ctx,
		cancel:  cancel,
		keys:    k,
		spinner: sp,
	}
}

func (m busyModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.runAction())
}

func (m busyModel) runAction() tea.Cmd {
	action, ctx := m.action, m.ctx
	return func() tea.Msg {
		return busyDoneMsg{err: action(ctx)}
	}
}

func (m busyModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Cancel) {
			m.cancel()
			m.err = model.ErrCanceled
			m.done = true
			return m, tea.Quit
		}
		return m, nil

	case busyDoneMsg:
		m.cancel()
		m.err = msg.err
		m.done = true
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m busyModel) View() string {
	if m.done {
		return ""
	}
	return fmt.Sprintf("%s %s  %s\n", m.spinner.View(), m.title, theme.HelpStyle.Render("esc to cancel"))
}

// runBusy runs action behind a spinner and returns its error, or
// model.ErrCanceled when the user gave up waiting.
func runBusy(ctx context.Context, title string, k *keys.KeyMap, action func(ctx context.Context) error) error {
	m := newBusyModel(ctx, title, k, action)
	defer m.cancel()

	final, err := tea.NewProgram(m, tea.WithContext(ctx)).Run()
	if err != nil {
		return fmt.Errorf("running %q: %w", title, err)
	}
	return final.(busyModel).err
}
