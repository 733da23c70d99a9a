package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/jira-import/internal/job"
	"github.com/nhle/jira-import/internal/keys"
	"github.com/nhle/jira-import/internal/theme"
)

const progressWidth = 48

// jobEventMsg carries a progress snapshot from the running job.
type jobEventMsg job.Event

// jobDoneMsg is sent once the job's event stream is closed.
type jobDoneMsg struct{}

// syncMsg asks the program to run fn with the terminal released.
type syncMsg struct {
	fn   func()
	done chan struct{}
}

// funcCommand adapts a function to tea.ExecCommand so it can run while the
// program has given up the terminal.
type funcCommand struct {
	fn func()
}

func (c funcCommand) Run() error {
	c.fn()
	return nil
}

func (funcCommand) SetStdin(io.Reader)  {}
func (funcCommand) SetStdout(io.Writer) {}
func (funcCommand) SetStderr(io.Writer) {}

// progressModel renders one job's progress.
type progressModel struct {
	handle  *job.Handle
	keys    *keys.KeyMap
	bar     progress.Model
	spinner spinner.Model
	help    help.Model

	event      job.Event
	cancelling bool
	done       bool
}

func newProgressModel(h *job.Handle, k *keys.KeyMap) progressModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = theme.FolderStyle

	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = progressWidth

	return progressModel{
		handle:  h,
		keys:    k,
		bar:     bar,
		spinner: sp,
		help:    help.New(),
		event:   h.Progress(),
	}
}

func (m progressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.waitForEvent())
}

// waitForEvent returns a command that waits for the next job event.
func (m progressModel) waitForEvent() tea.Cmd {
	events := m.handle.Events()
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return jobDoneMsg{}
		}
		return jobEventMsg(ev)
	}
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Cancel) && !m.cancelling {
			m.cancelling = true
			m.handle.Cancel()
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.bar.Width = min(progressWidth, max(msg.Width-4, 10))
		return m, nil

	case jobEventMsg:
		m.event = job.Event(msg)
		return m, m.waitForEvent()

	case jobDoneMsg:
		m.event = m.handle.Progress()
		m.done = true
		return m, tea.Quit

	case syncMsg:
		done := msg.done
		return m, tea.Exec(funcCommand{fn: msg.fn}, func(error) tea.Msg {
			close(done)
			return nil
		})

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m progressModel) View() string {
	if m.done {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", m.spinner.View(), theme.HeaderStyle.Render(m.event.Job))

	task := m.event.Task
	if m.cancelling {
		task = "Cancelling…"
	}
	if task != "" && task != m.event.Job {
		fmt.Fprintf(&b, "  %s\n", task)
	}

	fmt.Fprintf(&b, "  %s %d/%d\n", m.bar.ViewAs(m.event.Percent()), m.event.Worked, m.event.Total)
	fmt.Fprintf(&b, "  %s\n", m.help.ShortHelpView(m.keys.ShortHelp()))
	return b.String()
}

// ProgressView shows a running job and doubles as the UI thread: while it
// runs, SyncExec hands functions to its program.
type ProgressView struct {
	keys *keys.KeyMap
	opts []tea.ProgramOption

	mu       sync.Mutex
	program  *tea.Program
	finished chan struct{}

	// exec serializes functions run without a program.
	exec sync.Mutex
}

// NewProgressView creates a ProgressView. opts are passed to the
// underlying program.
func NewProgressView(k *keys.KeyMap, opts ...tea.ProgramOption) *ProgressView {
	return &ProgressView{keys: k, opts: opts}
}

// Run shows h until the job returns and then reports its status. If the
// program fails or ctx ends first, the job is cancelled and awaited.
func (v *ProgressView) Run(ctx context.Context, h *job.Handle) (job.Status, error) {
	opts := append([]tea.ProgramOption{tea.WithContext(ctx)}, v.opts...)
	p := tea.NewProgram(newProgressModel(h, v.keys), opts...)
	finished := make(chan struct{})

	v.mu.Lock()
	v.program = p
	v.finished = finished
	v.mu.Unlock()

	_, err := p.Run()

	v.mu.Lock()
	v.program = nil
	v.finished = nil
	v.mu.Unlock()
	close(finished)

	if err != nil {
		h.Cancel()
		<-h.Done()
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return h.Status(), ctx.Err()
		}
		return h.Status(), fmt.Errorf("running progress view: %w", err)
	}

	<-h.Done()
	return h.Status(), nil
}

// SyncExec runs fn on the UI thread and waits for it to return. Without a
// running program fn runs on the caller, one call at a time.
func (v *ProgressView) SyncExec(fn func()) {
	v.mu.Lock()
	p, finished := v.program, v.finished
	v.mu.Unlock()

	if p == nil {
		v.runDirect(fn)
		return
	}

	done := make(chan struct{})
	p.Send(syncMsg{fn: fn, done: done})

	select {
	case <-done:
	case <-finished:
		// The program exited; fn ran only if done was closed first.
		select {
		case <-done:
		default:
			v.runDirect(fn)
		}
	}
}

func (v *ProgressView) runDirect(fn func()) {
	v.exec.Lock()
	defer v.exec.Unlock()
	fn()
}
