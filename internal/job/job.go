// Package job runs user-visible background tasks with cooperative
// cancellation and progress reporting.
package job

import (
	"context"
	"sync"
	"sync/atomic"
)

// Code classifies how a job ended.
type Code int

const (
	OK Code = iota
	Canceled
	Error
)

func (c Code) String() string {
	switch c {
	case OK:
		return "ok"
	case Canceled:
		return "canceled"
	default:
		return "error"
	}
}

// Status is the result of a job run.
type Status struct {
	Code Code
	Err  error
}

// StatusOK and StatusCanceled are the results that carry no error.
var (
	StatusOK       = Status{Code: OK}
	StatusCanceled = Status{Code: Canceled}
)

// Failed returns an error status wrapping err.
func Failed(err error) Status {
	return Status{Code: Error, Err: err}
}

// Monitor receives progress from a running job and tells it whether it
// has been asked to stop.
type Monitor interface {
	BeginTask(name string, totalWork int)
	SetTaskName(name string)
	Worked(units int)
	IsCanceled() bool
	Done()
}

// Job is a named unit of background work.
type Job struct {
	Name string

	// User marks jobs started by an explicit user action. Callers show
	// user jobs with a progress view; see Handle.User.
	User bool

	Run func(ctx context.Context, monitor Monitor) Status
}

// Event is a snapshot of a job's progress.
type Event struct {
	Job      string
	Task     string
	Worked   int
	Total    int
	Canceled bool
	Done     bool
}

// Percent returns the completed fraction in [0, 1].
func (e Event) Percent() float64 {
	if e.Total <= 0 {
		if e.Done {
			return 1
		}
		return 0
	}
	p := float64(e.Worked) / float64(e.Total)
	if p > 1 {
		return 1
	}
	return p
}

// eventBuffer bounds the progress events queued for a slow reader.
const eventBuffer = 64

// Handle controls a scheduled job.
type Handle struct {
	name     string
	user     bool
	cancel   context.CancelFunc
	canceled atomic.Bool
	events   chan Event
	done     chan struct{}

	mu     sync.Mutex
	last   Event
	status Status
	closed bool
}

// Name returns the job name.
func (h *Handle) Name() string { return h.name }

// User reports whether the job was marked as started by the user.
func (h *Handle) User() bool { return h.user }

// Cancel requests cooperative cancellation. The job stops the next time
// it checks IsCanceled.
func (h *Handle) Cancel() {
	h.canceled.Store(true)
	h.cancel()
	h.update(func(e *Event) { e.Canceled = true })
}

// Events delivers progress snapshots. Events are dropped when the reader
// falls behind; Progress always returns the latest one. The channel is
// closed when the job finishes.
func (h *Handle) Events() <-chan Event { return h.events }

// Done is closed once the job has returned.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the job returns, or ctx ends, and returns its status.
func (h *Handle) Wait(ctx context.Context) (Status, error) {
	select {
	case <-h.done:
		return h.Status(), nil
	case <-ctx.Done():
		return Status{}, ctx.Err()
	}
}

// Status returns the job result. It is only meaningful after Done.
func (h *Handle) Status() Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

// Progress returns the most recent progress snapshot.
func (h *Handle) Progress() Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.last
}

func (h *Handle) update(fn func(*Event)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fn(&h.last)
	if h.closed {
		return
	}
	select {
	case h.events <- h.last:
	default:
		// Reader is behind; the latest state stays available via Progress.
	}
}

// finish records the result and closes the event stream.
func (h *Handle) finish(st Status) {
	h.mu.Lock()
	h.status = st
	h.closed = true
	close(h.events)
	h.mu.Unlock()
	close(h.done)
}

// monitor is the Monitor handed to a running job.
type monitor struct {
	h   *Handle
	ctx context.Context
}

func (m *monitor) BeginTask(name string, totalWork int) {
	m.h.update(func(e *Event) {
		e.Task = name
		e.Total = totalWork
		e.Worked = 0
	})
}

func (m *monitor) SetTaskName(name string) {
	m.h.update(func(e *Event) { e.Task = name })
}

func (m *monitor) Worked(units int) {
	m.h.update(func(e *Event) { e.Worked += units })
}

func (m *monitor) IsCanceled() bool {
	return m.h.canceled.Load() || m.ctx.Err() != nil
}

func (m *monitor) Done() {
	m.h.update(func(e *Event) {
		e.Done = true
		if e.Total > 0 && !e.Canceled {
			e.Worked = e.Total
		}
	})
}
