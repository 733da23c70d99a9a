package job

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Runner schedules jobs on background goroutines.
type Runner struct {
	ctx context.Context
	wg  sync.WaitGroup
	log *slog.Logger
}

// NewRunner creates a Runner. Cancelling ctx cancels every job it runs.
func NewRunner(ctx context.Context) *Runner {
	return &Runner{
		ctx: ctx,
		log: slog.With("component", "job"),
	}
}

// Schedule starts j on its own goroutine and returns its handle. A panic
// inside the job is recovered and reported as an error status.
func (r *Runner) Schedule(j Job) *Handle {
	ctx, cancel := context.WithCancel(r.ctx)
	h := &Handle{
		name:   j.Name,
		user:   j.User,
		cancel: cancel,
		events: make(chan Event, eventBuffer),
		done:   make(chan struct{}),
		last:   Event{Job: j.Name, Task: j.Name},
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer cancel()

		st := r.run(ctx, j, h)
		r.log.Info("job finished", "job", j.Name, "status", st.Code.String(), "error", st.Err)
		h.finish(st)
	}()

	r.log.Debug("job scheduled", "job", j.Name, "user", j.User)
	return h
}

func (r *Runner) run(ctx context.Context, j Job, h *Handle) (st Status) {
	defer func() {
		if p := recover(); p != nil {
			st = Failed(fmt.Errorf("job %q panicked: %v", j.Name, p))
		}
	}()
	return j.Run(ctx, &monitor{h: h, ctx: ctx})
}

// Wait blocks until every scheduled job has returned.
func (r *Runner) Wait() {
	r.wg.Wait()
}
