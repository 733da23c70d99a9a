package job

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitStatus(t *testing.T, h *Handle) Status {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	st, err := h.Wait(ctx)
	require.NoError(t, err)
	return st
}

func TestScheduleRunsJobAndReportsProgress(t *testing.T) {
	r := NewRunner(context.Background())

	h := r.Schedule(Job{
		Name: "Importing issues",
		User: true,
		Run: func(ctx context.Context, m Monitor) Status {
			m.BeginTask("", 2)
			m.SetTaskName("step one")
			m.Worked(1)
			m.Worked(1)
			m.Done()
			return StatusOK
		},
	})

	st := waitStatus(t, h)
	assert.Equal(t, OK, st.Code)
	assert.Equal(t, "Importing issues", h.Name())
	assert.True(t, h.User())

	var events []Event
	for ev := range h.Events() {
		events = append(events, ev)
	}
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.True(t, last.Done)
	assert.Equal(t, 2, last.Worked)
	assert.Equal(t, "step one", last.Task)
	assert.Equal(t, 1.0, last.Percent())
	assert.Equal(t, last, h.Progress())
}

func TestCancelIsCooperative(t *testing.T) {
	r := NewRunner(context.Background())
	started := make(chan struct{})

	h := r.Schedule(Job{
		Name: "loop",
		Run: func(ctx context.Context, m Monitor) Status {
			close(started)
			for {
				if m.IsCanceled() {
					return StatusCanceled
				}
				time.Sleep(time.Millisecond)
			}
		},
	})

	<-started
	h.Cancel()

	st := waitStatus(t, h)
	assert.Equal(t, Canceled, st.Code)
	assert.True(t, h.Progress().Canceled)
}

func TestParentContextCancelsJobs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := NewRunner(ctx)

	h := r.Schedule(Job{
		Name: "wait",
		Run: func(ctx context.Context, m Monitor) Status {
			<-ctx.Done()
			if m.IsCanceled() {
				return StatusCanceled
			}
			return StatusOK
		},
	})
	cancel()

	assert.Equal(t, Canceled, waitStatus(t, h).Code)
	r.Wait()
}

func TestPanicBecomesErrorStatus(t *testing.T) {
	r := NewRunner(context.Background())
	h := r.Schedule(Job{
		Name: "boom",
		Run: func(ctx context.Context, m Monitor) Status {
			panic("broken")
		},
	})

	st := waitStatus(t, h)
	assert.Equal(t, Error, st.Code)
	assert.ErrorContains(t, st.Err, "broken")
}

func TestFailedStatus(t *testing.T) {
	err := errors.New("disk full")
	st := Failed(err)
	assert.Equal(t, Error, st.Code)
	assert.ErrorIs(t, st.Err, err)
	assert.Equal(t, "error", st.Code.String())
}

func TestSlowReaderDoesNotBlockJob(t *testing.T) {
	r := NewRunner(context.Background())
	h := r.Schedule(Job{
		Name: "chatty",
		Run: func(ctx context.Context, m Monitor) Status {
			m.BeginTask("", eventBuffer*4)
			for i := 0; i < eventBuffer*4; i++ {
				m.Worked(1)
			}
			m.Done()
			return StatusOK
		},
	})

	assert.Equal(t, OK, waitStatus(t, h).Code)
	assert.Equal(t, eventBuffer*4, h.Progress().Worked)
}

func TestWaitHonoursContext(t *testing.T) {
	r := NewRunner(context.Background())
	release := make(chan struct{})
	h := r.Schedule(Job{
		Name: "blocked",
		Run: func(ctx context.Context, m Monitor) Status {
			<-release
			return StatusOK
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := h.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	close(release)
	assert.Equal(t, OK, waitStatus(t, h).Code)
}

func TestPercent(t *testing.T) {
	assert.Equal(t, 0.0, Event{}.Percent())
	assert.Equal(t, 1.0, Event{Done: true}.Percent())
	assert.Equal(t, 0.5, Event{Worked: 1, Total: 2}.Percent())
	assert.Equal(t, 1.0, Event{Worked: 3, Total: 2}.Percent())
}

func TestHandleReportsBackgroundJob(t *testing.T) {
	r := NewRunner(context.Background())

	h := r.Schedule(Job{
		Name: "reindex",
		Run:  func(ctx context.Context, m Monitor) Status { return StatusOK },
	})

	assert.False(t, h.User())
	assert.Equal(t, OK, waitStatus(t, h).Code)
}
