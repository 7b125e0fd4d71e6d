package player

import (
	"context"
	"fmt"
	"sync"

	"github.com/asticode/go-astikit"
)

type Status uint32

// Must be in order of execution
const (
	StatusCreated Status = iota
	StatusStarting
	StatusRunning
	StatusStopping
	StatusDone
)

func (s Status) String() string {
	switch s {
	case StatusCreated:
		return "created"
	case StatusStarting:
		return "starting"
	case StatusRunning:
		return "running"
	case StatusStopping:
		return "stopping"
	default:
		return "done"
	}
}

const (
	eventNameTaskClosed   astikit.EventName = "player.task.closed"
	eventNameTaskDone     astikit.EventName = "player.task.done"
	eventNameTaskRunning  astikit.EventName = "player.task.running"
	eventNameTaskStarting astikit.EventName = "player.task.starting"
	eventNameTaskStopping astikit.EventName = "player.task.stopping"
)

// task drives the player lifecycle: created, starting, running, stopping then done
type task struct {
	c       *astikit.Closer
	cancel  context.CancelFunc
	ctx     context.Context
	e       *astikit.EventManager
	m       sync.Mutex // Locks s
	onStart func(ctx context.Context, tc astikit.TaskCreator)
	onStop  func()
	s       Status
	t       *astikit.Task
}

func newTask(c *astikit.Closer, onStart func(ctx context.Context, tc astikit.TaskCreator), onStop func()) *task {
	t := &task{
		c:       c,
		ctx:     context.Background(),
		e:       astikit.NewEventManager(),
		onStart: onStart,
		onStop:  onStop,
	}

	// Make sure context is cancelled
	t.c.Add(func() {
		if t.cancel != nil {
			t.cancel()
		}
	})

	// Emit closed event
	t.c.OnClosed(func(err error) { t.e.Emit(eventNameTaskClosed, nil) })
	return t
}

func (t *task) status() Status {
	t.m.Lock()
	defer t.m.Unlock()
	return t.s
}

func (t *task) context() context.Context {
	t.m.Lock()
	defer t.m.Unlock()
	return t.ctx
}

func (t *task) start(ctx context.Context, tc astikit.TaskCreator) error {
	// Lock
	t.m.Lock()

	// Invalid status
	if t.s != StatusCreated {
		t.m.Unlock()
		return fmt.Errorf("player: invalid status %s", t.s)
	}

	// Check context
	if err := ctx.Err(); err != nil {
		t.m.Unlock()
		return err
	}

	// Update task
	t.t = tc()
	t.ctx, t.cancel = context.WithCancel(ctx)
	t.s = StatusStarting
	t.m.Unlock()

	//!\\ Mutex must be unlocked from here on since callbacks may need it

	// Emit
	t.e.Emit(eventNameTaskStarting, nil)

	// Callback
	if t.onStart != nil {
		t.onStart(t.ctx, t.t.NewSubTask)
	}

	// Update status
	t.m.Lock()
	t.s = StatusRunning
	t.m.Unlock()

	// Emit
	t.e.Emit(eventNameTaskRunning, nil)

	// Done status must only be set once every sub task is done, which Do() can't provide
	go func() {
		// Wait for context
		<-t.ctx.Done()

		// Make sure stopping has been processed
		t.m.Lock()
		if t.s == StatusRunning {
			t.stopUnlocked()
		} else {
			t.m.Unlock()
		}

		// Wait for sub tasks
		t.t.Wait()

		// Close
		t.c.Close()

		// Update status
		t.m.Lock()
		t.s = StatusDone
		t.m.Unlock()

		// Emit
		t.e.Emit(eventNameTaskDone, nil)

		// Task is done
		t.t.Done()
	}()
	return nil
}

func (t *task) stop() error {
	// Lock
	t.m.Lock()

	// Invalid status
	if s := t.s; s != StatusRunning {
		t.m.Unlock()
		if s == StatusStopping || s == StatusDone {
			return nil
		}
		return fmt.Errorf("player: invalid status %s", s)
	}

	// Stop
	t.stopUnlocked()
	return nil
}

// Assumes m is locked, unlocks it
func (t *task) stopUnlocked() {
	// Update status
	t.s = StatusStopping
	t.m.Unlock()

	// Emit
	t.e.Emit(eventNameTaskStopping, nil)

	// Cancel context
	if t.cancel != nil {
		t.cancel()
	}

	// Callback
	if t.onStop != nil {
		t.onStop()
	}
}
