package syncengine

import "example.com/fittracker/internal/domain"

// Task is the handle on one detached reconciliation. The optimistic commit has
// already happened by the time a Task is returned; waiting on it is optional.
type Task[P any] struct {
	done    chan struct{}
	outcome domain.Outcome[P]
}

func newTask[P any]() *Task[P] {
	return &Task[P]{done: make(chan struct{})}
}

func completedTask[P any](outcome domain.Outcome[P]) *Task[P] {
	t := newTask[P]()
	t.complete(outcome)
	return t
}

func (t *Task[P]) complete(outcome domain.Outcome[P]) {
	t.outcome = outcome
	close(t.done)
}

// Done is closed once the reconciliation has finished.
func (t *Task[P]) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the reconciliation has finished and returns its outcome.
func (t *Task[P]) Wait() domain.Outcome[P] {
	<-t.done
	return t.outcome
}
