// Package task models the progress object a host attaches to each dataset.
// The plugin drives it; observers (UI, RPC, logs) read snapshots.
package task

import (
	"sync"

	"pointconv/internal/logging"
	"pointconv/internal/telemetry"
)

type Status int

const (
	Idle Status = iota
	Running
	Finished
	Aborted
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Finished:
		return "finished"
	case Aborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Snapshot is an immutable copy of a task's state.
type Snapshot struct {
	Name        string
	Description string
	Status      Status
	Progress    float32
}

type Task struct {
	owner string

	mu        sync.Mutex
	state     Snapshot
	observers []func(Snapshot)
}

// New returns an idle task; owner only labels log lines.
func New(owner string) *Task {
	return &Task{owner: owner}
}

func (t *Task) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Observe registers fn for every subsequent change. fn runs on the caller's
// goroutine after the task lock is released. A dataset's task changes while
// the dataset's write lease is held, so fn must not read that dataset: its
// readers block until the lease is released. Read it from the host's change
// notification instead, which fires after the lease is released.
func (t *Task) Observe(fn func(Snapshot)) {
	t.mu.Lock()
	t.observers = append(t.observers, fn)
	t.mu.Unlock()
}

func (t *Task) SetName(name string) {
	t.update(func(s *Snapshot) bool {
		if s.Name == name {
			return false
		}
		s.Name = name
		return true
	})
}

func (t *Task) SetProgressDescription(desc string) {
	t.update(func(s *Snapshot) bool {
		if s.Description == desc {
			return false
		}
		s.Description = desc
		return true
	})
}

// SetRunning starts a run with progress reset to zero.
func (t *Task) SetRunning() {
	t.transition(Running, func(s *Snapshot) { s.Progress = 0 })
}

// SetProgress clamps fraction to [0,1]; while running it never moves backwards.
func (t *Task) SetProgress(fraction float32) {
	if fraction != fraction || fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	t.update(func(s *Snapshot) bool {
		if s.Status == Running && fraction < s.Progress {
			return false
		}
		if fraction == s.Progress {
			return false
		}
		s.Progress = fraction
		return true
	})
}

func (t *Task) SetFinished() {
	t.transition(Finished, func(s *Snapshot) { s.Progress = 1 })
}

func (t *Task) SetAborted() {
	t.transition(Aborted, nil)
}

func (t *Task) transition(to Status, mutate func(*Snapshot)) {
	var from Status
	changed := t.update(func(s *Snapshot) bool {
		from = s.Status
		if from == to && to != Running {
			return false
		}
		s.Status = to
		if mutate != nil {
			mutate(s)
		}
		return true
	})
	if !changed {
		return
	}
	if from == Running && to != Running {
		telemetry.TasksRunning.Dec()
	}
	if to == Running && from != Running {
		telemetry.TasksRunning.Inc()
	}
	telemetry.TaskTransitions.WithLabelValues(to.String()).Inc()
	logging.L().Debug("task state", "owner", t.owner, "from", from.String(), "to", to.String())
}

func (t *Task) update(fn func(*Snapshot) bool) bool {
	t.mu.Lock()
	if !fn(&t.state) {
		t.mu.Unlock()
		return false
	}
	snap := t.state
	obs := append([]func(Snapshot){}, t.observers...)
	t.mu.Unlock()

	for _, o := range obs {
		o(snap)
	}
	return true
}
