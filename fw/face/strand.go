package face

import (
	"sync"
)

// Strand runs posted functions one at a time, in the order they were posted.
// Post never blocks: the pending queue is unbounded.
type Strand struct {
	mu      sync.Mutex
	tasks   []func()
	wake    chan struct{}
	stopped bool
	done    chan struct{}
}

// NewStrand creates a strand and starts its goroutine.
func NewStrand() *Strand {
	s := &Strand{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go s.run()
	return s
}

// Post schedules fn. It returns false if the strand is stopped.
func (s *Strand) Post(fn func()) bool {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return false
	}
	s.tasks = append(s.tasks, fn)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return true
}

// Sync runs fn on the strand and waits for it to return.
// It must not be called from the strand itself.
func (s *Strand) Sync(fn func()) bool {
	finished := make(chan struct{})
	if !s.Post(func() {
		defer close(finished)
		fn()
	}) {
		return false
	}
	<-finished
	return true
}

// Stop lets already posted functions run, then ends the strand goroutine.
// Later posts are rejected. Stop may be called from the strand itself.
func (s *Strand) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Done is closed once the strand goroutine has exited.
func (s *Strand) Done() <-chan struct{} {
	return s.done
}

func (s *Strand) run() {
	defer close(s.done)

	for {
		s.mu.Lock()
		tasks := s.tasks
		s.tasks = nil
		stopped := s.stopped
		s.mu.Unlock()

		for _, fn := range tasks {
			fn()
		}

		if len(tasks) > 0 {
			continue
		}
		if stopped {
			return
		}
		<-s.wake
	}
}
