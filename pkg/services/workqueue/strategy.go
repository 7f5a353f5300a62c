package workqueue

import "sync"

// ConcurrencyStrategy controls how many tasks may run at once.
// The strategy tracks running tasks; the queue asks it before starting one.
type ConcurrencyStrategy interface {
	CanStart() bool
	OnStart()
	OnComplete()
}

// LimitStrategy allows up to maxConcurrent tasks to run in parallel.
type LimitStrategy struct {
	mu            sync.Mutex
	maxConcurrent int
	running       int
}

// NewLimitStrategy creates a strategy with the given limit. Values below 1 mean 1.
func NewLimitStrategy(maxConcurrent int) *LimitStrategy {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &LimitStrategy{maxConcurrent: maxConcurrent}
}

// NewSerializedStrategy runs one task at a time.
func NewSerializedStrategy() *LimitStrategy {
	return NewLimitStrategy(1)
}

func (s *LimitStrategy) CanStart() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running < s.maxConcurrent
}

func (s *LimitStrategy) OnStart() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running++
}

func (s *LimitStrategy) OnComplete() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running > 0 {
		s.running--
	}
}

// Running returns the number of tasks currently counted as running.
func (s *LimitStrategy) Running() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

var _ ConcurrencyStrategy = (*LimitStrategy)(nil)
