// Package state implements the shared counters and execution-rate ring
// buffer: everything the fuzz worker and an optional UI goroutine both
// touch, guarded by a single mutex that is never held across a blocking
// execution or mutation.
package state

import (
	"sync"
	"sync/atomic"
	"time"
)

const executionRingCapacity = 512

// State is the shared counters object. All fields are guarded by mu
// except Running, which is a separate atomic so a signal handler can flip
// it without taking the lock.
type State struct {
	mu sync.Mutex

	tested       uint64
	improvements uint64
	crashes      uint64
	nonzero      uint64
	working      uint64

	startTime       time.Time
	lastNewPath     time.Time
	lastUniqueCrash time.Time

	executions []time.Time // ring buffer, oldest overwritten first
	ringPos    int
	ringFull   bool

	running atomic.Bool
}

// New returns a State with its start time set to now and Running true.
func New(now time.Time) *State {
	s := &State{
		startTime:  now,
		executions: make([]time.Time, executionRingCapacity),
	}
	s.running.Store(true)
	return s
}

// Running reports whether the fuzz worker should keep looping.
func (s *State) Running() bool { return s.running.Load() }

// Stop sets Running to false; called from a SIGINT handler or on UI exit.
func (s *State) Stop() { s.running.Store(false) }

// RecordRun updates counters for one completed run. isCrash distinguishes
// a Signal result from a merely nonzero exit code; isNew and isImprovement
// carry the run's library classification.
func (s *State) RecordRun(now time.Time, isCrash, isNonzero, isWorking, isNew, isImprovement bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tested++
	if isCrash {
		s.crashes++
	}
	if isNonzero {
		s.nonzero++
	}
	if isWorking {
		s.working++
	}
	if isNew {
		s.lastNewPath = now
		if isCrash {
			s.lastUniqueCrash = now
		}
	}
	if isImprovement {
		s.improvements++
	}

	s.executions[s.ringPos] = now
	s.ringPos = (s.ringPos + 1) % len(s.executions)
	if s.ringPos == 0 {
		s.ringFull = true
	}
}

// Snapshot is an immutable copy of the counters, safe to read after the
// lock is released (the UI thread's frame-assembly use case).
type Snapshot struct {
	Tested          uint64
	Improvements    uint64
	Crashes         uint64
	Nonzero         uint64
	Working         uint64
	StartTime       time.Time
	LastNewPath     time.Time
	LastUniqueCrash time.Time
	RecentExecs     []time.Time
}

// Snapshot copies the current counters and ring buffer contents.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	var recent []time.Time
	if s.ringFull {
		recent = make([]time.Time, len(s.executions))
		copy(recent, s.executions[s.ringPos:])
		copy(recent[len(s.executions)-s.ringPos:], s.executions[:s.ringPos])
	} else {
		recent = append([]time.Time(nil), s.executions[:s.ringPos]...)
	}

	return Snapshot{
		Tested:          s.tested,
		Improvements:    s.improvements,
		Crashes:         s.crashes,
		Nonzero:         s.nonzero,
		Working:         s.working,
		StartTime:       s.startTime,
		LastNewPath:     s.lastNewPath,
		LastUniqueCrash: s.lastUniqueCrash,
		RecentExecs:     recent,
	}
}
