package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewStateStartsRunning(t *testing.T) {
	s := New(time.Now())
	assert.True(t, s.Running())
}

func TestStopClearsRunning(t *testing.T) {
	s := New(time.Now())
	s.Stop()
	assert.False(t, s.Running())
}

func TestRecordRunUpdatesCountersMonotonically(t *testing.T) {
	s := New(time.Now())
	now := time.Now()

	s.RecordRun(now, true, true, true, true, false)
	snap := s.Snapshot()
	assert.EqualValues(t, 1, snap.Tested)
	assert.EqualValues(t, 1, snap.Crashes)
	assert.EqualValues(t, 1, snap.Nonzero)
	assert.EqualValues(t, 1, snap.Working)
	assert.EqualValues(t, 0, snap.Improvements)
	assert.Equal(t, now, snap.LastNewPath)
	assert.Equal(t, now, snap.LastUniqueCrash)

	s.RecordRun(now.Add(time.Second), false, false, false, false, true)
	snap = s.Snapshot()
	assert.EqualValues(t, 2, snap.Tested)
	assert.EqualValues(t, 1, snap.Crashes) // unchanged
	assert.EqualValues(t, 1, snap.Improvements)
	assert.Equal(t, now, snap.LastUniqueCrash) // only a new crash moves it
}

func TestExecutionRingWrapsAtCapacity(t *testing.T) {
	s := New(time.Now())
	base := time.Now()
	for i := 0; i < executionRingCapacity+10; i++ {
		s.RecordRun(base.Add(time.Duration(i)*time.Millisecond), false, false, false, false, false)
	}

	snap := s.Snapshot()
	assert.Len(t, snap.RecentExecs, executionRingCapacity)
	// oldest entries should have been overwritten: the earliest surviving
	// timestamp corresponds to iteration 10, not iteration 0.
	assert.True(t, snap.RecentExecs[0].After(base.Add(9*time.Millisecond)))
}
