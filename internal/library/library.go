// Package library implements the insertion-ordered sample exemplar
// store: a vector of (trace, sample, optional unique name) entries keyed
// by a RunTrace fingerprint, supporting exact-match find, upsert, naming,
// and coverage-weighted random draws.
package library

import (
	"errors"
	"math/rand"

	"github.com/aledsdavies/covfuzz/internal/sampletree"
	"github.com/aledsdavies/covfuzz/internal/tracer"
)

// ErrUnknownKey is returned by AddName when the key has no entry.
var ErrUnknownKey = errors.New("library: key not present")

// Entry is one exemplar: the sample that produced a given trace, plus an
// optional name assigned once it has a persisted crash/event artifact.
type Entry struct {
	Trace      *tracer.RunTrace
	Sample     *sampletree.Sample
	UniqueName string
}

// Library is a vector-backed store: an insertion-ordered entries slice
// plus an auxiliary key index, giving O(1) find/upsert. Linearize is O(n):
// it copies every entry's folded-bytes slice header into a fresh slice.
type Library struct {
	index   map[Key]int
	entries []*Entry

	classify func(*tracer.RunTrace) Key
	equal    func(a, b *tracer.RunTrace) bool
}

// New returns an empty library classified by full coverage trajectory: two
// runs are the same exemplar only if they hit the same functions the same
// saturating number of times and terminated the same way.
func New() *Library {
	return &Library{index: make(map[Key]int), classify: fingerprint, equal: traceEqual}
}

// NewExitCodeClassified returns an empty library classified only by
// termination outcome (exit code or signal), ignoring coverage entirely.
// This backs the `binary.interesting_codes` evaluator variant: every run
// producing a given exit code collapses to the same exemplar slot
// regardless of the path it took to get there.
func NewExitCodeClassified() *Library {
	return &Library{index: make(map[Key]int), classify: fingerprintByExitCode, equal: resultEqual}
}

// Find returns the entry whose trace matches t under this library's
// classification, or nil if none does. Fingerprint collisions are
// resolved by comparing under the same equality the library classifies
// with, so a hash collision never returns the wrong entry.
func (l *Library) Find(t *tracer.RunTrace) *Entry {
	key := l.classify(t)
	idx, ok := l.index[key]
	if !ok {
		return nil
	}
	entry := l.entries[idx]
	if !l.equal(entry.Trace, t) {
		return nil
	}
	return entry
}

// Upsert inserts a new exemplar, or replaces an existing one's trace and
// sample while leaving its UniqueName intact.
func (l *Library) Upsert(t *tracer.RunTrace, sample *sampletree.Sample) *Entry {
	key := l.classify(t)
	if idx, ok := l.index[key]; ok {
		entry := l.entries[idx]
		if l.equal(entry.Trace, t) {
			entry.Trace = t
			entry.Sample = sample
			return entry
		}
	}

	entry := &Entry{Trace: t, Sample: sample}
	l.index[key] = len(l.entries)
	l.entries = append(l.entries, entry)
	return entry
}

// AddName attaches or overrides the unique name for the entry matching t.
// It fails if no entry matches.
func (l *Library) AddName(t *tracer.RunTrace, name string) error {
	entry := l.Find(t)
	if entry == nil {
		return ErrUnknownKey
	}
	entry.UniqueName = name
	return nil
}

// PickRandom draws one exemplar, weighted by trajectory.len()+0.1 so
// every entry (even one with empty coverage) has nonzero weight.
func (l *Library) PickRandom(rng *rand.Rand) *sampletree.Sample {
	if len(l.entries) == 0 {
		return nil
	}

	total := 0.0
	weights := make([]float64, len(l.entries))
	for i, e := range l.entries {
		w := float64(len(e.Trace.Trajectory)) + 0.1
		weights[i] = w
		total += w
	}

	pick := rng.Float64() * total
	for i, w := range weights {
		if pick < w {
			return l.entries[i].Sample
		}
		pick -= w
	}
	return l.entries[len(l.entries)-1].Sample
}

// Linearize returns the folded bytes of every current exemplar, the view
// CopyFragment draws donor material from.
func (l *Library) Linearize() [][]byte {
	out := make([][]byte, len(l.entries))
	for i, e := range l.entries {
		out[i] = e.Sample.Bytes()
	}
	return out
}

// Len reports how many exemplars the library currently holds.
func (l *Library) Len() int { return len(l.entries) }
