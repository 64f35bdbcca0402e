// Package fuzzer implements the pick/mutate/execute/classify loop. The
// seed and corpus snapshot are taken under the library lock, mutation and
// execution happen outside it, and the lock is reacquired only to classify
// the result.
package fuzzer

import (
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/aledsdavies/covfuzz/internal/library"
	"github.com/aledsdavies/covfuzz/internal/mutate"
	"github.com/aledsdavies/covfuzz/internal/sampletree"
	"github.com/aledsdavies/covfuzz/internal/state"
	"github.com/aledsdavies/covfuzz/internal/tracer"
)

// ErrEmptyLibrary is returned by RunOnce when there is no seed to mutate.
var ErrEmptyLibrary = errors.New("fuzzer: library has no seed to mutate")

// Status classifies a completed run against the library's existing
// exemplars.
type Status int

const (
	StatusNothing Status = iota
	StatusNew
	StatusSizeImprovement
)

// Result is what one fuzzer iteration produced.
type Result struct {
	Sample *sampletree.Sample
	Trace  *tracer.RunTrace
	Status Status
	Delta  int // meaningful only for StatusSizeImprovement
}

// Tracer is the subset of tracer.Tracer the fuzzer loop needs.
type Tracer interface {
	Run(input []byte) (*tracer.RunTrace, error)
}

// Mutator is the subset of mutate.Chooser the fuzzer loop needs. library
// is the linearization snapshot taken alongside the seed.
type Mutator interface {
	MutateSample(rng *rand.Rand, sample *sampletree.Sample, library [][]byte) (*sampletree.Sample, error)
	UpdateScores()
}

var _ Mutator = (*mutate.Chooser)(nil)

// Fuzzer ties a library, mutator, and tracer together. A single mutex
// guards the library; it is never held across a tracer.Run call or a
// mutator invocation, so a UI goroutine reading library state can always
// make progress.
type Fuzzer struct {
	libMu   sync.Mutex
	lib     *library.Library
	mutator Mutator
	tracer  Tracer
	state   *state.State
}

// New builds a Fuzzer over the given library, mutator, tracer, and shared
// counters state.
func New(lib *library.Library, mutator Mutator, tr Tracer, st *state.State) *Fuzzer {
	return &Fuzzer{lib: lib, mutator: mutator, tracer: tr, state: st}
}

// RunOnce performs one fuzzing iteration: pick a seed and a corpus
// snapshot under the library lock, mutate and execute outside the lock,
// then reacquire the lock only to classify and (if warranted) upsert the
// result.
func (f *Fuzzer) RunOnce(rng *rand.Rand) (*Result, error) {
	f.libMu.Lock()
	seed := f.lib.PickRandom(rng)
	snapshot := f.lib.Linearize()
	f.libMu.Unlock()
	if seed == nil {
		return nil, ErrEmptyLibrary
	}

	mutated, err := f.mutator.MutateSample(rng, seed, snapshot)
	if err != nil {
		return nil, err
	}

	trace, err := f.tracer.Run(mutated.Bytes())
	if err != nil {
		return nil, err
	}

	f.libMu.Lock()
	result := f.classify(mutated, trace)
	f.libMu.Unlock()

	f.mutator.UpdateScores()
	f.recordState(result)

	return result, nil
}

// PutSeed classifies sample without any mutation step, used to bootstrap
// the library from the grammar-generated initial sample or on-disk seed
// files.
func (f *Fuzzer) PutSeed(sample *sampletree.Sample) (*Result, error) {
	trace, err := f.tracer.Run(sample.Bytes())
	if err != nil {
		return nil, err
	}

	f.libMu.Lock()
	result := f.classify(sample, trace)
	f.libMu.Unlock()

	f.recordState(result)
	return result, nil
}

// classify must be called with libMu held.
func (f *Fuzzer) classify(sample *sampletree.Sample, trace *tracer.RunTrace) *Result {
	existing := f.lib.Find(trace)
	if existing == nil {
		f.lib.Upsert(trace, sample)
		return &Result{Sample: sample, Trace: trace, Status: StatusNew}
	}

	if sample.Size() < existing.Sample.Size() {
		delta := existing.Sample.Size() - sample.Size()
		f.lib.Upsert(trace, sample)
		return &Result{Sample: sample, Trace: trace, Status: StatusSizeImprovement, Delta: delta}
	}

	return &Result{Sample: sample, Trace: trace, Status: StatusNothing}
}

func (f *Fuzzer) recordState(result *Result) {
	trace := result.Trace
	isCrash := trace.Result.Kind == tracer.ResultSignal
	isNonzero := trace.Result.Kind == tracer.ResultCode && trace.Result.Code != 0
	isWorking := trace.Result.Kind == tracer.ResultCode && trace.Result.Code == 0
	isNew := result.Status == StatusNew
	isImprovement := result.Status == StatusSizeImprovement
	f.state.RecordRun(time.Now(), isCrash, isNonzero, isWorking, isNew, isImprovement)
}

// Library exposes the underlying library for crash persistence and seed
// bootstrapping callers that need direct read access (e.g. to fetch the
// entry a NewPath/SizeImprovement event refers to).
func (f *Fuzzer) Library() *library.Library { return f.lib }
