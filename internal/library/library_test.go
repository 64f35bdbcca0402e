package library

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aledsdavies/covfuzz/internal/sampletree"
	"github.com/aledsdavies/covfuzz/internal/tracer"
)

func trace(code int32, trajectory map[uint64]tracer.Hits) *tracer.RunTrace {
	return &tracer.RunTrace{Result: tracer.Result{Kind: tracer.ResultCode, Code: code}, Trajectory: trajectory}
}

func sample(bytes string) *sampletree.Sample {
	return sampletree.NewSample(sampletree.NewData([]byte(bytes)))
}

func TestUpsertThenFindExactMatch(t *testing.T) {
	lib := New()
	tr := trace(0, map[uint64]tracer.Hits{0x10: tracer.HitsOnce})
	lib.Upsert(tr, sample("a"))

	found := lib.Find(trace(0, map[uint64]tracer.Hits{0x10: tracer.HitsOnce}))
	require.NotNil(t, found)
	assert.Equal(t, "a", string(found.Sample.Bytes()))
}

func TestFindMissesOnDifferentTrajectory(t *testing.T) {
	lib := New()
	lib.Upsert(trace(0, map[uint64]tracer.Hits{0x10: tracer.HitsOnce}), sample("a"))

	found := lib.Find(trace(0, map[uint64]tracer.Hits{0x10: tracer.HitsTwice}))
	assert.Nil(t, found)
}

func TestUpsertReplacesSampleButKeepsName(t *testing.T) {
	lib := New()
	tr := trace(0, map[uint64]tracer.Hits{0x10: tracer.HitsOnce})
	lib.Upsert(tr, sample("a"))
	require.NoError(t, lib.AddName(tr, "deadbeef0000"))

	lib.Upsert(trace(0, map[uint64]tracer.Hits{0x10: tracer.HitsOnce}), sample("b"))

	found := lib.Find(tr)
	require.NotNil(t, found)
	assert.Equal(t, "b", string(found.Sample.Bytes()))
	assert.Equal(t, "deadbeef0000", found.UniqueName)
}

func TestAddNameFailsForUnknownKey(t *testing.T) {
	lib := New()
	err := lib.AddName(trace(0, nil), "x")
	assert.ErrorIs(t, err, ErrUnknownKey)
}

func TestPickRandomOnEmptyLibraryReturnsNil(t *testing.T) {
	lib := New()
	assert.Nil(t, lib.PickRandom(rand.New(rand.NewSource(1))))
}

func TestPickRandomAlwaysReturnsAnExemplar(t *testing.T) {
	lib := New()
	lib.Upsert(trace(0, nil), sample("a")) // zero-coverage entry, weight 0.1
	lib.Upsert(trace(1, map[uint64]tracer.Hits{0x1: tracer.HitsOnce, 0x2: tracer.HitsOnce}), sample("b"))

	rng := rand.New(rand.NewSource(2))
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		seen[string(lib.PickRandom(rng).Bytes())] = true
	}
	assert.True(t, seen["a"] || seen["b"])
}

func TestLinearizeReflectsCurrentExemplars(t *testing.T) {
	lib := New()
	lib.Upsert(trace(0, nil), sample("a"))
	lib.Upsert(trace(1, nil), sample("b"))

	linear := lib.Linearize()
	require.Len(t, linear, 2)
	assert.Equal(t, "a", string(linear[0]))
	assert.Equal(t, "b", string(linear[1]))
}

func TestExitCodeClassifiedLibraryIgnoresTrajectory(t *testing.T) {
	lib := NewExitCodeClassified()
	lib.Upsert(trace(7, map[uint64]tracer.Hits{0x10: tracer.HitsOnce}), sample("a"))

	found := lib.Find(trace(7, map[uint64]tracer.Hits{0x20: tracer.HitsTwice, 0x30: tracer.HitsMany}))
	require.NotNil(t, found)
	assert.Equal(t, "a", string(found.Sample.Bytes()))
}

func TestExitCodeClassifiedLibraryDistinguishesDifferentCodes(t *testing.T) {
	lib := NewExitCodeClassified()
	lib.Upsert(trace(7, nil), sample("a"))

	found := lib.Find(trace(8, nil))
	assert.Nil(t, found)
}
