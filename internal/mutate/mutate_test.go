package mutate

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aledsdavies/covfuzz/internal/generator"
	"github.com/aledsdavies/covfuzz/internal/grammar"
	"github.com/aledsdavies/covfuzz/internal/sampletree"
)

func TestMutateSampleAlwaysReturnsAValidSample(t *testing.T) {
	g, err := grammar.ParseAndValidate(`root -> "seed-" name ; name -> "aaaa" | "bbbb" ;`)
	require.NoError(t, err)
	gen := generator.New(g, rand.New(rand.NewSource(1)), 10)

	tree, err := gen.Generate()
	require.NoError(t, err)
	sample := sampletree.NewSample(tree)

	chooser := New(gen)
	rng := rand.New(rand.NewSource(2))

	for i := 0; i < 100; i++ {
		out, err := chooser.MutateSample(rng, sample, nil)
		require.NoError(t, err)
		assert.NotNil(t, out)
	}
}

func TestMutateSampleFallsBackWhenTreePoolEmpty(t *testing.T) {
	chooser := &Chooser{Tree: nil}
	chooser.AddByteMutator(byteConst{[]byte("x")})

	sample := sampletree.NewSample(sampletree.NewData([]byte("a")))
	out, err := chooser.MutateSample(rand.New(rand.NewSource(3)), sample, nil)
	require.NoError(t, err)
	assert.Equal(t, "x", string(out.Bytes()))
}

func TestMutateSampleHandsSnapshotToByteMutators(t *testing.T) {
	var got [][]byte
	chooser := &Chooser{Tree: nil}
	chooser.AddByteMutator(snapshotSpy{&got})

	snapshot := [][]byte{[]byte("donor")}
	sample := sampletree.NewSample(sampletree.NewData([]byte("a")))
	_, err := chooser.MutateSample(rand.New(rand.NewSource(4)), sample, snapshot)
	require.NoError(t, err)
	assert.Equal(t, snapshot, got)
}

type byteConst struct{ content []byte }

func (b byteConst) Mutate(rng *rand.Rand, data []byte, _ [][]byte) sampletree.Patch {
	return sampletree.Patch{Position: 0, Kind: sampletree.PatchReplacement, Content: b.content}
}

type snapshotSpy struct{ got *[][]byte }

func (s snapshotSpy) Mutate(rng *rand.Rand, data []byte, library [][]byte) sampletree.Patch {
	*s.got = library
	return sampletree.Patch{Position: 0, Kind: sampletree.PatchReplacement, Content: []byte("y")}
}
