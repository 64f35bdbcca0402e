package treelevel

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aledsdavies/covfuzz/internal/generator"
	"github.com/aledsdavies/covfuzz/internal/grammar"
	"github.com/aledsdavies/covfuzz/internal/sampletree"
)

func mustGrammar(t *testing.T, src string) *grammar.Grammar {
	t.Helper()
	g, err := grammar.ParseAndValidate(src)
	require.NoError(t, err)
	return g
}

func TestTreeRegrowReplacesASubtree(t *testing.T) {
	g := mustGrammar(t, `root -> "fixed-" name ; name -> "aaaa" | "bbbb" | "cccc" ;`)
	gen := generator.New(g, rand.New(rand.NewSource(1)), 10)

	tree, err := gen.Generate()
	require.NoError(t, err)
	sample := sampletree.NewSample(tree)

	regrow := TreeRegrow{Generator: gen, DepthLimit: 10, DescendRolls: 10, RegenerateRolls: 10}
	mutated, err := regrow.Mutate(rand.New(rand.NewSource(2)), sample)
	require.NoError(t, err)

	assert.Contains(t, string(mutated.Bytes()), "fixed-")
}

func TestTreeRegrowOnLeafOnlyTreeCannotMutate(t *testing.T) {
	tree := sampletree.NewData([]byte("leaf"))
	sample := sampletree.NewSample(tree)

	regrow := TreeRegrow{Generator: nil, DepthLimit: 10, DescendRolls: 5, RegenerateRolls: 5}
	_, err := regrow.Mutate(rand.New(rand.NewSource(3)), sample)
	assert.ErrorIs(t, err, ErrCannotMutate)
}

func TestResampleDiscardsInputEntirely(t *testing.T) {
	g := mustGrammar(t, `root -> "always-the-same" ;`)
	gen := generator.New(g, rand.New(rand.NewSource(4)), 10)

	tree, err := gen.Generate()
	require.NoError(t, err)
	sample := sampletree.NewSample(tree)

	resample := Resample{Generator: gen}
	out, err := resample.Mutate(rand.New(rand.NewSource(5)), sample)
	require.NoError(t, err)
	assert.Equal(t, "always-the-same", string(out.Bytes()))
}
