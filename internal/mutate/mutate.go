// Package mutate selects between the tree- and byte-level mutation
// families and wires the concrete operator set with its constant
// parameters.
package mutate

import (
	"errors"
	"math/rand"

	"github.com/aledsdavies/covfuzz/internal/generator"
	"github.com/aledsdavies/covfuzz/internal/mutate/bytelevel"
	"github.com/aledsdavies/covfuzz/internal/mutate/treelevel"
	"github.com/aledsdavies/covfuzz/internal/sampletree"
)

// treePreference is the probability the selector tries a tree mutator
// before falling back to byte mutators.
const treePreference = 0.7

// Chooser picks at random between the byte- and tree-level operator pools,
// retrying selection when the picked tree mutator reports it cannot act.
type Chooser struct {
	Byte []bytelevel.Mutator
	Tree []treelevel.Mutator
}

// New wires the full operator set: BitFlip, Erasure, KnownBytes, Garbage,
// and CopyFragment among the byte mutators, plus TreeRegrow/Resample among
// the tree mutators. gen is nil in on-disk-seeds mode, where there is no
// grammar to regrow or resample from; the Chooser then falls back to byte
// mutators exclusively.
func New(gen *generator.Generator) *Chooser {
	c := &Chooser{
		Byte: []bytelevel.Mutator{
			bytelevel.BitFlip{},
			bytelevel.Erasure{MaxSize: 50},
			bytelevel.KnownBytes{},
			bytelevel.Garbage{MaxSize: 50},
			bytelevel.CopyFragment{MaxSize: 50},
		},
	}
	if gen != nil {
		c.Tree = []treelevel.Mutator{
			treelevel.TreeRegrow{Generator: gen, DepthLimit: 100, DescendRolls: 10, RegenerateRolls: 10},
			treelevel.Resample{Generator: gen},
		}
	}
	return c
}

// AddByteMutator appends an additional byte-level operator to the pool.
func (c *Chooser) AddByteMutator(m bytelevel.Mutator) {
	c.Byte = append(c.Byte, m)
}

// MutateSample applies one randomly-chosen mutator to sample and returns
// the result. library is the corpus linearization snapshot byte mutators
// may draw donor material from. Tree mutators are preferred with
// probability 0.7. If the tree family is chosen but empty, a byte mutator
// is used instead; if the byte family is chosen but empty, or the chosen
// tree mutator reports it cannot act, the selection is rolled again.
func (c *Chooser) MutateSample(rng *rand.Rand, sample *sampletree.Sample, library [][]byte) (*sampletree.Sample, error) {
	for {
		useTree := rng.Float64() < treePreference
		if useTree && len(c.Tree) > 0 {
			out, err := c.Tree[rng.Intn(len(c.Tree))].Mutate(rng, sample)
			if errors.Is(err, treelevel.ErrCannotMutate) {
				continue
			}
			return out, err
		}

		if len(c.Byte) == 0 {
			continue
		}
		patch := c.Byte[rng.Intn(len(c.Byte))].Mutate(rng, sample.Bytes(), library)
		return sample.ApplyPatch(patch)
	}
}

// UpdateScores is a hook for future per-operator bandit feedback; it is
// presently a no-op.
func (c *Chooser) UpdateScores() {}
