// Package treelevel holds the structural mutation operators: TreeRegrow,
// which replaces a random subtree with a freshly generated one of the
// same rule, and Resample, which discards the input entirely.
package treelevel

import (
	"errors"
	"math/rand"

	"github.com/aledsdavies/covfuzz/internal/sampletree"
)

// ErrCannotMutate signals a tree mutator found nothing it could act on
// (e.g. a tree with no production nodes); the selector then rolls its
// choice of operator again.
var ErrCannotMutate = errors.New("tree mutator cannot act on this sample")

// Generator is the subset of generator.Generator tree mutators need.
type Generator interface {
	Generate() (*sampletree.TreeNode, error)
	GenerateOfType(name string, remainingDepth int) (*sampletree.TreeNode, error)
}

// Mutator produces a new Sample from an existing one, or ErrCannotMutate.
type Mutator interface {
	Mutate(rng *rand.Rand, s *sampletree.Sample) (*sampletree.Sample, error)
}

// TreeRegrow selects a random production-application subtree at depth d
// and replaces it with a freshly generated subtree of the same rule,
// budgeted to DepthLimit-d, retrying across RegenerateRolls generation
// attempts and DescendRolls different subtree choices.
type TreeRegrow struct {
	Generator       Generator
	DepthLimit      int
	DescendRolls    int
	RegenerateRolls int
}

func (t TreeRegrow) Mutate(rng *rand.Rand, s *sampletree.Sample) (*sampletree.Sample, error) {
	clone := s.Tree().Clone()
	nodes := clone.ProductionNodes()
	if len(nodes) == 0 {
		return nil, ErrCannotMutate
	}

	order := rng.Perm(len(nodes))
	rolls := t.DescendRolls
	if rolls > len(order) {
		rolls = len(order)
	}

	for i := 0; i < rolls; i++ {
		pick := nodes[order[i]]
		budget := t.DepthLimit - pick.Depth
		if budget <= 0 {
			continue
		}

		fresh, err := t.regenerate(pick.Node.RuleName, budget)
		if err != nil {
			continue
		}

		*pick.Node = *fresh
		return sampletree.NewSample(clone), nil
	}

	return nil, ErrCannotMutate
}

func (t TreeRegrow) regenerate(ruleName string, budget int) (*sampletree.TreeNode, error) {
	var lastErr error
	for i := 0; i < t.RegenerateRolls; i++ {
		fresh, err := t.Generator.GenerateOfType(ruleName, budget)
		if err == nil {
			return fresh, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// Resample discards the input and returns a wholly fresh derivation.
type Resample struct {
	Generator Generator
}

func (r Resample) Mutate(rng *rand.Rand, s *sampletree.Sample) (*sampletree.Sample, error) {
	tree, err := r.Generator.Generate()
	if err != nil {
		return nil, err
	}
	return sampletree.NewSample(tree), nil
}
