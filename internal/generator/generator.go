// Package generator derives sampletree.TreeNode trees from a
// grammar.Grammar by recursively choosing random production alternatives
// under a depth budget.
package generator

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/aledsdavies/covfuzz/internal/grammar"
	"github.com/aledsdavies/covfuzz/internal/sampletree"
)

// Generator derives trees from a single validated grammar.
type Generator struct {
	grammar    *grammar.Grammar
	rng        *rand.Rand
	depthLimit int
}

// New builds a Generator. depthLimit bounds how many nested identifier
// expansions a single derivation may take before GenerateOfType gives up
// on a production and tries a different alternative (or fails).
func New(g *grammar.Grammar, rng *rand.Rand, depthLimit int) *Generator {
	if depthLimit <= 0 {
		depthLimit = 100
	}
	return &Generator{grammar: g, rng: rng, depthLimit: depthLimit}
}

// Generate derives a fresh tree rooted at the grammar's root production,
// retrying whole derivations until one fits inside the depth budget.
func (g *Generator) Generate() (*sampletree.TreeNode, error) {
	for {
		tree, err := g.GenerateOfType(grammar.RootProduction, g.depthLimit)
		if err == nil {
			return tree, nil
		}
		var gerr *Error
		if errors.As(err, &gerr) && gerr.Code == CodeUnknownProduction {
			// Retrying cannot fix a missing production.
			return nil, err
		}
	}
}

// GenerateOfType derives a tree rooted at the named production: draw a
// random alternative, attempt to expand each of its tokens at depth-1, and
// on failure redraw, up to depthLimit draws.
func (g *Generator) GenerateOfType(name string, remainingDepth int) (*sampletree.TreeNode, error) {
	alts, ok := g.grammar.Productions[name]
	if !ok {
		return nil, &Error{Code: CodeUnknownProduction, Message: fmt.Sprintf("no production named %q", name)}
	}
	if remainingDepth <= 0 {
		return nil, &Error{Code: CodeDepthExceeded, Message: fmt.Sprintf("depth limit reached expanding %q", name)}
	}

	var lastErr error
	for attempt := 0; attempt < g.depthLimit; attempt++ {
		idx := g.rng.Intn(len(alts))
		children, err := g.generateAlternative(alts[idx], remainingDepth-1)
		if err != nil {
			lastErr = err
			continue
		}
		return sampletree.NewProduction(name, idx, children), nil
	}
	return nil, lastErr
}

func (g *Generator) generateAlternative(alt grammar.Alternative, remainingDepth int) ([]*sampletree.TreeNode, error) {
	children := make([]*sampletree.TreeNode, 0, len(alt))
	for _, tok := range alt {
		child, err := g.generateToken(tok, remainingDepth)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return children, nil
}

func (g *Generator) generateToken(tok grammar.Token, remainingDepth int) (*sampletree.TreeNode, error) {
	switch tok.Kind {
	case grammar.KindLiteral:
		return sampletree.NewData(tok.Literal), nil
	case grammar.KindRegex:
		return sampletree.NewData(tok.Regex.Sample(g.rng)), nil
	case grammar.KindBytesRange:
		return sampletree.NewData(g.generateByteSequence(tok.Min, tok.Max)), nil
	case grammar.KindIdentifier:
		return g.GenerateOfType(tok.Identifier, remainingDepth)
	default:
		return nil, &Error{Code: CodeUnknownProduction, Message: "unrecognized token kind"}
	}
}

func (g *Generator) generateByteSequence(min, max int) []byte {
	n := min
	if max > min {
		n += g.rng.Intn(max - min + 1)
	}
	buf := make([]byte, n)
	g.rng.Read(buf)
	return buf
}
