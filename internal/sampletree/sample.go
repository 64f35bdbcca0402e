package sampletree

// Sample bundles a generated tree with its folded byte representation.
// The folded bytes are cached at construction and after every patch
// application so callers never re-fold needlessly.
type Sample struct {
	tree   *TreeNode
	folded []byte
}

// NewSample folds tree and returns the resulting Sample. tree is not
// mutated by later patches applied through the returned Sample — each
// ApplyPatch clones first.
func NewSample(tree *TreeNode) *Sample {
	s := &Sample{tree: tree}
	s.refold()
	return s
}

func (s *Sample) refold() {
	var buf []byte
	s.tree.Fold(&buf)
	s.folded = buf
}

// Tree returns the underlying parse tree. Callers must not mutate it;
// use ApplyPatch to derive a new Sample instead.
func (s *Sample) Tree() *TreeNode { return s.tree }

// Bytes returns the folded byte sequence this sample represents.
func (s *Sample) Bytes() []byte { return s.folded }

// Size is the folded byte length, the minimization target library
// comparisons use.
func (s *Sample) Size() int { return len(s.folded) }

// ApplyPatch returns a new Sample reflecting p applied against this
// sample's terminals, without mutating the receiver. Replacement and
// Erasure affect every terminal whose span overlaps the patch interval;
// Insertion affects only the first terminal whose span contains the
// insertion offset (or the final terminal, if the offset is exactly at
// the end of the buffer).
func (s *Sample) ApplyPatch(p Patch) (*Sample, error) {
	clone := s.tree.Clone()
	terms := clone.terminals()
	if len(terms) == 0 {
		return nil, &Error{Code: CodeEmptyTree, Message: "cannot patch a tree with no terminals"}
	}

	for i, t := range terms {
		applyPatchToTerminal(t, t.Start, p, i == len(terms)-1)
	}

	return NewSample(clone), nil
}
