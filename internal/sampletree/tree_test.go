package sampletree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildHelloTree() *TreeNode {
	// root -> "hello " name ; name -> "world"
	name := NewProduction("name", 0, []*TreeNode{NewData([]byte("world"))})
	root := NewProduction("root", 0, []*TreeNode{NewData([]byte("hello ")), name})
	return root
}

func TestFoldSetsSpansBottomUp(t *testing.T) {
	root := buildHelloTree()
	s := NewSample(root)

	assert.Equal(t, "hello world", string(s.Bytes()))
	assert.Equal(t, 0, root.Start)
	assert.Equal(t, 11, root.Size)

	sumChildren := 0
	for _, c := range root.Children {
		sumChildren += c.Size
	}
	assert.Equal(t, root.Size, sumChildren)
}

func TestApplyPatchReplacementOverwritesInPlace(t *testing.T) {
	s := NewSample(buildHelloTree())

	patched, err := s.ApplyPatch(Patch{Position: 6, Kind: PatchReplacement, Content: []byte("WORLD")})
	require.NoError(t, err)
	assert.Equal(t, "hello WORLD", string(patched.Bytes()))
	assert.Equal(t, "hello world", string(s.Bytes())) // receiver untouched
}

func TestApplyPatchReplacementSpanningTwoTerminals(t *testing.T) {
	s := NewSample(buildHelloTree())

	patched, err := s.ApplyPatch(Patch{Position: 4, Kind: PatchReplacement, Content: []byte("XXXXX")})
	require.NoError(t, err)
	assert.Equal(t, "hellXXXXXld", string(patched.Bytes()))
}

func TestApplyPatchErasureShrinksTerminal(t *testing.T) {
	s := NewSample(buildHelloTree())

	patched, err := s.ApplyPatch(Patch{Position: 6, Kind: PatchErasure, Size: 3})
	require.NoError(t, err)
	assert.Equal(t, "hello ld", string(patched.Bytes()))
}

func TestApplyPatchInsertionLengthensContainingTerminal(t *testing.T) {
	s := NewSample(buildHelloTree())

	patched, err := s.ApplyPatch(Patch{Position: 8, Kind: PatchInsertion, Content: []byte("!!!")})
	require.NoError(t, err)
	assert.Equal(t, "hello wo!!!rld", string(patched.Bytes()))
}

func TestApplyPatchInsertionAtEndOfBufferAppendsToLastTerminal(t *testing.T) {
	s := NewSample(buildHelloTree())

	patched, err := s.ApplyPatch(Patch{Position: 11, Kind: PatchInsertion, Content: []byte("!")})
	require.NoError(t, err)
	assert.Equal(t, "hello world!", string(patched.Bytes()))
}

func TestApplyPatchOnEmptyTreeErrors(t *testing.T) {
	root := NewProduction("root", 0, nil)
	s := NewSample(root)

	_, err := s.ApplyPatch(Patch{Position: 0, Kind: PatchInsertion, Content: []byte("x")})
	require.Error(t, err)

	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, CodeEmptyTree, e.Code)
}

func TestCloneIsIndependentOfOriginal(t *testing.T) {
	root := buildHelloTree()
	clone := root.Clone()
	clone.Children[0].Data[0] = 'H'

	assert.Equal(t, byte('h'), root.Children[0].Data[0])
	assert.Equal(t, byte('H'), clone.Children[0].Data[0])
}

func TestProductionNodesReportsDepth(t *testing.T) {
	root := buildHelloTree()
	NewSample(root)

	nodes := root.ProductionNodes()
	require.Len(t, nodes, 2)
	assert.Equal(t, "root", nodes[0].Node.RuleName)
	assert.Equal(t, 0, nodes[0].Depth)
	assert.Equal(t, "name", nodes[1].Node.RuleName)
	assert.Equal(t, 1, nodes[1].Depth)
}
