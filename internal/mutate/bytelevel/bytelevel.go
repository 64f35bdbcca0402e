// Package bytelevel holds the mutation operators that work on a sample's
// folded bytes. Each operator inspects the current buffer (and, for
// CopyFragment, a snapshot of the library's folded samples) and returns a
// sampletree.Patch describing the edit.
package bytelevel

import (
	"math/rand"

	"github.com/aledsdavies/covfuzz/internal/sampletree"
)

// Mutator produces a Patch against data, the folded bytes of the sample
// being mutated. library is the linearized snapshot of the current corpus;
// operators that do not draw on other samples ignore it.
type Mutator interface {
	Mutate(rng *rand.Rand, data []byte, library [][]byte) sampletree.Patch
}

// BitFlip flips a single random bit of a random byte.
type BitFlip struct{}

func (BitFlip) Mutate(rng *rand.Rand, data []byte, _ [][]byte) sampletree.Patch {
	if len(data) == 0 {
		return sampletree.Patch{Position: 0, Kind: sampletree.PatchReplacement, Content: []byte{1 << uint(rng.Intn(8))}}
	}
	pos := rng.Intn(len(data))
	bit := byte(1 << uint(rng.Intn(8)))
	return sampletree.Patch{
		Position: pos,
		Kind:     sampletree.PatchReplacement,
		Content:  []byte{data[pos] ^ bit},
	}
}

// Erasure removes a random-sized chunk starting at a random position.
type Erasure struct {
	MaxSize int
}

func (e Erasure) Mutate(rng *rand.Rand, data []byte, _ [][]byte) sampletree.Patch {
	if len(data) == 0 {
		return sampletree.Patch{Position: 0, Kind: sampletree.PatchErasure, Size: 1 + rng.Intn(maxOf(e.MaxSize, 1))}
	}
	pos := rng.Intn(len(data))
	maxSize := minInt(e.MaxSize, len(data)-pos)
	if maxSize < 1 {
		maxSize = 1
	}
	size := 1 + rng.Intn(maxSize)
	return sampletree.Patch{Position: pos, Kind: sampletree.PatchErasure, Size: size}
}

// knownByteVariants are the fixed magic values: single bytes plus 2/4/8-byte
// fills and the two 32-bit sign/flag masks.
var knownByteVariants = [][]byte{
	{0x00},
	{0xff},
	{0x7f},
	{0x01},
	{0xf0},
	{0x00, 0x00},
	{0xff, 0xff},
	{0x00, 0x00, 0x00, 0x00},
	{0xff, 0xff, 0xff, 0xff},
	{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
	{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
	{0x00, 0x00, 0x00, 0x80},
	{0x00, 0x00, 0x00, 0x40},
}

// KnownBytes replaces a random position with one of the fixed
// magic-value patterns, reversed with probability 1/2 to cover both
// endiannesses.
type KnownBytes struct{}

func (KnownBytes) Mutate(rng *rand.Rand, data []byte, _ [][]byte) sampletree.Patch {
	variant := append([]byte(nil), knownByteVariants[rng.Intn(len(knownByteVariants))]...)
	if rng.Intn(2) == 0 {
		reverse(variant)
	}

	pos := 0
	if len(data) > 0 {
		pos = rng.Intn(len(data))
	}
	return sampletree.Patch{Position: pos, Kind: sampletree.PatchReplacement, Content: variant}
}

// Garbage replaces a random-sized chunk with independently uniform
// random bytes.
type Garbage struct {
	MaxSize int
}

func (g Garbage) Mutate(rng *rand.Rand, data []byte, _ [][]byte) sampletree.Patch {
	size := 1 + rng.Intn(maxOf(g.MaxSize, 1))
	content := make([]byte, size)
	rng.Read(content)

	pos := 0
	if len(data) > 0 {
		pos = rng.Intn(len(data))
	}
	return sampletree.Patch{Position: pos, Kind: sampletree.PatchReplacement, Content: content}
}

// CopyFragment carves a slice out of another library exemplar and
// inserts it into the current input. If the library snapshot holds no
// non-empty sample, it emits an empty Replacement at offset 0, a
// deliberate no-op.
type CopyFragment struct {
	MaxSize int
}

func (c CopyFragment) Mutate(rng *rand.Rand, data []byte, library [][]byte) sampletree.Patch {
	var candidates [][]byte
	for _, s := range library {
		if len(s) > 0 {
			candidates = append(candidates, s)
		}
	}
	if len(candidates) == 0 {
		return sampletree.Patch{Position: 0, Kind: sampletree.PatchReplacement, Content: nil}
	}

	donor := candidates[rng.Intn(len(candidates))]
	size := 1 + rng.Intn(minInt(len(donor), maxOf(c.MaxSize, 1)))
	start := rng.Intn(len(donor) - size + 1)
	fragment := append([]byte(nil), donor[start:start+size]...)

	pos := 0
	if len(data) > 0 {
		pos = rng.Intn(len(data) + 1)
	}
	return sampletree.Patch{Position: pos, Kind: sampletree.PatchInsertion, Content: fragment}
}

func reverse(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxOf(a, b int) int {
	if a > b {
		return a
	}
	return b
}
