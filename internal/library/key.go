package library

import (
	"encoding/binary"
	"sort"

	"golang.org/x/crypto/blake2b"

	"github.com/aledsdavies/covfuzz/internal/tracer"
)

// Key is a comparable fingerprint of a tracer.RunTrace, suitable for use
// as a map key. Two traces with the same Key are assumed identical, but
// every entry also retains its full RunTrace (see Library.Find) so an
// accidental hash collision never silently merges two distinct coverage
// traces.
type Key [blake2b.Size256]byte

// fingerprint hashes a trace's result and sorted (offset, bucket)
// trajectory, so equal trajectories hash equally regardless of the
// nondeterministic order Go map iteration would otherwise produce.
func fingerprint(t *tracer.RunTrace) Key {
	type pair struct {
		offset uint64
		hits   tracer.Hits
	}
	pairs := make([]pair, 0, len(t.Trajectory))
	for off, h := range t.Trajectory {
		pairs = append(pairs, pair{off, h})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].offset < pairs[j].offset })

	h, _ := blake2b.New256(nil)
	var hdr [9]byte
	hdr[0] = byte(t.Result.Kind)
	binary.LittleEndian.PutUint32(hdr[1:5], uint32(t.Result.Code))
	h.Write(hdr[:])

	var buf [9]byte
	for _, p := range pairs {
		binary.LittleEndian.PutUint64(buf[:8], p.offset)
		buf[8] = byte(p.hits)
		h.Write(buf[:])
	}

	var out Key
	copy(out[:], h.Sum(nil))
	return out
}

// traceEqual reports whether two traces carry the same result and
// function-hit map, used to guard against fingerprint collisions.
func traceEqual(a, b *tracer.RunTrace) bool {
	if a.Result != b.Result {
		return false
	}
	if len(a.Trajectory) != len(b.Trajectory) {
		return false
	}
	for off, hits := range a.Trajectory {
		if b.Trajectory[off] != hits {
			return false
		}
	}
	return true
}

// fingerprintByExitCode hashes only a trace's termination outcome, ignoring
// its coverage trajectory entirely. It backs the exit-code-classified
// library variant (the binary.interesting_codes mode): two runs
// that exercised different code paths but terminated the same way are
// treated as the same exemplar class.
func fingerprintByExitCode(t *tracer.RunTrace) Key {
	h, _ := blake2b.New256(nil)
	var hdr [5]byte
	hdr[0] = byte(t.Result.Kind)
	binary.LittleEndian.PutUint32(hdr[1:5], uint32(t.Result.Code))
	h.Write(hdr[:])

	var out Key
	copy(out[:], h.Sum(nil))
	return out
}

// resultEqual reports whether two traces share the same termination
// outcome, ignoring their trajectories. Used as the collision-guard
// equality check for the exit-code-classified library variant.
func resultEqual(a, b *tracer.RunTrace) bool {
	return a.Result == b.Result
}
