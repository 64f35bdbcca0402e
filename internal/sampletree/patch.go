package sampletree

// PatchKind discriminates the three byte-level edits a Patch can carry.
type PatchKind int

const (
	PatchReplacement PatchKind = iota
	PatchErasure
	PatchInsertion
)

// Patch describes a single byte-level edit against a folded sample's byte
// offsets. Content carries the replacement/insertion bytes; Size carries
// the erasure length. Only the field matching Kind is meaningful.
type Patch struct {
	Position int
	Kind     PatchKind
	Content  []byte
	Size     int
}

// interval is a half-open [Start, End) byte range.
type interval struct {
	Start, End int
}

func (iv interval) empty() bool { return iv.End <= iv.Start }

// intersectIntervals returns the overlap of a and b, or an empty interval
// if they do not overlap.
func intersectIntervals(a, b interval) interval {
	start := a.Start
	if b.Start > start {
		start = b.Start
	}
	end := a.End
	if b.End < end {
		end = b.End
	}
	if end < start {
		end = start
	}
	return interval{Start: start, End: end}
}

// remapIntervalToSegment translates a global byte interval into offsets
// relative to a segment beginning at segmentStart.
func remapIntervalToSegment(iv interval, segmentStart int) interval {
	return interval{Start: iv.Start - segmentStart, End: iv.End - segmentStart}
}

// applyPatchToTerminal applies p to a single terminal's Data in place.
// dataPos is the terminal's absolute start offset within the folded
// sample (terminal.Start, captured before any earlier terminal in the
// same pass has shrunk or grown). Replacement and Erasure only affect a
// terminal whose span overlaps the patch; Insertion only affects the
// first terminal whose span contains the insertion point (an insertion at
// the exact end of the buffer lengthens the final terminal instead).
func applyPatchToTerminal(t *TreeNode, dataPos int, p Patch, isLastTerminal bool) {
	span := interval{Start: dataPos, End: dataPos + len(t.Data)}

	switch p.Kind {
	case PatchReplacement:
		patchSpan := interval{Start: p.Position, End: p.Position + len(p.Content)}
		overlap := intersectIntervals(span, patchSpan)
		if overlap.empty() {
			return
		}
		local := remapIntervalToSegment(overlap, dataPos)
		srcStart := overlap.Start - p.Position
		copy(t.Data[local.Start:local.End], p.Content[srcStart:srcStart+(local.End-local.Start)])

	case PatchErasure:
		patchSpan := interval{Start: p.Position, End: p.Position + p.Size}
		overlap := intersectIntervals(span, patchSpan)
		if overlap.empty() {
			return
		}
		local := remapIntervalToSegment(overlap, dataPos)
		t.Data = append(t.Data[:local.Start], t.Data[local.End:]...)

	case PatchInsertion:
		if p.Position >= span.Start && p.Position < span.End {
			local := p.Position - dataPos
			merged := make([]byte, 0, len(t.Data)+len(p.Content))
			merged = append(merged, t.Data[:local]...)
			merged = append(merged, p.Content...)
			merged = append(merged, t.Data[local:]...)
			t.Data = merged
			return
		}
		if isLastTerminal && p.Position == span.End {
			t.Data = append(append([]byte(nil), t.Data...), p.Content...)
		}
	}
}
