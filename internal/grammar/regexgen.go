package grammar

import (
	"math/rand"
	"regexp/syntax"
	"unicode/utf8"
)

// CompiledRegex is a regex terminal: a parsed pattern plus the generation
// parameters from its re(...) declaration. Sample walks the
// regexp/syntax AST to generate random strings belonging to (an
// approximation of) the pattern's language.
type CompiledRegex struct {
	pattern   string
	re        *syntax.Regexp
	sizeLimit int
	unicode   bool
}

const defaultRepeatCap = 8

// CompileRegex parses pattern with the unicode flag controlling whether
// non-ASCII character classes are honored, and records sizeLimit as the cap
// on generated output length.
func CompileRegex(pattern string, sizeLimit int, unicode bool) (*CompiledRegex, error) {
	if sizeLimit <= 0 {
		sizeLimit = 100
	}

	flags := syntax.PerlX | syntax.OneLine | syntax.ClassNL
	if unicode {
		flags |= syntax.UnicodeGroups
	}

	re, err := syntax.Parse(pattern, flags)
	if err != nil {
		return nil, err
	}
	re = re.Simplify()

	return &CompiledRegex{pattern: pattern, re: re, sizeLimit: sizeLimit, unicode: unicode}, nil
}

// Pattern returns the original source text, for pretty-printing.
func (c *CompiledRegex) Pattern() string { return c.pattern }

// SizeLimit returns the configured size_limit.
func (c *CompiledRegex) SizeLimit() int { return c.sizeLimit }

// Unicode reports whether the re(...) declaration set unicode=1, for
// pretty-printing.
func (c *CompiledRegex) Unicode() bool { return c.unicode }

// Sample draws one random string matching (an over-approximation of) the
// pattern, truncated to SizeLimit bytes.
func (c *CompiledRegex) Sample(rng *rand.Rand) []byte {
	var out []byte
	out = sampleRegexp(rng, c.re, &out, c.sizeLimit)
	if len(out) > c.sizeLimit {
		out = out[:c.sizeLimit]
	}
	return out
}

func sampleRegexp(rng *rand.Rand, re *syntax.Regexp, buf *[]byte, remaining int) []byte {
	if remaining <= 0 {
		return *buf
	}

	switch re.Op {
	case syntax.OpLiteral:
		for _, r := range re.Rune {
			if remaining <= 0 {
				break
			}
			*buf = appendRune(*buf, r)
			remaining--
		}
	case syntax.OpCharClass:
		r := pickRuneFromClass(rng, re.Rune)
		*buf = appendRune(*buf, r)
	case syntax.OpAnyChar:
		*buf = appendRune(*buf, rune(0x20+rng.Intn(0x5e)))
	case syntax.OpAnyCharNotNL:
		*buf = appendRune(*buf, rune(0x20+rng.Intn(0x5e)))
	case syntax.OpConcat:
		for _, sub := range re.Sub {
			if remaining <= 0 {
				break
			}
			before := len(*buf)
			sampleRegexp(rng, sub, buf, remaining)
			remaining -= len(*buf) - before
		}
	case syntax.OpAlternate:
		if len(re.Sub) > 0 {
			choice := re.Sub[rng.Intn(len(re.Sub))]
			sampleRegexp(rng, choice, buf, remaining)
		}
	case syntax.OpCapture:
		if len(re.Sub) == 1 {
			sampleRegexp(rng, re.Sub[0], buf, remaining)
		}
	case syntax.OpStar:
		n := rng.Intn(defaultRepeatCap)
		sampleRepeat(rng, re, buf, n, remaining)
	case syntax.OpPlus:
		n := 1 + rng.Intn(defaultRepeatCap)
		sampleRepeat(rng, re, buf, n, remaining)
	case syntax.OpQuest:
		if rng.Intn(2) == 0 {
			sampleRepeat(rng, re, buf, 1, remaining)
		}
	case syntax.OpRepeat:
		lo, hi := re.Min, re.Max
		if hi < 0 || hi > lo+defaultRepeatCap {
			hi = lo + defaultRepeatCap
		}
		n := lo
		if hi > lo {
			n += rng.Intn(hi - lo + 1)
		}
		sampleRepeat(rng, re, buf, n, remaining)
	case syntax.OpEmptyMatch, syntax.OpBeginLine, syntax.OpEndLine, syntax.OpBeginText, syntax.OpEndText, syntax.OpWordBoundary, syntax.OpNoWordBoundary:
		// zero-width: nothing to emit
	default:
		// Unsupported op (backreferences etc. do not appear in this
		// engine's Perl-flag output); treat as empty to stay total.
	}

	return *buf
}

func sampleRepeat(rng *rand.Rand, re *syntax.Regexp, buf *[]byte, n, remaining int) {
	for i := 0; i < n && remaining > 0; i++ {
		before := len(*buf)
		for _, sub := range re.Sub {
			sampleRegexp(rng, sub, buf, remaining)
		}
		remaining -= len(*buf) - before
	}
}

func pickRuneFromClass(rng *rand.Rand, ranges []rune) rune {
	if len(ranges) == 0 {
		return '?'
	}

	total := 0
	for i := 0; i+1 < len(ranges); i += 2 {
		total += int(ranges[i+1]-ranges[i]) + 1
	}
	if total <= 0 {
		return ranges[0]
	}

	pick := rng.Intn(total)
	for i := 0; i+1 < len(ranges); i += 2 {
		width := int(ranges[i+1]-ranges[i]) + 1
		if pick < width {
			return ranges[i] + rune(pick)
		}
		pick -= width
	}
	return ranges[0]
}

func appendRune(buf []byte, r rune) []byte {
	if r < 0x80 {
		return append(buf, byte(r))
	}
	tmp := make([]byte, utf8.UTFMax)
	n := utf8.EncodeRune(tmp, r)
	return append(buf, tmp[:n]...)
}
