package grammar

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Pretty renders g back into the DSL surface Parse accepts, in
// declaration order. Re-parsing the output yields a structurally equal
// grammar.
func Pretty(g *Grammar) string {
	var b strings.Builder

	for _, name := range optionOrder(g.Options) {
		fmt.Fprintf(&b, "%s = %s\n", name, quoteIfNeeded(g.Options[name]))
	}

	for _, name := range g.Order {
		alts := g.Productions[name]
		fmt.Fprintf(&b, "%s -> ", name)
		for i, alt := range alts {
			if i > 0 {
				b.WriteString(" | ")
			}
			b.WriteString(printAlternative(alt))
		}
		b.WriteString(" ;\n")
	}

	return b.String()
}

// optionOrder returns option names sorted for deterministic output; option
// declaration order is not separately tracked on Grammar.
func optionOrder(opts map[string]string) []string {
	names := make([]string, 0, len(opts))
	for k := range opts {
		names = append(names, k)
	}
	for i := 1; i < len(names); i++ {
		for j := i; j > 0 && names[j-1] > names[j]; j-- {
			names[j-1], names[j] = names[j], names[j-1]
		}
	}
	return names
}

func quoteIfNeeded(v string) string {
	if v != "" && strings.Trim(v, "0123456789") == "" {
		return v
	}
	return quoteDSL(v)
}

// quoteDSL renders s as a DSL string literal. The lexer decodes only the
// \" escape, so every other byte is written through unchanged.
func quoteDSL(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

func printAlternative(alt Alternative) string {
	parts := make([]string, len(alt))
	for i, tok := range alt {
		parts[i] = printToken(tok)
	}
	return strings.Join(parts, " ")
}

func printToken(tok Token) string {
	switch tok.Kind {
	case KindLiteral:
		if len(tok.Literal) == 0 {
			return "Nothing"
		}
		return "0x" + hex.EncodeToString(tok.Literal)
	case KindIdentifier:
		return tok.Identifier
	case KindRegex:
		if tok.Regex.Unicode() {
			return fmt.Sprintf("re(%s size_limit=%d unicode=1)", quoteDSL(tok.Regex.Pattern()), tok.Regex.SizeLimit())
		}
		return fmt.Sprintf("re(%s size_limit=%d)", quoteDSL(tok.Regex.Pattern()), tok.Regex.SizeLimit())
	case KindBytesRange:
		if tok.Min == tok.Max {
			return fmt.Sprintf("bytes(%d)", tok.Min)
		}
		return fmt.Sprintf("bytes(%d,%d)", tok.Min, tok.Max)
	default:
		return ""
	}
}
