package grammar

import (
	"encoding/hex"
	"fmt"
	"strconv"
)

// parser consumes the lexer's item stream with one-item lookahead.
type parser struct {
	lex  *lexer
	cur  item
	next item
	err  error
}

func newParser(src string) (*parser, error) {
	p := &parser{lex: newLexer(src)}
	if err := p.advance(); err != nil {
		return nil, err
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *parser) advance() error {
	p.cur = p.next
	it, err := p.lex.next()
	if err != nil {
		return err
	}
	p.next = it
	return nil
}

func (p *parser) expect(kind itemKind, what string) (item, error) {
	if p.cur.kind != kind {
		return item{}, fmt.Errorf("expected %s at byte %d", what, p.cur.pos)
	}
	it := p.cur
	if err := p.advance(); err != nil {
		return item{}, err
	}
	return it, nil
}

// Parse parses src into a Grammar. Syntax errors are reported as a single
// *Error with Code CodeSyntax; semantic validation is a separate pass (see
// Validate) so syntax and validation failures are never conflated.
func Parse(src string) (*Grammar, error) {
	p, err := newParser(src)
	if err != nil {
		return nil, &Error{Code: CodeSyntax, Message: err.Error()}
	}

	g := newGrammar()

	// Leading `identifier = value` pairs are option flags; anything else
	// starts the production list.
	for p.cur.kind == itemIdentifier && p.next.kind == itemEquals {
		name, value, ferr := p.parseFlag()
		if ferr != nil {
			return nil, &Error{Code: CodeSyntax, Message: ferr.Error()}
		}
		g.Options[name] = value
	}

	for p.cur.kind != itemEOF {
		prod, name, perr := p.parseProduction()
		if perr != nil {
			return nil, &Error{Code: CodeSyntax, Message: perr.Error()}
		}
		if _, exists := g.Productions[name]; !exists {
			g.Order = append(g.Order, name)
		}
		g.Productions[name] = append(g.Productions[name], prod...)
	}

	return g, nil
}

func (p *parser) parseFlag() (string, string, error) {
	name, err := p.expect(itemIdentifier, "flag name")
	if err != nil {
		return "", "", err
	}
	if _, err := p.expect(itemEquals, "'='"); err != nil {
		return "", "", err
	}

	switch p.cur.kind {
	case itemString:
		v := p.cur.text
		return name.text, v, p.advance()
	case itemNumber:
		v := p.cur.text
		return name.text, v, p.advance()
	default:
		return "", "", fmt.Errorf("expected string or number flag value at byte %d", p.cur.pos)
	}
}

// parseProduction parses `name -> rhs (| rhs)* ;` and returns all of its
// alternatives plus the production name.
func (p *parser) parseProduction() ([]Alternative, string, error) {
	name, err := p.expect(itemIdentifier, "production name")
	if err != nil {
		return nil, "", err
	}
	if _, err := p.expect(itemArrow, "'->'"); err != nil {
		return nil, "", err
	}

	var alts []Alternative
	first, err := p.parseAlternative()
	if err != nil {
		return nil, "", err
	}
	alts = append(alts, first)

	for p.cur.kind == itemPipe {
		if err := p.advance(); err != nil {
			return nil, "", err
		}
		alt, err := p.parseAlternative()
		if err != nil {
			return nil, "", err
		}
		alts = append(alts, alt)
	}

	if _, err := p.expect(itemSemi, "';'"); err != nil {
		return nil, "", err
	}

	return alts, name.text, nil
}

func (p *parser) parseAlternative() (Alternative, error) {
	var alt Alternative
	for {
		tok, err := p.parseToken()
		if err != nil {
			return nil, err
		}
		alt = append(alt, tok)

		if p.cur.kind == itemPipe || p.cur.kind == itemSemi {
			return alt, nil
		}
	}
}

func (p *parser) parseToken() (Token, error) {
	switch p.cur.kind {
	case itemString:
		text := p.cur.text
		if err := p.advance(); err != nil {
			return Token{}, err
		}
		return Token{Kind: KindLiteral, Literal: []byte(text)}, nil

	case itemHex:
		digits := p.cur.text
		if err := p.advance(); err != nil {
			return Token{}, err
		}
		raw, err := hex.DecodeString(digits)
		if err != nil {
			return Token{}, fmt.Errorf("invalid hex literal %q: %w", digits, err)
		}
		return Token{Kind: KindLiteral, Literal: raw}, nil

	case itemIdentifier:
		name := p.cur.text
		switch name {
		case "Nothing":
			if err := p.advance(); err != nil {
				return Token{}, err
			}
			return Token{Kind: KindLiteral, Literal: nil}, nil
		case "re":
			return p.parseRegexCall()
		case "bytes":
			return p.parseBytesCall()
		default:
			if err := p.advance(); err != nil {
				return Token{}, err
			}
			return Token{Kind: KindIdentifier, Identifier: name}, nil
		}

	default:
		return Token{}, fmt.Errorf("unexpected token at byte %d", p.cur.pos)
	}
}

func (p *parser) parseRegexCall() (Token, error) {
	if err := p.advance(); err != nil { // consume "re"
		return Token{}, err
	}
	if _, err := p.expect(itemLParen, "'('"); err != nil {
		return Token{}, err
	}

	pattern, err := p.expect(itemString, "regex pattern string")
	if err != nil {
		return Token{}, err
	}

	sizeLimit := 100
	unicode := false
	for p.cur.kind == itemIdentifier {
		flagName := p.cur.text
		if err := p.advance(); err != nil {
			return Token{}, err
		}
		if _, err := p.expect(itemEquals, "'='"); err != nil {
			return Token{}, err
		}
		valItem, err := p.expect(itemNumber, "flag value")
		if err != nil {
			return Token{}, err
		}
		n, convErr := strconv.Atoi(valItem.text)
		if convErr != nil {
			return Token{}, fmt.Errorf("invalid number %q: %w", valItem.text, convErr)
		}
		switch flagName {
		case "size_limit":
			sizeLimit = n
		case "unicode":
			unicode = n != 0
		default:
			return Token{}, fmt.Errorf("unknown regex flag %q", flagName)
		}
	}

	if _, err := p.expect(itemRParen, "')'"); err != nil {
		return Token{}, err
	}

	compiled, err := CompileRegex(pattern.text, sizeLimit, unicode)
	if err != nil {
		return Token{}, fmt.Errorf("error compiling regex %q: %w", pattern.text, err)
	}

	return Token{Kind: KindRegex, Regex: compiled}, nil
}

func (p *parser) parseBytesCall() (Token, error) {
	if err := p.advance(); err != nil { // consume "bytes"
		return Token{}, err
	}
	if _, err := p.expect(itemLParen, "'('"); err != nil {
		return Token{}, err
	}

	a, err := p.expect(itemNumber, "number")
	if err != nil {
		return Token{}, err
	}
	aVal, convErr := strconv.Atoi(a.text)
	if convErr != nil {
		return Token{}, convErr
	}

	bVal := aVal
	if p.cur.kind == itemComma {
		if err := p.advance(); err != nil {
			return Token{}, err
		}
		b, err := p.expect(itemNumber, "number")
		if err != nil {
			return Token{}, err
		}
		bVal, convErr = strconv.Atoi(b.text)
		if convErr != nil {
			return Token{}, convErr
		}
	}

	if _, err := p.expect(itemRParen, "')'"); err != nil {
		return Token{}, err
	}

	if aVal > bVal {
		return Token{}, fmt.Errorf("bytes() lower bound %d exceeds upper bound %d", aVal, bVal)
	}

	return Token{Kind: KindBytesRange, Min: aVal, Max: bVal}, nil
}
