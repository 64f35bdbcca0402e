package grammar

import "fmt"

// Validate checks a parsed Grammar: a `root` production must be defined,
// and every Identifier token must resolve to a defined production. All
// problems are collected and returned together as an Errors, rather than
// failing on the first one.
func Validate(g *Grammar) error {
	var errs Errors

	if _, ok := g.Productions[RootProduction]; !ok {
		errs = append(errs, &Error{Code: CodeValidation, Message: "grammar has no `root` production"})
	}

	for _, name := range g.Order {
		for altIdx, alt := range g.Productions[name] {
			for _, tok := range alt {
				if tok.Kind != KindIdentifier {
					continue
				}
				if _, ok := g.Productions[tok.Identifier]; !ok {
					errs = append(errs, &Error{
						Code: CodeValidation,
						Message: fmt.Sprintf(
							"production %q alternative %d references undefined production %q",
							name, altIdx, tok.Identifier,
						),
					})
				}
			}
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ParseAndValidate is the usual entry point: parse then validate, returning
// the first stage's error without running the second.
func ParseAndValidate(src string) (*Grammar, error) {
	g, err := Parse(src)
	if err != nil {
		return nil, err
	}
	if err := Validate(g); err != nil {
		return nil, err
	}
	return g, nil
}
