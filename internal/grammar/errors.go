package grammar

import (
	"fmt"
	"strings"
)

// Code identifies the category of a grammar error.
type Code string

const (
	CodeSyntax     Code = "SYNTAX"
	CodeValidation Code = "VALIDATION"
)

// Error is the grammar package's typed error. Validate aggregates
// multiple Errors into an Errors before returning.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("grammar: %s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("grammar: %s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }
func (e *Error) ExitCode() int { return 65 } // EX_DATAERR

// Errors aggregates every validation failure found in one pass, so a
// grammar author sees all problems at once instead of fixing them one at a
// time.
type Errors []*Error

func (es Errors) Error() string {
	msgs := make([]string, len(es))
	for i, e := range es {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

func (es Errors) ExitCode() int { return 65 }
