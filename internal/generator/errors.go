package generator

// Code classifies generation failures.
type Code string

const (
	CodeUnknownProduction Code = "unknown_production"
	CodeDepthExceeded     Code = "depth_exceeded"
)

// Error reports a failure deriving a sample from a grammar.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) ExitCode() int { return 70 }
