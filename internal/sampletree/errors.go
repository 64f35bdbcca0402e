package sampletree

// Code classifies sampletree failures.
type Code string

const (
	CodeEmptyTree Code = "empty_tree"
)

// Error reports a problem applying a patch or folding a tree.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

func (e *Error) ExitCode() int { return 70 }
