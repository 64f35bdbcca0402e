package tracer

// Code classifies tracer failures.
type Code string

const (
	CodeSpawn    Code = "spawn"
	CodePtrace   Code = "ptrace"
	CodeProcRead Code = "proc_read"
	CodeNoExit   Code = "no_exit"
)

// Error reports a failure spawning or driving a traced child.
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

func (e *Error) ExitCode() int { return 74 }
