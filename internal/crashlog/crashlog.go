// Package crashlog persists crash artifacts and appends the JSON event
// log recording every new path and size improvement.
package crashlog

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aledsdavies/covfuzz/internal/tracer"
)

// kind is the NewPath event's "what made this interesting" payload.
type kind struct {
	Type string `json:"type"`
	Code *int32 `json:"code,omitempty"`
}

func crashKind() kind           { return kind{Type: "Crash"} }
func exitCodeKind(c int32) kind { return kind{Type: "ExitCode", Code: &c} }

type newPathEvent struct {
	Type          string  `json:"type"`
	Kind          kind    `json:"kind"`
	TraceID       string  `json:"trace_id"`
	TimeAsSeconds float64 `json:"time_as_seconds"`
}

type sizeImprovementEvent struct {
	Type    string `json:"type"`
	TraceID string `json:"trace_id"`
	Delta   int    `json:"delta"`
}

// Persistor writes crash artifacts under the output directory and
// appends one JSON line per interesting event to the event log.
type Persistor struct {
	outputDir string
	startTime time.Time

	mu      sync.Mutex
	logFile *os.File
}

// New ensures outputDir exists and opens fuzzing.log in the current
// working directory for appending.
func New(outputDir string, startTime time.Time) (*Persistor, error) {
	return NewAt(outputDir, "fuzzing.log", startTime)
}

// NewAt is New with an explicit event-log path, so callers (and tests)
// can avoid writing fuzzing.log into the process's working directory.
func NewAt(outputDir, logPath string, startTime time.Time) (*Persistor, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, &Error{Code: CodeIO, Message: "creating output directory failed", Cause: err}
	}
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, &Error{Code: CodeIO, Message: "opening event log failed", Cause: err}
	}
	return &Persistor{outputDir: outputDir, startTime: startTime, logFile: f}, nil
}

// Close flushes and closes the event log.
func (p *Persistor) Close() error {
	return p.logFile.Close()
}

// NewCrashName generates the 12-hex-character random identifier assigned
// to every newly-discovered trace.
func NewCrashName() (string, error) {
	var buf [6]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", &Error{Code: CodeIO, Message: "generating crash name failed", Cause: err}
	}
	return hex.EncodeToString(buf[:]), nil
}

// RecordNew persists a New-status result: a Signal trace's bytes are
// written to OutputDir/name, and a NewPath event is appended regardless
// of whether the result was a crash or merely a new exit code.
func (p *Persistor) RecordNew(result tracer.Result, data []byte, name string, now time.Time) error {
	if result.Kind == tracer.ResultSignal {
		if err := p.writeArtifact(name, data); err != nil {
			return err
		}
	}

	k := exitCodeKind(result.Code)
	if result.Kind == tracer.ResultSignal {
		k = crashKind()
	}

	return p.appendEvent(newPathEvent{
		Type:          "NewPath",
		Kind:          k,
		TraceID:       name,
		TimeAsSeconds: now.Sub(p.startTime).Seconds(),
	})
}

// RecordSizeImprovement overwrites an existing crash artifact with a
// smaller reproducer and appends a SizeImprovement event. It is only
// meaningful for Signal-result entries; callers skip it for non-crash
// size improvements.
func (p *Persistor) RecordSizeImprovement(existingName string, data []byte, delta int) error {
	if err := p.writeArtifact(existingName, data); err != nil {
		return err
	}
	return p.appendEvent(sizeImprovementEvent{
		Type:    "SizeImprovement",
		TraceID: existingName,
		Delta:   delta,
	})
}

func (p *Persistor) writeArtifact(name string, data []byte) error {
	path := filepath.Join(p.outputDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return &Error{Code: CodeIO, Message: fmt.Sprintf("writing crash artifact %q failed", name), Cause: err}
	}
	return nil
}

func (p *Persistor) appendEvent(event any) error {
	line, err := json.Marshal(event)
	if err != nil {
		return &Error{Code: CodeIO, Message: "marshaling event failed", Cause: err}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, err := p.logFile.Write(append(line, '\n')); err != nil {
		return &Error{Code: CodeIO, Message: "appending event log line failed", Cause: err}
	}
	return nil
}
