//go:build linux && amd64

// Package tracer drives a target ELF binary under ptrace, planting
// function-entry breakpoints and recording a per-run coverage trajectory.
// Breakpoint planting and register access are amd64-specific (int3, Rip).
package tracer

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/aledsdavies/covfuzz/internal/elfinfo"
)

// Hits is the saturating per-function hit bucket.
type Hits int

const (
	HitsZero Hits = iota
	HitsOnce
	HitsTwice
	HitsMany
)

// Next advances the bucket one step, saturating at HitsMany.
func (h Hits) Next() Hits {
	if h >= HitsMany {
		return HitsMany
	}
	return h + 1
}

// ResultKind discriminates how a traced run terminated.
type ResultKind int

const (
	ResultCode ResultKind = iota
	ResultSignal
)

// Result is a run's termination outcome.
type Result struct {
	Kind ResultKind
	Code int32
}

// RunTrace is a single execution's outcome: how it terminated and the
// function-offset coverage it exercised.
type RunTrace struct {
	Result     Result
	Trajectory map[uint64]Hits
}

// InputMode selects how input bytes reach the child.
type InputMode int

const (
	InputStdin InputMode = iota
	InputFile
)

// Tracer drives one target binary across repeated runs, memoizing the
// ELF base offset on elfinfo.Info across the tracer's lifetime.
type Tracer struct {
	BinaryPath string
	Mode       InputMode
	Info       *elfinfo.Info
}

// New builds a Tracer bound to a single target binary and input-delivery
// mode.
func New(binaryPath string, mode InputMode, info *elfinfo.Info) *Tracer {
	return &Tracer{BinaryPath: binaryPath, Mode: mode, Info: info}
}

// ADDR_NO_RANDOMIZE from linux/personality.h, and the query persona that
// makes personality(2) return the current value without changing it.
const (
	addrNoRandomize = 0x0040000
	personaQuery    = 0xffffffff
)

// disableASLRForChildren ORs ADDR_NO_RANDOMIZE into the calling thread's
// persona. Children are forked from this same thread (Run holds it locked
// through cmd.Start), so they inherit the persona and load at a stable
// base address.
func disableASLRForChildren() error {
	cur, _, errno := unix.Syscall(unix.SYS_PERSONALITY, personaQuery, 0, 0)
	if errno != 0 {
		return &Error{Code: CodeSpawn, Message: "querying persona failed", Cause: errno}
	}
	if _, _, errno := unix.Syscall(unix.SYS_PERSONALITY, cur|addrNoRandomize, 0, 0); errno != 0 {
		return &Error{Code: CodeSpawn, Message: "disabling child ASLR failed", Cause: errno}
	}
	return nil
}

// Run spawns the target under ptrace, delivers input, plants breakpoints
// at every known function offset, and drives the child to termination,
// returning the resulting RunTrace.
func (t *Tracer) Run(input []byte) (*RunTrace, error) {
	// ptrace is thread-affine: the fork and every later ptrace request
	// must come from the same OS thread.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := disableASLRForChildren(); err != nil {
		return nil, err
	}

	cmd, memFile, err := t.buildCommand(input)
	if err != nil {
		return nil, err
	}
	if memFile != nil {
		defer memFile.Close()
	}

	cmd.SysProcAttr = &syscall.SysProcAttr{
		Ptrace:  true,
		Setpgid: true,
	}

	if err := cmd.Start(); err != nil {
		return nil, &Error{Code: CodeSpawn, Message: "failed to spawn traced child", Cause: err}
	}
	pid := cmd.Process.Pid

	var ws unix.WaitStatus
	if _, err := unix.Wait4(pid, &ws, 0, nil); err != nil {
		return nil, &Error{Code: CodePtrace, Message: "initial ptrace stop failed", Cause: err}
	}

	baseOffset, haveBase := t.Info.BaseOffset()
	if !haveBase {
		baseOffset, err = readBaseOffset(pid)
		if err != nil {
			return nil, err
		}
		t.Info.SetBaseOffset(baseOffset)
	}

	orig := make(map[uint64]byte, len(t.Info.Functions))
	for _, fn := range t.Info.Functions {
		addr := baseOffset + fn.Offset
		b, err := plantBreakpoint(pid, addr)
		if err != nil {
			return nil, err
		}
		orig[addr] = b
	}

	trajectory := make(map[uint64]Hits)

	// Exactly one resume and one wait per stop. deliverSignal carries a
	// pending non-trap signal into the next resume, so the child sees it
	// (and a fatal one can surface as WIFSIGNALED on the following wait).
	deliverSignal := 0
	for {
		if err := unix.PtraceCont(pid, deliverSignal); err != nil {
			return nil, &Error{Code: CodePtrace, Message: "ptrace cont failed", Cause: err}
		}
		deliverSignal = 0
		if _, err := unix.Wait4(pid, &ws, 0, nil); err != nil {
			return nil, &Error{Code: CodePtrace, Message: "wait4 failed", Cause: err}
		}

		switch {
		case ws.Exited():
			return &RunTrace{Result: Result{Kind: ResultCode, Code: int32(ws.ExitStatus())}, Trajectory: trajectory}, nil

		case ws.Signaled():
			return &RunTrace{Result: Result{Kind: ResultSignal}, Trajectory: trajectory}, nil

		case ws.Stopped():
			sig := ws.StopSignal()
			if sig != unix.SIGTRAP {
				deliverSignal = int(sig)
				continue
			}

			var regs unix.PtraceRegs
			if err := unix.PtraceGetRegs(pid, &regs); err != nil {
				return nil, &Error{Code: CodePtrace, Message: "getregs failed", Cause: err}
			}
			hitAddr := regs.Rip - 1
			origByte, ok := orig[hitAddr]
			if !ok {
				// A SIGTRAP we did not plant; let the child run on.
				continue
			}

			offset := hitAddr - baseOffset
			trajectory[offset] = trajectory[offset].Next()

			if err := restoreByte(pid, hitAddr, origByte); err != nil {
				return nil, err
			}
			regs.Rip = hitAddr
			if err := unix.PtraceSetRegs(pid, &regs); err != nil {
				return nil, &Error{Code: CodePtrace, Message: "setregs failed", Cause: err}
			}
			if err := unix.PtraceSingleStep(pid); err != nil {
				return nil, &Error{Code: CodePtrace, Message: "singlestep failed", Cause: err}
			}
			if _, err := unix.Wait4(pid, &ws, 0, nil); err != nil {
				return nil, &Error{Code: CodePtrace, Message: "wait4 after singlestep failed", Cause: err}
			}
			if ws.Exited() {
				return &RunTrace{Result: Result{Kind: ResultCode, Code: int32(ws.ExitStatus())}, Trajectory: trajectory}, nil
			}
			if ws.Signaled() {
				return &RunTrace{Result: Result{Kind: ResultSignal}, Trajectory: trajectory}, nil
			}
			if ws.Stopped() && ws.StopSignal() != unix.SIGTRAP {
				// The step landed on a signal delivery; keep it pending for
				// the next resume instead of swallowing it.
				deliverSignal = int(ws.StopSignal())
			}

			// Once a function saturates, leave its breakpoint out so a hot
			// loop stops paying a trap per call.
			if trajectory[offset] != HitsMany {
				if _, err := plantBreakpoint(pid, hitAddr); err != nil {
					return nil, err
				}
			}
		}
	}
}

func (t *Tracer) buildCommand(input []byte) (*exec.Cmd, *os.File, error) {
	switch t.Mode {
	case InputFile:
		mf, err := newMemFile(input)
		if err != nil {
			return nil, nil, err
		}
		arg := fmt.Sprintf("/proc/%d/fd/%d", os.Getpid(), int(mf.Fd()))
		cmd := exec.Command(t.BinaryPath, arg)
		return cmd, mf, nil

	default: // InputStdin
		cmd := exec.Command(t.BinaryPath)
		cmd.Stdin = bytes.NewReader(input)
		return cmd, nil, nil
	}
}

func newMemFile(input []byte) (*os.File, error) {
	fd, err := unix.MemfdCreate("covfuzz-input", 0)
	if err != nil {
		return nil, &Error{Code: CodeSpawn, Message: "memfd_create failed", Cause: err}
	}
	f := os.NewFile(uintptr(fd), "covfuzz-input")
	if _, err := f.Write(input); err != nil {
		f.Close()
		return nil, &Error{Code: CodeSpawn, Message: "writing memfd input failed", Cause: err}
	}
	return f, nil
}

func plantBreakpoint(pid int, addr uint64) (byte, error) {
	var buf [8]byte
	if _, err := unix.PtracePeekText(pid, uintptr(addr), buf[:]); err != nil {
		return 0, &Error{Code: CodePtrace, Message: "peektext failed", Cause: err}
	}
	orig := buf[0]
	patched := buf
	patched[0] = 0xCC
	if _, err := unix.PtracePokeText(pid, uintptr(addr), patched[:]); err != nil {
		return 0, &Error{Code: CodePtrace, Message: "poketext failed", Cause: err}
	}
	return orig, nil
}

func restoreByte(pid int, addr uint64, orig byte) error {
	var buf [8]byte
	if _, err := unix.PtracePeekText(pid, uintptr(addr), buf[:]); err != nil {
		return &Error{Code: CodePtrace, Message: "peektext failed", Cause: err}
	}
	buf[0] = orig
	if _, err := unix.PtracePokeText(pid, uintptr(addr), buf[:]); err != nil {
		return &Error{Code: CodePtrace, Message: "poketext failed", Cause: err}
	}
	return nil
}

func readBaseOffset(pid int) (uint64, error) {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/maps", pid))
	if err != nil {
		return 0, &Error{Code: CodeProcRead, Message: "reading /proc/<pid>/maps failed", Cause: err}
	}
	lines := strings.SplitN(string(data), "\n", 2)
	if len(lines) == 0 || lines[0] == "" {
		return 0, &Error{Code: CodeProcRead, Message: "empty /proc/<pid>/maps"}
	}
	fields := strings.Fields(lines[0])
	if len(fields) == 0 {
		return 0, &Error{Code: CodeProcRead, Message: "malformed /proc/<pid>/maps line"}
	}
	startHex := strings.SplitN(fields[0], "-", 2)[0]
	start, err := strconv.ParseUint(startHex, 16, 64)
	if err != nil {
		return 0, &Error{Code: CodeProcRead, Message: "parsing maps base address failed", Cause: err}
	}
	return start, nil
}
