// +build linux,amd64

// Package ptrace wraps the raw ptrace(2) requests the supervisor loop
// needs, funnelling GETREGS/SETREGS/SYSCALL/SETOPTIONS through a single
// guarded chokepoint that tells apart "the tracee is already gone"
// (benign, ESRCH) from "ptrace itself failed" (fatal).
//
// This generalizes guard_ptrace() from the C original into a small Go
// type so the ESRCH/fatal branching can be unit tested without a real
// tracee.
package ptrace

import (
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/guyshaw-errmark/errmark/pkg/log"
)

// rawOps is the raw kernel boundary Guard drives. golang.org/x/sys/unix
// provides the production implementation; tests supply a fake.
type rawOps interface {
	GetRegs(pid int, regs *unix.PtraceRegs) error
	SetRegs(pid int, regs *unix.PtraceRegs) error
	SetOptions(pid int, options int) error
	Syscall(pid int, signal int) error
	PeekData(pid int, addr uintptr, out []byte) (int, error)
}

type unixOps struct{}

func (unixOps) GetRegs(pid int, regs *unix.PtraceRegs) error {
	return unix.PtraceGetRegs(pid, regs)
}

func (unixOps) SetRegs(pid int, regs *unix.PtraceRegs) error {
	return unix.PtraceSetRegs(pid, regs)
}

func (unixOps) SetOptions(pid int, options int) error {
	return unix.PtraceSetOptions(pid, options)
}

func (unixOps) Syscall(pid int, signal int) error {
	return unix.PtraceSyscall(pid, signal)
}

func (unixOps) PeekData(pid int, addr uintptr, out []byte) (int, error) {
	return unix.PtracePeekData(pid, addr, out)
}

// Guard wraps a traced pid's ptrace calls. A non-ESRCH failure is
// reported to onFatal (so the caller can flush any open marker run)
// and then passed to fatalExit, which normally terminates the process;
// it is swappable so tests can observe the fatal path without exiting.
type Guard struct {
	pid       int
	ops       rawOps
	exited    bool
	onFatal   func()
	fatalExit func(format string, v ...interface{})
}

// NewGuard returns a Guard for pid, using the production ptrace
// implementation. onFatal is invoked (if non-nil) just before a fatal,
// non-ESRCH ptrace error aborts the process.
func NewGuard(pid int, onFatal func()) *Guard {
	return &Guard{
		pid:       pid,
		ops:       unixOps{},
		onFatal:   onFatal,
		fatalExit: log.Die,
	}
}

// Exited reports whether the tracee has already been observed gone
// (any guarded call having failed with ESRCH).
func (g *Guard) Exited() bool {
	return g.exited
}

func (g *Guard) guard(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, unix.ESRCH) {
		g.exited = true
		return err
	}
	if g.onFatal != nil {
		g.onFatal()
	}
	g.fatalExit("ptrace() failed - %s\n", err)
	return err
}

// GetRegs fetches the tracee's current registers.
func (g *Guard) GetRegs(regs *unix.PtraceRegs) error {
	return g.guard(g.ops.GetRegs(g.pid, regs))
}

// SetRegs writes back registers the supervisor loop has modified.
func (g *Guard) SetRegs(regs *unix.PtraceRegs) error {
	return g.guard(g.ops.SetRegs(g.pid, regs))
}

// SetOptions sets ptrace options (PTRACE_O_TRACESYSGOOD) on the tracee.
func (g *Guard) SetOptions(options int) error {
	return g.guard(g.ops.SetOptions(g.pid, options))
}

// Syscall resumes the tracee until its next syscall-entry or
// syscall-exit stop, optionally re-delivering a pending signal.
func (g *Guard) Syscall(signal int) error {
	return g.guard(g.ops.Syscall(g.pid, signal))
}

// PeekWord implements pkg/pmem.Peeker over this tracee. It is
// deliberately not routed through guard(): a short/failed peek at the
// edge of the tracee's mapped memory is an expected, locally handled
// outcome for pkg/pmem, not a guarded-fatal one (matching
// pmem-copy.c/pmem-fwrite.c calling ptrace(PTRACE_PEEKDATA, ...)
// directly, bypassing guard_ptrace entirely).
func (g *Guard) PeekWord(addr uintptr) (uintptr, bool, error) {
	var word uintptr
	buf := (*[unsafe.Sizeof(word)]byte)(unsafe.Pointer(&word))[:]
	n, err := g.ops.PeekData(g.pid, addr, buf)
	if err != nil {
		return 0, false, err
	}
	if n != len(buf) {
		return 0, false, errors.Errorf("short peek: got %d of %d bytes", n, len(buf))
	}
	return word, true, nil
}
