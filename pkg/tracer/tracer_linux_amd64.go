// +build linux,amd64

// Package tracer is the supervisor loop: it forks and execs the target
// program under ptrace, and on every write(2) to fd 1 or fd 2 nullifies
// (or tees) the real write and re-emits the bytes itself, wrapped in
// stream-switch markers.
//
// Register field access (Orig_rax/Rdi/Rsi/Rdx/Rax) is amd64-specific,
// matching the x86_64 syscall ABI table in the design doc; other
// architectures are out of scope and simply fail to build.
package tracer

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"syscall"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/guyshaw-errmark/errmark/pkg/log"
	"github.com/guyshaw-errmark/errmark/pkg/pmem"
	"github.com/guyshaw-errmark/errmark/pkg/ptrace"
	"github.com/guyshaw-errmark/errmark/pkg/switcher"
)

// syscallTrapSignal is the stop signal ptrace reports for a
// syscall-entry/syscall-exit stop once PTRACE_O_TRACESYSGOOD is set:
// SIGTRAP with its high bit set, distinguishing it from an ordinary
// SIGTRAP delivery.
const syscallTrapSignal = unix.SIGTRAP | 0x80

// Marks supplies marker strings to the stream-switch state machine.
type Marks = switcher.Marks

// Config describes one traced invocation.
type Config struct {
	// Path is the program to run; Argv is its argv[1:].
	Path string
	Argv []string

	// Marks supplies the fd 1 / fd 2 marker strings.
	Marks Marks

	// Nullify suppresses the child's real write (substituting the
	// tracer's own re-emission) when true; when false (--tee), the
	// real write is left alone and the tracer's re-emission happens
	// alongside it.
	Nullify bool

	// Verbose enables progress logging (child pid, final wait status).
	Verbose bool

	// Stdout receives the merged, marked byte stream.
	Stdout io.Writer

	// CopyWriter, if non-nil, additionally receives a copy of every
	// byte written to fd 2.
	CopyWriter io.Writer
}

// ExitCode derives the process exit code from the raw OS wait status
// Run returns, the same way main() does in the C original:
// child_status >> 8. This single shift uniformly covers both a normal
// WEXITSTATUS (the target byte sits at the same offset) and an abnormal
// termination (signaled) status, where it yields 0 -- matching the
// original's literal behavior rather than re-deriving a signal-specific
// code.
func ExitCode(waitStatus int) int {
	return waitStatus >> 8
}

// Run execs Config.Path under ptrace and runs the supervisor loop until
// the child exits, returning the raw OS wait status of its final,
// terminal stop. Pass the result to ExitCode to get the process exit
// code.
func Run(cfg Config) (int, error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	cmd := exec.Command(cfg.Path, cfg.Argv...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Ptrace: true}

	if err := cmd.Start(); err != nil {
		return 0, errors.Wrap(err, "execvp()")
	}
	pid := cmd.Process.Pid
	if cfg.Verbose {
		log.Error("child pid=%d\n", pid)
	}

	var ws unix.WaitStatus
	if _, err := unix.Wait4(pid, &ws, 0, nil); err != nil {
		return 0, errors.Wrap(err, "initial wait4() failed")
	}

	machine := switcher.New(cfg.Marks, cfg.Stdout)
	markOpen := false

	guard := ptrace.NewGuard(pid, func() {
		if markOpen {
			_ = machine.Close()
		}
	})
	if err := guard.SetOptions(unix.PTRACE_O_TRACESYSGOOD); err != nil {
		return 0, errors.Wrap(err, "ptrace set option error")
	}

	loop := &loopState{
		guard:      guard,
		machine:    machine,
		nullify:    cfg.Nullify,
		stdout:     cfg.Stdout,
		copyWriter: cfg.CopyWriter,
	}

	exitStatus := 0
	for {
		if err := guard.Syscall(loop.pendingSignal); err != nil {
			if guard.Exited() {
				break
			}
			return 0, err
		}
		loop.pendingSignal = 0

		if _, err := unix.Wait4(pid, &ws, 0, nil); err != nil {
			return 0, errors.Wrap(err, "wait4() failed")
		}

		terminal, status := classifyStatus(ws)
		if terminal {
			exitStatus = status
			if markOpen {
				_ = machine.Close()
				markOpen = false
			}
			if cfg.Verbose {
				log.Error("%s\n", describeTerminalStatus(ws, status))
			}
			break
		}

		if !ws.Stopped() {
			continue
		}
		sig := ws.StopSignal()
		if sig != syscallTrapSignal {
			// Some other signal stop: let it through untouched on
			// the next resume.
			loop.pendingSignal = int(sig)
			continue
		}

		var regs unix.PtraceRegs
		if err := guard.GetRegs(&regs); err != nil {
			if guard.Exited() {
				break
			}
			return 0, err
		}

		if regs.Orig_rax == unix.SYS_write {
			if err := loop.handleWriteStop(&regs, &markOpen); err != nil {
				return 0, err
			}
		}
	}

	return exitStatus, nil
}

// loopState carries the write-syscall toggle and the fd/addr/len
// captured at syscall-entry across to the matching syscall-exit stop,
// the way the C original keeps wfd/waddr/wlen as locals spanning two
// loop iterations.
type loopState struct {
	guard      *ptrace.Guard
	machine    *switcher.Machine
	nullify    bool
	stdout     io.Writer
	copyWriter io.Writer

	toggleExit    bool
	wfd           int
	waddr         uintptr
	wlen          uint64
	pendingSignal int
}

func (l *loopState) handleWriteStop(regs *unix.PtraceRegs, markOpen *bool) error {
	if !l.toggleExit {
		l.toggleExit = true
		l.wfd, l.waddr, l.wlen = writeArgsFromRegs(regs)

		if l.wfd == 1 || l.wfd == 2 {
			if !*markOpen {
				l.machine.Open()
				*markOpen = true
			}
			if err := l.machine.BeforeWrite(l.wfd, l.waddr, l.wlen); err != nil {
				return err
			}
			if l.nullify {
				regs.Rdx = 0
			}
			if err := l.guard.SetRegs(regs); err != nil {
				if l.guard.Exited() {
					return nil
				}
				return err
			}

			if l.wfd == 2 && l.copyWriter != nil {
				buf, err := pmem.CopyToBuffer(l.guard, l.waddr, int(l.wlen))
				if err != nil {
					return err
				}
				if _, err := l.stdout.Write(buf); err != nil {
					return err
				}
				if _, err := l.copyWriter.Write(buf); err != nil {
					return err
				}
			} else {
				if _, err := pmem.CopyToWriter(l.guard, l.waddr, int(l.wlen), l.stdout); err != nil {
					return err
				}
			}
		}
	} else {
		l.toggleExit = false
		if l.wfd == 1 || l.wfd == 2 {
			if l.nullify {
				// The real write was nullified (zero length), so
				// the tracee must be told it wrote the original
				// number of bytes, or it would see a short write.
				regs.Rax = l.wlen
			}
			if err := l.guard.SetRegs(regs); err != nil {
				if l.guard.Exited() {
					return nil
				}
				return err
			}
		}
	}
	return nil
}

// writeArgsFromRegs extracts the write(2) syscall's fd, buffer address,
// and length from the x86_64 syscall register ABI (rdi/rsi/rdx). length
// is returned at its native register width (uint64) so a SIZE_MAX
// length argument is preserved exactly, rather than folded into a
// signed int, for switcher.Machine.BeforeWrite's SIZE_MAX guard.
func writeArgsFromRegs(regs *unix.PtraceRegs) (fd int, addr uintptr, length uint64) {
	return int(regs.Rdi), uintptr(regs.Rsi), regs.Rdx
}

// classifyStatus reports whether a wait status is terminal (the child
// exited or was killed by a signal) versus an in-flight ptrace stop the
// loop should keep processing, along with the exit status to report
// when terminal.
func classifyStatus(ws unix.WaitStatus) (terminal bool, rawStatus int) {
	switch {
	case ws.Exited(), ws.Signaled():
		return true, int(ws)
	default:
		return false, 0
	}
}

// describeTerminalStatus renders a --verbose diagnostic for a terminal
// wait status, the Go counterpart of fshow_wait_status/decode_signal: a
// signaled termination names the killing signal, not just the raw
// status word.
func describeTerminalStatus(ws unix.WaitStatus, status int) string {
	if ws.Signaled() {
		sig := ws.Signal()
		return fmt.Sprintf("status=0x%02x (killed by signal %d: %s)", status, int(sig), sig)
	}
	return fmt.Sprintf("status=0x%02x", status)
}
