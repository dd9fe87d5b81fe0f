// +build linux,amd64

package ptrace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

type fakeOps struct {
	getRegsErr error
	setRegsErr error
	syscallErr error
	peekWord   uintptr
	peekErr    error
}

func (f *fakeOps) GetRegs(pid int, regs *unix.PtraceRegs) error { return f.getRegsErr }
func (f *fakeOps) SetRegs(pid int, regs *unix.PtraceRegs) error { return f.setRegsErr }
func (f *fakeOps) SetOptions(pid int, options int) error       { return nil }
func (f *fakeOps) Syscall(pid int, signal int) error           { return f.syscallErr }
func (f *fakeOps) PeekData(pid int, addr uintptr, out []byte) (int, error) {
	if f.peekErr != nil {
		return 0, f.peekErr
	}
	for i := range out {
		out[i] = byte(f.peekWord >> (8 * uint(i)))
	}
	return len(out), nil
}

func newTestGuard(ops rawOps) (*Guard, *bool) {
	fatalCalled := new(bool)
	g := &Guard{
		pid:       123,
		ops:       ops,
		onFatal:   func() { *fatalCalled = true },
		fatalExit: func(format string, v ...interface{}) {},
	}
	return g, fatalCalled
}

func TestGetRegsESRCHMarksExitedNotFatal(t *testing.T) {
	g, fatalCalled := newTestGuard(&fakeOps{getRegsErr: unix.ESRCH})
	var regs unix.PtraceRegs
	err := g.GetRegs(&regs)
	assert.Error(t, err)
	assert.True(t, g.Exited())
	assert.False(t, *fatalCalled)
}

func TestSetRegsOtherErrorIsFatal(t *testing.T) {
	g, fatalCalled := newTestGuard(&fakeOps{setRegsErr: unix.EINVAL})
	var regs unix.PtraceRegs
	_ = g.SetRegs(&regs)
	assert.True(t, *fatalCalled)
	assert.False(t, g.Exited())
}

func TestSyscallSuccessIsQuiet(t *testing.T) {
	g, fatalCalled := newTestGuard(&fakeOps{})
	require.NoError(t, g.Syscall(0))
	assert.False(t, *fatalCalled)
	assert.False(t, g.Exited())
}

func TestPeekWordAssemblesBytes(t *testing.T) {
	g, _ := newTestGuard(&fakeOps{peekWord: 0x0102030405060708})
	word, ok, err := g.PeekWord(0x1000)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uintptr(0x0102030405060708), word)
}

func TestPeekWordFailureIsNotGuarded(t *testing.T) {
	g, fatalCalled := newTestGuard(&fakeOps{peekErr: unix.EIO})
	_, ok, err := g.PeekWord(0x1000)
	assert.False(t, ok)
	assert.Error(t, err)
	assert.False(t, *fatalCalled)
}
