// Package switcher implements the stream-switch state machine: it emits
// a start marker when a write's origin fd differs from the previous
// write's, and the matching end marker for whichever fd was left, so
// that a run of same-fd writes produces exactly one marker pair.
package switcher

import "io"

// Marks supplies the start/end marker strings for a given fd (1 or 2).
// pkg/markspec.Table satisfies this interface.
type Marks interface {
	Get(fd int) (start, end string)
}

// noFd is the sentinel "no current stream" value; it never matches a
// real fd (1 or 2), so the first write always triggers a transition.
const noFd = 0

// Machine tracks which of fd 1 / fd 2 is the current stream and emits
// the matching marker strings to w on transitions. This replaces the
// cur_fd package-level global of the C original with explicit state
// (spec.md 9's "globals to structs" note).
type Machine struct {
	marks Marks
	w     io.Writer
	curFd int
}

// New returns a Machine that looks up marker strings from marks and
// writes them to w.
func New(marks Marks, w io.Writer) *Machine {
	return &Machine{marks: marks, w: w, curFd: noFd}
}

// Open resets the machine to "no current stream", mirroring mark_open().
func (m *Machine) Open() {
	m.curFd = noFd
}

// noopLength is the sentinel write length (SIZE_MAX on the wire) that,
// like a null buf, marks a write BeforeWrite must ignore entirely -- it
// is not a real byte-producing write to track.
const noopLength = ^uint64(0)

// BeforeWrite is called just before a write to fd (1 or 2) is allowed to
// proceed, with the tracee's buf/len syscall arguments for that write.
// If fd differs from the current stream, it emits the end marker for
// the outgoing stream (if any) followed by the start marker for fd,
// then adopts fd as current. A write with a null buf or a length of
// SIZE_MAX is not a real write and is ignored outright.
func (m *Machine) BeforeWrite(fd int, buf uintptr, length uint64) error {
	if fd != 1 && fd != 2 {
		return nil
	}
	if buf == 0 || length == noopLength {
		return nil
	}
	if fd == m.curFd {
		return nil
	}
	if err := m.endCurrent(); err != nil {
		return err
	}
	start, _ := m.marks.Get(fd)
	if start != "" {
		if _, err := io.WriteString(m.w, start); err != nil {
			return err
		}
	}
	m.curFd = fd
	return nil
}

// Close ends whatever stream is current, mirroring mark_close(). It is
// called once the supervisor loop has no more writes to observe.
func (m *Machine) Close() error {
	err := m.endCurrent()
	m.curFd = noFd
	return err
}

func (m *Machine) endCurrent() error {
	if m.curFd != 1 && m.curFd != 2 {
		return nil
	}
	_, end := m.marks.Get(m.curFd)
	if end != "" {
		if _, err := io.WriteString(m.w, end); err != nil {
			return err
		}
	}
	return nil
}
