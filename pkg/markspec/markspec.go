// Package markspec parses --mark specifications and holds the resulting
// start/end marker strings for fd 1 and fd 2.
//
// A mark specification has the grammar fd:start:end, where fd is "1" or
// "2", ":" stands for any single separator byte (the byte immediately
// following fd), and start/end may be empty. Supplying just the fd with
// no trailing separator leaves that fd's markers untouched.
package markspec

import "github.com/pkg/errors"

// Table holds the start/end marker strings for fd 1 and fd 2.
//
// This replaces the file-scope marker globals (start1/end1/start2/end2)
// of the C original with explicit, independently testable state.
type Table struct {
	start map[int]string
	end   map[int]string
}

// NewTable returns a Table with no markers set for either fd.
func NewTable() *Table {
	return &Table{
		start: make(map[int]string),
		end:   make(map[int]string),
	}
}

// Get returns the current start/end marker strings for fd (1 or 2).
// An unset marker is reported as the empty string.
func (t *Table) Get(fd int) (start, end string) {
	return t.start[fd], t.end[fd]
}

// Set assigns the start/end marker strings for fd (1 or 2) directly,
// as --color does via the looked-up color escape pair.
func (t *Table) Set(fd int, start, end string) error {
	if fd != 1 && fd != 2 {
		return errors.Errorf("fd=%d -- only fd 1 or 2 are supported", fd)
	}
	t.start[fd] = start
	t.end[fd] = end
	return nil
}

// Parse parses a --mark specification of the form fd:start:end and
// applies it to the table. It reports an error for a malformed spec
// (missing or invalid leading fd digit); a bare "fd" with no separator
// is accepted and leaves that fd's markers unchanged.
func (t *Table) Parse(spec string) error {
	if len(spec) == 0 || (spec[0] != '1' && spec[0] != '2') {
		return errors.Errorf("mark spec %q must start with fd 1 or 2", spec)
	}
	fd := int(spec[0] - '0')
	rest := spec[1:]
	if len(rest) == 0 {
		// fd only, no separator: markers for this fd are left alone.
		return nil
	}

	fsep := rest[0]
	rest = rest[1:]

	sepIdx := indexByte(rest, fsep)
	var start, end string
	if sepIdx < 0 {
		// No second separator: everything left is the start string,
		// end is absent.
		start = rest
	} else {
		start = rest[:sepIdx]
		end = rest[sepIdx+1:]
		// A trailing separator byte terminating the end segment is
		// part of the grammar's delimiter, not the value; strip it
		// when present. See DESIGN.md for why this diverges from the
		// original C's (non-functional) attempt at the same strip.
		if len(end) > 0 && end[len(end)-1] == fsep {
			end = end[:len(end)-1]
		}
	}

	t.start[fd] = start
	t.end[fd] = end
	return nil
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}
