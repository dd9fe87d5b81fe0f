// Package pmem reads memory out of a traced process one machine word at
// a time, the way ptrace(PTRACE_PEEKDATA) requires, handling unaligned
// head/tail words and tolerating a short read at the end of the tracee's
// mapped region.
package pmem

import (
	"errors"
	"io"
	"unsafe"

	"golang.org/x/sys/unix"
)

// WordSize is the size in bytes of a single PTRACE_PEEKDATA word on this
// architecture (8 on amd64).
const WordSize = int(unsafe.Sizeof(uintptr(0)))

// Peeker reads a single machine word from a tracee's address space at
// addr, the same contract as ptrace(PTRACE_PEEKDATA, pid, addr, NULL).
// ok is false whenever the peek failed, with err saying why; copyWords
// decides whether an EIO failure ends a short read or is a hard error.
type Peeker interface {
	PeekWord(addr uintptr) (word uintptr, ok bool, err error)
}

// copyWords drives the head/body/tail word-at-a-time read described in
// spec.md 4.3, delivering each chunk of real bytes to emit.
//
// On a peek failure, the short read is only tolerated (reporting
// bytesRead bytes with no error) when the failure is specifically EIO
// -- the tracee's memory simply running out at the edge of a mapped
// region -- and at least one byte has already been delivered. Any
// other failure, or an EIO before any bytes were delivered, is a hard
// error.
func copyWords(p Peeker, addr uintptr, length int, emit func([]byte) error) (bytesRead int, err error) {
	if length <= 0 {
		return 0, nil
	}

	buf := make([]byte, WordSize)

	readWord := func(a uintptr) (ok bool) {
		word, ok, werr := p.PeekWord(a)
		if !ok {
			if bytesRead != 0 && errors.Is(werr, unix.EIO) {
				err = nil
				return false
			}
			err = werr
			return false
		}
		*(*uintptr)(unsafe.Pointer(&buf[0])) = word
		return true
	}

	// Head: align to a word boundary.
	phase := int(addr) % WordSize
	if phase != 0 {
		remsz := WordSize - phase
		sz := remsz
		if length < sz {
			sz = length
		}
		if !readWord(addr) {
			return bytesRead, err
		}
		if e := emit(buf[:sz]); e != nil {
			return bytesRead, e
		}
		bytesRead += sz
		addr += uintptr(sz)
		length -= sz
	}

	// Body: whole words.
	for length >= WordSize {
		if !readWord(addr) {
			return bytesRead, err
		}
		if e := emit(buf); e != nil {
			return bytesRead, e
		}
		bytesRead += WordSize
		addr += uintptr(WordSize)
		length -= WordSize
	}

	// Tail: a runt word.
	if length > 0 {
		if !readWord(addr) {
			return bytesRead, err
		}
		if e := emit(buf[:length]); e != nil {
			return bytesRead, e
		}
		bytesRead += length
	}

	return bytesRead, nil
}

// CopyToWriter streams length bytes of tracee memory starting at addr
// directly to w, one word at a time, without ever buffering the whole
// region. It is the streaming counterpart used when the caller has
// nothing further to do with the bytes beyond writing them out.
func CopyToWriter(p Peeker, addr uintptr, length int, w io.Writer) (int, error) {
	return copyWords(p, addr, length, func(chunk []byte) error {
		_, err := w.Write(chunk)
		return err
	})
}

// CopyToBuffer reads length bytes of tracee memory starting at addr into
// a freshly allocated buffer, returning the slice truncated to the
// number of bytes actually read. Unlike the C original's pmem_copy
// (which allocates the full length but may leave its unread tail
// uninitialized after a short read), the returned slice is never longer
// than what was actually copied from the tracee.
func CopyToBuffer(p Peeker, addr uintptr, length int) ([]byte, error) {
	buf := make([]byte, 0, length)
	n, err := copyWords(p, addr, length, func(chunk []byte) error {
		buf = append(buf, chunk...)
		return nil
	})
	return buf[:n], err
}
