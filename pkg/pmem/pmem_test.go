package pmem

import (
	"bytes"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// fakePeeker backs PeekWord with an in-memory byte slice representing a
// tracee's address space, with addr 0 as the slice's base. It can
// simulate a short read by failing with failErr once a configured
// address is reached.
type fakePeeker struct {
	mem     []byte
	failAt  uintptr
	hasFail bool
	failErr error
}

func (f *fakePeeker) PeekWord(addr uintptr) (uintptr, bool, error) {
	if f.hasFail && addr >= f.failAt {
		err := f.failErr
		if err == nil {
			err = unix.EIO
		}
		return 0, false, err
	}
	var word uintptr
	n := copy((*[unsafe.Sizeof(word)]byte)(unsafe.Pointer(&word))[:], f.mem[addr:])
	_ = n
	return word, true, nil
}

func TestCopyToWriterExactWords(t *testing.T) {
	mem := make([]byte, 64)
	for i := range mem {
		mem[i] = byte(i)
	}
	p := &fakePeeker{mem: mem}
	var out bytes.Buffer
	n, err := CopyToWriter(p, uintptr(WordSize), WordSize*2, &out)
	require.NoError(t, err)
	assert.Equal(t, WordSize*2, n)
	assert.Equal(t, mem[WordSize:WordSize*3], out.Bytes())
}

func TestCopyToWriterUnalignedHeadAndTail(t *testing.T) {
	mem := make([]byte, 64)
	for i := range mem {
		mem[i] = byte(i + 1)
	}
	p := &fakePeeker{mem: mem}
	var out bytes.Buffer
	start := uintptr(3)
	length := WordSize + 5
	n, err := CopyToWriter(p, start, length, &out)
	require.NoError(t, err)
	assert.Equal(t, length, n)
	assert.Equal(t, mem[start:start+uintptr(length)], out.Bytes())
}

func TestCopyToBufferShortReadReturnsPartial(t *testing.T) {
	mem := make([]byte, 64)
	for i := range mem {
		mem[i] = byte(i)
	}
	p := &fakePeeker{mem: mem, hasFail: true, failAt: uintptr(WordSize * 2)}
	buf, err := CopyToBuffer(p, 0, WordSize*4)
	require.NoError(t, err)
	assert.Equal(t, WordSize*2, len(buf))
	assert.Equal(t, mem[:WordSize*2], buf)
}

func TestCopyToBufferFailsWithNoBytesDelivered(t *testing.T) {
	mem := make([]byte, 64)
	p := &fakePeeker{mem: mem, hasFail: true, failAt: 0}
	_, err := CopyToBuffer(p, 0, WordSize)
	assert.Error(t, err)
}

func TestCopyToBufferNonEIOFailureMidRegionIsHardError(t *testing.T) {
	mem := make([]byte, 64)
	for i := range mem {
		mem[i] = byte(i)
	}
	p := &fakePeeker{mem: mem, hasFail: true, failAt: uintptr(WordSize * 2), failErr: unix.EFAULT}
	_, err := CopyToBuffer(p, 0, WordSize*4)
	assert.ErrorIs(t, err, unix.EFAULT)
}

func TestCopyToBufferZeroLength(t *testing.T) {
	p := &fakePeeker{mem: make([]byte, 8)}
	buf, err := CopyToBuffer(p, 0, 0)
	require.NoError(t, err)
	assert.Len(t, buf, 0)
}
