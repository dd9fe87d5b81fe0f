package switcher

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMarks struct {
	start map[int]string
	end   map[int]string
}

func (f fakeMarks) Get(fd int) (string, string) {
	return f.start[fd], f.end[fd]
}

func newFakeMarks() fakeMarks {
	return fakeMarks{
		start: map[int]string{1: "<O>", 2: "<E>"},
		end:   map[int]string{1: "</O>", 2: "</E>"},
	}
}

// buf is an arbitrary non-null tracee buffer address used by tests that
// don't care about the no-op buf==0/len==SIZE_MAX guard.
const buf = uintptr(0x1000)

func TestSameFdRunEmitsOneMarkerPair(t *testing.T) {
	var out bytes.Buffer
	m := New(newFakeMarks(), &out)
	m.Open()

	require.NoError(t, m.BeforeWrite(2, buf, 4))
	out.WriteString("err1")
	require.NoError(t, m.BeforeWrite(2, buf, 4))
	out.WriteString("err2")
	require.NoError(t, m.Close())

	assert.Equal(t, "<E>err1err2</E>", out.String())
}

func TestTransitionEmitsEndThenStart(t *testing.T) {
	var out bytes.Buffer
	m := New(newFakeMarks(), &out)
	m.Open()

	require.NoError(t, m.BeforeWrite(1, buf, 4))
	out.WriteString("out1")
	require.NoError(t, m.BeforeWrite(2, buf, 4))
	out.WriteString("err1")
	require.NoError(t, m.Close())

	assert.Equal(t, "<O>out1</O><E>err1</E>", out.String())
}

func TestAbsentMarkersAreNoOp(t *testing.T) {
	var out bytes.Buffer
	marks := fakeMarks{start: map[int]string{}, end: map[int]string{}}
	m := New(marks, &out)
	m.Open()

	require.NoError(t, m.BeforeWrite(1, buf, 5))
	out.WriteString("plain")
	require.NoError(t, m.Close())

	assert.Equal(t, "plain", out.String())
}

func TestNonStreamFdIgnored(t *testing.T) {
	var out bytes.Buffer
	m := New(newFakeMarks(), &out)
	m.Open()

	require.NoError(t, m.BeforeWrite(3, buf, 4))
	assert.Equal(t, "", out.String())
}

func TestNullBufIsNoOp(t *testing.T) {
	var out bytes.Buffer
	m := New(newFakeMarks(), &out)
	m.Open()

	require.NoError(t, m.BeforeWrite(2, 0, 4))
	assert.Equal(t, "", out.String())
}

func TestSizeMaxLengthIsNoOp(t *testing.T) {
	var out bytes.Buffer
	m := New(newFakeMarks(), &out)
	m.Open()

	require.NoError(t, m.BeforeWrite(2, buf, noopLength))
	assert.Equal(t, "", out.String())
}
