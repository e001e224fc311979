package buffer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opcuacore/opcuacore/pkg/buffer"
)

func TestWriteReadRoundTrip(t *testing.T) {
	b := buffer.New(16)
	n, err := b.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, 5, b.Length())
	assert.Equal(t, 5, b.Position())

	b.Reset()
	assert.Equal(t, 0, b.Position())
	assert.Equal(t, 5, b.Remaining())

	got := make([]byte, 5)
	_, err = b.Read(got, 5)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))
}

func TestWriteRejectsOverMaxSize(t *testing.T) {
	b := buffer.New(4)
	_, err := b.Write([]byte("toolong"))
	require.Error(t, err)
	assert.Equal(t, 0, b.Length())
}

func TestReadRejectsPastLength(t *testing.T) {
	b := buffer.New(16)
	_, err := b.Write([]byte("ab"))
	require.NoError(t, err)
	b.Reset()

	dest := make([]byte, 4)
	_, err = b.Read(dest, 4)
	require.Error(t, err)
}

func TestPeekDoesNotAdvance(t *testing.T) {
	b := buffer.New(16)
	_, err := b.Write([]byte("xyz"))
	require.NoError(t, err)
	b.Reset()

	peeked, err := b.Peek(3)
	require.NoError(t, err)
	assert.Equal(t, "xyz", string(peeked))
	assert.Equal(t, 0, b.Position())
}

func TestSetPositionBounds(t *testing.T) {
	b := buffer.New(16)
	_, err := b.Write([]byte("abcd"))
	require.NoError(t, err)

	require.NoError(t, b.SetPosition(2))
	assert.Equal(t, 2, b.Position())

	require.Error(t, b.SetPosition(-1))
	require.Error(t, b.SetPosition(5))
}

func TestResetAfterTruncates(t *testing.T) {
	b := buffer.New(16)
	_, err := b.Write([]byte("abcdef"))
	require.NoError(t, err)

	require.NoError(t, b.ResetAfter(3))
	assert.Equal(t, 3, b.Length())
	assert.Equal(t, 3, b.Position())
	assert.Equal(t, "abc", string(b.Bytes()))
}

func TestSetDataLengthRejectsOverMaxSize(t *testing.T) {
	b := buffer.New(4)
	require.Error(t, b.SetDataLength(5))
	require.NoError(t, b.SetDataLength(4))
	assert.Equal(t, 4, b.Length())
}

func TestCopyWithLength(t *testing.T) {
	src := buffer.New(16)
	_, err := src.Write([]byte("0123456789"))
	require.NoError(t, err)

	dst := buffer.New(16)
	require.NoError(t, dst.CopyWithLength(src, 4))
	assert.Equal(t, "0123", string(dst.Bytes()))
	assert.Equal(t, 0, dst.Position())

	require.Error(t, dst.CopyWithLength(src, 99))

	tiny := buffer.New(2)
	require.Error(t, tiny.CopyWithLength(src, 4))
}
