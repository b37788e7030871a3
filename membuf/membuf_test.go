package membuf

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequentialWritesCoalesce(t *testing.T) {
	m := NewMemBuffer()

	_, err := m.WriteAt([]byte{1, 2, 3, 4}, 0)
	require.NoError(t, err)
	_, err = m.WriteAt([]byte{5, 6, 7, 8}, 4)
	require.NoError(t, err)

	assert.Len(t, m.buffers, 1)
	assert.Equal(t, int64(8), m.Len())

	got := make([]byte, 8)
	n, err := m.ReadAt(got, 0)
	require.NoError(t, err)
	assert.Equal(t, 8, n)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, got)
}

func TestGapReadsAsZeroes(t *testing.T) {
	m := NewMemBuffer()

	_, err := m.WriteAt([]byte{0xAA, 0xBB}, 0)
	require.NoError(t, err)
	_, err = m.WriteAt([]byte{0xCC, 0xDD}, 6)
	require.NoError(t, err)

	got := make([]byte, 8)
	n, err := m.ReadAt(got, 0)
	require.NoError(t, err)
	assert.Equal(t, 8, n)
	assert.Equal(t, []byte{0xAA, 0xBB, 0, 0, 0, 0, 0xCC, 0xDD}, got)
}

func TestOutOfOrderRows(t *testing.T) {
	m := NewMemBuffer()

	_, err := m.WriteAt([]byte{0x10, 0x11}, 16)
	require.NoError(t, err)
	_, err = m.WriteAt([]byte{0x00, 0x01}, 0)
	require.NoError(t, err)

	got := make([]byte, 2)
	_, err = m.ReadAt(got, 16)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x10, 0x11}, got)

	_, err = m.ReadAt(got, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x01}, got)
}

func TestReadPastEnd(t *testing.T) {
	m := NewMemBuffer()

	_, err := m.WriteAt([]byte{1, 2, 3}, 0)
	require.NoError(t, err)

	got := make([]byte, 4)
	_, err = m.ReadAt(got, 3)
	assert.ErrorIs(t, err, io.EOF)
}

func TestReader(t *testing.T) {
	m := NewMemBuffer()

	_, err := m.WriteAt([]byte{1, 2, 3}, 1)
	require.NoError(t, err)

	all, err := io.ReadAll(m.Reader())
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 1, 2, 3}, all)
}
