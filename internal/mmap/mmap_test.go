package mmap

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.bin")
	require.NoError(t, os.WriteFile(path, content, 0600))
	return path
}

func TestOpen(t *testing.T) {
	content := []byte("the quick brown fox jumps over the lazy dog")
	path := writeTemp(t, content)

	m, err := Open(path)
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, len(content), m.Size())
	assert.Equal(t, content, m.Bytes())
	assert.False(t, m.Writable())
}

func TestOpen_EmptyFile(t *testing.T) {
	path := writeTemp(t, nil)

	m, err := Open(path)
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, 0, m.Size())
	assert.Nil(t, m.Bytes())
}

func TestOpen_Missing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.bin"))
	require.Error(t, err)
	assert.True(t, os.IsNotExist(err))
}

func TestMapFile_Writable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rw.bin")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	require.NoError(t, err)
	defer f.Close()

	size := os.Getpagesize()
	require.NoError(t, f.Truncate(int64(size)))

	m, err := MapFile(f, size, true)
	require.NoError(t, err)
	require.True(t, m.Writable())

	copy(m.Bytes(), []byte("written through the mapping"))
	require.NoError(t, m.Flush())
	require.NoError(t, m.Close())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("written through the mapping"), content[:27])
}

func TestMapFile_InvalidSize(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "rw.bin")
	require.NoError(t, err)
	defer f.Close()

	_, err = MapFile(f, 0, true)
	assert.ErrorIs(t, err, ErrInvalidSize)

	_, err = MapFile(f, -1, true)
	assert.ErrorIs(t, err, ErrInvalidSize)
}

func TestMapping_Close(t *testing.T) {
	path := writeTemp(t, []byte("close me"))

	m, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, m.Close())
	require.NoError(t, m.Close()) // Idempotent

	assert.Nil(t, m.Bytes())
	assert.ErrorIs(t, m.Flush(), ErrClosed)
	assert.ErrorIs(t, m.Advise(AccessRandom), ErrClosed)

	_, err = m.ReadAt(make([]byte, 1), 0)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestMapping_Flush_ReadOnly(t *testing.T) {
	path := writeTemp(t, []byte("read only"))

	m, err := Open(path)
	require.NoError(t, err)
	defer m.Close()

	assert.ErrorIs(t, m.Flush(), ErrReadOnly)
	assert.ErrorIs(t, m.FlushRange(0, 4), ErrReadOnly)
}

func TestMapping_FlushRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "range.bin")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	require.NoError(t, err)
	defer f.Close()

	size := 4 * os.Getpagesize()
	require.NoError(t, f.Truncate(int64(size)))

	m, err := MapFile(f, size, true)
	require.NoError(t, err)
	defer m.Close()

	copy(m.Bytes()[os.Getpagesize()+100:], []byte("mid-page"))

	// Unaligned offsets are widened to page boundaries internally.
	require.NoError(t, m.FlushRange(os.Getpagesize()+100, 8))
	require.NoError(t, m.FlushRange(0, 0))
	require.NoError(t, m.FlushRange(0, size))

	assert.ErrorIs(t, m.FlushRange(-1, 4), ErrOutOfBounds)
	assert.ErrorIs(t, m.FlushRange(0, size+1), ErrOutOfBounds)
}

func TestMapping_ReadAt(t *testing.T) {
	content := []byte("0123456789")
	path := writeTemp(t, content)

	m, err := Open(path)
	require.NoError(t, err)
	defer m.Close()

	buf := make([]byte, 4)
	n, err := m.ReadAt(buf, 3)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []byte("3456"), buf)

	// Short read at the tail.
	n, err = m.ReadAt(buf, 8)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 2, n)

	_, err = m.ReadAt(buf, 10)
	assert.ErrorIs(t, err, io.EOF)

	_, err = m.ReadAt(buf, -1)
	assert.ErrorIs(t, err, ErrInvalidOffset)
}

func TestMapping_Advise(t *testing.T) {
	path := writeTemp(t, make([]byte, os.Getpagesize()))

	m, err := Open(path)
	require.NoError(t, err)
	defer m.Close()

	for _, pattern := range []AccessPattern{AccessDefault, AccessSequential, AccessRandom, AccessWillNeed} {
		assert.NoError(t, m.Advise(pattern))
	}
}

func TestRegion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "region.bin")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	require.NoError(t, err)
	defer f.Close()

	size := 2 * os.Getpagesize()
	require.NoError(t, f.Truncate(int64(size)))

	m, err := MapFile(f, size, true)
	require.NoError(t, err)
	defer m.Close()

	r, err := m.Region(16, 32)
	require.NoError(t, err)
	assert.Equal(t, 32, r.Size())

	copy(r.Bytes(), []byte("region payload"))
	require.NoError(t, r.Flush())
	require.NoError(t, r.Advise(AccessSequential))

	assert.Equal(t, []byte("region payload"), m.Bytes()[16:30])

	_, err = m.Region(0, size+1)
	assert.ErrorIs(t, err, ErrOutOfBounds)

	_, err = m.Region(-1, 4)
	assert.ErrorIs(t, err, ErrOutOfBounds)
}
