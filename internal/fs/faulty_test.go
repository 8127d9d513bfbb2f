package fs

import (
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openFaulty(t *testing.T, fsys *FaultyFS, name string) File {
	t.Helper()
	f, err := fsys.OpenFile(filepath.Join(t.TempDir(), name), os.O_CREATE|os.O_RDWR, 0600)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestFaultyFS_NoFaults(t *testing.T) {
	fsys := NewFaultyFS(nil)
	f := openFaulty(t, fsys, "clean.bin")

	_, err := f.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, f.Sync())

	buf := make([]byte, 5)
	_, err = f.ReadAt(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), buf)

	assert.Equal(t, int64(5), fsys.Written())
}

func TestFaultyFS_GlobalLimit(t *testing.T) {
	fsys := NewFaultyFS(nil)
	fsys.SetLimit(8)

	f := openFaulty(t, fsys, "limited.bin")

	_, err := f.Write([]byte("12345"))
	require.NoError(t, err)

	// 5 + 5 exceeds the budget of 8.
	_, err = f.Write([]byte("67890"))
	require.ErrorIs(t, err, syscall.ENOSPC)

	// WriteAt shares the same budget.
	_, err = f.WriteAt([]byte("x"), 100)
	require.NoError(t, err)
	_, err = f.WriteAt([]byte("yyy"), 200)
	require.ErrorIs(t, err, syscall.ENOSPC)

	assert.Equal(t, int64(6), fsys.Written())
}

func TestFaultyFS_PerFileRule(t *testing.T) {
	fsys := NewFaultyFS(nil)
	fsys.AddRule("victim", Fault{FailAfterBytes: 4})

	victim := openFaulty(t, fsys, "victim.bin")
	bystander := openFaulty(t, fsys, "other.bin")

	_, err := victim.Write([]byte("1234"))
	require.NoError(t, err)
	_, err = victim.Write([]byte("5"))
	require.ErrorIs(t, err, syscall.ENOSPC)

	// Other files are unaffected.
	_, err = bystander.Write([]byte("plenty of room here"))
	require.NoError(t, err)
}

func TestFaultyFS_SyncAndCloseFaults(t *testing.T) {
	fsys := NewFaultyFS(nil)
	fsys.AddRule("sync", Fault{FailAfterBytes: -1, FailOnSync: true})
	fsys.AddRule("close", Fault{FailAfterBytes: -1, FailOnClose: true})

	f := openFaulty(t, fsys, "sync.bin")
	_, err := f.Write([]byte("data"))
	require.NoError(t, err)
	require.ErrorIs(t, f.Sync(), syscall.ENOSPC)

	g, err := fsys.OpenFile(filepath.Join(t.TempDir(), "close.bin"), os.O_CREATE|os.O_RDWR, 0600)
	require.NoError(t, err)
	require.ErrorIs(t, g.Close(), syscall.ENOSPC)
}

func TestFaultyFS_CustomError(t *testing.T) {
	fsys := NewFaultyFS(nil)
	fsys.AddRule("custom", Fault{FailAfterBytes: 0, Err: os.ErrPermission})

	f := openFaulty(t, fsys, "custom.bin")
	_, err := f.Write([]byte("x"))
	require.ErrorIs(t, err, os.ErrPermission)
}

func TestFaultyFS_Passthrough(t *testing.T) {
	fsys := NewFaultyFS(nil)
	dir := t.TempDir()

	require.NoError(t, fsys.MkdirAll(filepath.Join(dir, "sub"), 0750))

	f, err := fsys.OpenFile(filepath.Join(dir, "sub", "a.bin"), os.O_CREATE|os.O_RDWR, 0600)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.NoError(t, fsys.Rename(filepath.Join(dir, "sub", "a.bin"), filepath.Join(dir, "sub", "b.bin")))

	_, err = fsys.Stat(filepath.Join(dir, "sub", "b.bin"))
	require.NoError(t, err)

	entries, err := fsys.ReadDir(filepath.Join(dir, "sub"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	require.NoError(t, fsys.Remove(filepath.Join(dir, "sub", "b.bin")))
}
