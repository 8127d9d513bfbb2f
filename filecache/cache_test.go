package filecache

import (
	"fmt"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/mmapio"
	"github.com/hupe1980/mmapio/internal/fs"
	"github.com/hupe1980/mmapio/testutil"
)

func newTestCache(t *testing.T, optFns ...func(o *Options)) *Cache {
	t.Helper()

	// Disable the background flusher unless a test opts back in.
	fns := append([]func(o *Options){func(o *Options) { o.FlushInterval = 0 }}, optFns...)

	c, err := New(fns...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCache_ReadWrite(t *testing.T) {
	c := newTestCache(t)
	path := filepath.Join(t.TempDir(), "data.bin")

	data := testutil.Pattern(8192, 0)
	n, err := c.WriteAt(path, 64<<10, data, 0)
	require.NoError(t, err)
	require.Equal(t, len(data), n)

	out := make([]byte, len(data))
	n, err = c.ReadAt(path, 64<<10, out, 0)
	require.NoError(t, err)
	require.Equal(t, len(data), n)
	assert.Equal(t, data, out)

	assert.Equal(t, 1, c.Len())
	require.NoError(t, c.Flush(path))
	require.NoError(t, c.FlushAll())
}

func TestCache_SizeMismatch(t *testing.T) {
	c := newTestCache(t)
	path := filepath.Join(t.TempDir(), "data.bin")

	_, err := c.WriteAt(path, 8192, []byte("x"), 0)
	require.NoError(t, err)

	_, err = c.ReadAt(path, 4096, make([]byte, 1), 0)
	require.ErrorIs(t, err, ErrSizeMismatch)
}

func TestCache_SurvivesEviction(t *testing.T) {
	c := newTestCache(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "data.bin")

	data := testutil.Pattern(4096, 0)
	_, err := c.WriteAt(path, 64<<10, data, 0)
	require.NoError(t, err)

	require.NoError(t, c.Evict(path))
	assert.Equal(t, 0, c.Len())
	require.NoError(t, c.Evict(path)) // Unknown path is a no-op

	// The data is reread from disk through a fresh entry.
	out := make([]byte, len(data))
	_, err = c.ReadAt(path, 64<<10, out, 0)
	require.NoError(t, err)
	assert.Equal(t, data, out)
	assert.Equal(t, 1, c.Len())
}

func TestCache_MaxEntries(t *testing.T) {
	c := newTestCache(t, func(o *Options) { o.MaxEntries = 2 })
	dir := t.TempDir()

	for i := 0; i < 4; i++ {
		path := filepath.Join(dir, fmt.Sprintf("f%d.bin", i))
		_, err := c.WriteAt(path, 4096, []byte{byte(i)}, 0)
		require.NoError(t, err)
	}

	assert.LessOrEqual(t, c.Len(), 2)

	// Evicted files are still readable; their entries were flushed on close.
	out := make([]byte, 1)
	_, err := c.ReadAt(filepath.Join(dir, "f0.bin"), 4096, out, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte{0}, out)
}

func TestCache_Reclaim(t *testing.T) {
	c := newTestCache(t)
	dir := t.TempDir()

	hot := filepath.Join(dir, "hot.bin")
	cold := filepath.Join(dir, "cold.bin")

	_, err := c.WriteAt(hot, 4096, []byte("h"), 0)
	require.NoError(t, err)
	_, err = c.WriteAt(cold, 4096, []byte("c"), 0)
	require.NoError(t, err)

	// First sweep resets used flags, second closes untouched entries.
	c.Reclaim()
	assert.Equal(t, 2, c.Len())

	_, err = c.ReadAt(hot, 4096, make([]byte, 1), 0)
	require.NoError(t, err)

	c.Reclaim()
	assert.Equal(t, 1, c.Len())

	c.Reclaim()
	assert.Equal(t, 0, c.Len())
}

func TestCache_Remove(t *testing.T) {
	c := newTestCache(t)
	path := filepath.Join(t.TempDir(), "data.bin")

	_, err := c.WriteAt(path, 4096, []byte("x"), 0)
	require.NoError(t, err)

	require.NoError(t, c.Remove(path))
	assert.Equal(t, 0, c.Len())
	assert.NoFileExists(t, path)

	require.NoError(t, c.Remove(path)) // Already gone
}

func TestCache_Closed(t *testing.T) {
	c, err := New(func(o *Options) { o.FlushInterval = 0 })
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "data.bin")
	_, err = c.WriteAt(path, 4096, []byte("x"), 0)
	require.NoError(t, err)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close()) // Idempotent

	_, err = c.ReadAt(path, 4096, make([]byte, 1), 0)
	require.ErrorIs(t, err, ErrCacheClosed)

	_, err = c.WriteAt(path, 4096, []byte("x"), 0)
	require.ErrorIs(t, err, ErrCacheClosed)

	// The file itself survived the close.
	assert.FileExists(t, path)
}

func TestCache_InvalidOptions(t *testing.T) {
	_, err := New(func(o *Options) { o.MaxEntries = 0 })
	require.Error(t, err)
}

func TestCache_Concurrent(t *testing.T) {
	c := newTestCache(t, func(o *Options) { o.MaxEntries = 4 })
	dir := t.TempDir()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			path := filepath.Join(dir, fmt.Sprintf("f%d.bin", i%4))
			for j := 0; j < 16; j++ {
				if _, err := c.WriteAt(path, 64<<10, testutil.Pattern(512, int64(j*512)), int64(j*512)); err != nil {
					t.Error(err)
					return
				}
				out := make([]byte, 512)
				if _, err := c.ReadAt(path, 64<<10, out, int64(j*512)); err != nil {
					t.Error(err)
					return
				}
			}
		}(i)
	}
	wg.Wait()
}

func entryFor(t *testing.T, c *Cache, path string) *entry {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.files[path]
	require.True(t, ok)
	return e
}

func TestCache_RetriesStaleEntry(t *testing.T) {
	c := newTestCache(t)
	path := filepath.Join(t.TempDir(), "data.bin")

	data := testutil.Pattern(4096, 0)
	_, err := c.WriteAt(path, 64<<10, data, 0)
	require.NoError(t, err)

	// Close the entry's file behind the cache's back, as a concurrent
	// eviction that raced with get would.
	require.NoError(t, entryFor(t, c, path).f.Close())

	out := make([]byte, len(data))
	_, err = c.ReadAt(path, 64<<10, out, 0)
	require.NoError(t, err)
	assert.Equal(t, data, out)

	require.NoError(t, entryFor(t, c, path).f.Close())

	_, err = c.WriteAt(path, 64<<10, data, 0)
	require.NoError(t, err)
}

func TestCache_DisableMmap_RetriesStaleEntry(t *testing.T) {
	c := newTestCache(t, func(o *Options) { o.DisableMmap = true })
	path := filepath.Join(t.TempDir(), "data.bin")

	data := testutil.Pattern(4096, 0)
	_, err := c.WriteAt(path, 64<<10, data, 0)
	require.NoError(t, err)

	// The fallback path surfaces the race as os.ErrClosed from the
	// underlying os.File rather than the mapped path's sentinel.
	require.NoError(t, entryFor(t, c, path).file.Close())

	out := make([]byte, len(data))
	_, err = c.ReadAt(path, 64<<10, out, 0)
	require.NoError(t, err)
	assert.Equal(t, data, out)

	require.NoError(t, entryFor(t, c, path).file.Close())

	_, err = c.WriteAt(path, 64<<10, data, 0)
	require.NoError(t, err)
}

func TestCache_DelayedReservation(t *testing.T) {
	c := newTestCache(t)
	path := filepath.Join(t.TempDir(), "sparse.bin")
	size := int64(64 << 10)

	collector := &mmapio.BasicMetricsCollector{}
	f, err := mmapio.Open(path, size,
		mmapio.WithSparse(true),
		mmapio.WithMetricsCollector(collector),
	)
	require.NoError(t, err)
	require.False(t, f.Allocated())
	require.Equal(t, int64(1), collector.ReserveCount.Load())

	// Seed the entry as if its initial reservation had fallen back to a
	// sparse file.
	c.mu.Lock()
	c.files[path] = &entry{f: f, size: size, used: true}
	c.mu.Unlock()

	// The first write retries physical allocation.
	_, err = c.WriteAt(path, size, []byte("x"), 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), collector.ReserveCount.Load())

	e := entryFor(t, c, path)
	e.mu.Lock()
	tried := e.triedReserve
	e.mu.Unlock()
	assert.True(t, tried)

	if runtime.GOOS == "linux" || runtime.GOOS == "darwin" {
		assert.True(t, f.Allocated())
	}

	// Exactly once: further writes never re-reserve.
	_, err = c.WriteAt(path, size, []byte("y"), 1)
	require.NoError(t, err)
	_, err = c.WriteAt(path, size, []byte("z"), 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), collector.ReserveCount.Load())
}

func TestCache_DisableMmap(t *testing.T) {
	c := newTestCache(t, func(o *Options) { o.DisableMmap = true })
	path := filepath.Join(t.TempDir(), "data.bin")

	data := testutil.Pattern(4096, 0)
	n, err := c.WriteAt(path, 64<<10, data, 0)
	require.NoError(t, err)
	require.Equal(t, len(data), n)

	out := make([]byte, len(data))
	n, err = c.ReadAt(path, 64<<10, out, 0)
	require.NoError(t, err)
	require.Equal(t, len(data), n)
	assert.Equal(t, data, out)

	require.NoError(t, c.Flush(path))
}

func TestCache_DisableMmap_NoSpace(t *testing.T) {
	c := newTestCache(t, func(o *Options) { o.DisableMmap = true })

	faulty := fs.NewFaultyFS(nil)
	faulty.SetLimit(1024)
	c.fsys = faulty

	path := filepath.Join(t.TempDir(), "data.bin")

	// Under the limit: fine.
	_, err := c.WriteAt(path, 64<<10, make([]byte, 512), 0)
	require.NoError(t, err)

	// Over the limit: the injected ENOSPC maps to the mmap-path error.
	_, err = c.WriteAt(path, 64<<10, make([]byte, 1024), 512)
	require.ErrorIs(t, err, mmapio.ErrNoSpace)
	require.ErrorIs(t, err, fs.ErrInjected.Err)
}

func TestCache_BackgroundFlusher(t *testing.T) {
	c := newTestCache(t, func(o *Options) {
		o.FlushInterval = 10 * time.Millisecond
		o.FlushBytesPerSec = 1 << 30
	})

	path := filepath.Join(t.TempDir(), "data.bin")
	_, err := c.WriteAt(path, 64<<10, testutil.Pattern(8192, 0), 0)
	require.NoError(t, err)

	// The flusher clears the dirty set without explicit Flush calls.
	require.Eventually(t, func() bool {
		c.mu.Lock()
		e := c.files[path]
		c.mu.Unlock()
		return e != nil && e.f.DirtyPages() == 0
	}, 2*time.Second, 10*time.Millisecond)
}
