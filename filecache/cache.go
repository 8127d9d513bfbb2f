package filecache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"syscall"

	"github.com/hupe1980/mmapio"
	"github.com/hupe1980/mmapio/internal/fs"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

var (
	// ErrCacheClosed is returned when operating on a closed Cache.
	ErrCacheClosed = errors.New("filecache: cache is closed")

	// ErrSizeMismatch is returned when a path is accessed with a different
	// size than the one its cached entry was created with.
	ErrSizeMismatch = errors.New("filecache: file size mismatch")
)

// Cache is a bounded, path-keyed cache of open mapped files.
//
// All methods are safe for concurrent use.
type Cache struct {
	mu    sync.Mutex
	files map[string]*entry
	sf    singleflight.Group

	opts    Options
	fsys    fs.FileSystem
	limiter *rate.Limiter
	logger  *mmapio.Logger
	metrics mmapio.MetricsCollector

	flushCtx    context.Context
	flushCancel context.CancelFunc
	wg          sync.WaitGroup

	closed bool
}

type entry struct {
	mu           sync.Mutex
	f            *mmapio.File // mmap path
	file         fs.File      // fallback path (DisableMmap)
	size         int64
	used         bool // guarded by Cache.mu
	triedReserve bool
}

// New creates a new Cache.
func New(optFns ...func(o *Options)) (*Cache, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.MaxEntries <= 0 {
		return nil, fmt.Errorf("filecache: invalid MaxEntries %d", opts.MaxEntries)
	}
	if opts.Logger == nil {
		opts.Logger = mmapio.NoopLogger()
	}
	if opts.Metrics == nil {
		opts.Metrics = mmapio.NoopMetricsCollector{}
	}

	c := &Cache{
		files:   make(map[string]*entry),
		opts:    opts,
		fsys:    fs.Default,
		logger:  opts.Logger,
		metrics: opts.Metrics,
	}

	if opts.FlushBytesPerSec > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.FlushBytesPerSec), opts.FlushBytesPerSec)
	}

	c.flushCtx, c.flushCancel = context.WithCancel(context.Background())
	if opts.FlushInterval > 0 {
		c.wg.Add(1)
		go c.flushLoop()
	}

	return c, nil
}

// Len returns the number of currently open entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.files)
}

// ReadAt reads len(p) bytes at off from the file at path, opening (and
// reserving space for) it with the given size if not cached yet.
func (c *Cache) ReadAt(path string, size int64, p []byte, off int64) (int, error) {
	for attempt := 0; ; attempt++ {
		e, err := c.get(path, size)
		if err != nil {
			return 0, err
		}

		var n int
		if e.f != nil {
			n, err = e.f.ReadAt(p, off)
		} else {
			n, err = e.file.ReadAt(p, off)
		}
		// The entry can lose a race with eviction; retry once with a
		// fresh entry. The fallback path reports the race as os.ErrClosed
		// from the entry's os.File.
		if isClosed(err) && attempt == 0 {
			c.drop(path, e)
			continue
		}
		return n, err
	}
}

// WriteAt writes len(p) bytes at off into the file at path, opening (and
// reserving space for) it with the given size if not cached yet.
//
// A disk filling up mid-write surfaces as mmapio.ErrNoSpace on both the
// mapped and the fallback path.
func (c *Cache) WriteAt(path string, size int64, p []byte, off int64) (int, error) {
	for attempt := 0; ; attempt++ {
		e, err := c.get(path, size)
		if err != nil {
			return 0, err
		}

		c.maybeReserve(path, e)

		var n int
		if e.f != nil {
			n, err = e.f.WriteAt(p, off)
		} else {
			n, err = e.file.WriteAt(p, off)
			if err != nil && errors.Is(err, syscall.ENOSPC) {
				err = fmt.Errorf("%w: %w", mmapio.ErrNoSpace, err)
			}
		}
		if isClosed(err) && attempt == 0 {
			c.drop(path, e)
			continue
		}
		return n, err
	}
}

// isClosed reports whether an entry's I/O failed because its handle was
// closed under it, on either the mapped or the fallback path.
func isClosed(err error) bool {
	return errors.Is(err, mmapio.ErrClosed) || errors.Is(err, os.ErrClosed)
}

// maybeReserve retries physical allocation once for entries whose initial
// reservation fell back to a sparse file.
func (c *Cache) maybeReserve(path string, e *entry) {
	if e.f == nil || c.opts.Sparse || e.f.Allocated() {
		return
	}

	e.mu.Lock()
	tried := e.triedReserve
	e.triedReserve = true
	e.mu.Unlock()
	if tried {
		return
	}

	if err := e.f.TryReserve(); err != nil {
		c.logger.Warn("delayed space reservation failed",
			"path", path,
			"error", err,
		)
	}
}

// Flush flushes dirty pages of the file at path. Unknown paths are a no-op.
func (c *Cache) Flush(path string) error {
	c.mu.Lock()
	e, ok := c.files[path]
	c.mu.Unlock()
	if !ok {
		return nil
	}
	return c.flushEntry(e)
}

// FlushAll flushes dirty pages of every cached file.
func (c *Cache) FlushAll() error {
	var firstErr error
	for _, e := range c.snapshot() {
		if err := c.flushEntry(e); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Evict flushes and closes the entry for path, keeping the file on disk.
func (c *Cache) Evict(path string) error {
	c.mu.Lock()
	e, ok := c.files[path]
	if ok {
		delete(c.files, path)
	}
	c.mu.Unlock()
	if !ok {
		return nil
	}
	return closeEntry(e)
}

// Remove evicts the entry for path and deletes the file from disk.
func (c *Cache) Remove(path string) error {
	if err := c.Evict(path); err != nil {
		return err
	}
	err := c.fsys.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Reclaim closes entries not used since the previous sweep and resets the
// used flags of the rest.
func (c *Cache) Reclaim() {
	c.mu.Lock()
	var victims []*entry
	for path, e := range c.files {
		if !e.used {
			victims = append(victims, e)
			delete(c.files, path)
			continue
		}
		e.used = false
	}
	c.mu.Unlock()

	for _, e := range victims {
		_ = closeEntry(e)
	}
	if len(victims) > 0 {
		c.logger.Debug("reclaimed cache entries", "count", len(victims))
	}
}

// Close stops the background flusher and flushes and closes every entry.
func (c *Cache) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	files := c.files
	c.files = make(map[string]*entry)
	c.mu.Unlock()

	c.flushCancel()
	c.wg.Wait()

	var firstErr error
	for _, e := range files {
		if err := closeEntry(e); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (c *Cache) get(path string, size int64) (*entry, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrCacheClosed
	}
	if e, ok := c.files[path]; ok {
		if e.size != size {
			c.mu.Unlock()
			return nil, fmt.Errorf("%w: %s cached with %d, requested %d", ErrSizeMismatch, path, e.size, size)
		}
		e.used = true
		c.mu.Unlock()
		return e, nil
	}
	c.mu.Unlock()

	v, err, _ := c.sf.Do(path, func() (any, error) {
		e, err := c.open(path, size)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			_ = closeEntry(e)
			return nil, ErrCacheClosed
		}
		if len(c.files) >= c.opts.MaxEntries {
			c.evictOneLocked()
		}
		c.files[path] = e
		c.mu.Unlock()
		return e, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*entry), nil
}

// drop removes a stale entry so the next access reopens the file, but only
// if the map still holds that exact entry.
func (c *Cache) drop(path string, stale *entry) {
	c.mu.Lock()
	if e, ok := c.files[path]; ok && e == stale {
		delete(c.files, path)
	}
	c.mu.Unlock()
}

func (c *Cache) open(path string, size int64) (*entry, error) {
	if c.opts.DisableMmap {
		file, err := c.fsys.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
		if err != nil {
			return nil, fmt.Errorf("filecache: open %s: %w", path, err)
		}
		st, err := file.Stat()
		if err != nil {
			_ = file.Close()
			return nil, fmt.Errorf("filecache: stat %s: %w", path, err)
		}
		if st.Size() != size {
			if err := file.Truncate(size); err != nil {
				_ = file.Close()
				return nil, fmt.Errorf("filecache: truncate %s: %w", path, err)
			}
		}
		return &entry{file: file, size: size, used: true}, nil
	}

	f, err := mmapio.Open(path, size,
		mmapio.WithSparse(c.opts.Sparse),
		mmapio.WithLogger(c.logger),
		mmapio.WithMetricsCollector(c.metrics),
	)
	if err != nil {
		return nil, err
	}
	return &entry{f: f, size: size, used: true}, nil
}

// evictOneLocked makes room for a new entry. Prefers entries not used since
// the last sweep; falls back to an arbitrary one.
func (c *Cache) evictOneLocked() {
	var victimPath string
	var victim *entry
	for path, e := range c.files {
		victimPath, victim = path, e
		if !e.used {
			break
		}
	}
	if victim == nil {
		return
	}
	delete(c.files, victimPath)
	_ = closeEntry(victim)
	c.logger.Debug("evicted cache entry", "path", victimPath)
}

func (c *Cache) snapshot() []*entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	entries := make([]*entry, 0, len(c.files))
	for _, e := range c.files {
		entries = append(entries, e)
	}
	return entries
}

func (c *Cache) flushEntry(e *entry) error {
	if e.f != nil {
		return e.f.SyncDirty()
	}
	return e.file.Sync()
}

func closeEntry(e *entry) error {
	if e.f != nil {
		return e.f.Close()
	}
	if err := e.file.Sync(); err != nil {
		_ = e.file.Close()
		return err
	}
	return e.file.Close()
}
