package compiler

import (
	"sync"
	"sync/atomic"

	"github.com/roach88/exprjit/internal/ir"
	"github.com/roach88/exprjit/internal/vm"
)

// Cache memoizes compilation by tree identity: each *ir.Lambda is compiled at
// most once, even when many goroutines ask for it at the same time. Failed
// compilations are cached too, since compiling the same tree again fails the
// same way.
type Cache struct {
	opts     []Option
	entries  sync.Map // *ir.Lambda -> *cacheEntry
	compiles atomic.Int64
}

type cacheEntry struct {
	once sync.Once
	fn   *vm.Func
	err  error
}

// NewCache returns an empty cache compiling with opts.
func NewCache(opts ...Option) *Cache {
	return &Cache{opts: opts}
}

// Get returns the callable for lam, compiling it on first use.
func (c *Cache) Get(lam *ir.Lambda) (*vm.Func, error) {
	v, _ := c.entries.LoadOrStore(lam, &cacheEntry{})
	entry := v.(*cacheEntry)
	entry.once.Do(func() {
		c.compiles.Add(1)
		entry.fn, entry.err = Compile(lam, c.opts...)
	})
	return entry.fn, entry.err
}

// Compiles returns how many compilations the cache has performed.
func (c *Cache) Compiles() int64 { return c.compiles.Load() }
