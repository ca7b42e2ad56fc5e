package assets

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/AaronLay10/AdventureEngine/internal/events"
)

type entry struct {
	status   Status
	asset    *Asset
	err      error
	refcount int
}

// Cache maps addresses to in-flight or completed loads.
//
// The entries map is guarded by mu; loads run outside the lock. singleflight
// keys flights by address, so concurrent Acquire calls for the same address
// share one backend load and observe the same outcome.
type Cache struct {
	loader Loader

	mu      sync.Mutex
	entries map[string]*entry

	group singleflight.Group
	loads atomic.Int64
}

// NewCache creates an empty cache backed by loader.
func NewCache(loader Loader) *Cache {
	return &Cache{
		loader:  loader,
		entries: make(map[string]*entry),
	}
}

// Acquire returns the asset stored under address, loading it if needed.
// A succeeded entry is returned without new work. A pending entry is joined.
// A missing or failed entry starts a fresh load. Each successful Acquire
// takes one reference that Release gives back.
//
// If ctx is done before the load completes the caller stops waiting; the load
// itself keeps running for any other waiters.
func (c *Cache) Acquire(ctx context.Context, address string) (*Asset, error) {
	if a, ok := c.retainCached(address); ok {
		return a, nil
	}

	loadCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(address, func() (interface{}, error) {
		return c.load(loadCtx, address)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		a := res.Val.(*Asset)
		c.retain(address, a)
		return a, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Cache) retainCached(address string) (*Asset, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[address]
	if !ok || e.status != StatusSucceeded {
		return nil, false
	}
	e.refcount++
	return e.asset, true
}

func (c *Cache) retain(address string, a *Asset) {
	c.mu.Lock()
	defer c.mu.Unlock()
	// The entry may have been released or evicted while the load ran.
	if e, ok := c.entries[address]; ok && e.status == StatusSucceeded && e.asset == a {
		e.refcount++
	}
}

// load runs inside a singleflight flight for address.
func (c *Cache) load(ctx context.Context, address string) (*Asset, error) {
	c.mu.Lock()
	// A previous flight may have completed between the fast path and DoChan.
	if e, ok := c.entries[address]; ok && e.status == StatusSucceeded {
		c.mu.Unlock()
		return e.asset, nil
	}
	e := &entry{status: StatusPending}
	c.entries[address] = e
	c.mu.Unlock()

	c.loads.Add(1)
	events.Emit("info", "asset.load_started", "", map[string]interface{}{
		"address": address,
	})

	a, err := c.loader.Load(ctx, address)
	if err == nil && a == nil {
		err = ErrNotFound
	}

	c.mu.Lock()
	if err != nil {
		e.status = StatusFailed
		e.err = err
	} else {
		e.status = StatusSucceeded
		e.asset = a
	}
	c.mu.Unlock()

	if err != nil {
		events.Emit("error", "asset.load_failed", err.Error(), map[string]interface{}{
			"address": address,
		})
		return nil, fmt.Errorf("%w: %s: %w", ErrLoadFailed, address, err)
	}

	events.Emit("info", "asset.loaded", "", map[string]interface{}{
		"address": address,
		"source":  a.Source,
		"bytes":   len(a.Data),
	})
	return a, nil
}

// Release gives back one reference to address. When the last reference is
// released the entry is removed and the asset handed back to the loader.
// Unknown addresses are ignored. An in-flight load is never cancelled.
func (c *Cache) Release(address string) {
	c.mu.Lock()
	e, ok := c.entries[address]
	if !ok {
		c.mu.Unlock()
		return
	}
	if e.refcount > 1 {
		e.refcount--
		c.mu.Unlock()
		return
	}
	delete(c.entries, address)
	c.mu.Unlock()

	c.free(e)
	events.Emit("info", "asset.released", "", map[string]interface{}{
		"address": address,
		"status":  string(e.status),
	})
}

// Evict drops address regardless of its refcount so the next Acquire reloads.
// Holders of the previous asset keep using it.
func (c *Cache) Evict(address string) bool {
	c.mu.Lock()
	e, ok := c.entries[address]
	if ok {
		delete(c.entries, address)
	}
	c.mu.Unlock()

	if !ok {
		return false
	}
	c.free(e)
	events.Emit("info", "asset.evicted", "", map[string]interface{}{
		"address": address,
	})
	return true
}

// Teardown releases every entry. Afterwards the cache behaves as on a cold start.
func (c *Cache) Teardown() {
	c.mu.Lock()
	old := c.entries
	c.entries = make(map[string]*entry)
	c.mu.Unlock()

	for _, e := range old {
		c.free(e)
	}
	events.Emit("info", "asset.teardown", "", map[string]interface{}{
		"released": len(old),
	})
}

func (c *Cache) free(e *entry) {
	if e.status != StatusSucceeded {
		return
	}
	if r, ok := c.loader.(Releaser); ok {
		r.Release(e.asset)
	}
}

// Snapshot returns a view of every entry, sorted by address.
func (c *Cache) Snapshot() []Handle {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Handle, 0, len(c.entries))
	for addr, e := range c.entries {
		h := Handle{
			Address:  addr,
			Status:   e.status,
			Refcount: e.refcount,
		}
		if e.asset != nil {
			h.Source = e.asset.Source
		}
		if e.err != nil {
			h.Error = e.err.Error()
		}
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

// Lookup returns the handle for address, if cached.
func (c *Cache) Lookup(address string) (Handle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[address]
	if !ok {
		return Handle{}, false
	}
	h := Handle{Address: address, Status: e.status, Refcount: e.refcount}
	if e.asset != nil {
		h.Source = e.asset.Source
	}
	if e.err != nil {
		h.Error = e.err.Error()
	}
	return h, true
}

// LoadCount returns the number of backend loads started since creation.
func (c *Cache) LoadCount() int64 {
	return c.loads.Load()
}
