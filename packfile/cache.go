package packfile

import (
	"github.com/dgryski/go-farm"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/gitread/gitread/object"
)

const (
	// packCacheSize bounds the number of simultaneously open pack/index
	// pairs. Eviction closes the file handle of the least-recently-used
	// pack.
	packCacheSize = 16

	// deltaCacheSize bounds the number of cached inflated delta streams.
	deltaCacheSize = 256

	// maxCachedDeltaLen keeps a single oversized delta stream from
	// evicting the whole working set.
	maxCachedDeltaLen = 8 << 20

	// objectCacheSize bounds the ARC of fully materialised objects held by
	// the store.
	objectCacheSize = 1 << 12
)

// packCache holds open pack handles in most-recently-used order, keyed by
// the pack checksum recorded in each index trailer.
type packCache struct {
	entries *lru.Cache[object.Hash, *Pack]
}

func newPackCache() (*packCache, error) {
	entries, err := lru.NewWithEvict(packCacheSize, func(_ object.Hash, p *Pack) {
		_ = p.Close()
	})
	if err != nil {
		return nil, err
	}
	return &packCache{entries: entries}, nil
}

// get returns the cached pack identified by its trailer checksum,
// promoting it to most-recently-used on a hit.
func (c *packCache) get(packSHA object.Hash) (*Pack, bool) {
	return c.entries.Get(packSHA)
}

// add inserts p at the most-recently-used position. When the cache is
// full the least-recently-used pack is evicted and its handle closed.
func (c *packCache) add(p *Pack) {
	c.entries.Add(p.Index.PackSHA, p)
}

// findObject walks the cached packs newest-first and returns the first
// whose index contains id, promoting the winner.
func (c *packCache) findObject(id object.Hash) (*Pack, int, bool) {
	keys := c.entries.Keys() // oldest first
	for i := len(keys) - 1; i >= 0; i-- {
		p, ok := c.entries.Peek(keys[i])
		if !ok {
			continue
		}
		if slot, found := p.Index.FindObject(id); found {
			c.entries.Get(keys[i])
			return p, slot, true
		}
	}
	return nil, 0, false
}

// len reports the number of cached packs.
func (c *packCache) len() int { return c.entries.Len() }

// purge evicts every pack, closing all handles.
func (c *packCache) purge() { c.entries.Purge() }

// deltaKey identifies one inflated delta stream: the pack it lives in
// (as a farm hash of the pack path, cheaper to key on than the string)
// and the offset of its compressed payload.
type deltaKey struct {
	pack   uint64
	offset int64
}

func makeDeltaKey(packPath string, offset int64) deltaKey {
	return deltaKey{pack: farm.Hash64([]byte(packPath)), offset: offset}
}

// deltaCache holds inflated delta instruction streams so that chains
// sharing a base re-read each delta at most once. Buffers are owned by
// the cache and loaned to callers, who must not mutate them.
type deltaCache struct {
	entries *lru.Cache[deltaKey, []byte]
}

func newDeltaCache() (*deltaCache, error) {
	entries, err := lru.New[deltaKey, []byte](deltaCacheSize)
	if err != nil {
		return nil, err
	}
	return &deltaCache{entries: entries}, nil
}

// get returns the cached inflated delta for the given pack and payload
// offset. The returned slice is borrowed from the cache.
func (c *deltaCache) get(packPath string, offset int64) ([]byte, bool) {
	return c.entries.Get(makeDeltaKey(packPath, offset))
}

// add caches an inflated delta stream. Streams larger than
// maxCachedDeltaLen are deliberately skipped.
func (c *deltaCache) add(packPath string, offset int64, buf []byte) {
	if len(buf) > maxCachedDeltaLen {
		return
	}
	c.entries.Add(makeDeltaKey(packPath, offset), buf)
}

// len reports the number of cached delta streams.
func (c *deltaCache) len() int { return c.entries.Len() }

// purge drops every cached delta.
func (c *deltaCache) purge() { c.entries.Purge() }

// cachedObj pairs a fully materialised object with its resolved type so a
// cache hit skips both chain resolution and type detection.
type cachedObj struct {
	data []byte
	typ  object.Type
}
