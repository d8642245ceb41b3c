package packfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/hashicorp/golang-lru/arc/v2"

	"github.com/gitread/gitread/object"
)

// Store provides read-only access to every pack under one objects/pack
// directory.
//
// A Store owns three caches: open pack handles (closed on eviction),
// inflated delta streams, and fully materialised objects. All state lives
// in the Store, never in package globals; closing the store releases every
// file handle it opened.
//
// A Store is meant to be driven by one caller at a time. The caches are
// internally synchronised and the locate path holds a store mutex, so
// incidental concurrent reads do not corrupt state, but no fairness or
// ordering between concurrent operations is promised.
type Store struct {
	// dir is the objects/pack directory the store reads from.
	dir string

	// mu serialises the locate path: the cache walk, the directory scan,
	// and pack opening.
	mu sync.Mutex

	// packs caches open pack/index pairs in MRU order.
	packs *packCache

	// deltas caches inflated delta instruction streams.
	deltas *deltaCache

	// objects caches fully materialised objects. The adaptive replacement
	// policy balances recency and frequency, which suits history walks
	// that revisit trees and bases.
	objects *arc.ARCCache[object.Hash, cachedObj]
}

// OpenStore opens a pack store over the given objects/pack directory.
// The directory may be absent or empty; lookups then fail with
// ErrObjectNotFound until packs appear.
func OpenStore(dir string) (*Store, error) {
	packs, err := newPackCache()
	if err != nil {
		return nil, err
	}
	deltas, err := newDeltaCache()
	if err != nil {
		return nil, err
	}
	objects, err := arc.NewARC[object.Hash, cachedObj](objectCacheSize)
	if err != nil {
		return nil, err
	}
	return &Store{dir: dir, packs: packs, deltas: deltas, objects: objects}, nil
}

// Close releases both caches and every file handle the store opened.
// The store must not be used afterwards. Close is idempotent.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.packs.purge()
	s.deltas.purge()
	s.objects.Purge()
	return nil
}

// isPackIndexName reports whether name looks like pack-<40 hex>.idx.
func isPackIndexName(name string) bool {
	if !strings.HasPrefix(name, "pack-") || !strings.HasSuffix(name, ".idx") {
		return false
	}
	hexPart := name[len("pack-") : len(name)-len(".idx")]
	if len(hexPart) != 2*hashSize {
		return false
	}
	for _, c := range hexPart {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// locate finds the pack containing id and the object's slot in that
// pack's index.
//
// Cached packs are consulted first, newest first. On a miss the pack
// directory is scanned for pack-*.idx files; the first index containing
// id has its pack opened and cached, which may evict (and close) the
// least-recently-used pack. When no pack knows the id the lookup fails
// with ErrObjectNotFound.
func (s *Store) locate(id object.Hash) (*Pack, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, slot, ok := s.packs.findObject(id); ok {
		return p, slot, nil
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, fmt.Errorf("%w: %s", ErrObjectNotFound, id)
		}
		return nil, 0, err
	}

	for _, ent := range entries {
		if ent.IsDir() || !isPackIndexName(ent.Name()) {
			continue
		}
		ix, err := OpenIndex(filepath.Join(s.dir, ent.Name()))
		if err != nil {
			return nil, 0, err
		}
		slot, ok := ix.FindObject(id)
		if !ok {
			continue
		}
		p, err := s.cachePack(ix)
		if err != nil {
			return nil, 0, err
		}
		return p, slot, nil
	}

	return nil, 0, fmt.Errorf("%w: %s", ErrObjectNotFound, id)
}

// cachePack returns the open pack for ix, opening and caching it when the
// pack cache has no handle yet. The caller must hold s.mu.
func (s *Store) cachePack(ix *Index) (*Pack, error) {
	if p, ok := s.packs.get(ix.PackSHA); ok {
		return p, nil
	}
	p, err := openPack(ix)
	if err != nil {
		return nil, err
	}
	s.packs.add(p)
	return p, nil
}

// ensurePack returns a live handle for the pack p belongs to, reopening
// it when eviction has closed the cached handle in the meantime.
func (s *Store) ensurePack(p *Pack) (*Pack, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cachePack(p.Index)
}

// Object describes one located object. Descriptors for deltified objects
// carry the resolved chain; their Size stays 0 until extraction because
// the deltas have not been applied yet.
type Object struct {
	// ID is the object's content hash.
	ID object.Hash

	// Type is the resolved object type, always one of the plain kinds.
	Type object.Type

	// Size is the uncompressed size. For deltified objects it is 0 until
	// the object has been extracted once.
	Size uint64

	// PackPath is the pack file the object's entry lives in.
	PackPath string

	// Packed is false for descriptors synthesised by a loose-object layer;
	// such objects cannot be extracted from a pack.
	Packed bool

	// deltified marks objects stored as a delta; chain then holds the
	// resolved base-first chain.
	deltified bool
	chain     *deltaChain

	// pack is the pack the descriptor was opened from.
	pack *Pack

	// dataOffset is the zlib payload position for plain objects.
	dataOffset int64
}

// Close releases per-object state, including the resolved delta chain.
// The descriptor must not be used afterwards.
func (o *Object) Close() {
	if o == nil {
		return
	}
	o.chain = nil
	o.pack = nil
}

// OpenObject locates id and returns its descriptor.
//
// For plain objects the descriptor records the payload offset and the
// declared size. For deltified objects the whole chain is resolved up
// front so that the descriptor can already report the resolved (base)
// type; invariant: the reported type is never a delta kind.
func (s *Store) OpenObject(id object.Hash) (*Object, error) {
	p, slot, err := s.locate(id)
	if err != nil {
		return nil, err
	}
	off, err := p.Index.ObjectOffset(slot)
	if err != nil {
		return nil, err
	}

	typ, size, hdrLen, err := p.readObjectHeader(off)
	if err != nil {
		return nil, err
	}

	switch {
	case typ.IsPlain():
		return &Object{
			ID:         id,
			Type:       typ,
			Size:       size,
			PackPath:   p.Path,
			Packed:     true,
			pack:       p,
			dataOffset: off + int64(hdrLen),
		}, nil

	case typ.IsDelta():
		chain, err := s.resolveDeltaChain(p, off)
		if err != nil {
			return nil, err
		}
		base, err := chain.base()
		if err != nil {
			return nil, err
		}
		return &Object{
			ID:        id,
			Type:      base.typ,
			Size:      0, // unknown until the deltas are applied
			PackPath:  p.Path,
			Packed:    true,
			deltified: true,
			chain:     chain,
			pack:      p,
		}, nil

	default:
		return nil, fmt.Errorf("%w: type %d for %s", ErrUnknownObjectType, typ, id)
	}
}

// ObjectType returns the resolved type of id without materialising it.
func (s *Store) ObjectType(id object.Hash) (object.Type, error) {
	if c, ok := s.objects.Get(id); ok {
		return c.typ, nil
	}
	obj, err := s.OpenObject(id)
	if err != nil {
		return object.TypeBad, err
	}
	defer obj.Close()
	return obj.Type, nil
}

// Contains reports whether any known pack holds id.
func (s *Store) Contains(id object.Hash) bool {
	_, _, err := s.locate(id)
	return err == nil
}

// CachedPacks reports how many pack handles are currently open, which is
// bounded by the pack cache capacity.
func (s *Store) CachedPacks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.packs.len()
}
