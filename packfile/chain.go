package packfile

import (
	"fmt"
	"slices"

	"github.com/gitread/gitread/object"
)

// maxDeltaDepth caps delta chain resolution. Git's own limit is 50; a
// well-formed pack never comes close, and the cap keeps a corrupt pack
// with cyclic back-references from looping forever.
const maxDeltaDepth = 50

// deltaLink is one element of a resolved delta chain. The first link is
// always a plain object; every later link is a delta transforming the
// cumulative result. Links record the pack they live in because ref
// deltas can point across pack files.
type deltaLink struct {
	// pack is the pack file holding this link.
	pack *Pack

	// headerOffset is the position of the link's object header.
	headerOffset int64

	// headerLen is the length of the variable-length header.
	headerLen int

	// typ is the on-disk type: plain for the base, a delta kind otherwise.
	typ object.Type

	// size is the declared uncompressed size from the object header. For
	// delta links this is the size of the delta stream, not the result.
	size uint64

	// dataOffset is where the zlib payload starts: right after the header
	// for plain objects, after the base reference for deltas.
	dataOffset int64
}

// deltaChain is an ordered delta chain, base first, leaf last.
type deltaChain struct {
	links []deltaLink
}

// base returns the plain object at the head of the chain. An empty chain
// or a non-plain head fails with ErrBadDeltaChain.
func (c *deltaChain) base() (deltaLink, error) {
	if len(c.links) == 0 {
		return deltaLink{}, fmt.Errorf("%w: empty chain", ErrBadDeltaChain)
	}
	if !c.links[0].typ.IsPlain() {
		return deltaLink{}, fmt.Errorf("%w: no plain base object", ErrBadDeltaChain)
	}
	return c.links[0], nil
}

// resolveDeltaChain walks backwards from the object at headerOffset in p
// until it reaches a plain base, returning the chain in base-first order.
//
// Offset deltas stay within the same pack and are strictly regressive.
// Ref deltas re-enter the locator, which may open (and cache) a different
// pack; the link then records that pack. Resolution is iterative with an
// explicit link list, and is bounded by maxDeltaDepth against corrupt
// packs with cyclic references.
func (s *Store) resolveDeltaChain(p *Pack, headerOffset int64) (*deltaChain, error) {
	chain := &deltaChain{}
	pack := p
	off := headerOffset

	for depth := 0; ; depth++ {
		if depth > maxDeltaDepth {
			return nil, fmt.Errorf("%w: longer than %d links", ErrBadDeltaChain, maxDeltaDepth)
		}

		typ, size, hdrLen, err := pack.readObjectHeader(off)
		if err != nil {
			return nil, err
		}

		link := deltaLink{
			pack:         pack,
			headerOffset: off,
			headerLen:    hdrLen,
			typ:          typ,
			size:         size,
		}

		switch {
		case typ.IsPlain():
			// The plain base terminates the walk.
			link.dataOffset = off + int64(hdrLen)
			chain.links = slices.Insert(chain.links, 0, link)
			return chain, nil

		case typ == object.TypeOfsDelta:
			baseOff, n, err := pack.readBaseOffset(off+int64(hdrLen), off)
			if err != nil {
				return nil, err
			}
			link.dataOffset = off + int64(hdrLen) + int64(n)
			chain.links = slices.Insert(chain.links, 0, link)
			off = baseOff

		case typ == object.TypeRefDelta:
			baseID, n, err := pack.readBaseID(off + int64(hdrLen))
			if err != nil {
				return nil, err
			}
			link.dataOffset = off + int64(hdrLen) + int64(n)
			chain.links = slices.Insert(chain.links, 0, link)

			basePack, slot, err := s.locate(baseID)
			if err != nil {
				return nil, err
			}
			baseOff, err := basePack.Index.ObjectOffset(slot)
			if err != nil {
				return nil, err
			}
			pack = basePack
			off = baseOff

		default:
			return nil, fmt.Errorf("%w: type %d at offset %d in %s", ErrUnknownObjectType, typ, off, pack.Path)
		}
	}
}
