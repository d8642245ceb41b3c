package packfile

import (
	"bytes"
	"io"
	"os"
)

// deltaResultCachedMax is the in-memory ceiling for delta application.
// Chains whose largest intermediate result stays below it are applied in
// memory; anything bigger goes through the two-temp-file path.
const deltaResultCachedMax = 8 << 20

// deltaSizeProbe is how many inflated bytes are needed to read a delta
// stream's two leading size varints (at most 10 bytes each).
const deltaSizeProbe = 20

// ExtractToMemory materialises the object described by o and returns its
// raw bytes. The returned slice is owned by the caller.
//
// Plain objects inflate directly; deltified objects have their chain
// applied base-first. Results are cached so repeated extraction of hot
// objects skips decompression entirely.
func (s *Store) ExtractToMemory(o *Object) ([]byte, error) {
	if !o.Packed {
		return nil, ErrObjectNotPacked
	}

	if c, ok := s.objects.Get(o.ID); ok {
		o.Size = uint64(len(c.data))
		return bytes.Clone(c.data), nil
	}

	var data []byte
	if !o.deltified {
		p, err := s.ensurePack(o.pack)
		if err != nil {
			return nil, err
		}
		data, err = p.inflate(o.dataOffset)
		if err != nil {
			return nil, err
		}
	} else {
		var err error
		data, err = s.applyChainToMemory(o.chain)
		if err != nil {
			return nil, err
		}
	}

	o.Size = uint64(len(data))
	s.objects.Add(o.ID, cachedObj{data: data, typ: o.Type})
	return bytes.Clone(data), nil
}

// ExtractToFile materialises the object described by o into an unnamed
// temporary file and returns it rewound to offset 0. The file is already
// unlinked; closing it releases the storage on every exit path.
func (s *Store) ExtractToFile(o *Object) (*os.File, error) {
	if !o.Packed {
		return nil, ErrObjectNotPacked
	}

	out, err := newScratchFile()
	if err != nil {
		return nil, err
	}

	if err := s.extractTo(out, o); err != nil {
		_ = out.Close()
		return nil, err
	}
	if _, err := out.Seek(0, io.SeekStart); err != nil {
		_ = out.Close()
		return nil, err
	}
	return out, nil
}

// extractTo writes the materialised object into out. Partial output is the
// caller's to discard.
func (s *Store) extractTo(out *os.File, o *Object) error {
	if !o.deltified {
		p, err := s.ensurePack(o.pack)
		if err != nil {
			return err
		}
		n, err := p.inflateTo(out, o.dataOffset)
		if err != nil {
			return err
		}
		o.Size = uint64(n)
		return nil
	}

	maxSize, err := s.chainMaxSize(o.chain)
	if err != nil {
		return err
	}

	// Small results are applied entirely in memory for speed; only the
	// final bytes touch the output file.
	if maxSize < deltaResultCachedMax {
		data, err := s.applyChainToMemory(o.chain)
		if err != nil {
			return err
		}
		if _, err := out.Write(data); err != nil {
			return err
		}
		o.Size = uint64(len(data))
		s.objects.Add(o.ID, cachedObj{data: data, typ: o.Type})
		return nil
	}

	n, err := s.applyChainToFile(out, o.chain)
	if err != nil {
		return err
	}
	o.Size = uint64(n)
	return nil
}

// chainMaxSize returns the largest buffer any step of applying the chain
// needs: the maximum over all links of base and result sizes. Delta sizes
// come from the two leading varints of each delta stream, inflating only
// a short prefix.
func (s *Store) chainMaxSize(chain *deltaChain) (uint64, error) {
	base, err := chain.base()
	if err != nil {
		return 0, err
	}

	maxSize := base.size
	for _, link := range chain.links[1:] {
		delta, err := s.deltaStreamPrefix(link)
		if err != nil {
			return 0, err
		}
		baseSize, resultSize, _, err := deltaSizes(delta)
		if err != nil {
			return 0, err
		}
		maxSize = max(maxSize, baseSize, resultSize)
	}
	return maxSize, nil
}

// deltaStreamPrefix returns enough leading bytes of link's inflated delta
// stream to parse its size header, preferring the delta cache.
func (s *Store) deltaStreamPrefix(link deltaLink) ([]byte, error) {
	if buf, ok := s.deltas.get(link.pack.Path, link.dataOffset); ok {
		return buf, nil
	}
	p, err := s.ensurePack(link.pack)
	if err != nil {
		return nil, err
	}
	return p.inflatePrefix(link.dataOffset, deltaSizeProbe)
}

// deltaStream returns link's fully inflated delta instruction stream,
// consulting the delta cache first and populating it on a miss. The
// returned buffer is owned by the cache and must not be mutated.
func (s *Store) deltaStream(link deltaLink) ([]byte, error) {
	if buf, ok := s.deltas.get(link.pack.Path, link.dataOffset); ok {
		return buf, nil
	}
	p, err := s.ensurePack(link.pack)
	if err != nil {
		return nil, err
	}
	buf, err := p.inflate(link.dataOffset)
	if err != nil {
		return nil, err
	}
	s.deltas.add(link.pack.Path, link.dataOffset, buf)
	return buf, nil
}

// applyChainToMemory inflates the chain's base and applies each delta in
// order, returning the final bytes.
func (s *Store) applyChainToMemory(chain *deltaChain) ([]byte, error) {
	base, err := chain.base()
	if err != nil {
		return nil, err
	}

	p, err := s.ensurePack(base.pack)
	if err != nil {
		return nil, err
	}
	cur, err := p.inflate(base.dataOffset)
	if err != nil {
		return nil, err
	}

	for _, link := range chain.links[1:] {
		delta, err := s.deltaStream(link)
		if err != nil {
			return nil, err
		}
		cur, err = applyDelta(cur, delta)
		if err != nil {
			return nil, err
		}
	}
	return cur, nil
}

// applyChainToFile materialises a chain too large for memory: the base is
// inflated into one temp file, every delta application streams into the
// other, and the two swap roles between steps. The final application
// writes directly to out.
func (s *Store) applyChainToFile(out *os.File, chain *deltaChain) (int64, error) {
	base, err := chain.base()
	if err != nil {
		return 0, err
	}

	baseFile, err := newScratchFile()
	if err != nil {
		return 0, err
	}
	defer baseFile.Close()

	accumFile, err := newScratchFile()
	if err != nil {
		return 0, err
	}
	defer accumFile.Close()

	p, err := s.ensurePack(base.pack)
	if err != nil {
		return 0, err
	}
	baseSize, err := p.inflateTo(baseFile, base.dataOffset)
	if err != nil {
		return 0, err
	}

	deltas := chain.links[1:]
	var written int64
	for i, link := range deltas {
		delta, err := s.deltaStream(link)
		if err != nil {
			return 0, err
		}

		dst := accumFile
		if i == len(deltas)-1 {
			dst = out
		}
		written, err = applyDeltaStream(baseFile, baseSize, delta, dst)
		if err != nil {
			return 0, err
		}

		if i < len(deltas)-1 {
			// The accumulated result becomes the next base.
			baseFile, accumFile = accumFile, baseFile
			baseSize = written
			if err := accumFile.Truncate(0); err != nil {
				return 0, err
			}
			if _, err := accumFile.Seek(0, io.SeekStart); err != nil {
				return 0, err
			}
		}
	}
	return written, nil
}

// newScratchFile opens an anonymous temporary file: created under the
// scratch directory and unlinked immediately, so the storage is released
// when the handle closes, on every exit path including errors.
func newScratchFile() (*os.File, error) {
	f, err := os.CreateTemp("", "gitread-obj-*")
	if err != nil {
		return nil, err
	}
	if err := os.Remove(f.Name()); err != nil {
		_ = f.Close()
		return nil, err
	}
	return f, nil
}
