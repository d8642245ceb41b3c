package packfile

import (
	"compress/zlib"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"golang.org/x/exp/mmap"

	"github.com/gitread/gitread/object"
)

const (
	packSignature = 0x5041434b // "PACK"
	packVersion   = 2

	// An object header encodes a 64-bit size in at most 10 bytes; a
	// negative delta offset fits in at most 9.
	maxObjHeaderLen = 10
	maxNegOffsetLen = 9
)

// Pack pairs a parsed index with an open, read-only view of its companion
// *.pack file. Pack handles live inside the store's pack cache; eviction
// closes them.
type Pack struct {
	// Index describes every object the pack contains.
	Index *Index

	// Path is the filesystem location of the *.pack file.
	Path string

	// file is the open pack handle. The mapping is read-only and shared by
	// every reader of this pack.
	file *mmap.ReaderAt
}

// openPack opens the *.pack companion of ix and validates its header
// against the index: the signature, version 2, and an object count equal
// to fanout[255]. A mismatch fails with ErrBadPackfile.
func openPack(ix *Index) (*Pack, error) {
	path := ix.PackPath()
	h, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}

	var hdr [12]byte
	if _, err := h.ReadAt(hdr[:], 0); err != nil {
		_ = h.Close()
		return nil, fmt.Errorf("%w: truncated header: %v", ErrBadPackfile, err)
	}
	if binary.BigEndian.Uint32(hdr[0:4]) != packSignature ||
		binary.BigEndian.Uint32(hdr[4:8]) != packVersion ||
		binary.BigEndian.Uint32(hdr[8:12]) != ix.ObjectCount() {
		_ = h.Close()
		return nil, fmt.Errorf("%w: header disagrees with index %s", ErrBadPackfile, ix.Path())
	}

	return &Pack{Index: ix, Path: path, file: h}, nil
}

// Close releases the pack's file mapping.
func (p *Pack) Close() error { return p.file.Close() }

// readObjectHeader decodes the variable-length object header at off.
//
// The first byte carries the type in bits 6-4 and the low size nibble;
// continuation bytes contribute seven size bits each. Headers longer than
// ten bytes, or a final byte whose bits land past bit 63, would overflow a
// 64-bit size and fail with ErrIntegerOverflow; truncation fails with
// ErrBadIndex, matching the index-style error the rest of the parse path
// uses.
func (p *Pack) readObjectHeader(off int64) (typ object.Type, size uint64, hdrLen int, err error) {
	var buf [maxObjHeaderLen]byte
	n, err := p.file.ReadAt(buf[:], off)
	if err != nil && !errors.Is(err, io.EOF) {
		return object.TypeBad, 0, 0, err
	}
	if n == 0 {
		return object.TypeBad, 0, 0, fmt.Errorf("%w: empty object header", ErrBadIndex)
	}

	b := buf[0]
	typ = object.Type((b >> 4) & 7)
	size = uint64(b & 0x0f)
	hdrLen = 1
	shift := uint(4)

	for b&0x80 != 0 {
		if hdrLen >= maxObjHeaderLen {
			return object.TypeBad, 0, 0, ErrIntegerOverflow
		}
		if hdrLen >= n {
			return object.TypeBad, 0, 0, fmt.Errorf("%w: truncated object header", ErrBadIndex)
		}
		b = buf[hdrLen]
		g := uint64(b & 0x7f)
		if g<<shift>>shift != g {
			return object.TypeBad, 0, 0, ErrIntegerOverflow
		}
		size |= g << shift
		shift += 7
		hdrLen++
	}
	return typ, size, hdrLen, nil
}

// readBaseOffset decodes the negative back-offset that follows an
// ofs-delta header at off and returns the absolute offset of the base
// object, which must lie earlier in the same pack.
//
// The encoding is Git's "incrementing" base-128 form: each continuation
// step computes v = ((v+1) << 7) | low7.
func (p *Pack) readBaseOffset(off, headerOffset int64) (baseOffset int64, n int, err error) {
	var buf [maxNegOffsetLen]byte
	got, err := p.file.ReadAt(buf[:], off)
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, 0, err
	}
	if got == 0 {
		return 0, 0, fmt.Errorf("%w: truncated delta offset", ErrBadIndex)
	}

	b := buf[0]
	neg := int64(b & 0x7f)
	n = 1
	for b&0x80 != 0 {
		if n >= maxNegOffsetLen {
			return 0, 0, ErrIntegerOverflow
		}
		if n >= got {
			return 0, 0, fmt.Errorf("%w: truncated delta offset", ErrBadIndex)
		}
		b = buf[n]
		neg = ((neg + 1) << 7) | int64(b&0x7f)
		n++
	}

	baseOffset = headerOffset - neg
	if baseOffset <= 0 {
		return 0, 0, fmt.Errorf("%w: delta base offset %d is not inside the pack", ErrBadPackfile, baseOffset)
	}
	return baseOffset, n, nil
}

// readBaseID reads the 20-byte base object ID that follows a ref-delta
// header at off.
func (p *Pack) readBaseID(off int64) (object.Hash, int, error) {
	var id object.Hash
	if _, err := p.file.ReadAt(id[:], off); err != nil {
		return object.Hash{}, 0, fmt.Errorf("%w: truncated ref-delta base id: %v", ErrBadIndex, err)
	}
	return id, hashSize, nil
}

// inflate decompresses the zlib stream that starts at off and returns its
// full contents.
func (p *Pack) inflate(off int64) ([]byte, error) {
	zr, err := p.zlibAt(off)
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

// inflateTo decompresses the zlib stream at off into w, returning the
// number of uncompressed bytes written.
func (p *Pack) inflateTo(w io.Writer, off int64) (int64, error) {
	zr, err := p.zlibAt(off)
	if err != nil {
		return 0, err
	}
	defer zr.Close()
	return io.Copy(w, zr)
}

// inflatePrefix decompresses at most n leading bytes of the zlib stream at
// off. The materialiser uses it to read a delta's size header without
// inflating the whole stream.
func (p *Pack) inflatePrefix(off int64, n int) ([]byte, error) {
	zr, err := p.zlibAt(off)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	buf := make([]byte, n)
	got, err := io.ReadFull(zr, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return buf[:got], nil
}

// zlibAt positions a zlib reader over the stream beginning at off. The
// compressed length is unknown in advance, so the section reader extends
// to the end of the mapping.
func (p *Pack) zlibAt(off int64) (io.ReadCloser, error) {
	src := io.NewSectionReader(p.file, off, math.MaxInt64-off)
	return zlib.NewReader(src)
}
