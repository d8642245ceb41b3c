// Package packfile implements the read side of Git's pack storage: pack
// index loading, object location, delta chain resolution, and object
// materialisation, with per-store caches keeping hot state cheap.
//
// A Store owns every open file handle it creates. All lookups are keyed by
// 20-byte object IDs; objects stored as deltas are reconstructed
// transparently, following chains that may span multiple packs.
package packfile

import (
	"bufio"
	"bytes"
	"crypto/sha1"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"strings"

	"github.com/gitread/gitread/object"
)

const (
	idxMagic   = 0xff744f63 // "\xfftOc"
	idxVersion = 2

	fanoutEntries = 256
	hashSize      = 20

	// largeOffsetFlag marks a 32-bit offset entry as an index into the
	// 64-bit large-offset table.
	largeOffsetFlag = 0x80000000
)

// Index is the in-memory form of one pack-index (*.idx, version 2) file.
//
// An Index is immutable after OpenIndex returns and may therefore be shared
// freely; the Store hands the same instance to every caller.
type Index struct {
	// fanout[b] is the number of objects whose first ID byte is <= b;
	// fanout[255] is the total object count.
	fanout [fanoutEntries]uint32

	// oids lists all object IDs in ascending byte order. The parallel
	// slices crcs and offsets describe oids[i].
	oids []object.Hash

	// crcs holds the CRC-32 of each object's on-disk (compressed) bytes,
	// exactly as recorded in the index.
	crcs []uint32

	// offsets holds the raw 32-bit offset words. An entry with
	// largeOffsetFlag set indexes largeOffsets instead of naming a pack
	// position directly.
	offsets []uint32

	// largeOffsets is present only when the companion pack exceeds 2 GiB.
	largeOffsets []uint64

	// PackSHA is the pack checksum from the index trailer. It identifies
	// the companion *.pack and keys the store's pack cache.
	PackSHA object.Hash

	// path is the location the index was loaded from; the companion pack
	// is its ".pack" sibling.
	path string
}

// ObjectCount returns the number of objects the index describes.
func (ix *Index) ObjectCount() uint32 { return ix.fanout[fanoutEntries-1] }

// Path returns the filesystem path of the *.idx file.
func (ix *Index) Path() string { return ix.path }

// PackPath returns the path of the companion *.pack file.
func (ix *Index) PackPath() string {
	return strings.TrimSuffix(ix.path, ".idx") + ".pack"
}

// OpenIndex parses the pack index at path in a single forward pass,
// streaming every byte through a SHA-1 digest that excludes the trailing
// self-checksum.
//
// Format violations (bad magic or version, non-monotone fanout,
// truncation) fail with ErrBadIndex; a digest mismatch fails with
// ErrIndexChecksum. The sibling *.pack file is stat'ed to decide whether
// the 64-bit large-offset table is present: packs of 2 GiB or less carry
// none and the loader must not read one.
func OpenIndex(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	idxSize := st.Size()

	packSize, err := siblingPackSize(path)
	if err != nil {
		return nil, err
	}

	if idxSize < 8+fanoutEntries*4+2*hashSize {
		return nil, fmt.Errorf("%w: file too short", ErrBadIndex)
	}

	// Everything except the final 20 self-checksum bytes is digested. The
	// LimitReader keeps bufio's read-ahead from leaking the trailer into
	// the digest.
	digest := sha1.New()
	body := io.LimitReader(f, idxSize-hashSize)
	r := bufio.NewReaderSize(io.TeeReader(body, digest), 1<<16)

	var header [8]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadIndex, err)
	}
	if binary.BigEndian.Uint32(header[0:4]) != idxMagic {
		return nil, fmt.Errorf("%w: bad magic", ErrBadIndex)
	}
	if v := binary.BigEndian.Uint32(header[4:8]); v != idxVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrBadIndex, v)
	}

	ix := &Index{path: path}

	var fanoutRaw [fanoutEntries * 4]byte
	if _, err := io.ReadFull(r, fanoutRaw[:]); err != nil {
		return nil, fmt.Errorf("%w: truncated fanout: %v", ErrBadIndex, err)
	}
	for i := range ix.fanout {
		ix.fanout[i] = binary.BigEndian.Uint32(fanoutRaw[i*4:])
		if i > 0 && ix.fanout[i] < ix.fanout[i-1] {
			return nil, fmt.Errorf("%w: fanout not monotonic at %#02x", ErrBadIndex, i)
		}
	}

	count := ix.ObjectCount()
	if count > math.MaxUint32/hashSize {
		return nil, fmt.Errorf("%w: implausible object count %d", ErrBadIndex, count)
	}

	oidRaw := make([]byte, int(count)*hashSize)
	if _, err := io.ReadFull(r, oidRaw); err != nil {
		return nil, fmt.Errorf("%w: truncated id table: %v", ErrBadIndex, err)
	}
	ix.oids = make([]object.Hash, count)
	for i := range ix.oids {
		copy(ix.oids[i][:], oidRaw[i*hashSize:])
	}

	crcRaw := make([]byte, int(count)*4)
	if _, err := io.ReadFull(r, crcRaw); err != nil {
		return nil, fmt.Errorf("%w: truncated crc table: %v", ErrBadIndex, err)
	}
	ix.crcs = make([]uint32, count)
	for i := range ix.crcs {
		ix.crcs[i] = binary.BigEndian.Uint32(crcRaw[i*4:])
	}

	offRaw := make([]byte, int(count)*4)
	if _, err := io.ReadFull(r, offRaw); err != nil {
		return nil, fmt.Errorf("%w: truncated offset table: %v", ErrBadIndex, err)
	}
	ix.offsets = make([]uint32, count)
	for i := range ix.offsets {
		ix.offsets[i] = binary.BigEndian.Uint32(offRaw[i*4:])
	}

	// Large file offsets are contained only in indexes whose pack exceeds
	// 2 GiB. The table length is whatever the file holds between the fixed
	// tables and the 40-byte trailer.
	if packSize > 1<<31 {
		consumed := int64(8 + fanoutEntries*4 + int(count)*(hashSize+4+4))
		largeBytes := idxSize - consumed - 2*hashSize
		if largeBytes < 0 || largeBytes%8 != 0 {
			return nil, fmt.Errorf("%w: malformed large offset table", ErrBadIndex)
		}
		if largeBytes > 0 {
			largeRaw := make([]byte, largeBytes)
			if _, err := io.ReadFull(r, largeRaw); err != nil {
				return nil, fmt.Errorf("%w: truncated large offset table: %v", ErrBadIndex, err)
			}
			ix.largeOffsets = make([]uint64, largeBytes/8)
			for i := range ix.largeOffsets {
				ix.largeOffsets[i] = binary.BigEndian.Uint64(largeRaw[i*8:])
			}
		}
	}

	if _, err := io.ReadFull(r, ix.PackSHA[:]); err != nil {
		return nil, fmt.Errorf("%w: truncated trailer: %v", ErrBadIndex, err)
	}

	// The digest covers everything up to and including the pack checksum;
	// the final 20 bytes are the index's own checksum. Drain any slack so
	// unexpected trailing bytes still influence the digest.
	if _, err := io.Copy(io.Discard, r); err != nil {
		return nil, err
	}

	var want [hashSize]byte
	if _, err := io.ReadFull(f, want[:]); err != nil {
		return nil, fmt.Errorf("%w: truncated trailer: %v", ErrBadIndex, err)
	}
	if !bytes.Equal(digest.Sum(nil), want[:]) {
		return nil, ErrIndexChecksum
	}

	return ix, nil
}

// siblingPackSize stats the *.pack companion of the index at idxPath.
func siblingPackSize(idxPath string) (int64, error) {
	packPath := strings.TrimSuffix(idxPath, ".idx") + ".pack"
	st, err := os.Stat(packPath)
	if err != nil {
		return 0, err
	}
	return st.Size(), nil
}

// FindObject returns the slot of id within the index.
//
// The fanout table narrows the search to the bucket of IDs sharing id's
// first byte; a binary search over the sorted slice finishes the lookup.
// ok is false when the object is absent.
func (ix *Index) FindObject(id object.Hash) (slot int, ok bool) {
	first := id[0]
	start := uint32(0)
	if first > 0 {
		start = ix.fanout[first-1]
	}
	end := ix.fanout[first]
	if start == end {
		return 0, false
	}

	rel, found := slices.BinarySearchFunc(
		ix.oids[start:end],
		id,
		func(a, b object.Hash) int { return bytes.Compare(a[:], b[:]) },
	)
	if !found {
		return 0, false
	}
	return int(start) + rel, true
}

// ObjectIDAt returns the object ID stored at slot.
func (ix *Index) ObjectIDAt(slot int) object.Hash { return ix.oids[slot] }

// CRCAt returns the recorded CRC-32 for the object at slot.
func (ix *Index) CRCAt(slot int) uint32 { return ix.crcs[slot] }

// ObjectOffset returns the pack offset of the object at slot, consulting
// the large-offset table when the 32-bit entry carries the high-bit flag.
func (ix *Index) ObjectOffset(slot int) (int64, error) {
	raw := ix.offsets[slot]
	if raw&largeOffsetFlag == 0 {
		return int64(raw), nil
	}
	li := raw &^ largeOffsetFlag
	if int(li) >= len(ix.largeOffsets) {
		return 0, fmt.Errorf("%w: large offset index %d out of range", ErrBadIndex, li)
	}
	off := ix.largeOffsets[li]
	if off > math.MaxInt64 {
		return 0, fmt.Errorf("%w: offset %#x exceeds maximum file offset", ErrBadIndex, off)
	}
	return int64(off), nil
}

// HasLargeOffsets reports whether the index carries a 64-bit offset table.
func (ix *Index) HasLargeOffsets() bool { return ix.largeOffsets != nil }
