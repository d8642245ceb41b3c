package packfile

import (
	"bytes"
	"compress/zlib"
	"crypto/sha1"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gitread/gitread/object"
)

// calculateHash computes the id Git would assign to an object with the
// given type and content.
func calculateHash(typ object.Type, data []byte) object.Hash {
	h := sha1.New()
	fmt.Fprintf(h, "%s %d\x00", typ, len(data))
	h.Write(data)
	var id object.Hash
	copy(id[:], h.Sum(nil))
	return id
}

// encodeObjHeader encodes the variable-length pack object header.
func encodeObjHeader(typ object.Type, size uint64) []byte {
	out := []byte{byte(typ)<<4 | byte(size&0x0f)}
	size >>= 4
	for size > 0 {
		out[len(out)-1] |= 0x80
		out = append(out, byte(size&0x7f))
		size >>= 7
	}
	return out
}

// encodeNegOffset encodes an ofs-delta back-distance in Git's incrementing
// base-128 form, most significant group first.
func encodeNegOffset(neg int64) []byte {
	buf := []byte{byte(neg & 0x7f)}
	for {
		neg >>= 7
		if neg == 0 {
			break
		}
		neg--
		buf = append([]byte{byte(neg&0x7f) | 0x80}, buf...)
	}
	return buf
}

// writeVarint appends a base-128 varint, least significant group first.
func writeVarint(buf *bytes.Buffer, v uint64) {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		buf.WriteByte(b)
		if v == 0 {
			return
		}
	}
}

// buildInsertDelta produces a delta that rebuilds target from scratch with
// insert commands only.
func buildInsertDelta(base, target []byte) []byte {
	var d bytes.Buffer
	writeVarint(&d, uint64(len(base)))
	writeVarint(&d, uint64(len(target)))
	for len(target) > 0 {
		n := len(target)
		if n > 127 {
			n = 127
		}
		d.WriteByte(byte(n))
		d.Write(target[:n])
		target = target[n:]
	}
	return d.Bytes()
}

// buildCopyDelta produces a delta that copies one contiguous range of the
// base.
func buildCopyDelta(baseLen int, cpOff, cpLen int) []byte {
	var d bytes.Buffer
	writeVarint(&d, uint64(baseLen))
	writeVarint(&d, uint64(cpLen))

	op := byte(0x80)
	var args []byte
	for bit := 0; bit < 4; bit++ {
		if b := byte(cpOff >> (8 * bit)); b != 0 {
			op |= 1 << bit
			args = append(args, b)
		}
	}
	if cpLen != copyZeroSize {
		for bit := 0; bit < 3; bit++ {
			if b := byte(cpLen >> (8 * bit)); b != 0 {
				op |= 0x10 << bit
				args = append(args, b)
			}
		}
	}
	d.WriteByte(op)
	d.Write(args)
	return d.Bytes()
}

func deflate(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	_, err := zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// packObject is one entry queued into a packBuilder.
type packObject struct {
	typ     object.Type
	id      object.Hash // resolved content id, set for plain objects
	payload []byte      // bytes that get deflated: content or delta stream
	baseIdx int         // ofs-delta: builder index of the base
	baseID  object.Hash // ref-delta: base object id
}

// packBuilder assembles a well-formed pack and its v2 index on disk.
type packBuilder struct {
	objects []packObject
}

// addBlob queues a plain blob and returns its builder index and id.
func (pb *packBuilder) addBlob(content []byte) (int, object.Hash) {
	id := calculateHash(object.TypeBlob, content)
	pb.objects = append(pb.objects, packObject{
		typ:     object.TypeBlob,
		id:      id,
		payload: content,
	})
	return len(pb.objects) - 1, id
}

// add queues a plain object of the given type.
func (pb *packBuilder) add(typ object.Type, content []byte) (int, object.Hash) {
	id := calculateHash(typ, content)
	pb.objects = append(pb.objects, packObject{typ: typ, id: id, payload: content})
	return len(pb.objects) - 1, id
}

// addOfsDelta queues an ofs-delta whose base is the object at baseIdx. The
// stored id is the id of the reconstructed result.
func (pb *packBuilder) addOfsDelta(baseIdx int, resultType object.Type, delta []byte, result []byte) (int, object.Hash) {
	id := calculateHash(resultType, result)
	pb.objects = append(pb.objects, packObject{
		typ:     object.TypeOfsDelta,
		id:      id,
		payload: delta,
		baseIdx: baseIdx,
	})
	return len(pb.objects) - 1, id
}

// addRefDelta queues a ref-delta against an arbitrary base id, which may
// live in another pack.
func (pb *packBuilder) addRefDelta(baseID object.Hash, resultType object.Type, delta []byte, result []byte) (int, object.Hash) {
	id := calculateHash(resultType, result)
	pb.objects = append(pb.objects, packObject{
		typ:     object.TypeRefDelta,
		id:      id,
		payload: delta,
		baseID:  baseID,
	})
	return len(pb.objects) - 1, id
}

// write materialises the pack and index under dir, named pack-<sha>.pack /
// .idx, and returns the index path.
func (pb *packBuilder) write(t *testing.T, dir string) string {
	t.Helper()

	var pack bytes.Buffer
	pack.WriteString("PACK")
	binary.Write(&pack, binary.BigEndian, uint32(packVersion))
	binary.Write(&pack, binary.BigEndian, uint32(len(pb.objects)))

	offsets := make([]int64, len(pb.objects))
	crcs := make([]uint32, len(pb.objects))
	for i, obj := range pb.objects {
		offsets[i] = int64(pack.Len())
		start := pack.Len()

		pack.Write(encodeObjHeader(obj.typ, uint64(len(obj.payload))))
		switch obj.typ {
		case object.TypeOfsDelta:
			pack.Write(encodeNegOffset(offsets[i] - offsets[obj.baseIdx]))
		case object.TypeRefDelta:
			pack.Write(obj.baseID[:])
		}
		pack.Write(deflate(t, obj.payload))

		crcs[i] = crc32.ChecksumIEEE(pack.Bytes()[start:])
	}

	packSHA := sha1.Sum(pack.Bytes())
	pack.Write(packSHA[:])

	stem := "pack-" + hex.EncodeToString(packSHA[:])
	packPath := filepath.Join(dir, stem+".pack")
	require.NoError(t, os.WriteFile(packPath, pack.Bytes(), 0o644))

	idxPath := filepath.Join(dir, stem+".idx")
	writeIndexFile(t, idxPath, pb.entries(offsets, crcs), packSHA, nil)
	return idxPath
}

type idxEntry struct {
	id     object.Hash
	offset uint64
	crc    uint32
}

// entries pairs every queued object with its pack offset, sorted by id as
// the index format requires.
func (pb *packBuilder) entries(offsets []int64, crcs []uint32) []idxEntry {
	out := make([]idxEntry, len(pb.objects))
	for i, obj := range pb.objects {
		out[i] = idxEntry{id: obj.id, offset: uint64(offsets[i]), crc: crcs[i]}
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].id[:], out[j].id[:]) < 0
	})
	return out
}

// writeIndexFile writes a v2 pack index. Offsets above 31 bits go through
// the large-offset table. corrupt, when non-nil, mutates the body after
// the self-checksum has been computed, staging a digest mismatch without
// breaking the file's structure.
func writeIndexFile(t *testing.T, path string, entries []idxEntry, packSHA [20]byte, corrupt func([]byte) []byte) {
	t.Helper()

	entries = append([]idxEntry(nil), entries...)
	sort.Slice(entries, func(i, j int) bool {
		return bytes.Compare(entries[i].id[:], entries[j].id[:]) < 0
	})

	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, uint32(idxMagic))
	binary.Write(&buf, binary.BigEndian, uint32(idxVersion))

	var fanout [256]uint32
	for _, e := range entries {
		for b := int(e.id[0]); b < 256; b++ {
			fanout[b]++
		}
	}
	for _, n := range fanout {
		binary.Write(&buf, binary.BigEndian, n)
	}
	for _, e := range entries {
		buf.Write(e.id[:])
	}
	for _, e := range entries {
		binary.Write(&buf, binary.BigEndian, e.crc)
	}

	var large []uint64
	for _, e := range entries {
		if e.offset > 0x7fffffff {
			binary.Write(&buf, binary.BigEndian, uint32(largeOffsetFlag|len(large)))
			large = append(large, e.offset)
		} else {
			binary.Write(&buf, binary.BigEndian, uint32(e.offset))
		}
	}
	for _, off := range large {
		binary.Write(&buf, binary.BigEndian, off)
	}

	buf.Write(packSHA[:])

	raw := buf.Bytes()
	sum := sha1.Sum(raw)
	if corrupt != nil {
		raw = corrupt(raw)
	}
	raw = append(raw, sum[:]...)

	require.NoError(t, os.WriteFile(path, raw, 0o644))
}
