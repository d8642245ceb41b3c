package packfile

import (
	"fmt"
	"io"
)

// copyZeroSize is the copy length encoded by an all-zero size field.
const copyZeroSize = 0x10000

// decodeVarint reads a base-128 varint (least significant group first)
// from buf. n is the number of bytes consumed; n == 0 signals an empty or
// unterminated buffer, n < 0 a value that does not fit in 64 bits.
func decodeVarint(buf []byte) (v uint64, n int) {
	var shift uint
	for i, b := range buf {
		if i >= 10 {
			return 0, -1
		}
		g := uint64(b & 0x7f)
		if g<<shift>>shift != g {
			return 0, -1
		}
		v |= g << shift
		if b&0x80 == 0 {
			return v, i + 1
		}
		shift += 7
	}
	return 0, 0
}

// deltaSizes parses the two leading varints of an inflated delta stream:
// the expected base size and the result size. hdrLen is the number of
// bytes the two fields occupy.
func deltaSizes(delta []byte) (baseSize, resultSize uint64, hdrLen int, err error) {
	baseSize, n1 := decodeVarint(delta)
	if n1 < 0 {
		return 0, 0, 0, ErrIntegerOverflow
	}
	if n1 == 0 {
		return 0, 0, 0, fmt.Errorf("%w: missing base size", ErrBadDeltaChain)
	}
	resultSize, n2 := decodeVarint(delta[n1:])
	if n2 < 0 {
		return 0, 0, 0, ErrIntegerOverflow
	}
	if n2 == 0 {
		return 0, 0, 0, fmt.Errorf("%w: missing result size", ErrBadDeltaChain)
	}
	return baseSize, resultSize, n1 + n2, nil
}

// applyDelta reconstructs an object by interpreting the copy/insert
// command stream of an inflated delta against base.
//
// A copy command's leading byte has the high bit set; its low seven bits
// select which of up to four offset bytes and three size bytes follow,
// little-endian. A zero copy size means 64 KiB. An insert command's
// leading byte (1-127) is the literal byte count that follows. The zero
// opcode is reserved and rejected.
func applyDelta(base, delta []byte) ([]byte, error) {
	_, resultSize, hdrLen, err := deltaSizes(delta)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, resultSize)
	i := hdrLen

	for i < len(delta) {
		op := delta[i]
		i++

		switch {
		case op&0x80 != 0: // copy from base
			var cpOff, cpLen int
			for bit := 0; bit < 4; bit++ {
				if op&(1<<bit) != 0 {
					if i >= len(delta) {
						return nil, fmt.Errorf("%w: truncated copy offset", ErrBadDeltaChain)
					}
					cpOff |= int(delta[i]) << (8 * bit)
					i++
				}
			}
			for bit := 0; bit < 3; bit++ {
				if op&(0x10<<bit) != 0 {
					if i >= len(delta) {
						return nil, fmt.Errorf("%w: truncated copy length", ErrBadDeltaChain)
					}
					cpLen |= int(delta[i]) << (8 * bit)
					i++
				}
			}
			if cpLen == 0 {
				cpLen = copyZeroSize
			}
			if cpOff+cpLen > len(base) {
				return nil, fmt.Errorf("%w: copy range [%d,%d) outside base", ErrBadDeltaChain, cpOff, cpOff+cpLen)
			}
			out = append(out, base[cpOff:cpOff+cpLen]...)

		case op != 0: // insert literal bytes
			n := int(op)
			if i+n > len(delta) {
				return nil, fmt.Errorf("%w: truncated insert of %d bytes", ErrBadDeltaChain, n)
			}
			out = append(out, delta[i:i+n]...)
			i += n

		default:
			return nil, fmt.Errorf("%w: reserved opcode 0", ErrBadDeltaChain)
		}
	}

	if uint64(len(out)) != resultSize {
		return nil, fmt.Errorf("%w: produced %d bytes, delta declared %d", ErrBadDeltaChain, len(out), resultSize)
	}
	return out, nil
}

// applyDeltaStream applies a delta against a base held in a file,
// streaming the result into w. It is the temp-file counterpart of
// applyDelta, used when a chain's objects are too large to hold in memory.
func applyDeltaStream(base io.ReaderAt, baseSize int64, delta []byte, w io.Writer) (int64, error) {
	_, resultSize, hdrLen, err := deltaSizes(delta)
	if err != nil {
		return 0, err
	}

	var written int64
	i := hdrLen

	for i < len(delta) {
		op := delta[i]
		i++

		switch {
		case op&0x80 != 0:
			var cpOff, cpLen int64
			for bit := 0; bit < 4; bit++ {
				if op&(1<<bit) != 0 {
					if i >= len(delta) {
						return written, fmt.Errorf("%w: truncated copy offset", ErrBadDeltaChain)
					}
					cpOff |= int64(delta[i]) << (8 * bit)
					i++
				}
			}
			for bit := 0; bit < 3; bit++ {
				if op&(0x10<<bit) != 0 {
					if i >= len(delta) {
						return written, fmt.Errorf("%w: truncated copy length", ErrBadDeltaChain)
					}
					cpLen |= int64(delta[i]) << (8 * bit)
					i++
				}
			}
			if cpLen == 0 {
				cpLen = copyZeroSize
			}
			if cpOff+cpLen > baseSize {
				return written, fmt.Errorf("%w: copy range [%d,%d) outside base", ErrBadDeltaChain, cpOff, cpOff+cpLen)
			}
			if _, err := io.Copy(w, io.NewSectionReader(base, cpOff, cpLen)); err != nil {
				return written, err
			}
			written += cpLen

		case op != 0:
			n := int(op)
			if i+n > len(delta) {
				return written, fmt.Errorf("%w: truncated insert of %d bytes", ErrBadDeltaChain, n)
			}
			if _, err := w.Write(delta[i : i+n]); err != nil {
				return written, err
			}
			i += n
			written += int64(n)

		default:
			return written, fmt.Errorf("%w: reserved opcode 0", ErrBadDeltaChain)
		}
	}

	if uint64(written) != resultSize {
		return written, fmt.Errorf("%w: produced %d bytes, delta declared %d", ErrBadDeltaChain, written, resultSize)
	}
	return written, nil
}
