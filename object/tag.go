package object

import (
	"bytes"
	"errors"
	"fmt"
)

var ErrCorruptTag = errors.New("corrupt tag object")

// Tag is the parsed form of an annotated tag object.
type Tag struct {
	ID         Hash
	Object     Hash
	ObjectType Type
	Name       string
	Tagger     Signature
	Message    string
}

// ParseTag parses the raw bytes of an annotated tag object.
func ParseTag(id Hash, raw []byte) (*Tag, error) {
	t := &Tag{ID: id}

	rest := raw
	for len(rest) > 0 {
		nl := bytes.IndexByte(rest, '\n')
		if nl < 0 {
			return nil, fmt.Errorf("%w: unterminated header", ErrCorruptTag)
		}
		line := rest[:nl]
		rest = rest[nl+1:]

		if len(line) == 0 {
			t.Message = string(rest)
			break
		}

		sp := bytes.IndexByte(line, ' ')
		if sp < 0 {
			return nil, fmt.Errorf("%w: malformed header %q", ErrCorruptTag, line)
		}
		key, val := string(line[:sp]), string(line[sp+1:])

		switch key {
		case "object":
			h, err := ParseHash(val)
			if err != nil {
				return nil, fmt.Errorf("%w: bad object id: %v", ErrCorruptTag, err)
			}
			t.Object = h
		case "type":
			t.ObjectType = ParseType(val)
		case "tag":
			t.Name = val
		case "tagger":
			sig, err := parseSignature(line[sp+1:])
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrCorruptTag, err)
			}
			t.Tagger = sig
		}
	}

	if t.Object.IsZero() {
		return nil, fmt.Errorf("%w: missing object header", ErrCorruptTag)
	}
	return t, nil
}
