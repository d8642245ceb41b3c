package object

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

var ErrCorruptTree = errors.New("corrupt tree object")

// TreeEntry is a single name → object mapping inside a tree.
type TreeEntry struct {
	Name string
	ID   Hash
	Mode uint32
}

// IsDir reports whether the entry names a subtree.
func (e TreeEntry) IsDir() bool { return e.Mode&0o170000 == 0o040000 }

// IsSymlink reports whether the entry is a symbolic link.
func (e TreeEntry) IsSymlink() bool { return e.Mode&0o170000 == 0o120000 }

// IsExecutable reports whether the entry carries the executable file mode.
func (e TreeEntry) IsExecutable() bool { return e.Mode == 0o100755 }

// Tree is the fully parsed form of a tree object. Entries preserve on-disk
// order, which Git keeps sorted by name (directories sorting as if
// suffixed with '/').
type Tree struct {
	ID      Hash
	Entries []TreeEntry
}

// Lookup returns the entry with the given name, if present.
func (t *Tree) Lookup(name string) (TreeEntry, bool) {
	for _, e := range t.Entries {
		if e.Name == name {
			return e, true
		}
	}
	return TreeEntry{}, false
}

// ParseTree parses the raw bytes of a tree object into a Tree.
func ParseTree(id Hash, raw []byte) (*Tree, error) {
	t := &Tree{ID: id}
	it := NewTreeIter(raw)
	for {
		e, ok, err := it.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		t.Entries = append(t.Entries, e)
	}
	return t, nil
}

// TreeIter is a forward-only iterator over the entries of a raw tree
// object. It advances through the caller's slice in place and never copies
// entry data apart from the 20-byte object IDs it reports, so the
// underlying slice must stay immutable while iteration is in progress.
type TreeIter struct {
	// rest holds the unread portion of the raw tree object.
	rest []byte
}

// NewTreeIter returns an iterator positioned at the first entry of raw.
func NewTreeIter(raw []byte) *TreeIter { return &TreeIter{rest: raw} }

// Next parses and returns the next tree entry.
//
// When ok is false the iterator is exhausted and err is io.EOF. Malformed
// input yields ok == false and an error wrapping ErrCorruptTree.
func (it *TreeIter) Next() (e TreeEntry, ok bool, err error) {
	if len(it.rest) == 0 {
		return TreeEntry{}, false, io.EOF
	}

	// Entry layout: "<octal mode> <name>\x00" followed by 20 raw ID bytes.
	sp := bytes.IndexByte(it.rest, ' ')
	if sp < 0 {
		return TreeEntry{}, false, fmt.Errorf("%w: no space after mode", ErrCorruptTree)
	}
	var mode uint32
	for _, b := range it.rest[:sp] {
		if b < '0' || b > '7' {
			return TreeEntry{}, false, fmt.Errorf("%w: invalid octal digit %q in mode", ErrCorruptTree, b)
		}
		mode = mode<<3 | uint32(b-'0')
	}

	rest := it.rest[sp+1:]
	nul := bytes.IndexByte(rest, 0)
	if nul < 0 {
		return TreeEntry{}, false, fmt.Errorf("%w: unterminated entry name", ErrCorruptTree)
	}
	name := string(rest[:nul])
	rest = rest[nul+1:]

	if len(rest) < 20 {
		return TreeEntry{}, false, fmt.Errorf("%w: truncated object id for %q", ErrCorruptTree, name)
	}
	var id Hash
	copy(id[:], rest[:20])
	it.rest = rest[20:]

	return TreeEntry{Name: name, ID: id, Mode: mode}, true, nil
}
