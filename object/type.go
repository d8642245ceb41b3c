package object

// Type enumerates the kinds of objects that can appear in a packfile.
//
// The first four are plain object kinds; OfsDelta and RefDelta only ever
// occur on disk and never as the resolved type of a materialised object.
// The zero value, TypeBad, denotes an invalid or unknown type.
//
// The numeric values match the 3-bit type field of the pack object header.
type Type byte

const (
	// TypeBad represents an invalid or unspecified object kind.
	TypeBad Type = iota

	// TypeCommit is a commit object.
	TypeCommit

	// TypeTree is a directory tree object.
	TypeTree

	// TypeBlob is a file-content blob object.
	TypeBlob

	// TypeTag is an annotated tag object.
	TypeTag

	_ // 5 is reserved in the pack format

	// TypeOfsDelta is a delta whose base is addressed by pack offset.
	TypeOfsDelta

	// TypeRefDelta is a delta whose base is addressed by object ID.
	TypeRefDelta
)

var typeNames = map[Type]string{
	TypeCommit:   "commit",
	TypeTree:     "tree",
	TypeBlob:     "blob",
	TypeTag:      "tag",
	TypeOfsDelta: "ofs-delta",
	TypeRefDelta: "ref-delta",
}

func (t Type) String() string { return typeNames[t] }

// IsPlain reports whether t is one of the four non-delta kinds.
func (t Type) IsPlain() bool {
	switch t {
	case TypeCommit, TypeTree, TypeBlob, TypeTag:
		return true
	}
	return false
}

// IsDelta reports whether t references a base object.
func (t Type) IsDelta() bool { return t == TypeOfsDelta || t == TypeRefDelta }

// ParseType converts the canonical lower-case spelling ("commit", "tree",
// "blob", "tag") to its Type value. Unknown spellings yield TypeBad.
func ParseType(s string) Type {
	for t, name := range typeNames {
		if name == s && t.IsPlain() {
			return t
		}
	}
	return TypeBad
}
