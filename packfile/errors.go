package packfile

import "errors"

// Sentinel errors for the pack store. Callers match them with errors.Is;
// most call sites wrap them with additional context.
var (
	// ErrObjectNotFound reports that no known pack contains the requested
	// object id.
	ErrObjectNotFound = errors.New("object not found")

	// ErrObjectNotPacked reports that the descriptor refers to a loose
	// object and cannot be extracted from a pack.
	ErrObjectNotPacked = errors.New("object is not packed")

	// ErrBadIndex reports a pack-index format violation: wrong magic or
	// version, non-monotone fanout, truncation, or an out-of-range offset.
	ErrBadIndex = errors.New("pack index error")

	// ErrIndexChecksum reports that the trailing SHA-1 of a pack index does
	// not match the digest computed over its contents.
	ErrIndexChecksum = errors.New("pack index checksum mismatch")

	// ErrBadPackfile reports a pack header that disagrees with its index,
	// or an invalid delta back-reference.
	ErrBadPackfile = errors.New("bad pack file")

	// ErrBadDeltaChain reports a delta chain that is empty or never reaches
	// a plain base object.
	ErrBadDeltaChain = errors.New("bad delta chain")

	// ErrUnknownObjectType reports a type byte the resolver does not handle.
	ErrUnknownObjectType = errors.New("unknown object type")

	// ErrIntegerOverflow reports a variable-length integer that would
	// exceed 64 bits.
	ErrIntegerOverflow = errors.New("variable-length value does not fit in 64 bits")
)
