// Package diff renders unified diffs between two versions of a file.
package diff

import (
	"bytes"
	"fmt"

	"github.com/hexops/gotextdiff"
	"github.com/hexops/gotextdiff/myers"
	"github.com/hexops/gotextdiff/span"
)

// Unified returns the unified diff between two versions of a file, with
// standard ---/+++ headers. Identical content yields an empty string.
func Unified(fromName, toName string, a, b []byte) string {
	if bytes.Equal(a, b) {
		return ""
	}
	if IsBinary(a) || IsBinary(b) {
		return fmt.Sprintf("Binary files %s and %s differ\n", fromName, toName)
	}

	old := string(a)
	edits := myers.ComputeEdits(span.URIFromPath(fromName), old, string(b))
	return fmt.Sprint(gotextdiff.ToUnified(fromName, toName, old, edits))
}

// IsBinary applies git's heuristic: content is binary when a NUL byte
// appears in the first 8000 bytes.
func IsBinary(data []byte) bool {
	probe := data
	if len(probe) > 8000 {
		probe = probe[:8000]
	}
	return bytes.IndexByte(probe, 0) >= 0
}
