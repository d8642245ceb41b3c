package gitread

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/gitread/gitread/object"
)

// BlameLine attributes one line of a file to the commit that introduced it.
type BlameLine struct {
	// Commit introduced the line.
	Commit object.Hash

	// Text is the line's content at the blamed revision, without the
	// trailing newline.
	Text string
}

// Blame attributes every line of path at commit from to the commit that
// introduced it, walking first-parent history. The walk stops as soon as
// every line is attributed or ctx is cancelled.
func (r *Repository) Blame(ctx context.Context, from object.Hash, path string) ([]BlameLine, error) {
	start, err := r.Commit(from)
	if err != nil {
		return nil, err
	}
	content, _, err := r.BlobByPath(start, path)
	if err != nil {
		return nil, err
	}

	lines := splitLines(string(content))
	out := make([]BlameLine, len(lines))
	for i, l := range lines {
		out[i] = BlameLine{Text: l}
	}

	// pending maps a line's index in the version under examination to its
	// index in the requested version. Lines disappear from pending once
	// attributed.
	pending := map[int]int{}
	for i := range lines {
		pending[i] = i
	}

	dmp := diffmatchpatch.New()
	cur := string(content)
	c := start

	for len(pending) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if len(c.Parents) == 0 {
			// Root commit: everything still unattributed started here.
			for _, target := range pending {
				out[target].Commit = c.ID
			}
			break
		}

		parent, err := r.Commit(c.Parents[0])
		if err != nil {
			return nil, err
		}
		parentBlob, _, err := r.BlobByPath(parent, path)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				return nil, err
			}
			// The file first appears in c.
			for _, target := range pending {
				out[target].Commit = c.ID
			}
			break
		}

		prev := string(parentBlob)
		if prev != cur {
			pending = attributeStep(dmp, prev, cur, pending, out, c.ID)
			cur = prev
		}
		c = parent
	}
	return out, nil
}

// attributeStep diffs the parent version against the child version,
// attributes child-only lines to childID, and remaps the surviving pending
// lines to their positions in the parent version.
func attributeStep(dmp *diffmatchpatch.DiffMatchPatch, parent, child string, pending map[int]int, out []BlameLine, childID object.Hash) map[int]int {
	pc, cc, _ := dmp.DiffLinesToChars(parent, child)
	diffs := dmp.DiffMain(pc, cc, false)

	// childToParent maps line indices through the equal chunks.
	childToParent := map[int]int{}
	pi, ci := 0, 0
	for _, d := range diffs {
		n := utf8.RuneCountInString(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			for k := 0; k < n; k++ {
				childToParent[ci+k] = pi + k
			}
			pi += n
			ci += n
		case diffmatchpatch.DiffDelete:
			pi += n
		case diffmatchpatch.DiffInsert:
			ci += n
		}
	}

	next := map[int]int{}
	for childIdx, target := range pending {
		if parentIdx, ok := childToParent[childIdx]; ok {
			next[parentIdx] = target
		} else {
			out[target].Commit = childID
		}
	}
	return next
}

// splitLines splits content into lines without their newline terminators.
// A trailing newline does not produce a final empty line.
func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	lines := strings.Split(content, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
