package gitread

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gitread/gitread/object"
)

// ErrStopWalk may be returned from a walk callback to end the traversal
// early without reporting an error.
var ErrStopWalk = errors.New("stop walk")

// LogOptions controls a history walk.
type LogOptions struct {
	// Limit stops the walk after this many commits; 0 means unlimited.
	Limit int

	// FirstParent restricts the walk to each commit's first parent,
	// linearising merge history.
	FirstParent bool
}

// WalkHistory traverses history starting at from, calling fn for each
// commit. Commits are visited newest-first in commit-date order across
// branches, each exactly once. The walk stops when fn returns ErrStopWalk,
// when the limit is reached, or when ctx is cancelled between commits.
func (r *Repository) WalkHistory(ctx context.Context, from object.Hash, opts LogOptions, fn func(*object.Commit) error) error {
	seen := map[object.Hash]bool{}
	var frontier []*object.Commit

	push := func(id object.Hash) error {
		if seen[id] {
			return nil
		}
		seen[id] = true
		c, err := r.Commit(id)
		if err != nil {
			return err
		}
		// Keep the frontier ordered by committer date, newest first.
		i := 0
		for i < len(frontier) && frontier[i].Committer.When.After(c.Committer.When) {
			i++
		}
		frontier = append(frontier, nil)
		copy(frontier[i+1:], frontier[i:])
		frontier[i] = c
		return nil
	}

	if err := push(from); err != nil {
		return err
	}

	visited := 0
	for len(frontier) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		c := frontier[0]
		frontier = frontier[1:]

		if err := fn(c); err != nil {
			if errors.Is(err, ErrStopWalk) {
				return nil
			}
			return err
		}
		visited++
		if opts.Limit > 0 && visited >= opts.Limit {
			return nil
		}

		parents := c.Parents
		if opts.FirstParent && len(parents) > 1 {
			parents = parents[:1]
		}
		for _, p := range parents {
			if err := push(p); err != nil {
				return err
			}
		}
	}
	return nil
}

// TreeByPath resolves the tree reached by walking path from the commit's
// root tree. An empty path returns the root tree itself.
func (r *Repository) TreeByPath(c *object.Commit, path string) (*object.Tree, error) {
	tree, err := r.Tree(c.Tree)
	if err != nil {
		return nil, err
	}
	for _, elem := range splitTreePath(path) {
		entry, ok := tree.Lookup(elem)
		if !ok {
			return nil, fmt.Errorf("%w: %s in commit %s", ErrNotFound, path, c.ID)
		}
		if !entry.IsDir() {
			return nil, fmt.Errorf("%s: not a directory in commit %s", path, c.ID)
		}
		tree, err = r.Tree(entry.ID)
		if err != nil {
			return nil, err
		}
	}
	return tree, nil
}

// BlobByPath resolves the blob at path under the commit's root tree and
// returns its content and id.
func (r *Repository) BlobByPath(c *object.Commit, path string) ([]byte, object.Hash, error) {
	elems := splitTreePath(path)
	if len(elems) == 0 {
		return nil, object.Hash{}, fmt.Errorf("empty path")
	}

	dir, name := elems[:len(elems)-1], elems[len(elems)-1]
	tree, err := r.TreeByPath(c, strings.Join(dir, "/"))
	if err != nil {
		return nil, object.Hash{}, err
	}
	entry, ok := tree.Lookup(name)
	if !ok {
		return nil, object.Hash{}, fmt.Errorf("%w: %s in commit %s", ErrNotFound, path, c.ID)
	}
	if entry.IsDir() {
		return nil, object.Hash{}, fmt.Errorf("%s: is a directory in commit %s", path, c.ID)
	}
	data, err := r.Blob(entry.ID)
	if err != nil {
		return nil, object.Hash{}, err
	}
	return data, entry.ID, nil
}

// splitTreePath normalises a slash-separated tree path into its elements,
// dropping empty segments and leading/trailing slashes.
func splitTreePath(path string) []string {
	var elems []string
	for _, e := range strings.Split(path, "/") {
		if e != "" && e != "." {
			elems = append(elems, e)
		}
	}
	return elems
}
