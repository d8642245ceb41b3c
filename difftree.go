package gitread

import (
	"fmt"
	"io"
	"sort"

	"github.com/gitread/gitread/diff"
	"github.com/gitread/gitread/object"
)

// ChangeKind classifies one entry of a tree diff.
type ChangeKind int

const (
	ChangeAdded ChangeKind = iota
	ChangeDeleted
	ChangeModified
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeAdded:
		return "A"
	case ChangeDeleted:
		return "D"
	case ChangeModified:
		return "M"
	}
	return "?"
}

// Change is one differing path between two trees.
type Change struct {
	Kind ChangeKind

	// Path is the slash-separated path relative to the tree roots.
	Path string

	// OldID and NewID are the blob ids on each side; the missing side of
	// an addition or deletion is the zero hash.
	OldID object.Hash
	NewID object.Hash

	// OldMode and NewMode are the tree entry modes, 0 on the missing side.
	OldMode uint32
	NewMode uint32
}

// DiffTrees compares two trees recursively and returns the changed paths
// sorted by name. A zero hash on either side diffs against the empty tree.
func (r *Repository) DiffTrees(oldID, newID object.Hash) ([]Change, error) {
	oldFiles := map[string]object.TreeEntry{}
	if !oldID.IsZero() {
		if err := r.flattenTree(oldID, "", oldFiles); err != nil {
			return nil, err
		}
	}
	newFiles := map[string]object.TreeEntry{}
	if !newID.IsZero() {
		if err := r.flattenTree(newID, "", newFiles); err != nil {
			return nil, err
		}
	}

	paths := map[string]bool{}
	for p := range oldFiles {
		paths[p] = true
	}
	for p := range newFiles {
		paths[p] = true
	}

	var changes []Change
	for path := range paths {
		oldEnt, inOld := oldFiles[path]
		newEnt, inNew := newFiles[path]

		switch {
		case inOld && !inNew:
			changes = append(changes, Change{
				Kind: ChangeDeleted, Path: path,
				OldID: oldEnt.ID, OldMode: oldEnt.Mode,
			})
		case !inOld && inNew:
			changes = append(changes, Change{
				Kind: ChangeAdded, Path: path,
				NewID: newEnt.ID, NewMode: newEnt.Mode,
			})
		case oldEnt.ID != newEnt.ID || oldEnt.Mode != newEnt.Mode:
			changes = append(changes, Change{
				Kind: ChangeModified, Path: path,
				OldID: oldEnt.ID, OldMode: oldEnt.Mode,
				NewID: newEnt.ID, NewMode: newEnt.Mode,
			})
		}
	}

	sort.Slice(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })
	return changes, nil
}

// DiffCommits writes a unified diff between the trees of two commits to w.
// A nil old commit diffs the new commit against the empty tree, which is
// how a root commit is shown.
func (r *Repository) DiffCommits(w io.Writer, old, new *object.Commit) error {
	var oldTree object.Hash
	if old != nil {
		oldTree = old.Tree
	}

	changes, err := r.DiffTrees(oldTree, new.Tree)
	if err != nil {
		return err
	}

	for _, ch := range changes {
		var oldData, newData []byte
		fromName, toName := "a/"+ch.Path, "b/"+ch.Path

		if !ch.OldID.IsZero() {
			if oldData, err = r.Blob(ch.OldID); err != nil {
				return err
			}
		} else {
			fromName = "/dev/null"
		}
		if !ch.NewID.IsZero() {
			if newData, err = r.Blob(ch.NewID); err != nil {
				return err
			}
		} else {
			toName = "/dev/null"
		}

		if _, err := fmt.Fprintf(w, "diff --git a/%s b/%s\n", ch.Path, ch.Path); err != nil {
			return err
		}
		if _, err := io.WriteString(w, diff.Unified(fromName, toName, oldData, newData)); err != nil {
			return err
		}
	}
	return nil
}
