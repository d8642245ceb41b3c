package gitread

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gitread/gitread/object"
)

func TestDiffTrees(t *testing.T) {
	f := newRepoFixture(t)

	kept := f.blob("kept\n")
	removed := f.blob("removed\n")
	before := f.blob("line one\n")
	after := f.blob("line one\nline two\n")
	added := f.blob("brand new\n")

	oldTree := f.tree(map[string]treeEnt{
		"kept.txt":    file(kept),
		"removed.txt": file(removed),
		"changed.txt": file(before),
	})
	newTree := f.tree(map[string]treeEnt{
		"kept.txt":    file(kept),
		"changed.txt": file(after),
		"added.txt":   file(added),
	})
	f.linearHistory(1)

	r := f.open()

	changes, err := r.DiffTrees(oldTree, newTree)
	require.NoError(t, err)
	require.Len(t, changes, 3)

	// Sorted by path: added, changed, removed.
	require.Equal(t, "added.txt", changes[0].Path)
	require.Equal(t, ChangeAdded, changes[0].Kind)
	require.True(t, changes[0].OldID.IsZero())
	require.Equal(t, added, changes[0].NewID)

	require.Equal(t, "changed.txt", changes[1].Path)
	require.Equal(t, ChangeModified, changes[1].Kind)
	require.Equal(t, before, changes[1].OldID)
	require.Equal(t, after, changes[1].NewID)

	require.Equal(t, "removed.txt", changes[2].Path)
	require.Equal(t, ChangeDeleted, changes[2].Kind)
	require.True(t, changes[2].NewID.IsZero())
}

func TestDiffTreesNested(t *testing.T) {
	f := newRepoFixture(t)

	innerOld := f.blob("v1\n")
	innerNew := f.blob("v2\n")
	oldSub := f.tree(map[string]treeEnt{"inner.txt": file(innerOld)})
	newSub := f.tree(map[string]treeEnt{"inner.txt": file(innerNew)})
	oldTree := f.tree(map[string]treeEnt{"dir": subdir(oldSub)})
	newTree := f.tree(map[string]treeEnt{"dir": subdir(newSub)})
	f.linearHistory(1)

	r := f.open()

	changes, err := r.DiffTrees(oldTree, newTree)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	require.Equal(t, "dir/inner.txt", changes[0].Path)
	require.Equal(t, ChangeModified, changes[0].Kind)
}

func TestDiffTreesModeChange(t *testing.T) {
	f := newRepoFixture(t)

	blobID := f.blob("#!/bin/sh\n")
	oldTree := f.tree(map[string]treeEnt{"run.sh": file(blobID)})
	newTree := f.tree(map[string]treeEnt{"run.sh": execFile(blobID)})
	f.linearHistory(1)

	r := f.open()

	changes, err := r.DiffTrees(oldTree, newTree)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	require.Equal(t, ChangeModified, changes[0].Kind)
	require.Equal(t, uint32(0o100644), changes[0].OldMode)
	require.Equal(t, uint32(0o100755), changes[0].NewMode)
}

func TestDiffCommitsUnifiedOutput(t *testing.T) {
	f := newRepoFixture(t)

	v1 := f.blob("alpha\nbeta\ngamma\n")
	t1 := f.tree(map[string]treeEnt{"words.txt": file(v1)})
	c1 := f.commit(t1, nil, "first")

	v2 := f.blob("alpha\nbeta\ndelta\n")
	t2 := f.tree(map[string]treeEnt{"words.txt": file(v2)})
	c2 := f.commit(t2, []object.Hash{c1}, "second")

	f.setRef("refs/heads/main", c2)
	f.setHEAD("ref: refs/heads/main")

	r := f.open()

	oldC, err := r.Commit(c1)
	require.NoError(t, err)
	newC, err := r.Commit(c2)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, r.DiffCommits(&out, oldC, newC))

	text := out.String()
	require.Contains(t, text, "diff --git a/words.txt b/words.txt")
	require.Contains(t, text, "--- a/words.txt")
	require.Contains(t, text, "+++ b/words.txt")
	require.Contains(t, text, "-gamma")
	require.Contains(t, text, "+delta")
}

func TestDiffCommitsRoot(t *testing.T) {
	f := newRepoFixture(t)

	v1 := f.blob("only version\n")
	t1 := f.tree(map[string]treeEnt{"new.txt": file(v1)})
	c1 := f.commit(t1, nil, "root")
	f.setRef("refs/heads/main", c1)
	f.setHEAD("ref: refs/heads/main")

	r := f.open()

	c, err := r.Commit(c1)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, r.DiffCommits(&out, nil, c))

	text := out.String()
	require.Contains(t, text, "diff --git a/new.txt b/new.txt")
	require.Contains(t, text, "--- /dev/null")
	require.Contains(t, text, "+only version")
}

func TestDiffCommitsIdenticalTrees(t *testing.T) {
	f := newRepoFixture(t)

	v1 := f.blob("same\n")
	t1 := f.tree(map[string]treeEnt{"same.txt": file(v1)})
	c1 := f.commit(t1, nil, "first")
	c2 := f.commit(t1, []object.Hash{c1}, "second")
	f.setRef("refs/heads/main", c2)
	f.setHEAD("ref: refs/heads/main")

	r := f.open()

	oldC, err := r.Commit(c1)
	require.NoError(t, err)
	newC, err := r.Commit(c2)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, r.DiffCommits(&out, oldC, newC))
	require.Empty(t, out.String())
}
