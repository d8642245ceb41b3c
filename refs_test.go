package gitread

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gitread/gitread/object"
)

func TestHeadSymbolic(t *testing.T) {
	f := newRepoFixture(t)
	ids := f.linearHistory(2)

	r := f.open()

	id, ref, err := r.Head()
	require.NoError(t, err)
	require.Equal(t, ids[1], id)
	require.Equal(t, "refs/heads/main", ref)
}

func TestHeadDetached(t *testing.T) {
	f := newRepoFixture(t)
	ids := f.linearHistory(2)
	f.setHEAD(ids[0].String())

	r := f.open()

	id, ref, err := r.Head()
	require.NoError(t, err)
	require.Equal(t, ids[0], id)
	require.Empty(t, ref)
}

func TestResolveRefShortNames(t *testing.T) {
	f := newRepoFixture(t)
	ids := f.linearHistory(2)
	f.setRef("refs/tags/v1.0", ids[0])

	r := f.open()

	for name, want := range map[string]object.Hash{
		"main":            ids[1],
		"refs/heads/main": ids[1],
		"heads/main":      ids[1],
		"v1.0":            ids[0],
		"tags/v1.0":       ids[0],
		"HEAD":            ids[1],
		ids[0].String():   ids[0],
	} {
		got, err := r.ResolveRef(name)
		require.NoError(t, err, "name %q", name)
		require.Equal(t, want, got, "name %q", name)
	}
}

func TestResolveRefMissing(t *testing.T) {
	f := newRepoFixture(t)
	f.linearHistory(1)

	r := f.open()

	_, err := r.ResolveRef("no-such-branch")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPackedRefs(t *testing.T) {
	f := newRepoFixture(t)
	ids := f.linearHistory(2)

	f.writePackedRefs("# pack-refs with: peeled fully-peeled sorted\n" +
		ids[0].String() + " refs/tags/archived\n" +
		"^" + ids[0].String() + "\n" +
		ids[1].String() + " refs/remotes/origin/main\n")

	r := f.open()

	got, err := r.ResolveRef("archived")
	require.NoError(t, err)
	require.Equal(t, ids[0], got)

	got, err = r.ResolveRef("origin/main")
	require.NoError(t, err)
	require.Equal(t, ids[1], got)
}

func TestLooseRefShadowsPacked(t *testing.T) {
	f := newRepoFixture(t)
	ids := f.linearHistory(2)

	f.writePackedRefs(ids[0].String() + " refs/heads/main\n")

	r := f.open()

	// The loose refs/heads/main written by linearHistory wins.
	got, err := r.ResolveRef("main")
	require.NoError(t, err)
	require.Equal(t, ids[1], got)
}

func TestRefsListing(t *testing.T) {
	f := newRepoFixture(t)
	ids := f.linearHistory(2)
	f.setRef("refs/tags/v1.0", ids[0])
	f.writePackedRefs(ids[0].String() + " refs/tags/old\n")

	r := f.open()

	refs, err := r.Refs()
	require.NoError(t, err)

	byName := map[string]string{}
	var names []string
	for _, ref := range refs {
		byName[ref.Name] = ref.ID.String()
		names = append(names, ref.Name)
	}
	require.Equal(t, ids[1].String(), byName["refs/heads/main"])
	require.Equal(t, ids[0].String(), byName["refs/tags/v1.0"])
	require.Equal(t, ids[0].String(), byName["refs/tags/old"])
	require.IsIncreasing(t, names)
}
