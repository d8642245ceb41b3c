package gitread

import (
	"bytes"
	"compress/zlib"
	"crypto/sha1"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gitread/gitread/object"
)

// repoFixture builds a repository on disk out of loose objects, which keeps
// the fixtures readable while exercising the same object model the pack
// store feeds.
type repoFixture struct {
	t      *testing.T
	dir    string // working tree root
	gitDir string
	clock  int64
}

func newRepoFixture(t *testing.T) *repoFixture {
	t.Helper()
	dir := t.TempDir()
	gitDir := filepath.Join(dir, ".git")
	require.NoError(t, os.MkdirAll(filepath.Join(gitDir, "objects"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(gitDir, "refs", "heads"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(gitDir, "refs", "tags"), 0o755))
	return &repoFixture{t: t, dir: dir, gitDir: gitDir, clock: 1700000000}
}

// writeLoose stores one loose object and returns its id.
func (f *repoFixture) writeLoose(typ object.Type, content []byte) object.Hash {
	f.t.Helper()

	full := fmt.Appendf(nil, "%s %d\x00", typ, len(content))
	full = append(full, content...)

	sum := sha1.Sum(full)
	var id object.Hash
	copy(id[:], sum[:])

	hex := id.String()
	objDir := filepath.Join(f.gitDir, "objects", hex[:2])
	require.NoError(f.t, os.MkdirAll(objDir, 0o755))

	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	_, err := zw.Write(full)
	require.NoError(f.t, err)
	require.NoError(f.t, zw.Close())
	require.NoError(f.t, os.WriteFile(filepath.Join(objDir, hex[2:]), buf.Bytes(), 0o644))

	return id
}

func (f *repoFixture) blob(content string) object.Hash {
	return f.writeLoose(object.TypeBlob, []byte(content))
}

// tree writes a tree object from name -> (mode, id) entries, sorted the way
// Git sorts them.
func (f *repoFixture) tree(entries map[string]treeEnt) object.Hash {
	f.t.Helper()

	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	var raw bytes.Buffer
	for _, name := range names {
		e := entries[name]
		fmt.Fprintf(&raw, "%o %s\x00", e.mode, name)
		raw.Write(e.id[:])
	}
	return f.writeLoose(object.TypeTree, raw.Bytes())
}

type treeEnt struct {
	mode uint32
	id   object.Hash
}

func file(id object.Hash) treeEnt    { return treeEnt{mode: 0o100644, id: id} }
func subdir(id object.Hash) treeEnt  { return treeEnt{mode: 0o040000, id: id} }
func symlink(id object.Hash) treeEnt { return treeEnt{mode: 0o120000, id: id} }
func execFile(id object.Hash) treeEnt {
	return treeEnt{mode: 0o100755, id: id}
}

// commit writes a commit object with a strictly increasing timestamp so
// history walks have a deterministic order.
func (f *repoFixture) commit(tree object.Hash, parents []object.Hash, msg string) object.Hash {
	f.t.Helper()
	f.clock += 100

	var raw bytes.Buffer
	fmt.Fprintf(&raw, "tree %s\n", tree)
	for _, p := range parents {
		fmt.Fprintf(&raw, "parent %s\n", p)
	}
	fmt.Fprintf(&raw, "author Test Author <test@example.com> %d +0000\n", f.clock)
	fmt.Fprintf(&raw, "committer Test Author <test@example.com> %d +0000\n", f.clock)
	fmt.Fprintf(&raw, "\n%s\n", msg)

	return f.writeLoose(object.TypeCommit, raw.Bytes())
}

func (f *repoFixture) setHEAD(target string) {
	f.t.Helper()
	require.NoError(f.t, os.WriteFile(filepath.Join(f.gitDir, "HEAD"), []byte(target+"\n"), 0o644))
}

func (f *repoFixture) setRef(name string, id object.Hash) {
	f.t.Helper()
	path := filepath.Join(f.gitDir, filepath.FromSlash(name))
	require.NoError(f.t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(f.t, os.WriteFile(path, []byte(id.String()+"\n"), 0o644))
}

func (f *repoFixture) writePackedRefs(lines string) {
	f.t.Helper()
	require.NoError(f.t, os.WriteFile(filepath.Join(f.gitDir, "packed-refs"), []byte(lines), 0o644))
}

func (f *repoFixture) open() *Repository {
	f.t.Helper()
	r, err := Open(f.dir)
	require.NoError(f.t, err)
	f.t.Cleanup(func() { _ = r.Close() })
	return r
}

// linearHistory builds n commits, each changing file.txt, and returns the
// commit ids oldest first. The branch refs/heads/main and HEAD point at the
// newest.
func (f *repoFixture) linearHistory(n int) []object.Hash {
	f.t.Helper()

	var parents []object.Hash
	var ids []object.Hash
	for i := 0; i < n; i++ {
		blobID := f.blob(fmt.Sprintf("content revision %d\n", i))
		treeID := f.tree(map[string]treeEnt{"file.txt": file(blobID)})
		id := f.commit(treeID, parents, fmt.Sprintf("commit %d", i))
		ids = append(ids, id)
		parents = []object.Hash{id}
	}

	f.setRef("refs/heads/main", ids[n-1])
	f.setHEAD("ref: refs/heads/main")
	return ids
}
