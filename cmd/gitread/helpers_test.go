package main

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

// testRepo writes a tiny two-commit repository out of loose objects and
// returns its working-tree path plus the commit ids, oldest first.
func testRepo(t *testing.T) (dir string, commits []object.Hash) {
	t.Helper()
	dir = t.TempDir()
	gitDir := filepath.Join(dir, ".git")
	require.NoError(t, os.MkdirAll(filepath.Join(gitDir, "objects"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(gitDir, "refs", "heads"), 0o755))

	write := func(typ object.Type, content []byte) object.Hash {
		full := fmt.Appendf(nil, "%s %d\x00", typ, len(content))
		full = append(full, content...)
		sum := sha1.Sum(full)
		var id object.Hash
		copy(id[:], sum[:])

		hex := id.String()
		objDir := filepath.Join(gitDir, "objects", hex[:2])
		require.NoError(t, os.MkdirAll(objDir, 0o755))

		var buf bytes.Buffer
		zw := zlib.NewWriter(&buf)
		_, err := zw.Write(full)
		require.NoError(t, err)
		require.NoError(t, zw.Close())
		require.NoError(t, os.WriteFile(filepath.Join(objDir, hex[2:]), buf.Bytes(), 0o644))
		return id
	}

	tree := func(entries map[string]object.Hash) object.Hash {
		names := make([]string, 0, len(entries))
		for name := range entries {
			names = append(names, name)
		}
		sort.Strings(names)
		var raw bytes.Buffer
		for _, name := range names {
			fmt.Fprintf(&raw, "100644 %s\x00", name)
			id := entries[name]
			raw.Write(id[:])
		}
		return write(object.TypeTree, raw.Bytes())
	}

	commit := func(treeID object.Hash, parents []object.Hash, msg string, when int64) object.Hash {
		var raw bytes.Buffer
		fmt.Fprintf(&raw, "tree %s\n", treeID)
		for _, p := range parents {
			fmt.Fprintf(&raw, "parent %s\n", p)
		}
		fmt.Fprintf(&raw, "author CLI Test <cli@example.com> %d +0000\n", when)
		fmt.Fprintf(&raw, "committer CLI Test <cli@example.com> %d +0000\n", when)
		fmt.Fprintf(&raw, "\n%s\n", msg)
		return write(object.TypeCommit, raw.Bytes())
	}

	blob1 := write(object.TypeBlob, []byte("greetings\n"))
	tree1 := tree(map[string]object.Hash{"hello.txt": blob1})
	c1 := commit(tree1, nil, "initial import", 1700000000)

	blob2 := write(object.TypeBlob, []byte("greetings\nfarewell\n"))
	tree2 := tree(map[string]object.Hash{"hello.txt": blob2})
	c2 := commit(tree2, []object.Hash{c1}, "add farewell", 1700000100)

	require.NoError(t, os.WriteFile(
		filepath.Join(gitDir, "refs", "heads", "main"),
		[]byte(c2.String()+"\n"), 0o644))
	require.NoError(t, os.WriteFile(
		filepath.Join(gitDir, "HEAD"),
		[]byte("ref: refs/heads/main\n"), 0o644))

	return dir, []object.Hash{c1, c2}
}

// runCommand executes the CLI with the given arguments and returns its
// standard output.
func runCommand(t *testing.T, args ...string) string {
	t.Helper()

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)

	require.NoError(t, root.Execute())
	return out.String()
}
