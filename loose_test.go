package gitread

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gitread/gitread/object"
	"github.com/gitread/gitread/packfile"
)

func TestReadLooseObject(t *testing.T) {
	f := newRepoFixture(t)
	id := f.blob("loose bytes\n")

	typ, data, err := readLooseObject(filepath.Join(f.gitDir, "objects"), id)
	require.NoError(t, err)
	require.Equal(t, object.TypeBlob, typ)
	require.Equal(t, []byte("loose bytes\n"), data)
}

func TestReadLooseObjectMissing(t *testing.T) {
	f := newRepoFixture(t)

	var absent object.Hash
	absent[0] = 0xab
	_, _, err := readLooseObject(filepath.Join(f.gitDir, "objects"), absent)
	require.ErrorIs(t, err, packfile.ErrObjectNotFound)
}

func TestParseLooseHeader(t *testing.T) {
	typ, content, err := parseLooseHeader([]byte("blob 5\x00hello"))
	require.NoError(t, err)
	require.Equal(t, object.TypeBlob, typ)
	require.Equal(t, []byte("hello"), content)
}

func TestParseLooseHeaderMalformed(t *testing.T) {
	for _, raw := range []string{
		"no terminator",
		"nospace\x00content",
		"blob x\x00content",
		"weird 7\x00content",
		"blob 99\x00content",
	} {
		_, _, err := parseLooseHeader([]byte(raw))
		require.Error(t, err, "input %q", raw)
	}
}
