package gitread

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gitread/gitread/object"
	"github.com/gitread/gitread/packfile"
)

// readLooseObject reads and inflates the loose object id from
// objectsDir/xx/yyyy..., returning its type and content.
//
// Loose objects are zlib streams of "<type> <size>\x00<content>". A missing
// file maps to packfile.ErrObjectNotFound so callers can treat the packed
// and loose layers uniformly.
func readLooseObject(objectsDir string, id object.Hash) (object.Type, []byte, error) {
	hex := id.String()
	path := filepath.Join(objectsDir, hex[:2], hex[2:])

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return object.TypeBad, nil, fmt.Errorf("%w: %s", packfile.ErrObjectNotFound, id)
		}
		return object.TypeBad, nil, err
	}
	defer f.Close()

	zr, err := zlib.NewReader(f)
	if err != nil {
		return object.TypeBad, nil, fmt.Errorf("loose object %s: %w", id, err)
	}
	defer zr.Close()

	raw, err := io.ReadAll(zr)
	if err != nil {
		return object.TypeBad, nil, fmt.Errorf("loose object %s: %w", id, err)
	}

	typ, content, err := parseLooseHeader(raw)
	if err != nil {
		return object.TypeBad, nil, fmt.Errorf("loose object %s: %w", id, err)
	}
	return typ, content, nil
}

// parseLooseHeader splits an inflated loose object into its type and
// content, validating the declared size.
func parseLooseHeader(raw []byte) (object.Type, []byte, error) {
	nul := bytes.IndexByte(raw, 0)
	if nul < 0 {
		return object.TypeBad, nil, fmt.Errorf("missing header terminator")
	}
	header := raw[:nul]
	content := raw[nul+1:]

	sp := bytes.IndexByte(header, ' ')
	if sp < 0 {
		return object.TypeBad, nil, fmt.Errorf("malformed header %q", header)
	}

	typ := object.ParseType(string(header[:sp]))
	if typ == object.TypeBad {
		return object.TypeBad, nil, fmt.Errorf("unknown object type %q", header[:sp])
	}
	size, err := strconv.ParseUint(string(header[sp+1:]), 10, 64)
	if err != nil {
		return object.TypeBad, nil, fmt.Errorf("malformed size in header %q", header)
	}
	if size != uint64(len(content)) {
		return object.TypeBad, nil, fmt.Errorf("declared size %d, got %d bytes", size, len(content))
	}
	return typ, content, nil
}
