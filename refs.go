package gitread

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gitread/gitread/object"
)

// Ref is a named pointer into the object graph.
type Ref struct {
	// Name is the fully qualified reference name, e.g. refs/heads/main.
	Name string

	// ID is the object the reference points at.
	ID object.Hash
}

const symrefPrefix = "ref: "

// Head resolves HEAD. It returns the commit id and, when HEAD is symbolic,
// the fully qualified name of the branch it points at; a detached HEAD
// yields an empty name.
func (r *Repository) Head() (object.Hash, string, error) {
	data, err := os.ReadFile(filepath.Join(r.gitDir, "HEAD"))
	if err != nil {
		return object.Hash{}, "", fmt.Errorf("%w: HEAD", ErrNotFound)
	}
	line := strings.TrimSpace(string(data))

	if target, ok := strings.CutPrefix(line, symrefPrefix); ok {
		id, err := r.resolveRefName(target)
		if err != nil {
			return object.Hash{}, "", err
		}
		return id, target, nil
	}

	id, err := object.ParseHash(line)
	if err != nil {
		return object.Hash{}, "", fmt.Errorf("malformed HEAD %q", line)
	}
	return id, "", nil
}

// ResolveRef resolves name to an object id. Short names are tried against
// the usual prefixes in git's lookup order, and a full 40-hex id is
// accepted directly. Annotated tags are not peeled here; Commit does that.
func (r *Repository) ResolveRef(name string) (object.Hash, error) {
	if name == "HEAD" || name == "" {
		id, _, err := r.Head()
		return id, err
	}

	for _, full := range []string{
		name,
		"refs/" + name,
		"refs/tags/" + name,
		"refs/heads/" + name,
		"refs/remotes/" + name,
	} {
		if id, err := r.resolveRefName(full); err == nil {
			return id, nil
		}
	}

	if len(name) == 2*20 {
		if id, err := object.ParseHash(name); err == nil {
			return id, nil
		}
	}
	return object.Hash{}, fmt.Errorf("%w: reference %s", ErrNotFound, name)
}

// resolveRefName looks up one fully qualified name: loose file first, then
// packed-refs. Symbolic references are followed.
func (r *Repository) resolveRefName(name string) (object.Hash, error) {
	data, err := os.ReadFile(filepath.Join(r.gitDir, filepath.FromSlash(name)))
	if err == nil {
		line := strings.TrimSpace(string(data))
		if target, ok := strings.CutPrefix(line, symrefPrefix); ok {
			return r.resolveRefName(target)
		}
		id, err := object.ParseHash(line)
		if err != nil {
			return object.Hash{}, fmt.Errorf("malformed reference %s: %q", name, line)
		}
		return id, nil
	}

	packed, err := r.packedRefs()
	if err != nil {
		return object.Hash{}, err
	}
	if id, ok := packed[name]; ok {
		return id, nil
	}
	return object.Hash{}, fmt.Errorf("%w: reference %s", ErrNotFound, name)
}

// packedRefs parses .git/packed-refs. A missing file yields an empty map.
// Peeled lines ("^<id>") are skipped; the tag object itself is what the
// reference names.
func (r *Repository) packedRefs() (map[string]object.Hash, error) {
	refs := map[string]object.Hash{}

	f, err := os.Open(filepath.Join(r.gitDir, "packed-refs"))
	if err != nil {
		if os.IsNotExist(err) {
			return refs, nil
		}
		return nil, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if line == "" || line[0] == '#' || line[0] == '^' {
			continue
		}
		id, name, ok := strings.Cut(line, " ")
		if !ok {
			continue
		}
		h, err := object.ParseHash(id)
		if err != nil {
			continue
		}
		refs[name] = h
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return refs, nil
}

// Refs lists every reference under refs/, loose and packed. Loose
// references shadow packed ones of the same name. The result is sorted by
// name.
func (r *Repository) Refs() ([]Ref, error) {
	byName, err := r.packedRefs()
	if err != nil {
		return nil, err
	}

	refsDir := filepath.Join(r.gitDir, "refs")
	err = filepath.WalkDir(refsDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(r.gitDir, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		id, err := r.resolveRefName(name)
		if err != nil {
			return nil // broken loose ref, skip
		}
		byName[name] = id
		return nil
	})
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	slices.Sort(names)

	out := make([]Ref, 0, len(names))
	for _, name := range names {
		out = append(out, Ref{Name: name, ID: byName[name]})
	}
	return out, nil
}
