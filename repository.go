// Package gitread is a read-oriented implementation of the Git repository
// model: it resolves references, walks history, lists trees, and
// materialises file content, all without shelling out to git and without
// ever writing to the repository.
//
// Object bytes come from the packfile store (package packfile) with a
// loose-object fallback for repositories that have not been fully packed.
package gitread

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-ini/ini"

	"github.com/gitread/gitread/object"
	"github.com/gitread/gitread/packfile"
)

var (
	// ErrBadPath reports that the given path is not a Git repository: no
	// objects directory could be found beneath it.
	ErrBadPath = errors.New("not a git repository")

	// ErrNotFound reports a reference or path that does not exist in the
	// repository.
	ErrNotFound = errors.New("not found")
)

// Config carries the subset of .git/config this library cares about.
type Config struct {
	// Bare is core.bare.
	Bare bool

	// UserName and UserEmail come from the [user] section.
	UserName  string
	UserEmail string

	// Remotes maps remote names to their fetch URLs.
	Remotes map[string]string
}

// Repository is a handle on one on-disk Git repository.
//
// The handle owns the pack store and its caches; Close releases every file
// handle. A Repository is meant to be driven by a single caller at a time.
type Repository struct {
	// gitDir is the directory holding HEAD, refs/ and objects/: ".git"
	// for a checkout, the repository path itself for a bare repository.
	gitDir string

	// objectsDir is gitDir/objects.
	objectsDir string

	// store reads packed objects.
	store *packfile.Store

	// config is parsed lazily-enough at open time; missing config files
	// leave the zero value.
	config Config
}

// Open opens the repository at path, which may point at a working tree
// (containing .git) or directly at a bare repository. Fails with
// ErrBadPath when no objects directory exists beneath it.
func Open(path string) (*Repository, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	gitDir := filepath.Join(abs, ".git")
	if _, err := os.Stat(filepath.Join(gitDir, "objects")); err != nil {
		// Maybe a bare repository.
		gitDir = abs
		if _, err := os.Stat(filepath.Join(gitDir, "objects")); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrBadPath, path)
		}
	}

	objectsDir := filepath.Join(gitDir, "objects")
	store, err := packfile.OpenStore(filepath.Join(objectsDir, "pack"))
	if err != nil {
		return nil, err
	}

	r := &Repository{
		gitDir:     gitDir,
		objectsDir: objectsDir,
		store:      store,
	}
	r.config = readConfig(filepath.Join(gitDir, "config"))
	return r, nil
}

// Close releases the pack store's caches and every open file handle.
func (r *Repository) Close() error {
	if r == nil {
		return nil
	}
	return r.store.Close()
}

// GitDir returns the repository's metadata directory.
func (r *Repository) GitDir() string { return r.gitDir }

// Config returns the parsed repository configuration.
func (r *Repository) Config() Config { return r.config }

// Store exposes the underlying pack store.
func (r *Repository) Store() *packfile.Store { return r.store }

// readConfig parses the gitconfig at path. A missing or malformed file is
// not an error for a read-only consumer; it just yields defaults.
func readConfig(path string) Config {
	cfg := Config{Remotes: map[string]string{}}

	f, err := ini.Load(path)
	if err != nil {
		return cfg
	}

	if core := f.Section("core"); core != nil {
		cfg.Bare = core.Key("bare").MustBool(false)
	}
	if user := f.Section("user"); user != nil {
		cfg.UserName = user.Key("name").String()
		cfg.UserEmail = user.Key("email").String()
	}
	for _, sec := range f.Sections() {
		var name string
		if _, err := fmt.Sscanf(sec.Name(), "remote %q", &name); err == nil {
			cfg.Remotes[name] = sec.Key("url").String()
		}
	}
	return cfg
}

// OpenObject returns a descriptor for id, consulting the pack store first
// and synthesising a non-packed descriptor for loose objects. Descriptors
// for loose objects cannot be extracted through the pack store.
func (r *Repository) OpenObject(id object.Hash) (*packfile.Object, error) {
	obj, err := r.store.OpenObject(id)
	if err == nil {
		return obj, nil
	}
	if !errors.Is(err, packfile.ErrObjectNotFound) {
		return nil, err
	}

	typ, data, lerr := readLooseObject(r.objectsDir, id)
	if errors.Is(lerr, packfile.ErrObjectNotFound) {
		return nil, err // report the pack store's miss
	}
	if lerr != nil {
		return nil, lerr
	}
	return &packfile.Object{
		ID:     id,
		Type:   typ,
		Size:   uint64(len(data)),
		Packed: false,
	}, nil
}

// ReadObject returns the raw bytes and resolved type of id, wherever it is
// stored.
func (r *Repository) ReadObject(id object.Hash) ([]byte, object.Type, error) {
	obj, err := r.store.OpenObject(id)
	if err == nil {
		defer obj.Close()
		data, err := r.store.ExtractToMemory(obj)
		if err != nil {
			return nil, object.TypeBad, err
		}
		return data, obj.Type, nil
	}
	if !errors.Is(err, packfile.ErrObjectNotFound) {
		return nil, object.TypeBad, err
	}

	typ, data, lerr := readLooseObject(r.objectsDir, id)
	if errors.Is(lerr, packfile.ErrObjectNotFound) {
		return nil, object.TypeBad, err
	}
	if lerr != nil {
		return nil, object.TypeBad, lerr
	}
	return data, typ, nil
}

// ObjectType reports the resolved type of id.
func (r *Repository) ObjectType(id object.Hash) (object.Type, error) {
	typ, err := r.store.ObjectType(id)
	if err == nil {
		return typ, nil
	}
	if !errors.Is(err, packfile.ErrObjectNotFound) {
		return object.TypeBad, err
	}
	typ, _, lerr := readLooseObject(r.objectsDir, id)
	if errors.Is(lerr, packfile.ErrObjectNotFound) {
		return object.TypeBad, err
	}
	if lerr != nil {
		return object.TypeBad, lerr
	}
	return typ, nil
}

// Commit reads and parses the commit id.
func (r *Repository) Commit(id object.Hash) (*object.Commit, error) {
	data, typ, err := r.ReadObject(id)
	if err != nil {
		return nil, err
	}
	if typ == object.TypeTag {
		// Annotated tags peel to their target.
		tag, err := object.ParseTag(id, data)
		if err != nil {
			return nil, err
		}
		return r.Commit(tag.Object)
	}
	if typ != object.TypeCommit {
		return nil, fmt.Errorf("%s is a %s, not a commit", id, typ)
	}
	return object.ParseCommit(id, data)
}

// Tree reads and parses the tree id.
func (r *Repository) Tree(id object.Hash) (*object.Tree, error) {
	data, typ, err := r.ReadObject(id)
	if err != nil {
		return nil, err
	}
	if typ != object.TypeTree {
		return nil, fmt.Errorf("%s is a %s, not a tree", id, typ)
	}
	return object.ParseTree(id, data)
}

// Blob reads the raw content of the blob id.
func (r *Repository) Blob(id object.Hash) ([]byte, error) {
	data, typ, err := r.ReadObject(id)
	if err != nil {
		return nil, err
	}
	if typ != object.TypeBlob {
		return nil, fmt.Errorf("%s is a %s, not a blob", id, typ)
	}
	return data, nil
}
