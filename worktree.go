package gitread

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gitread/gitread/object"
	"github.com/gitread/gitread/packfile"
)

const (
	// worktreeMetaDir holds the checkout's bookkeeping inside the work
	// tree root.
	worktreeMetaDir = ".gitread"

	// worktreeFormat is bumped when the metadata layout changes.
	worktreeFormat = "1"

	metaFormatFile = "format"
	metaRepoFile   = "repository"
	metaBaseFile   = "base-commit"
	metaRefFile    = "head-ref"
	metaLockFile   = "lock"
)

var (
	// ErrWorktreeBusy reports that another process holds the work tree
	// lock.
	ErrWorktreeBusy = errors.New("work tree is locked")

	// ErrNotWorktree reports a directory without checkout metadata.
	ErrNotWorktree = errors.New("not a checked-out work tree")
)

// Worktree is an open handle on a checked-out work tree.
type Worktree struct {
	// Root is the work tree's top directory.
	Root string

	// RepoPath is the repository the checkout came from.
	RepoPath string

	// BaseCommit is the commit the files on disk reflect.
	BaseCommit object.Hash

	// HeadRef is the branch the checkout tracks, empty for a detached
	// checkout.
	HeadRef string
}

// Checkout materialises the tree of commitID from r into dir, creating it
// if needed, and records checkout metadata so the work tree can later be
// updated. headRef names the branch being checked out; pass "" for a
// detached checkout.
func Checkout(r *Repository, commitID object.Hash, headRef, dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return err
	}
	if _, err := os.Stat(filepath.Join(abs, worktreeMetaDir)); err == nil {
		return fmt.Errorf("%s: already contains a checkout", dir)
	}

	c, err := r.Commit(commitID)
	if err != nil {
		return err
	}

	if err := os.Mkdir(filepath.Join(abs, worktreeMetaDir), 0o755); err != nil {
		return err
	}
	unlock, err := lockWorktree(abs)
	if err != nil {
		return err
	}
	defer unlock()

	if err := r.materialiseTree(c.Tree, abs); err != nil {
		return err
	}
	return writeWorktreeMeta(abs, r.gitDir, c.ID, headRef)
}

// OpenWorktree reads the checkout metadata under dir.
func OpenWorktree(dir string) (*Worktree, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	meta := filepath.Join(abs, worktreeMetaDir)

	format, err := readMetaFile(meta, metaFormatFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotWorktree, dir)
	}
	if format != worktreeFormat {
		return nil, fmt.Errorf("%s: unsupported checkout format %q", dir, format)
	}

	repoPath, err := readMetaFile(meta, metaRepoFile)
	if err != nil {
		return nil, err
	}
	baseStr, err := readMetaFile(meta, metaBaseFile)
	if err != nil {
		return nil, err
	}
	base, err := object.ParseHash(baseStr)
	if err != nil {
		return nil, fmt.Errorf("%s: malformed base commit %q", dir, baseStr)
	}
	headRef, _ := readMetaFile(meta, metaRefFile)

	return &Worktree{
		Root:       abs,
		RepoPath:   repoPath,
		BaseCommit: base,
		HeadRef:    headRef,
	}, nil
}

// Update brings the work tree from its recorded base commit to commitID:
// changed and new files are rewritten, files absent from the target commit
// are removed, and untouched files are left alone. A zero commitID updates
// to the tip of the tracked branch (or HEAD for a detached checkout).
func (w *Worktree) Update(r *Repository, commitID object.Hash) error {
	unlock, err := lockWorktree(w.Root)
	if err != nil {
		return err
	}
	defer unlock()

	if commitID.IsZero() {
		if w.HeadRef != "" {
			commitID, err = r.ResolveRef(w.HeadRef)
		} else {
			commitID, _, err = r.Head()
		}
		if err != nil {
			return err
		}
	}

	target, err := r.Commit(commitID)
	if err != nil {
		return err
	}

	newFiles := map[string]object.TreeEntry{}
	if err := r.flattenTree(target.Tree, "", newFiles); err != nil {
		return err
	}

	oldFiles := map[string]object.TreeEntry{}
	switch base, err := r.Commit(w.BaseCommit); {
	case err == nil:
		if err := r.flattenTree(base.Tree, "", oldFiles); err != nil {
			return err
		}
	case errors.Is(err, packfile.ErrObjectNotFound):
		// A pruned base commit leaves the old tree unknown: nothing is
		// removed and every target entry is rewritten.
	default:
		return err
	}

	// Removals first, deepest paths before their parents so directory
	// pruning sees empty directories.
	var gone []string
	for path := range oldFiles {
		if _, keep := newFiles[path]; !keep {
			gone = append(gone, path)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(gone)))
	for _, path := range gone {
		full := filepath.Join(w.Root, filepath.FromSlash(path))
		if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
			return err
		}
		pruneEmptyDirs(w.Root, filepath.Dir(full))
	}

	for path, entry := range newFiles {
		if old, ok := oldFiles[path]; ok && old.ID == entry.ID && old.Mode == entry.Mode {
			continue
		}
		if err := r.materialiseEntry(entry, filepath.Join(w.Root, filepath.FromSlash(path))); err != nil {
			return err
		}
	}

	w.BaseCommit = target.ID
	return writeWorktreeMeta(w.Root, w.RepoPath, target.ID, w.HeadRef)
}

// materialiseTree writes the whole tree id below dir.
func (r *Repository) materialiseTree(id object.Hash, dir string) error {
	tree, err := r.Tree(id)
	if err != nil {
		return err
	}
	for _, entry := range tree.Entries {
		path := filepath.Join(dir, entry.Name)
		if entry.IsDir() {
			if err := os.MkdirAll(path, 0o755); err != nil {
				return err
			}
			if err := r.materialiseTree(entry.ID, path); err != nil {
				return err
			}
			continue
		}
		if err := r.materialiseEntry(entry, path); err != nil {
			return err
		}
	}
	return nil
}

// materialiseEntry writes one blob or symlink entry at path, creating
// parent directories as needed.
func (r *Repository) materialiseEntry(entry object.TreeEntry, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	data, err := r.Blob(entry.ID)
	if err != nil {
		return err
	}

	if entry.IsSymlink() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
		return os.Symlink(string(data), path)
	}

	mode := os.FileMode(0o644)
	if entry.IsExecutable() {
		mode = 0o755
	}
	if err := os.WriteFile(path, data, mode); err != nil {
		return err
	}
	// WriteFile does not change the mode of an existing file.
	return os.Chmod(path, mode)
}

// flattenTree records every non-directory entry of tree id under prefix
// into files, keyed by slash-separated path.
func (r *Repository) flattenTree(id object.Hash, prefix string, files map[string]object.TreeEntry) error {
	tree, err := r.Tree(id)
	if err != nil {
		return err
	}
	for _, entry := range tree.Entries {
		path := entry.Name
		if prefix != "" {
			path = prefix + "/" + entry.Name
		}
		if entry.IsDir() {
			if err := r.flattenTree(entry.ID, path, files); err != nil {
				return err
			}
			continue
		}
		files[path] = entry
	}
	return nil
}

// pruneEmptyDirs removes now-empty directories from dir up to (but not
// including) root. Failures are ignored; a non-empty directory simply
// stops the climb.
func pruneEmptyDirs(root, dir string) {
	for dir != root && strings.HasPrefix(dir, root) {
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

// lockWorktree takes the work tree lock, failing with ErrWorktreeBusy when
// another process holds it. The returned function releases the lock.
func lockWorktree(root string) (func(), error) {
	path := filepath.Join(root, worktreeMetaDir, metaLockFile)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrWorktreeBusy, root)
		}
		return nil, err
	}
	fmt.Fprintf(f, "%d\n", os.Getpid())
	_ = f.Close()
	return func() { _ = os.Remove(path) }, nil
}

// writeWorktreeMeta persists the checkout metadata files.
func writeWorktreeMeta(root, repoPath string, base object.Hash, headRef string) error {
	meta := filepath.Join(root, worktreeMetaDir)
	for _, kv := range []struct{ name, value string }{
		{metaFormatFile, worktreeFormat},
		{metaRepoFile, repoPath},
		{metaBaseFile, base.String()},
		{metaRefFile, headRef},
	} {
		if err := os.WriteFile(filepath.Join(meta, kv.name), []byte(kv.value+"\n"), 0o644); err != nil {
			return err
		}
	}
	return nil
}

// readMetaFile returns the trimmed first line of one metadata file.
func readMetaFile(metaDir, name string) (string, error) {
	f, err := os.Open(filepath.Join(metaDir, name))
	if err != nil {
		return "", err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	if !sc.Scan() {
		return "", sc.Err()
	}
	return strings.TrimSpace(sc.Text()), nil
}
