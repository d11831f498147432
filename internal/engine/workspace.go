package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// skipDirs are directory names never copied into a workspace.
var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"__pycache__":  true,
}

// ResolveProject maps a project name to its source directory: the name
// itself if it is a directory, otherwise <root>/<name> for each search
// root in order.
func ResolveProject(name string, roots []string) (string, error) {
	candidates := []string{name}
	for _, r := range roots {
		candidates = append(candidates, filepath.Join(r, name))
	}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && info.IsDir() {
			return c, nil
		}
	}
	return "", fmt.Errorf("project %q not found under search roots %v", name, roots)
}

// Materialize copies the project source tree into a fresh workspace
// directory. An existing workspace for the same id is removed first so
// every execution starts from the current source state.
func Materialize(src, dst string) error {
	if err := os.RemoveAll(dst); err != nil {
		return fmt.Errorf("clear workspace: %w", err)
	}
	return copyTree(src, dst)
}

// ScopeWorkspace builds the scoped sub-workspace holding only the
// declared allowed paths, copied from the full workspace. Every allowed
// path must be relative, must normalize to a location inside the
// workspace, and must exist in the copied tree. This is the
// sandbox-escape guard: it runs before any tool invocation.
func ScopeWorkspace(workspace, scoped string, allowed []string) error {
	if err := os.RemoveAll(scoped); err != nil {
		return fmt.Errorf("clear scoped workspace: %w", err)
	}
	if err := os.MkdirAll(scoped, 0o755); err != nil {
		return err
	}

	wsRoot, err := filepath.Abs(workspace)
	if err != nil {
		return err
	}
	for _, p := range allowed {
		if err := validateScopedPath(wsRoot, p); err != nil {
			return err
		}
		src := filepath.Join(wsRoot, filepath.FromSlash(p))
		info, err := os.Lstat(src)
		if err != nil {
			return fmt.Errorf("allowed path %q does not exist in the workspace", p)
		}
		// Symlinked allowed paths could point outside the workspace.
		if info.Mode()&os.ModeSymlink != 0 {
			return fmt.Errorf("allowed path %q is a symlink", p)
		}
		dst := filepath.Join(scoped, filepath.FromSlash(p))
		if info.IsDir() {
			if err := copyTree(src, dst); err != nil {
				return err
			}
			continue
		}
		if err := copyFile(src, dst, info.Mode()); err != nil {
			return err
		}
	}
	return nil
}

// validateScopedPath rejects absolute paths, traversal components, and
// anything that normalizes outside root.
func validateScopedPath(root, p string) error {
	if p == "" {
		return fmt.Errorf("allowed path must not be empty")
	}
	if filepath.IsAbs(p) || strings.HasPrefix(p, "/") {
		return fmt.Errorf("allowed path %q must be relative", p)
	}
	for _, part := range strings.Split(filepath.ToSlash(p), "/") {
		if part == ".." {
			return fmt.Errorf("allowed path %q contains a traversal component", p)
		}
	}
	full := filepath.Clean(filepath.Join(root, filepath.FromSlash(p)))
	if full != root && !strings.HasPrefix(full, root+string(filepath.Separator)) {
		return fmt.Errorf("allowed path %q resolves outside the workspace", p)
	}
	return nil
}

// Snapshot maps a relative file path to its content digest. Snapshots
// are ephemeral: they exist only to compute one diff and are never
// persisted.
type Snapshot map[string]string

// TakeSnapshot digests every regular file under root.
func TakeSnapshot(root string) (Snapshot, error) {
	snap := Snapshot{}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		digest, err := hashFile(path)
		if err != nil {
			return err
		}
		snap[filepath.ToSlash(rel)] = digest
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", root, err)
	}
	return snap, nil
}

// Diff is the observed change set between two snapshots.
type Diff struct {
	Created  []string
	Modified []string
	Deleted  []string
}

// DiffSnapshots compares before and after, returning sorted path sets.
func DiffSnapshots(before, after Snapshot) Diff {
	var d Diff
	for path, digest := range after {
		prev, ok := before[path]
		switch {
		case !ok:
			d.Created = append(d.Created, path)
		case prev != digest:
			d.Modified = append(d.Modified, path)
		}
	}
	for path := range before {
		if _, ok := after[path]; !ok {
			d.Deleted = append(d.Deleted, path)
		}
	}
	sort.Strings(d.Created)
	sort.Strings(d.Modified)
	sort.Strings(d.Deleted)
	return d
}

// ChangedCount is the number of created or modified files.
func (d Diff) ChangedCount() int { return len(d.Created) + len(d.Modified) }

// TotalCount includes deletions.
func (d Diff) TotalCount() int { return d.ChangedCount() + len(d.Deleted) }

// Empty reports whether the tool produced zero observable changes.
func (d Diff) Empty() bool { return d.TotalCount() == 0 }

// Summary renders the diff for report notes.
func (d Diff) Summary() string {
	if d.Empty() {
		return "no changes"
	}
	parts := make([]string, 0, 3)
	if len(d.Created) > 0 {
		parts = append(parts, fmt.Sprintf("created %s", strings.Join(d.Created, ", ")))
	}
	if len(d.Modified) > 0 {
		parts = append(parts, fmt.Sprintf("modified %s", strings.Join(d.Modified, ", ")))
	}
	if len(d.Deleted) > 0 {
		parts = append(parts, fmt.Sprintf("deleted %s", strings.Join(d.Deleted, ", ")))
	}
	return strings.Join(parts, "; ")
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return "sha256:" + hex.EncodeToString(h.Sum(nil)), nil
}

func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			if skipDirs[d.Name()] && rel != "." {
				return filepath.SkipDir
			}
			return os.MkdirAll(target, 0o755)
		}
		if !d.Type().IsRegular() {
			// Symlinks and devices are not carried into workspaces.
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		return copyFile(path, target, info.Mode())
	})
}

func copyFile(src, dst string, mode fs.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode.Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
