package workspace

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	coacherrors "github.com/hpungsan/bitcoach/internal/errors"
)

// DirHost serves a workspace from a local directory.
type DirHost struct {
	root       string
	realRoot   string // root with symlinks resolved
	skipPrefix string
}

// DirHostOption configures a DirHost.
type DirHostOption func(*DirHost)

// WithSkipPrefix leaves entries whose name starts with prefix out of the
// tree, so hidden directories such as .git or .venv are never walked.
func WithSkipPrefix(prefix string) DirHostOption {
	return func(h *DirHost) { h.skipPrefix = prefix }
}

// NewDirHost returns a host rooted at dir. The directory must exist.
func NewDirHost(dir string, opts ...DirHostOption) (*DirHost, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, coacherrors.NewWorkspaceUnavailable(dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, coacherrors.NewWorkspaceUnavailable(dir, err)
	}
	if !info.IsDir() {
		return nil, coacherrors.NewWorkspaceUnavailable(dir, fmt.Errorf("not a directory"))
	}
	realRoot, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, coacherrors.NewWorkspaceUnavailable(dir, err)
	}
	h := &DirHost{root: abs, realRoot: realRoot}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Root returns the absolute workspace directory.
func (h *DirHost) Root() string {
	return h.root
}

// Tree reads the directory tree. Unreadable subdirectories appear empty.
// Symlinks are left out entirely.
func (h *DirHost) Tree(ctx context.Context) (*Node, error) {
	root := &Node{Name: filepath.Base(h.root), Type: NodeDirectory}
	if err := h.fill(ctx, root, h.root, true); err != nil {
		return nil, err
	}
	return root, nil
}

func (h *DirHost) fill(ctx context.Context, node *Node, dir string, isRoot bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if isRoot {
			return err
		}
		return nil
	}
	for _, entry := range entries {
		if entry.Type()&fs.ModeSymlink != 0 || isHidden(entry.Name(), h.skipPrefix) {
			continue
		}
		child := &Node{Name: entry.Name(), Type: NodeFile}
		if entry.IsDir() {
			child.Type = NodeDirectory
			if err := h.fill(ctx, child, filepath.Join(dir, entry.Name()), false); err != nil {
				return err
			}
		}
		node.Children = append(node.Children, child)
	}
	return nil
}

// ReadFile reads a file by slash-separated path relative to the root.
// Paths that escape the root, directly or through a symlink, are rejected.
func (h *DirHost) ReadFile(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	full := filepath.Join(h.root, filepath.FromSlash(path))
	if !within(h.root, full) {
		return "", escapeError(path)
	}
	resolved, err := filepath.EvalSymlinks(full)
	if err != nil {
		return "", err
	}
	if !within(h.realRoot, resolved) {
		return "", escapeError(path)
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func escapeError(path string) error {
	return coacherrors.NewInvalidRequest(fmt.Sprintf("path escapes workspace: %s", path))
}
