package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideRoot is returned for paths that resolve outside the allowed directory
var ErrOutsideRoot = errors.New("path is outside the allowed directory")

// PathValidator confines document paths to one directory tree.
// A validator without a root accepts every path.
type PathValidator struct {
	root string
}

// NewPathValidator creates a validator for root. The root must be an
// existing directory; symlinks in it are resolved once here.
func NewPathValidator(root string) (*PathValidator, error) {
	if root == "" {
		return &PathValidator{}, nil
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve allowed directory: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve allowed directory: %w", err)
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return nil, fmt.Errorf("cannot access allowed directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("allowed directory is not a directory: %s", root)
	}

	return &PathValidator{root: resolved}, nil
}

// Root returns the resolved allowed directory, or "" when unrestricted
func (v *PathValidator) Root() string {
	return v.root
}

// ValidatePath returns the absolute, symlink-resolved form of path. With a
// root configured, paths resolving outside it fail with ErrOutsideRoot.
func (v *PathValidator) ValidatePath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path cannot be empty")
	}
	if strings.ContainsRune(path, 0) {
		return "", fmt.Errorf("path contains a NUL byte")
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	if v.root == "" {
		return absPath, nil
	}

	resolved, err := resolve(absPath)
	if err != nil {
		return "", err
	}
	if !within(v.root, resolved) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, path)
	}
	return resolved, nil
}

// resolve follows symlinks in path. A missing final element is allowed so
// the caller can report it as a missing file.
func resolve(path string) (string, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err == nil {
		return resolved, nil
	}
	if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}

	dir, err := filepath.EvalSymlinks(filepath.Dir(path))
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	return filepath.Join(dir, filepath.Base(path)), nil
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}
