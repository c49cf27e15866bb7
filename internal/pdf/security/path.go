package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PathValidator keeps caller supplied paths inside one base directory
type PathValidator struct {
	baseDirectory string
}

// NewPathValidator creates a validator rooted at baseDirectory
func NewPathValidator(baseDirectory string) (*PathValidator, error) {
	if baseDirectory == "" {
		return nil, fmt.Errorf("base directory cannot be empty")
	}

	abs, err := filepath.Abs(baseDirectory)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base directory: %w", err)
	}
	return &PathValidator{
		baseDirectory: filepath.Clean(abs),
	}, nil
}

// BaseDirectory returns the absolute base directory
func (v *PathValidator) BaseDirectory() string {
	return v.baseDirectory
}

// ValidatePath checks that an absolute path is the base directory or inside it
func (v *PathValidator) ValidatePath(path string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	isWithin, err := v.IsPathWithinDirectory(absPath)
	if err != nil {
		return fmt.Errorf("path validation failed: %w", err)
	}
	if !isWithin {
		return fmt.Errorf("path is outside the output directory: %s", path)
	}
	return nil
}

// IsPathWithinDirectory reports whether path, after cleaning and resolving
// symlinks that already exist, stays inside the base directory
func (v *PathValidator) IsPathWithinDirectory(path string) (bool, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false, fmt.Errorf("failed to resolve path: %w", err)
	}
	cleanPath := filepath.Clean(absPath)

	realDir := v.baseDirectory
	if resolved, err := filepath.EvalSymlinks(realDir); err == nil {
		realDir = resolved
	}
	realPath := cleanPath
	if resolved, err := filepath.EvalSymlinks(cleanPath); err == nil {
		realPath = resolved
	}

	within := func(p, dir string) bool {
		if p == dir {
			return true
		}
		if !strings.HasSuffix(dir, string(filepath.Separator)) {
			dir += string(filepath.Separator)
		}
		return strings.HasPrefix(p, dir)
	}

	pathOk := within(cleanPath, v.baseDirectory) || within(cleanPath, realDir)
	realPathOk := within(realPath, v.baseDirectory) || within(realPath, realDir)
	return pathOk && realPathOk, nil
}

// NormalizePath resolves a path relative to the base directory and validates it.
// An empty path is the base directory itself.
func (v *PathValidator) NormalizePath(path string) (string, error) {
	path = strings.ReplaceAll(path, "\x00", "")
	if path == "" {
		return v.baseDirectory, nil
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(v.baseDirectory, path)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	if err := v.ValidatePath(absPath); err != nil {
		return "", err
	}
	return absPath, nil
}

// EnsureDirectory normalizes dir and creates it when missing
func (v *PathValidator) EnsureDirectory(dir string, perm os.FileMode) (string, error) {
	normalized, err := v.NormalizePath(dir)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(normalized)
	switch {
	case os.IsNotExist(err):
		if err := os.MkdirAll(normalized, perm); err != nil {
			return "", fmt.Errorf("cannot create directory: %w", err)
		}
	case err != nil:
		return "", fmt.Errorf("cannot access directory: %w", err)
	case !info.IsDir():
		return "", fmt.Errorf("path is not a directory: %s", normalized)
	}

	// A symlink created inside the tree may point elsewhere once it exists.
	if err := v.ValidatePath(normalized); err != nil {
		return "", err
	}
	return normalized, nil
}
