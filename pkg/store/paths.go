package store

import (
	"errors"
	"path"
	"path/filepath"
	"strings"
)

var (
	// ErrUnsafePath is returned when a client-supplied path would
	// resolve outside the storage root.
	ErrUnsafePath = errors.New("unsafe path")
	// ErrNotFound is returned when the target does not exist or is
	// deliberately hidden (disallowed extension on serve).
	ErrNotFound = errors.New("not found")
	// ErrNotDirectory is returned when a listing target is a file.
	ErrNotDirectory = errors.New("not a directory")
)

// IsPathSafe reports whether candidate, once resolved to canonical
// absolute form, stays within root. The root itself is safe. It never
// returns an error; callers translate false into an HTTP 400/404.
func IsPathSafe(candidate, root string) bool {
	absRoot, err := filepath.Abs(filepath.Clean(root))
	if err != nil {
		return false
	}
	absCand, err := filepath.Abs(filepath.Clean(candidate))
	if err != nil {
		return false
	}
	absRoot = strings.TrimSuffix(absRoot, string(filepath.Separator))
	if absCand == absRoot {
		return true
	}
	return strings.HasPrefix(absCand, absRoot+string(filepath.Separator))
}

// CleanRelPath takes a user path like "", ".", "/a/b", "a//b", and
// returns a safe, slash-based, no-leading-slash relative path
// ("" means root). Paths carrying "." or ".." segments are rejected
// with ErrUnsafePath rather than silently rewritten.
func CleanRelPath(p string) (string, error) {
	p = strings.TrimSpace(p)
	if p == "" || p == "." || p == "/" {
		return "", nil
	}
	if hasDotSegments(p) {
		return "", ErrUnsafePath
	}
	p = strings.ReplaceAll(p, "\\", "/")
	p = path.Clean("/" + p) // force absolute for stable cleaning
	return strings.TrimPrefix(p, "/"), nil
}

// resolveWithin returns the absolute filesystem path under root for a
// given relative path, rejecting escapes.
func resolveWithin(root, rel string) (string, error) {
	if strings.Contains(rel, "\x00") {
		return "", ErrUnsafePath
	}
	rel, err := CleanRelPath(rel)
	if err != nil {
		return "", err
	}
	if rel == "" {
		return filepath.Clean(root), nil
	}
	abs := filepath.Join(root, filepath.FromSlash(rel))
	if !IsPathSafe(abs, root) {
		return "", ErrUnsafePath
	}
	return filepath.Clean(abs), nil
}

// hasDotSegments reports whether any raw path segment is "." or "..".
func hasDotSegments(p string) bool {
	p = strings.ReplaceAll(p, "\\", "/")
	for _, seg := range strings.Split(p, "/") {
		if seg == "." || seg == ".." {
			return true
		}
	}
	return false
}
