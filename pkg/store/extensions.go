package store

import (
	"path/filepath"
	"strings"
)

// allowedExtensions is the fixed set of file extensions permitted for
// public download. Not configurable at runtime.
var allowedExtensions = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".webp": {},
	".svg": {}, ".bmp": {}, ".ico": {},
	".pdf": {}, ".txt": {},
	".mp4": {}, ".mp3": {}, ".wav": {},
	".zip": {}, ".rar": {}, ".7z": {}, ".tar": {}, ".gz": {}, ".xz": {},
	".json": {}, ".jsonc": {}, ".xml": {}, ".csv": {}, ".md": {}, ".js": {},
}

// ExtensionAllowed reports whether the file's extension is on the
// public download allow-list. Case-insensitive.
func ExtensionAllowed(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	_, ok := allowedExtensions[ext]
	return ok
}
