package store

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var filenameDisallowed = regexp.MustCompile(`[^A-Za-z0-9_.\- ]`)

// SanitizeFilename makes an untrusted client filename safe to place in
// a directory: path separators become "_", ".." sequences collapse to
// "_", everything outside [A-Za-z0-9_.- ] is stripped and surrounding
// whitespace trimmed. Total and idempotent; an unusable input comes
// back as "_".
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "/", "_")
	name = filenameDisallowed.ReplaceAllString(name, "")
	for strings.Contains(name, "..") {
		name = strings.ReplaceAll(name, "..", "_")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = "_"
	}
	return name
}

// UniqueFilePath returns a path in dir for filename that does not exist
// at call time, appending _1, _2, ... before the extension on conflict
// (photo.png -> photo_1.png). The existence check and the later write
// are not atomic; concurrent uploads of the same name may race. That is
// accepted as best-effort rather than papered over with a global lock.
func UniqueFilePath(dir, filename string) (string, error) {
	p := filepath.Join(dir, filename)
	if _, err := os.Stat(p); err != nil {
		if os.IsNotExist(err) {
			return p, nil
		}
		return "", err
	}
	ext := filepath.Ext(filename)
	stem := strings.TrimSuffix(filename, ext)
	for i := 1; ; i++ {
		cand := filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, i, ext))
		if _, err := os.Stat(cand); err != nil {
			if os.IsNotExist(err) {
				return cand, nil
			}
			return "", err
		}
	}
}
