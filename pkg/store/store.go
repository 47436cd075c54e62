package store

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/shirou/gopsutil/v4/disk"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"cdnbox/internal/models"
)

// Store mediates all filesystem access under a single root directory.
// It keeps no metadata of its own; the directory tree is the data model
// and every call re-reads it.
type Store struct {
	root   string
	logger *logrus.Logger
	tracer trace.Tracer
}

// New creates a Store rooted at root, creating the directory if absent.
func New(root string, logger *logrus.Logger) (*Store, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &Store{
		root:   abs,
		logger: logger,
		tracer: otel.Tracer("cdnbox/store"),
	}, nil
}

// Root returns the absolute storage root.
func (s *Store) Root() string {
	return s.root
}

// List returns the items directly inside folder (relative to root),
// directories sorted before files and locale-aware alphabetical within
// each group. Dotfiles are excluded.
func (s *Store) List(ctx context.Context, folder string) ([]models.StoredItem, error) {
	_, span := s.tracer.Start(ctx, "store_list")
	defer span.End()
	span.SetAttributes(attribute.String("folder", folder))

	abs, err := resolveWithin(s.root, folder)
	if err != nil {
		return nil, err
	}
	fi, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !fi.IsDir() {
		return nil, ErrNotDirectory
	}

	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, err
	}

	var dirs, files []models.StoredItem
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if e.IsDir() {
			dirs = append(dirs, models.StoredItem{Name: name, IsDirectory: true})
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		size := info.Size()
		files = append(files, models.StoredItem{Name: name, Size: &size})
	}

	coll := collate.New(language.Und, collate.IgnoreCase)
	sort.SliceStable(dirs, func(i, j int) bool {
		return coll.CompareString(dirs[i].Name, dirs[j].Name) < 0
	})
	sort.SliceStable(files, func(i, j int) bool {
		return coll.CompareString(files[i].Name, files[j].Name) < 0
	})

	items := make([]models.StoredItem, 0, len(dirs)+len(files))
	items = append(items, dirs...)
	items = append(items, files...)
	return items, nil
}

// Folders walks the whole tree depth-first and returns every folder
// path relative to root (forward slashes), root itself included as "".
// Dot-folders are pruned.
func (s *Store) Folders(ctx context.Context) ([]string, error) {
	_, span := s.tracer.Start(ctx, "store_folders")
	defer span.End()

	var folders []string
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != s.root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		if rel == "." {
			rel = ""
		}
		folders = append(folders, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return folders, nil
}

// SaveUpload stores content under destination (a relative folder,
// created if absent) using a sanitized, collision-resolved filename.
// The returned result carries the final name and the slash-normalized
// relative path; the caller fills in the public URL.
func (s *Store) SaveUpload(ctx context.Context, destination, filename string, content []byte) (*models.UploadResult, error) {
	_, span := s.tracer.Start(ctx, "store_save_upload")
	defer span.End()
	span.SetAttributes(
		attribute.String("destination", destination),
		attribute.Int("size", len(content)),
	)

	dir, err := resolveWithin(s.root, destination)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create destination: %w", err)
	}

	name := SanitizeFilename(filename)
	target, err := UniqueFilePath(dir, name)
	if err != nil {
		return nil, err
	}
	if !IsPathSafe(target, s.root) {
		return nil, ErrUnsafePath
	}
	if err := os.WriteFile(target, content, 0644); err != nil {
		return nil, fmt.Errorf("write upload: %w", err)
	}

	rel, err := filepath.Rel(s.root, target)
	if err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{
		"path": filepath.ToSlash(rel),
		"size": len(content),
	}).Info("Stored upload")

	return &models.UploadResult{
		Filename: filepath.Base(target),
		Size:     int64(len(content)),
		Path:     filepath.ToSlash(rel),
	}, nil
}

// FilePath resolves a public download path. It returns ErrNotFound for
// a disallowed extension, an unsafe path, a missing file, or anything
// that is not a regular file, so the caller cannot distinguish the
// cases and neither can the client.
func (s *Store) FilePath(rel string) (string, error) {
	if !ExtensionAllowed(rel) {
		return "", ErrNotFound
	}
	abs, err := resolveWithin(s.root, rel)
	if err != nil {
		return "", ErrNotFound
	}
	fi, err := os.Stat(abs)
	if err != nil || !fi.Mode().IsRegular() {
		return "", ErrNotFound
	}
	return abs, nil
}

// Stats returns disk usage of the volume holding the storage root.
func (s *Store) Stats() (models.StorageStats, error) {
	usage, err := disk.Usage(s.root)
	if err != nil {
		return models.StorageStats{}, err
	}
	return models.StorageStats{
		TotalBytes:  usage.Total,
		UsedBytes:   usage.Used,
		FreeBytes:   usage.Free,
		UsedPercent: usage.UsedPercent,
	}, nil
}
