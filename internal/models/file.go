package models

// StoredItem is a file or directory directly inside a listed folder.
// Size is nil for directories.
type StoredItem struct {
	Name        string `json:"name"`
	IsDirectory bool   `json:"isDirectory"`
	Size        *int64 `json:"size"`
}

// UploadResult describes a stored upload. Path is relative to the
// storage root and forward-slash normalized; URL is the public
// download location.
type UploadResult struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	Path     string `json:"path"`
	URL      string `json:"url"`
}
