package server

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"cdnbox/pkg/store"
	"cdnbox/pkg/telemetry"
)

// handleList returns the items directly inside the requested folder.
func (s *Server) handleList(c *gin.Context) {
	items, err := s.store.List(c.Request.Context(), c.Query("folder"))
	if err != nil {
		switch {
		case errors.Is(err, store.ErrUnsafePath):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid folder"})
		case errors.Is(err, store.ErrNotFound):
			notFound(c)
		case errors.Is(err, store.ErrNotDirectory):
			c.JSON(http.StatusBadRequest, gin.H{"error": "not a directory"})
		default:
			s.internalError(c, err)
		}
		return
	}
	c.JSON(http.StatusOK, items)
}

// handleFolders returns every folder path under the root, recursively.
func (s *Server) handleFolders(c *gin.Context) {
	folders, err := s.store.Folders(c.Request.Context())
	if err != nil {
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, folders)
}

// handleUpload stores a multipart upload. The whole file is buffered in
// memory, bounded by the configured max upload size.
func (s *Server) handleUpload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.config.MaxUploadBytes())

	header, err := c.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file field"})
		return
	}

	destination := c.PostForm("destination")
	if destination == "__new__" {
		destination = store.SanitizeFilename(c.PostForm("new_folder"))
	}

	f, err := header.Open()
	if err != nil {
		s.internalError(c, err)
		return
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
			return
		}
		s.internalError(c, err)
		return
	}

	result, err := s.store.SaveUpload(c.Request.Context(), destination, header.Filename, content)
	if err != nil {
		if errors.Is(err, store.ErrUnsafePath) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid destination"})
			return
		}
		s.internalError(c, err)
		return
	}
	result.URL = strings.TrimSuffix(s.config.Server.BaseURL, "/") + "/cdn/" + result.Path

	if s.config.Telemetry.Enabled {
		telemetry.ReportJSON(c.Request.Context(), s.logger, "file_upload", map[string]interface{}{
			"path": result.Path,
			"size": result.Size,
		})
	}

	c.JSON(http.StatusOK, result)
}

// handleServeFile serves raw file bytes for allow-listed extensions.
// Everything else is the same 404.
func (s *Server) handleServeFile(c *gin.Context) {
	rel := strings.TrimPrefix(c.Param("filepath"), "/")
	if rel == "" {
		notFound(c)
		return
	}
	abs, err := s.store.FilePath(rel)
	if err != nil {
		notFound(c)
		return
	}
	c.File(abs)
}
