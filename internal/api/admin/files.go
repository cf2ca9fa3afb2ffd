// files.go serves stored evidence files to administrators. Evidence is only
// reachable through the authenticated admin API; there is no public file URL.
package admin

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sindikatncr/membership-backend/internal/storage"
)

// FileHandlers streams evidence files out of the storage backend.
type FileHandlers struct {
	store storage.Storage
}

// NewFileHandlers creates a FileHandlers instance.
func NewFileHandlers(store storage.Storage) *FileHandlers {
	return &FileHandlers{store: store}
}

// Serve streams one stored file.
// GET /api/v1/files/*filepath
func (h *FileHandlers) Serve(c *gin.Context) {
	path := strings.TrimPrefix(c.Param("filepath"), "/")
	if path == "" || strings.Contains(path, "..") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid file path"})
		return
	}

	meta, err := h.store.GetMetadata(c.Request.Context(), path)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
		return
	}

	reader, err := h.store.Download(c.Request.Context(), path)
	if err != nil {
		slog.Error("failed to open stored file", "path", path, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read file"})
		return
	}
	defer reader.Close()

	c.DataFromReader(http.StatusOK, meta.Size, contentTypeFor(path), reader, nil)
}

func contentTypeFor(path string) string {
	switch {
	case strings.HasSuffix(path, ".jpg"), strings.HasSuffix(path, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(path, ".png"):
		return "image/png"
	case strings.HasSuffix(path, ".pdf"):
		return "application/pdf"
	}
	return "application/octet-stream"
}
