package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sort"

	"github.com/File-Sharing-BondBridg/Publication-Images/internal/api/handlers/util"
	"github.com/File-Sharing-BondBridg/Publication-Images/internal/models"
	"github.com/File-Sharing-BondBridg/Publication-Images/internal/services"
	"github.com/File-Sharing-BondBridg/Publication-Images/internal/storage"
	"github.com/File-Sharing-BondBridg/Publication-Images/internal/uploader"
	"github.com/File-Sharing-BondBridg/Publication-Images/uploads/previews"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxFileSize = 200 << 20 // 200 MB

// UploadResult is the per-file result object returned to the client.
type UploadResult struct {
	Success bool               `json:"success"`
	Name    string             `json:"name,omitempty"`
	File    *models.FileRecord `json:"file,omitempty"`
	Error   string             `json:"error,omitempty"`
}

type FileHandler struct {
	files   *storage.Registry
	uploads *uploader.Service
	scanner util.Scanner
	logger  *zap.Logger
}

func NewFileHandler(files *storage.Registry, uploads *uploader.Service, scanner util.Scanner, logger *zap.Logger) *FileHandler {
	if scanner == nil {
		scanner = util.NopScanner{}
	}
	return &FileHandler{files: files, uploads: uploads, scanner: scanner, logger: logger}
}

// SelectFiles accepts one or more images and registers them as pending.
func (h *FileHandler) SelectFiles(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to parse multipart form: " + err.Error()})
		return
	}

	files := form.File["files"]
	if len(files) == 0 {
		files = form.File["file"]
	}
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no files provided"})
		return
	}

	for _, fh := range files {
		if fh.Size > maxFileSize {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file too large: " + fh.Filename})
			return
		}
	}

	results := make([]UploadResult, 0, len(files))
	for _, fh := range files {
		rec, err := h.selectOne(c, fh)
		if err != nil {
			h.logger.Warn("[UPLOAD] file rejected", zap.String("name", fh.Filename), zap.Error(err))
			results = append(results, UploadResult{Name: fh.Filename, Error: err.Error()})
			continue
		}
		results = append(results, UploadResult{Success: true, Name: fh.Filename, File: &rec})
	}

	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (h *FileHandler) selectOne(c *gin.Context, fh *multipart.FileHeader) (models.FileRecord, error) {
	f, err := fh.Open()
	if err != nil {
		return models.FileRecord{}, fmt.Errorf("failed to open %s: %w", fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return models.FileRecord{}, fmt.Errorf("failed to read %s: %w", fh.Filename, err)
	}

	if err := h.scanner.Scan(c.Request.Context(), fh.Filename, bytes.NewReader(data)); err != nil {
		return models.FileRecord{}, err
	}

	id, err := h.uploads.Select(c.Request.Context(), models.BytesSource{FileName: fh.Filename, Data: data})
	if err != nil {
		return models.FileRecord{}, err
	}
	rec, _ := h.files.Get(id)
	return rec, nil
}

func (h *FileHandler) ListFiles(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"files":       sorted(h.files.List()),
		"count":       h.files.Count(),
		"has_pending": h.files.HasPending(),
	})
}

func (h *FileHandler) GetFile(c *gin.Context) {
	rec, exists := h.files.Get(c.Param("id"))
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *FileHandler) GetThumbnail(c *gin.Context) {
	size := models.ThumbnailSize(c.Param("size"))
	if !size.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown thumbnail size: " + string(size)})
		return
	}

	thumb, err := h.uploads.Thumbnail(c.Request.Context(), c.Param("id"), size)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, thumb)
}

func (h *FileHandler) DeleteFile(c *gin.Context) {
	if err := h.uploads.Remove(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *FileHandler) UploadFile(c *gin.Context) {
	id := c.Param("id")
	if err := h.uploads.UploadOne(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	rec, exists := h.files.Get(id)
	if !exists {
		// Removed while uploading.
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *FileHandler) ListQueue(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"files": sorted(h.files.Pending())})
}

func (h *FileHandler) ClearQueue(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"removed": h.uploads.ClearPending()})
}

// UploadQueue uploads every pending file and reports each outcome.
func (h *FileHandler) UploadQueue(c *gin.Context) {
	outcomes := h.uploads.UploadPending(c.Request.Context())

	results := make([]UploadResult, 0, len(outcomes))
	for id, err := range outcomes {
		res := UploadResult{Success: err == nil}
		if err != nil {
			res.Error = err.Error()
		}
		if rec, exists := h.files.Get(id); exists {
			res.Name = rec.Name
			res.File = &rec
		}
		results = append(results, res)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })

	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (h *FileHandler) fail(c *gin.Context, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("[API] request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// StatusFor maps service errors onto HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, previews.ErrDecode):
		return http.StatusUnprocessableEntity
	case errors.Is(err, uploader.ErrInProgress):
		return http.StatusConflict
	case errors.Is(err, uploader.ErrRemoteWrite), errors.Is(err, uploader.ErrKeyMismatch):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func sorted(files map[string]models.FileRecord) []models.FileRecord {
	list := make([]models.FileRecord, 0, len(files))
	for _, rec := range files {
		list = append(list, rec)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Name != list[j].Name {
			return list[i].Name < list[j].Name
		}
		return list[i].ID < list[j].ID
	})
	return list
}
