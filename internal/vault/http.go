package vault

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/abduss/cryptovault/internal/auth"
	"github.com/abduss/cryptovault/internal/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const streamChunkSize = 64 * 1024

// Out-of-band metadata headers sent with every download.
const (
	HeaderFileName = "X-File-Name"
	HeaderFileIV   = "X-File-IV"
	HeaderFileAlgo = "X-File-Algo"
	HeaderFileSize = "X-File-Size"
)

// RegisterRoutes mounts file operations under the provided router group.
func RegisterRoutes(group *gin.RouterGroup, service *Service) {
	handler := &httpHandler{service: service}
	group.POST("/files", handler.uploadFile)
	group.GET("/files", handler.listFiles)
	group.GET("/files/:fileID", handler.fileInfo)
	group.GET("/files/:fileID/download", handler.downloadFile)
	group.DELETE("/files/:fileID", handler.deleteFile)
	group.GET("/quota", handler.quota)
}

type httpHandler struct {
	service *Service
}

// envelope is the optional JSON "metadata" form field.
type envelope struct {
	OriginalFilename string `json:"originalFilename"`
	IVBase64         string `json:"ivBase64"`
	Algo             string `json:"algo"`
}

func requirePrincipal(c *gin.Context) (Principal, bool) {
	id, user, ok := auth.RequireUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return Principal{}, false
	}
	return Principal{ID: id, Tenant: user.Username}, true
}

func parseFileID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("fileID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid file id"})
		return uuid.Nil, false
	}
	return id, true
}

func (h *httpHandler) uploadFile(c *gin.Context) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file field is required"})
		return
	}

	meta := envelope{
		OriginalFilename: c.PostForm("originalFilename"),
		IVBase64:         c.PostForm("ivBase64"),
		Algo:             c.PostForm("algo"),
	}
	if raw := c.PostForm("metadata"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &meta); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON in metadata"})
			return
		}
	}
	if strings.TrimSpace(meta.OriginalFilename) == "" {
		meta.OriginalFilename = fileHeader.Filename
	}

	body, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable file payload"})
		return
	}
	defer body.Close()

	uploaded, err := h.service.Upload(c.Request.Context(), principal, UploadRequest{
		OriginalFilename: meta.OriginalFilename,
		IV:               meta.IVBase64,
		Algorithm:        meta.Algo,
		ContentType:      detectContentType(fileHeader),
		DeclaredSize:     fileHeader.Size,
		Body:             body,
	})
	if err != nil {
		writeError(c, err, "failed to upload file")
		return
	}

	c.JSON(http.StatusCreated, uploaded)
}

func (h *httpHandler) listFiles(c *gin.Context) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return
	}

	entries, err := h.service.List(c.Request.Context(), principal)
	if err != nil {
		writeError(c, err, "failed to list files")
		return
	}

	c.JSON(http.StatusOK, gin.H{"files": entries, "count": len(entries)})
}

func (h *httpHandler) fileInfo(c *gin.Context) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return
	}
	fileID, ok := parseFileID(c)
	if !ok {
		return
	}

	info, err := h.service.Info(c.Request.Context(), principal, fileID)
	if err != nil {
		writeError(c, err, "failed to get file info")
		return
	}
	c.JSON(http.StatusOK, info)
}

func (h *httpHandler) downloadFile(c *gin.Context) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return
	}
	fileID, ok := parseFileID(c)
	if !ok {
		return
	}

	dl, err := h.service.Download(c.Request.Context(), principal, fileID)
	if err != nil {
		writeError(c, err, "failed to download file")
		return
	}
	defer dl.Body.Close()

	c.Header(HeaderFileName, dl.File.OriginalFilename)
	c.Header(HeaderFileIV, dl.File.IV)
	c.Header(HeaderFileAlgo, dl.File.Algorithm)
	c.Header(HeaderFileSize, strconv.FormatInt(dl.Size, 10))
	c.Header("Content-Type", "application/octet-stream")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", dl.File.OriginalFilename))
	c.Header("Content-Length", strconv.FormatInt(dl.Size, 10))
	c.Status(http.StatusOK)

	buf := make([]byte, streamChunkSize)
	if _, err := io.CopyBuffer(c.Writer, dl.Body, buf); err != nil {
		// Headers are already on the wire.
		logger.For(c).Warn("stream ciphertext", zap.String("file_id", fileID.String()), zap.Error(err))
	}
}

func (h *httpHandler) deleteFile(c *gin.Context) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return
	}
	fileID, ok := parseFileID(c)
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), principal, fileID); err != nil {
		writeError(c, err, "failed to delete file")
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *httpHandler) quota(c *gin.Context) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return
	}

	report, err := h.service.Quota(c.Request.Context(), principal)
	if err != nil {
		writeError(c, err, "failed to get quota")
		return
	}
	c.JSON(http.StatusOK, report)
}

func writeError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, ErrQuotaExceeded):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "quota_exceeded", "message": err.Error()})
	case errors.Is(err, ErrDownloadNotPermitted):
		c.JSON(http.StatusForbidden, gin.H{"error": "view-only access: download not permitted"})
	case errors.Is(err, ErrAccessDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": "file not found or access denied"})
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
	case errors.Is(err, ErrDataInconsistency):
		logger.For(c).Error(fallback, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "data_inconsistency", "message": "stored file data is inconsistent; the incident has been logged"})
	case errors.Is(err, ErrStorageIO):
		logger.For(c).Error(fallback, zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage temporarily unavailable, retry later"})
	default:
		logger.For(c).Error(fallback, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}

func detectContentType(fileHeader *multipart.FileHeader) string {
	if fileHeader == nil {
		return "application/octet-stream"
	}
	if contentType := fileHeader.Header.Get("Content-Type"); contentType != "" {
		return contentType
	}
	return "application/octet-stream"
}
