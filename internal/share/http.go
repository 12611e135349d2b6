package share

import (
	"errors"
	"net/http"

	"github.com/abduss/cryptovault/internal/auth"
	"github.com/abduss/cryptovault/internal/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RegisterRoutes mounts share operations under the provided router group.
func RegisterRoutes(group *gin.RouterGroup, service *Service) {
	handler := &httpHandler{service: service}
	group.POST("/files/:fileID/shares", handler.grant)
	group.GET("/files/:fileID/shares", handler.listForFile)
	group.DELETE("/files/:fileID/shares/:granteeID", handler.revoke)
	group.POST("/shares", handler.grantMany)
	group.GET("/shares/stats", handler.stats)
	group.GET("/shared", handler.listShared)
}

type httpHandler struct {
	service *Service
}

type grantRequest struct {
	GranteeID  string `json:"grantee_id"`
	Username   string `json:"username"`
	Permission string `json:"permission"`
}

type bulkRequest struct {
	FileIDs    []string `json:"file_ids" binding:"required"`
	Usernames  []string `json:"usernames" binding:"required"`
	Permission string   `json:"permission"`
}

func (h *httpHandler) grant(c *gin.Context) {
	userID, _, ok := auth.RequireUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	fileID, err := uuid.Parse(c.Param("fileID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid file id"})
		return
	}

	var req grantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var (
		g       Grant
		created bool
	)
	switch {
	case req.GranteeID != "":
		granteeID, perr := uuid.Parse(req.GranteeID)
		if perr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid grantee id"})
			return
		}
		g, created, err = h.service.Grant(c.Request.Context(), userID, fileID, granteeID, req.Permission)
	case req.Username != "":
		g, created, err = h.service.GrantByUsername(c.Request.Context(), userID, fileID, req.Username, req.Permission)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "grantee_id or username is required"})
		return
	}
	if err != nil {
		writeError(c, err, "failed to share file")
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"share": g, "created": created})
}

func (h *httpHandler) grantMany(c *gin.Context) {
	userID, _, ok := auth.RequireUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req bulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	fileIDs := make([]uuid.UUID, 0, len(req.FileIDs))
	for _, raw := range req.FileIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid file id " + raw})
			return
		}
		fileIDs = append(fileIDs, id)
	}

	result, err := h.service.GrantMany(c.Request.Context(), userID, fileIDs, req.Usernames, req.Permission)
	if err != nil {
		writeError(c, err, "failed to share files")
		return
	}

	status := http.StatusCreated
	if result.Succeeded() == 0 {
		status = http.StatusBadRequest
	}
	c.JSON(status, gin.H{
		"results": result,
		"summary": gin.H{
			"created": len(result.Created),
			"updated": len(result.Updated),
			"failed":  len(result.Failed),
			"skipped": len(result.Skipped),
		},
	})
}

func (h *httpHandler) listForFile(c *gin.Context) {
	userID, _, ok := auth.RequireUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	fileID, err := uuid.Parse(c.Param("fileID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid file id"})
		return
	}

	recipients, err := h.service.ListForFile(c.Request.Context(), userID, fileID)
	if err != nil {
		writeError(c, err, "failed to list shares")
		return
	}
	c.JSON(http.StatusOK, gin.H{"file_id": fileID, "shares": recipients})
}

func (h *httpHandler) revoke(c *gin.Context) {
	userID, _, ok := auth.RequireUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	fileID, err := uuid.Parse(c.Param("fileID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid file id"})
		return
	}
	granteeID, err := uuid.Parse(c.Param("granteeID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid grantee id"})
		return
	}

	revoked, err := h.service.Revoke(c.Request.Context(), userID, fileID, granteeID)
	if err != nil {
		writeError(c, err, "failed to revoke share")
		return
	}
	c.JSON(http.StatusOK, gin.H{"revoked": true, "share": revoked})
}

func (h *httpHandler) listShared(c *gin.Context) {
	userID, _, ok := auth.RequireUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	shared, err := h.service.ListForGrantee(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err, "failed to list shared files")
		return
	}
	c.JSON(http.StatusOK, gin.H{"files": shared, "count": len(shared)})
}

func (h *httpHandler) stats(c *gin.Context) {
	userID, _, ok := auth.RequireUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	st, err := h.service.Stats(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err, "failed to get sharing stats")
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": st})
}

func writeError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrSelfShare), errors.Is(err, ErrInvalidPermission), errors.Is(err, ErrEmptyBulk):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, ErrFileNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": ErrFileNotFound.Error()})
	case errors.Is(err, ErrShareNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "share not found"})
	case errors.Is(err, ErrGranteeNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
	default:
		logger.For(c).Error(fallback, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}
