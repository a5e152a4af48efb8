package backup

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mx-space/console/internal/middleware"
	"github.com/mx-space/console/internal/pkg/response"
	"go.uber.org/zap"
)

// EventChannel is the pub/sub channel backup events are published on.
const EventChannel = "mx-console:backup-events"

// Publisher broadcasts backup events. The internal/pkg/redis client satisfies it.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) error
}

// Handler is the HTTP handler for backup operations.
type Handler struct {
	svc       *Service
	publisher Publisher
	logger    *zap.Logger
}

// HandlerOption configures a backup Handler.
type HandlerOption func(*Handler)

// WithLogger sets the logger for the backup handler.
func WithLogger(l *zap.Logger) HandlerOption {
	return func(h *Handler) {
		if l != nil {
			h.logger = l.Named("BackupService")
		}
	}
}

// WithPublisher broadcasts create, delete and restore events.
func WithPublisher(p Publisher) HandlerOption {
	return func(h *Handler) {
		h.publisher = p
	}
}

func NewHandler(svc *Service, opts ...HandlerOption) *Handler {
	h := &Handler{svc: svc, logger: zap.NewNop()}
	for _, o := range opts {
		o(h)
	}
	return h
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/backups", authMW)

	g.GET("/history", h.history)
	g.POST("", h.create)
	g.DELETE("/:id", h.delete)
	g.POST("/:id/restore", h.restore)
	g.POST("/:id/upload-to-s3", h.uploadToS3)
}

// GET /backups/history
func (h *Handler) history(c *gin.Context) {
	items, err := h.svc.Catalog.History(c.Request.Context())
	if err != nil {
		h.logger.Warn("list backup history failed", zap.Error(err))
		response.InternalError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

type createBody struct {
	Collections []string `json:"collections"`
	Formats     []string `json:"formats"`
}

// POST /backups
func (h *Handler) create(c *gin.Context) {
	var body createBody
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(c, err.Error())
		return
	}
	formats, err := ParseFormats(body.Formats)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	manifest, err := h.svc.CreateBackup(c.Request.Context(), WriteOptions{
		Type:        TypeManual,
		Collections: body.Collections,
		Formats:     formats,
	}, middleware.CurrentUserID(c), c.ClientIP())
	if err != nil {
		switch {
		case errors.Is(err, ErrBackupInProgress):
			response.Conflict(c, err.Error())
		case errors.Is(err, ErrNothingToBackup):
			response.BadRequest(c, err.Error())
		default:
			h.logger.Warn("backup failed", zap.Error(err))
			response.InternalError(c, err)
		}
		return
	}

	id := BackupID(TokenFromTimestamp(manifest.Timestamp))
	h.publish(c, "created", id)
	response.Created(c, h.svc.Catalog.summarize(id, manifest))
}

// DELETE /backups/:id
func (h *Handler) delete(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		response.BadRequest(c, "Backup ID is required")
		return
	}
	result, err := h.svc.DeleteBackup(c.Request.Context(), id, middleware.CurrentUserID(c), c.ClientIP())
	if err != nil {
		h.writeLookupError(c, err)
		return
	}
	h.publish(c, "deleted", result.BackupID)
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"message":      "Backup deleted successfully",
		"filesDeleted": result.FilesDeleted,
	})
}

// POST /backups/:id/restore
func (h *Handler) restore(c *gin.Context) {
	var req RestoreRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(c, err.Error())
		return
	}
	req.BackupID = strings.TrimSpace(c.Param("id"))
	req.Actor = middleware.CurrentUserID(c)
	req.IP = c.ClientIP()

	result, err := h.svc.Engine.Restore(c.Request.Context(), req)
	if err != nil {
		h.writeLookupError(c, err)
		return
	}
	h.publish(c, "restored", result.BackupID)
	c.JSON(http.StatusOK, gin.H{"success": true, "data": result})
}

// POST /backups/:id/upload-to-s3
func (h *Handler) uploadToS3(c *gin.Context) {
	keys, err := h.svc.UploadOffsite(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrOffsiteUnavailable) {
			response.BadRequest(c, err.Error())
			return
		}
		h.writeLookupError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "uploaded": keys})
}

func (h *Handler) writeLookupError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrBackupNotFound):
		response.NotFoundMsg(c, "Backup not found")
	case errors.Is(err, ErrInvalidBackupID), errors.Is(err, ErrUnsupportedFormat):
		response.BadRequest(c, err.Error())
	default:
		h.logger.Warn("backup request failed", zap.String("path", c.FullPath()), zap.Error(err))
		response.InternalError(c, err)
	}
}

func (h *Handler) publish(c *gin.Context, event, backupID string) {
	if h.publisher == nil {
		return
	}
	msg, _ := json.Marshal(map[string]string{"event": event, "backupId": backupID})
	if err := h.publisher.Publish(c.Request.Context(), EventChannel, string(msg)); err != nil {
		h.logger.Debug("publish backup event failed", zap.Error(err))
	}
}
