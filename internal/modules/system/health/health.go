package health

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mx-space/console/internal/pkg/cron"
	"github.com/mx-space/console/internal/pkg/nativelog"
	"github.com/mx-space/console/internal/pkg/response"
	"gorm.io/gorm"
)

type logItem struct {
	Size     string `json:"size"`
	Filename string `json:"filename"`
	Index    int    `json:"index"`
	Created  int64  `json:"created"`
}

// Handler serves liveness, cron job control and log file access.
type Handler struct {
	db     *gorm.DB
	sched  *cron.Scheduler
	logDir string
	now    func() time.Time
}

// NewHandler builds the handler. db may be nil when MySQL is not in use.
func NewHandler(db *gorm.DB, sched *cron.Scheduler, logDir string) *Handler {
	return &Handler{db: db, sched: sched, logDir: logDir, now: time.Now}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	rg.GET("/health", h.health)

	adminHealth := rg.Group("/health", authMW)
	cronGroup := adminHealth.Group("/cron")
	{
		cronGroup.GET("", func(c *gin.Context) {
			items := h.sched.List()
			byName := make(map[string]cron.ListItem, len(items))
			for _, item := range items {
				byName[item.Name] = item
			}
			response.OK(c, byName)
		})

		cronGroup.POST("/run/:name", func(c *gin.Context) {
			if err := h.sched.Run(c.Request.Context(), c.Param("name")); err != nil {
				response.NotFoundMsg(c, err.Error())
				return
			}
			response.OK(c, gin.H{"message": "job triggered"})
		})

		cronGroup.GET("/task/:name", func(c *gin.Context) {
			result, err := h.sched.GetTask(c.Param("name"))
			if err != nil {
				response.NotFoundMsg(c, err.Error())
				return
			}
			response.OK(c, result)
		})
	}

	logGroup := adminHealth.Group("/log")
	{
		logGroup.GET("/list", h.listLogs)
		logGroup.GET("", h.readLog)
		logGroup.DELETE("", h.deleteLog)
	}
}

// GET /health
func (h *Handler) health(c *gin.Context) {
	if h.db == nil {
		c.JSON(http.StatusOK, gin.H{"ok": 1})
		return
	}
	sqlDB, err := h.db.DB()
	dbOK := err == nil && sqlDB.PingContext(c.Request.Context()) == nil
	if !dbOK {
		c.JSON(http.StatusServiceUnavailable, gin.H{"ok": 0, "database": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": 1, "database": true})
}

// GET /health/log/list
func (h *Handler) listLogs(c *gin.Context) {
	entries, err := os.ReadDir(h.logDir)
	if errors.Is(err, os.ErrNotExist) {
		response.OK(c, []logItem{})
		return
	}
	if err != nil {
		response.InternalError(c, err)
		return
	}

	items := make([]logItem, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".log") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		items = append(items, logItem{
			Size:     formatByteSize(info.Size()),
			Filename: entry.Name(),
			Created:  info.ModTime().UnixMilli(),
		})
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].Created > items[j].Created
	})
	for i := range items {
		items[i].Index = i
	}
	response.OK(c, items)
}

// GET /health/log?filename=
func (h *Handler) readLog(c *gin.Context) {
	path, ok := h.logPath(c)
	if !ok {
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		response.BadRequest(c, "log file not exists")
		return
	}
	c.Data(http.StatusOK, "text/plain; charset=utf-8", data)
}

// DELETE /health/log?filename=
// Today's file is truncated rather than removed since the logger still
// writes to it.
func (h *Handler) deleteLog(c *gin.Context) {
	path, ok := h.logPath(c)
	if !ok {
		return
	}
	if filepath.Base(path) == nativelog.TodayFilename(h.now()) {
		if err := os.WriteFile(path, nil, 0o644); err != nil && !errors.Is(err, os.ErrNotExist) {
			response.InternalError(c, err)
			return
		}
	} else if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		response.InternalError(c, err)
		return
	}
	response.NoContent(c)
}

func (h *Handler) logPath(c *gin.Context) (string, bool) {
	filename := filepath.Base(strings.TrimSpace(c.Query("filename")))
	if filename == "" || filename == "." || filename == ".." || filename == string(filepath.Separator) {
		response.BadRequest(c, "filename is required")
		return "", false
	}
	return filepath.Join(h.logDir, filename), true
}

func formatByteSize(size int64) string {
	switch {
	case size >= 1<<20:
		return fmt.Sprintf("%.2f MB", float64(size)/(1<<20))
	case size >= 1<<10:
		return fmt.Sprintf("%.2f KB", float64(size)/(1<<10))
	default:
		return fmt.Sprintf("%d B", size)
	}
}
