package app

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mx-space/console/internal/middleware"
	"github.com/mx-space/console/internal/modules/storage/backup"
	"github.com/mx-space/console/internal/modules/system/audit"
	"github.com/mx-space/console/internal/modules/system/health"
	"github.com/mx-space/console/internal/pkg/response"
)

const apiPrefix = "/api"

func (a *App) registerRoutes() {
	r := a.router
	authMW := middleware.Auth()

	r.NoRoute(func(c *gin.Context) {
		response.Error(c, http.StatusNotFound, "Not found")
	})
	r.NoMethod(func(c *gin.Context) {
		response.Error(c, http.StatusMethodNotAllowed, "Method not allowed")
	})

	api := r.Group(apiPrefix)
	api.Use(middleware.RateLimit(a.redis, a.logger))

	health.NewHandler(a.db, a.sched, a.cfg.LogDir()).RegisterRoutes(api, authMW)

	backupOpts := []backup.HandlerOption{backup.WithLogger(a.logger)}
	if a.redis != nil {
		backupOpts = append(backupOpts, backup.WithPublisher(a.redis))
	}
	backup.NewHandler(a.backups, backupOpts...).RegisterRoutes(api, authMW)

	if a.audit != nil {
		audit.NewHandler(a.audit).RegisterRoutes(api, authMW)
	}
}
