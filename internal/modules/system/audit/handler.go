package audit

import (
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mx-space/console/internal/pkg/pagination"
	"github.com/mx-space/console/internal/pkg/response"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	rg.GET("/audit-logs", authMW, h.list)
}

// GET /audit-logs?action=&actor=&status=&since=&until=&page=&size=
func (h *Handler) list(c *gin.Context) {
	filter, err := filterFromQuery(c)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	items, meta, err := h.svc.List(c.Request.Context(), filter, pagination.FromContext(c))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Paged(c, items, meta)
}

func filterFromQuery(c *gin.Context) (Filter, error) {
	f := Filter{
		Action: strings.TrimSpace(c.Query("action")),
		Actor:  strings.TrimSpace(c.Query("actor")),
		Status: strings.ToLower(strings.TrimSpace(c.Query("status"))),
	}
	var err error
	if f.Since, err = parseQueryTime(c.Query("since")); err != nil {
		return Filter{}, err
	}
	if f.Until, err = parseQueryTime(c.Query("until")); err != nil {
		return Filter{}, err
	}
	return f, nil
}

// parseQueryTime accepts RFC3339 timestamps or plain dates.
func parseQueryTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q, expected RFC3339 or YYYY-MM-DD", raw)
	}
	return t, nil
}
