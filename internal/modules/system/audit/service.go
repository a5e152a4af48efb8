package audit

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/mx-space/console/internal/models"
	"github.com/mx-space/console/internal/pkg/pagination"
	"github.com/mx-space/console/internal/pkg/response"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	StatusSuccess = "success"
	StatusPartial = "partial"
	StatusError   = "error"
)

// Entry is one administrative action to be recorded.
type Entry struct {
	Action string
	Actor  string
	Target string
	Status string
	Detail interface{}
	IP     string
}

// Recorder persists audit entries.
type Recorder interface {
	Record(ctx context.Context, entry Entry) error
}

// Nop discards every entry.
type Nop struct{}

func (Nop) Record(context.Context, Entry) error { return nil }

// Filter narrows an audit log listing. Zero fields are ignored.
type Filter struct {
	Action string
	Actor  string
	Status string
	Since  time.Time
	Until  time.Time
}

// Service stores audit entries in the audit_logs table.
type Service struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewService(db *gorm.DB, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: db, logger: logger.Named("AuditService")}
}

func (s *Service) Record(ctx context.Context, entry Entry) error {
	detail := ""
	if entry.Detail != nil {
		data, err := json.Marshal(entry.Detail)
		if err != nil {
			return err
		}
		detail = string(data)
	}
	status := strings.TrimSpace(entry.Status)
	if status == "" {
		status = StatusSuccess
	}
	row := models.AuditLogModel{
		Action: entry.Action,
		Actor:  entry.Actor,
		Target: entry.Target,
		Status: status,
		Detail: detail,
		IP:     entry.IP,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		s.logger.Warn("audit write failed", zap.String("action", entry.Action), zap.Error(err))
		return err
	}
	return nil
}

// List returns matching entries, newest first.
func (s *Service) List(ctx context.Context, f Filter, q pagination.Query) ([]models.AuditLogModel, response.Pagination, error) {
	tx := s.db.WithContext(ctx).Model(&models.AuditLogModel{})
	if f.Action != "" {
		tx = tx.Where("action = ?", f.Action)
	}
	if f.Actor != "" {
		tx = tx.Where("actor = ?", f.Actor)
	}
	if f.Status != "" {
		tx = tx.Where("status = ?", f.Status)
	}
	if !f.Since.IsZero() {
		tx = tx.Where("created_at >= ?", f.Since)
	}
	if !f.Until.IsZero() {
		tx = tx.Where("created_at < ?", f.Until)
	}

	var total int64
	if err := tx.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, response.Pagination{}, err
	}

	items := make([]models.AuditLogModel, 0, q.Size)
	err := tx.Session(&gorm.Session{}).
		Order("created_at DESC").
		Offset((q.Page - 1) * q.Size).
		Limit(q.Size).
		Find(&items).Error
	if err != nil {
		return nil, response.Pagination{}, err
	}
	return items, pagination.Meta(q, total), nil
}
