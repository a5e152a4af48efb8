package tablestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/mx-space/console/internal/models"
	"github.com/mx-space/console/internal/pkg/record"
	"gorm.io/gorm"
)

// GormStore keeps rows of every collection in the shared table_rows table.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) ListRows(ctx context.Context, collection string, q ListQuery) (RowPage, error) {
	base := s.db.WithContext(ctx).Model(&models.RowModel{}).Where("collection = ?", collection)

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return RowPage{}, err
	}

	limit := normalizeLimit(q.Limit)
	query := base.Session(&gorm.Session{}).Order("row_id ASC").Limit(limit + 1)
	if q.Cursor != "" {
		query = query.Where("row_id > ?", q.Cursor)
	}
	var items []models.RowModel
	if err := query.Find(&items).Error; err != nil {
		return RowPage{}, err
	}

	page := RowPage{Rows: make([]Row, 0, len(items)), Total: total}
	if len(items) > limit {
		items = items[:limit]
		page.NextCursor = items[len(items)-1].RowID
	}
	for _, item := range items {
		row, err := rowFromModel(item)
		if err != nil {
			return RowPage{}, fmt.Errorf("decode row %s/%s: %w", collection, item.RowID, err)
		}
		page.Rows = append(page.Rows, row)
	}
	return page, nil
}

func (s *GormStore) GetRow(ctx context.Context, collection, id string) (Row, error) {
	var item models.RowModel
	err := s.db.WithContext(ctx).
		Where("collection = ? AND row_id = ?", collection, id).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Row{}, ErrNotFound
	}
	if err != nil {
		return Row{}, err
	}
	return rowFromModel(item)
}

func (s *GormStore) CreateRow(ctx context.Context, collection, id string, data record.Record) (Row, error) {
	if err := validateKey(collection, id); err != nil {
		return Row{}, err
	}
	if data == nil {
		data = record.Record{}
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return Row{}, fmt.Errorf("encode row payload: %w", err)
	}
	now := time.Now().UTC()
	item := models.RowModel{
		Collection: collection,
		RowID:      id,
		Data:       string(payload),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.db.WithContext(ctx).Create(&item).Error; err != nil {
		if isDuplicateKeyError(err) {
			return Row{}, ErrDuplicate
		}
		return Row{}, err
	}
	return Row{ID: id, Collection: collection, Data: data.Clone(), CreatedAt: now, UpdatedAt: now}, nil
}

func (s *GormStore) DeleteRow(ctx context.Context, collection, id string) error {
	result := s.db.WithContext(ctx).
		Where("collection = ? AND row_id = ?", collection, id).
		Delete(&models.RowModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func rowFromModel(item models.RowModel) (Row, error) {
	data := record.Record{}
	if strings.TrimSpace(item.Data) != "" {
		parsed, err := record.ParseJSON([]byte(item.Data))
		if err != nil {
			return Row{}, err
		}
		data = parsed
	}
	return Row{
		ID:         item.RowID,
		Collection: item.Collection,
		Data:       data,
		CreatedAt:  item.CreatedAt,
		UpdatedAt:  item.UpdatedAt,
	}, nil
}

func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate entry") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique constraint")
}
