package tablestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mx-space/console/internal/pkg/record"
)

var (
	ErrNotFound  = errors.New("row not found")
	ErrDuplicate = errors.New("row already exists")
)

const (
	DefaultListLimit = 100
	MaxListLimit     = 5000
)

// Row is one stored table row.
type Row struct {
	ID         string        `json:"$id"`
	Collection string        `json:"$collectionId"`
	Data       record.Record `json:"data"`
	CreatedAt  time.Time     `json:"$createdAt"`
	UpdatedAt  time.Time     `json:"$updatedAt"`
}

// ListQuery selects one page of rows in ascending id order.
type ListQuery struct {
	Limit  int
	Cursor string // exclusive lower bound on row id
}

// RowPage is a page of rows. NextCursor is opaque to callers and only
// meaningful to the store that produced it.
type RowPage struct {
	Rows       []Row
	Total      int64
	NextCursor string
}

// Store is the row-oriented table store backing the admin console.
type Store interface {
	ListRows(ctx context.Context, collection string, q ListQuery) (RowPage, error)
	GetRow(ctx context.Context, collection, id string) (Row, error)
	CreateRow(ctx context.Context, collection, id string, data record.Record) (Row, error)
	DeleteRow(ctx context.Context, collection, id string) error
}

// NewID returns a fresh unique row id.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// ListAll pages through every row of a collection.
func ListAll(ctx context.Context, s Store, collection string) ([]Row, error) {
	var rows []Row
	cursor := ""
	for {
		page, err := s.ListRows(ctx, collection, ListQuery{Limit: MaxListLimit, Cursor: cursor})
		if err != nil {
			return nil, err
		}
		rows = append(rows, page.Rows...)
		if page.NextCursor == "" || len(page.Rows) == 0 {
			break
		}
		cursor = page.NextCursor
	}
	if rows == nil {
		rows = []Row{}
	}
	return rows, nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}

func validateKey(collection, id string) error {
	if strings.TrimSpace(collection) == "" {
		return errors.New("collection is required")
	}
	if strings.TrimSpace(id) == "" {
		return errors.New("row id is required")
	}
	return nil
}
