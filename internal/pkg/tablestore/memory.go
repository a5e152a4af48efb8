package tablestore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mx-space/console/internal/pkg/record"
)

// MemoryStore keeps rows in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	tables map[string]map[string]Row
	now    func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tables: make(map[string]map[string]Row),
		now:    time.Now,
	}
}

func (s *MemoryStore) ListRows(ctx context.Context, collection string, q ListQuery) (RowPage, error) {
	if err := ctx.Err(); err != nil {
		return RowPage{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	table := s.tables[collection]
	ids := make([]string, 0, len(table))
	for id := range table {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	limit := normalizeLimit(q.Limit)
	page := RowPage{Rows: []Row{}, Total: int64(len(ids))}
	for _, id := range ids {
		if q.Cursor != "" && id <= q.Cursor {
			continue
		}
		if len(page.Rows) == limit {
			page.NextCursor = page.Rows[len(page.Rows)-1].ID
			break
		}
		page.Rows = append(page.Rows, copyRow(table[id]))
	}
	return page, nil
}

func (s *MemoryStore) GetRow(ctx context.Context, collection, id string) (Row, error) {
	if err := ctx.Err(); err != nil {
		return Row{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.tables[collection][id]
	if !ok {
		return Row{}, ErrNotFound
	}
	return copyRow(row), nil
}

func (s *MemoryStore) CreateRow(ctx context.Context, collection, id string, data record.Record) (Row, error) {
	if err := ctx.Err(); err != nil {
		return Row{}, err
	}
	if err := validateKey(collection, id); err != nil {
		return Row{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	table, ok := s.tables[collection]
	if !ok {
		table = make(map[string]Row)
		s.tables[collection] = table
	}
	if _, exists := table[id]; exists {
		return Row{}, ErrDuplicate
	}
	now := s.now().UTC()
	row := Row{ID: id, Collection: collection, Data: data.Clone(), CreatedAt: now, UpdatedAt: now}
	table[id] = row
	return copyRow(row), nil
}

func (s *MemoryStore) DeleteRow(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	table := s.tables[collection]
	if _, ok := table[id]; !ok {
		return ErrNotFound
	}
	delete(table, id)
	return nil
}

// Count returns the number of rows in a collection.
func (s *MemoryStore) Count(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tables[collection])
}

func copyRow(row Row) Row {
	row.Data = row.Data.Clone()
	return row
}
