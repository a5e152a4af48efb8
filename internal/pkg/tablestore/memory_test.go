package tablestore

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/mx-space/console/internal/pkg/record"
)

func TestMemoryStoreCRUD(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	row, err := s.CreateRow(ctx, "posts", "p1", record.Record{"title": record.String("hello")})
	if err != nil {
		t.Fatalf("CreateRow: %v", err)
	}
	if row.CreatedAt.IsZero() || row.UpdatedAt.IsZero() {
		t.Fatal("store must assign timestamps")
	}
	if _, err := s.CreateRow(ctx, "posts", "p1", record.Record{}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("duplicate create err = %v, want ErrDuplicate", err)
	}

	got, err := s.GetRow(ctx, "posts", "p1")
	if err != nil {
		t.Fatalf("GetRow: %v", err)
	}
	if title, _ := got.Data["title"].Str(); title != "hello" {
		t.Fatalf("title = %q", title)
	}

	if err := s.DeleteRow(ctx, "posts", "p1"); err != nil {
		t.Fatalf("DeleteRow: %v", err)
	}
	if _, err := s.GetRow(ctx, "posts", "p1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetRow after delete err = %v, want ErrNotFound", err)
	}
	if err := s.DeleteRow(ctx, "posts", "p1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreRejectsEmptyID(t *testing.T) {
	if _, err := NewMemoryStore().CreateRow(context.Background(), "posts", " ", record.Record{}); err == nil {
		t.Fatal("expected error for empty id")
	}
}

func TestMemoryStoreIsolatesCallerData(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	data := record.Record{"n": record.Number(1)}
	if _, err := s.CreateRow(ctx, "c", "a", data); err != nil {
		t.Fatal(err)
	}
	data["n"] = record.Number(2)
	got, _ := s.GetRow(ctx, "c", "a")
	if n, _ := got.Data["n"].Number(); n != 1 {
		t.Fatalf("stored row mutated through caller map: n=%v", n)
	}
}

func TestListAllPagesThroughCollection(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	for i := 0; i < 250; i++ {
		if _, err := s.CreateRow(ctx, "logs", fmt.Sprintf("row-%04d", i), record.Record{}); err != nil {
			t.Fatal(err)
		}
	}

	page, err := s.ListRows(ctx, "logs", ListQuery{Limit: 100})
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Rows) != 100 || page.Total != 250 || page.NextCursor != "row-0099" {
		t.Fatalf("first page: rows=%d total=%d next=%q", len(page.Rows), page.Total, page.NextCursor)
	}

	rows, err := ListAll(ctx, s, "logs")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 250 {
		t.Fatalf("ListAll returned %d rows, want 250", len(rows))
	}
	seen := map[string]bool{}
	for _, r := range rows {
		if seen[r.ID] {
			t.Fatalf("row %s listed twice", r.ID)
		}
		seen[r.ID] = true
	}
}

func TestListAllEmptyCollection(t *testing.T) {
	rows, err := ListAll(context.Background(), NewMemoryStore(), "missing")
	if err != nil {
		t.Fatal(err)
	}
	if rows == nil || len(rows) != 0 {
		t.Fatalf("rows = %#v, want empty slice", rows)
	}
}

func TestNewIDUnique(t *testing.T) {
	a, b := NewID(), NewID()
	if a == b || len(a) != 32 {
		t.Fatalf("NewID() = %q, %q", a, b)
	}
}
