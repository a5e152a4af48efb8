package backup

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/mx-space/console/internal/pkg/tablestore"
)

func TestHistoryLimitsAndOrders(t *testing.T) {
	layout := NewLayout(t.TempDir())
	for i := 0; i < 25; i++ {
		stamp := FormatTimestamp(fixedNow.Add(time.Duration(i) * time.Minute))
		writeManifest(t, layout, TokenFromTimestamp(stamp), Manifest{Timestamp: stamp, Type: TypeAuto, TotalRecords: i})
	}
	corrupt := TokenFromTimestamp(FormatTimestamp(fixedNow.Add(30 * time.Minute)))
	if err := os.WriteFile(layout.ManifestPath(BackupID(corrupt)), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	touch(t, layout.LogsDir()+"/notes.txt")

	items, err := NewCatalog(layout, 0, nil).History(context.Background())
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(items) != 20 {
		t.Fatalf("len = %d, want 20", len(items))
	}
	for _, item := range items {
		if item.ID == BackupID(corrupt) {
			t.Fatal("corrupt manifest should be skipped")
		}
	}
	if items[0].RecordCount != 24 || items[19].RecordCount != 5 {
		t.Fatalf("order = first %d last %d", items[0].RecordCount, items[19].RecordCount)
	}
	for i := 1; i < len(items); i++ {
		if items[i-1].ID < items[i].ID {
			t.Fatalf("not descending at %d: %s < %s", i, items[i-1].ID, items[i].ID)
		}
	}
}

func TestHistoryMissingDirectory(t *testing.T) {
	items, err := NewCatalog(NewLayout(t.TempDir()), 0, nil).History(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if items == nil || len(items) != 0 {
		t.Fatalf("items = %#v, want empty slice", items)
	}
}

func TestHistorySummarizesSizesAndMissingFiles(t *testing.T) {
	store := tablestore.NewMemoryStore()
	seedRows(t, store, "posts", "p1", "p2")
	svc, _, _ := newTestService(t, store, "posts")
	m, err := svc.Writer.Create(context.Background(), WriteOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(svc.Layout.Abs(m.Exports[0].Files.Excel)); err != nil {
		t.Fatal(err)
	}

	items, err := svc.Catalog.History(context.Background())
	if err != nil || len(items) != 1 {
		t.Fatalf("items=%v err=%v", items, err)
	}
	s := items[0]
	if s.ID != BackupID(fixedToken) || s.Type != TypeManual || s.RecordCount != 2 {
		t.Fatalf("summary = %+v", s)
	}
	if s.MissingFiles != 1 || s.SizeBytes <= 0 || s.Size == "" {
		t.Fatalf("size accounting = %+v", s)
	}
	if len(s.Collections) != 1 || s.Collections[0] != "posts" {
		t.Fatalf("collections = %v", s.Collections)
	}
}

func TestManifestTypeFallback(t *testing.T) {
	cases := []struct {
		m    Manifest
		want string
	}{
		{Manifest{Type: TypeAuto}, TypeAuto},
		{Manifest{Exports: []Export{{Files: ExportFiles{SQL: "daily/manual-posts-x.sql.gz"}}}}, TypeManual},
		{Manifest{Exports: []Export{{Files: ExportFiles{SQL: "daily/auto-posts-x.sql.gz"}}}}, TypeAuto},
		{Manifest{}, TypeAuto},
	}
	for i, tc := range cases {
		if got := manifestType(&tc.m); got != tc.want {
			t.Errorf("case %d: type = %q, want %q", i, got, tc.want)
		}
	}
}

func TestCatalogManifestNotFound(t *testing.T) {
	c := NewCatalog(NewLayout(t.TempDir()), 0, nil)
	if _, err := c.Manifest(context.Background(), "backup_nope"); !errors.Is(err, ErrBackupNotFound) {
		t.Fatalf("err = %v, want ErrBackupNotFound", err)
	}
	if _, err := c.Manifest(context.Background(), "backup_../../x"); !errors.Is(err, ErrInvalidBackupID) {
		t.Fatalf("err = %v, want ErrInvalidBackupID", err)
	}
}

func TestCatalogManifestAcceptsBareToken(t *testing.T) {
	layout := NewLayout(t.TempDir())
	writeManifest(t, layout, fixedToken, Manifest{Timestamp: FormatTimestamp(fixedNow)})
	m, err := NewCatalog(layout, 0, nil).Manifest(context.Background(), fixedToken)
	if err != nil {
		t.Fatal(err)
	}
	if m.Timestamp != FormatTimestamp(fixedNow) {
		t.Fatalf("timestamp = %q", m.Timestamp)
	}
}
