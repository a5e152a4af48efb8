package backup

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mx-space/console/internal/pkg/tablestore"
)

func TestDeleteRemovesEveryMatchingFile(t *testing.T) {
	store := tablestore.NewMemoryStore()
	seedRows(t, store, "posts", "p1")
	seedRows(t, store, "notes", "n1")
	svc, _, _ := newTestService(t, store, "posts", "notes")

	if _, err := svc.Writer.Create(context.Background(), WriteOptions{}); err != nil {
		t.Fatal(err)
	}
	svc.Writer.now = func() time.Time { return fixedNow.Add(time.Hour) }
	other, err := svc.Writer.Create(context.Background(), WriteOptions{})
	if err != nil {
		t.Fatal(err)
	}

	res, err := svc.Deleter.Delete(context.Background(), BackupID(fixedToken))
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if res.FilesDeleted != 7 {
		t.Fatalf("deleted %d files, want 6 artifacts plus the manifest", res.FilesDeleted)
	}
	if _, err := os.Stat(svc.Layout.ManifestPath(BackupID(fixedToken))); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("manifest still present: %v", err)
	}
	otherToken := TokenFromTimestamp(other.Timestamp)
	if _, err := os.Stat(svc.Layout.ManifestPath(BackupID(otherToken))); err != nil {
		t.Fatalf("unrelated backup removed: %v", err)
	}
}

func TestDeleteUnknownBackup(t *testing.T) {
	d := NewDeleter(NewLayout(t.TempDir()), nil)
	res, err := d.Delete(context.Background(), "backup_2099-01-01T00-00-00-000Z")
	if !errors.Is(err, ErrBackupNotFound) {
		t.Fatalf("err = %v, want ErrBackupNotFound", err)
	}
	if res.FilesDeleted != 0 {
		t.Fatalf("deleted = %d", res.FilesDeleted)
	}
	if _, err := d.Delete(context.Background(), "backup_"); !errors.Is(err, ErrInvalidBackupID) {
		t.Fatalf("err = %v, want ErrInvalidBackupID", err)
	}
}

func TestDeleteMatchesBySubstring(t *testing.T) {
	layout := NewLayout(t.TempDir())
	touch(t, filepath.Join(layout.DailyDir(), "manual-posts-2024-03-01T10-20-30-123Z.sql.gz"))
	touch(t, filepath.Join(layout.DailyDir(), "auto-posts-2024-05-02T00-00-00-000Z.sql.gz"))
	touch(t, filepath.Join(layout.LogsDir(), "backup_2024-05-02T00-00-00-000Z.json"))
	touch(t, filepath.Join(layout.DailyDir(), "auto-posts-2023-01-01T00-00-00-000Z.sql.gz"))

	// A short id matches every file carrying the substring.
	res, err := NewDeleter(layout, nil).Delete(context.Background(), "backup_2024")
	if err != nil {
		t.Fatal(err)
	}
	if res.FilesDeleted != 3 {
		t.Fatalf("deleted = %d, want 3", res.FilesDeleted)
	}
	left, _ := os.ReadDir(layout.DailyDir())
	if len(left) != 1 {
		t.Fatalf("remaining daily files = %d", len(left))
	}
}
