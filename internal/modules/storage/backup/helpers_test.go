package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mx-space/console/internal/modules/system/audit"
	"github.com/mx-space/console/internal/pkg/record"
	"github.com/mx-space/console/internal/pkg/tablestore"
)

var fixedNow = time.Date(2024, 3, 1, 10, 20, 30, 123_000_000, time.UTC)

const fixedToken = "2024-03-01T10-20-30-123Z"

type spyRecorder struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (r *spyRecorder) Record(_ context.Context, e audit.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return nil
}

func (r *spyRecorder) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Action)
	}
	return out
}

func newTestService(t *testing.T, store tablestore.Store, collections ...string) (*Service, *spyRecorder, string) {
	t.Helper()
	root := t.TempDir()
	rec := &spyRecorder{}
	svc := NewService(Options{
		Root:        root,
		Store:       store,
		Collections: collections,
		Recorder:    rec,
	})
	svc.Writer.now = func() time.Time { return fixedNow }
	return svc, rec, root
}

func seedRows(t *testing.T, store tablestore.Store, collection string, ids ...string) {
	t.Helper()
	for _, id := range ids {
		data := record.Record{"title": record.String("title " + id)}
		if _, err := store.CreateRow(context.Background(), collection, id, data); err != nil {
			t.Fatalf("seed %s/%s: %v", collection, id, err)
		}
	}
}

func rowIDs(t *testing.T, store tablestore.Store, collection string) map[string]bool {
	t.Helper()
	rows, err := tablestore.ListAll(context.Background(), store, collection)
	if err != nil {
		t.Fatal(err)
	}
	out := make(map[string]bool, len(rows))
	for _, r := range rows {
		out[r.ID] = true
	}
	return out
}

func writeManifest(t *testing.T, layout Layout, token string, m Manifest) {
	t.Helper()
	if err := layout.Ensure(); err != nil {
		t.Fatal(err)
	}
	data := []byte(fmt.Sprintf(`{"timestamp":%q,"type":%q,"exports":[],"totalRecords":%d,"collections":0,"duration":%d}`,
		m.Timestamp, m.Type, m.TotalRecords, m.Duration))
	if err := os.WriteFile(layout.ManifestPath(BackupID(token)), data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
}
