package backup

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	appcfg "github.com/mx-space/console/internal/config"
	"github.com/mx-space/console/internal/pkg/tablestore"
)

type fakePutter struct {
	mu      sync.Mutex
	objects map[string]int
	types   map[string]string
	fail    bool
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.fail {
		return nil, errors.New("access denied")
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.objects == nil {
		f.objects = map[string]int{}
		f.types = map[string]string{}
	}
	key := aws.ToString(in.Key)
	f.objects[key] = len(body)
	f.types[key] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func TestOffsiteUploadsManifestAndArtifacts(t *testing.T) {
	store := tablestore.NewMemoryStore()
	seedRows(t, store, "posts", "p1")
	svc, _ := backupFixture(t, store, "posts")

	putter := &fakePutter{}
	opts := appcfg.S3Options{Enable: true, Bucket: "bk", Path: "mx/{Y}/{m}/{d}"}
	offsite := NewOffsiteWithClient(svc.Layout, svc.Catalog, opts, putter, nil)

	keys, err := offsite.Upload(context.Background(), BackupID(fixedToken))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if len(keys) != 4 {
		t.Fatalf("keys = %v, want manifest plus 3 artifacts", keys)
	}
	manifestKey := "mx/2024/03/01/backup_" + fixedToken + ".json"
	if keys[0] != manifestKey {
		t.Fatalf("first key = %q, want %q", keys[0], manifestKey)
	}
	if putter.types[manifestKey] != "application/json" {
		t.Fatalf("content type = %q", putter.types[manifestKey])
	}
	for _, key := range keys {
		if putter.objects[key] == 0 {
			t.Errorf("object %s empty", key)
		}
	}
}

func TestOffsiteUploadErrors(t *testing.T) {
	store := tablestore.NewMemoryStore()
	seedRows(t, store, "posts", "p1")
	svc, _ := backupFixture(t, store, "posts")

	offsite := NewOffsiteWithClient(svc.Layout, svc.Catalog, appcfg.S3Options{Bucket: "bk"}, &fakePutter{fail: true}, nil)
	if _, err := offsite.Upload(context.Background(), BackupID(fixedToken)); err == nil || !strings.Contains(err.Error(), "access denied") {
		t.Fatalf("err = %v", err)
	}
	if _, err := offsite.Upload(context.Background(), "backup_missing"); !errors.Is(err, ErrBackupNotFound) {
		t.Fatalf("err = %v, want ErrBackupNotFound", err)
	}
}

func TestNewOffsiteRequiresConfig(t *testing.T) {
	layout := NewLayout(t.TempDir())
	catalog := NewCatalog(layout, 0, nil)
	if _, err := NewOffsite(layout, catalog, appcfg.S3Options{}, nil); !errors.Is(err, ErrOffsiteUnavailable) {
		t.Fatalf("disabled: err = %v", err)
	}
	if _, err := NewOffsite(layout, catalog, appcfg.S3Options{Enable: true, Bucket: "b"}, nil); !errors.Is(err, ErrOffsiteUnavailable) {
		t.Fatalf("incomplete: err = %v", err)
	}
	full := appcfg.S3Options{Enable: true, Bucket: "b", Region: "auto", AccessKeyID: "k", SecretAccessKey: "s", Endpoint: "minio.local:9000"}
	if o, err := NewOffsite(layout, catalog, full, nil); err != nil || o == nil {
		t.Fatalf("complete: %v", err)
	}
}

func TestRenderBackupObjectKey(t *testing.T) {
	now := time.Date(2024, 7, 9, 8, 5, 3, 0, time.UTC)
	cases := []struct {
		tpl, want string
	}{
		{"", "backups/2024/07/a.json"},
		{"{Y}{m}{d}-{H}{M}{s}/{filename}", "20240709-080503/a.json"},
		{"/prefix//nested/", "prefix/nested/a.json"},
		{`win\path\{filename}`, "win/path/a.json"},
	}
	for _, tc := range cases {
		if got := renderBackupObjectKey(tc.tpl, "a.json", now); got != tc.want {
			t.Errorf("render(%q) = %q, want %q", tc.tpl, got, tc.want)
		}
	}
}

func TestContentTypeFor(t *testing.T) {
	cases := map[string]string{
		"a.sql.gz":  "application/gzip",
		"a.bson.gz": "application/gzip",
		"a.json":    "application/json",
		"a.bin":     "application/octet-stream",
	}
	for name, want := range cases {
		if got := contentTypeFor(name); got != want {
			t.Errorf("%s: %q", name, got)
		}
	}
}
