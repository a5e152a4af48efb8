package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/mx-space/console/internal/config"
	"github.com/mx-space/console/internal/modules/storage/backup"
	jwtpkg "github.com/mx-space/console/internal/pkg/jwt"
	"github.com/mx-space/console/internal/pkg/record"
	"github.com/mx-space/console/internal/pkg/tablestore"
	"go.uber.org/zap"
)

func newTestApp(t *testing.T) (*App, *tablestore.MemoryStore) {
	t.Helper()
	dir := t.TempDir()
	cfg, err := config.Parse([]byte(
		"env: production\nstore:\n  driver: memory\nredis:\n  enable: false\n" +
			"paths:\n  backups: " + filepath.Join(dir, "backup") + "\n  logs: " + filepath.Join(dir, "logs") + "\n" +
			"backup:\n  collections: [posts]\n  formats: [bson]\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	store := tablestore.NewMemoryStore()
	a, err := newApp(zap.NewNop(), cfg, deps{store: store})
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	t.Cleanup(func() { a.Shutdown(context.Background()) })
	return a, store
}

func authed(t *testing.T, method, path string) *http.Request {
	t.Helper()
	token, err := jwtpkg.Sign("admin", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestRoutesRequireAuth(t *testing.T) {
	a, _ := newTestApp(t)
	w := httptest.NewRecorder()
	a.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/backups/history", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", w.Code)
	}

	w = httptest.NewRecorder()
	a.Router().ServeHTTP(w, authed(t, http.MethodGet, "/api/backups/history"))
	if w.Code != http.StatusOK || w.Body.String() != "[]" {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
}

func TestHealthAndUnknownRoutes(t *testing.T) {
	a, _ := newTestApp(t)
	w := httptest.NewRecorder()
	a.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("health status = %d", w.Code)
	}
	w = httptest.NewRecorder()
	a.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/nope", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown route status = %d", w.Code)
	}
	w = httptest.NewRecorder()
	a.Router().ServeHTTP(w, authed(t, http.MethodGet, "/api/audit-logs"))
	if w.Code != http.StatusNotFound {
		t.Fatalf("audit route without mysql should be absent, got %d", w.Code)
	}
}

func TestAutoBackupJob(t *testing.T) {
	a, store := newTestApp(t)
	if _, err := store.CreateRow(context.Background(), "posts", "p1", record.Record{"title": record.String("hi")}); err != nil {
		t.Fatal(err)
	}
	if err := a.sched.RunSync(context.Background(), autoBackupJob); err != nil {
		t.Fatalf("auto backup: %v", err)
	}

	w := httptest.NewRecorder()
	a.Router().ServeHTTP(w, authed(t, http.MethodGet, "/api/backups/history"))
	var items []backup.Summary
	if err := json.Unmarshal(w.Body.Bytes(), &items); err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].Type != backup.TypeAuto || items[0].RecordCount != 1 {
		t.Fatalf("history = %+v", items)
	}
}

func TestOriginAllowList(t *testing.T) {
	list := originAllowList{"admin.example.com", "*.example.com", "localhost:*"}
	cases := map[string]bool{
		"https://admin.example.com": true,
		"https://a.example.com":     true,
		"https://example.org":       false,
		"http://localhost:5173":     true,
		"http://127.0.0.1:5173":     false,
		"admin.example.com":         true,
	}
	for origin, want := range cases {
		if got := list.allows(origin); got != want {
			t.Errorf("allows(%q) = %v, want %v", origin, got, want)
		}
	}
}

func TestCORSConfigOpenInDevelopment(t *testing.T) {
	cfg, err := config.Parse([]byte("env: development\nallowed_origins: [admin.example.com]\n"))
	if err != nil {
		t.Fatal(err)
	}
	if !corsConfig(cfg).AllowOriginFunc("https://anything.test") {
		t.Fatal("development should allow every origin")
	}
	cfg.Env = "production"
	if corsConfig(cfg).AllowOriginFunc("https://anything.test") {
		t.Fatal("production should apply allowed_origins")
	}
}

func TestParseTimezoneLocation(t *testing.T) {
	loc, err := parseTimezoneLocation("+08:00")
	if err != nil {
		t.Fatal(err)
	}
	if _, off := time.Date(2024, 1, 1, 0, 0, 0, 0, loc).Zone(); off != 8*3600 {
		t.Fatalf("offset = %d", off)
	}
	if _, err := parseTimezoneLocation("UTC"); err != nil {
		t.Fatal(err)
	}
	if _, err := parseTimezoneLocation("Mars/Olympus"); err == nil {
		t.Fatal("expected error")
	}
}

func TestHumanizeDuration(t *testing.T) {
	if got := humanizeDuration(36 * time.Hour); got != "24h0m0s" {
		t.Fatalf("got %q", got)
	}
	if got := humanizeDuration(90 * time.Minute); got != "1h0m0s" {
		t.Fatalf("got %q", got)
	}
}
