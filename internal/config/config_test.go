package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseEmptyUsesDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Port != defaultPort || cfg.Store.Driver != StoreDriverMySQL {
		t.Fatalf("port=%d driver=%q", cfg.Port, cfg.Store.Driver)
	}
	if cfg.Backup.HistoryLimit != 20 || cfg.Backup.MaxArtifactBytes != 100<<20 {
		t.Fatalf("backup defaults = %+v", cfg.Backup)
	}
	if strings.Join(cfg.Backup.Formats, ",") != "sql,bson,excel" {
		t.Fatalf("formats = %v", cfg.Backup.Formats)
	}
	if !strings.Contains(cfg.DSN, "tcp(127.0.0.1:3306)/mx_console") {
		t.Fatalf("dsn = %q", cfg.DSN)
	}
	if cfg.RedisURL != "redis://localhost:6379/0" {
		t.Fatalf("redis url = %q", cfg.RedisURL)
	}
	if !cfg.IsDev() {
		t.Fatal("default env should be development")
	}
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("port: 3000\nmeili:\n  host: x\n"))
	if err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestParseLegacyKeysAndNormalization(t *testing.T) {
	cfg, err := Parse([]byte(`
node_env: Production
backup_dir: /srv/backups
redis_enable: false
store:
  driver: " Memory "
backup:
  formats: [SQL, sql, bson]
  collections: [" posts ", ""]
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Env != "production" || cfg.IsDev() {
		t.Fatalf("env = %q", cfg.Env)
	}
	if cfg.BackupDir() != "/srv/backups" {
		t.Fatalf("backup dir = %q", cfg.BackupDir())
	}
	if cfg.Redis.Enable {
		t.Fatal("redis_enable: false was ignored")
	}
	if cfg.Store.Driver != StoreDriverMemory {
		t.Fatalf("driver = %q", cfg.Store.Driver)
	}
	if strings.Join(cfg.Backup.Formats, ",") != "sql,bson" {
		t.Fatalf("formats = %v", cfg.Backup.Formats)
	}
	if len(cfg.Backup.Collections) != 1 || cfg.Backup.Collections[0] != "posts" {
		t.Fatalf("collections = %v", cfg.Backup.Collections)
	}
}

func TestParseValidation(t *testing.T) {
	cases := map[string]string{
		"port":     "port: 70000\n",
		"driver":   "store:\n  driver: sqlite\n",
		"format":   "backup:\n  formats: [csv]\n",
		"interval": "backup:\n  auto_interval: 10s\n",
		"limit":    "backup:\n  history_limit: -1\n",
	}
	for name, content := range cases {
		if _, err := Parse([]byte(content)); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestEnvOverridesPaths(t *testing.T) {
	t.Setenv(EnvBackupDir, "/data/bk")
	t.Setenv(EnvLogDir, "/data/logs")
	cfg, err := Parse([]byte("paths:\n  backups: ./ignored\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.BackupDir() != "/data/bk" || cfg.LogDir() != "/data/logs" {
		t.Fatalf("backup=%q logs=%q", cfg.BackupDir(), cfg.LogDir())
	}
}

func TestRelativePathsResolveAgainstWorkingDir(t *testing.T) {
	cfg, err := Parse([]byte("paths:\n  backups: data/backup\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := filepath.Join(WorkingDir(), "data", "backup")
	if cfg.BackupDir() != want {
		t.Fatalf("backup dir = %q, want %q", cfg.BackupDir(), want)
	}
}

func TestAutoBackupInterval(t *testing.T) {
	cfg, err := Parse([]byte("backup:\n  auto_interval: 6h\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	d, err := cfg.AutoBackupInterval()
	if err != nil || d != 6*time.Hour {
		t.Fatalf("interval = %v, %v", d, err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	content := "port: 8080\ndatabase:\n  dsn: user:pw@tcp(db:3306)/app\nredis:\n  url: cache:6380/2\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 8080 || cfg.DSN != "user:pw@tcp(db:3306)/app" {
		t.Fatalf("port=%d dsn=%q", cfg.Port, cfg.DSN)
	}
	if cfg.RedisURL != "redis://cache:6380/2" {
		t.Fatalf("redis url = %q", cfg.RedisURL)
	}
}

func TestDatabaseDSNFromFields(t *testing.T) {
	cfg, err := Parse([]byte(`
database:
  host: db.internal
  port: 3307
  user: console
  password: "p@ss"
  name: backups
  params:
    loc: UTC
    timeout: 5s
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !strings.HasPrefix(cfg.DSN, "console:p@ss@tcp(db.internal:3307)/backups?") {
		t.Fatalf("dsn = %q", cfg.DSN)
	}
	for _, part := range []string{"charset=utf8mb4", "parseTime=true", "timeout=5s"} {
		if !strings.Contains(cfg.DSN, part) {
			t.Fatalf("dsn = %q, missing %s", cfg.DSN, part)
		}
	}
	if strings.Contains(cfg.DSN, "loc=") {
		t.Fatalf("dsn = %q, UTC should not be written", cfg.DSN)
	}
	if !strings.Contains(Default().DSN, "loc=Local") {
		t.Fatalf("default dsn = %q, want loc=Local", Default().DSN)
	}
}

func TestRedisURLFromFields(t *testing.T) {
	cfg, err := Parse([]byte("redis:\n  host: cache\n  port: 6380\n  db: 3\n  password: secret\n  tls: true\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.RedisURL != "rediss://:secret@cache:6380/3" {
		t.Fatalf("redis url = %q", cfg.RedisURL)
	}
}
