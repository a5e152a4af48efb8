package nativelog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestTodayFilename(t *testing.T) {
	now := time.Date(2024, 3, 7, 10, 0, 0, 0, time.UTC)
	if got := TodayFilename(now); got != "stdout_3-7-24.log" {
		t.Fatalf("TodayFilename = %q", got)
	}
}

func TestWriterAppendsToDailyFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	w, err := NewWriter(dir)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	fixed := time.Date(2024, 3, 7, 10, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return fixed }

	for _, line := range []string{"first\n", "second\n"} {
		if _, err := w.Write([]byte(line)); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	content, err := os.ReadFile(filepath.Join(dir, "stdout_3-7-24.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if strings.Count(string(content), "\n") != 2 || !strings.HasPrefix(string(content), "first") {
		t.Fatalf("content = %q", content)
	}
}
