package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const timestampLayout = "2006-01-02T15:04:05.000Z"

var collectionNamePattern = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_.-]{0,127}$`)

// ValidCollectionName reports whether name is safe to embed in file names.
func ValidCollectionName(name string) bool {
	return collectionNamePattern.MatchString(name) && !strings.Contains(name, "..")
}

// Layout resolves the on-disk structure under one backup root:
// daily/ holds artifacts and logs/ holds manifests.
type Layout struct {
	Root string
}

func NewLayout(root string) Layout {
	return Layout{Root: filepath.Clean(root)}
}

func (l Layout) DailyDir() string { return filepath.Join(l.Root, dailyDirName) }
func (l Layout) LogsDir() string  { return filepath.Join(l.Root, logsDirName) }
func (l Layout) LockPath() string { return filepath.Join(l.Root, lockFileName) }

// Ensure creates the daily and logs directories.
func (l Layout) Ensure() error {
	for _, dir := range []string{l.DailyDir(), l.LogsDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// ManifestPath returns logs/<backupID>.json.
func (l Layout) ManifestPath(backupID string) string {
	return filepath.Join(l.LogsDir(), backupID+manifestExt)
}

// Abs resolves a manifest-relative artifact path against the root.
func (l Layout) Abs(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(l.Root, filepath.FromSlash(rel))
}

// FormatTimestamp renders t as the manifest timestamp (UTC, milliseconds).
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// TokenFromTimestamp makes a manifest timestamp filesystem safe.
func TokenFromTimestamp(ts string) string {
	return strings.NewReplacer(":", "-", ".", "-").Replace(ts)
}

// BackupID returns backup_<token>.
func BackupID(token string) string {
	return backupIDPrefix + token
}

// TokenFromBackupID strips the backup_ prefix. Ids that would escape the
// backup directories are rejected.
func TokenFromBackupID(id string) (string, error) {
	id = strings.TrimSpace(id)
	token := strings.TrimPrefix(id, backupIDPrefix)
	if token == "" {
		return "", ErrInvalidBackupID
	}
	if strings.ContainsAny(token, `/\`) || strings.Contains(token, "..") {
		return "", ErrInvalidBackupID
	}
	return token, nil
}

// ArtifactName returns <type>-<collection>-<token><ext>.
func ArtifactName(backupType, collection, token string, format Format) string {
	return backupType + "-" + collection + "-" + token + format.Ext()
}

// artifactMarker is the substring tying a file to one collection of one run.
func artifactMarker(collection, token string) string {
	return "-" + collection + "-" + token
}

func formatSize(size int64) string {
	switch {
	case size >= 1<<20:
		return fmt.Sprintf("%.2f MB", float64(size)/(1<<20))
	case size >= 1<<10:
		return fmt.Sprintf("%.2f KB", float64(size)/(1<<10))
	default:
		return fmt.Sprintf("%d B", size)
	}
}
