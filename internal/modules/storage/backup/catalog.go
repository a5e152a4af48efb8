package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Catalog reads manifests out of the logs directory.
type Catalog struct {
	layout Layout
	limit  int
	logger *zap.Logger
}

func NewCatalog(layout Layout, limit int, logger *zap.Logger) *Catalog {
	if limit <= 0 {
		limit = historyLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Catalog{layout: layout, limit: limit, logger: logger}
}

// History returns summaries of the most recent manifests, newest first by
// file name. Manifests that fail to parse are skipped.
func (c *Catalog) History(ctx context.Context) ([]Summary, error) {
	entries, err := os.ReadDir(c.layout.LogsDir())
	if errors.Is(err, os.ErrNotExist) {
		return []Summary{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read logs directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), manifestExt) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))

	out := make([]Summary, 0, c.limit)
	for _, name := range names {
		if len(out) >= c.limit {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		id := strings.TrimSuffix(name, manifestExt)
		manifest, err := c.readManifest(c.layout.ManifestPath(id))
		if err != nil {
			c.logger.Warn("skipping unreadable backup manifest", zap.String("file", name), zap.Error(err))
			continue
		}
		out = append(out, c.summarize(id, manifest))
	}
	return out, nil
}

// Manifest loads the manifest of backupID.
func (c *Catalog) Manifest(ctx context.Context, backupID string) (*Manifest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	token, err := TokenFromBackupID(backupID)
	if err != nil {
		return nil, err
	}
	manifest, err := c.readManifest(c.layout.ManifestPath(BackupID(token)))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrBackupNotFound
	}
	if err != nil {
		return nil, err
	}
	return manifest, nil
}

func (c *Catalog) readManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return &m, nil
}

func (c *Catalog) summarize(id string, m *Manifest) Summary {
	s := Summary{
		ID:          id,
		Timestamp:   m.Timestamp,
		Type:        manifestType(m),
		Collections: make([]string, 0, len(m.Exports)),
		RecordCount: m.TotalRecords,
		Duration:    m.Duration,
	}
	for _, export := range m.Exports {
		s.Collections = append(s.Collections, export.Collection)
		for _, rel := range export.Files.paths() {
			info, err := os.Stat(c.layout.Abs(rel))
			if err != nil {
				s.MissingFiles++
				continue
			}
			s.SizeBytes += info.Size()
		}
	}
	s.Size = formatSize(s.SizeBytes)
	return s
}

// manifestType prefers the explicit type field. Older manifests carry the
// type only inside the first SQL artifact path.
func manifestType(m *Manifest) string {
	if m.Type != "" {
		return m.Type
	}
	if len(m.Exports) > 0 && strings.Contains(m.Exports[0].Files.SQL, TypeManual) {
		return TypeManual
	}
	return TypeAuto
}
