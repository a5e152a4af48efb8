package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/mx-space/console/internal/pkg/record"
	"github.com/mx-space/console/internal/pkg/tablestore"
	"go.uber.org/zap"
)

// WriteOptions selects what one backup run exports.
type WriteOptions struct {
	Type        string
	Collections []string
	Formats     []Format
}

// Writer exports table-store collections into artifacts plus a manifest.
type Writer struct {
	layout      Layout
	store       tablestore.Store
	collections []string
	formats     []Format
	now         func() time.Time
	logger      *zap.Logger
}

// NewWriter builds a writer; collections and formats are the defaults used
// when WriteOptions leaves them empty.
func NewWriter(layout Layout, store tablestore.Store, collections []string, formats []Format, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(formats) == 0 {
		formats = []Format{FormatSQL, FormatBSON, FormatExcel}
	}
	return &Writer{
		layout:      layout,
		store:       store,
		collections: collections,
		formats:     formats,
		now:         time.Now,
		logger:      logger,
	}
}

// Collections returns the default collection list.
func (w *Writer) Collections() []string {
	return append([]string(nil), w.collections...)
}

// Create runs one backup. Only one run may hold the root lock at a time;
// a concurrent call fails with ErrBackupInProgress.
func (w *Writer) Create(ctx context.Context, opts WriteOptions) (*Manifest, error) {
	collections := uniqueNames(opts.Collections)
	if len(collections) == 0 {
		collections = uniqueNames(w.collections)
	}
	if len(collections) == 0 {
		return nil, ErrNothingToBackup
	}
	formats := opts.Formats
	if len(formats) == 0 {
		formats = w.formats
	}
	backupType := opts.Type
	if backupType != TypeAuto {
		backupType = TypeManual
	}

	if err := w.layout.Ensure(); err != nil {
		return nil, err
	}
	lock := flock.New(w.layout.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire backup lock: %w", err)
	}
	if !locked {
		return nil, ErrBackupInProgress
	}
	defer func() { _ = lock.Unlock() }()

	start := w.now()
	stamp := w.reserveTimestamp(start)
	token := TokenFromTimestamp(stamp)
	manifest := &Manifest{
		Timestamp: stamp,
		Type:      backupType,
		Exports:   make([]Export, 0, len(collections)),
	}

	for _, collection := range collections {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		export, err := w.exportCollection(ctx, collection, backupType, token, formats)
		if err != nil {
			w.logger.Warn("collection export skipped", zap.String("collection", collection), zap.Error(err))
			continue
		}
		manifest.Exports = append(manifest.Exports, export)
		manifest.TotalRecords += export.Records
	}
	manifest.Collections = len(manifest.Exports)
	manifest.Duration = w.now().Sub(start).Milliseconds()

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(w.layout.ManifestPath(BackupID(token)), data, 0o644); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}
	w.logger.Info("backup written",
		zap.String("id", BackupID(token)),
		zap.String("type", backupType),
		zap.Int("collections", manifest.Collections),
		zap.Int("records", manifest.TotalRecords),
	)
	return manifest, nil
}

// reserveTimestamp returns a timestamp whose manifest does not exist yet.
func (w *Writer) reserveTimestamp(t time.Time) string {
	for {
		stamp := FormatTimestamp(t)
		if _, err := os.Stat(w.layout.ManifestPath(BackupID(TokenFromTimestamp(stamp)))); errors.Is(err, os.ErrNotExist) {
			return stamp
		}
		t = t.Add(time.Millisecond)
	}
}

func (w *Writer) exportCollection(ctx context.Context, collection, backupType, token string, formats []Format) (Export, error) {
	if !ValidCollectionName(collection) {
		return Export{}, fmt.Errorf("invalid collection name %q", collection)
	}
	rows, err := tablestore.ListAll(ctx, w.store, collection)
	if err != nil {
		return Export{}, fmt.Errorf("list rows: %w", err)
	}
	export := Export{Collection: collection, Records: len(rows)}
	var failures []string
	for _, format := range formats {
		if format == FormatSQL && !sqlTableName(collection) {
			w.logger.Warn("sql artifact skipped, collection name cannot be read back from INSERT text",
				zap.String("collection", collection))
			continue
		}
		rel, err := w.writeArtifact(collection, backupType, token, format, rows)
		if err != nil {
			w.logger.Warn("artifact skipped",
				zap.String("collection", collection),
				zap.String("format", string(format)),
				zap.Error(err),
			)
			failures = append(failures, err.Error())
			continue
		}
		export.Files.set(format, rel)
	}
	if len(export.Files.paths()) == 0 {
		if len(failures) == 0 {
			return Export{}, errors.New("no artifact format applies")
		}
		return Export{}, errors.New(strings.Join(failures, "; "))
	}
	return export, nil
}

// writeArtifact encodes rows in one format and returns the path relative to
// the root. A partially written file is removed.
func (w *Writer) writeArtifact(collection, backupType, token string, format Format, rows []tablestore.Row) (string, error) {
	encode, ok := encoders[format]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	data, err := encode(collection, exportRows(format, rows))
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", format, err)
	}
	rel := path.Join(dailyDirName, ArtifactName(backupType, collection, token, format))
	abs := w.layout.Abs(rel)
	if err := os.WriteFile(abs, data, 0o644); err != nil {
		_ = os.Remove(abs)
		return "", fmt.Errorf("write %s: %w", path.Base(rel), err)
	}
	return rel, nil
}

// exportRows flattens stored rows, putting the row id under the primary id
// key of the target format.
func exportRows(format Format, rows []tablestore.Row) []record.Record {
	idKey := format.idKeys()[0]
	out := make([]record.Record, 0, len(rows))
	for _, row := range rows {
		data := row.Data.Clone()
		if data == nil {
			data = record.Record{}
		}
		data[idKey] = record.String(row.ID)
		if !row.CreatedAt.IsZero() {
			data["createdAt"] = record.String(row.CreatedAt.UTC().Format(time.RFC3339Nano))
		}
		if !row.UpdatedAt.IsZero() {
			data["updatedAt"] = record.String(row.UpdatedAt.UTC().Format(time.RFC3339Nano))
		}
		out = append(out, data)
	}
	return out
}

func uniqueNames(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
