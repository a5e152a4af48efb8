package backup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/mx-space/console/internal/modules/system/audit"
	"github.com/mx-space/console/internal/pkg/record"
	"github.com/mx-space/console/internal/pkg/tablestore"
	"go.uber.org/zap"
)

const auditActionRestore = "backup.restore"

// Engine restores backups into the table-store. Collections are handled
// one after another and rows are written one at a time.
type Engine struct {
	layout   Layout
	catalog  *Catalog
	store    tablestore.Store
	decoders map[Format]Decoder
	maxBytes int64
	recorder audit.Recorder
	logger   *zap.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithDecoder replaces the decoder used for format.
func WithDecoder(format Format, dec Decoder) EngineOption {
	return func(e *Engine) {
		if dec != nil {
			e.decoders[format] = dec
		}
	}
}

// WithRecorder sets the audit recorder.
func WithRecorder(r audit.Recorder) EngineOption {
	return func(e *Engine) {
		if r != nil {
			e.recorder = r
		}
	}
}

// WithEngineLogger sets the engine logger.
func WithEngineLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l.Named("RestoreEngine")
		}
	}
}

func NewEngine(layout Layout, catalog *Catalog, store tablestore.Store, maxBytes int64, opts ...EngineOption) *Engine {
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	e := &Engine{
		layout:   layout,
		catalog:  catalog,
		store:    store,
		decoders: DefaultDecoders(maxBytes),
		maxBytes: maxBytes,
		recorder: audit.Nop{},
		logger:   zap.NewNop(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Restore runs one restore request. Only an unknown backup, an invalid id or
// an unsupported format fail the whole call; everything else is reported per
// collection inside the result. When ctx is cancelled between collections the
// partial result is audited and returned together with the context error.
func (e *Engine) Restore(ctx context.Context, req RestoreRequest) (*RestoreResult, error) {
	var format Format
	if strings.TrimSpace(req.Format) != "" {
		f, err := ParseFormat(req.Format)
		if err != nil {
			return nil, err
		}
		format = f
	}

	manifest, err := e.catalog.Manifest(ctx, req.BackupID)
	if err != nil {
		return nil, err
	}
	token, _ := TokenFromBackupID(req.BackupID)

	collections := targetCollections(manifest, req.CollectionID)
	result := &RestoreResult{
		BackupID:    strings.TrimSpace(req.BackupID),
		Collections: len(collections),
		Results:     make([]CollectionResult, 0, len(collections)),
	}
	for _, collection := range collections {
		if err := ctx.Err(); err != nil {
			e.logger.Warn("restore interrupted",
				zap.String("backup", result.BackupID),
				zap.Int("done", len(result.Results)),
				zap.Int("collections", result.Collections),
				zap.Error(err),
			)
			e.audit(context.WithoutCancel(ctx), req, result, err)
			return result, err
		}
		item := e.restoreCollection(ctx, token, collection, format, req.Overwrite)
		if item.Status == StatusError {
			e.logger.Warn("collection restore failed",
				zap.String("backup", result.BackupID),
				zap.String("collection", collection),
				zap.String("reason", item.Message),
			)
		}
		result.TotalRecords += item.Records
		result.Results = append(result.Results, item)
	}

	e.logger.Info("restore finished",
		zap.String("backup", result.BackupID),
		zap.Int("collections", result.Collections),
		zap.Int("failed", result.Failed()),
		zap.Int("records", result.TotalRecords),
	)
	e.audit(ctx, req, result, nil)
	return result, nil
}

func targetCollections(m *Manifest, collectionID string) []string {
	if id := strings.TrimSpace(collectionID); id != "" {
		return []string{id}
	}
	out := make([]string, 0, len(m.Exports))
	for _, export := range m.Exports {
		out = append(out, export.Collection)
	}
	return out
}

func (e *Engine) restoreCollection(ctx context.Context, token, collection string, requested Format, overwrite bool) CollectionResult {
	res := CollectionResult{Collection: collection, Status: StatusError}
	if !ValidCollectionName(collection) {
		res.Message = fmt.Sprintf("invalid collection name %q", collection)
		return res
	}

	files, err := e.locateFiles(token, collection)
	if err != nil {
		res.Message = err.Error()
		return res
	}
	if len(files) == 0 {
		res.Message = "Backup files not found"
		return res
	}

	format, file, ok := pickArtifact(files, requested)
	if !ok {
		res.Message = fmt.Sprintf("Backup file for format %s not found", requested)
		return res
	}
	res.Format = format
	res.File = path.Join(dailyDirName, filepath.Base(file))

	info, err := os.Stat(file)
	if err != nil {
		res.Message = fmt.Sprintf("stat backup file: %v", err)
		return res
	}
	res.Size = info.Size()
	if info.Size() > e.maxBytes {
		res.MaxSize = e.maxBytes
		res.Message = fmt.Sprintf("%v: %s > %s", ErrArtifactTooLarge, formatSize(info.Size()), formatSize(e.maxBytes))
		return res
	}

	decode, ok := e.decoders[format]
	if !ok {
		res.Message = fmt.Sprintf("%v: %s", ErrUnsupportedFormat, format)
		return res
	}
	data, err := os.ReadFile(file)
	if err != nil {
		res.Message = fmt.Sprintf("read backup file: %v", err)
		return res
	}
	rows, err := decode(data)
	if err != nil {
		res.Message = fmt.Sprintf("decode %s backup: %v", format, err)
		return res
	}

	if overwrite {
		res.Deleted, res.DeleteFailed = e.clearCollection(ctx, collection)
	}

	outcome := e.insertRows(ctx, collection, format, rows)
	res.Status = StatusSuccess
	res.Records = outcome.Succeeded
	res.Failed = outcome.Failed
	res.Errors = outcome.Errors
	return res
}

// locateFiles returns daily/ files of one collection of one backup run.
func (e *Engine) locateFiles(token, collection string) ([]string, error) {
	entries, err := os.ReadDir(e.layout.DailyDir())
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read daily directory: %w", err)
	}
	marker := artifactMarker(collection, token)
	var out []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.Contains(entry.Name(), marker) {
			continue
		}
		out = append(out, filepath.Join(e.layout.DailyDir(), entry.Name()))
	}
	return out, nil
}

// pickArtifact honors requested, or tries excel, bson, then sql.
func pickArtifact(files []string, requested Format) (Format, string, bool) {
	order := restorePreference
	if requested != "" {
		order = []Format{requested}
	}
	for _, format := range order {
		for _, file := range files {
			if strings.HasSuffix(file, format.Ext()) {
				return format, file, true
			}
		}
	}
	return "", "", false
}

// clearCollection deletes every existing row. Failures are logged and the
// restore continues with the insert phase.
func (e *Engine) clearCollection(ctx context.Context, collection string) (deleted, failed int) {
	rows, err := tablestore.ListAll(ctx, e.store, collection)
	if err != nil {
		e.logger.Warn("overwrite: list existing rows failed", zap.String("collection", collection), zap.Error(err))
		return 0, 0
	}
	for _, row := range rows {
		if err := e.store.DeleteRow(ctx, collection, row.ID); err != nil {
			e.logger.Warn("overwrite: delete row failed",
				zap.String("collection", collection),
				zap.String("id", row.ID),
				zap.Error(err),
			)
			failed++
			continue
		}
		deleted++
	}
	return deleted, failed
}

func (e *Engine) insertRows(ctx context.Context, collection string, format Format, rows []record.Record) RowOutcome {
	var outcome RowOutcome
	for i, row := range rows {
		id, payload := prepareRow(format, row)
		if id == "" {
			id = tablestore.NewID()
		}
		if _, err := e.store.CreateRow(ctx, collection, id, payload); err != nil {
			e.logger.Warn("restore row failed",
				zap.String("collection", collection),
				zap.Int("index", i),
				zap.String("id", id),
				zap.Error(err),
			)
			outcome.fail(fmt.Sprintf("row %d (%s): %v", i+1, id, err))
			continue
		}
		outcome.Succeeded++
	}
	return outcome
}

func (e *Engine) audit(ctx context.Context, req RestoreRequest, result *RestoreResult, interrupted error) {
	status := audit.StatusSuccess
	switch failed := result.Failed(); {
	case failed > 0 && failed == len(result.Results):
		status = audit.StatusError
	case failed > 0:
		status = audit.StatusPartial
	}
	detail := map[string]any{
		"format":       req.Format,
		"collectionId": req.CollectionID,
		"overwrite":    req.Overwrite,
		"collections":  result.Collections,
		"totalRecords": result.TotalRecords,
		"failed":       result.Failed(),
	}
	if interrupted != nil {
		detail["completed"] = len(result.Results)
		detail["interrupted"] = interrupted.Error()
		if status == audit.StatusSuccess {
			status = audit.StatusPartial
		}
		if len(result.Results) == 0 {
			status = audit.StatusError
		}
	}
	err := e.recorder.Record(ctx, audit.Entry{
		Action: auditActionRestore,
		Actor:  req.Actor,
		Target: result.BackupID,
		Status: status,
		Detail: detail,
		IP:     req.IP,
	})
	if err != nil {
		e.logger.Debug("audit record dropped", zap.Error(err))
	}
}
