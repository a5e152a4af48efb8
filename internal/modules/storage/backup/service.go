package backup

import (
	"context"
	"errors"

	appcfg "github.com/mx-space/console/internal/config"
	"github.com/mx-space/console/internal/modules/system/audit"
	"github.com/mx-space/console/internal/pkg/tablestore"
	"go.uber.org/zap"
)

// Options wires the backup service.
type Options struct {
	Root             string
	Store            tablestore.Store
	Collections      []string
	Formats          []Format
	MaxArtifactBytes int64
	HistoryLimit     int
	S3               appcfg.S3Options
	Recorder         audit.Recorder
	Logger           *zap.Logger
}

// Service groups the writer, catalog, deleter, restore engine and offsite
// uploader over one backup root.
type Service struct {
	Layout   Layout
	Writer   *Writer
	Catalog  *Catalog
	Deleter  *Deleter
	Engine   *Engine
	Offsite  *Offsite
	Recorder audit.Recorder

	offsiteErr error
	logger     *zap.Logger
}

func NewService(opts Options, engineOpts ...EngineOption) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("BackupService")
	recorder := opts.Recorder
	if recorder == nil {
		recorder = audit.Nop{}
	}

	layout := NewLayout(opts.Root)
	catalog := NewCatalog(layout, opts.HistoryLimit, logger)
	engineOpts = append([]EngineOption{WithRecorder(recorder), WithEngineLogger(logger)}, engineOpts...)
	s := &Service{
		Layout:   layout,
		Writer:   NewWriter(layout, opts.Store, opts.Collections, opts.Formats, logger),
		Catalog:  catalog,
		Deleter:  NewDeleter(layout, logger),
		Engine:   NewEngine(layout, catalog, opts.Store, opts.MaxArtifactBytes, engineOpts...),
		Recorder: recorder,
		logger:   logger,
	}
	offsite, err := NewOffsite(layout, catalog, opts.S3, logger)
	if err != nil {
		if opts.S3.Enable {
			logger.Warn("s3 offsite copy disabled", zap.Error(err))
		}
		s.offsiteErr = err
	} else {
		s.Offsite = offsite
	}
	return s
}

// ParseFormats converts configured format names.
func ParseFormats(names []string) ([]Format, error) {
	out := make([]Format, 0, len(names))
	for _, name := range names {
		f, err := ParseFormat(name)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// CreateBackup runs the writer and records the outcome.
func (s *Service) CreateBackup(ctx context.Context, opts WriteOptions, actor, ip string) (*Manifest, error) {
	manifest, err := s.Writer.Create(ctx, opts)
	entry := audit.Entry{Action: "backup.create", Actor: actor, IP: ip, Status: audit.StatusSuccess}
	if err != nil {
		if errors.Is(err, ErrBackupInProgress) {
			return nil, err
		}
		entry.Status = audit.StatusError
		entry.Detail = map[string]string{"error": err.Error()}
	} else {
		entry.Target = BackupID(TokenFromTimestamp(manifest.Timestamp))
		entry.Detail = map[string]any{
			"type":         manifest.Type,
			"collections":  manifest.Collections,
			"totalRecords": manifest.TotalRecords,
		}
	}
	s.record(ctx, entry)
	return manifest, err
}

// DeleteBackup removes a backup's files and records the outcome.
func (s *Service) DeleteBackup(ctx context.Context, backupID, actor, ip string) (DeleteResult, error) {
	result, err := s.Deleter.Delete(ctx, backupID)
	if err == nil {
		s.record(ctx, audit.Entry{
			Action: "backup.delete",
			Actor:  actor,
			Target: result.BackupID,
			Status: audit.StatusSuccess,
			Detail: map[string]int{"filesDeleted": result.FilesDeleted, "failed": result.Failed},
			IP:     ip,
		})
	}
	return result, err
}

// UploadOffsite copies a backup to S3.
func (s *Service) UploadOffsite(ctx context.Context, backupID string) ([]string, error) {
	if s.Offsite == nil {
		if s.offsiteErr != nil {
			return nil, s.offsiteErr
		}
		return nil, ErrOffsiteUnavailable
	}
	return s.Offsite.Upload(ctx, backupID)
}

func (s *Service) record(ctx context.Context, entry audit.Entry) {
	if err := s.Recorder.Record(ctx, entry); err != nil {
		s.logger.Debug("audit record dropped", zap.String("action", entry.Action), zap.Error(err))
	}
}
