package app

import (
	"context"
	"fmt"

	"github.com/mx-space/console/internal/config"
	"github.com/mx-space/console/internal/database"
	"github.com/mx-space/console/internal/modules/storage/backup"
	"github.com/mx-space/console/internal/modules/system/audit"
	"github.com/mx-space/console/internal/pkg/tablestore"
	"go.uber.org/zap"
)

// OpenBackups connects to the configured table-store and returns the backup
// service without the HTTP layer. The returned func releases connections.
func OpenBackups(logger *zap.Logger, cfg *config.AppConfig) (*backup.Service, func(), error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	formats, err := backup.ParseFormats(cfg.Backup.Formats)
	if err != nil {
		return nil, nil, fmt.Errorf("backup formats: %w", err)
	}
	noRedis := *cfg
	noRedis.Redis.Enable = false
	d, err := connect(&noRedis, logger)
	if err != nil {
		return nil, nil, err
	}

	var recorder audit.Recorder = audit.Nop{}
	if d.db != nil {
		recorder = audit.NewService(d.db, logger)
	}
	closeFn := func() {
		if d.mongo != nil {
			_ = d.mongo.Disconnect(context.Background())
		}
		_ = database.Close(d.db)
	}
	return newBackupService(cfg, d.store, formats, recorder, logger), closeFn, nil
}

func newBackupService(cfg *config.AppConfig, store tablestore.Store, formats []backup.Format, recorder audit.Recorder, logger *zap.Logger) *backup.Service {
	return backup.NewService(backup.Options{
		Root:             cfg.BackupDir(),
		Store:            store,
		Collections:      cfg.Backup.Collections,
		Formats:          formats,
		MaxArtifactBytes: cfg.Backup.MaxArtifactBytes,
		HistoryLimit:     cfg.Backup.HistoryLimit,
		S3:               cfg.Backup.S3,
		Recorder:         recorder,
		Logger:           logger,
	})
}
