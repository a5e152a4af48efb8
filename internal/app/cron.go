package app

import (
	"context"
	"fmt"
	"time"

	"github.com/mx-space/console/internal/config"
	"github.com/mx-space/console/internal/modules/storage/backup"
	pkgcron "github.com/mx-space/console/internal/pkg/cron"
	"go.uber.org/zap"
)

const autoBackupJob = "auto_backup"

// registerCronJobs registers all scheduled background jobs.
func registerCronJobs(sched *pkgcron.Scheduler, backups *backup.Service, cfg *config.AppConfig, logger *zap.Logger) error {
	cronLogger := logger.Named("CronService")
	if !cfg.Backup.AutoEnable {
		cronLogger.Info("auto backup disabled")
		return nil
	}
	interval, err := cfg.AutoBackupInterval()
	if err != nil {
		return err
	}

	sched.Register(pkgcron.Job{
		Name:        autoBackupJob,
		Description: fmt.Sprintf("Back up every collection to local storage every %s", humanizeDuration(interval)),
		Interval:    interval,
		Fn: func(ctx context.Context) error {
			cronLogger.Info("backing up collections...")
			manifest, err := backups.CreateBackup(ctx, backup.WriteOptions{Type: backup.TypeAuto}, "system", "")
			if err != nil {
				cronLogger.Warn("backup failed", zap.Error(err))
				return err
			}
			id := backup.BackupID(backup.TokenFromTimestamp(manifest.Timestamp))
			cronLogger.Info("backup finished",
				zap.String("id", id),
				zap.Int("collections", manifest.Collections),
				zap.Int("records", manifest.TotalRecords),
			)
			if !cfg.Backup.S3.Enable {
				return nil
			}
			keys, err := backups.UploadOffsite(ctx, id)
			if err != nil {
				cronLogger.Warn("s3 upload failed", zap.String("id", id), zap.Error(err))
				return err
			}
			cronLogger.Info("s3 upload finished", zap.String("id", id), zap.Int("objects", len(keys)))
			return nil
		},
	})
	return nil
}

func humanizeDuration(d time.Duration) string {
	if d < time.Minute {
		return d.Truncate(time.Second).String()
	}
	if d < time.Hour {
		return d.Truncate(time.Minute).String()
	}
	if d < 24*time.Hour {
		return d.Truncate(time.Hour).String()
	}
	return d.Truncate(24 * time.Hour).String()
}
