package backup

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Deleter removes every file belonging to one backup run.
type Deleter struct {
	layout Layout
	logger *zap.Logger
}

func NewDeleter(layout Layout, logger *zap.Logger) *Deleter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Deleter{layout: layout, logger: logger}
}

// Delete removes each file in daily/ and logs/ whose name contains the
// backup's timestamp token. Per-file failures are logged and counted; when
// nothing was deleted the result is ErrBackupNotFound.
func (d *Deleter) Delete(ctx context.Context, backupID string) (DeleteResult, error) {
	token, err := TokenFromBackupID(backupID)
	if err != nil {
		return DeleteResult{}, err
	}
	result := DeleteResult{BackupID: strings.TrimSpace(backupID)}

	for _, dir := range []string{d.layout.DailyDir(), d.layout.LogsDir()} {
		entries, err := os.ReadDir(dir)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			d.logger.Warn("read backup directory failed", zap.String("dir", dir), zap.Error(err))
			continue
		}
		for _, e := range entries {
			if err := ctx.Err(); err != nil {
				return result, err
			}
			if e.IsDir() || !strings.Contains(e.Name(), token) {
				continue
			}
			path := filepath.Join(dir, e.Name())
			if err := os.Remove(path); err != nil {
				d.logger.Warn("delete backup file failed", zap.String("file", path), zap.Error(err))
				result.Failed++
				if len(result.Errors) < maxErrorsKept {
					result.Errors = append(result.Errors, err.Error())
				}
				continue
			}
			result.FilesDeleted++
		}
	}

	if result.FilesDeleted == 0 {
		return result, ErrBackupNotFound
	}
	d.logger.Info("backup deleted", zap.String("id", result.BackupID), zap.Int("files", result.FilesDeleted))
	return result, nil
}
