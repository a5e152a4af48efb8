package backup

import (
	"errors"
	"strings"

	"github.com/mx-space/console/internal/pkg/record"
)

const (
	dailyDirName = "daily"
	logsDirName  = "logs"
	lockFileName = ".backup.lock"

	backupIDPrefix  = "backup_"
	manifestExt     = ".json"
	defaultMaxBytes = 100 << 20
	historyLimit    = 20
	maxErrorsKept   = 20

	TypeManual = "manual"
	TypeAuto   = "auto"

	StatusSuccess = "success"
	StatusError   = "error"
)

var (
	ErrBackupNotFound     = errors.New("backup not found")
	ErrInvalidBackupID    = errors.New("invalid backup id")
	ErrBackupInProgress   = errors.New("another backup is in progress")
	ErrUnsupportedFormat  = errors.New("unsupported backup format")
	ErrArtifactTooLarge   = errors.New("backup file exceeds the maximum size")
	ErrNothingToBackup    = errors.New("no collections to back up")
	ErrOffsiteUnavailable = errors.New("offsite storage is not configured")
)

// Format is an artifact serialization.
type Format string

const (
	FormatSQL   Format = "sql"
	FormatBSON  Format = "bson"
	FormatExcel Format = "excel"
)

// restorePreference is the lookup order used when no format is requested.
var restorePreference = []Format{FormatExcel, FormatBSON, FormatSQL}

// Ext returns the artifact file extension.
func (f Format) Ext() string {
	switch f {
	case FormatSQL:
		return ".sql.gz"
	case FormatBSON:
		return ".bson.gz"
	case FormatExcel:
		return ".xlsx"
	default:
		return ""
	}
}

// idKeys lists candidate primary-key fields in priority order.
func (f Format) idKeys() []string {
	switch f {
	case FormatSQL:
		return []string{"$id", "id"}
	case FormatBSON:
		return []string{"_id"}
	default:
		return []string{"_id", "$id", "id"}
	}
}

// ParseFormat accepts the canonical names plus "postgresql" and "xlsx".
func ParseFormat(raw string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "sql", "postgresql":
		return FormatSQL, nil
	case "bson":
		return FormatBSON, nil
	case "excel", "xlsx":
		return FormatExcel, nil
	default:
		return "", ErrUnsupportedFormat
	}
}

// Manifest is the JSON log written once per backup run.
type Manifest struct {
	Timestamp    string   `json:"timestamp"`
	Type         string   `json:"type,omitempty"`
	Exports      []Export `json:"exports"`
	TotalRecords int      `json:"totalRecords"`
	Collections  int      `json:"collections"`
	Duration     int64    `json:"duration"`
}

type Export struct {
	Collection string      `json:"collection"`
	Files      ExportFiles `json:"files"`
	Records    int         `json:"records"`
}

// ExportFiles holds artifact paths relative to the backup root.
type ExportFiles struct {
	SQL   string `json:"postgresql,omitempty"`
	BSON  string `json:"bson,omitempty"`
	Excel string `json:"excel,omitempty"`
}

func (f ExportFiles) paths() []string {
	out := make([]string, 0, 3)
	for _, p := range []string{f.SQL, f.BSON, f.Excel} {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (f *ExportFiles) set(format Format, path string) {
	switch format {
	case FormatSQL:
		f.SQL = path
	case FormatBSON:
		f.BSON = path
	case FormatExcel:
		f.Excel = path
	}
}

// Summary is one entry of the backup history listing.
type Summary struct {
	ID           string   `json:"id"`
	Timestamp    string   `json:"timestamp"`
	Type         string   `json:"type"`
	Size         string   `json:"size"`
	SizeBytes    int64    `json:"sizeBytes"`
	Collections  []string `json:"collections"`
	RecordCount  int      `json:"recordCount"`
	Duration     int64    `json:"duration"`
	MissingFiles int      `json:"missingFiles"`
}

// RestoreRequest selects what to restore from one backup.
type RestoreRequest struct {
	BackupID     string `json:"-"`
	Format       string `json:"format,omitempty"`
	CollectionID string `json:"collectionId,omitempty"`
	Overwrite    bool   `json:"overwrite,omitempty"`

	Actor string `json:"-"`
	IP    string `json:"-"`
}

// RowOutcome aggregates row-level writes for one collection.
type RowOutcome struct {
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
}

func (o *RowOutcome) fail(msg string) {
	o.Failed++
	if len(o.Errors) < maxErrorsKept {
		o.Errors = append(o.Errors, msg)
	}
}

// CollectionResult is the restore outcome of a single collection.
type CollectionResult struct {
	Collection   string   `json:"collection"`
	Status       string   `json:"status"`
	Format       Format   `json:"format,omitempty"`
	File         string   `json:"file,omitempty"`
	Records      int      `json:"records"`
	Failed       int      `json:"failed,omitempty"`
	Deleted      int      `json:"deleted,omitempty"`
	DeleteFailed int      `json:"deleteFailed,omitempty"`
	Errors       []string `json:"errors,omitempty"`
	Message      string   `json:"message,omitempty"`
	Size         int64    `json:"size,omitempty"`
	MaxSize      int64    `json:"maxSize,omitempty"`
}

// RestoreResult aggregates every collection of one restore request.
type RestoreResult struct {
	BackupID     string             `json:"backupId"`
	Collections  int                `json:"collections"`
	TotalRecords int                `json:"totalRecords"`
	Results      []CollectionResult `json:"results"`
}

// Failed counts collections that ended in error.
func (r RestoreResult) Failed() int {
	n := 0
	for _, item := range r.Results {
		if item.Status == StatusError {
			n++
		}
	}
	return n
}

// DeleteResult reports a bulk file deletion.
type DeleteResult struct {
	BackupID     string   `json:"backupId"`
	FilesDeleted int      `json:"filesDeleted"`
	Failed       int      `json:"failed,omitempty"`
	Errors       []string `json:"errors,omitempty"`
}

// Decoder turns raw artifact bytes into row records.
type Decoder func(data []byte) ([]record.Record, error)

// Encoder serializes the rows of one collection into artifact bytes.
type Encoder func(collection string, rows []record.Record) ([]byte, error)
