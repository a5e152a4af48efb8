package backup

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	appcfg "github.com/mx-space/console/internal/config"
	"go.uber.org/zap"
)

const defaultS3PathTemplate = "backups/{Y}/{m}/{filename}"

// ObjectPutter is the part of the S3 client used for uploads.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Offsite copies a finished backup to S3-compatible storage.
type Offsite struct {
	layout  Layout
	catalog *Catalog
	opts    appcfg.S3Options
	client  ObjectPutter
	logger  *zap.Logger
}

// NewOffsite validates opts and builds an S3 client. It returns
// ErrOffsiteUnavailable when uploads are disabled.
func NewOffsite(layout Layout, catalog *Catalog, opts appcfg.S3Options, logger *zap.Logger) (*Offsite, error) {
	if !opts.Enable {
		return nil, ErrOffsiteUnavailable
	}
	client, err := newS3Client(opts)
	if err != nil {
		return nil, err
	}
	return NewOffsiteWithClient(layout, catalog, opts, client, logger), nil
}

// NewOffsiteWithClient uses an existing client.
func NewOffsiteWithClient(layout Layout, catalog *Catalog, opts appcfg.S3Options, client ObjectPutter, logger *zap.Logger) *Offsite {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Offsite{layout: layout, catalog: catalog, opts: opts, client: client, logger: logger}
}

func newS3Client(opts appcfg.S3Options) (*s3.Client, error) {
	bucket := strings.TrimSpace(opts.Bucket)
	region := strings.TrimSpace(opts.Region)
	accessKey := strings.TrimSpace(opts.AccessKeyID)
	secretKey := strings.TrimSpace(opts.SecretAccessKey)
	if bucket == "" || region == "" || accessKey == "" || secretKey == "" {
		return nil, fmt.Errorf("%w: bucket, region, access_key_id and secret_access_key are required", ErrOffsiteUnavailable)
	}

	s3Opts := s3.Options{
		Region:       region,
		Credentials:  credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		UsePathStyle: opts.PathStyleAccess,
	}
	if endpoint := strings.TrimSpace(opts.Endpoint); endpoint != "" {
		if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
			endpoint = "https://" + endpoint
		}
		s3Opts.BaseEndpoint = aws.String(strings.TrimSuffix(endpoint, "/"))
		s3Opts.UsePathStyle = true
	}
	return s3.New(s3Opts), nil
}

// Upload sends the manifest and every artifact of backupID. It returns the
// object keys written.
func (o *Offsite) Upload(ctx context.Context, backupID string) ([]string, error) {
	manifest, err := o.catalog.Manifest(ctx, backupID)
	if err != nil {
		return nil, err
	}
	token, _ := TokenFromBackupID(backupID)
	stamp, err := time.Parse(timestampLayout, manifest.Timestamp)
	if err != nil {
		stamp = time.Now().UTC()
	}

	files := []string{o.layout.ManifestPath(BackupID(token))}
	for _, export := range manifest.Exports {
		for _, rel := range export.Files.paths() {
			files = append(files, o.layout.Abs(rel))
		}
	}

	keys := make([]string, 0, len(files))
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return keys, fmt.Errorf("read %s: %w", filepath.Base(file), err)
		}
		key := renderBackupObjectKey(o.opts.Path, filepath.Base(file), stamp)
		o.logger.Info("uploading backup file to s3", zap.String("key", key))
		_, err = o.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(o.opts.Bucket),
			Key:           aws.String(key),
			Body:          bytes.NewReader(data),
			ContentLength: aws.Int64(int64(len(data))),
			ContentType:   aws.String(contentTypeFor(file)),
		})
		if err != nil {
			return keys, fmt.Errorf("upload %s: %w", key, err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func contentTypeFor(name string) string {
	switch {
	case strings.HasSuffix(name, ".json"):
		return "application/json"
	case strings.HasSuffix(name, ".gz"):
		return "application/gzip"
	case strings.HasSuffix(name, ".xlsx"):
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/octet-stream"
	}
}

func renderBackupObjectKey(template, filename string, now time.Time) string {
	tpl := strings.TrimSpace(template)
	if tpl == "" {
		tpl = defaultS3PathTemplate
	}
	if !strings.Contains(tpl, "{filename}") {
		tpl = strings.TrimRight(tpl, "/") + "/{filename}"
	}

	replacer := strings.NewReplacer(
		"{Y}", now.Format("2006"),
		"{m}", now.Format("01"),
		"{d}", now.Format("02"),
		"{H}", now.Format("15"),
		"{M}", now.Format("04"),
		"{s}", now.Format("05"),
		"{filename}", filename,
	)

	key := replacer.Replace(tpl)
	key = strings.ReplaceAll(key, "\\", "/")
	key = strings.TrimSpace(strings.TrimPrefix(key, "/"))
	for strings.Contains(key, "//") {
		key = strings.ReplaceAll(key, "//", "/")
	}
	if key == "" {
		return filename
	}
	return key
}
