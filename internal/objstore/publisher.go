// Package objstore mirrors promoted model trees to MinIO or any S3-compatible store.
package objstore

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"path"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"txshield/internal/config"
	"txshield/internal/logging"
)

// LatestObject is the key, under the prefix, naming the most recently published run.
const LatestObject = "LATEST"

type bucketAPI interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	FPutObject(ctx context.Context, bucket, object, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	PutObject(ctx context.Context, bucket, object string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Publisher uploads a directory tree under <prefix>/<run_id>/.
type Publisher struct {
	api    bucketAPI
	bucket string
	prefix string
	log    *slog.Logger
}

// New creates a MinIO-backed publisher.
func New(cfg config.PublishSettings) (*Publisher, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("publish endpoint is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("publish access_key and secret_key are required")
	}
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return newPublisher(mc, cfg.Bucket, cfg.Prefix), nil
}

func newPublisher(api bucketAPI, bucket, prefix string) *Publisher {
	if bucket == "" {
		bucket = "txshield"
	}
	return &Publisher{api: api, bucket: bucket, prefix: strings.Trim(prefix, "/"), log: logging.New("objstore")}
}

// EnsureBucket creates the bucket if it does not exist.
func (p *Publisher) EnsureBucket(ctx context.Context) error {
	exists, err := p.api.BucketExists(ctx, p.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := p.api.MakeBucket(ctx, p.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket: %w", err)
		}
		p.log.Info("created bucket", "bucket", p.bucket)
	}
	return nil
}

// Publish uploads every regular file under dir, then points LATEST at runID.
// dir may be a symlink. It returns the s3:// URI of the uploaded tree.
func (p *Publisher) Publish(ctx context.Context, runID, dir string) (string, error) {
	if err := p.EnsureBucket(ctx); err != nil {
		return "", err
	}
	root, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", dir, err)
	}
	base := path.Join(p.prefix, runID)

	files := 0
	err = filepath.WalkDir(root, func(file string, d fs.DirEntry, err error) error {
		if err != nil || !d.Type().IsRegular() {
			return err
		}
		rel, err := filepath.Rel(root, file)
		if err != nil {
			return err
		}
		key := path.Join(base, filepath.ToSlash(rel))
		if _, err := p.api.FPutObject(ctx, p.bucket, key, file, minio.PutObjectOptions{
			ContentType: contentType(file),
		}); err != nil {
			return fmt.Errorf("upload %s: %w", key, err)
		}
		files++
		return nil
	})
	if err != nil {
		return "", err
	}

	latest := path.Join(p.prefix, LatestObject)
	if _, err := p.api.PutObject(ctx, p.bucket, latest, strings.NewReader(runID), int64(len(runID)),
		minio.PutObjectOptions{ContentType: "text/plain"}); err != nil {
		return "", fmt.Errorf("upload %s: %w", latest, err)
	}
	uri := fmt.Sprintf("s3://%s/%s", p.bucket, base)
	p.log.Info("published", "uri", uri, "files", files)
	return uri, nil
}

func contentType(file string) string {
	switch ext := filepath.Ext(file); ext {
	case ".yaml", ".yml":
		return "application/yaml"
	case ".csv":
		return "text/csv"
	default:
		if ct := mime.TypeByExtension(ext); ct != "" {
			return ct
		}
	}
	return "application/octet-stream"
}
