package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/joseph-ayodele/relief-evidence/internal/common"
	"github.com/joseph-ayodele/relief-evidence/internal/entity"
)

// objectPutter is the slice of *minio.Client the archive needs.
type objectPutter interface {
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Archive stores uploaded evidence under its recommended filename, keyed by run.
type Archive struct {
	client objectPutter
	bucket string
	logger *slog.Logger
}

// NewArchive connects to MinIO and makes sure the bucket exists.
func NewArchive(ctx context.Context, cfg common.ArchiveConfig, logger *slog.Logger) (*Archive, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	exists, err := cli.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("minio bucket check: %w", err)
	}
	if !exists {
		if err := cli.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("minio make bucket: %w", err)
		}
		logger.Info("archive.bucket.created", "bucket", cfg.Bucket)
	}
	return newArchive(cli, cfg.Bucket, logger), nil
}

func newArchive(client objectPutter, bucket string, logger *slog.Logger) *Archive {
	if logger == nil {
		logger = slog.Default()
	}
	return &Archive{client: client, bucket: bucket, logger: logger}
}

// Key is the object key for a renamed file within a run.
func Key(runID uuid.UUID, recommended string) string {
	return path.Join(runID.String(), recommended)
}

// Archive uploads every file that has a rename entry and returns how many were stored.
// Files without an entry are skipped. The first upload error stops the batch.
func (a *Archive) Archive(ctx context.Context, runID uuid.UUID, files []entity.UploadedFile, renames []entity.RenameEntry) (int, error) {
	byName := make(map[string]entity.UploadedFile, len(files))
	for _, f := range files {
		byName[f.Filename] = f
	}

	stored := 0
	for _, r := range renames {
		f, ok := byName[r.OriginalFilename]
		if !ok {
			continue
		}
		key := Key(runID, r.RecommendedFilename)
		_, err := a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(f.Data), int64(len(f.Data)), minio.PutObjectOptions{
			ContentType: f.MIMEType,
			UserMetadata: map[string]string{
				"original-filename": f.Filename,
				"confidence":        string(r.Confidence),
			},
		})
		if err != nil {
			a.logger.Error("archive.put.failed", "run_id", runID, "key", key, "err", err)
			return stored, fmt.Errorf("archive %s: %w", key, err)
		}
		stored++
	}
	a.logger.Info("archive.ok", "run_id", runID, "bucket", a.bucket, "stored", stored)
	return stored, nil
}
