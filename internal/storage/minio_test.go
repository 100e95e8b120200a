package storage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/relief-evidence/internal/entity"
)

type putCall struct {
	bucket, key, contentType string
	body                     string
	meta                     map[string]string
}

type fakePutter struct {
	calls  []putCall
	failOn string
}

func (f *fakePutter) PutObject(_ context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	if key == f.failOn {
		return minio.UploadInfo{}, errors.New("connection reset")
	}
	b, _ := io.ReadAll(r)
	if int64(len(b)) != size {
		return minio.UploadInfo{}, errors.New("size mismatch")
	}
	f.calls = append(f.calls, putCall{bucket: bucket, key: key, contentType: opts.ContentType, body: string(b), meta: opts.UserMetadata})
	return minio.UploadInfo{Bucket: bucket, Key: key, Size: size}, nil
}

func TestArchive_StoresRenamedFiles(t *testing.T) {
	fp := &fakePutter{}
	a := newArchive(fp, "evidence", slog.New(slog.NewTextHandler(io.Discard, nil)))
	runID := uuid.New()

	files := []entity.UploadedFile{
		{Filename: "r1.jpg", MIMEType: "image/jpeg", Data: []byte("jpeg")},
		{Filename: "notes.pdf", MIMEType: "application/pdf", Data: []byte("pdf")},
	}
	renames := []entity.RenameEntry{
		{OriginalFilename: "r1.jpg", RecommendedFilename: "repairs_2024-03-14_acme_10.00.jpg", Confidence: entity.ConfidenceHigh},
		{OriginalFilename: "ghost.png", RecommendedFilename: "damage_roof.png"},
	}

	n, err := a.Archive(context.Background(), runID, files, renames)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, fp.calls, 1)
	c := fp.calls[0]
	assert.Equal(t, "evidence", c.bucket)
	assert.Equal(t, runID.String()+"/repairs_2024-03-14_acme_10.00.jpg", c.key)
	assert.Equal(t, "image/jpeg", c.contentType)
	assert.Equal(t, "jpeg", c.body)
	assert.Equal(t, "r1.jpg", c.meta["original-filename"])
	assert.Equal(t, "high", c.meta["confidence"])
}

func TestArchive_StopsOnError(t *testing.T) {
	runID := uuid.New()
	fp := &fakePutter{failOn: Key(runID, "b.png")}
	a := newArchive(fp, "evidence", nil)

	files := []entity.UploadedFile{
		{Filename: "a.jpg", Data: []byte("a")},
		{Filename: "b.png", Data: []byte("b")},
		{Filename: "c.png", Data: []byte("c")},
	}
	renames := []entity.RenameEntry{
		{OriginalFilename: "a.jpg", RecommendedFilename: "a.jpg"},
		{OriginalFilename: "b.png", RecommendedFilename: "b.png"},
		{OriginalFilename: "c.png", RecommendedFilename: "c.png"},
	}

	n, err := a.Archive(context.Background(), runID, files, renames)
	require.Error(t, err)
	assert.Equal(t, 1, n)
	assert.Contains(t, err.Error(), "connection reset")
}
