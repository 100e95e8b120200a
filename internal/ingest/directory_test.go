package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/relief-evidence/internal/entity"
)

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func TestLoadDirectory(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "caseA", "receipt.JPG"), []byte{0xff, 0xd8, 0xff})
	writeFile(t, filepath.Join(root, "caseA", "lease.pdf"), []byte("%PDF-1.4"))
	writeFile(t, filepath.Join(root, "caseB", "receipt.jpg"), []byte{0xff, 0xd8, 0xff})
	writeFile(t, filepath.Join(root, "caseB", "notes.txt"), []byte("ignore me"))
	writeFile(t, filepath.Join(root, ".cache", "thumb.png"), []byte("png"))
	writeFile(t, filepath.Join(root, "caseB", "huge.png"), make([]byte, 64))

	files, results, stats, err := LoadDirectory(context.Background(), root, Options{SkipHidden: true, MaxFileSize: 32}, quiet())
	require.NoError(t, err)

	names := entity.Filenames(files)
	assert.ElementsMatch(t, []string{"caseA/receipt.JPG", "caseA/lease.pdf", "caseB/receipt.jpg"}, names)
	assert.EqualValues(t, 4, stats.Matched)
	assert.EqualValues(t, 3, stats.Succeeded)
	assert.EqualValues(t, 1, stats.Skipped)
	assert.Len(t, results, 4)

	for _, f := range files {
		if f.Filename == "caseA/lease.pdf" {
			assert.Equal(t, "application/pdf", f.MIMEType)
		} else {
			assert.Equal(t, "image/jpeg", f.MIMEType)
		}
	}
}

func TestLoadDirectory_RequiresRoot(t *testing.T) {
	_, _, _, err := LoadDirectory(context.Background(), " ", Options{}, quiet())
	assert.Error(t, err)
}

func TestLoadDirectory_IncludeExts(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.png"), []byte("png"))
	writeFile(t, filepath.Join(root, "b.pdf"), []byte("%PDF"))

	files, _, _, err := LoadDirectory(context.Background(), root, Options{IncludeExts: []string{".PDF"}}, quiet())
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "b.pdf", files[0].Filename)
}

func TestDetectMIME(t *testing.T) {
	assert.Equal(t, "image/png", DetectMIME("x.PNG", nil))
	assert.Equal(t, "application/pdf", DetectMIME("scan", []byte("%PDF-1.7\n")))
	assert.Equal(t, "image/jpeg", DetectMIME("scan", []byte{0xff, 0xd8, 0xff, 0xe0}))
}

func TestGroupCases(t *testing.T) {
	var files []entity.UploadedFile
	for i := 0; i < 12; i++ {
		files = append(files, entity.UploadedFile{Filename: fmt.Sprintf("big/%02d.jpg", i)})
	}
	files = append(files, entity.UploadedFile{Filename: "small/a.jpg"}, entity.UploadedFile{Filename: "top.pdf"})

	cases := GroupCases(files, 10)
	require.Len(t, cases, 4)
	assert.Equal(t, ".", cases[0].Name)
	assert.Equal(t, "big#1", cases[1].Name)
	assert.Len(t, cases[1].Files, 10)
	assert.Equal(t, "big#2", cases[2].Name)
	assert.Len(t, cases[2].Files, 2)
	assert.Equal(t, "small", cases[3].Name)
}

func TestIsHidden(t *testing.T) {
	assert.True(t, IsHidden("/x/.git"))
	assert.False(t, IsHidden("/x/file.pdf"))
	assert.False(t, IsHidden("."))
}

func TestWatch_InitialScanAndCreate(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "old.pdf"), []byte("%PDF"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, _, err := Watch(ctx, WatchConfig{Roots: []string{root}, InitialScan: true}, quiet())
	require.NoError(t, err)

	select {
	case p := <-events:
		assert.Equal(t, filepath.Join(root, "old.pdf"), p)
	case <-time.After(2 * time.Second):
		t.Fatal("initial scan did not emit")
	}

	writeFile(t, filepath.Join(root, "new.png"), []byte("png"))
	writeFile(t, filepath.Join(root, "skip.txt"), []byte("txt"))
	select {
	case p := <-events:
		assert.Equal(t, filepath.Join(root, "new.png"), p)
	case <-time.After(2 * time.Second):
		t.Fatal("create did not emit")
	}
}

func TestWatch_NoRoots(t *testing.T) {
	_, _, err := Watch(context.Background(), WatchConfig{}, quiet())
	assert.Error(t, err)
}
