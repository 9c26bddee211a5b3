package upload_test

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/attachdrop/backend/internal/filetype"
	"github.com/attachdrop/backend/internal/testutil"
	"github.com/attachdrop/backend/internal/upload"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamSource_ReportsProgress(t *testing.T) {
	src := &upload.StreamSource{ChunkSize: 10, ProgressInterval: 0}
	data := []byte(strings.Repeat("a", 35))

	var loaded []int64
	var totals []int64
	got, err := src.Read(context.Background(), testutil.File("a.txt", "text/plain", data), func(l, total int64) {
		loaded = append(loaded, l)
		totals = append(totals, total)
	})
	require.NoError(t, err)
	assert.Equal(t, data, got)

	// one per chunk plus the final notification
	assert.Equal(t, []int64{10, 20, 30, 35, 35}, loaded)
	for _, total := range totals {
		assert.Equal(t, int64(35), total)
	}
}

func TestStreamSource_ThrottledStillReportsFinal(t *testing.T) {
	src := upload.NewStreamSource(0)
	src.ChunkSize = 1

	var last int64
	calls := 0
	_, err := src.Read(context.Background(), testutil.File("a.txt", "text/plain", make([]byte, 100)), func(l, _ int64) {
		last = l
		calls++
	})
	require.NoError(t, err)
	assert.Equal(t, int64(100), last)
	assert.Less(t, calls, 100)
}

func TestStreamSource_MaxBytes(t *testing.T) {
	src := &upload.StreamSource{ChunkSize: 4, MaxBytes: 8}

	_, err := src.Read(context.Background(), testutil.File("a.txt", "text/plain", make([]byte, 9)), nil)
	assert.True(t, errors.Is(err, filetype.ErrTooLarge))

	got, err := src.Read(context.Background(), testutil.File("b.txt", "text/plain", make([]byte, 8)), nil)
	require.NoError(t, err)
	assert.Len(t, got, 8)
}

func TestStreamSource_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := upload.NewStreamSource(0).Read(ctx, testutil.File("a.txt", "text/plain", []byte("x")), nil)
	assert.ErrorIs(t, err, context.Canceled)
}

type brokenFile struct{ upload.BytesFile }

func (brokenFile) Open() (io.ReadCloser, error) { return nil, errors.New("permission denied") }

func TestStreamSource_OpenError(t *testing.T) {
	f := &brokenFile{upload.BytesFile{FileName: "locked.txt"}}
	_, err := upload.NewStreamSource(0).Read(context.Background(), f, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "locked.txt")
}

func TestEncodeDataURL(t *testing.T) {
	url := upload.EncodeDataURL("image/png", []byte("hi"))
	assert.Equal(t, "data:image/png;base64,"+base64.StdEncoding.EncodeToString([]byte("hi")), url)

	assert.Equal(t, "data:application/octet-stream;base64,", upload.EncodeDataURL("", nil))
}

func TestDiskFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Report.PDF")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0644))

	f, err := upload.NewDiskFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Report.PDF", f.Name())
	assert.Equal(t, int64(8), f.Size())
	assert.Equal(t, "application/pdf", f.Type())

	_, err = upload.NewDiskFile(dir)
	assert.Error(t, err)

	_, err = upload.NewDiskFile(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}
