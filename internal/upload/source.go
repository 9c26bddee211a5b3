package upload

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/attachdrop/backend/internal/filetype"
	"golang.org/x/time/rate"
)

// FileHandle is a raw file as handed over by an input origin (picker,
// drag-and-drop, local disk).
type FileHandle interface {
	Name() string
	// Type is the MIME type reported by the origin. May be empty.
	Type() string
	// Size is the declared byte count.
	Size() int64
	Open() (io.ReadCloser, error)
}

// ProgressFunc receives read progress. total is 0 when unknown.
type ProgressFunc func(loaded, total int64)

// FileSource reads a file's bytes, reporting progress along the way.
type FileSource interface {
	Read(ctx context.Context, f FileHandle, onProgress ProgressFunc) ([]byte, error)
}

const (
	DefaultChunkSize        = 64 * 1024
	DefaultProgressInterval = 50 * time.Millisecond
)

// StreamSource reads a FileHandle in fixed-size chunks.
type StreamSource struct {
	// ChunkSize is the read buffer size. Default: 64KB.
	ChunkSize int

	// MaxBytes stops the read once more than MaxBytes arrive, even if the
	// declared size was smaller. 0 means no limit.
	MaxBytes int64

	// ProgressInterval throttles progress notifications. The final
	// notification is always delivered. 0 reports every chunk.
	ProgressInterval time.Duration
}

// NewStreamSource returns a source with default chunking and throttling.
func NewStreamSource(maxBytes int64) *StreamSource {
	return &StreamSource{
		ChunkSize:        DefaultChunkSize,
		MaxBytes:         maxBytes,
		ProgressInterval: DefaultProgressInterval,
	}
}

// Read implements FileSource.
func (s *StreamSource) Read(ctx context.Context, f FileHandle, onProgress ProgressFunc) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", f.Name(), err)
	}
	defer rc.Close()

	var r io.Reader = rc
	if s.MaxBytes > 0 {
		r = io.LimitReader(rc, s.MaxBytes+1) // +1 to detect overflow
	}

	chunkSize := s.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	total := f.Size()
	var out bytes.Buffer
	if total > 0 && (s.MaxBytes <= 0 || total <= s.MaxBytes) {
		out.Grow(int(total))
	}

	var loaded int64
	report := func() {
		if onProgress != nil {
			onProgress(loaded, total)
		}
	}
	throttle := &rate.Sometimes{Interval: s.ProgressInterval}

	buf := make([]byte, chunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		n, readErr := r.Read(buf)
		if n > 0 {
			out.Write(buf[:n])
			loaded += int64(n)

			if s.MaxBytes > 0 && loaded > s.MaxBytes {
				return nil, fmt.Errorf("reading %s: %w", f.Name(), filetype.ErrTooLarge)
			}

			if s.ProgressInterval > 0 {
				throttle.Do(report)
			} else {
				report()
			}
		}
		if readErr != nil {
			if readErr != io.EOF {
				return nil, fmt.Errorf("reading %s: %w", f.Name(), readErr)
			}
			break
		}
	}

	report()
	return out.Bytes(), nil
}

// EncodeDataURL embeds data as data:<mime>;base64,<payload>.
func EncodeDataURL(mimeType string, data []byte) string {
	mimeType = strings.TrimSpace(mimeType)
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// BytesFile is an in-memory FileHandle.
type BytesFile struct {
	FileName string
	MIMEType string
	Data     []byte
	// DeclaredSize overrides len(Data) when positive.
	DeclaredSize int64
}

func (f *BytesFile) Name() string { return f.FileName }
func (f *BytesFile) Type() string { return f.MIMEType }

func (f *BytesFile) Size() int64 {
	if f.DeclaredSize > 0 {
		return f.DeclaredSize
	}
	return int64(len(f.Data))
}

func (f *BytesFile) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(f.Data)), nil
}

// MultipartFile adapts a multipart form file from the native picker.
type MultipartFile struct {
	Header *multipart.FileHeader
}

func (f *MultipartFile) Name() string { return f.Header.Filename }
func (f *MultipartFile) Type() string { return f.Header.Header.Get("Content-Type") }
func (f *MultipartFile) Size() int64  { return f.Header.Size }

func (f *MultipartFile) Open() (io.ReadCloser, error) {
	return f.Header.Open()
}

// DiskFile is a file on the local filesystem. Its type is guessed from the
// extension, standing in for the browser-reported MIME type.
type DiskFile struct {
	Path string
	size int64
}

// NewDiskFile stats path and returns a handle for it.
func NewDiskFile(path string) (*DiskFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	return &DiskFile{Path: path, size: info.Size()}, nil
}

func (f *DiskFile) Name() string { return filepath.Base(f.Path) }
func (f *DiskFile) Size() int64  { return f.size }

func (f *DiskFile) Type() string {
	t := mime.TypeByExtension(filepath.Ext(f.Path))
	return filetype.NormalizeMIME(t)
}

func (f *DiskFile) Open() (io.ReadCloser, error) {
	return os.Open(f.Path)
}
