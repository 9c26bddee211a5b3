// fake_source.go - Scripted FileSource implementation for testing
package testutil

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/attachdrop/backend/internal/upload"
)

// FakeSource implements upload.FileSource with scripted behaviour.
type FakeSource struct {
	// Steps is the number of progress notifications sent before a read
	// completes. Default: 4.
	Steps int

	// Failures maps a file name to the error its read should return.
	Failures map[string]error

	// Gate, when non-nil, blocks every read until it is closed.
	Gate chan struct{}

	// HideTotal reports progress with an unknown total.
	HideTotal bool

	mu    sync.Mutex
	calls []string
}

// NewFakeSource creates a FakeSource with default settings.
func NewFakeSource() *FakeSource {
	return &FakeSource{
		Steps:    4,
		Failures: make(map[string]error),
	}
}

func (s *FakeSource) Read(ctx context.Context, f upload.FileHandle, onProgress upload.ProgressFunc) ([]byte, error) {
	s.mu.Lock()
	s.calls = append(s.calls, f.Name())
	s.mu.Unlock()

	if s.Gate != nil {
		select {
		case <-s.Gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err, ok := s.Failures[f.Name()]; ok {
		return nil, err
	}

	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, rc); err != nil {
		return nil, err
	}

	total := f.Size()
	reported := total
	if s.HideTotal {
		reported = 0
	}
	steps := s.Steps
	if steps <= 0 {
		steps = 4
	}
	if onProgress != nil {
		for i := 1; i <= steps; i++ {
			onProgress(total*int64(i)/int64(steps), reported)
		}
	}

	return buf.Bytes(), nil
}

// Calls returns the names of every file read so far.
func (s *FakeSource) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.calls))
	copy(out, s.calls)
	return out
}
