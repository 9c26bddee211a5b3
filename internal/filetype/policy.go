package filetype

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultMaxFileSize is the per-file ceiling for local reads.
const DefaultMaxFileSize int64 = 10 * MiB

var (
	// ErrTooLarge is returned when a file exceeds the size ceiling.
	ErrTooLarge = errors.New("file too large")

	// ErrUnsupportedType is returned when a file fails both the MIME and
	// the extension allow-list.
	ErrUnsupportedType = errors.New("file type not supported")
)

// Policy decides which files may be read.
type Policy struct {
	MaxFileSize int64
	mimes       map[string]struct{}
	exts        map[string]struct{}
}

// DefaultPolicy returns the 10 MiB policy with the built-in allow-lists.
func DefaultPolicy() *Policy {
	return &Policy{
		MaxFileSize: DefaultMaxFileSize,
		mimes:       defaultMIMESet,
		exts:        defaultExtSet,
	}
}

// NewPolicy builds a policy with a custom ceiling and extension list.
// A non-positive maxSize keeps the default; an empty extension list keeps
// the built-in one. Extensions may be given as ".pdf" or "pdf".
func NewPolicy(maxSize int64, extensions []string) *Policy {
	p := DefaultPolicy()
	if maxSize > 0 {
		p.MaxFileSize = maxSize
	}
	if len(extensions) > 0 {
		exts := make(map[string]struct{}, len(extensions))
		for _, e := range extensions {
			if n := NormalizeExt(e); n != "" {
				exts[n] = struct{}{}
			}
		}
		if len(exts) > 0 {
			p.exts = exts
		}
	}
	return p
}

// ParseExtensionList splits a comma separated list such as ".pdf, .txt".
func ParseExtensionList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if n := NormalizeExt(part); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// Allows reports whether the type check passes for the given file.
func (p *Policy) Allows(mimeType, filename string) bool {
	return isAllowed(p.mimes, p.exts, mimeType, filename)
}

// RejectError describes why a file was refused. It unwraps to ErrTooLarge
// or ErrUnsupportedType.
type RejectError struct {
	FileName string
	Reason   error
	Limit    int64
}

func (e *RejectError) Error() string {
	if errors.Is(e.Reason, ErrTooLarge) {
		return fmt.Sprintf("file %q is too large, maximum size is %s", e.FileName, FormatSize(e.Limit))
	}
	return fmt.Sprintf("file %q type is not supported", e.FileName)
}

func (e *RejectError) Unwrap() error {
	return e.Reason
}

// Check validates size first, then type.
func (p *Policy) Check(filename, mimeType string, size int64) error {
	if size > p.MaxFileSize {
		return &RejectError{FileName: filename, Reason: ErrTooLarge, Limit: p.MaxFileSize}
	}
	if !p.Allows(mimeType, filename) {
		return &RejectError{FileName: filename, Reason: ErrUnsupportedType}
	}
	return nil
}
