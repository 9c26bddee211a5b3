package models

import (
	"errors"
	"strings"
)

// SemanticType is the five-way file-kind classification used for icons and
// gallery rendering. It is derived, never user supplied.
type SemanticType string

const (
	TypeImage    SemanticType = "image"
	TypeAudio    SemanticType = "audio"
	TypeVideo    SemanticType = "video"
	TypePDF      SemanticType = "pdf"
	TypeDocument SemanticType = "document"
)

// Valid reports whether t is one of the five known semantic types.
func (t SemanticType) Valid() bool {
	switch t {
	case TypeImage, TypeAudio, TypeVideo, TypePDF, TypeDocument:
		return true
	}
	return false
}

// ParseSemanticType maps a stored value back to a SemanticType.
// Unknown values fall back to document.
func ParseSemanticType(s string) SemanticType {
	t := SemanticType(strings.ToLower(strings.TrimSpace(s)))
	if t.Valid() {
		return t
	}
	return TypeDocument
}

// DataURLPrefix marks content that embeds the file bytes.
const DataURLPrefix = "data:"

// FileDescriptor represents one accepted file, ready to hand to a caller.
type FileDescriptor struct {
	Name             string       `json:"file_name" msgpack:"file_name" yaml:"file_name"`
	Content          string       `json:"file_url" msgpack:"file_url" yaml:"file_url"`
	SemanticType     SemanticType `json:"file_type" msgpack:"file_type" yaml:"file_type"`
	UploadedBy       string       `json:"uploaded_by" msgpack:"uploaded_by" yaml:"uploaded_by"`
	SizeBytes        *int64       `json:"file_size,omitempty" msgpack:"file_size,omitempty" yaml:"file_size,omitempty"`
	IsOriginalUpload bool         `json:"original_file" msgpack:"original_file" yaml:"original_file"`
	MIMEType         string       `json:"mime_type" msgpack:"mime_type" yaml:"mime_type"`
}

// IsEmbedded reports whether Content is a data URL rather than a link.
func (d FileDescriptor) IsEmbedded() bool {
	return strings.HasPrefix(d.Content, DataURLPrefix)
}

// IsLink reports whether Content points at an external resource.
func (d FileDescriptor) IsLink() bool {
	return d.Content != "" && !d.IsEmbedded()
}

// Size returns the byte count, or 0 when absent.
func (d FileDescriptor) Size() int64 {
	if d.SizeBytes == nil {
		return 0
	}
	return *d.SizeBytes
}

var (
	ErrEmptyContent        = errors.New("descriptor content is empty")
	ErrInvalidSemanticType = errors.New("descriptor semantic type is invalid")
)

// Validate checks the descriptor invariants.
func (d FileDescriptor) Validate() error {
	if d.Content == "" {
		return ErrEmptyContent
	}
	if !d.SemanticType.Valid() {
		return ErrInvalidSemanticType
	}
	return nil
}

// Int64Ptr is a small helper for optional sizes.
func Int64Ptr(v int64) *int64 {
	return &v
}

// User is the identity context of the acting user.
type User struct {
	Name string `json:"name"`
}
