package testutil

import (
	"bytes"
	"mime/multipart"
	"net/textproto"
	"sync"

	"github.com/attachdrop/backend/internal/models"
	"github.com/attachdrop/backend/internal/upload"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// PNGBytes returns size bytes starting with the PNG signature.
func PNGBytes(size int) []byte {
	data := make([]byte, size)
	copy(data, pngMagic)
	return data
}

// File builds an in-memory file handle.
func File(name, mimeType string, data []byte) *upload.BytesFile {
	return &upload.BytesFile{FileName: name, MIMEType: mimeType, Data: data}
}

// SizedFile builds a handle whose declared size differs from its content,
// useful for oversize checks without allocating the bytes.
func SizedFile(name, mimeType string, declared int64) *upload.BytesFile {
	return &upload.BytesFile{FileName: name, MIMEType: mimeType, Data: []byte("x"), DeclaredSize: declared}
}

// MultipartPart describes one file part of a multipart body.
type MultipartPart struct {
	Field       string
	FileName    string
	ContentType string
	Data        []byte
}

// MultipartBody encodes parts and returns the body and its content type.
func MultipartBody(parts ...MultipartPart) (*bytes.Buffer, string) {
	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)
	for _, p := range parts {
		field := p.Field
		if field == "" {
			field = "files"
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+p.FileName+`"`)
		if p.ContentType != "" {
			h.Set("Content-Type", p.ContentType)
		}
		w, _ := writer.CreatePart(h)
		w.Write(p.Data)
	}
	writer.Close()
	return body, writer.FormDataContentType()
}

// Collector is an EmitFunc target that remembers every batch.
type Collector struct {
	mu      sync.Mutex
	batches [][]models.FileDescriptor
}

// Emit implements upload.EmitFunc.
func (c *Collector) Emit(files []models.FileDescriptor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	batch := make([]models.FileDescriptor, len(files))
	copy(batch, files)
	c.batches = append(c.batches, batch)
}

// Batches returns all emitted batches.
func (c *Collector) Batches() [][]models.FileDescriptor {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]models.FileDescriptor, len(c.batches))
	copy(out, c.batches)
	return out
}

// Descriptors flattens all emitted batches.
func (c *Collector) Descriptors() []models.FileDescriptor {
	var out []models.FileDescriptor
	for _, b := range c.Batches() {
		out = append(out, b...)
	}
	return out
}
