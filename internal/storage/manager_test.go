// manager_test.go - Tests for the attachment store
package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/attachdrop/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func descriptor(name string) models.FileDescriptor {
	return models.FileDescriptor{
		Name:             name,
		Content:          "data:text/plain;base64,aGk=",
		SemanticType:     models.TypeDocument,
		UploadedBy:       "alice",
		SizeBytes:        models.Int64Ptr(2),
		IsOriginalUpload: true,
		MIMEType:         "text/plain",
	}
}

func TestMemoryStore_AddGetDelete(t *testing.T) {
	store := NewMemoryStore()

	a, err := store.Add(descriptor("a.txt"))
	require.NoError(t, err)
	assert.NotEmpty(t, a.ID)
	assert.False(t, a.AddedAt.IsZero())

	got, err := store.Get(a.ID)
	require.NoError(t, err)
	assert.Equal(t, "a.txt", got.Name)

	require.NoError(t, store.Delete(a.ID))
	_, err = store.Get(a.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, errors.Is(store.Delete(a.ID), ErrNotFound))
	assert.Equal(t, 0, store.Len())
}

func TestMemoryStore_EvictsOldestPastLimit(t *testing.T) {
	store := NewMemoryStoreWithLimit(2)

	first, err := store.Add(descriptor("first.txt"))
	require.NoError(t, err)
	_, err = store.Add(descriptor("second.txt"))
	require.NoError(t, err)
	_, err = store.Add(descriptor("third.txt"))
	require.NoError(t, err)

	assert.Equal(t, 2, store.Len())
	_, err = store.Get(first.ID)
	assert.True(t, errors.Is(err, ErrNotFound))

	list, err := store.List(0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "third.txt", list[0].Name)
	assert.Equal(t, "second.txt", list[1].Name)
}

func TestMemoryStore_RejectsInvalidDescriptors(t *testing.T) {
	store := NewMemoryStore()

	d := descriptor("empty.txt")
	d.Content = ""
	_, err := store.Add(d)
	assert.True(t, errors.Is(err, models.ErrEmptyContent))

	d = descriptor("weird.txt")
	d.SemanticType = "spreadsheet"
	_, err = store.Add(d)
	assert.True(t, errors.Is(err, models.ErrInvalidSemanticType))
}

func TestMemoryStore_ListNewestFirst(t *testing.T) {
	store := NewMemoryStore()
	for _, name := range []string{"1.txt", "2.txt", "3.txt", "4.txt"} {
		_, err := store.Add(descriptor(name))
		require.NoError(t, err)
	}

	list, err := store.List(0)
	require.NoError(t, err)
	require.Len(t, list, 4)
	assert.Equal(t, "4.txt", list[0].Name)
	assert.Equal(t, "1.txt", list[3].Name)

	list, err = store.List(2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, []string{"4.txt", "3.txt"}, []string{list[0].Name, list[1].Name})

	descs := Descriptors(list)
	assert.Equal(t, "4.txt", descs[0].Name)
}

const seedYAML = `
attachments:
  - file_name: handbook.pdf
    file_url: https://example.com/handbook.pdf
    file_type: pdf
    uploaded_by: bob
    original_file: false
  - file_name: giant.mov
    file_url: https://example.com/giant.mov
    file_type: hologram
    uploaded_by: carol
    file_size: 524288000
    original_file: false
  - file_name: Team wiki
    file_url: https://example.com/wiki
    file_type: link
    uploaded_by: dave
`

func TestParseSeed(t *testing.T) {
	records, err := ParseSeed(strings.NewReader(seedYAML))
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, models.TypePDF, records[0].SemanticType)
	assert.Nil(t, records[0].SizeBytes)
	assert.True(t, records[0].IsLink())

	// unknown types fall back, size ceiling does not apply
	assert.Equal(t, models.TypeDocument, records[1].SemanticType)
	require.NotNil(t, records[1].SizeBytes)
	assert.Equal(t, int64(524288000), *records[1].SizeBytes)

	assert.Equal(t, models.TypeDocument, records[2].SemanticType)
	assert.True(t, records[2].IsLink())
}

func TestParseSeed_Errors(t *testing.T) {
	_, err := ParseSeed(strings.NewReader("attachments: [\n"))
	assert.Error(t, err)

	_, err = ParseSeed(strings.NewReader("attachments:\n  - file_name: nothing.pdf\n"))
	assert.True(t, errors.Is(err, models.ErrEmptyContent))
}

func TestLoadSeed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "attachments.yaml")
	require.NoError(t, os.WriteFile(path, []byte(seedYAML), 0644))

	store := NewMemoryStore()
	n, err := LoadSeed(store, path)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 3, store.Len())

	n, err = LoadSeed(store, filepath.Join(dir, "missing.yaml"))
	assert.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = LoadSeed(store, "")
	assert.NoError(t, err)
	assert.Equal(t, 0, n)
}
