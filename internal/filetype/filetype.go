// Package filetype classifies, validates and formats uploaded files.
//
// Everything here is a pure function over names, MIME strings and byte
// counts so it can be exercised without any transport in place.
package filetype

import (
	"path/filepath"
	"strings"

	"github.com/attachdrop/backend/internal/models"
)

// AcceptHint is the advisory accept attribute for the native file picker.
// Enforcement happens in Policy.Check.
const AcceptHint = "image/*,audio/*,video/*,.pdf,.doc,.docx,.xls,.xlsx,.ppt,.pptx,.txt"

// AllowedMIMETypes is the browser-reported MIME allow-list.
var AllowedMIMETypes = []string{
	// Images
	"image/jpeg", "image/jpg", "image/png", "image/gif", "image/webp",
	// Audio
	"audio/mpeg", "audio/mp3", "audio/wav", "audio/ogg", "audio/aac",
	// Video
	"video/mp4", "video/avi", "video/mov", "video/wmv", "video/quicktime",
	// Documents
	"application/pdf",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"application/vnd.ms-excel",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"application/vnd.ms-powerpoint",
	"application/vnd.openxmlformats-officedocument.presentationml.presentation",
	"text/plain",
}

// AllowedExtensions is the filename fallback used when the browser supplies
// no MIME type or a wrong one.
var AllowedExtensions = []string{
	"jpg", "jpeg", "png", "gif", "webp",
	"mp3", "wav", "ogg", "aac",
	"mp4", "avi", "mov", "wmv",
	"pdf", "doc", "docx", "xls", "xlsx", "ppt", "pptx", "txt",
}

var officeMIMEMarkers = []string{"word", "excel", "powerpoint", "spreadsheet"}

var officeExtensions = map[string]struct{}{
	"doc": {}, "docx": {}, "xls": {}, "xlsx": {}, "ppt": {}, "pptx": {},
}

var defaultMIMESet = toSet(AllowedMIMETypes)
var defaultExtSet = toSet(AllowedExtensions)

// Extension returns the lowercased extension of filename without the dot.
func Extension(filename string) string {
	return NormalizeExt(filepath.Ext(filename))
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// NormalizeMIME lowercases a MIME string and drops any parameters.
func NormalizeMIME(mimeType string) string {
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}

// IsAllowed reports whether a file passes the default type allow-list,
// either by MIME type or by extension.
func IsAllowed(mimeType, filename string) bool {
	return isAllowed(defaultMIMESet, defaultExtSet, mimeType, filename)
}

func isAllowed(mimes, exts map[string]struct{}, mimeType, filename string) bool {
	if _, ok := mimes[NormalizeMIME(mimeType)]; ok {
		return true
	}
	ext := Extension(filename)
	if ext == "" {
		return false
	}
	_, ok := exts[ext]
	return ok
}

// Classify derives the semantic type of a file. It never fails: anything
// unrecognised is a document.
func Classify(mimeType, filename string) models.SemanticType {
	m := NormalizeMIME(mimeType)

	switch {
	case strings.HasPrefix(m, "image/"):
		return models.TypeImage
	case strings.HasPrefix(m, "audio/"):
		return models.TypeAudio
	case strings.HasPrefix(m, "video/"):
		return models.TypeVideo
	case m == "application/pdf":
		return models.TypePDF
	}

	for _, marker := range officeMIMEMarkers {
		if strings.Contains(m, marker) {
			return models.TypeDocument
		}
	}
	if _, ok := officeExtensions[Extension(filename)]; ok {
		return models.TypeDocument
	}
	return models.TypeDocument
}

// LinkIcon is shown for link-only records.
const LinkIcon = "🔗"

var icons = map[string]string{
	string(models.TypeImage):    "🖼️",
	string(models.TypeAudio):    "🎵",
	string(models.TypeVideo):    "🎬",
	string(models.TypeDocument): "📄",
	string(models.TypePDF):      "📕",
	"link":                      LinkIcon,
}

// IconFor returns the glyph for a semantic type. Unknown types get a paperclip.
func IconFor(t models.SemanticType) string {
	if icon, ok := icons[string(t)]; ok {
		return icon
	}
	return "📎"
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
