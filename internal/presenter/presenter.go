// Package presenter turns widget state into view models for the templates.
// It holds no state and makes no decisions beyond what to show.
package presenter

import (
	"math"
	"strconv"
	"strings"

	"github.com/attachdrop/backend/internal/filetype"
	"github.com/attachdrop/backend/internal/models"
)

// DropZoneView describes the drop target.
type DropZoneView struct {
	Icon         string
	Title        string
	Subtitle     string
	Accept       string
	MaxSizeLabel string
	DragOver     bool
}

// DropZone returns the drop target in its idle or drag-over state.
func DropZone(dragOver bool, maxFileSize int64) DropZoneView {
	v := DropZoneView{
		Icon:         "📁",
		Title:        "Upload Files from Your Device",
		Subtitle:     "Drag and drop files here, or click to browse",
		Accept:       filetype.AcceptHint,
		MaxSizeLabel: "Maximum file size: " + filetype.FormatSize(maxFileSize),
		DragOver:     dragOver,
	}
	if dragOver {
		v.Icon = "📤"
		v.Title = "Drop files here!"
	}
	return v
}

// ProgressRow is one in-flight read.
type ProgressRow struct {
	ID       string `json:"id"`
	FileName string `json:"fileName"`
	Percent  int    `json:"percent"`
	BarWidth string `json:"barWidth"`
}

// ProgressRows renders active reads in the order given.
func ProgressRows(entries []models.ProgressEntry) []ProgressRow {
	rows := make([]ProgressRow, 0, len(entries))
	for _, e := range entries {
		pct := int(math.Round(e.Percent))
		if pct < 0 {
			pct = 0
		} else if pct > 100 {
			pct = 100
		}
		rows = append(rows, ProgressRow{
			ID:       e.ID,
			FileName: e.FileName,
			Percent:  pct,
			BarWidth: strconv.Itoa(pct) + "%",
		})
	}
	return rows
}

// Badge labels
const (
	BadgeUploaded = "Uploaded"
	BadgeLink     = "Link"
)

// Card is one gallery tile.
type Card struct {
	Name       string
	TypeLabel  string
	SizeLabel  string
	Badge      string
	Uploader   string
	Thumbnail  string
	Icon       string
	OutboundTo string
}

// HasThumbnail reports whether the card renders a preview image.
func (c Card) HasThumbnail() bool { return c.Thumbnail != "" }

// IsOriginal reports whether the badge marks an uploaded file.
func (c Card) IsOriginal() bool { return c.Badge == BadgeUploaded }

// Gallery renders one card per descriptor.
func Gallery(descs []models.FileDescriptor) []Card {
	cards := make([]Card, 0, len(descs))
	for _, d := range descs {
		cards = append(cards, card(d))
	}
	return cards
}

func card(d models.FileDescriptor) Card {
	c := Card{
		Name:      d.Name,
		TypeLabel: typeLabel(d.SemanticType),
		SizeLabel: filetype.FormatSize(d.Size()),
		Uploader:  d.UploadedBy,
		Badge:     BadgeLink,
	}
	if d.IsOriginalUpload {
		c.Badge = BadgeUploaded
	}

	switch {
	case d.SemanticType == models.TypeImage && d.IsEmbedded():
		c.Thumbnail = d.Content
	case d.IsLink() && d.SemanticType == models.TypeDocument:
		// untyped external links, including records declared as "link"
		c.Icon = filetype.LinkIcon
	default:
		c.Icon = filetype.IconFor(d.SemanticType)
	}

	if d.IsLink() {
		c.OutboundTo = d.Content
	}
	return c
}

func typeLabel(t models.SemanticType) string {
	if t == models.TypePDF {
		return "PDF"
	}
	s := string(t)
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// ErrorRow is one entry of the inline error list.
type ErrorRow struct {
	ID       string `json:"id"`
	FileName string `json:"fileName"`
	Message  string `json:"message"`
	Kind     string `json:"kind"`
}

// ErrorRows renders ingestion errors, newest last.
func ErrorRows(errs []models.IngestError) []ErrorRow {
	rows := make([]ErrorRow, 0, len(errs))
	for _, e := range errs {
		rows = append(rows, ErrorRow{
			ID:       e.ID,
			FileName: e.FileName,
			Message:  e.Message,
			Kind:     string(e.Kind),
		})
	}
	return rows
}

// Page is everything the widget template needs.
type Page struct {
	Title    string
	User     string
	Version  string
	MaxSize  int64
	DropZone DropZoneView
	Progress []ProgressRow
	Errors   []ErrorRow
	Cards    []Card

	WebSocketPath string
	UploadPath    string
	StreamPath    string
}

// PageInput collects the state a page is rendered from.
type PageInput struct {
	User        models.User
	Version     string
	MaxFileSize int64
	Progress    []models.ProgressEntry
	Errors      []models.IngestError
	Attachments []models.FileDescriptor
}

// NewPage assembles the widget page.
func NewPage(in PageInput) Page {
	return Page{
		Title:         "Attachments",
		User:          in.User.Name,
		Version:       in.Version,
		MaxSize:       in.MaxFileSize,
		DropZone:      DropZone(false, in.MaxFileSize),
		Progress:      ProgressRows(in.Progress),
		Errors:        ErrorRows(in.Errors),
		Cards:         Gallery(in.Attachments),
		WebSocketPath: "/api/ws/uploads",
		UploadPath:    "/api/files/upload",
		StreamPath:    "/api/uploads/progress/stream",
	}
}
