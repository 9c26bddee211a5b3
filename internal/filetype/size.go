package filetype

import "fmt"

const (
	KiB = 1024
	MiB = 1024 * KiB
)

// FormatSize renders a byte count for display. Zero (absent) renders empty.
func FormatSize(bytes int64) string {
	if bytes <= 0 {
		return ""
	}
	if bytes < KiB {
		return fmt.Sprintf("%d B", bytes)
	}
	if bytes < MiB {
		return fmt.Sprintf("%.1f KB", float64(bytes)/KiB)
	}
	return fmt.Sprintf("%.1f MB", float64(bytes)/MiB)
}
