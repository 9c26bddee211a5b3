package models

import "time"

// ProgressEntry tracks one in-flight read.
type ProgressEntry struct {
	ID        string    `json:"id"`
	FileName  string    `json:"fileName"`
	Percent   float64   `json:"percent"` // 0-100
	StartedAt time.Time `json:"startedAt"`
}

// IngestErrorKind classifies a per-file ingestion failure.
type IngestErrorKind string

const (
	ErrorKindOversize        IngestErrorKind = "oversize"
	ErrorKindUnsupportedType IngestErrorKind = "unsupported_type"
	ErrorKindReadFailure     IngestErrorKind = "read_failure"
)

// IngestError is a user-visible failure for a single file.
type IngestError struct {
	ID       string          `json:"id"`
	ReadID   string          `json:"readId,omitempty"`
	FileName string          `json:"fileName"`
	Kind     IngestErrorKind `json:"kind"`
	Message  string          `json:"message"`
	At       time.Time       `json:"at"`
}

func (e *IngestError) Error() string {
	return e.Message
}
