package entity

import (
	"time"

	"github.com/google/uuid"
)

// ImportStatus is the lifecycle state of an import job.
type ImportStatus string

const (
	ImportPending    ImportStatus = "pending"
	ImportProcessing ImportStatus = "processing"
	ImportCompleted  ImportStatus = "completed"
	ImportFailed     ImportStatus = "failed"
)

// ImportSourceText marks jobs created from raw pasted text. Fetching
// and extracting other sources happens upstream of this service.
const ImportSourceText = "text"

// ImportJob is an asynchronous card-generation job over raw text.
// Jobs are claimed and processed by the background worker.
type ImportJob struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	DeckID        uuid.UUID
	SourceType    string
	Topic         string
	Content       string
	Status        ImportStatus
	Error         string
	ResultSummary string
	CreatedAt     time.Time
	CompletedAt   *time.Time
}
