// Package jobs implements the asynchronous batch TTS engine: submit a
// text file for rendering, track its status, and serve the finished MP3,
// with a periodic sweeper that deletes stale jobs and their files.
package jobs

import "time"

// Status is a BatchJob's lifecycle state.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// Job is a persistent batch-render row.
type Job struct {
	ID             string
	Status         Status
	ErrorMessage   *string
	FilePath       *string
	CreatedAt      time.Time
	LastAccessedAt time.Time
	Username       *string
	Voice          *string
	Speed          *string
}
