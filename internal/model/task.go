package model

import (
	"sync"

	"github.com/google/uuid"
)

// TaskState is the lifecycle state of a DownloadTask.
type TaskState string

const (
	TaskQueued      TaskState = "queued"
	TaskDownloading TaskState = "downloading"
	TaskCompleted   TaskState = "completed"
	TaskFailed      TaskState = "failed"
)

// DownloadTask tracks one track download while it is in flight.
type DownloadTask struct {
	Track         *Track
	Filename      string
	State         TaskState
	ReceivedBytes int64
	TotalBytes    int64
}

// NewDownloadTask creates a queued task.
func NewDownloadTask(track *Track, filename string) *DownloadTask {
	return &DownloadTask{Track: track, Filename: filename, State: TaskQueued}
}

// BulkMode selects how a bulk job materializes its tracks.
type BulkMode string

const (
	BulkIndividual BulkMode = "individual"
	BulkZip        BulkMode = "zip"
	BulkCSV        BulkMode = "csv"
)

// ParseBulkMode validates a bulk mode name. Empty input yields BulkZip.
func ParseBulkMode(s string) (BulkMode, bool) {
	switch BulkMode(s) {
	case "":
		return BulkZip, true
	case BulkIndividual, BulkZip, BulkCSV:
		return BulkMode(s), true
	}
	return "", false
}

// BulkFailure records one track that could not be materialized.
type BulkFailure struct {
	Index int
	Track *Track
	Err   error
}

// BulkJob aggregates the progress of a batch download.
//
// Completed only increases. Failures is append-only.
type BulkJob struct {
	ID    string
	Mode  BulkMode
	Total int

	mu        sync.Mutex
	completed int
	failures  []BulkFailure
}

// NewBulkJob creates a job with a fresh identifier.
func NewBulkJob(mode BulkMode, total int) *BulkJob {
	return &BulkJob{ID: uuid.NewString(), Mode: mode, Total: total}
}

// RecordSuccess marks one more item as completed and returns the new count.
func (j *BulkJob) RecordSuccess() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.completed++
	return j.completed
}

// RecordFailure appends a failure, marks the item completed and returns the
// new count.
func (j *BulkJob) RecordFailure(index int, track *Track, err error) int {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.failures = append(j.failures, BulkFailure{Index: index, Track: track, Err: err})
	j.completed++
	return j.completed
}

// Completed returns the number of processed items.
func (j *BulkJob) Completed() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.completed
}

// Failures returns a copy of the recorded failures.
func (j *BulkJob) Failures() []BulkFailure {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]BulkFailure, len(j.failures))
	copy(out, j.failures)
	return out
}

// FailedCount returns the number of failed items.
func (j *BulkJob) FailedCount() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.failures)
}

// SuccessCount returns the number of items that completed without failure.
func (j *BulkJob) SuccessCount() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.completed - len(j.failures)
}
