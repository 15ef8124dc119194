package compressor

import (
	"context"
	"time"
)

// Status is the terminal outcome of one compression task. Every task
// resolves to exactly one of the three states, with no retries within
// a run.
type Status int

const (
	// StatusCompressed means the destination was successfully written.
	StatusCompressed Status = iota
	// StatusSkipped means the destination was already up to date and
	// no backend was invoked.
	StatusSkipped
	// StatusFailed means a backend or filesystem error occurred; the
	// error is recorded on the Result and the run continues.
	StatusFailed
)

// String returns the lowercase name of the status.
func (s Status) String() string {
	switch s {
	case StatusCompressed:
		return "compressed"
	case StatusSkipped:
		return "skipped"
	case StatusFailed:
		return "failed"
	}
	return "unknown"
}

// Task describes a single file to compress. Tasks are immutable once
// created and consumed exactly once.
type Task struct {
	Source      string
	Destination string
	Quality     int // 0-100
}

// Result describes the outcome of compressing a single file.
type Result struct {
	Task
	Status         Status
	Message        string
	Err            error
	OriginalSize   int64
	CompressedSize int64
	StartedAt      time.Time
	FinishedAt     time.Time
}

// FileCompressor defines the interface for single-file compression.
type FileCompressor interface {
	// Compress resolves one task to a terminal Result. Failures never
	// propagate past this boundary.
	Compress(ctx context.Context, task Task) Result
}
