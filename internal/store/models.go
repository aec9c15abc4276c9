package store

import "time"

// Run status values
const (
	RunRunning = "running"
	RunSuccess = "success"
	RunPartial = "partial"
	RunFailed  = "failed"
)

// Run records one acquisition invocation
type Run struct {
	ID           string // uuid
	StartTime    time.Time
	EndTime      time.Time
	Labs         string // comma-separated lab ids
	Succeeded    int
	Total        int
	Status       string // "running", "success", "partial", "failed"
	ErrorMessage string
}

// Outcome records what happened to one dataset during a run
type Outcome struct {
	ID          int64
	RunID       string
	LabID       int
	LabName     string
	Reference   string
	Destination string
	Status      string // "succeeded", "failed", "skipped"
	Error       string
	RecordedAt  time.Time
}

// ManifestSnapshot records a manifest write
type ManifestSnapshot struct {
	ID          int64
	RunID       string // empty when written outside a run
	LabName     string
	Path        string
	WrittenAt   time.Time
	Directories int
	Files       int
	TotalBytes  int64
}
