package events

import "time"

// DocumentStatus is the per-document result of a run.
type DocumentStatus string

const (
	StatusApplied DocumentStatus = "applied" // title and tags written
	StatusPartial DocumentStatus = "partial" // one of the two writes failed
	StatusSkipped DocumentStatus = "skipped" // empty content or dry run
	StatusFailed  DocumentStatus = "failed"  // model or parse failure, nothing written
)

// DocumentProcessedEvent is sent after each document in a run has been handled.
type DocumentProcessedEvent struct {
	RunID      string         // Run this document belongs to
	DocumentID int            // Paperless document id
	Title      string         // Title proposed by the model (may be empty)
	Tags       []string       // Tag names actually attached, marker included
	TagIDs     []int          // Ids sent to bulk_edit
	RawOutput  string         // Model output before parsing
	Status     DocumentStatus // Outcome
	Error      string         // First error encountered, if any
	Content    string         // Normalized content the model saw
	Timestamp  time.Time
}

// RunCompleteEvent is sent when a run finishes, successfully or not.
type RunCompleteEvent struct {
	RunID     string
	StartedAt time.Time
	Duration  time.Duration
	Selected  int      // Documents selected for processing
	Applied   int      // Documents fully enriched
	Partial   int      // Documents with one failed write
	Skipped   int      // Documents skipped
	Failed    int      // Documents that failed before any write
	DryRun    bool     // No writes were made
	Errors    []string // Non-fatal errors
}
