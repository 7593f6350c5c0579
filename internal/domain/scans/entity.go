package scans

import (
	"time"
)

// Status enum
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Step enum, in execution order.
type Step string

const (
	StepDomains    Step = "domains"
	StepWeb        Step = "web"
	StepLogo       Step = "logo"
	StepSocial     Step = "social"
	StepFinalizing Step = "finalizing"
)

// PartialError records a failure that did not abort the scan. The list is append-only.
type PartialError struct {
	Phase     Step      `json:"phase"`
	Target    string    `json:"target,omitempty"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
	At        time.Time `json:"at"`
}

// Progress is the mutable counter block persisted while a scan runs.
type Progress struct {
	CurrentStep     Step `json:"current_step"`
	StepProgress    int  `json:"step_progress"`
	StepTotal       int  `json:"step_total"`
	OverallProgress int  `json:"overall_progress"`
	DomainsChecked  int  `json:"domains_checked"`
	PagesScanned    int  `json:"pages_scanned"`
	ThreatsFound    int  `json:"threats_found"`
}

// Aggregate Root: Scan, the execution record of one claimed job.
type Scan struct {
	ID      string `json:"id"`
	BrandID string `json:"brand_id"`
	JobID   string `json:"job_id,omitempty"`
	Type    Type   `json:"scan_type"`
	Status  Status `json:"status"`
	Progress

	PartialErrors []PartialError `json:"partial_errors"`
	StartedAt     *time.Time     `json:"started_at,omitempty"`
	CompletedAt   *time.Time     `json:"completed_at,omitempty"`
	Error         string         `json:"error,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// Cancelled reports whether the scan was stopped externally. Callers mark a
// cancel request as failed with a cancellation reason, workers later settle it
// as cancelled.
func (s *Scan) Cancelled() bool {
	switch s.Status {
	case StatusCancelled:
		return true
	case StatusFailed:
		return IsCancellation(s.Error)
	}
	return false
}

// Terminal reports whether no further transitions are expected.
func (s *Scan) Terminal() bool {
	return s.Status == StatusCompleted || s.Status == StatusFailed || s.Status == StatusCancelled
}
