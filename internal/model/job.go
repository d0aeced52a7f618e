package model

import "time"

type JobStatus string

const (
	StatusIdle      JobStatus = "idle"
	StatusRunning   JobStatus = "running"
	StatusComplete  JobStatus = "complete"
	StatusCancelled JobStatus = "cancelled"
	StatusError     JobStatus = "error"
)

// Job is the durable cursor of one refresh run over the firm list.
type Job struct {
	ID              string     `json:"id"`
	TotalFirms      int        `json:"totalFirms"`
	NextIndex       int        `json:"nextIndex"`
	Processed       int        `json:"processed"`
	BatchSize       int        `json:"batchSize"`
	StartedAt       time.Time  `json:"startedAt"`
	LastBatchAt     *time.Time `json:"lastBatchAt"`
	CompletedAt     *time.Time `json:"completedAt"`
	CancelRequested bool       `json:"cancelRequested"`

	// Revision is bumped on every successful write and guards against
	// overlapping invocations overwriting each other's cursor.
	Revision   int64      `json:"revision"`
	LeaseID    string     `json:"leaseId,omitempty"`
	LeaseUntil *time.Time `json:"leaseUntil,omitempty"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// Terminal reports whether the job must not be advanced any further.
func (j *Job) Terminal() bool {
	return j.CompletedAt != nil || j.CancelRequested
}

// Exhausted reports whether the cursor has reached the end of the firm list.
func (j *Job) Exhausted() bool {
	return j.NextIndex >= j.TotalFirms
}

// Leased reports whether another invocation holds an unexpired batch lease.
func (j *Job) Leased(now time.Time, leaseID string) bool {
	if j.LeaseID == "" || j.LeaseUntil == nil || j.LeaseID == leaseID {
		return false
	}
	return now.Before(*j.LeaseUntil)
}

// Status derives the display status of the job.
func (j *Job) Status() JobStatus {
	switch {
	case j == nil:
		return StatusIdle
	case j.CancelRequested:
		return StatusCancelled
	case j.CompletedAt != nil:
		return StatusComplete
	default:
		return StatusRunning
	}
}
