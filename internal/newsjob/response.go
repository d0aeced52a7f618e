package newsjob

import (
	"math"
	"time"

	"github.com/aashrilshazar/WorldSalesMap/internal/model"
)

// Response is what GET /news returns in JSON mode.
type Response struct {
	Items       []model.Article    `json:"items"`
	LastUpdated *time.Time         `json:"lastUpdated"`
	Errors      []model.ErrorEntry `json:"errors"`
	Status      model.JobStatus    `json:"status"`
	Job         *JobInfo           `json:"job"`
	Batch       *BatchDelta        `json:"batch"`
}

type JobInfo struct {
	ID              string     `json:"id"`
	TotalFirms      int        `json:"totalFirms"`
	ProcessedFirms  int        `json:"processedFirms"`
	NextIndex       int        `json:"nextIndex"`
	BatchSize       int        `json:"batchSize"`
	StartedAt       time.Time  `json:"startedAt"`
	LastBatchAt     *time.Time `json:"lastBatchAt"`
	CompletedAt     *time.Time `json:"completedAt"`
	PercentComplete *int       `json:"percentComplete"`
}

// BatchDelta describes what one batch step changed.
type BatchDelta struct {
	Firms     []string           `json:"firms"`
	NewItems  []string           `json:"newItems"`
	Errors    []model.ErrorEntry `json:"errors"`
	Range     BatchRange         `json:"range"`
	Cancelled bool               `json:"cancelled,omitempty"`
	Complete  bool               `json:"complete,omitempty"`
}

type BatchRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// BuildResponse projects the stored state into the response shape without
// touching the inputs. When there is no job the snapshot's own job status,
// if any, wins over status.
func BuildResponse(snapshot *model.Snapshot, job *model.Job, status model.JobStatus, batch *BatchDelta) *Response {
	if snapshot == nil {
		snapshot = model.EmptySnapshot()
	}

	items := make([]model.Article, len(snapshot.Items))
	copy(items, snapshot.Items)
	sortNewestFirst(items)

	if job == nil && snapshot.JobStatus != "" {
		status = snapshot.JobStatus
	}

	var errs []model.ErrorEntry
	if len(snapshot.Errors) > 0 {
		errs = snapshot.Errors
	}

	return &Response{
		Items:       items,
		LastUpdated: snapshot.LastUpdated,
		Errors:      errs,
		Status:      status,
		Job:         jobInfo(job),
		Batch:       batch,
	}
}

func jobInfo(job *model.Job) *JobInfo {
	if job == nil {
		return nil
	}

	info := &JobInfo{
		ID:             job.ID,
		TotalFirms:     job.TotalFirms,
		ProcessedFirms: job.Processed,
		NextIndex:      job.NextIndex,
		BatchSize:      job.BatchSize,
		StartedAt:      job.StartedAt,
		LastBatchAt:    job.LastBatchAt,
		CompletedAt:    job.CompletedAt,
	}

	if job.TotalFirms > 0 {
		pct := int(math.Round(float64(job.Processed) / float64(job.TotalFirms) * 100))
		pct = min(100, max(0, pct))
		info.PercentComplete = &pct
	}

	return info
}
