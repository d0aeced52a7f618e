package newsjob

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aashrilshazar/WorldSalesMap/internal/model"
	"github.com/aashrilshazar/WorldSalesMap/internal/repository"
)

const cancelAttempts = 5

var ErrNotConfigured = errors.New("news search is not configured")

type Fetcher interface {
	FetchForFirm(ctx context.Context, firm string) ([]model.Article, error)
}

// Store is the durable home of the snapshot and the job record. Every Engine
// call re-reads both from it.
type Store interface {
	LoadSnapshot(ctx context.Context) (*model.Snapshot, error)
	SaveSnapshot(ctx context.Context, snapshot *model.Snapshot) error
	UpdateSnapshot(ctx context.Context, fn func(s *model.Snapshot)) (*model.Snapshot, error)
	LoadJob(ctx context.Context) (*model.Job, error)
	SaveJob(ctx context.Context, job *model.Job) error
	ClearJob(ctx context.Context) error
}

type Options struct {
	BatchSize  int
	PerFirmCap int
	Cooldown   time.Duration
	Lease      time.Duration
	MaxErrors  int
	// MissingCredentials is reported when a forced refresh is requested
	// without a fetcher.
	MissingCredentials []string
}

// Engine advances the refresh job one batch per forced call.
type Engine struct {
	store   Store
	firms   repository.FirmSource
	fetcher Fetcher
	opts    Options

	now        func() time.Time
	newJobID   func() string
	newLeaseID func() string
}

// NewEngine builds an engine. fetcher may be nil, in which case reads,
// cancel and clear work but forced refreshes fail with ErrNotConfigured.
func NewEngine(store Store, firms repository.FirmSource, fetcher Fetcher, opts Options) *Engine {
	opts.BatchSize = max(1, opts.BatchSize)
	opts.PerFirmCap = max(1, opts.PerFirmCap)
	opts.MaxErrors = max(1, opts.MaxErrors)
	if opts.Lease <= 0 {
		opts.Lease = time.Minute
	}

	return &Engine{
		store:   store,
		firms:   firms,
		fetcher: fetcher,
		opts:    opts,
		now:     time.Now,
		newJobID: func() string {
			return "job_" + uuid.Must(uuid.NewV7()).String()
		},
		newLeaseID: uuid.NewString,
	}
}

// Refresh returns the stored state when force is false. Otherwise it starts
// or resumes the job and runs at most one batch.
func (e *Engine) Refresh(ctx context.Context, force bool) (*Response, error) {
	if !force {
		return e.current(ctx)
	}

	if e.fetcher == nil {
		if len(e.opts.MissingCredentials) == 0 {
			return nil, ErrNotConfigured
		}
		return nil, fmt.Errorf("%w: missing %s", ErrNotConfigured, strings.Join(e.opts.MissingCredentials, ", "))
	}

	snapshot, err := e.store.LoadSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	job, err := e.store.LoadJob(ctx)
	if err != nil {
		return nil, err
	}

	now := e.now().UTC()
	if e.fresh(snapshot, now) && (job == nil || job.CompletedAt != nil) {
		slog.Info("snapshot within refresh cooldown, skipping refresh", "last_updated", snapshot.LastUpdated)
		return cooledDown(snapshot, job), nil
	}

	firms, err := e.firms.FirmNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("load firms: %w", err)
	}

	leaseID := e.newLeaseID()

	if job == nil || job.ID == "" || job.Terminal() || job.Exhausted() || job.TotalFirms != len(firms) {
		job, err = e.startJob(ctx, job, len(firms), leaseID, now)
	} else {
		if job.Leased(now, leaseID) {
			slog.Info("batch already running in another invocation", "job_id", job.ID, "lease_until", job.LeaseUntil)
			return BuildResponse(snapshot, job, model.StatusRunning, nil), nil
		}
		claim(job, leaseID, now.Add(e.opts.Lease))
		err = e.store.SaveJob(ctx, job)
	}
	if errors.Is(err, repository.ErrJobConflict) {
		slog.Info("job changed while claiming batch", "error", err)
		return e.current(ctx)
	}
	if err != nil {
		return nil, err
	}

	if job.Exhausted() {
		return e.complete(ctx, job, now)
	}

	cancelled, err := e.cancelRequested(ctx, job.ID)
	if err != nil {
		return nil, err
	}
	if cancelled {
		return e.finishCancelled(ctx, job, now)
	}

	return e.runBatch(ctx, job, firms)
}

// Cancel marks the current job cancelled. Articles are kept.
func (e *Engine) Cancel(ctx context.Context) (*Response, error) {
	now := e.now().UTC()

	job, err := e.cancelJob(ctx, now)
	if err != nil {
		return nil, err
	}

	snapshot, err := e.store.UpdateSnapshot(ctx, func(s *model.Snapshot) {
		s.JobStatus = model.StatusCancelled
		if s.LastUpdated == nil {
			s.LastUpdated = &now
		}
	})
	if err != nil {
		return nil, err
	}

	return BuildResponse(snapshot, job, model.StatusCancelled, nil), nil
}

// Clear cancels any job and replaces the snapshot with an empty one.
func (e *Engine) Clear(ctx context.Context) (*Response, error) {
	if _, err := e.Cancel(ctx); err != nil {
		return nil, err
	}

	job, err := e.store.LoadJob(ctx)
	if err != nil {
		return nil, err
	}

	empty := model.EmptySnapshot()
	empty.JobStatus = model.StatusIdle
	if err := e.store.SaveSnapshot(ctx, empty); err != nil {
		return nil, err
	}

	status := model.StatusIdle
	if job != nil && job.CancelRequested {
		status = model.StatusCancelled
	}

	slog.Info("news data cleared")
	return BuildResponse(empty, job, status, nil), nil
}

func (e *Engine) current(ctx context.Context) (*Response, error) {
	snapshot, err := e.store.LoadSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	job, err := e.store.LoadJob(ctx)
	if err != nil {
		return nil, err
	}
	return BuildResponse(snapshot, job, job.Status(), nil), nil
}

func (e *Engine) fresh(snapshot *model.Snapshot, now time.Time) bool {
	if snapshot == nil || snapshot.LastUpdated == nil || e.opts.Cooldown <= 0 {
		return false
	}
	return now.Sub(*snapshot.LastUpdated) < e.opts.Cooldown
}

func cooledDown(snapshot *model.Snapshot, job *model.Job) *Response {
	view := *snapshot
	view.JobStatus = model.StatusComplete

	var finished *model.Job
	if job != nil && job.CompletedAt != nil {
		finished = job
	}
	return BuildResponse(&view, finished, model.StatusComplete, nil)
}

// startJob replaces previous with a fresh job at cursor 0. The write is
// checked against previous's revision so two invocations cannot both start
// one. Existing articles stay as the merge base; errors start over.
func (e *Engine) startJob(ctx context.Context, previous *model.Job, total int, leaseID string, now time.Time) (*model.Job, error) {
	job := &model.Job{
		ID:         e.newJobID(),
		TotalFirms: total,
		BatchSize:  e.opts.BatchSize,
		StartedAt:  now,
	}
	if previous != nil {
		job.Revision = previous.Revision
	}
	claim(job, leaseID, now.Add(e.opts.Lease))

	if err := e.store.SaveJob(ctx, job); err != nil {
		return nil, err
	}

	_, err := e.store.UpdateSnapshot(ctx, func(s *model.Snapshot) {
		s.Errors = nil
		s.JobID = job.ID
		s.JobStatus = model.StatusRunning
	})
	if err != nil {
		return nil, err
	}

	slog.Info("news refresh job started", "job_id", job.ID, "total_firms", total, "batch_size", job.BatchSize)
	return job, nil
}

// complete finishes a job whose cursor is already at the end, which happens
// when there are no firms or a previous invocation died before marking it.
func (e *Engine) complete(ctx context.Context, job *model.Job, now time.Time) (*Response, error) {
	if job.CompletedAt == nil {
		job.CompletedAt = &now
	}
	release(job)

	if err := e.store.SaveJob(ctx, job); err != nil {
		if errors.Is(err, repository.ErrJobConflict) {
			return e.current(ctx)
		}
		return nil, err
	}

	snapshot, err := e.store.UpdateSnapshot(ctx, func(s *model.Snapshot) {
		s.JobID = job.ID
		s.JobStatus = model.StatusComplete
		if s.LastUpdated == nil {
			s.LastUpdated = job.CompletedAt
		}
	})
	if err != nil {
		return nil, err
	}

	return BuildResponse(snapshot, job, model.StatusComplete, nil), nil
}

func (e *Engine) finishCancelled(ctx context.Context, job *model.Job, now time.Time) (*Response, error) {
	job.CancelRequested = true
	if job.CompletedAt == nil {
		job.CompletedAt = &now
	}
	release(job)

	snapshot, err := e.store.UpdateSnapshot(ctx, func(s *model.Snapshot) {
		s.JobStatus = model.StatusCancelled
		if s.LastUpdated == nil {
			s.LastUpdated = job.CompletedAt
		}
	})
	if err != nil {
		return nil, err
	}

	if err := e.clearJob(ctx, job.ID); err != nil {
		return nil, err
	}

	slog.Info("news refresh job cancelled", "job_id", job.ID, "next_index", job.NextIndex)
	return BuildResponse(snapshot, job, model.StatusCancelled, nil), nil
}

func (e *Engine) runBatch(ctx context.Context, job *model.Job, firms []string) (*Response, error) {
	start := job.NextIndex
	end := min(job.TotalFirms, start+job.BatchSize)

	batch, err := e.fetchBatch(ctx, job, firms[start:end])
	if err != nil {
		return nil, err
	}

	// Whatever was fetched is persisted even if the caller went away.
	ctx = context.WithoutCancel(ctx)

	cancelled := batch.cancelled
	if !cancelled && !batch.superseded {
		if cancelled, err = e.cancelRequested(ctx, job.ID); err != nil {
			return nil, err
		}
	}

	batchAt := e.now().UTC()
	next := start + batch.processed
	job.NextIndex = next
	job.Processed = next
	job.BatchSize = e.opts.BatchSize
	job.LastBatchAt = &batchAt
	release(job)

	status := model.StatusRunning
	switch {
	case cancelled:
		status = model.StatusCancelled
		job.CancelRequested = true
		if job.CompletedAt == nil {
			job.CompletedAt = &batchAt
		}
	case job.Exhausted():
		status = model.StatusComplete
		job.CompletedAt = &batchAt
	}

	var known map[string]bool
	snapshot, err := e.store.UpdateSnapshot(ctx, func(s *model.Snapshot) {
		known = make(map[string]bool, len(s.Items))
		for _, a := range s.Items {
			known[a.ID] = true
		}
		s.Items = MergeArticles(s.Items, batch.items, e.opts.PerFirmCap)
		s.Errors = MergeErrors(s.Errors, batch.errors, e.opts.MaxErrors)
		s.LastUpdated = &batchAt
		// a newer job owns the status fields
		if s.JobID == "" || s.JobID == job.ID {
			s.JobID = job.ID
			s.JobStatus = status
		}
	})
	if err != nil {
		return nil, err
	}

	delta := &BatchDelta{
		Firms:     firms[start:next],
		NewItems:  newItemIDs(batch.items, known),
		Errors:    batch.errors,
		Range:     BatchRange{Start: start, End: next},
		Cancelled: status == model.StatusCancelled,
		Complete:  status == model.StatusComplete,
	}

	if status == model.StatusCancelled {
		if err := e.clearJob(ctx, job.ID); err != nil {
			return nil, err
		}
		slog.Info("news refresh job cancelled mid-batch", "job_id", job.ID, "next_index", next)
		return BuildResponse(snapshot, job, status, delta), nil
	}

	if err := e.store.SaveJob(ctx, job); err != nil {
		if !errors.Is(err, repository.ErrJobConflict) {
			return nil, err
		}
		return e.resolveConflict(ctx, job, delta, batchAt)
	}

	slog.Info("news batch processed",
		"job_id", job.ID,
		"start", start,
		"end", next,
		"total", job.TotalFirms,
		"new_items", len(delta.NewItems),
		"errors", len(batch.errors),
		"status", status,
	)
	return BuildResponse(snapshot, job, status, delta), nil
}

// resolveConflict runs when the end-of-batch job write lost a race. The
// merged articles are already stored; a cancel that landed during the batch
// still wins.
func (e *Engine) resolveConflict(ctx context.Context, job *model.Job, delta *BatchDelta, at time.Time) (*Response, error) {
	stored, err := e.store.LoadJob(ctx)
	if err != nil {
		return nil, err
	}

	if stored != nil && stored.ID == job.ID && stored.CancelRequested {
		delta.Cancelled = true
		delta.Complete = false
		job.CompletedAt = stored.CompletedAt
		resp, err := e.finishCancelled(ctx, job, at)
		if err != nil {
			return nil, err
		}
		resp.Batch = delta
		return resp, nil
	}

	slog.Warn("job advanced by another invocation, keeping merged batch", "job_id", job.ID)
	delta.Complete = false
	snapshot, err := e.store.LoadSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	return BuildResponse(snapshot, stored, stored.Status(), delta), nil
}

type batchResult struct {
	items      []model.Article
	errors     []model.ErrorEntry
	processed  int
	cancelled  bool
	superseded bool
}

// fetchBatch fetches firms one at a time. A failing firm is recorded and
// counted as processed. Before every firm the stored job is re-read: the
// batch stops when it was cancelled, replaced or taken over, and the lease
// is renewed once half of it has run out.
func (e *Engine) fetchBatch(ctx context.Context, job *model.Job, firms []string) (batchResult, error) {
	var result batchResult

	for _, firm := range firms {
		if ctx.Err() != nil {
			slog.Warn("request done, stopping batch early", "job_id", job.ID, "processed", result.processed)
			break
		}

		stored, err := e.store.LoadJob(ctx)
		if err != nil {
			return result, err
		}
		if stored != nil && stored.ID == job.ID && stored.CancelRequested {
			result.cancelled = true
			break
		}
		if stored == nil || stored.ID != job.ID || stored.LeaseID != job.LeaseID {
			slog.Warn("job superseded, stopping batch", "job_id", job.ID, "processed", result.processed)
			result.superseded = true
			break
		}

		renewed, err := e.renewLease(ctx, job)
		if err != nil {
			return result, err
		}
		if !renewed {
			result.superseded = true
			break
		}

		articles, err := e.fetcher.FetchForFirm(ctx, firm)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			slog.Warn("firm news fetch failed", "firm", firm, "error", err)
			result.errors = append(result.errors, model.ErrorEntry{
				Firm:    firm,
				Message: err.Error(),
				At:      e.now().UTC(),
			})
		} else {
			result.items = append(result.items, articles...)
		}
		result.processed++
	}

	return result, nil
}

// renewLease extends the batch lease when less than half of it is left. It
// reports false when the job changed underneath and the batch must stop.
func (e *Engine) renewLease(ctx context.Context, job *model.Job) (bool, error) {
	now := e.now().UTC()
	if job.LeaseUntil != nil && job.LeaseUntil.Sub(now) > e.opts.Lease/2 {
		return true, nil
	}

	claim(job, job.LeaseID, now.Add(e.opts.Lease))
	err := e.store.SaveJob(ctx, job)
	if errors.Is(err, repository.ErrJobConflict) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (e *Engine) cancelRequested(ctx context.Context, jobID string) (bool, error) {
	stored, err := e.store.LoadJob(ctx)
	if err != nil {
		return false, err
	}
	return stored != nil && stored.ID == jobID && stored.CancelRequested, nil
}

func (e *Engine) cancelJob(ctx context.Context, now time.Time) (*model.Job, error) {
	for attempt := 0; attempt < cancelAttempts; attempt++ {
		job, err := e.store.LoadJob(ctx)
		if err != nil {
			return nil, err
		}
		if job == nil {
			return nil, nil
		}
		if job.CancelRequested && job.CompletedAt != nil {
			return job, nil
		}

		job.CancelRequested = true
		if job.CompletedAt == nil {
			job.CompletedAt = &now
		}

		err = e.store.SaveJob(ctx, job)
		if errors.Is(err, repository.ErrJobConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}

		slog.Info("news refresh job cancel requested", "job_id", job.ID)
		return job, nil
	}

	return nil, fmt.Errorf("cancel job: %w", repository.ErrJobConflict)
}

// clearJob drops the job record if it still belongs to jobID.
func (e *Engine) clearJob(ctx context.Context, jobID string) error {
	stored, err := e.store.LoadJob(ctx)
	if err != nil {
		return err
	}
	if stored == nil || stored.ID != jobID {
		return nil
	}
	return e.store.ClearJob(ctx)
}

func claim(job *model.Job, leaseID string, until time.Time) {
	job.LeaseID = leaseID
	job.LeaseUntil = &until
}

func release(job *model.Job) {
	job.LeaseID = ""
	job.LeaseUntil = nil
}

func newItemIDs(items []model.Article, known map[string]bool) []string {
	ids := []string{}
	seen := make(map[string]bool, len(items))
	for _, a := range items {
		if a.ID == "" || known[a.ID] || seen[a.ID] {
			continue
		}
		seen[a.ID] = true
		ids = append(ids, a.ID)
	}
	return ids
}
