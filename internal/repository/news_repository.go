package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aashrilshazar/WorldSalesMap/internal/model"
)

const (
	SnapshotKey = "news:snapshot:v1"
	JobKey      = "news:job:v1"

	snapshotUpdateAttempts = 5
)

// ErrJobConflict means the stored job revision is not the one the caller
// loaded: another invocation advanced, cancelled or replaced the job.
var ErrJobConflict = errors.New("news job was modified by another invocation")

// NewsRepository persists the article snapshot and the refresh job record.
type NewsRepository struct {
	kv          KV
	snapshotTTL time.Duration
	jobTTL      time.Duration
	now         func() time.Time
}

func NewNewsRepository(kv KV, snapshotTTL, jobTTL time.Duration) *NewsRepository {
	return &NewsRepository{
		kv:          kv,
		snapshotTTL: snapshotTTL,
		jobTTL:      jobTTL,
		now:         time.Now,
	}
}

// LoadSnapshot returns nil when no snapshot is stored or the stored value is
// unreadable.
func (r *NewsRepository) LoadSnapshot(ctx context.Context) (*model.Snapshot, error) {
	value, found, err := r.kv.Get(ctx, SnapshotKey)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	if !found {
		return nil, nil
	}
	return decode[model.Snapshot](SnapshotKey, value), nil
}

func (r *NewsRepository) SaveSnapshot(ctx context.Context, snapshot *model.Snapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := r.kv.Set(ctx, SnapshotKey, string(data), r.snapshotTTL); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// UpdateSnapshot applies fn to the stored snapshot (an empty one when absent)
// and writes the result atomically, retrying when a concurrent write lands
// in between.
func (r *NewsRepository) UpdateSnapshot(ctx context.Context, fn func(s *model.Snapshot)) (*model.Snapshot, error) {
	var updated *model.Snapshot

	for attempt := 0; attempt < snapshotUpdateAttempts; attempt++ {
		err := r.kv.Update(ctx, SnapshotKey, r.snapshotTTL, func(cur string, found bool) (string, error) {
			var snapshot *model.Snapshot
			if found {
				snapshot = decode[model.Snapshot](SnapshotKey, cur)
			}
			if snapshot == nil {
				snapshot = model.EmptySnapshot()
			}

			fn(snapshot)

			data, err := json.Marshal(snapshot)
			if err != nil {
				return "", fmt.Errorf("encode snapshot: %w", err)
			}
			updated = snapshot
			return string(data), nil
		})
		if errors.Is(err, ErrConflict) {
			slog.Debug("snapshot changed during update, retrying", "attempt", attempt+1)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("update snapshot: %w", err)
		}
		return updated, nil
	}

	return nil, fmt.Errorf("update snapshot: %w", ErrConflict)
}

func (r *NewsRepository) ClearSnapshot(ctx context.Context) error {
	if err := r.kv.Del(ctx, SnapshotKey); err != nil {
		return fmt.Errorf("clear snapshot: %w", err)
	}
	return nil
}

func (r *NewsRepository) LoadJob(ctx context.Context) (*model.Job, error) {
	value, found, err := r.kv.Get(ctx, JobKey)
	if err != nil {
		return nil, fmt.Errorf("load job: %w", err)
	}
	if !found {
		return nil, nil
	}
	return decode[model.Job](JobKey, value), nil
}

// SaveJob writes job only if the stored revision still equals job.Revision
// (an absent or unreadable record counts as revision 0). On success the
// revision is bumped and UpdatedAt stamped on job itself.
func (r *NewsRepository) SaveJob(ctx context.Context, job *model.Job) error {
	next := *job
	next.Revision = job.Revision + 1
	next.UpdatedAt = r.now().UTC()

	err := r.kv.Update(ctx, JobKey, r.jobTTL, func(cur string, found bool) (string, error) {
		var stored int64
		if found {
			if existing := decode[model.Job](JobKey, cur); existing != nil {
				stored = existing.Revision
			}
		}
		if stored != job.Revision {
			return "", ErrJobConflict
		}

		data, err := json.Marshal(&next)
		if err != nil {
			return "", fmt.Errorf("encode job: %w", err)
		}
		return string(data), nil
	})
	if errors.Is(err, ErrConflict) {
		err = ErrJobConflict
	}
	if err != nil {
		if errors.Is(err, ErrJobConflict) {
			return err
		}
		return fmt.Errorf("save job: %w", err)
	}

	job.Revision = next.Revision
	job.UpdatedAt = next.UpdatedAt
	return nil
}

func (r *NewsRepository) ClearJob(ctx context.Context) error {
	if err := r.kv.Del(ctx, JobKey); err != nil {
		return fmt.Errorf("clear job: %w", err)
	}
	return nil
}

func decode[T any](key, value string) *T {
	var v T
	if err := json.Unmarshal([]byte(value), &v); err != nil {
		slog.Warn("failed to parse stored news payload", "key", key, "error", err)
		return nil
	}
	return &v
}
