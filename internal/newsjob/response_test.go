package newsjob

import (
	"testing"

	"github.com/go-playground/assert/v2"

	"github.com/aashrilshazar/WorldSalesMap/internal/model"
)

func TestBuildResponse_EmptyStore(t *testing.T) {
	resp := BuildResponse(nil, nil, model.StatusIdle, nil)

	assert.Equal(t, 0, len(resp.Items))
	assert.Equal(t, true, resp.Items != nil)
	assert.Equal(t, true, resp.LastUpdated == nil)
	assert.Equal(t, true, resp.Errors == nil)
	assert.Equal(t, model.StatusIdle, resp.Status)
	assert.Equal(t, true, resp.Job == nil)
	assert.Equal(t, true, resp.Batch == nil)
}

func TestBuildResponse_SortsWithoutMutating(t *testing.T) {
	snapshot := &model.Snapshot{
		Items:  []model.Article{article("old", "Acme", 5), article("new", "Acme", 1)},
		Errors: []model.ErrorEntry{},
	}

	resp := BuildResponse(snapshot, nil, model.StatusRunning, nil)

	assert.Equal(t, []string{"new", "old"}, ids(resp.Items))
	assert.Equal(t, []string{"old", "new"}, ids(snapshot.Items))
	assert.Equal(t, true, resp.Errors == nil)
}

func TestBuildResponse_SnapshotStatusWithoutJob(t *testing.T) {
	snapshot := &model.Snapshot{JobStatus: model.StatusCancelled}

	assert.Equal(t, model.StatusCancelled, BuildResponse(snapshot, nil, model.StatusIdle, nil).Status)

	job := &model.Job{ID: "job_1", TotalFirms: 4}
	assert.Equal(t, model.StatusRunning, BuildResponse(snapshot, job, model.StatusRunning, nil).Status)
}

func TestBuildResponse_PercentComplete(t *testing.T) {
	tests := []struct {
		name      string
		processed int
		total     int
		want      *int
	}{
		{name: "one third", processed: 1, total: 3, want: intPtr(33)},
		{name: "two thirds", processed: 2, total: 3, want: intPtr(67)},
		{name: "done", processed: 25, total: 25, want: intPtr(100)},
		{name: "clamped", processed: 30, total: 25, want: intPtr(100)},
		{name: "no firms", processed: 0, total: 0, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := &model.Job{ID: "job_1", TotalFirms: tt.total, Processed: tt.processed, NextIndex: tt.processed}

			info := BuildResponse(nil, job, model.StatusRunning, nil).Job

			assert.Equal(t, tt.want, info.PercentComplete)
			assert.Equal(t, tt.processed, info.ProcessedFirms)
		})
	}
}

func intPtr(v int) *int {
	return &v
}
