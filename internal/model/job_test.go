package model

import (
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
)

func TestJob_Terminal(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name string
		job  Job
		want bool
	}{
		{name: "running", job: Job{TotalFirms: 5, NextIndex: 2}, want: false},
		{name: "completed", job: Job{CompletedAt: &now}, want: true},
		{name: "cancelled", job: Job{CancelRequested: true}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.job.Terminal())
		})
	}
}

func TestJob_Status(t *testing.T) {
	now := time.Now()

	var nilJob *Job
	assert.Equal(t, StatusIdle, nilJob.Status())
	assert.Equal(t, StatusRunning, (&Job{}).Status())
	assert.Equal(t, StatusComplete, (&Job{CompletedAt: &now}).Status())
	assert.Equal(t, StatusCancelled, (&Job{CompletedAt: &now, CancelRequested: true}).Status())
}

func TestJob_Leased(t *testing.T) {
	now := time.Now()
	until := now.Add(time.Minute)
	job := Job{LeaseID: "lease-a", LeaseUntil: &until}

	assert.Equal(t, true, job.Leased(now, "lease-b"))
	assert.Equal(t, false, job.Leased(now, "lease-a"))
	assert.Equal(t, false, job.Leased(now.Add(2*time.Minute), "lease-b"))
	assert.Equal(t, false, (&Job{}).Leased(now, "lease-b"))
}

func TestArticle_AddTag(t *testing.T) {
	a := Article{}
	a.AddTag(CategoryFund)
	a.AddTag(CategoryFund)
	a.AddTag(CategoryGeneral)

	assert.Equal(t, []string{"fund", "general"}, a.Tags)
	assert.Equal(t, true, a.HasTag(CategoryGeneral))
	assert.Equal(t, false, a.HasTag(CategoryDeal))
}
