package newsjob

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aashrilshazar/WorldSalesMap/internal/model"
)

type Stepper interface {
	Refresh(ctx context.Context, force bool) (*Response, error)
}

// RunToCompletion keeps issuing forced refreshes, pausing between steps,
// until the job is no longer running.
func RunToCompletion(ctx context.Context, s Stepper, maxSteps int, pause time.Duration) (*Response, error) {
	var last *Response

	for step := 1; step <= maxSteps; step++ {
		res, err := s.Refresh(ctx, true)
		if err != nil {
			return last, fmt.Errorf("refresh step %d: %w", step, err)
		}
		last = res

		attrs := []any{"step", step, "status", res.Status, "items", len(res.Items)}
		if res.Job != nil {
			attrs = append(attrs, "job_id", res.Job.ID, "processed", res.Job.ProcessedFirms, "total", res.Job.TotalFirms)
		}
		slog.Info("refresh step finished", attrs...)

		if res.Status != model.StatusRunning {
			return res, nil
		}

		select {
		case <-ctx.Done():
			return res, ctx.Err()
		case <-time.After(pause):
		}
	}

	return last, fmt.Errorf("job still running after %d steps", maxSteps)
}
