package producer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/openmusic/internal/domain"
)

// StaleJobLister finds pending jobs that were never picked up
type StaleJobLister interface {
	ListStalePendingJobs(ctx context.Context, olderThan time.Time, limit int) ([]domain.ExportJob, error)
}

// ReconcileReport summarizes one reconcile run
type ReconcileReport struct {
	Found       int
	Republished []string
	Failed      map[string]error
}

// Reconcile republishes pending jobs created before cutoff. A job whose
// publish was lost stays pending forever otherwise. Jobs are republished
// one by one; a failure is recorded and the sweep continues.
func (p *Producer) Reconcile(ctx context.Context, lister StaleJobLister, cutoff time.Time, limit int) (*ReconcileReport, error) {
	jobs, err := lister.ListStalePendingJobs(ctx, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}

	report := &ReconcileReport{
		Found:  len(jobs),
		Failed: map[string]error{},
	}

	for i := range jobs {
		job := &jobs[i]
		if err := p.Republish(ctx, job); err != nil {
			report.Failed[job.ID] = err
			continue
		}
		report.Republished = append(report.Republished, job.ID)
	}

	p.logger.Info("Reconcile finished",
		slog.Time("cutoff", cutoff),
		slog.Int("found", report.Found),
		slog.Int("republished", len(report.Republished)),
		slog.Int("failed", len(report.Failed)),
	)

	return report, nil
}
