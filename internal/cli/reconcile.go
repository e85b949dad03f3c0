package cli

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/cuongbtq/openmusic/internal/api/storage"
	"github.com/cuongbtq/openmusic/internal/producer"
	"github.com/spf13/cobra"
)

// NewReconcileCmd republishes export jobs left pending after a failed publish
func NewReconcileCmd(rt *Runtime) *cobra.Command {
	var (
		olderThan time.Duration
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Republish export jobs stuck in pending",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rt.Config()
			if err != nil {
				return err
			}
			if olderThan <= 0 {
				olderThan = cfg.Export.ReconcileAfter
			}
			if limit <= 0 {
				limit = cfg.Export.ReconcileBatch
			}

			db, err := rt.Database()
			if err != nil {
				return err
			}
			broker, err := rt.Broker()
			if err != nil {
				return err
			}
			logger, err := rt.Logger()
			if err != nil {
				return err
			}

			store := storage.NewStorage(db.GetDB())
			p := producer.New(store, broker, logger)

			report, err := p.Reconcile(cmd.Context(), store, time.Now().Add(-olderThan), limit)
			if err != nil {
				return fmt.Errorf("reconcile failed: %w", err)
			}

			printReport(cmd.OutOrStdout(), report)
			if len(report.Failed) > 0 {
				return fmt.Errorf("%d job(s) could not be republished", len(report.Failed))
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Only republish jobs pending for at least this long (default export.reconcile_after)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of jobs to republish (default export.reconcile_batch)")
	return cmd
}

func printReport(w io.Writer, report *producer.ReconcileReport) {
	if report.Found == 0 {
		fmt.Fprintln(w, "No stale pending jobs.")
		return
	}

	for _, id := range report.Republished {
		fmt.Fprintf(w, "republished %s\n", id)
	}

	failed := make([]string, 0, len(report.Failed))
	for id := range report.Failed {
		failed = append(failed, id)
	}
	sort.Strings(failed)
	for _, id := range failed {
		fmt.Fprintf(w, "failed      %s: %v\n", id, report.Failed[id])
	}

	fmt.Fprintf(w, "%d found, %d republished, %d failed\n",
		report.Found, len(report.Republished), len(report.Failed))
}
