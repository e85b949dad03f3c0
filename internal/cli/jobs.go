package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/cuongbtq/openmusic/internal/api/storage"
	"github.com/cuongbtq/openmusic/internal/domain"
	"github.com/spf13/cobra"
)

// NewJobsRootCmd groups the job inspection commands
func NewJobsRootCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "jobs",
		Short: "Inspect export jobs",
	}
}

// NewJobsGetCmd prints one export job by id
func NewJobsGetCmd(rt *Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "get <jobID>",
		Short: "Show one export job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := rt.Database()
			if err != nil {
				return err
			}

			job, err := storage.NewStorage(db.GetDB()).GetJobByID(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			printJob(cmd.OutOrStdout(), job)
			return nil
		},
	}
}

// NewJobsListCmd prints the newest export jobs, optionally filtered by status
func NewJobsListCmd(rt *Runtime) *cobra.Command {
	var (
		status string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List export jobs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if status != "" && !domain.ValidStatus(status) {
				return fmt.Errorf("unknown status %q", status)
			}

			db, err := rt.Database()
			if err != nil {
				return err
			}

			jobs, err := storage.NewStorage(db.GetDB()).ListJobs(cmd.Context(), storage.JobFilter{
				Status:   status,
				PageSize: limit,
			})
			if err != nil {
				return err
			}
			if len(jobs) > limit {
				jobs = jobs[:limit]
			}

			printJobs(cmd.OutOrStdout(), jobs)
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by status (pending,processing,completed,failed)")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of jobs to show")
	return cmd
}

func printJob(w io.Writer, job *domain.ExportJob) {
	fmt.Fprintf(w, "id:         %s\n", job.ID)
	fmt.Fprintf(w, "playlist:   %s\n", job.PlaylistID)
	fmt.Fprintf(w, "email:      %s\n", job.RequesterEmail)
	fmt.Fprintf(w, "status:     %s\n", job.Status)
	fmt.Fprintf(w, "attempts:   %d\n", job.Attempts)
	if job.LastError != "" {
		fmt.Fprintf(w, "last error: %s\n", job.LastError)
	}
	fmt.Fprintf(w, "created:    %s\n", job.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "updated:    %s\n", job.UpdatedAt.Format(time.RFC3339))
}

func printJobs(w io.Writer, jobs []domain.ExportJob) {
	if len(jobs) == 0 {
		fmt.Fprintln(w, "No jobs found.")
		return
	}

	for _, j := range jobs {
		fmt.Fprintf(w, "%s | %-10s | attempts=%d | playlist=%s | %s\n",
			j.ID, j.Status, j.Attempts, j.PlaylistID, j.CreatedAt.Format(time.RFC3339))
	}
}
