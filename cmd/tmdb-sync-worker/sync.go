package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vipul43/tmdb-sync-worker/internal/models"
	"github.com/vipul43/tmdb-sync-worker/internal/repository"
)

func syncCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Start, inspect or process sync runs",
	}

	cmd.AddCommand(syncStartCmd(c))
	cmd.AddCommand(syncBatchCmd(c))
	cmd.AddCommand(syncStatusCmd(c))
	return cmd
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func syncStartCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a sync run and enqueue its batches",
		RunE: func(cmd *cobra.Command, args []string) error {
			wait, _ := cmd.Flags().GetBool("wait")
			jobName, _ := cmd.Flags().GetString("job")
			if jobName == "" {
				jobName = c.cfg.SyncJobName
			}

			ctx, cancel := signalContext()
			defer cancel()

			a, err := newApp(ctx, c.cfg)
			if err != nil {
				return err
			}
			defer a.close()

			result, err := a.processor.StartSync(ctx, jobName)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if result.Completed {
				fmt.Fprintf(out, "Job %q already at page %d, nothing to enqueue\n", jobName, result.StartPage-1)
				return nil
			}
			fmt.Fprintf(out, "Run %s enqueued %d batches starting at page %d\n", result.RunID, len(result.Batches), result.StartPage)

			if !wait {
				return nil
			}

			if err := a.watcher.Drain(ctx); err != nil {
				return err
			}

			job, err := a.jobs.GetByID(ctx, result.JobID)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Job %q finished with status %s at page %d\n", job.JobName, job.Status, job.LastPageSynced)
			if job.Status == models.SyncStatusFailed {
				return fmt.Errorf("sync run %s failed", result.RunID)
			}
			return nil
		},
	}

	cmd.Flags().Bool("wait", false, "process the enqueued batches before exiting")
	cmd.Flags().String("job", "", "sync job name (defaults to SYNC_JOB_NAME)")
	return cmd
}

func syncBatchCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Fetch and commit one page range outside the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID, _ := cmd.Flags().GetUint("job-id")
			start, _ := cmd.Flags().GetInt("start")
			end, _ := cmd.Flags().GetInt("end")

			if jobID == 0 {
				return errors.New("--job-id is required")
			}
			if start < 1 || end < start {
				return fmt.Errorf("invalid page range %d-%d", start, end)
			}

			ctx, cancel := signalContext()
			defer cancel()

			a, err := newApp(ctx, c.cfg)
			if err != nil {
				return err
			}
			defer a.close()

			job, err := a.jobs.GetByID(ctx, jobID)
			if err != nil {
				return err
			}

			batch := models.BatchDescriptor{
				JobID:      job.ID,
				RunID:      job.RunID(),
				BatchStart: start,
				BatchEnd:   end,
			}
			if err := a.processor.ProcessBatch(ctx, batch); err != nil {
				return err
			}

			job, err = a.jobs.GetByID(ctx, jobID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Batch %s committed, job %q at page %d\n", batch, job.JobName, job.LastPageSynced)
			return nil
		},
	}

	cmd.Flags().Uint("job-id", 0, "sync job id")
	cmd.Flags().Int("start", 0, "first page of the batch")
	cmd.Flags().Int("end", 0, "last page of the batch")
	return cmd
}

func syncStatusCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show checkpoint, run progress and recent errors",
		RunE: func(cmd *cobra.Command, args []string) error {
			jobName, _ := cmd.Flags().GetString("job")
			if jobName == "" {
				jobName = c.cfg.SyncJobName
			}
			limit, _ := cmd.Flags().GetInt("errors")

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			a, err := newApp(ctx, c.cfg)
			if err != nil {
				return err
			}
			defer a.close()

			job, err := a.jobs.GetByName(ctx, jobName)
			if errors.Is(err, repository.ErrSyncJobNotFound) {
				fmt.Fprintf(cmd.OutOrStdout(), "Job %q has never run\n", jobName)
				return nil
			}
			if err != nil {
				return err
			}

			var summary models.RunSummary
			if runID := job.RunID(); runID != "" {
				if summary, err = a.tasks.RunSummary(ctx, runID); err != nil {
					return err
				}
			}

			movies, err := a.movies.Count(ctx)
			if err != nil {
				return err
			}

			recent, err := a.errorLogs.ListRecent(ctx, job.ID, limit)
			if err != nil {
				return err
			}

			return printStatus(cmd.OutOrStdout(), job, summary, movies, recent)
		},
	}

	cmd.Flags().String("job", "", "sync job name (defaults to SYNC_JOB_NAME)")
	cmd.Flags().Int("errors", 10, "number of recent errors to show")
	return cmd
}

func printStatus(out io.Writer, job *models.SyncJob, summary models.RunSummary, movies int64, recent []models.SyncErrorLog) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	fmt.Fprintf(w, "Job:\t%s (id %d)\n", job.JobName, job.ID)
	fmt.Fprintf(w, "Status:\t%s\n", job.Status)
	fmt.Fprintf(w, "Last page synced:\t%d\n", job.LastPageSynced)
	if runID := job.RunID(); runID != "" {
		fmt.Fprintf(w, "Current run:\t%s\n", runID)
		fmt.Fprintf(w, "Batches:\t%d pending, %d processing, %d completed, %d failed, %d cancelled\n",
			summary.Pending, summary.Processing, summary.Completed, summary.Failed, summary.Cancelled)
	}
	if job.LastErrorType != nil {
		msg := ""
		if job.LastErrorMessage != nil {
			msg = *job.LastErrorMessage
		}
		fmt.Fprintf(w, "Last error:\t%s %s%s\n", *job.LastErrorType, formatCode(job.LastErrorCode), msg)
	}
	fmt.Fprintf(w, "Movies:\t%d\n", movies)

	if len(recent) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "OCCURRED\tPAGE\tTYPE\tMESSAGE")
		for _, entry := range recent {
			fmt.Fprintf(w, "%s\t%d\t%s\t%s%s\n",
				entry.OccurredAt.Format(time.RFC3339), entry.Page, entry.ErrorType, formatCode(entry.Code), entry.Message)
		}
	}

	return w.Flush()
}

func formatCode(code *int) string {
	if code == nil {
		return ""
	}
	return fmt.Sprintf("[%d] ", *code)
}
