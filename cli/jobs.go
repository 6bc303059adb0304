package cli

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"shorts-pipeline/types"
)

var jobsStatus string

var jobsCmd = &cobra.Command{
	Use:   "jobs [job-id]",
	Short: "List jobs or inspect one",
	Long: `List all jobs or inspect a specific job by ID.

Examples:
  shorts-pipeline jobs                    # List all jobs
  shorts-pipeline jobs --status failed    # Only failed jobs
  shorts-pipeline jobs clip_20260601_...  # Show one job`,
	Args: cobra.MaximumNArgs(1),
	RunE: runJobs,
}

var jobsRetryNow bool

var jobsRetryCmd = &cobra.Command{
	Use:   "retry <job-id>",
	Short: "Return a failed job to detected and process it",
	Long: `Return a failed job to detected. Platforms that already rendered keep their
output; failed ones are rendered again. The job is processed immediately
unless --run=false is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runJobsRetry,
}

func init() {
	jobsCmd.Flags().StringVar(&jobsStatus, "status", "", "filter by status (detected|processing|completed|failed)")
	jobsRetryCmd.Flags().BoolVar(&jobsRetryNow, "run", true, "process the job right away (--run=false only resets it)")
	jobsCmd.AddCommand(jobsRetryCmd)
	rootCmd.AddCommand(jobsCmd)
}

func runJobs(cmd *cobra.Command, args []string) error {
	m := newMachine()
	out := cmd.OutOrStdout()
	if len(args) == 1 {
		rec, err := m.Store().Load(args[0])
		if err != nil {
			return err
		}
		printJob(out, rec)
		return nil
	}

	recs, err := m.Store().List()
	if err != nil {
		logger.Warn().Err(err).Msg("some job records unreadable")
	}
	var shown int
	for _, rec := range recs {
		if jobsStatus != "" && string(rec.Status) != jobsStatus {
			continue
		}
		if shown == 0 {
			fmt.Fprintf(out, "%-40s %-11s %-20s %s\n", "ID", "STATUS", "DETECTED", "PLATFORMS")
		}
		shown++
		fmt.Fprintf(out, "%-40s %-11s %-20s %s\n", rec.ID, rec.Status, rec.DetectedAt.Format("2006-01-02 15:04:05"), platformSummary(rec))
	}
	if shown == 0 {
		fmt.Fprintln(out, "No jobs found")
	}
	return nil
}

// platformSummary renders "youtube:done instagram:failed"
func platformSummary(rec types.JobRecord) string {
	var s string
	for i, p := range rec.Platforms {
		if i > 0 {
			s += " "
		}
		s += p + ":" + shortStatus(rec.PerPlatformResults[p].Status)
	}
	return s
}

func shortStatus(s types.PlatformStatus) string {
	switch s {
	case types.PlatformDone:
		return "done"
	case types.PlatformFailed:
		return "failed"
	default:
		return "pending"
	}
}

func printJob(out io.Writer, rec types.JobRecord) {
	fmt.Fprintf(out, "Job: %s\n", rec.ID)
	fmt.Fprintf(out, "  Source: %s\n", rec.SourcePath)
	fmt.Fprintf(out, "  Status: %s\n", rec.Status)
	fmt.Fprintf(out, "  Detected: %s\n", rec.DetectedAt.Format(time.RFC3339))
	fmt.Fprintf(out, "  Attempts: %d\n", rec.Attempts)
	if rec.Error != "" {
		fmt.Fprintf(out, "  Error: %s\n", rec.Error)
	}
	if rec.SourceInfo != nil {
		fmt.Fprintf(out, "  Source info: %.1fs %dx%d audio=%t\n", rec.SourceInfo.Duration, rec.SourceInfo.Width, rec.SourceInfo.Height, rec.SourceInfo.HasAudio)
	}
	if rec.SubtitlesGenerated {
		fmt.Fprintf(out, "  Subtitles: %s\n", rec.SubtitlePath)
	}
	platforms := append([]string(nil), rec.Platforms...)
	sort.Strings(platforms)
	for _, p := range platforms {
		res := rec.PerPlatformResults[p]
		line := fmt.Sprintf("  %s: %s", p, shortStatus(res.Status))
		if res.OutputPath != "" {
			line += " " + res.OutputPath
		}
		if res.Error != "" {
			line += " (" + res.Error + ")"
		}
		fmt.Fprintln(out, line)
	}
}

func runJobsRetry(cmd *cobra.Command, args []string) error {
	m := newMachine()
	rec, err := m.Store().Load(args[0])
	if err != nil {
		return err
	}
	if rec, err = m.Retry(rec); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s reset to %s\n", rec.ID, rec.Status)
	if !jobsRetryNow {
		return nil
	}

	proc, err := newProcessor(m)
	if err != nil {
		return err
	}
	if err := proc.Process(cmd.Context(), rec); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s completed\n", rec.ID)
	return nil
}
