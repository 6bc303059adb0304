package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"shorts-pipeline/upload"
)

var uploadsCmd = &cobra.Command{
	Use:   "uploads",
	Short: "Inspect upload limits and publish rendered videos",
}

var uploadsCheckCmd = &cobra.Command{
	Use:   "check <platform> [account]",
	Short: "Show whether an upload is allowed right now",
	Long: `Evaluate the daily quota and minimum interval for a platform account from the
upload records. Nothing is written.

Examples:
  shorts-pipeline uploads check youtube
  shorts-pipeline uploads check instagram brand-2`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runUploadsCheck,
}

var uploadsRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one publication pass over completed jobs",
	Args:  cobra.NoArgs,
	RunE:  runUploadsRun,
}

func init() {
	uploadsCmd.AddCommand(uploadsCheckCmd, uploadsRunCmd)
	rootCmd.AddCommand(uploadsCmd)
}

func runUploadsCheck(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	account := upload.DefaultAccount
	if len(args) == 2 {
		account = args[1]
	}
	store, closeStore, err := newUploadStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	d := newScheduler(store).CanUpload(ctx, args[0], account, time.Now().UTC())
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s/%s: allowed=%t reason=%s used_today=%d/%d\n",
		args[0], account, d.Allowed, d.Reason, d.UsedToday, d.DailyLimit)
	if d.RetryAfter > 0 {
		fmt.Fprintf(out, "  next slot in %s\n", d.RetryAfter.Round(time.Second))
	}
	if d.Err != nil {
		fmt.Fprintf(out, "  warning: %v\n", d.Err)
	}
	return nil
}

func runUploadsRun(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	store, closeStore, err := newUploadStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	d := newDispatcher(newMachine(), store, newScheduler(store))
	sum, err := d.RunOnce(ctx, time.Now().UTC())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "published=%d failed=%d deferred=%d skipped=%d\n",
		sum.Published, sum.Failed, sum.Deferred, sum.Skipped)
	return nil
}
