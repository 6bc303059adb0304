package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"shorts-pipeline/logging"
	"shorts-pipeline/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the operator HTTP API (health, metrics, jobs, upload decisions)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		store, closeStore, err := newUploadStore(ctx)
		if err != nil {
			return err
		}
		defer closeStore()

		srv := server.NewServer(cfg.Server.Addr, newMachine(), newScheduler(store), logging.Component(logger, "server"))
		return srv.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
