// Package cli provides the shorts-pipeline command line.
package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"shorts-pipeline/config"
	"shorts-pipeline/logging"
)

const defaultConfigPath = "config.yaml"

var (
	// Version is set at build time.
	Version = "0.1.0"

	configPath string
	logLevel   string

	cfg    *config.Config
	logger *zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "shorts-pipeline",
	Short: "Turn raw narrated videos into platform shorts and publish them on schedule",
	Long: `shorts-pipeline watches an input folder for raw videos, renders one short per
platform with timed subtitles and a call-to-action, and publishes the results
within each platform's daily quota and minimum upload interval.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "version" {
			return nil
		}
		loaded, err := loadConfig(configPath, cmd.Flags().Changed("config"))
		if err != nil {
			return err
		}
		if logLevel != "" {
			loaded.Log.Level = logLevel
		}
		cfg = loaded
		logger = logging.NewWithWriter(cfg.Log, cmd.ErrOrStderr())
		return nil
	},
}

// loadConfig falls back to defaults when the default config file is absent;
// an explicitly named file must exist.
func loadConfig(path string, explicit bool) (*config.Config, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) && !explicit {
		return config.Load("")
	}
	c, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return c, nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config.yaml")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log.level (trace|debug|info|warn|error)")
}
