package main

import (
	"fmt"
	"os"

	"github.com/cuemby/autoscaler/pkg/config"
	"github.com/cuemby/autoscaler/pkg/log"
	"github.com/spf13/cobra"

	// embedded zoneinfo so AUTOSCALER_TIMEZONE resolves on minimal images
	_ "time/tzdata"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "autoscaler",
	Short: "Autoscaler - time-of-day formation scheduler",
	Long: `Autoscaler resizes a fixed roster of Heroku and DigitalOcean apps
according to a weekly plan stored in a local plan store, and restarts
apps that report a restart flag on their /restart endpoint.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Autoscaler version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error); overrides LOG_LEVEL")
	rootCmd.PersistentFlags().Bool("log-json", false, "Emit JSON logs; overrides LOG_JSON")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(compileCmd)
}

// loadConfig reads the environment and initializes logging from it and
// the persistent flags
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.LogLevel = lvl
	}
	if cmd.Flags().Changed("log-json") {
		cfg.LogJSON, _ = cmd.Flags().GetBool("log-json")
	}

	log.Init(log.Config{
		Level:      log.ParseLevel(cfg.LogLevel),
		JSONOutput: cfg.LogJSON,
	})
	return cfg, nil
}
