package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/driftgate/driftgate/internal/config"
	"github.com/driftgate/driftgate/internal/logging"
)

var (
	// Version information (set by build flags)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	cfgFile string
	verbose bool
	logger  *logrus.Logger
	cfg     *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "driftgate",
	Short: "DriftGate - cross-layer drift detection for change sets",
	Long: `DriftGate analyzes a change set across API specs, SQL migrations,
infrastructure code, configuration and application source, correlates the
findings across layers, and gates the merge on high-severity drift.`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger = logrus.New()
		level := logging.INFO
		if verbose {
			logger.SetLevel(logrus.DebugLevel)
			level = logging.DEBUG
		} else {
			logger.SetLevel(logrus.InfoLevel)
		}
		logging.Initialize(logging.Config{Level: level})

		path := cfgFile
		if path == "" {
			if _, err := os.Stat(".driftgate.yaml"); err == nil {
				path = ".driftgate.yaml"
			}
		}

		var err error
		cfg, err = config.Load(path)
		if err != nil {
			logger.WithError(err).Warn("Failed to load config, using defaults")
			cfg = config.Default()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: .driftgate.yaml if present)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.SetVersionTemplate(`DriftGate {{.Version}}
Build time: ` + BuildTime + `
Git commit: ` + GitCommit + `
`)

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(tokenCmd)
}
