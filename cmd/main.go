package main

import (
	"fmt"
	"os"

	"github.com/1F47E/quadcursor/internal/config"
	"github.com/1F47E/quadcursor/internal/logger"
	"github.com/spf13/cobra"
)

var (
	configFile   string
	sourceTarget string
	verbose      bool
)

var rootCmd = &cobra.Command{
	Use:   "quadcursor",
	Short: "Screen-reader style map cursor that names the features around it",
	Long: `quadcursor keeps a small rectangular cursor at the center of a map view,
splits it into four quadrants and announces the named map features found in each.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			os.Setenv("LOG_LEVEL", "debug")
		}
		logger.Setup()
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().StringVarP(&sourceTarget, "source", "s", "features.geojson",
		"Feature source: a .geojson file, a .gob index or a postgres:// DSN")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	rootCmd.AddCommand(describeCmd, navigateCmd, serveCmd, indexCmd, benchCmd)
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
