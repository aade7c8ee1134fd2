package cmd

import (
	"fmt"
	"os"

	"github.com/brewbuds/server/config"
	"github.com/spf13/cobra"
)

var cfgPath string

// RootCmd runs the API server when called without a subcommand.
var RootCmd = &cobra.Command{
	Use:   "brewbuds [command] [flags]",
	Short: "BrewBuds coffee social backend",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config/config.yaml", "path to the YAML config file")
}

// Execute is called by main.main.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}
