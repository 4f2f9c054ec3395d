package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/bus_fabric_sim/config"
	"github.com/example/bus_fabric_sim/internal/logging"
)

const defaultPreset = "round_robin_4"

var rootCmd = &cobra.Command{
	Use:   "busfabric",
	Short: "Cycle-accurate simulator of a multi-master on-chip bus fabric",
	Long: `busfabric simulates masters and slaves connected through valid/ready
channels, per-slave arbiters and bounded outstanding tables.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to a YAML or JSON fabric configuration")
	rootCmd.PersistentFlags().StringP("preset", "p", "", "Built-in configuration name (see 'busfabric presets')")
}

func newLogger(cmd *cobra.Command) (*slog.Logger, error) {
	levelName, _ := cmd.Flags().GetString("log-level")
	level, err := logging.ParseLevel(levelName)
	if err != nil {
		return nil, err
	}
	return logging.NewWithWriter(cmd.ErrOrStderr(), level), nil
}

// loadFile resolves --config and --preset. With neither set the default
// preset is used.
func loadFile(cmd *cobra.Command) (*config.File, string, error) {
	path, _ := cmd.Flags().GetString("config")
	name, _ := cmd.Flags().GetString("preset")
	switch {
	case path != "" && name != "":
		return nil, "", fmt.Errorf("--config and --preset cannot be used together")
	case path != "":
		f, err := config.Load(path)
		return f, path, err
	case name == "":
		name = defaultPreset
	}
	f, err := config.PresetByName(name)
	return f, name, err
}
