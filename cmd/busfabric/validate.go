package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a configuration without running it",
	RunE: func(cmd *cobra.Command, args []string) error {
		file, source, err := loadFile(cmd)
		if err != nil {
			return err
		}
		cfg, err := file.FabricConfig()
		if err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		if _, err := file.Generator(cfg); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		if _, err := file.SlavePlugins(cfg); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s is valid: %d masters, %d slaves, %s arbitration\n",
			source, cfg.Masters, len(cfg.Slaves), cfg.Arbiter.Policy)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
