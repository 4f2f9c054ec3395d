package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/bus_fabric_sim/config"
)

var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "List built-in configurations",
	RunE: func(cmd *cobra.Command, args []string) error {
		dump, _ := cmd.Flags().GetString("dump")
		if dump != "" {
			f, err := config.PresetByName(dump)
			if err != nil {
				return err
			}
			out, err := f.Marshal()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		}
		for _, p := range config.Presets() {
			fmt.Fprintf(cmd.OutOrStdout(), "%-22s %s\n", p.Name, p.Description)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(presetsCmd)
	presetsCmd.Flags().String("dump", "", "Print the named preset as YAML")
}
