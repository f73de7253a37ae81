// Package cli is the engram cobra command tree.
package cli

import (
	"github.com/spf13/cobra"
)

var (
	flagConfig   string
	flagSnapshot string
)

var rootCmd = &cobra.Command{
	Use:   "engram",
	Short: "Tiered memory retention for AI assistants",
	Long: "Engram keeps an assistant's memories in five fidelity tiers, decaying " +
		"them with a six-factor retention weight: old records compress, near-duplicates " +
		"merge, and only what the user never touches again is eventually forgotten.",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to config file (default: engram.yaml in . or ~/.config/engram)")
	rootCmd.PersistentFlags().StringVar(&flagSnapshot, "snapshot", "", "Path to the snapshot database (default: ~/.engram/engram.db)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(maintainCmd)
	rootCmd.AddCommand(explainCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
}
