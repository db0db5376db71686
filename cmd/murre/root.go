package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// version is set at build time
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "murre",
	Short: "A partitioned in-memory map server",
	Long: `murre hosts partitioned in-memory maps with eviction,
expiration, backing store loading and mutation observers.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}
