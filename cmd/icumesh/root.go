package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "icumesh",
	Short: "ICU multi-agent simulation toolkit",
	Long:  "icumesh runs a simulated ICU where autonomous clinical agents monitor synthetic patients and coordinate decisions.",
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
}
