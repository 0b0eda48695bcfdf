package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/furrow"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of furrow",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("furrow version %s\n", furrow.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
