package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/tendril"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of Tendril",
	PersistentPreRun: func(*cobra.Command, []string) {},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "Tendril v%s\n", strings.TrimSpace(tendril.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
