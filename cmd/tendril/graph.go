package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/tendril/internal/presentation/graph"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph <test-case-id>",
	Short: "Export a test case as a Mermaid flowchart",
	Long: `Outputs a Mermaid diagram (graph TD) of the steps, branches and loops of a test
case. With --run, the steps of a stored run report are colored by outcome.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		tc, err := a.loader.Load(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		var overlay *graph.Overlay
		if runID, _ := cmd.Flags().GetString("run"); runID != "" {
			report, err := a.reports.Load(cmd.Context(), runID)
			if err != nil {
				return fmt.Errorf("load run %s: %w", runID, err)
			}
			overlay = graph.OverlayFromReport(report)
		}

		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(tc, overlay))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().String("run", "", "Run id whose report overlays the graph")
}
