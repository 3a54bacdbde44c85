package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/tendril"
)

var parseCmd = &cobra.Command{
	Use:   "parse <condition>",
	Short: "Parse a condition and print its canonical form",
	Long: `Parses a condition without evaluating it. With --natural, text outside the
grammar is accepted as a natural-language element reference.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine := tendril.New(tendril.WithNaturalLanguage(cfg.Evaluation.Natural))
		x, err := engine.Parse(strings.Join(args, " "))
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{
				"canonical": engine.Format(x),
				"kind":      x.Kind(),
				"tree":      x,
			})
		}
		fmt.Fprintln(out, engine.Format(x))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(parseCmd)
	parseCmd.Flags().Bool("json", false, "Print the expression tree as JSON")
}
