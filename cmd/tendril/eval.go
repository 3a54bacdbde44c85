package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var evalCmd = &cobra.Command{
	Use:   "eval <condition>",
	Short: "Evaluate a condition against the configured browser page",
	Long: `Evaluates a single condition once. Variables are passed as --var name=value;
values are read as YAML scalars, so --var n=3 is a number and --var ok=true a boolean.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pairs, _ := cmd.Flags().GetStringArray("var")
		vars, err := parseVars(pairs)
		if err != nil {
			return err
		}

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		engine, err := a.engine(true)
		if err != nil {
			return err
		}

		res := engine.Evaluate(cmd.Context(), strings.Join(args, " "), vars)
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
		if !res.Success {
			return fmt.Errorf("evaluation failed: %s", res.Error)
		}
		return nil
	},
}

// parseVars turns name=value pairs into variables, decoding each value as a
// YAML scalar.
func parseVars(pairs []string) (map[string]any, error) {
	vars := make(map[string]any, len(pairs))
	for _, p := range pairs {
		name, raw, ok := strings.Cut(p, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --var %q: want name=value", p)
		}
		var val any
		if err := yaml.Unmarshal([]byte(raw), &val); err != nil || val == nil {
			val = raw
		}
		vars[name] = val
	}
	return vars, nil
}

func init() {
	rootCmd.AddCommand(evalCmd)
	evalCmd.Flags().StringArray("var", nil, "Variable as name=value (repeatable)")
}
