package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/tendril/internal/cli"
)

var validateCmd = &cobra.Command{
	Use:   "validate [test-case-id...]",
	Short: "Validate test cases without running them",
	Long: `Checks step structure, condition grammar, loop bounds and nesting for the
given test cases, or for every test case in --dir when none are named.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		engine, err := a.engine(false)
		if err != nil {
			return err
		}

		ids := args
		if len(ids) == 0 {
			if ids, err = a.loader.List(cmd.Context()); err != nil {
				return err
			}
		}

		plain, _ := cmd.Flags().GetBool("plain")
		r := cli.NewRenderer(cmd.OutOrStdout(), plain)
		invalid := 0
		for _, id := range ids {
			tc, err := a.loader.Load(cmd.Context(), id)
			if err != nil {
				invalid++
				r.Status(false, "%s: %v", id, err)
				continue
			}
			res := engine.Validate(tc)
			if !res.Valid {
				invalid++
			}
			name := tc.Name
			if name == "" {
				name = tc.ID
			}
			if err := r.Markdown(cli.ValidationMarkdown(name, res)); err != nil {
				return err
			}
		}

		if invalid > 0 {
			return fmt.Errorf("%d of %d test cases are invalid", invalid, len(ids))
		}
		r.Status(true, "%d test cases valid", len(ids))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().Bool("plain", false, "Disable terminal styling")
}
