package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/spf13/cobra"

	"github.com/aretw0/tendril/internal/cli"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/runner"
)

var runCmd = &cobra.Command{
	Use:   "run [test-case-id...]",
	Short: "Run test cases against the configured browser",
	Long: `Runs the named test cases, or every test case in --dir, and prints a report for
each. Runs are saved to the configured report store. The exit status is non-zero
unless every test case passed.

Interrupting (Ctrl+C) stops pending test cases; running ones end at their next step.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		engine, err := a.engine(true)
		if err != nil {
			return err
		}

		failFast, _ := cmd.Flags().GetBool("fail-fast")
		pattern, _ := cmd.Flags().GetString("match")
		opts := []runner.Option{
			runner.WithConcurrency(cfg.Runner.Concurrency),
			runner.WithLogger(a.logger),
			runner.WithFailFast(failFast),
			runner.OnReport(a.metrics.ObserveRun),
			runner.WithLocker(a.locks, runner.DefaultLockTTL),
		}
		if pattern != "" {
			if _, err := path.Match(pattern, ""); err != nil {
				return fmt.Errorf("invalid --match pattern: %w", err)
			}
			opts = append(opts, runner.WithFilter(func(id string) bool {
				ok, _ := path.Match(pattern, id)
				return ok
			}))
		}
		rn := runner.New(engine, a.loader, opts...)

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Stop()

		var summary *runner.Summary
		if len(args) > 0 {
			summary, err = rn.Run(ctx, args...)
		} else {
			summary, err = rn.RunAll(ctx)
		}
		if summary == nil {
			return err
		}
		if sig := ctx.Signal(); sig != nil {
			a.logger.Warn("run interrupted", "signal", sig.String())
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			if err := writeSummaryJSON(cmd, summary); err != nil {
				return err
			}
		} else {
			plain, _ := cmd.Flags().GetBool("plain")
			if err := renderSummary(cli.NewRenderer(cmd.OutOrStdout(), plain), summary); err != nil {
				return err
			}
		}

		if !summary.OK() {
			return errors.New("not every test case passed")
		}
		return err
	},
}

func renderSummary(r *cli.Renderer, s *runner.Summary) error {
	for _, o := range s.Outcomes {
		if o.Report != nil {
			if err := r.Markdown(cli.ReportMarkdown(o.Report)); err != nil {
				return err
			}
		}
		if o.Err != nil {
			r.Status(false, "%s: %v", o.ID, o.Err)
		}
	}
	r.Status(s.OK(), "%d passed, %d failed, %d stopped, %d errored in %s",
		s.Passed, s.Failed, s.Stopped, s.Errored, s.Duration.Round(time.Millisecond))
	return nil
}

type outcomeJSON struct {
	ID     string            `json:"id"`
	Report *domain.RunReport `json:"report,omitempty"`
	Error  string            `json:"error,omitempty"`
}

func writeSummaryJSON(cmd *cobra.Command, s *runner.Summary) error {
	out := struct {
		OK       bool          `json:"ok"`
		Passed   int           `json:"passed"`
		Failed   int           `json:"failed"`
		Stopped  int           `json:"stopped"`
		Errored  int           `json:"errored"`
		Duration string        `json:"duration"`
		Outcomes []outcomeJSON `json:"outcomes"`
	}{
		OK:       s.OK(),
		Passed:   s.Passed,
		Failed:   s.Failed,
		Stopped:  s.Stopped,
		Errored:  s.Errored,
		Duration: s.Duration.String(),
	}
	for _, o := range s.Outcomes {
		oj := outcomeJSON{ID: o.ID, Report: o.Report}
		if o.Err != nil {
			oj.Error = o.Err.Error()
		}
		out.Outcomes = append(out.Outcomes, oj)
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().Int("concurrency", 4, "Test cases run at once")
	runCmd.Flags().Bool("fail-fast", false, "Stop scheduling after the first test case that does not pass")
	runCmd.Flags().String("match", "", "Only run test case ids matching this glob")
	runCmd.Flags().Bool("json", false, "Print the summary as JSON")
	runCmd.Flags().Bool("plain", false, "Disable terminal styling")
	if err := v.BindPFlag("runner.concurrency", runCmd.Flags().Lookup("concurrency")); err != nil {
		panic(err)
	}
}
