package cli

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aretw0/tendril/internal/validator"
	"github.com/aretw0/tendril/internal/variables"
	"github.com/aretw0/tendril/pkg/domain"
)

// ReportMarkdown renders a run report as markdown.
func ReportMarkdown(r *domain.RunReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title(r))
	fmt.Fprintf(&b, "**Status:** %s  \n", strings.ToUpper(string(r.Status)))
	fmt.Fprintf(&b, "**Run:** `%s`  \n", r.RunID)
	fmt.Fprintf(&b, "**Duration:** %s\n\n", r.Duration().Round(time.Millisecond))

	b.WriteString("## Steps\n\n| Step | Kind | Result | Detail |\n|---|---|---|---|\n")
	for _, res := range r.Results {
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", res.StepID, res.Kind, outcome(res), cell(detail(res)))
	}

	st := r.Stats
	b.WriteString("\n## Path\n\n")
	fmt.Fprintf(&b, "- %d decisions (%d then, %d else)\n", st.Branches, st.ThenBranches, st.ElseBranches)
	fmt.Fprintf(&b, "- %d loop iterations\n", st.LoopIterations)
	fmt.Fprintf(&b, "- max depth %d\n", st.MaxDepth)

	names := make([]string, 0, len(r.Variables))
	for name := range r.Variables {
		if !strings.HasPrefix(name, variables.TextCachePrefix) {
			names = append(names, name)
		}
	}
	if len(names) > 0 {
		sort.Strings(names)
		b.WriteString("\n## Variables\n\n")
		for _, name := range names {
			fmt.Fprintf(&b, "- `%s` = `%s`\n", name, variables.Stringify(r.Variables[name]))
		}
	}

	if len(r.Errors) > 0 {
		b.WriteString("\n## Errors\n\n")
		for _, e := range r.Errors {
			fmt.Fprintf(&b, "- %s\n", e)
		}
	}
	return b.String()
}

// ValidationMarkdown renders a validation result as markdown.
func ValidationMarkdown(name string, res validator.Result) string {
	var b strings.Builder
	status := "valid"
	if !res.Valid {
		status = "invalid"
	}
	fmt.Fprintf(&b, "# %s: %s\n\n", name, status)
	section := func(heading string, issues []validator.Issue) {
		if len(issues) == 0 {
			return
		}
		fmt.Fprintf(&b, "## %s\n\n", heading)
		for _, issue := range issues {
			fmt.Fprintf(&b, "- **%s** %s\n", issue.Rule, issue.String())
		}
		b.WriteString("\n")
	}
	section("Errors", res.Errors)
	section("Warnings", res.Warnings)
	return b.String()
}

func title(r *domain.RunReport) string {
	if r.TestCase != "" {
		return r.TestCase
	}
	return r.TestCaseID
}

func outcome(res domain.StepResult) string {
	switch {
	case !res.Success:
		return "failed"
	case res.Skipped:
		return "skipped"
	}
	return "passed"
}

func detail(res domain.StepResult) string {
	switch {
	case res.Error != "":
		return res.Error
	case res.Loop != nil:
		return fmt.Sprintf("%d iterations, %s", res.Loop.Iterations, res.Loop.Reason)
	case res.Branch != "":
		return string(res.Branch)
	}
	return ""
}

func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}
