// Package process exposes allow-listed local commands as test actions, for
// fixtures such as seeding a database or resetting a mail catcher between steps.
package process

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os/exec"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/aretw0/tendril/pkg/registry"
)

// envName keeps parameter names usable as environment variable suffixes.
var envName = regexp.MustCompile(`[^A-Z0-9_]`)

// Runner executes registered commands. Only names on the allow-list run;
// step input reaches the process through TENDRIL_* environment variables,
// never as command-line flags.
type Runner struct {
	tools   map[string]ProcessConfig
	baseDir string
	logger  *slog.Logger
}

// RunnerOption configures the runner.
type RunnerOption func(*Runner)

// WithRegistry populates the allow-list from a loaded config.
func WithRegistry(tools map[string]ProcessConfig) RunnerOption {
	return func(r *Runner) {
		for name, tool := range tools {
			tool.Name = name
			r.tools[name] = tool
		}
	}
}

// WithBaseDir sets the working directory for executed processes.
func WithBaseDir(dir string) RunnerOption {
	return func(r *Runner) {
		r.baseDir = dir
	}
}

// WithLogger sets the runner logger. Process output is logged at debug level.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRunner creates a new Process Runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		tools:  make(map[string]ProcessConfig),
		logger: slog.New(slog.NewJSONHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a trusted command to the allow-list.
func (r *Runner) Register(name string, command string, args ...string) {
	r.tools[name] = ProcessConfig{Name: name, Command: command, Args: args}
}

// Names returns the registered tool names, sorted.
func (r *Runner) Names() []string {
	return slices.Sorted(maps.Keys(r.tools))
}

// Bind registers every tool as an action of reg under its own name.
func (r *Runner) Bind(reg *registry.Registry) {
	for name := range r.tools {
		reg.Register(name, func(ctx context.Context, req registry.Request) error {
			_, err := r.Run(ctx, name, req)
			return err
		})
	}
}

// Run executes tool name for req and returns its trimmed stdout. A non-zero
// exit is an error carrying stderr.
func (r *Runner) Run(ctx context.Context, name string, req registry.Request) (string, error) {
	tool, ok := r.tools[name]
	if !ok {
		return "", fmt.Errorf("%w: process tool %s is not registered", registry.ErrUnknownAction, name)
	}
	if tool.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, tool.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, tool.Command, tool.Args...)
	cmd.Dir = r.baseDir
	cmd.WaitDelay = time.Second
	cmd.Env = append(cmd.Environ(), environment(tool, req)...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	r.logger.Debug("process tool finished",
		"tool", name,
		"step_id", req.StepID,
		"duration", time.Since(start),
		"stdout", strings.TrimSpace(stdout.String()),
	)
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("process tool %s: %w", name, ctx.Err())
		}
		return "", fmt.Errorf("process tool %s failed: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}

// environment passes the step as TENDRIL_STEP, TENDRIL_TARGET, TENDRIL_VALUE
// and one TENDRIL_ARG_<NAME> per parameter. Complex parameters are JSON.
func environment(tool ProcessConfig, req registry.Request) []string {
	env := []string{
		"TENDRIL_STEP=" + req.StepID,
		"TENDRIL_TARGET=" + req.Target,
		"TENDRIL_VALUE=" + req.Value,
	}
	for k, v := range tool.Environment {
		env = append(env, k+"="+v)
	}
	for _, k := range slices.Sorted(maps.Keys(req.Params)) {
		env = append(env, fmt.Sprintf("TENDRIL_ARG_%s=%s", envName.ReplaceAllString(strings.ToUpper(k), "_"), argString(req.Params[k])))
	}
	return env
}

func argString(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case int, int64, float64, bool:
		return fmt.Sprint(v)
	}
	if data, err := json.Marshal(v); err == nil {
		return string(data)
	}
	return fmt.Sprint(v)
}
