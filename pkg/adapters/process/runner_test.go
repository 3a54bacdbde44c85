package process

import (
	"context"
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/tendril/internal/testutils"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/registry"
)

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("process tests use sh")
	}
}

func TestRunner_Run(t *testing.T) {
	requireShell(t)
	r := NewRunner()
	r.Register("echo", "sh", "-c", `printf '%s|%s|%s' "$TENDRIL_TARGET" "$TENDRIL_VALUE" "$TENDRIL_ARG_USER_NAME"`)
	r.Register("fail", "sh", "-c", "echo boom >&2; exit 3")

	tests := []struct {
		name    string
		tool    string
		req     registry.Request
		want    string
		wantErr string
	}{
		{"passes step input through env", "echo", registry.Request{Target: "db", Value: "seed", Params: map[string]any{"user-name": "alice"}}, "db|seed|alice", ""},
		{"non-zero exit carries stderr", "fail", registry.Request{}, "", "boom"},
		{"unregistered", "rm", registry.Request{}, "", "not registered"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := r.Run(context.Background(), tt.tool, tt.req)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}

	_, err := r.Run(context.Background(), "rm", registry.Request{})
	assert.True(t, errors.Is(err, registry.ErrUnknownAction))
}

func TestRunner_Timeout(t *testing.T) {
	requireShell(t)
	r := NewRunner(WithRegistry(map[string]ProcessConfig{
		"slow": {Command: "sleep", Args: []string{"5"}, Timeout: 50 * time.Millisecond},
	}))
	start := time.Now()
	_, err := r.Run(context.Background(), "slow", registry.Request{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestRunner_Bind(t *testing.T) {
	requireShell(t)
	dir := t.TempDir()
	r := NewRunner(WithBaseDir(dir))
	r.Register("seed", "sh", "-c", `printf '%s' "$TENDRIL_VALUE" > out.txt`)

	reg := registry.NewRegistry()
	r.Bind(reg)
	assert.Equal(t, []string{"seed"}, reg.Names())

	ec := domain.NewExecutionContext(map[string]any{"who": "bob"})
	err := reg.ExecuteAction(context.Background(), &domain.ActionStep{ID: "s", Action: "seed", Value: "hi ${who}"}, ec)
	require.NoError(t, err)
	assert.FileExists(t, dir+"/out.txt")
}

func TestLoadTools(t *testing.T) {
	dir := testutils.WriteFiles(t, map[string]string{
		"tools.yaml": `
tools:
  - name: seed
    command: ./seed.sh
    args: ["--fast"]
    timeout: 2s
`,
		"tools.json": `{"tools": [{"name": "reset", "command": "make"}]}`,
		"bad.yaml":   "tools:\n  - name: nocommand\n",
	})

	tools, err := LoadTools(dir + "/tools.yaml")
	require.NoError(t, err)
	assert.Equal(t, "./seed.sh", tools["seed"].Command)
	assert.Equal(t, []string{"--fast"}, tools["seed"].Args)
	assert.Equal(t, 2*time.Second, tools["seed"].Timeout)

	tools, err = LoadTools(dir + "/tools.json")
	require.NoError(t, err)
	assert.Contains(t, tools, "reset")

	tools, err = LoadTools(dir + "/missing.yaml")
	require.NoError(t, err)
	assert.Empty(t, tools)

	_, err = LoadTools(dir + "/bad.yaml")
	assert.Error(t, err)
}
