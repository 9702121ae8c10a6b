package linter_test

import (
	"testing"
	"time"

	"github.com/linthound/linthound/internal/linter"

	"github.com/stretchr/testify/require"
)

func TestRegistryDispatch(t *testing.T) {
	t.Parallel()
	r := linter.NewRegistry(nil)

	testCases := []struct {
		path string
		want string
	}{
		{"src/app.js", "eslint"},
		{"src/App.JSX", "eslint"},
		{"src/index.ts", "eslint"},
		{"pkg/mod.py", "ruff"},
		{"cmd/main.go", "govet"},
	}
	for _, tt := range testCases {
		l, ok := r.ForPath(tt.path)
		require.True(t, ok, tt.path)
		require.Equal(t, tt.want, l.Name(), tt.path)
	}

	_, ok := r.ForPath("README.md")
	require.False(t, ok)
}

func TestRegistryExtensionOverride(t *testing.T) {
	t.Parallel()
	r := linter.NewRegistry(map[string]linter.Tool{
		"ruff": {Extensions: []string{".py", ".pyi"}},
	})

	l, ok := r.ForPath("stubs/typing.pyi")
	require.True(t, ok)
	require.Equal(t, "ruff", l.Name())
}

func TestToolOverridesCommand(t *testing.T) {
	t.Parallel()
	es := linter.NewESLint(linter.Tool{
		Path:    "/opt/node/bin/eslint",
		Args:    []string{"--stdin", "--format", "json"},
		Env:     map[string]string{"node_env": "production"},
		Timeout: 5 * time.Second,
	})

	cmd := es.Command("a.js", []byte("var x\n"))
	require.Equal(t, "/opt/node/bin/eslint", cmd.Path)
	require.Equal(t, []string{"--stdin", "--format", "json"}, cmd.Args)
	require.Contains(t, cmd.Env, "NODE_ENV=production")
	require.Equal(t, 5*time.Second, cmd.Timeout)
	require.Equal(t, "var x\n", string(cmd.Stdin))
}

func TestDefaultCommand(t *testing.T) {
	t.Parallel()
	es := linter.NewESLint(linter.Tool{})

	cmd := es.Command("a.js", nil)
	require.Equal(t, "eslint", cmd.Path)
	require.Contains(t, cmd.Args, "--stdin")
	require.Contains(t, cmd.Args, "a.js")
	require.Equal(t, 30*time.Second, cmd.Timeout)
}
