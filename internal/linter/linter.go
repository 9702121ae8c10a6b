// Package linter adapts external static-analysis tools to one invocation
// contract: build a pool.Command for a file, parse whatever the process
// printed into findings. Output parsing is defensive, the tools are not
// trusted to honor their own documented formats.
package linter

import (
	"path"
	"strings"
	"time"

	"github.com/linthound/linthound/internal/model"
	"github.com/linthound/linthound/internal/pool"
)

const defaultTimeout = 30 * time.Second

type Linter interface {
	Name() string

	// Command builds the invocation for one file. content is the line-capped
	// file body, delivered on stdin for tools that support it.
	Command(path string, content []byte) pool.Command

	// Parse turns process output into findings. An error means the
	// invocation failed as a whole and is recorded as a tool-error finding.
	Parse(path string, out pool.Output) ([]model.Finding, error)
}

// Registry is the extension dispatch table. Which linter handles which
// extension is explicit configuration, not an if/else chain.
type Registry struct {
	byExt map[string]Linter
}

// NewRegistry wires the built-in adapters, applying per-tool overrides from
// the configuration. A tool with an Extensions override is dispatched on
// those extensions instead of its defaults.
func NewRegistry(tools map[string]Tool) *Registry {
	r := &Registry{byExt: make(map[string]Linter)}

	register := func(l Linter, defaults []string, tool Tool) {
		exts := tool.Extensions
		if len(exts) == 0 {
			exts = defaults
		}
		for _, ext := range exts {
			r.Register(ext, l)
		}
	}

	register(NewESLint(tools["eslint"]), []string{".js", ".jsx", ".mjs", ".cjs", ".ts", ".tsx"}, tools["eslint"])
	register(NewRuff(tools["ruff"]), []string{".py"}, tools["ruff"])
	register(NewGoVet(tools["govet"]), []string{".go"}, tools["govet"])

	return r
}

// Register maps an extension (with or without leading dot) to a linter,
// replacing any previous mapping.
func (r *Registry) Register(ext string, l Linter) {
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	r.byExt[strings.ToLower(ext)] = l
}

// ForPath selects the adapter for a file by extension.
func (r *Registry) ForPath(p string) (Linter, bool) {
	l, ok := r.byExt[strings.ToLower(path.Ext(p))]
	return l, ok
}

// Extensions returns every extension the registry dispatches on.
func (r *Registry) Extensions() []string {
	exts := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		exts = append(exts, ext)
	}
	return exts
}

func (t Tool) command(defaultPath string, defaultArgs []string) pool.Command {
	cmd := pool.Command{
		Path:    defaultPath,
		Args:    defaultArgs,
		Timeout: defaultTimeout,
	}
	if t.Path != "" {
		cmd.Path = t.Path
	}
	if len(t.Args) > 0 {
		cmd.Args = t.Args
	}
	if t.Timeout > 0 {
		cmd.Timeout = t.Timeout
	}
	for k, v := range t.Env {
		cmd.Env = append(cmd.Env, strings.ToUpper(k)+"="+v)
	}
	return cmd
}
