package scan_test

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/linthound/linthound/internal/linter"
	"github.com/linthound/linthound/internal/memwatch"
	"github.com/linthound/linthound/internal/model"
	"github.com/linthound/linthound/internal/pool"
	"github.com/linthound/linthound/internal/scan"
	"github.com/linthound/linthound/internal/walk"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const mb = 1 << 20

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// steadySampler reports the same heap reading forever.
type steadySampler struct {
	heap uint64
}

func (s steadySampler) Sample() memwatch.Sample {
	return memwatch.Sample{At: time.Now(), HeapBytes: s.heap}
}

// fakeLinter runs a shell snippet instead of a real linter and records the
// stdin payload per file.
type fakeLinter struct {
	script string
	parse  func(path string, out pool.Output) ([]model.Finding, error)

	mu     sync.Mutex
	stdins map[string][]byte
}

func newFakeLinter(script string, parse func(string, pool.Output) ([]model.Finding, error)) *fakeLinter {
	return &fakeLinter{
		script: script,
		parse:  parse,
		stdins: make(map[string][]byte),
	}
}

func (f *fakeLinter) Name() string { return "fake" }

func (f *fakeLinter) Command(path string, content []byte) pool.Command {
	f.mu.Lock()
	f.stdins[path] = content
	f.mu.Unlock()
	return pool.Command{
		Path:  "/bin/sh",
		Args:  []string{"-c", f.script},
		Stdin: content,
	}
}

func (f *fakeLinter) Parse(path string, out pool.Output) ([]model.Finding, error) {
	return f.parse(path, out)
}

func (f *fakeLinter) stdin(path string) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stdins[path]
}

func oneFindingPerFile(path string, out pool.Output) ([]model.Finding, error) {
	if out.ExitCode != 0 {
		return nil, fmt.Errorf("exit code %d", out.ExitCode)
	}
	return []model.Finding{
		{Tool: "fake", Path: path, Line: 1, Message: "stub finding", Severity: model.SeverityWarning},
	}, nil
}

type fixture struct {
	cfg     model.Scan
	lint    *fakeLinter
	scanner *scan.Scanner
}

func newFixture(t *testing.T, cfg model.Scan, lint *fakeLinter, heap uint64) *fixture {
	t.Helper()
	registry := linter.NewRegistry(nil)
	registry.Register(".js", lint)

	monitor := memwatch.New(steadySampler{heap: heap}, cfg.Memory.WarningMB, cfg.Memory.MaxMB, cfg.Memory.SampleInterval())
	return &fixture{
		cfg:     cfg,
		lint:    lint,
		scanner: scan.New(cfg, registry, pool.New(cfg.PoolSize), monitor),
	}
}

func testConfig() model.Scan {
	cfg := model.DefaultConfig().Scan
	cfg.Memory.Interval = "20ms"
	return cfg
}

func writeJS(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func discover(t *testing.T, dir string, cfg model.Scan) []walk.Entry {
	t.Helper()
	entries, err := walk.Discover(t.Context(), os.DirFS(dir), dir, walk.Options{
		Ignore:   cfg.Ignore,
		MaxFiles: cfg.MaxTotalFiles,
	})
	require.NoError(t, err)
	return entries
}

func TestScanSmallTree(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	for i := range 5 {
		writeJS(t, dir, fmt.Sprintf("f%d.js", i), "var x = 1\n")
	}

	fx := newFixture(t, testConfig(), newFakeLinter("cat >/dev/null", oneFindingPerFile), 10*mb)
	res := fx.scanner.Run(t.Context(), walk.Entries(discover(t, dir, fx.cfg)))

	require.Equal(t, 5, res.FilesScanned)
	require.Equal(t, 0, res.FilesSkipped)
	require.False(t, res.TerminatedEarly)
	require.Len(t, res.Findings, 5)
	require.NotEmpty(t, res.ID)
	require.InDelta(t, 10.0, res.PeakMemoryMB, 0.01)
}

func TestScanSkipsOversizeFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeJS(t, dir, "small.js", "var x = 1\n")
	writeJS(t, dir, "huge.js", strings.Repeat("x", 2*mb))

	cfg := testConfig()
	cfg.MaxFileSizeBytes = 1 * mb

	fx := newFixture(t, cfg, newFakeLinter("cat >/dev/null", oneFindingPerFile), 10*mb)
	res := fx.scanner.Run(t.Context(), walk.Entries(discover(t, dir, cfg)))

	require.Equal(t, 1, res.FilesScanned)
	require.Equal(t, 1, res.FilesSkipped)
	require.Len(t, res.Findings, 1)
	require.Equal(t, filepath.Join(dir, "small.js"), res.Findings[0].Path)
}

func TestScanRespectsLineCap(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	var sb strings.Builder
	for i := range 1000 {
		fmt.Fprintf(&sb, "line %d\n", i)
	}
	writeJS(t, dir, "long.js", sb.String())

	cfg := testConfig()
	cfg.MaxLinesPerFile = 100

	lint := newFakeLinter("cat >/dev/null", oneFindingPerFile)
	fx := newFixture(t, cfg, lint, 10*mb)
	res := fx.scanner.Run(t.Context(), walk.Entries(discover(t, dir, cfg)))

	require.Equal(t, 1, res.FilesScanned)
	stdin := lint.stdin(filepath.Join(dir, "long.js"))
	require.Equal(t, 100, bytes.Count(stdin, []byte{'\n'}))
}

func TestScanFailingLinter(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeJS(t, dir, "bad.js", "var x = 1\n")

	fx := newFixture(t, testConfig(), newFakeLinter("exit 3", oneFindingPerFile), 10*mb)
	res := fx.scanner.Run(t.Context(), walk.Entries(discover(t, dir, fx.cfg)))

	require.False(t, res.TerminatedEarly)
	require.Equal(t, 1, res.FilesScanned)
	require.Len(t, res.Findings, 1)
	require.Equal(t, model.SeverityToolError, res.Findings[0].Severity)
	require.Contains(t, res.Findings[0].Message, "exit code 3")
}

func TestScanFindingsKeepLineOrder(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeJS(t, dir, "a.js", "var x = 1\n")

	unordered := func(path string, out pool.Output) ([]model.Finding, error) {
		return []model.Finding{
			{Tool: "fake", Path: path, Line: 30, Message: "third", Severity: model.SeverityWarning},
			{Tool: "fake", Path: path, Line: 2, Message: "first", Severity: model.SeverityWarning},
			{Tool: "fake", Path: path, Line: 10, Message: "second", Severity: model.SeverityWarning},
		}, nil
	}
	fx := newFixture(t, testConfig(), newFakeLinter("cat >/dev/null", unordered), 10*mb)
	res := fx.scanner.Run(t.Context(), walk.Entries(discover(t, dir, fx.cfg)))

	require.Len(t, res.Findings, 3)
	require.Equal(t, []int{2, 10, 30}, []int{res.Findings[0].Line, res.Findings[1].Line, res.Findings[2].Line})
}

func TestScanEmergencyTerminatesEarly(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	for i := range 5 {
		writeJS(t, dir, fmt.Sprintf("f%d.js", i), "var x = 1\n")
	}

	// heap over max_mb from the very first sample: nothing gets admitted
	fx := newFixture(t, testConfig(), newFakeLinter("cat >/dev/null", oneFindingPerFile), 200*mb)
	res := fx.scanner.Run(t.Context(), walk.Entries(discover(t, dir, fx.cfg)))

	require.True(t, res.TerminatedEarly)
	require.Equal(t, 0, res.FilesScanned)
	require.Equal(t, 5, res.FilesSkipped)
	require.Empty(t, res.Findings)
}

func TestScanWarningPausesAdmission(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	for i := range 3 {
		writeJS(t, dir, fmt.Sprintf("f%d.js", i), "var x = 1\n")
	}

	// heap stuck between warning and max: admission never resumes, the scan
	// ends once the caller gives up
	fx := newFixture(t, testConfig(), newFakeLinter("cat >/dev/null", oneFindingPerFile), 120*mb)

	ctx, cancel := context.WithTimeout(t.Context(), 300*time.Millisecond)
	defer cancel()
	res := fx.scanner.Run(ctx, walk.Entries(discover(t, dir, fx.cfg)))

	require.False(t, res.TerminatedEarly)
	require.Equal(t, 0, res.FilesScanned)
	require.Equal(t, 3, res.FilesSkipped)
}

func TestScanBoundInvariant(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	for i := range 10 {
		writeJS(t, dir, fmt.Sprintf("f%d.js", i), "var x = 1\n")
	}

	cfg := testConfig()
	cfg.MaxTotalFiles = 4

	fx := newFixture(t, cfg, newFakeLinter("cat >/dev/null", oneFindingPerFile), 10*mb)
	res := fx.scanner.Run(t.Context(), walk.Entries(discover(t, dir, cfg)))

	require.LessOrEqual(t, res.FilesScanned+res.FilesSkipped, 4)
	require.Equal(t, 4, res.FilesScanned)
}
