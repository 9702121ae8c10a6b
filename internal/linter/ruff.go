package linter

import (
	"bufio"
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/linthound/linthound/internal/model"
	"github.com/linthound/linthound/internal/pool"
)

// Ruff checks Python sources from stdin with line-oriented concise output:
// path:line:col: CODE message
type Ruff struct {
	tool Tool
}

func NewRuff(tool Tool) *Ruff {
	return &Ruff{tool: tool}
}

func (r *Ruff) Name() string { return "ruff" }

func (r *Ruff) Command(path string, content []byte) pool.Command {
	cmd := r.tool.command("ruff", []string{
		"check",
		"--stdin-filename", path,
		"--output-format", "concise",
		"--no-cache",
		"-",
	})
	cmd.Stdin = content
	return cmd
}

var ruffLine = regexp.MustCompile(`^(.+?):(\d+):(\d+): ([A-Z][0-9A-Z]*) (.*)$`)

func (r *Ruff) Parse(path string, out pool.Output) ([]model.Finding, error) {
	if out.ExitCode > 1 {
		return nil, fmt.Errorf("exit code %d: %s", out.ExitCode, firstLine(out.Stderr))
	}

	var findings []model.Finding
	scanner := bufio.NewScanner(bytes.NewReader(out.Stdout))
	for scanner.Scan() {
		m := ruffLine.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		line, err := strconv.Atoi(m[2])
		if err != nil || line < 1 {
			line = 1
		}
		code := m[4]
		severity := model.SeverityError
		if strings.HasPrefix(code, "W") {
			severity = model.SeverityWarning
		}
		findings = append(findings, model.Finding{
			Tool:     r.Name(),
			Path:     path,
			Line:     line,
			Message:  code + " " + m[5],
			Severity: severity,
		})
	}

	if out.ExitCode == 1 && len(findings) == 0 {
		return nil, fmt.Errorf("exit code 1 with unparsable output: %s", firstLine(out.Stdout))
	}
	return findings, nil
}

func firstLine(b []byte) string {
	s := strings.TrimSpace(string(b))
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if s == "" {
		return "(no output)"
	}
	return s
}
