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

// GoVet runs "go vet" on the file path directly, vet cannot read stdin.
// Diagnostics arrive on stderr as path:line:col: message.
type GoVet struct {
	tool Tool
}

func NewGoVet(tool Tool) *GoVet {
	return &GoVet{tool: tool}
}

func (g *GoVet) Name() string { return "govet" }

func (g *GoVet) Command(path string, _ []byte) pool.Command {
	return g.tool.command("go", []string{"vet", path})
}

var vetLine = regexp.MustCompile(`^(.+?):(\d+)(?::(\d+))?: (.*)$`)

func (g *GoVet) Parse(path string, out pool.Output) ([]model.Finding, error) {
	var findings []model.Finding
	scanner := bufio.NewScanner(bytes.NewReader(out.Stderr))
	for scanner.Scan() {
		text := scanner.Text()
		if strings.HasPrefix(text, "#") || strings.HasPrefix(text, "vet:") {
			continue
		}
		m := vetLine.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		line, err := strconv.Atoi(m[2])
		if err != nil || line < 1 {
			line = 1
		}
		findings = append(findings, model.Finding{
			Tool:     g.Name(),
			Path:     path,
			Line:     line,
			Message:  m[4],
			Severity: model.SeverityWarning,
		})
	}

	if out.ExitCode != 0 && len(findings) == 0 {
		// vet failed without a single diagnostic we could attribute
		return nil, fmt.Errorf("exit code %d: %s", out.ExitCode, firstLine(out.Stderr))
	}
	return findings, nil
}
