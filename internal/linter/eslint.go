package linter

import (
	"encoding/json"
	"fmt"

	"github.com/linthound/linthound/internal/model"
	"github.com/linthound/linthound/internal/pool"
)

// ESLint reads the file from stdin and reports with --format json. Exit code
// 1 means findings were reported, anything above is a tool failure.
type ESLint struct {
	tool Tool
}

func NewESLint(tool Tool) *ESLint {
	return &ESLint{tool: tool}
}

func (e *ESLint) Name() string { return "eslint" }

func (e *ESLint) Command(path string, content []byte) pool.Command {
	cmd := e.tool.command("eslint", []string{
		"--stdin",
		"--stdin-filename", path,
		"--format", "json",
		"--no-color",
	})
	cmd.Stdin = content
	return cmd
}

type eslintMessage struct {
	RuleID   string `json:"ruleId"`
	Severity int    `json:"severity"`
	Message  string `json:"message"`
	Line     int    `json:"line"`
}

type eslintFile struct {
	FilePath string          `json:"filePath"`
	Messages []eslintMessage `json:"messages"`
}

func (e *ESLint) Parse(path string, out pool.Output) ([]model.Finding, error) {
	if out.ExitCode > 1 {
		return nil, fmt.Errorf("exit code %d: %s", out.ExitCode, firstLine(out.Stderr))
	}

	var files []eslintFile
	if err := json.Unmarshal(out.Stdout, &files); err != nil {
		return nil, fmt.Errorf("unparsable output: %w", err)
	}

	var findings []model.Finding
	for _, f := range files {
		for _, msg := range f.Messages {
			severity := model.SeverityWarning
			if msg.Severity >= 2 {
				severity = model.SeverityError
			}
			message := msg.Message
			if msg.RuleID != "" {
				message = msg.RuleID + ": " + message
			}
			findings = append(findings, model.Finding{
				Tool:     e.Name(),
				Path:     path,
				Line:     max(msg.Line, 1),
				Message:  message,
				Severity: severity,
			})
		}
	}
	return findings, nil
}
