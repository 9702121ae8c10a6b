package model

import "time"

// Severity classifies a single finding. ToolError marks findings synthesized
// from a failed read or linter invocation rather than reported by the tool.
type Severity string

const (
	SeverityInfo      Severity = "info"
	SeverityWarning   Severity = "warning"
	SeverityError     Severity = "error"
	SeverityToolError Severity = "tool-error"
)

// Finding is a single issue attributed to a file and a 1-based line.
type Finding struct {
	Tool     string   `json:"tool"`
	Path     string   `json:"path"`
	Line     int      `json:"line"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// Result is returned from every scan invocation, including scans the memory
// monitor terminated early. Findings within one file keep source line order,
// there is no ordering guarantee across files.
type Result struct {
	ID              string    `json:"id"`
	Findings        []Finding `json:"findings"`
	FilesScanned    int       `json:"files_scanned"`
	FilesSkipped    int       `json:"files_skipped"`
	TerminatedEarly bool      `json:"terminated_early"`
	PeakMemoryMB    float64   `json:"peak_memory_mb"`
	Started         time.Time `json:"started"`
	Stopped         time.Time `json:"stopped"`
}
