package model

import (
	"fmt"
	"io"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/encoding/yaml"

	_ "embed"
)

// Enum helpers (optional).
const (
	ServiceModeManual = "manual"
	ServiceModeTimer  = "timer"

	LogStderr  = "stderr"
	LogStdout  = "stdout"
	LogDiscard = "discard"
)

//go:embed config.cue
var cueSource []byte

var (
	cueCtx *cue.Context
	schema cue.Value
)

func init() {
	if len(cueSource) == 0 {
		panic("variable cueSource is empty")
	}
	cueCtx = cuecontext.New()
	compiled := cueCtx.CompileBytes(cueSource)
	if compiled.Err() != nil {
		panic(compiled.Err())
	}

	if err := compiled.Validate(); err != nil {
		panic(err)
	}

	schema = compiled.LookupPath(cue.ParsePath("#Config"))
	if schema.Err() != nil {
		panic(schema.Err())
	}
	if err := schema.Validate(); err != nil {
		panic(err)
	}
}

type Config struct {
	Version int     `json:"version" yaml:"version"` // fixed 0 for now
	Scan    Scan    `json:"scan" yaml:"scan"`
	Service Service `json:"service" yaml:"service"`
}

// Scan holds the resource bounds of a single scan pass. Created once per
// invocation, never mutated afterwards.
type Scan struct {
	Paths            []string `json:"paths,omitempty" yaml:"paths,omitempty"` // nil/empty => use CWD
	Ignore           []string `json:"ignore,omitempty" yaml:"ignore,omitempty"`
	MaxTotalFiles    int      `json:"max_total_files" yaml:"max_total_files"`
	MaxFileSizeBytes int64    `json:"max_file_size_bytes" yaml:"max_file_size_bytes"`
	MaxLinesPerFile  int      `json:"max_lines_per_file" yaml:"max_lines_per_file"`
	FilesPerSecond   *float64 `json:"files_per_second,omitempty" yaml:"files_per_second,omitempty"`
	PoolSize         int      `json:"pool_size" yaml:"pool_size"`
	Memory           Memory   `json:"memory" yaml:"memory"`
}

// Memory thresholds for the monitor. The numbers are tunables, not verified
// guarantees.
type Memory struct {
	WarningMB int    `json:"warning_mb" yaml:"warning_mb"`
	MaxMB     int    `json:"max_mb" yaml:"max_mb"`
	Interval  string `json:"interval" yaml:"interval"` // Go duration
}

// SampleInterval parses Memory.Interval, falling back to one second.
func (m Memory) SampleInterval() time.Duration {
	d, err := time.ParseDuration(m.Interval)
	if err != nil || d <= 0 {
		return time.Second
	}
	return d
}

type Service struct {
	Mode     string  `json:"mode" yaml:"mode"` // "manual" | "timer"
	Schedule *string `json:"schedule,omitempty" yaml:"schedule,omitempty"`
	Dir      *string `json:"dir,omitempty" yaml:"dir,omitempty"` // output directory for timer reports
	Verbose  bool    `json:"verbose" yaml:"verbose"`
	Log      string  `json:"log" yaml:"log"` // "stderr"|"stdout"|"discard"|path
}

// LoadConfig validates YAML from r against the CUE schema and decodes to Config.
func LoadConfig(r io.Reader) (*Config, error) {
	yamlFile, err := yaml.Extract("config.yaml", r)
	if err != nil {
		return nil, err
	}
	yamlValue := cueCtx.BuildFile(yamlFile)

	unified := schema.Unify(yamlValue)
	if err := unified.Validate(
		cue.All(),          // all constraints
		cue.Concrete(true), // no incomplete values
	); err != nil {
		return nil, err
	}

	var out Config
	if err := unified.Decode(&out); err != nil {
		return nil, err
	}

	// Cross-field constraint CUE does not express cleanly.
	if out.Scan.Memory.WarningMB >= out.Scan.Memory.MaxMB {
		return nil, fmt.Errorf("memory.warning_mb (%d) must be below memory.max_mb (%d)",
			out.Scan.Memory.WarningMB, out.Scan.Memory.MaxMB)
	}

	return &out, nil
}

// DefaultConfig is what gets written to the user config dir on a first run.
func DefaultConfig() Config {
	return Config{
		Version: 0,
		Scan: Scan{
			MaxTotalFiles:    50,
			MaxFileSizeBytes: 1 << 20,
			MaxLinesPerFile:  500,
			PoolSize:         2,
			Memory: Memory{
				WarningMB: 96,
				MaxMB:     150,
				Interval:  "1s",
			},
		},
		Service: Service{
			Mode: ServiceModeManual,
			Log:  LogStderr,
		},
	}
}
