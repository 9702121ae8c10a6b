package model_test

import (
	"strings"
	"testing"
	"time"

	"github.com/linthound/linthound/internal/model"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	yml := `
version: 0
scan:
  paths:
    - /src/app
  ignore:
    - "coverage"
  max_total_files: 20
  max_file_size_bytes: 524288
  max_lines_per_file: 300
  pool_size: 4
  memory:
    warning_mb: 64
    max_mb: 128
    interval: 500ms
service:
  mode: manual
  log: stderr
`
	cfg, err := model.LoadConfig(strings.NewReader(yml))
	require.NoError(t, err)
	require.NotNil(t, cfg)
	require.Equal(t, []string{"/src/app"}, cfg.Scan.Paths)
	require.Equal(t, 20, cfg.Scan.MaxTotalFiles)
	require.Equal(t, int64(524288), cfg.Scan.MaxFileSizeBytes)
	require.Equal(t, 300, cfg.Scan.MaxLinesPerFile)
	require.Equal(t, 4, cfg.Scan.PoolSize)
	require.Equal(t, 64, cfg.Scan.Memory.WarningMB)
	require.Equal(t, 128, cfg.Scan.Memory.MaxMB)
	require.Equal(t, 500*time.Millisecond, cfg.Scan.Memory.SampleInterval())
	require.Equal(t, model.ServiceModeManual, cfg.Service.Mode)
	require.Equal(t, model.LogStderr, cfg.Service.Log)
}

func TestLoadConfigDefaults(t *testing.T) {
	yml := `
version: 0
scan:
  memory: {}
service: {}
`
	cfg, err := model.LoadConfig(strings.NewReader(yml))
	require.NoError(t, err)
	require.Equal(t, 50, cfg.Scan.MaxTotalFiles)
	require.Equal(t, int64(1048576), cfg.Scan.MaxFileSizeBytes)
	require.Equal(t, 500, cfg.Scan.MaxLinesPerFile)
	require.Equal(t, 2, cfg.Scan.PoolSize)
	require.Equal(t, 96, cfg.Scan.Memory.WarningMB)
	require.Equal(t, 150, cfg.Scan.Memory.MaxMB)
	require.Equal(t, time.Second, cfg.Scan.Memory.SampleInterval())
	require.Equal(t, model.ServiceModeManual, cfg.Service.Mode)
	require.False(t, cfg.Service.Verbose)
}

func TestLoadConfig_Fail(t *testing.T) {
	testCases := []struct {
		scenario string
		yml      string
	}{
		{"bad mode", `
version: 0
scan:
  memory: {}
service:
  mode: daemon
`},
		{"timer without schedule", `
version: 0
scan:
  memory: {}
service:
  mode: timer
`},
		{"zero pool size", `
version: 0
scan:
  pool_size: 0
  memory: {}
service: {}
`},
		{"warning above max", `
version: 0
scan:
  memory:
    warning_mb: 200
    max_mb: 150
service: {}
`},
	}

	for _, tt := range testCases {
		t.Run(tt.scenario, func(t *testing.T) {
			_, err := model.LoadConfig(strings.NewReader(tt.yml))
			require.Error(t, err)
		})
	}
}

func TestCueErrDetails(t *testing.T) {
	yml := `
version: 0
scan:
  pool_size: 0
  memory: {}
service: {}
`
	_, err := model.LoadConfig(strings.NewReader(yml))
	require.Error(t, err)

	details := model.CueErrDetails(err)
	require.NotEmpty(t, details)
	require.NotEmpty(t, details[0].Code)
	require.NotEmpty(t, details[0].Message)
}
