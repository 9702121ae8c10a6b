package linter

import (
	"time"

	"github.com/spf13/viper"
)

// Tool overrides the defaults of one adapter. Everything is optional, a
// zero Tool keeps the built-in command line.
type Tool struct {
	Path       string            `mapstructure:"path"`
	Args       []string          `mapstructure:"args"`
	Env        map[string]string `mapstructure:"env"`
	Timeout    time.Duration     `mapstructure:"timeout"`
	Extensions []string          `mapstructure:"extensions"`
}

// ParseConfig decodes the tool overrides under the given viper key, keyed by
// adapter name (eslint, ruff, govet).
func ParseConfig(key string) (map[string]Tool, error) {
	var tools map[string]Tool
	err := viper.UnmarshalKey(key, &tools)
	return tools, err
}
