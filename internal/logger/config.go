// Package logger provides the node's structured logging.
package logger

import (
	"strings"

	"github.com/rs/zerolog"
)

// Config holds all settings for the logger.
type Config struct {
	// LogLevel specifies the minimum level to log (debug, info, warn, error).
	LogLevel string `toml:"level"`

	// LogFilePath is the path to the output log file. Use empty or "-" for stderr.
	LogFilePath string `toml:"file"`

	// Console switches from JSON lines to the human readable console writer.
	Console bool `toml:"console"`

	// DisabledTags drops messages logged through Tag(name) for these tags.
	DisabledTags []string `toml:"disabled_tags"`

	level           zerolog.Level
	disabledTagsSet map[string]struct{}
}

// NewConfig creates a new Config with default values
func NewConfig() Config {
	return Config{
		LogLevel: "info",
		Console:  true,
	}
}

// process parses string levels/lists into their internal form.
func (c *Config) process() {
	c.level = zerolog.InfoLevel
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		c.level = zerolog.DebugLevel
	case "info":
		c.level = zerolog.InfoLevel
	case "warn", "warning":
		c.level = zerolog.WarnLevel
	case "error", "err":
		c.level = zerolog.ErrorLevel
	}
	c.disabledTagsSet = sliceToSet(c.DisabledTags)
}

func sliceToSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		if item != "" {
			set[strings.ToLower(item)] = struct{}{}
		}
	}
	if len(set) == 0 {
		return nil
	}
	return set
}

func (c *Config) tagDisabled(tag string) bool {
	if c.disabledTagsSet == nil {
		return false
	}
	_, found := c.disabledTagsSet[strings.ToLower(tag)]
	return found
}
