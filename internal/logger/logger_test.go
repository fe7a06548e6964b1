package logger

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestTaggedLoggingRespectsDisabledTags(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, zerolog.DebugLevel)

	mu.Lock()
	cfg := Config{DisabledTags: []string{"Batch"}}
	cfg.process()
	activeConfig = cfg
	mu.Unlock()
	t.Cleanup(func() {
		mu.Lock()
		activeConfig = NewConfig()
		mu.Unlock()
		SetOutput(&bytes.Buffer{}, zerolog.Disabled)
	})

	Tag("batch").Infof("dropped %d", 1)
	Tag("erase").Infof("kept %d", 2)

	out := buf.String()
	assert.NotContains(t, out, "dropped")
	assert.Contains(t, out, "kept 2")
	assert.Contains(t, out, `"tag":"erase"`)
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, zerolog.WarnLevel)
	t.Cleanup(func() { SetOutput(&bytes.Buffer{}, zerolog.Disabled) })

	Debugf("quiet")
	Warnf("loud")

	assert.NotContains(t, buf.String(), "quiet")
	assert.Contains(t, buf.String(), "loud")
}

func TestConfigProcessLevels(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"WARNING": zerolog.WarnLevel,
		"err":     zerolog.ErrorLevel,
		"bogus":   zerolog.InfoLevel,
	}
	for in, want := range tests {
		c := Config{LogLevel: in}
		c.process()
		assert.Equal(t, want, c.level, in)
	}
}
