package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaults(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.validate()
	assert.Equal(t, DefaultPort, cfg.Peer.Port)
	assert.NotEmpty(t, cfg.Peer.UserID)
	assert.Equal(t, time.Second, cfg.Batch.PointerTimeout.Duration)
	assert.Equal(t, 1000, cfg.Batch.EraserMaxActions)
	assert.Equal(t, 0.5, cfg.Erase.DensityFactor)
	assert.False(t, cfg.Storage.Enabled)
}

func TestLoadFileOverridesOnlyPresentKeys(t *testing.T) {
	path := writeFile(t, `
[peer]
user_id = "alice"
port = 9000

[batch]
pointer_timeout = "750ms"

[erase]
density_factor = 0.25

[lineage]
retention = "1h"
`)
	cfg := NewDefaultConfig()
	require.NoError(t, loadFile(path, cfg))
	assert.Equal(t, "alice", cfg.Peer.UserID)
	assert.Equal(t, 9000, cfg.Peer.Port)
	assert.True(t, cfg.Peer.Advertise, "untouched keys keep their default")
	assert.Equal(t, 750*time.Millisecond, cfg.Batch.PointerTimeout.Duration)
	assert.Equal(t, 100, cfg.Batch.PointerMaxActions)
	assert.Equal(t, 0.25, cfg.Erase.DensityFactor)
	assert.Equal(t, 8.0, cfg.Erase.SmallRadius)
	assert.Equal(t, time.Hour, cfg.Lineage.Retention.Duration)

	limits := cfg.Batch.Limits()
	assert.Equal(t, 750*time.Millisecond, limits.Pointer.Timeout)
	assert.Equal(t, 3*time.Second, limits.Eraser.Timeout)
}

func TestLoadFileErrors(t *testing.T) {
	cfg := NewDefaultConfig()
	assert.NoError(t, loadFile(filepath.Join(t.TempDir(), "absent.toml"), cfg))
	assert.Error(t, loadFile(writeFile(t, `[batch]
pointer_timeout = "soon"`), cfg))
	assert.Error(t, loadFile(writeFile(t, `not toml`), cfg))
}

func TestValidateResetsInvalidValues(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Peer.Port = 70000
	cfg.Batch.PointerMaxActions = -1
	cfg.Batch.EraserTimeout = Duration{}
	cfg.History.MaxPerUser = 0
	cfg.Lineage.PruneInterval = Duration{-time.Second}
	cfg.Storage.Enabled = true
	cfg.Storage.BoardID = "team-board"
	cfg.validate()

	d := NewDefaultConfig()
	assert.Equal(t, d.Peer.Port, cfg.Peer.Port)
	assert.Equal(t, d.Batch.PointerMaxActions, cfg.Batch.PointerMaxActions)
	assert.Equal(t, d.Batch.EraserTimeout, cfg.Batch.EraserTimeout)
	assert.Equal(t, d.History.MaxPerUser, cfg.History.MaxPerUser)
	assert.Equal(t, d.Lineage.PruneInterval, cfg.Lineage.PruneInterval)
	assert.False(t, cfg.Storage.Enabled, "storage needs a dsn")

	id, err := uuid.Parse(cfg.Storage.BoardID)
	require.NoError(t, err)
	again := NewDefaultConfig()
	again.Storage.BoardID = "team-board"
	again.validate()
	assert.Equal(t, id.String(), again.Storage.BoardID, "names map to a stable id")
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"LOCALBOARD_USER_ID":           "bob",
		"LOCALBOARD_PORT":              "9100",
		"LOCALBOARD_ADVERTISE":         "false",
		"LOCALBOARD_LINEAGE_RETENTION": "90s",
		"LOCALBOARD_HISTORY_MAX":       "many",
		"DB_URL":                       "postgres://fallback",
	}
	cfg := NewDefaultConfig()
	applyEnv(cfg, func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	assert.Equal(t, "bob", cfg.Peer.UserID)
	assert.Equal(t, 9100, cfg.Peer.Port)
	assert.False(t, cfg.Peer.Advertise)
	assert.Equal(t, 90*time.Second, cfg.Lineage.Retention.Duration)
	assert.Equal(t, DefaultMaxPerUser, cfg.History.MaxPerUser, "bad values are ignored")
	assert.Equal(t, "postgres://fallback", cfg.Storage.DSN)

	env["LOCALBOARD_DB_URL"] = "postgres://prefixed"
	applyEnv(cfg, func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	assert.Equal(t, "postgres://prefixed", cfg.Storage.DSN)
}

func TestFlagsOverrideConfig(t *testing.T) {
	var f Flags
	fs := flag.NewFlagSet("localboard", flag.ContinueOnError)
	rest, err := f.ParseFlags(fs, []string{"-user", "carol", "-port", "9200", "-mdns=false", "-db", "postgres://x", "localboard://10.0.0.2:8888"})
	require.NoError(t, err)
	assert.Equal(t, []string{"localboard://10.0.0.2:8888"}, rest)

	cfg := NewDefaultConfig()
	cfg.Logger.LogLevel = "warn"
	f.ApplyOverrides(cfg)
	assert.Equal(t, "carol", cfg.Peer.UserID)
	assert.Equal(t, 9200, cfg.Peer.Port)
	assert.False(t, cfg.Peer.Advertise)
	assert.True(t, cfg.Storage.Enabled)
	assert.Equal(t, "postgres://x", cfg.Storage.DSN)
	assert.Equal(t, "warn", cfg.Logger.LogLevel, "unset flags leave the config alone")
}

func TestLoadConfigLayers(t *testing.T) {
	path := writeFile(t, `
[peer]
user_id = "from-file"
port = 9300
`)
	t.Setenv("LOCALBOARD_PORT", "9400")

	var f Flags
	fs := flag.NewFlagSet("localboard", flag.ContinueOnError)
	_, err := f.ParseFlags(fs, []string{"-user", "from-flag"})
	require.NoError(t, err)

	cfg, err := LoadConfig(path, &f)
	require.NoError(t, err)
	assert.Equal(t, "from-flag", cfg.Peer.UserID)
	assert.Equal(t, 9400, cfg.Peer.Port)
}

func TestDurationText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte(" 1m30s ")))
	assert.Equal(t, 90*time.Second, d.Duration)
	out, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1m30s", string(out))
	assert.Error(t, d.UnmarshalText([]byte("later")))
}
