// Package config loads the node configuration: defaults, then the TOML file,
// then .env and LOCALBOARD_* environment variables, then command-line flags.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"

	"localboard/internal/batch"
	"localboard/internal/erase"
	"localboard/internal/logger"
	"localboard/internal/storage"
)

var log = logger.Tag("config")

// Config holds the node's combined configuration.
type Config struct {
	Logger  logger.Config `toml:"logger"`
	Peer    PeerConfig    `toml:"peer"`
	Batch   BatchConfig   `toml:"batch"`
	Erase   erase.Options `toml:"erase"`
	History HistoryConfig `toml:"history"`
	Lineage LineageConfig `toml:"lineage"`
	Storage StorageConfig `toml:"storage"`
}

// PeerConfig describes this node on the network.
type PeerConfig struct {
	UserID    string `toml:"user_id"`
	BoardName string `toml:"board_name"`
	Listen    string `toml:"listen"`
	Port      int    `toml:"port"`
	Advertise bool   `toml:"advertise"`
}

// BatchConfig bounds gestures.
type BatchConfig struct {
	PointerTimeout    Duration `toml:"pointer_timeout"`
	PointerMaxActions int      `toml:"pointer_max_actions"`
	EraserTimeout     Duration `toml:"eraser_timeout"`
	EraserMaxActions  int      `toml:"eraser_max_actions"`
}

// Limits converts the section for the batch manager.
func (c BatchConfig) Limits() batch.Limits {
	return batch.Limits{
		Pointer: batch.Limit{Timeout: c.PointerTimeout.Duration, MaxActions: c.PointerMaxActions},
		Eraser:  batch.Limit{Timeout: c.EraserTimeout.Duration, MaxActions: c.EraserMaxActions},
	}
}

type HistoryConfig struct {
	MaxPerUser int `toml:"max_per_user"`
}

type LineageConfig struct {
	Retention     Duration `toml:"retention"`
	MaxEntries    int      `toml:"max_entries"`
	PruneInterval Duration `toml:"prune_interval"`
}

// StorageConfig enables Postgres persistence.
type StorageConfig struct {
	Enabled          bool     `toml:"enabled"`
	DSN              string   `toml:"dsn"`
	BoardID          string   `toml:"board_id"`
	Migrate          bool     `toml:"migrate"`
	Workers          int      `toml:"workers"`
	QueueSize        int      `toml:"queue_size"`
	SnapshotInterval Duration `toml:"snapshot_interval"`
}

// Options converts the section for storage.Connect.
func (c StorageConfig) Options() storage.Options {
	return storage.Options{DSN: c.DSN, MaxIdleConns: 10, MaxOpenConns: 100, Migrate: c.Migrate}
}

// Duration is a time.Duration written as "750ms" or "3s" in TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// NewDefaultConfig creates a Config with default values.
func NewDefaultConfig() *Config {
	limits := batch.DefaultLimits()
	return &Config{
		Logger: logger.NewConfig(),
		Peer: PeerConfig{
			BoardName: "LocalBoard",
			Port:      DefaultPort,
			Advertise: true,
		},
		Batch: BatchConfig{
			PointerTimeout:    Duration{limits.Pointer.Timeout},
			PointerMaxActions: limits.Pointer.MaxActions,
			EraserTimeout:     Duration{limits.Eraser.Timeout},
			EraserMaxActions:  limits.Eraser.MaxActions,
		},
		Erase:   erase.DefaultOptions(),
		History: HistoryConfig{MaxPerUser: DefaultMaxPerUser},
		Lineage: LineageConfig{
			Retention:     Duration{DefaultLineageRetention},
			MaxEntries:    DefaultLineageMaxEntries,
			PruneInterval: Duration{DefaultPruneInterval},
		},
		Storage: StorageConfig{
			Migrate:          true,
			Workers:          DefaultStorageWorkers,
			SnapshotInterval: Duration{DefaultSnapshotInterval},
		},
	}
}

// DefaultConfigPath returns ~/.config/localboard/config.toml or "" when the
// user config directory is unknown.
func DefaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, AppName, DefaultConfigFileName)
}

// loadFile decodes the TOML file at path over cfg. Keys absent from the file
// keep their current value. A missing file is not an error.
func loadFile(path string, cfg *Config) error {
	md, err := toml.DecodeFile(path, cfg)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to parse config file '%s': %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		log.Warnf("config file '%s': unrecognized keys: %v", path, undecoded)
	}
	return nil
}

// validate resets invalid values to their defaults.
func (c *Config) validate() {
	d := NewDefaultConfig()

	if c.Logger.LogLevel == "" {
		c.Logger.LogLevel = d.Logger.LogLevel
	}
	if c.Peer.UserID == "" {
		c.Peer.UserID = defaultUserID()
	}
	if c.Peer.Port <= 0 || c.Peer.Port > 65535 {
		c.Peer.Port = d.Peer.Port
	}
	if c.Batch.PointerTimeout.Duration <= 0 {
		c.Batch.PointerTimeout = d.Batch.PointerTimeout
	}
	if c.Batch.PointerMaxActions <= 0 {
		c.Batch.PointerMaxActions = d.Batch.PointerMaxActions
	}
	if c.Batch.EraserTimeout.Duration <= 0 {
		c.Batch.EraserTimeout = d.Batch.EraserTimeout
	}
	if c.Batch.EraserMaxActions <= 0 {
		c.Batch.EraserMaxActions = d.Batch.EraserMaxActions
	}
	if c.History.MaxPerUser <= 0 {
		c.History.MaxPerUser = d.History.MaxPerUser
	}
	if c.Lineage.Retention.Duration < 0 {
		c.Lineage.Retention = d.Lineage.Retention
	}
	if c.Lineage.MaxEntries < 0 {
		c.Lineage.MaxEntries = d.Lineage.MaxEntries
	}
	if c.Lineage.PruneInterval.Duration <= 0 {
		c.Lineage.PruneInterval = d.Lineage.PruneInterval
	}
	if c.Storage.Workers <= 0 {
		c.Storage.Workers = d.Storage.Workers
	}
	if c.Storage.SnapshotInterval.Duration <= 0 {
		c.Storage.SnapshotInterval = d.Storage.SnapshotInterval
	}
	if c.Storage.BoardID != "" {
		if _, err := uuid.Parse(c.Storage.BoardID); err != nil {
			log.Warnf("storage board_id %q is not a uuid, deriving one from it", c.Storage.BoardID)
			c.Storage.BoardID = uuid.NewSHA1(uuid.NameSpaceURL, []byte(AppName+":"+c.Storage.BoardID)).String()
		}
	}
	if c.Storage.Enabled && c.Storage.DSN == "" {
		log.Warnf("storage enabled without a dsn, disabling")
		c.Storage.Enabled = false
	}
}

func defaultUserID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "peer"
	}
	return host + "-" + uuid.NewString()[:8]
}

// LoadConfig builds the configuration. path overrides the default config
// file location; flags may be nil when no command line applies. The
// returned config is always usable: on a file error it holds the other
// layers and the error is returned alongside.
func LoadConfig(path string, flags *Flags) (*Config, error) {
	cfg := NewDefaultConfig()

	if path == "" {
		path = DefaultConfigPath()
	}
	var fileErr error
	if path != "" {
		fileErr = loadFile(path, cfg)
	}

	loadDotEnv(DefaultEnvFileName)
	applyEnv(cfg, os.LookupEnv)

	if flags != nil {
		flags.ApplyOverrides(cfg)
	}
	cfg.validate()
	return cfg, fileErr
}
