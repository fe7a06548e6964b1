package config

import (
	"errors"
	"io/fs"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// loadDotEnv reads KEY=value pairs from path into the process environment.
// Variables already set win over the file.
func loadDotEnv(path string) {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warnf("could not read %s: %v", path, err)
	}
}

// applyEnv applies LOCALBOARD_* variables. DB_URL is honoured as a fallback
// for the storage dsn.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) {
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				log.Warnf("ignoring %s%s=%q: %v", EnvPrefix, key, v, err)
				return
			}
			*dst = n
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				log.Warnf("ignoring %s%s=%q: %v", EnvPrefix, key, v, err)
				return
			}
			*dst = b
		}
	}
	duration := func(key string, dst *Duration) {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				log.Warnf("ignoring %s%s=%q: %v", EnvPrefix, key, v, err)
				return
			}
			dst.Duration = d
		}
	}

	str("LOG_LEVEL", &cfg.Logger.LogLevel)
	str("LOG_FILE", &cfg.Logger.LogFilePath)
	str("USER_ID", &cfg.Peer.UserID)
	str("BOARD_NAME", &cfg.Peer.BoardName)
	str("LISTEN", &cfg.Peer.Listen)
	num("PORT", &cfg.Peer.Port)
	boolean("ADVERTISE", &cfg.Peer.Advertise)
	num("HISTORY_MAX", &cfg.History.MaxPerUser)
	duration("LINEAGE_RETENTION", &cfg.Lineage.Retention)
	boolean("STORAGE_ENABLED", &cfg.Storage.Enabled)
	str("BOARD_ID", &cfg.Storage.BoardID)

	if v, ok := lookup("DB_URL"); ok && v != "" {
		cfg.Storage.DSN = v
	}
	str("DB_URL", &cfg.Storage.DSN)
}
