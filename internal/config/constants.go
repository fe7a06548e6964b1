package config

import "time"

const AppName = "localboard"
const DefaultConfigFileName = "config.toml"
const DefaultEnvFileName = ".env"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "LOCALBOARD_"

const DefaultPort = 8888
const DefaultMaxPerUser = 500

const DefaultLineageRetention = 10 * time.Minute
const DefaultLineageMaxEntries = 10000
const DefaultPruneInterval = time.Minute

const DefaultStorageWorkers = 2
const DefaultSnapshotInterval = 30 * time.Second
