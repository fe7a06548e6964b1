package config

import (
	"flag"
	"fmt"
)

// Flags holds values parsed from command-line flags.
type Flags struct {
	set *flag.FlagSet

	ConfigFilePath *string
	LogLevel       *string
	LogFilePath    *string
	UserID         *string
	Port           *int
	Advertise      *bool
	DSN            *string
	ExportPath     *string
	OpenPath       *string
	SavePath       *string
}

// DefineFlags registers the flags on fs.
func (f *Flags) DefineFlags(fs *flag.FlagSet) {
	f.set = fs
	f.ConfigFilePath = fs.String("config", "", fmt.Sprintf("Path to TOML configuration file (default ~/.config/%s/%s)", AppName, DefaultConfigFileName))
	f.LogLevel = fs.String("loglevel", "", "Log level (debug, info, warn, error) - Overrides config file")
	f.LogFilePath = fs.String("logfile", "", "Path to write log file (use '-' for stderr) - Overrides config file")
	f.UserID = fs.String("user", "", "User id announced to peers - Overrides config file")
	f.Port = fs.Int("port", 0, "Port the host listens on - Overrides config file")
	f.Advertise = fs.Bool("mdns", true, "Advertise the hosted board over mDNS - Overrides config file")
	f.DSN = fs.String("db", "", "Postgres DSN; enables storage - Overrides config file")
	f.ExportPath = fs.String("export", "", "Write the board to this PDF file on exit")
	f.OpenPath = fs.String("open", "", "Load a saved board file when hosting")
	f.SavePath = fs.String("save", "", "Save the board to this file on exit")
}

// ParseFlags defines the flags on fs, parses args and returns the remaining
// arguments (the share link, when joining).
func (f *Flags) ParseFlags(fs *flag.FlagSet, args []string) ([]string, error) {
	f.DefineFlags(fs)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return fs.Args(), nil
}

// ApplyOverrides updates cfg with the flags that were set.
func (f *Flags) ApplyOverrides(cfg *Config) {
	if f.set == nil {
		return
	}
	f.set.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "loglevel":
			if *f.LogLevel != "" {
				cfg.Logger.LogLevel = *f.LogLevel
			}
		case "logfile":
			cfg.Logger.LogFilePath = *f.LogFilePath
		case "user":
			if *f.UserID != "" {
				cfg.Peer.UserID = *f.UserID
			}
		case "port":
			if *f.Port > 0 {
				cfg.Peer.Port = *f.Port
			}
		case "mdns":
			cfg.Peer.Advertise = *f.Advertise
		case "db":
			if *f.DSN != "" {
				cfg.Storage.DSN = *f.DSN
				cfg.Storage.Enabled = true
			}
		}
	})
}
