package config

import (
	"flag"
	"io"
)

// CLIFlags holds command-line overrides. Nil fields were not set on the
// command line and leave the loaded config untouched.
type CLIFlags struct {
	ConfigPath *string
	Port       *string
	LogLevel   *string
	DSN        *string
	NatsURL    *string
	RulesFile  *string
}

// ParseFlags parses command-line arguments into CLIFlags.
// Only flags explicitly present in args end up non-nil.
func ParseFlags(args []string) (CLIFlags, error) {
	fs := flag.NewFlagSet("taskpilot", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	configPath := fs.String("config", "", "path to YAML config file")
	fs.StringVar(configPath, "c", "", "path to YAML config file (shorthand)")
	port := fs.String("port", "", "HTTP server port")
	fs.StringVar(port, "p", "", "HTTP server port (shorthand)")
	logLevel := fs.String("log-level", "", "log level (debug|info|warn|error)")
	dsn := fs.String("dsn", "", "PostgreSQL connection string")
	natsURL := fs.String("nats-url", "", "NATS server URL")
	rulesFile := fs.String("rules", "", "path to routing rules YAML")

	if err := fs.Parse(args); err != nil {
		return CLIFlags{}, err
	}

	var flags CLIFlags
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if set["config"] || set["c"] {
		flags.ConfigPath = configPath
	}
	if set["port"] || set["p"] {
		flags.Port = port
	}
	if set["log-level"] {
		flags.LogLevel = logLevel
	}
	if set["dsn"] {
		flags.DSN = dsn
	}
	if set["nats-url"] {
		flags.NatsURL = natsURL
	}
	if set["rules"] {
		flags.RulesFile = rulesFile
	}
	return flags, nil
}

// LoadWithCLI loads configuration with the full hierarchy:
// defaults < YAML < ENV < CLI flags. Returns the config and the resolved
// YAML path.
func LoadWithCLI(flags CLIFlags) (*Config, string, error) {
	path := DefaultConfigFile
	if flags.ConfigPath != nil {
		path = *flags.ConfigPath
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		return nil, path, err
	}

	applyCLI(cfg, flags)

	if err := validate(cfg); err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

// applyCLI overlays non-nil CLI flags onto cfg.
func applyCLI(cfg *Config, flags CLIFlags) {
	if flags.Port != nil {
		cfg.Server.Port = *flags.Port
	}
	if flags.LogLevel != nil {
		cfg.Logging.Level = *flags.LogLevel
	}
	if flags.DSN != nil {
		cfg.Postgres.DSN = *flags.DSN
	}
	if flags.NatsURL != nil {
		cfg.NATS.URL = *flags.NatsURL
	}
	if flags.RulesFile != nil {
		cfg.Engine.RulesFile = *flags.RulesFile
	}
}
