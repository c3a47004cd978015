// Package settings merges the config file, global flags and environment
// into one validated config.Config and sets up logging from it.
package settings

import (
	"fmt"
	"os"

	"github.com/Arkiv-Network/autoexec/config"
	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"
)

const (
	ConfigFlag   = "config"
	LogLevelFlag = "log-level"
	DataDirFlag  = "data-dir"
)

// GlobalFlags are shared by every command.
func GlobalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    ConfigFlag,
			Usage:   "Path to a TOML config file",
			EnvVars: []string{"AUTOEXEC_CONFIG"},
		},
		&cli.StringFlag{
			Name:    LogLevelFlag,
			Usage:   "Log level (trace, debug, info, warn, error, crit)",
			EnvVars: []string{"AUTOEXEC_LOG_LEVEL"},
		},
		&cli.StringFlag{
			Name:    DataDirFlag,
			Usage:   "Directory holding the object store and the trigger log",
			EnvVars: []string{"AUTOEXEC_DATA_DIR"},
		},
	}
}

// Load builds the config for the running command. Flags win over the
// config file, which wins over the defaults.
func Load(c *cli.Context) (config.Config, error) {
	cfg := config.Default()

	if path := c.String(ConfigFlag); path != "" {
		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return config.Config{}, err
		}
	}

	if c.IsSet(LogLevelFlag) {
		cfg.LogLevel = c.String(LogLevelFlag)
	}
	if c.IsSet(DataDirFlag) {
		cfg.DataDir = c.String(DataDirFlag)
	}

	err := cfg.Validate()
	if err != nil {
		return config.Config{}, fmt.Errorf("invalid config: %w", err)
	}

	err = SetupLogging(cfg.LogLevel)
	if err != nil {
		return config.Config{}, err
	}

	return cfg, nil
}

func SetupLogging(level string) error {
	lvl, err := log.LvlFromString(level)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	log.SetDefault(log.NewLogger(log.NewTerminalHandlerWithLevel(os.Stderr, lvl, true)))
	return nil
}
