// Package config holds the settings of the autoexec scheduler.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/Arkiv-Network/autoexec/autotx"
	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/log"
)

// Duration is a time.Duration written as "500ms" or "2s" in TOML.
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	if parsed < 0 {
		return fmt.Errorf("duration must be >= 0, got %s", s)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

type Config struct {
	// DataDir is the base directory for ObjectsDB and LogDB when they are
	// relative.
	DataDir   string `toml:"data_dir"`
	ObjectsDB string `toml:"objects_db"`
	LogDB     string `toml:"log_db"`

	// NodeURL is the JSON-RPC endpoint chain time is read from. The local
	// clock is used when it is empty.
	NodeURL string `toml:"node_url"`

	PollInterval Duration `toml:"poll_interval"`
	GasPrice     uint64   `toml:"gas_price"`
	SignerScheme string   `toml:"signer_scheme"`
	LogLevel     string   `toml:"log_level"`

	// HistoryWindowMs is how long logged windows are kept. 0 keeps them
	// forever.
	HistoryWindowMs uint64 `toml:"history_window_ms"`
}

func Default() Config {
	return Config{
		DataDir:         "autoexec-data",
		ObjectsDB:       "objects.db",
		LogDB:           "triggerlog",
		PollInterval:    Duration(500 * time.Millisecond),
		GasPrice:        1000,
		SignerScheme:    autotx.SignerTriggerID.String(),
		LogLevel:        "info",
		HistoryWindowMs: uint64((24 * time.Hour).Milliseconds()),
	}
}

// Load reads path on top of the defaults. Unknown keys are an error.
func Load(path string) (Config, error) {
	cfg := Default()

	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return Config{}, fmt.Errorf("unknown config keys in %s: %s", path, strings.Join(keys, ", "))
	}

	return cfg, nil
}

func (c Config) Validate() error {
	errs := []error{}

	if c.DataDir == "" {
		errs = append(errs, errors.New("data_dir must be set"))
	}
	if c.ObjectsDB == "" {
		errs = append(errs, errors.New("objects_db must be set"))
	}
	if c.LogDB == "" {
		errs = append(errs, errors.New("log_db must be set"))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, errors.New("poll_interval must be positive"))
	}
	if c.GasPrice == 0 {
		errs = append(errs, errors.New("gas_price must be positive"))
	}
	if _, err := autotx.ParseSignerScheme(c.SignerScheme); err != nil {
		errs = append(errs, err)
	}
	if _, err := log.LvlFromString(c.LogLevel); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func (c Config) Scheme() autotx.SignerScheme {
	s, err := autotx.ParseSignerScheme(c.SignerScheme)
	if err != nil {
		return autotx.SignerTriggerID
	}
	return s
}

func (c Config) ObjectsPath() string {
	return c.resolve(c.ObjectsDB)
}

func (c Config) LogPath() string {
	return c.resolve(c.LogDB)
}

func (c Config) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.DataDir, p)
}
