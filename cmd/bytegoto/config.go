package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/BurntSushi/toml"

	"github.com/wippyai/bytegoto/code"
	"github.com/wippyai/bytegoto/errors"
)

// Config holds CLI defaults. Flags given on the command line override
// values read from the file.
type Config struct {
	Dialect     string `toml:"dialect"`
	Output      string `toml:"output"`
	Jobs        int    `toml:"jobs"`
	Verbose     bool   `toml:"verbose"`
	Disassemble bool   `toml:"disassemble"`
	Run         bool   `toml:"run"`
}

func defaultConfig() Config {
	return Config{
		Dialect: code.Wordcode.Name,
		Jobs:    runtime.NumCPU(),
	}
}

// loadConfig reads a TOML config file over the defaults. An empty path
// returns the defaults.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("cannot read %s: %w", path, err)
	}
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return cfg, errors.Wrap(errors.PhaseConfig, errors.KindInvalidData, err, "parse error in "+path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return cfg, errors.InvalidInput(errors.PhaseConfig, fmt.Sprintf("unknown key %q in %s", undecoded[0].String(), path))
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if _, err := code.DialectByName(c.Dialect); err != nil {
		return err
	}
	if c.Jobs < 1 {
		return errors.InvalidInput(errors.PhaseConfig, fmt.Sprintf("jobs must be positive, got %d", c.Jobs))
	}
	return nil
}

func (c Config) dialect() code.Dialect {
	d, _ := code.DialectByName(c.Dialect)
	return d
}
