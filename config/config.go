// Package config loads the BPM core's TOML configuration: the Store's
// on-disk directory, the list of configured ledgers, and sync tuning.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/naoina/toml"
)

// LedgerConfig describes one configured ledger entry. Label is the primary
// key used throughout the core (store composite keys, log context); Dial is
// opaque to the core and is handed to whatever concrete LedgerIO transport
// the caller wires up for this label.
type LedgerConfig struct {
	Label string            `toml:"label"`
	Dial  map[string]string `toml:"dial"`
}

// Config is the root configuration document.
type Config struct {
	// StoreDir is the directory the embedded document store persists to.
	StoreDir string `toml:"store_dir"`
	// Ledgers lists every ledger the LedgerRegistry will configure on startup.
	Ledgers []LedgerConfig `toml:"ledger"`
	// SubscribeIdleTimeout bounds how long Subscribe waits for the next
	// message before treating the stream as drained (spec default: 1s).
	SubscribeIdleTimeout Duration `toml:"subscribe_idle_timeout"`
}

// Duration wraps time.Duration so it can be read from TOML as "1s", "500ms", etc.
type Duration struct{ time.Duration }

func (d *Duration) UnmarshalTOML(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

const defaultSubscribeIdleTimeout = time.Second

// Default returns the documented zero-configuration defaults: an empty
// ledger list and a 1-second subscribe idle timeout.
func Default() *Config {
	return &Config{
		StoreDir:             "bpm-store",
		SubscribeIdleTimeout: Duration{defaultSubscribeIdleTimeout},
	}
}

// Load reads and validates a TOML configuration file at path.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	cfg := Default()
	if err := toml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration is self-consistent.
func (c *Config) Validate() error {
	if c.StoreDir == "" {
		return fmt.Errorf("config: store_dir must not be empty")
	}
	if c.SubscribeIdleTimeout.Duration <= 0 {
		c.SubscribeIdleTimeout = Duration{defaultSubscribeIdleTimeout}
	}
	seen := make(map[string]struct{}, len(c.Ledgers))
	for _, l := range c.Ledgers {
		if l.Label == "" {
			return fmt.Errorf("config: ledger entries must have a non-empty label")
		}
		if _, dup := seen[l.Label]; dup {
			return fmt.Errorf("config: duplicate ledger label %q", l.Label)
		}
		seen[l.Label] = struct{}{}
	}
	return nil
}
