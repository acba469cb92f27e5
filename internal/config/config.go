// Package config loads inspfwdctl's deployment settings: the
// websocket address of the remote analyzer, the persistence file
// path, the admission bandwidth ceiling, and the metrics listen
// address. The teacher reads all of this from bare flag.StringVar
// calls in main(); this module generalizes that into a small struct
// loadable from a YAML file with flag overrides layered on top, the
// way a long-running service (rather than a one-shot scan) wants its
// configuration.
package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is inspfwdctl's complete runtime configuration.
type Config struct {
	WebsocketAddress string        `yaml:"websocket_address"`
	PersistencePath  string        `yaml:"persistence_path"`
	MaxBandwidth     float64       `yaml:"max_bandwidth"`
	MetricsAddress   string        `yaml:"metrics_address"`
	SourceInfoWait   time.Duration `yaml:"source_info_wait"`
}

// Default mirrors the teacher's flag defaults ("127.0.0.1:5454" for
// the websocket address) plus this module's own additions.
func Default() Config {
	return Config{
		WebsocketAddress: "127.0.0.1:5454",
		MaxBandwidth:      192_000,
		MetricsAddress:    ":9090",
		SourceInfoWait:    2 * time.Second,
	}
}

// Load reads a YAML config file, if path is non-empty, on top of
// Default, then returns the merged result. An empty path is not an
// error: Load then returns Default unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// RegisterFlags binds cfg's fields to flag overrides on fs, matching
// the teacher's flag.StringVar("ws", ...)/flag.StringVar("conf", ...)
// naming.
func RegisterFlags(fs *flag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.WebsocketAddress, "ws", cfg.WebsocketAddress, "analyzer websocket address (IP:port)")
	fs.StringVar(&cfg.PersistencePath, "conf", cfg.PersistencePath, "persistence file to load/save the channel tree")
	fs.Float64Var(&cfg.MaxBandwidth, "max-bandwidth", cfg.MaxBandwidth, "maximum channel bandwidth, Hz")
	fs.StringVar(&cfg.MetricsAddress, "metrics", cfg.MetricsAddress, "metrics HTTP listen address")
}
