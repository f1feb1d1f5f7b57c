package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/ritzau/circuit-index/pkg/connectivity"
	"github.com/ritzau/circuit-index/pkg/spikes"
)

// DefaultFile is read from the working directory when --config is not given
const DefaultFile = "circuit-index.toml"

const envPrefix = "CIRCUIT_INDEX_"

// Config holds all configuration for the application
type Config struct {
	ConfigFile  string  `koanf:"config"`
	Output      string  `koanf:"output"`
	Compression string  `koanf:"compression"`
	Inspect     string  `koanf:"inspect"`
	Verify      bool    `koanf:"verify"`
	Serve       bool    `koanf:"serve"`
	Port        int     `koanf:"port"`
	Watch       bool    `koanf:"watch"`
	Verbosity   string  `koanf:"verbosity"`
	VerboseCnt  int     `koanf:"verbose"`
	JSONLogs    bool    `koanf:"json-logs"`
	Network     Network `koanf:"network"`
}

// Network is the circuit to generate and index.
type Network struct {
	Nodes  []connectivity.NodePopulation `koanf:"nodes" json:"nodes"`
	Edges  []connectivity.Projection     `koanf:"edges" json:"edges"`
	Spikes []spikes.Train                `koanf:"spikes" json:"spikes"`
}

// Load loads configuration from defaults, config file, environment variables, and flags.
// Priority: Flags > Env > Config File > Defaults
//
// The network comes from the config file only. Without one the built-in
// DefaultNetwork is used.
func Load(f *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	defaults := map[string]interface{}{
		"config":      "",
		"output":      "circuit-index.json.zst",
		"compression": "zstd",
		"inspect":     "",
		"verify":      true,
		"serve":       false,
		"port":        8080,
		"watch":       false,
		"verbosity":   "",
		"verbose":     0,
		"json-logs":   false,
	}
	if err := k.Load(makeMapProvider(defaults), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file. An explicit path must exist; the default one may not.
	path, explicit := configPath(f)
	if _, err := os.Stat(path); err == nil || explicit {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to stat config file %s: %w", path, err)
	}

	// 3. Environment variables, e.g. CIRCUIT_INDEX_JSON_LOGS=true
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(
			strings.TrimPrefix(s, envPrefix)), "_", "-")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags
	if f != nil {
		if err := k.Load(posflag.Provider(f, ".", k), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if explicit || fileExists(path) {
		cfg.ConfigFile = path
	}

	if len(cfg.Network.Nodes) == 0 && len(cfg.Network.Edges) == 0 {
		cfg.Network = DefaultNetwork()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func configPath(f *pflag.FlagSet) (string, bool) {
	if f != nil {
		if p, err := f.GetString("config"); err == nil && p != "" {
			return p, true
		}
	}
	if p := os.Getenv(envPrefix + "CONFIG"); p != "" {
		return p, true
	}
	return DefaultFile, false
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Validate checks option values and that every projection and spike train
// refers to a declared node population.
func (c *Config) Validate() error {
	switch c.Compression {
	case "zstd", "lz4", "none":
	default:
		return fmt.Errorf("invalid compression %q (want zstd, lz4 or none)", c.Compression)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	return c.Network.Validate()
}

// Validate checks that names are unique and references resolve.
func (n *Network) Validate() error {
	pops := make(map[string]bool, len(n.Nodes))
	for _, p := range n.Nodes {
		if pops[p.Name] {
			return fmt.Errorf("duplicate node population %q", p.Name)
		}
		pops[p.Name] = true
	}

	edges := make(map[string]bool, len(n.Edges))
	for _, e := range n.Edges {
		if edges[e.Name] {
			return fmt.Errorf("duplicate edge population %q", e.Name)
		}
		edges[e.Name] = true
		if !pops[e.Source] {
			return fmt.Errorf("edge population %s: unknown source population %q", e.Name, e.Source)
		}
		if !pops[e.Target] {
			return fmt.Errorf("edge population %s: unknown target population %q", e.Name, e.Target)
		}
	}

	trains := make(map[string]bool, len(n.Spikes))
	for _, s := range n.Spikes {
		if trains[s.Name] {
			return fmt.Errorf("duplicate spike population %q", s.Name)
		}
		trains[s.Name] = true
		if !pops[s.Population] {
			return fmt.Errorf("spike population %s: unknown node population %q", s.Name, s.Population)
		}
	}
	return nil
}

// Population returns the node population called name.
func (n *Network) Population(name string) (connectivity.NodePopulation, bool) {
	for _, p := range n.Nodes {
		if p.Name == name {
			return p, true
		}
	}
	return connectivity.NodePopulation{}, false
}

// DefaultNetwork is a small excitatory/inhibitory circuit with an external
// input population and one spike train driving it.
func DefaultNetwork() Network {
	sections := connectivity.Sections{AfferentSectionPos: 0.5, EfferentSectionPos: 0.9}
	return Network{
		Nodes: []connectivity.NodePopulation{
			{Name: "pop_e", Size: 400, TypeID: 100},
			{Name: "pop_i", Size: 100, TypeID: 101},
			{Name: "pop_ext", Size: 5, TypeID: 200},
		},
		Edges: []connectivity.Projection{
			{Name: "pop_e_e", Source: "pop_e", Target: "pop_e", Pattern: connectivity.Convergent, Fan: 20, Offset: 1, TypeID: 100, Sections: sections},
			{Name: "pop_i_e", Source: "pop_i", Target: "pop_e", Pattern: connectivity.Convergent, Fan: 5, TypeID: 101, Sections: sections},
			{Name: "pop_i_i", Source: "pop_i", Target: "pop_i", Pattern: connectivity.Convergent, Fan: 5, Offset: 1, TypeID: 102, Sections: sections},
			{Name: "pop_e_i", Source: "pop_e", Target: "pop_i", Pattern: connectivity.Block, Fan: 20, TypeID: 103, Sections: sections},
			{Name: "pop_ext_e", Source: "pop_ext", Target: "pop_e", Pattern: connectivity.Explicit, TypeID: 200,
				Pairs: [][]int32{{0, 0}, {2, 100}, {3, 200}, {4, 300}}, Sections: sections},
		},
		Spikes: []spikes.Train{
			{Name: "spikes_ext", Population: "pop_ext", PerNode: 5, Interval: 15, Phase: 3},
		},
	}
}

// Helper to use map as a provider
type mapProvider struct {
	m map[string]interface{}
}

func makeMapProvider(m map[string]interface{}) *mapProvider {
	return &mapProvider{m: m}
}

func (p *mapProvider) Read() (map[string]interface{}, error) {
	return p.m, nil
}

func (p *mapProvider) ReadBytes() ([]byte, error) {
	return nil, fmt.Errorf("not implemented")
}
