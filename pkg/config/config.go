// Package config loads the simulator's configuration once at startup from
// a YAML file. This is a single-binary simulator, not a long-running daemon
// reacting to a cluster control plane, so a load-once pattern is favored
// over hot-reloadable, watch-based configuration machinery; what's kept is
// just an operator-facing, validated config struct.
package config

import (
	"os"

	"github.com/pkg/errors"
	"sigs.k8s.io/yaml"
)

// ClientConfig describes one simulated client.
type ClientConfig struct {
	AddrSpaceSize int    `json:"addr_space_size"`
	Pattern       string `json:"pattern"`
}

// ServerMemoryConfig is the per-tier page capacity, in pages.
type ServerMemoryConfig struct {
	LocalNumaSize  int `json:"local_numa_size"`
	RemoteNumaSize int `json:"remote_numa_size"`
	PmemSize       int `json:"pmem_size"`
}

// PolicyConfig parameterizes the scanner's classification thresholds and
// optional migration bandwidth shaping.
type PolicyConfig struct {
	HotAccessCnt          uint64  `json:"hot_access_cnt"`
	ColdAccessIntervalMs  int64   `json:"cold_access_interval_ms"`
	MigrateBandwidthMBs   float64 `json:"migrate_bandwidth_mb_s,omitempty"`
}

// NodeConfig is the tier-to-NUMA-node-id mapping.
type NodeConfig struct {
	LocalNode  int `json:"local_node"`
	RemoteNode int `json:"remote_node"`
	PMEMNode   int `json:"pmem_node"`
}

// Config is the complete, validated startup configuration.
type Config struct {
	BufferSize         int                `json:"buffer_size"`
	ClientConfigs      []ClientConfig     `json:"client_configs"`
	MessageCount       int                `json:"message_count"`
	ServerMemoryConfig ServerMemoryConfig `json:"server_memory_config"`
	PolicyConfig       PolicyConfig       `json:"policy_config"`
	Nodes              NodeConfig         `json:"nodes"`
	ScanIntervalMs      int64  `json:"scan_interval_ms"`
	MetricsAddr         string `json:"metrics_addr,omitempty"`
	LogLevel            string `json:"log_level,omitempty"`
	DebugSources        string `json:"debug_sources,omitempty"`
}

// Load reads and parses a YAML config file from path, then validates it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %q", path)
	}

	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, errors.Wrapf(err, "parse config %q", path)
	}

	applyDefaults(&c)

	if err := c.Validate(); err != nil {
		return nil, errors.Wrapf(err, "validate config %q", path)
	}
	return &c, nil
}

func applyDefaults(c *Config) {
	if c.ScanIntervalMs == 0 {
		c.ScanIntervalMs = 10
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	for i := range c.ClientConfigs {
		if c.ClientConfigs[i].Pattern == "" {
			c.ClientConfigs[i].Pattern = "sequential"
		}
	}
}

// TotalAddrSpace returns the sum of every client's address space size.
func (c *Config) TotalAddrSpace() int {
	total := 0
	for _, cc := range c.ClientConfigs {
		total += cc.AddrSpaceSize
	}
	return total
}

// Validate checks the cross-field invariants the component design relies
// on at init time: buffer size is a power of two, and tier capacities sum
// to the total client address space.
func (c *Config) Validate() error {
	if c.BufferSize < 1 || c.BufferSize&(c.BufferSize-1) != 0 {
		return errors.Errorf("buffer_size %d must be a power of two", c.BufferSize)
	}
	if len(c.ClientConfigs) == 0 {
		return errors.New("client_configs must be non-empty")
	}
	for i, cc := range c.ClientConfigs {
		if cc.AddrSpaceSize <= 0 {
			return errors.Errorf("client_configs[%d].addr_space_size must be positive", i)
		}
		switch cc.Pattern {
		case "sequential", "uniform-random", "hot-spot":
		default:
			return errors.Errorf("client_configs[%d].pattern %q is not one of sequential, uniform-random, hot-spot", i, cc.Pattern)
		}
	}
	if c.MessageCount <= 0 {
		return errors.New("message_count must be positive")
	}

	sm := c.ServerMemoryConfig
	if sm.LocalNumaSize < 0 || sm.RemoteNumaSize < 0 || sm.PmemSize < 0 {
		return errors.New("server_memory_config sizes must be non-negative")
	}
	total := c.TotalAddrSpace()
	if sm.LocalNumaSize+sm.RemoteNumaSize+sm.PmemSize != total {
		return errors.Errorf("server_memory_config totals %d pages, want %d (sum of client address spaces)",
			sm.LocalNumaSize+sm.RemoteNumaSize+sm.PmemSize, total)
	}

	if c.PolicyConfig.ColdAccessIntervalMs <= 0 {
		return errors.New("policy_config.cold_access_interval_ms must be positive")
	}
	if c.PolicyConfig.MigrateBandwidthMBs < 0 {
		return errors.New("policy_config.migrate_bandwidth_mb_s must be non-negative")
	}

	return nil
}
