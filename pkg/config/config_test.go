package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const validYAML = `
buffer_size: 16
client_configs:
  - addr_space_size: 4
    pattern: sequential
  - addr_space_size: 4
    pattern: hot-spot
message_count: 100
server_memory_config:
  local_numa_size: 4
  remote_numa_size: 2
  pmem_size: 2
policy_config:
  hot_access_cnt: 5
  cold_access_interval_ms: 1000
nodes:
  local_node: 0
  remote_node: 1
  pmem_node: 2
`

func writeTemp(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeTemp(t, validYAML)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 16, cfg.BufferSize)
	require.Equal(t, 8, cfg.TotalAddrSpace())
	require.Equal(t, "info", cfg.LogLevel)
	require.EqualValues(t, 10, cfg.ScanIntervalMs)
}

func TestLoadRejectsNonPowerOfTwoBufferSize(t *testing.T) {
	path := writeTemp(t, `
buffer_size: 15
client_configs:
  - addr_space_size: 4
message_count: 1
server_memory_config:
  local_numa_size: 4
policy_config:
  cold_access_interval_ms: 10
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsMismatchedTierTotals(t *testing.T) {
	path := writeTemp(t, `
buffer_size: 2
client_configs:
  - addr_space_size: 4
message_count: 1
server_memory_config:
  local_numa_size: 1
policy_config:
  cold_access_interval_ms: 10
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsUnknownPattern(t *testing.T) {
	path := writeTemp(t, `
buffer_size: 2
client_configs:
  - addr_space_size: 4
    pattern: chaotic
message_count: 1
server_memory_config:
  local_numa_size: 4
policy_config:
  cold_access_interval_ms: 10
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadDefaultsPatternToSequential(t *testing.T) {
	path := writeTemp(t, `
buffer_size: 2
client_configs:
  - addr_space_size: 4
message_count: 1
server_memory_config:
  local_numa_size: 4
policy_config:
  cold_access_interval_ms: 10
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "sequential", cfg.ClientConfigs[0].Pattern)
}
