// Package config implements Aelys's VmConfig: heap budget, capability
// policy, and hot-reload permission (spec.md §6.4).
//
// Grounded on naoina/toml (present in the teacher's root go.mod, used
// elsewhere in go-probe for node TOML config) for file loading, and on
// shirou/gopsutil for system-memory-aware default heap sizing.
package config

import (
	"os"

	"github.com/naoina/toml"
	"github.com/shirou/gopsutil/mem"
)

const (
	// DefaultMaxHeapBytes is spec.md §6.4's default: 4 GiB.
	DefaultMaxHeapBytes uint64 = 4 << 30
	// MinMaxHeapBytes is spec.md §6.4's floor: 1 MiB.
	MinMaxHeapBytes uint64 = 1 << 20
)

// Capabilities gates access to effectful built-ins a native function
// might expose (filesystem, network, process exec).
type Capabilities struct {
	AllowFS   bool `toml:"allow_fs"`
	AllowNet  bool `toml:"allow_net"`
	AllowExec bool `toml:"allow_exec"`
}

// VmConfig is the runtime's external configuration surface.
type VmConfig struct {
	MaxHeapBytes    uint64       `toml:"max_heap_bytes"`
	Capabilities    Capabilities `toml:"capabilities"`
	AllowHotReload  bool         `toml:"allow_hot_reload"`
	AllowedCaps     []string     `toml:"allowed_caps"`
	DeniedCaps      []string     `toml:"denied_caps"`
}

// Default returns a VmConfig sized from available system memory (capped
// at DefaultMaxHeapBytes), falling back to DefaultMaxHeapBytes outright
// if the memory probe fails — this host never hard-fails on telemetry.
func Default() *VmConfig {
	maxHeap := DefaultMaxHeapBytes
	if vm, err := mem.VirtualMemory(); err == nil {
		quarter := vm.Available / 4
		if quarter > 0 && quarter < maxHeap {
			maxHeap = quarter
		}
	}
	if maxHeap < MinMaxHeapBytes {
		maxHeap = MinMaxHeapBytes
	}
	return &VmConfig{MaxHeapBytes: maxHeap}
}

// LoadFile reads a TOML configuration file into a VmConfig, applying
// Default() first so unset fields keep their system-aware defaults.
func LoadFile(path string) (*VmConfig, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.normalize()
	return cfg, nil
}

func (c *VmConfig) normalize() {
	if c.MaxHeapBytes < MinMaxHeapBytes {
		c.MaxHeapBytes = MinMaxHeapBytes
	}
}

// CapabilityAllowed applies spec.md §6.4's policy: denied_caps always
// wins over allowed_caps; an empty allowed_caps means "all not
// explicitly denied".
func (c *VmConfig) CapabilityAllowed(name string) bool {
	for _, d := range c.DeniedCaps {
		if d == name {
			return false
		}
	}
	if len(c.AllowedCaps) == 0 {
		return true
	}
	for _, a := range c.AllowedCaps {
		if a == name {
			return true
		}
	}
	return false
}
