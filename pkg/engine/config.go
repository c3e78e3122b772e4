package engine

import (
	"github.com/bytecodealliance/wasmtime-go/v25"
)

const (
	defaultModuleCacheSize  = 256
	defaultMaxWasmStack     = 64 << 20
	defaultMaxMemoryBytes   = 512 << 20
	defaultMaxTableElements = 8192
	defaultMaxInstances     = 16
	defaultMaxTables        = 4
	defaultMaxMemories      = 4
)

// Config carries the engine knobs. The wasmtime side is locked down to a
// deterministic profile: any two replays of the same messages over the
// same state must burn identical fuel and produce identical traps.
type Config struct {
	wasmConfig *wasmtime.Config

	// ModuleCacheSize bounds how many compiled modules stay hot.
	ModuleCacheSize int

	// MaxMemoryBytes bounds a single sandbox's linear memory. A guest
	// growing past it sees the growth fail, the host stays unaffected.
	MaxMemoryBytes   int64
	MaxTableElements int64
	MaxInstances     int64
	MaxTables        int64
	MaxMemories      int64
}

// NewConfig returns the deterministic default configuration.
func NewConfig() *Config {
	cfg := wasmtime.NewConfig()

	cfg.SetStrategy(wasmtime.StrategyCranelift)
	cfg.SetCraneliftOptLevel(wasmtime.OptLevelSpeed)

	// fuel is the only interruption mechanism; epoch deadlines depend on
	// wall clocks and are left off
	cfg.SetConsumeFuel(true)

	// no host-observable nondeterminism: canonical NaNs, no threads, no
	// SIMD, a single 32-bit memory
	cfg.SetCraneliftFlag("enable_nan_canonicalization", "true")
	cfg.SetWasmThreads(false)
	cfg.SetWasmSIMD(false)
	cfg.SetWasmMemory64(false)
	cfg.SetWasmMultiMemory(false)
	cfg.SetWasmReferenceTypes(false)

	cfg.SetMaxWasmStack(defaultMaxWasmStack)

	return &Config{
		wasmConfig:       cfg,
		ModuleCacheSize:  defaultModuleCacheSize,
		MaxMemoryBytes:   defaultMaxMemoryBytes,
		MaxTableElements: defaultMaxTableElements,
		MaxInstances:     defaultMaxInstances,
		MaxTables:        defaultMaxTables,
		MaxMemories:      defaultMaxMemories,
	}
}

// Get returns the underlying wasmtime config.
func (c *Config) Get() *wasmtime.Config {
	return c.wasmConfig
}

// SetMaxWasmStack configures the maximum stack size, in bytes, that JIT
// code can use.
func (c *Config) SetMaxWasmStack(size int) {
	c.wasmConfig.SetMaxWasmStack(size)
}
