package vm

import "github.com/aelys-lang/aelys/lang/callsite"

// Resource ceilings enforced by the dispatch loop, spec.md §5.
const (
	// MaxFrames bounds the call-frame stack depth.
	MaxFrames = 1024
	// MaxRegisters bounds the shared register stack across all live frames.
	MaxRegisters = 65536
	// MaxNoGCDepth bounds how deeply EnterNoGc/ExitNoGc brackets may nest.
	MaxNoGCDepth = 64
	// MaxCallSiteSlots mirrors callsite.MaxSlots, the per-function ceiling
	// on CallGlobal* cache slots.
	MaxCallSiteSlots = callsite.MaxSlots
)
