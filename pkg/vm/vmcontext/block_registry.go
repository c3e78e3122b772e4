package vmcontext

import (
	"github.com/filecoin-project/go-fvm/pkg/vm/runtime"
)

// UnitBlockID is the reserved handle for "no data". A send with no params
// and a method with no return value both use it.
const UnitBlockID uint32 = 0

// maxRegistryBlocks bounds how many blocks one frame may keep open. The
// limit only exists to stop a hostile actor from ballooning host memory
// through repeated block_create calls; well behaved actors stay far below.
const maxRegistryBlocks = 1 << 10

// registryBlock is one ipld block held by a frame: open params, created
// return values, and intermediate state objects all pass through here.
type registryBlock struct {
	codec uint64
	data  []byte
}

// blockRegistry maps the u32 handles actor code works with to block
// payloads. Handles are frame local and start at 1; they are never reused
// within a frame.
type blockRegistry struct {
	blocks []registryBlock
}

func newBlockRegistry() *blockRegistry {
	return &blockRegistry{}
}

// Put registers a block and returns its handle.
func (reg *blockRegistry) Put(codec uint64, data []byte) (uint32, error) {
	if len(reg.blocks) >= maxRegistryBlocks {
		return 0, runtime.NewSyscallError(runtime.ErrLimitExceeded, "frame holds too many blocks (%d)", len(reg.blocks))
	}
	reg.blocks = append(reg.blocks, registryBlock{codec: codec, data: data})
	return uint32(len(reg.blocks)), nil
}

// Get resolves a handle. Handle 0 and unknown handles are invalid.
func (reg *blockRegistry) Get(id uint32) (registryBlock, error) {
	if id == UnitBlockID || id > uint32(len(reg.blocks)) {
		return registryBlock{}, runtime.NewSyscallError(runtime.ErrInvalidHandle, "no block registered under handle %d", id)
	}
	return reg.blocks[id-1], nil
}
