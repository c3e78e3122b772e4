package runtime

import (
	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
)

// ConsensusFaultType names the category of fault proven against a miner.
type ConsensusFaultType int64

const (
	ConsensusFaultDoubleForkMining ConsensusFaultType = 1
	ConsensusFaultParentGrinding   ConsensusFaultType = 2
	ConsensusFaultTimeOffsetMining ConsensusFaultType = 3
)

// ConsensusFault is the result of a successful consensus fault check,
// reported by the fault syscall back to the invoking actor.
type ConsensusFault struct {
	// Address of the miner at fault (always an ID address).
	Target address.Address
	// Epoch of the fault, which is the higher epoch of the two blocks causing it.
	Epoch abi.ChainEpoch
	Type  ConsensusFaultType
}
