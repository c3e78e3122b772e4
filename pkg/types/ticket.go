package types

import (
	"bytes"
	"fmt"

	"github.com/minio/blake2b-simd"
)

// A Ticket is a marker of a tick of the blockchain's clock. It is the source
// of randomness for proofs of storage and leader election. It is generated
// by the miner of a block using a VRF.
type Ticket struct {
	// A proof output by running a VRF on the VRFProof of the parent ticket
	VRFProof []byte
}

// String returns the string representation of the VRFProof of the ticket
func (t *Ticket) String() string {
	return fmt.Sprintf("%x", t.VRFProof)
}

// Compare orders tickets by the blake2b digests of their proofs.
func (t *Ticket) Compare(o *Ticket) int {
	tDigest := blake2b.Sum256(t.VRFProof)
	oDigest := blake2b.Sum256(o.VRFProof)
	return bytes.Compare(tDigest[:], oDigest[:])
}

func (t *Ticket) Less(o *Ticket) bool {
	return t.Compare(o) < 0
}

// ElectionProof proves the miner's authoring rights for the epoch of its
// block. WinCount is the number of election wins the proof encodes.
type ElectionProof struct {
	WinCount int64

	// A proof output by running a VRF on the beacon entry for the epoch
	VRFProof []byte
}

// A BeaconEntry is a value drawn from a verifiable randomness beacon,
// embedded in block headers for the rounds the chain has observed.
type BeaconEntry struct {
	Round uint64
	Data  []byte
}
