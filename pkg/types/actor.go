package types

import (
	"errors"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/ipfs/go-cid"
)

var ErrActorNotFound = errors.New("actor not found")

// Actor is the central abstraction of entities in the system.
//
// Both individual accounts and contracts are represented as actors. An actor
// tracks a balance, a nonce for replay protection, the code that runs for it
// and the root of its state tree.
//
// Not safe for concurrent access.
type Actor struct {
	// Code is the CID of the actor's code: either compiled sandbox bytecode
	// stored in the blockstore, or a registry constant for host actors.
	Code cid.Cid
	// Head is the CID of the root of the actor's state tree.
	Head cid.Cid
	// Nonce is the number expected on the next message from this actor.
	// Messages are processed in strict, contiguous order.
	Nonce uint64
	// Balance is the amount of attoFIL in the actor's account.
	Balance abi.TokenAmount
	// Predictable Address
	Address *address.Address
}

// NewActor constructs a new actor.
func NewActor(code cid.Cid, balance abi.TokenAmount, head cid.Cid) *Actor {
	return &Actor{
		Code:    code,
		Head:    head,
		Nonce:   0,
		Balance: balance,
	}
}

// Empty tests whether the actor's code is defined.
func (t *Actor) Empty() bool {
	return !t.Code.Defined()
}

// IncrementSeqNum increments the seq number.
func (t *Actor) IncrementSeqNum() {
	t.Nonce = t.Nonce + 1
}
