package runtime

import (
	"context"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/cbor"
	"github.com/filecoin-project/go-state-types/exitcode"
	"github.com/ipfs/go-cid"
	ipldcbor "github.com/ipfs/go-ipld-cbor"
)

// Store is the gas-charged ipld store handed to native actor code. All
// reads and writes performed through it are metered against the frame's
// gas pool.
type Store interface {
	Context() context.Context
	ipldcbor.IpldStore
}

// InvocationRuntime is the interface the vm exposes to native (registry)
// actors for the duration of one method invocation. Wasm actors reach the
// same operations through the syscall table instead.
type InvocationRuntime interface {
	Runtime

	// Message carries the caller, receiver and value of the invocation.
	Message() MessageInfo
	// Store accesses state through the frame's gas meter.
	Store() Store

	// ValidateImmediateCallerAcceptAny accepts any caller.
	ValidateImmediateCallerAcceptAny()
	// ValidateImmediateCallerIs requires the caller to be one of the given addresses.
	ValidateImmediateCallerIs(addrs ...address.Address)
	// ValidateImmediateCallerType requires the caller's code to be one of the given cids.
	ValidateImmediateCallerType(codes ...cid.Cid)

	// CurrentBalance is the balance of the receiving actor.
	CurrentBalance() abi.TokenAmount

	// ResolveAddress resolves an address to an ID address, if the target exists.
	ResolveAddress(addr address.Address) (address.Address, bool)
	// GetActorCodeCID returns the code of the actor at the given address.
	GetActorCodeCID(addr address.Address) (cid.Cid, bool)

	// NewActorAddress computes the next reorg-stable address for an actor
	// created by this message.
	NewActorAddress() address.Address
	// CreateActor instantiates an empty actor with the given code behind
	// the given ID address.
	CreateActor(codeID cid.Cid, addr address.Address)
	// DeleteActor removes the receiving actor, sending any remaining
	// balance to the beneficiary.
	DeleteActor(beneficiary address.Address)

	// Send dispatches a nested message sharing the frame's gas pool.
	// Params may be nil, raw bytes, or a cbor marshaler.
	Send(to address.Address, method abi.MethodNum, params interface{}, value abi.TokenAmount) ([]byte, exitcode.ExitCode)

	// StateCreate initializes the actor state exactly once.
	StateCreate(obj cbor.Marshaler)
	// StateReadonly reads the actor state without permission to mutate it.
	StateReadonly(obj cbor.Unmarshaler)
	// StateTransaction reads the state, runs f, and commits the mutated
	// state. Sends are forbidden while the transaction is open.
	StateTransaction(obj cbor.Er, f func())
}
