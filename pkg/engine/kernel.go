package engine

import (
	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/exitcode"
	"github.com/filecoin-project/go-state-types/network"
	"github.com/ipfs/go-cid"

	"github.com/filecoin-project/go-fvm/pkg/types"
	"github.com/filecoin-project/go-fvm/pkg/vm/runtime"
)

// BlockStat describes a block registered in the kernel's block registry.
type BlockStat struct {
	Codec uint64
	Size  uint32
}

// SendResult is what a nested send produced: the callee's exit code and,
// when the callee returned data, the block handle holding it.
type SendResult struct {
	ExitCode exitcode.ExitCode
	ReturnID uint32
}

// ConsensusFault mirrors the runtime consensus fault report. A nil report
// means no fault could be proven from the submitted headers.
type ConsensusFault = runtime.ConsensusFault

// Kernel is the per-invocation view the sandbox exposes to guest code.
// One kernel serves exactly one call frame: it knows the frame's message
// context, owns the frame's block registry, meters the frame's gas, and
// routes nested sends back through the call manager.
//
// Methods return either a value, or an error. Errors that unwrap to a
// *runtime.SyscallError surface to the guest as that error number and are
// recoverable; anything else aborts the invocation.
type Kernel interface {
	// message context

	MsgCaller() abi.ActorID
	MsgOrigin() abi.ActorID
	MsgReceiver() abi.ActorID
	MsgMethodNumber() abi.MethodNum
	MsgValueReceived() abi.TokenAmount
	MsgNonce() uint64

	// network context

	NetworkEpoch() abi.ChainEpoch
	NetworkVersion() network.Version
	NetworkBaseFee() abi.TokenAmount
	NetworkTimestamp() uint64
	NetworkTotalFilCircSupply() abi.TokenAmount

	// block registry

	BlockOpen(c cid.Cid) (uint32, BlockStat, error)
	BlockCreate(codec uint64, data []byte) (uint32, error)
	BlockRead(id uint32, offset uint32, buf []byte) (uint32, error)
	BlockLink(id uint32, hashFun uint64, hashLen uint32) (cid.Cid, error)
	BlockStat(id uint32) (BlockStat, error)

	// self

	StateRoot() (cid.Cid, error)
	SetStateRoot(c cid.Cid) error
	CurrentBalance() (abi.TokenAmount, error)
	SelfDestruct(beneficiary address.Address) error

	// actors

	ResolveAddress(addr address.Address) (abi.ActorID, error)
	GetActorCodeCID(id abi.ActorID) (cid.Cid, error)
	NextActorAddress() (address.Address, error)
	CreateActor(code cid.Cid, id abi.ActorID) error
	BalanceOf(id abi.ActorID) (abi.TokenAmount, error)
	IsBuiltinActor(code cid.Cid) bool

	// send

	Send(to address.Address, method abi.MethodNum, paramsID uint32, value abi.TokenAmount) (SendResult, error)

	// gas

	// GasCharge burns compute gas on behalf of the guest. Exhaustion is
	// reported as an error, never a panic, so the sandbox can unwind.
	GasCharge(name string, compute int64) error
	GasAvailable() int64

	// SettleFuel converts fuel burned by the guest since the last
	// settlement into execution gas. FuelBudget reports how much fuel the
	// remaining gas buys; the sandbox primes the store with it before
	// handing control back to the guest.
	SettleFuel(consumed uint64) error
	FuelBudget() uint64

	// randomness

	GetChainRandomness(personalization int64, round abi.ChainEpoch, entropy []byte) (abi.Randomness, error)
	GetBeaconRandomness(personalization int64, round abi.ChainEpoch, entropy []byte) (abi.Randomness, error)

	// crypto

	VerifySignature(sig []byte, signer address.Address, plaintext []byte) (bool, error)
	HashBlake2b(data []byte) ([32]byte, error)
	ComputeUnsealedSectorCID(proof abi.RegisteredSealProof, piecesID uint32) (cid.Cid, error)
	VerifySeal(infoID uint32) (bool, error)
	VerifyPoSt(infoID uint32) (bool, error)
	VerifyAggregateSeals(infoID uint32) (bool, error)
	BatchVerifySeals(infosID uint32) ([]bool, error)
	VerifyConsensusFault(h1, h2, extra []byte) (*ConsensusFault, error)

	// events

	EmitEvent(evt *types.Event) error

	// debugging

	LogEnabled() bool
	Log(level uint32, msg string)
}
