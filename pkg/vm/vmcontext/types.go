package vmcontext

import (
	"context"
	"fmt"
	"time"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	acrypto "github.com/filecoin-project/go-state-types/crypto"
	"github.com/filecoin-project/go-state-types/exitcode"
	"github.com/filecoin-project/go-state-types/network"
	"github.com/filecoin-project/go-state-types/proof"
	"github.com/ipfs/go-cid"
	cbor "github.com/ipfs/go-ipld-cbor"
	"github.com/pkg/errors"

	"github.com/filecoin-project/go-fvm/pkg/engine"
	"github.com/filecoin-project/go-fvm/pkg/state/tree"
	"github.com/filecoin-project/go-fvm/pkg/types"
	blockstoreutil "github.com/filecoin-project/go-fvm/pkg/util/blockstoreutil"
	"github.com/filecoin-project/go-fvm/pkg/vm/dispatch"
	"github.com/filecoin-project/go-fvm/pkg/vm/gas"
	"github.com/filecoin-project/go-fvm/pkg/vm/register"
	"github.com/filecoin-project/go-fvm/pkg/vm/runtime"
)

type (
	ExecCallBack         func(cid.Cid, *types.Message, *Ret) error
	CircSupplyCalculator func(context.Context, abi.ChainEpoch, tree.Tree) (abi.TokenAmount, error)
)

type VmOption struct { //nolint
	CircSupplyCalculator CircSupplyCalculator
	NetworkVersion       network.Version
	Rnd                  HeadChainRandomness
	BaseFee              abi.TokenAmount
	ActorCodeLoader      *dispatch.CodeLoader
	Engine               *engine.Engine
	Epoch                abi.ChainEpoch
	Timestamp            uint64
	GasPriceSchedule     *gas.PricesSchedule
	PRoot                cid.Cid
	Bsstore              blockstoreutil.Blockstore
	SysCallsImpl         SyscallsImpl
	Tracing              bool

	ActorDebugging bool
}

// HeadChainRandomness draws randomness from the chain the vm executes on.
type HeadChainRandomness interface {
	ChainGetRandomnessFromBeacon(ctx context.Context, personalization acrypto.DomainSeparationTag, randEpoch abi.ChainEpoch, entropy []byte) (abi.Randomness, error)
	ChainGetRandomnessFromTickets(ctx context.Context, personalization acrypto.DomainSeparationTag, randEpoch abi.ChainEpoch, entropy []byte) (abi.Randomness, error)
}

// SyscallsStateView is the state lens the syscall implementations get. It is
// scoped to the vm's own state tree and gas-charged store.
type SyscallsStateView interface {
	ResolveToDeterministicAddress(ctx context.Context, accountAddr address.Address) (address.Address, error)
	GetNetworkVersion(ctx context.Context, ce abi.ChainEpoch) network.Version
	TotalFilCircSupply(height abi.ChainEpoch, st tree.Tree) (abi.TokenAmount, error)
}

// SyscallsImpl is the concrete implementation of the expensive syscalls:
// signature checks, proof verification and consensus fault inspection.
// These methods take the context that is implicit in the kernel as explicit
// parameters. Results must be deterministic: any transient failure has to be
// escalated by the caller rather than returned to actor code.
type SyscallsImpl interface {
	VerifySignature(ctx context.Context, view SyscallsStateView, signature acrypto.Signature, signer address.Address, plaintext []byte) error
	HashBlake2b(data []byte) [32]byte
	ComputeUnsealedSectorCID(ctx context.Context, proofType abi.RegisteredSealProof, pieces []abi.PieceInfo) (cid.Cid, error)
	VerifySeal(ctx context.Context, info proof.SealVerifyInfo) error
	VerifyAggregateSeals(aggregate proof.AggregateSealVerifyProofAndInfos) error
	VerifyPoSt(ctx context.Context, info proof.WindowPoStVerifyInfo) error
	BatchVerifySeals(ctx context.Context, vis []proof.SealVerifyInfo) ([]bool, error)
	VerifyConsensusFault(ctx context.Context, h1, h2, extra []byte, view SyscallsStateView) (*runtime.ConsensusFault, error)
}

type Ret struct {
	GasTracker *gas.GasTracker
	OutPuts    gas.GasOutputs
	Receipt    types.MessageReceipt
	ActorErr   error
	Events     []types.Event
	Duration   time.Duration
}

// Failure returns with a non-zero exit code.
func Failure(exitCode exitcode.ExitCode, gasAmount int64) types.MessageReceipt {
	return types.MessageReceipt{
		ExitCode: exitCode,
		Return:   []byte{},
		GasUsed:  gasAmount,
	}
}

type Interface interface {
	ApplyMessage(ctx context.Context, cmsg types.ChainMsg) (*Ret, error)
	ApplyImplicitMessage(ctx context.Context, msg types.ChainMsg) (*Ret, error)
	Flush(ctx context.Context) (cid.Cid, error)
}

// VMInterpreter is the full surface the vm exposes to embedders: message
// application plus direct access to the state tree it executes over.
// Failures inside message processing come back as exit codes in the
// receipt, not as errors.
type VMInterpreter interface {
	Interface

	ApplyGenesisMessage(from address.Address, to address.Address, method abi.MethodNum, value abi.TokenAmount, params interface{}) (*Ret, error)
	StateTree() tree.Tree
}

// ResolveToDeterministicAddress returns the public key type of address
// (`BLS`/`SECP256K1`) of an account actor identified by `addr`.
func ResolveToDeterministicAddress(ctx context.Context, state tree.Tree, addr address.Address, cst cbor.IpldStore) (address.Address, error) {
	if addr.Protocol() == address.BLS || addr.Protocol() == address.SECP256K1 || addr.Protocol() == address.Delegated {
		return addr, nil
	}

	act, found, err := state.GetActor(ctx, addr)
	if err != nil {
		return address.Undef, errors.Wrapf(err, "failed to find actor: %s", addr)
	}
	if !found {
		return address.Undef, fmt.Errorf("actor not found %s", addr)
	}

	if act.Address != nil {
		// If there _is_ a delegated address, return it as "key" address.
		return *act.Address, nil
	}

	if act.Code != register.AccountActorCodeID {
		return address.Undef, fmt.Errorf("actor %s is not an account actor", addr)
	}

	var aast register.AccountState
	if err := cst.Get(ctx, act.Head, &aast); err != nil {
		return address.Undef, fmt.Errorf("failed to get account actor state for %s: %w", addr, err)
	}

	return aast.Address, nil
}
