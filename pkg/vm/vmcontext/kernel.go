package vmcontext

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/filecoin-project/go-state-types/builtin"
	acrypto "github.com/filecoin-project/go-state-types/crypto"
	"github.com/filecoin-project/go-state-types/exitcode"
	"github.com/filecoin-project/go-state-types/network"
	"github.com/filecoin-project/go-state-types/proof"
	blockformat "github.com/ipfs/go-block-format"
	"github.com/ipfs/go-cid"
	cbg "github.com/whyrusleeping/cbor-gen"

	"github.com/filecoin-project/go-fvm/pkg/constants"
	"github.com/filecoin-project/go-fvm/pkg/engine"
	"github.com/filecoin-project/go-fvm/pkg/types"
	"github.com/filecoin-project/go-fvm/pkg/util/blockstoreutil"
	"github.com/filecoin-project/go-fvm/pkg/vm/aerrors"
	"github.com/filecoin-project/go-fvm/pkg/vm/gas"
	"github.com/filecoin-project/go-fvm/pkg/vm/runtime"
)

// The kernel surface the engine binds syscalls against. Each sandboxed
// frame gets its own kernel; recoverable failures are returned as
// *runtime.SyscallError, everything else aborts the frame.
var _ engine.Kernel = (*invocationContext)(nil)

//
// message context
//

func (ctx *invocationContext) MsgCaller() abi.ActorID {
	return ctx.callerID
}

func (ctx *invocationContext) MsgOrigin() abi.ActorID {
	return ctx.topLevel.originatorID
}

func (ctx *invocationContext) MsgReceiver() abi.ActorID {
	return ctx.toID
}

func (ctx *invocationContext) MsgMethodNumber() abi.MethodNum {
	return ctx.msg.Method
}

func (ctx *invocationContext) MsgValueReceived() abi.TokenAmount {
	return ctx.msg.Value
}

func (ctx *invocationContext) MsgNonce() uint64 {
	return ctx.topLevel.originatorCallSeq
}

//
// network context
//

func (ctx *invocationContext) NetworkEpoch() abi.ChainEpoch {
	return ctx.vm.vmOption.Epoch
}

func (ctx *invocationContext) NetworkVersion() network.Version {
	return ctx.vm.vmOption.NetworkVersion
}

func (ctx *invocationContext) NetworkBaseFee() abi.TokenAmount {
	return ctx.vm.vmOption.BaseFee
}

func (ctx *invocationContext) NetworkTimestamp() uint64 {
	return ctx.vm.vmOption.Timestamp
}

func (ctx *invocationContext) NetworkTotalFilCircSupply() abi.TokenAmount {
	supply, err := ctx.vm.GetCircSupply(ctx.vm.context)
	if err != nil {
		panic(aerrors.Escalate(err, "computing circulating supply"))
	}
	return supply
}

//
// block registry
//

func (ctx *invocationContext) BlockOpen(c cid.Cid) (uint32, engine.BlockStat, error) {
	ctx.gasTank.Charge(ctx.vm.pricelist.OnIpldGet(), "block open %s", c)

	blk, err := ctx.vm.bsstore.Get(ctx.vm.context, c)
	if err != nil {
		if blockstoreutil.IsNotFound(err) {
			return 0, engine.BlockStat{}, runtime.NewSyscallError(runtime.ErrNotFound, "block %s is not in the reachable state", c)
		}
		return 0, engine.BlockStat{}, aerrors.Escalate(err, "opening block")
	}
	data := blk.RawData()
	id, err := ctx.blocks.Put(c.Prefix().Codec, data)
	if err != nil {
		return 0, engine.BlockStat{}, err
	}
	return id, engine.BlockStat{Codec: c.Prefix().Codec, Size: uint32(len(data))}, nil
}

func (ctx *invocationContext) BlockCreate(codec uint64, data []byte) (uint32, error) {
	switch codec {
	case uint64(cid.DagCBOR), uint64(cid.Raw), 0x51: // 0x51 is the cbor multicodec

	default:
		return 0, runtime.NewSyscallError(runtime.ErrIllegalCodec, "codec %d is not allowed here", codec)
	}
	return ctx.blocks.Put(codec, data)
}

func (ctx *invocationContext) BlockRead(id uint32, offset uint32, buf []byte) (uint32, error) {
	blk, err := ctx.blocks.Get(id)
	if err != nil {
		return 0, err
	}
	if uint64(offset) > uint64(len(blk.data)) {
		return 0, runtime.NewSyscallError(runtime.ErrIllegalArgument, "read offset %d beyond block size %d", offset, len(blk.data))
	}
	return uint32(copy(buf, blk.data[offset:])), nil
}

func (ctx *invocationContext) BlockLink(id uint32, hashFun uint64, hashLen uint32) (cid.Cid, error) {
	blk, err := ctx.blocks.Get(id)
	if err != nil {
		return cid.Undef, err
	}
	if hashFun != uint64(constants.DefaultHashFunction) || hashLen != 32 {
		return cid.Undef, runtime.NewSyscallError(runtime.ErrIllegalCid, "only blake2b-256 cids may be linked")
	}

	ctx.gasTank.Charge(ctx.vm.pricelist.OnIpldPut(len(blk.data)), "block link %d bytes", len(blk.data))

	builder := cid.V1Builder{Codec: blk.codec, MhType: hashFun, MhLength: int(hashLen)}
	c, err := builder.Sum(blk.data)
	if err != nil {
		return cid.Undef, aerrors.Escalate(err, "computing block cid")
	}
	b, err := blockformat.NewBlockWithCid(blk.data, c)
	if err != nil {
		return cid.Undef, aerrors.Escalate(err, "building block")
	}
	if err := ctx.vm.bsstore.Put(ctx.vm.context, b); err != nil {
		return cid.Undef, aerrors.Escalate(err, "writing block")
	}
	return c, nil
}

func (ctx *invocationContext) BlockStat(id uint32) (engine.BlockStat, error) {
	blk, err := ctx.blocks.Get(id)
	if err != nil {
		return engine.BlockStat{}, err
	}
	return engine.BlockStat{Codec: blk.codec, Size: uint32(len(blk.data))}, nil
}

//
// self
//

func (ctx *invocationContext) StateRoot() (cid.Cid, error) {
	act, found, err := ctx.vm.State.GetActor(ctx.vm.context, ctx.msg.To)
	if err != nil {
		return cid.Undef, aerrors.Escalate(err, "loading own actor")
	}
	if !found {
		return cid.Undef, runtime.NewSyscallError(runtime.ErrIllegalOperation, "actor has been deleted")
	}
	return act.Head, nil
}

func (ctx *invocationContext) SetStateRoot(c cid.Cid) error {
	// the new root must already be reachable before it becomes the head
	has, err := ctx.vm.bsstore.Has(ctx.vm.context, c)
	if err != nil {
		return aerrors.Escalate(err, "checking new state root")
	}
	if !has {
		return runtime.NewSyscallError(runtime.ErrNotFound, "new state root %s is not in the reachable state", c)
	}
	if err := ctx.vm.State.MutateActor(ctx.msg.To, func(act *types.Actor) error {
		act.Head = c
		return nil
	}); err != nil {
		if errors.Is(err, types.ErrActorNotFound) {
			return runtime.NewSyscallError(runtime.ErrIllegalOperation, "actor has been deleted")
		}
		return aerrors.Escalate(err, "updating state root")
	}
	ctx.toActor.Head = c
	return nil
}

func (ctx *invocationContext) CurrentBalance() (abi.TokenAmount, error) {
	act, found, err := ctx.vm.State.GetActor(ctx.vm.context, ctx.msg.To)
	if err != nil {
		return big.Zero(), aerrors.Escalate(err, "loading own actor")
	}
	if !found {
		return big.Zero(), runtime.NewSyscallError(runtime.ErrIllegalOperation, "actor has been deleted")
	}
	return act.Balance, nil
}

func (ctx *invocationContext) SelfDestruct(beneficiary address.Address) error {
	return ctx.deleteSelf(beneficiary)
}

//
// actors
//

func (ctx *invocationContext) ResolveAddress(addr address.Address) (abi.ActorID, error) {
	idAddr, err := ctx.vm.State.LookupID(addr)
	if err != nil {
		if errors.Is(err, types.ErrActorNotFound) {
			return 0, runtime.NewSyscallError(runtime.ErrNotFound, "address %s has no corresponding actor", addr)
		}
		return 0, aerrors.Escalate(err, "resolving address")
	}
	id, err := address.IDFromAddress(idAddr)
	if err != nil {
		return 0, aerrors.Escalate(err, "extracting actor id")
	}
	return abi.ActorID(id), nil
}

func (ctx *invocationContext) GetActorCodeCID(id abi.ActorID) (cid.Cid, error) {
	idAddr, err := address.NewIDAddress(uint64(id))
	if err != nil {
		return cid.Undef, runtime.NewSyscallError(runtime.ErrIllegalArgument, "invalid actor id %d", id)
	}
	act, found, err := ctx.vm.State.GetActor(ctx.vm.context, idAddr)
	if err != nil {
		return cid.Undef, aerrors.Escalate(err, "loading actor")
	}
	if !found {
		return cid.Undef, runtime.NewSyscallError(runtime.ErrNotFound, "no actor with id %d", id)
	}
	return act.Code, nil
}

func (ctx *invocationContext) NextActorAddress() (address.Address, error) {
	addr, err := ctx.newActorAddress()
	if err != nil {
		return address.Undef, aerrors.Escalate(err, "deriving actor address")
	}
	return addr, nil
}

func (ctx *invocationContext) CreateActor(code cid.Cid, id abi.ActorID) error {
	// direct creation is reserved to the init actor; everyone else goes
	// through its Exec method
	if ctx.msg.To != builtin.InitActorAddr {
		return runtime.NewSyscallError(runtime.ErrForbidden, "only the init actor may create actors directly")
	}
	idAddr, err := address.NewIDAddress(uint64(id))
	if err != nil {
		return runtime.NewSyscallError(runtime.ErrIllegalArgument, "invalid actor id %d", id)
	}
	if aerr := ctx.createActor(code, idAddr); aerr != nil {
		if aerrors.IsFatal(aerr) {
			return aerr
		}
		return runtime.NewSyscallError(runtime.ErrIllegalArgument, "create actor: %v", aerr)
	}
	return nil
}

func (ctx *invocationContext) BalanceOf(id abi.ActorID) (abi.TokenAmount, error) {
	idAddr, err := address.NewIDAddress(uint64(id))
	if err != nil {
		return big.Zero(), runtime.NewSyscallError(runtime.ErrIllegalArgument, "invalid actor id %d", id)
	}
	act, found, err := ctx.vm.State.GetActor(ctx.vm.context, idAddr)
	if err != nil {
		return big.Zero(), aerrors.Escalate(err, "loading actor")
	}
	if !found {
		return big.Zero(), runtime.NewSyscallError(runtime.ErrNotFound, "no actor with id %d", id)
	}
	return act.Balance, nil
}

func (ctx *invocationContext) IsBuiltinActor(code cid.Cid) bool {
	return ctx.vm.actorImpls.HasCode(code)
}

//
// send
//

func (ctx *invocationContext) Send(to address.Address, method abi.MethodNum, paramsID uint32,
	value abi.TokenAmount) (engine.SendResult, error) {
	if ctx.depth+1 > MaxCallDepth {
		if ctx.vm.NetworkVersion() >= network.Version16 {
			return engine.SendResult{}, runtime.NewSyscallError(runtime.ErrLimitExceeded, "call depth limit %d exceeded", MaxCallDepth)
		}
		return engine.SendResult{}, aerrors.Newf(exitcode.SysErrForbidden, "call depth limit %d exceeded", MaxCallDepth)
	}

	var params []byte
	if paramsID != UnitBlockID {
		blk, err := ctx.blocks.Get(paramsID)
		if err != nil {
			return engine.SendResult{}, err
		}
		params = blk.data
	}

	ret, aerr := ctx.send(to, method, params, value)
	if aerr != nil {
		if aerrors.IsFatal(aerr) {
			return engine.SendResult{}, aerr
		}
		return engine.SendResult{ExitCode: aerr.RetCode(), ReturnID: UnitBlockID}, nil
	}

	retID := UnitBlockID
	if len(ret) > 0 {
		id, err := ctx.blocks.Put(uint64(cid.DagCBOR), ret)
		if err != nil {
			return engine.SendResult{}, err
		}
		retID = id
	}
	return engine.SendResult{ExitCode: exitcode.Ok, ReturnID: retID}, nil
}

//
// gas
//

func (ctx *invocationContext) GasCharge(name string, compute int64) error {
	if ok := ctx.gasTank.TryCharge(gas.NewGasCharge(name, compute, 0)); !ok {
		return aerrors.NewfSkip(2, exitcode.SysErrOutOfGas, "gas charge %q exhausted the remaining gas", name)
	}
	return nil
}

func (ctx *invocationContext) GasAvailable() int64 {
	remaining := ctx.gasTank.GasAvailable - ctx.gasTank.GasUsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (ctx *invocationContext) SettleFuel(consumed uint64) error {
	if consumed == 0 {
		return nil
	}
	charge := gas.NewGasCharge("OnConsumeFuel", int64(consumed)*ctx.vm.pricelist.ExecGasPerFuelUnit(), 0)
	if ok := ctx.gasTank.TryCharge(charge); !ok {
		return aerrors.NewfSkip(2, exitcode.SysErrOutOfGas, "execution consumed the remaining gas")
	}
	return nil
}

func (ctx *invocationContext) FuelBudget() uint64 {
	remaining := ctx.GasAvailable()
	if remaining <= 0 {
		return 0
	}
	return uint64(remaining / ctx.vm.pricelist.ExecGasPerFuelUnit())
}

//
// randomness
//

func (ctx *invocationContext) GetChainRandomness(personalization int64, round abi.ChainEpoch, entropy []byte) (abi.Randomness, error) {
	return ctx.randSource.ChainGetRandomnessFromTickets(ctx.vm.context, acrypto.DomainSeparationTag(personalization), round, entropy)
}

func (ctx *invocationContext) GetBeaconRandomness(personalization int64, round abi.ChainEpoch, entropy []byte) (abi.Randomness, error) {
	return ctx.randSource.ChainGetRandomnessFromBeacon(ctx.vm.context, acrypto.DomainSeparationTag(personalization), round, entropy)
}

//
// crypto
//

func (ctx *invocationContext) VerifySignature(sig []byte, signer address.Address, plaintext []byte) (bool, error) {
	var signature acrypto.Signature
	if err := signature.UnmarshalBinary(sig); err != nil {
		return false, runtime.NewSyscallError(runtime.ErrIllegalArgument, "undecodable signature: %v", err)
	}
	charge, err := ctx.vm.pricelist.OnVerifySignature(signature.Type, len(plaintext))
	if err != nil {
		return false, runtime.NewSyscallError(runtime.ErrIllegalArgument, "unsupported signature type %d", signature.Type)
	}
	ctx.gasTank.Charge(charge, "verifying signature type %d", signature.Type)

	view := newSyscallsStateView(ctx, ctx.vm)
	if err := ctx.vm.vmOption.SysCallsImpl.VerifySignature(ctx.vm.context, view, signature, signer, plaintext); err != nil {
		return false, nil
	}
	return true, nil
}

func (ctx *invocationContext) HashBlake2b(data []byte) ([32]byte, error) {
	ctx.gasTank.Charge(ctx.vm.pricelist.OnHashing(len(data)), "hashing %d bytes", len(data))
	return ctx.vm.vmOption.SysCallsImpl.HashBlake2b(data), nil
}

func (ctx *invocationContext) ComputeUnsealedSectorCID(proofType abi.RegisteredSealProof, piecesID uint32) (cid.Cid, error) {
	blk, err := ctx.blocks.Get(piecesID)
	if err != nil {
		return cid.Undef, err
	}
	pieces, err := decodePieceInfos(blk.data)
	if err != nil {
		return cid.Undef, runtime.NewSyscallError(runtime.ErrSerialization, "decoding piece infos: %v", err)
	}
	ctx.gasTank.Charge(ctx.vm.pricelist.OnComputeUnsealedSectorCid(proofType, pieces), "computing unsealed sector cid")

	c, err := ctx.vm.vmOption.SysCallsImpl.ComputeUnsealedSectorCID(ctx.vm.context, proofType, pieces)
	if err != nil {
		return cid.Undef, runtime.NewSyscallError(runtime.ErrIllegalArgument, "computing unsealed sector cid: %v", err)
	}
	return c, nil
}

func (ctx *invocationContext) VerifySeal(infoID uint32) (bool, error) {
	blk, err := ctx.blocks.Get(infoID)
	if err != nil {
		return false, err
	}
	var info proof.SealVerifyInfo
	if err := info.UnmarshalCBOR(bytes.NewReader(blk.data)); err != nil {
		return false, runtime.NewSyscallError(runtime.ErrSerialization, "decoding seal verify info: %v", err)
	}
	ctx.gasTank.Charge(ctx.vm.pricelist.OnVerifySeal(info), "verifying seal")

	if err := ctx.vm.vmOption.SysCallsImpl.VerifySeal(ctx.vm.context, info); err != nil {
		return false, nil
	}
	return true, nil
}

func (ctx *invocationContext) VerifyPoSt(infoID uint32) (bool, error) {
	blk, err := ctx.blocks.Get(infoID)
	if err != nil {
		return false, err
	}
	var info proof.WindowPoStVerifyInfo
	if err := info.UnmarshalCBOR(bytes.NewReader(blk.data)); err != nil {
		return false, runtime.NewSyscallError(runtime.ErrSerialization, "decoding window post verify info: %v", err)
	}
	ctx.gasTank.Charge(ctx.vm.pricelist.OnVerifyPost(info), "verifying window post")

	if err := ctx.vm.vmOption.SysCallsImpl.VerifyPoSt(ctx.vm.context, info); err != nil {
		return false, nil
	}
	return true, nil
}

func (ctx *invocationContext) VerifyAggregateSeals(infoID uint32) (bool, error) {
	blk, err := ctx.blocks.Get(infoID)
	if err != nil {
		return false, err
	}
	var aggregate proof.AggregateSealVerifyProofAndInfos
	if err := aggregate.UnmarshalCBOR(bytes.NewReader(blk.data)); err != nil {
		return false, runtime.NewSyscallError(runtime.ErrSerialization, "decoding aggregate seal infos: %v", err)
	}
	ctx.gasTank.Charge(ctx.vm.pricelist.OnVerifyAggregateSeals(aggregate), "verifying aggregate seals")

	if err := ctx.vm.vmOption.SysCallsImpl.VerifyAggregateSeals(aggregate); err != nil {
		return false, nil
	}
	return true, nil
}

func (ctx *invocationContext) BatchVerifySeals(infosID uint32) ([]bool, error) {
	blk, err := ctx.blocks.Get(infosID)
	if err != nil {
		return nil, err
	}
	infos, err := decodeSealVerifyInfos(blk.data)
	if err != nil {
		return nil, runtime.NewSyscallError(runtime.ErrSerialization, "decoding seal verify infos: %v", err)
	}
	for i := range infos {
		ctx.gasTank.Charge(ctx.vm.pricelist.OnVerifySeal(infos[i]), "batch verifying seal %d", i)
	}

	results, err := ctx.vm.vmOption.SysCallsImpl.BatchVerifySeals(ctx.vm.context, infos)
	if err != nil {
		return nil, aerrors.Escalate(err, "batch verifying seals")
	}
	return results, nil
}

func (ctx *invocationContext) VerifyConsensusFault(h1, h2, extra []byte) (*engine.ConsensusFault, error) {
	ctx.gasTank.Charge(ctx.vm.pricelist.OnVerifyConsensusFault(), "verifying consensus fault")

	view := newSyscallsStateView(ctx, ctx.vm)
	fault, err := ctx.vm.vmOption.SysCallsImpl.VerifyConsensusFault(ctx.vm.context, h1, h2, extra, view)
	if err != nil {
		// the submitted headers prove no fault
		return nil, nil
	}
	return fault, nil
}

//
// events
//

func (ctx *invocationContext) EmitEvent(evt *types.Event) error {
	evt.Emitter = ctx.toID
	var buf bytes.Buffer
	if err := evt.MarshalCBOR(&buf); err != nil {
		return runtime.NewSyscallError(runtime.ErrSerialization, "encoding event: %v", err)
	}
	ctx.gasTank.Charge(ctx.vm.pricelist.OnIpldPut(buf.Len()), "emitting event of %d bytes", buf.Len())
	ctx.events = append(ctx.events, *evt)
	return nil
}

//
// debugging
//

func (ctx *invocationContext) LogEnabled() bool {
	return ctx.vm.vmOption.ActorDebugging
}

func (ctx *invocationContext) Log(level uint32, msg string) {
	if !ctx.vm.vmOption.ActorDebugging {
		return
	}
	if ctx.vm.actorLog != nil {
		ctx.vm.actorLog.Printf("[%s:%d] %s", ctx.msg.To, level, msg)
	}
	switch {
	case level <= 1:
		vmlog.Debugw(msg, "actor", ctx.msg.To)
	case level == 2:
		vmlog.Infow(msg, "actor", ctx.msg.To)
	default:
		vmlog.Warnw(msg, "actor", ctx.msg.To)
	}
}

// cbor array decoders for proof inputs handed over as registry blocks

func decodePieceInfos(raw []byte) ([]abi.PieceInfo, error) {
	cr := cbg.NewCborReader(bytes.NewReader(raw))
	maj, n, err := cr.ReadHeader()
	if err != nil {
		return nil, err
	}
	if maj != cbg.MajArray {
		return nil, fmt.Errorf("expected cbor array, got major type %d", maj)
	}
	if n > cbg.MaxLength {
		return nil, fmt.Errorf("piece list too long (%d)", n)
	}
	pieces := make([]abi.PieceInfo, n)
	for i := range pieces {
		if err := pieces[i].UnmarshalCBOR(cr); err != nil {
			return nil, err
		}
	}
	return pieces, nil
}

func decodeSealVerifyInfos(raw []byte) ([]proof.SealVerifyInfo, error) {
	cr := cbg.NewCborReader(bytes.NewReader(raw))
	maj, n, err := cr.ReadHeader()
	if err != nil {
		return nil, err
	}
	if maj != cbg.MajArray {
		return nil, fmt.Errorf("expected cbor array, got major type %d", maj)
	}
	if n > cbg.MaxLength {
		return nil, fmt.Errorf("seal info list too long (%d)", n)
	}
	infos := make([]proof.SealVerifyInfo, n)
	for i := range infos {
		if err := infos[i].UnmarshalCBOR(cr); err != nil {
			return nil, err
		}
	}
	return infos, nil
}
