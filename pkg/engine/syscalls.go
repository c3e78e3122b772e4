package engine

import (
	"bytes"
	"encoding/binary"
	stdbig "math/big"

	"github.com/bytecodealliance/wasmtime-go/v25"
	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/filecoin-project/go-state-types/exitcode"
	"github.com/ipfs/go-cid"

	"github.com/filecoin-project/go-fvm/pkg/types"
	"github.com/filecoin-project/go-fvm/pkg/vm/aerrors"
	"github.com/filecoin-project/go-fvm/pkg/vm/runtime"
)

// Syscall ABI conventions, shared by every binding below:
//
//   - Every syscall returns a single i32 error number; 0 is success.
//     Results travel through out-pointers into guest memory.
//   - Plain integers in out-structs are little-endian, matching wasm
//     memory. Token amounts are 16-byte big-endian unsigned integers.
//     CIDs, addresses and randomness cross as raw byte strings.
//   - Context reads with no failure mode (epoch, caller, ...) return
//     their value directly instead of an error number.
//   - Out-of-bounds guest pointers are ErrIllegalArgument, unparseable
//     CIDs are ErrIllegalCid, unknown block handles are ErrInvalidHandle.

const (
	// tokenAmountSize is the wire size of a token amount: 128 bits.
	tokenAmountSize = 16
	// randomnessSize is the wire size of a randomness digest.
	randomnessSize = 32

	maxExitMessageLen = 1024
	maxGasChargeName  = 256
	maxDebugMessage   = 4096
)

func i32() *wasmtime.ValType { return wasmtime.NewValType(wasmtime.KindI32) }
func i64() *wasmtime.ValType { return wasmtime.NewValType(wasmtime.KindI64) }

func in(ts ...*wasmtime.ValType) []*wasmtime.ValType { return ts }

func ft(params []*wasmtime.ValType, results []*wasmtime.ValType) *wasmtime.FuncType {
	return wasmtime.NewFuncType(params, results)
}

func argU32(v wasmtime.Val) uint32 { return uint32(v.I32()) }
func argU64(v wasmtime.Val) uint64 { return uint64(v.I64()) }

// defineSyscalls binds the full host surface into the linker. Anything
// not bound here does not exist as far as the guest is concerned.
func (sb *Sandbox) defineSyscalls(linker *wasmtime.Linker) error {
	errno := in(i32())

	type binding struct {
		module, name string
		ty           *wasmtime.FuncType
		fn           func(*wasmtime.Caller, []wasmtime.Val) ([]wasmtime.Val, *wasmtime.Trap)
	}

	bindings := []binding{
		{"vm", "exit", ft(in(i32(), i32(), i32(), i32()), nil), sb.vmExit},

		{"network", "epoch", ft(nil, in(i64())), sb.hostvalue(sb.networkEpoch)},
		{"network", "version", ft(nil, in(i32())), sb.hostvalue(sb.networkVersion)},
		{"network", "timestamp", ft(nil, in(i64())), sb.hostvalue(sb.networkTimestamp)},
		{"network", "base_fee", ft(in(i32()), errno), sb.hostcall(sb.networkBaseFee)},
		{"network", "total_fil_circ_supply", ft(in(i32()), errno), sb.hostcall(sb.networkTotalFilCircSupply)},

		{"message", "caller", ft(nil, in(i64())), sb.hostvalue(sb.messageCaller)},
		{"message", "origin", ft(nil, in(i64())), sb.hostvalue(sb.messageOrigin)},
		{"message", "receiver", ft(nil, in(i64())), sb.hostvalue(sb.messageReceiver)},
		{"message", "method_number", ft(nil, in(i64())), sb.hostvalue(sb.messageMethodNumber)},
		{"message", "nonce", ft(nil, in(i64())), sb.hostvalue(sb.messageNonce)},
		{"message", "value_received", ft(in(i32()), errno), sb.hostcall(sb.messageValueReceived)},

		{"ipld", "block_open", ft(in(i32(), i32(), i32()), errno), sb.hostcall(sb.ipldBlockOpen)},
		{"ipld", "block_create", ft(in(i64(), i32(), i32(), i32()), errno), sb.hostcall(sb.ipldBlockCreate)},
		{"ipld", "block_read", ft(in(i32(), i32(), i32(), i32(), i32()), errno), sb.hostcall(sb.ipldBlockRead)},
		{"ipld", "block_link", ft(in(i32(), i64(), i32(), i32(), i32(), i32()), errno), sb.hostcall(sb.ipldBlockLink)},
		{"ipld", "block_stat", ft(in(i32(), i32()), errno), sb.hostcall(sb.ipldBlockStat)},

		{"self", "root", ft(in(i32(), i32(), i32()), errno), sb.hostcall(sb.selfRoot)},
		{"self", "set_root", ft(in(i32(), i32()), errno), sb.hostcall(sb.selfSetRoot)},
		{"self", "current_balance", ft(in(i32()), errno), sb.hostcall(sb.selfCurrentBalance)},
		{"self", "self_destruct", ft(in(i32(), i32()), errno), sb.hostcall(sb.selfDestruct)},

		{"actor", "resolve_address", ft(in(i32(), i32(), i32()), errno), sb.hostcall(sb.actorResolveAddress)},
		{"actor", "get_actor_code_cid", ft(in(i64(), i32(), i32(), i32()), errno), sb.hostcall(sb.actorGetCodeCID)},
		{"actor", "next_actor_address", ft(in(i32(), i32(), i32()), errno), sb.hostcall(sb.actorNextAddress)},
		{"actor", "create_actor", ft(in(i64(), i32(), i32()), errno), sb.hostcall(sb.actorCreate)},
		{"actor", "balance_of", ft(in(i64(), i32()), errno), sb.hostcall(sb.actorBalanceOf)},
		{"actor", "is_builtin_actor", ft(in(i32(), i32(), i32()), errno), sb.hostcall(sb.actorIsBuiltin)},

		{"send", "send", ft(in(i32(), i32(), i64(), i32(), i64(), i64(), i32()), errno), sb.hostcall(sb.sendSend)},

		{"gas", "charge", ft(in(i32(), i32(), i64()), errno), sb.hostcall(sb.gasCharge)},
		{"gas", "available", ft(nil, in(i64())), sb.hostvalue(sb.gasAvailable)},

		{"rand", "get_chain_randomness", ft(in(i64(), i64(), i32(), i32(), i32()), errno), sb.hostcall(sb.randChain)},
		{"rand", "get_beacon_randomness", ft(in(i64(), i64(), i32(), i32(), i32()), errno), sb.hostcall(sb.randBeacon)},

		{"crypto", "verify_signature", ft(in(i32(), i32(), i32(), i32(), i32(), i32(), i32()), errno), sb.hostcall(sb.cryptoVerifySignature)},
		{"crypto", "hash_blake2b", ft(in(i32(), i32(), i32()), errno), sb.hostcall(sb.cryptoHashBlake2b)},
		{"crypto", "compute_unsealed_sector_cid", ft(in(i64(), i32(), i32(), i32(), i32()), errno), sb.hostcall(sb.cryptoComputeUnsealedSectorCID)},
		{"crypto", "verify_seal", ft(in(i32(), i32()), errno), sb.hostcall(sb.cryptoVerifySeal)},
		{"crypto", "verify_post", ft(in(i32(), i32()), errno), sb.hostcall(sb.cryptoVerifyPoSt)},
		{"crypto", "verify_aggregate_seals", ft(in(i32(), i32()), errno), sb.hostcall(sb.cryptoVerifyAggregateSeals)},
		{"crypto", "verify_consensus_fault", ft(in(i32(), i32(), i32(), i32(), i32(), i32(), i32()), errno), sb.hostcall(sb.cryptoVerifyConsensusFault)},
		{"crypto", "batch_verify_seals", ft(in(i32(), i32(), i32()), errno), sb.hostcall(sb.cryptoBatchVerifySeals)},

		{"event", "emit_event", ft(in(i32(), i32()), errno), sb.hostcall(sb.eventEmit)},

		{"debug", "log", ft(in(i32(), i32(), i32()), errno), sb.hostcall(sb.debugLog)},
		{"debug", "enabled", ft(nil, in(i32())), sb.hostvalue(sb.debugEnabled)},
	}

	for _, b := range bindings {
		if err := linker.FuncNew(b.module, b.name, b.ty, b.fn); err != nil {
			return err
		}
	}
	return nil
}

// vm

// vmExit ends the invocation on the spot. Code 0 is an early clean return
// with an optional data block; user codes (16 and up) abort the frame;
// the system range in between is reserved and attempting it is itself an
// illegal-actor fault.
func (sb *Sandbox) vmExit(caller *wasmtime.Caller, args []wasmtime.Val) ([]wasmtime.Val, *wasmtime.Trap) {
	if err := sb.settleFuel(); err != nil {
		return sb.failure(err)
	}

	code := exitcode.ExitCode(args[0].I32())
	data := argU32(args[1])
	msgOff, msgLen := argU32(args[2]), argU32(args[3])

	var msg string
	if msgLen > 0 {
		if msgLen > maxExitMessageLen {
			msgLen = maxExitMessageLen
		}
		if mem, err := memoryOf(caller); err == nil {
			if raw, err := guestBytes(mem, msgOff, msgLen); err == nil {
				msg = string(raw)
			}
		}
	}

	if code != exitcode.Ok && code < exitcode.FirstActorErrorCode {
		sb.hostErr = aerrors.Newf(exitcode.SysErrorIllegalActor, "actor aborted with reserved exit code %d: %s", code, msg)
		return nil, wasmtime.NewTrap("illegal exit code")
	}
	if !code.IsSuccess() {
		// failed frames return no data
		data = 0
	}
	sb.exit = &sandboxExit{code: code, data: data, msg: msg}
	return nil, wasmtime.NewTrap("explicit exit")
}

// network

func (sb *Sandbox) networkEpoch(*wasmtime.Caller, []wasmtime.Val) (wasmtime.Val, error) {
	return wasmtime.ValI64(int64(sb.kern.NetworkEpoch())), nil
}

func (sb *Sandbox) networkVersion(*wasmtime.Caller, []wasmtime.Val) (wasmtime.Val, error) {
	return wasmtime.ValI32(int32(sb.kern.NetworkVersion())), nil
}

func (sb *Sandbox) networkTimestamp(*wasmtime.Caller, []wasmtime.Val) (wasmtime.Val, error) {
	return wasmtime.ValI64(int64(sb.kern.NetworkTimestamp())), nil
}

func (sb *Sandbox) networkBaseFee(caller *wasmtime.Caller, args []wasmtime.Val) error {
	mem, err := memoryOf(caller)
	if err != nil {
		return err
	}
	return writeTokenAmount(mem, argU32(args[0]), sb.kern.NetworkBaseFee())
}

func (sb *Sandbox) networkTotalFilCircSupply(caller *wasmtime.Caller, args []wasmtime.Val) error {
	mem, err := memoryOf(caller)
	if err != nil {
		return err
	}
	return writeTokenAmount(mem, argU32(args[0]), sb.kern.NetworkTotalFilCircSupply())
}

// message

func (sb *Sandbox) messageCaller(*wasmtime.Caller, []wasmtime.Val) (wasmtime.Val, error) {
	return wasmtime.ValI64(int64(sb.kern.MsgCaller())), nil
}

func (sb *Sandbox) messageOrigin(*wasmtime.Caller, []wasmtime.Val) (wasmtime.Val, error) {
	return wasmtime.ValI64(int64(sb.kern.MsgOrigin())), nil
}

func (sb *Sandbox) messageReceiver(*wasmtime.Caller, []wasmtime.Val) (wasmtime.Val, error) {
	return wasmtime.ValI64(int64(sb.kern.MsgReceiver())), nil
}

func (sb *Sandbox) messageMethodNumber(*wasmtime.Caller, []wasmtime.Val) (wasmtime.Val, error) {
	return wasmtime.ValI64(int64(sb.kern.MsgMethodNumber())), nil
}

func (sb *Sandbox) messageNonce(*wasmtime.Caller, []wasmtime.Val) (wasmtime.Val, error) {
	return wasmtime.ValI64(int64(sb.kern.MsgNonce())), nil
}

func (sb *Sandbox) messageValueReceived(caller *wasmtime.Caller, args []wasmtime.Val) error {
	mem, err := memoryOf(caller)
	if err != nil {
		return err
	}
	return writeTokenAmount(mem, argU32(args[0]), sb.kern.MsgValueReceived())
}

// ipld

// block_open out struct, 16 bytes: {id u32, size u32, codec u64}.
func (sb *Sandbox) ipldBlockOpen(caller *wasmtime.Caller, args []wasmtime.Val) error {
	mem, err := memoryOf(caller)
	if err != nil {
		return err
	}
	raw, err := guestBytes(mem, argU32(args[0]), argU32(args[1]))
	if err != nil {
		return err
	}
	c, err := cid.Cast(raw)
	if err != nil {
		return runtime.NewSyscallError(runtime.ErrIllegalCid, "block_open: %v", err)
	}
	id, stat, err := sb.kern.BlockOpen(c)
	if err != nil {
		return err
	}
	out, err := guestBytes(mem, argU32(args[2]), 16)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(out[0:], id)
	binary.LittleEndian.PutUint32(out[4:], stat.Size)
	binary.LittleEndian.PutUint64(out[8:], stat.Codec)
	return nil
}

func (sb *Sandbox) ipldBlockCreate(caller *wasmtime.Caller, args []wasmtime.Val) error {
	mem, err := memoryOf(caller)
	if err != nil {
		return err
	}
	data, err := guestBytes(mem, argU32(args[1]), argU32(args[2]))
	if err != nil {
		return err
	}
	id, err := sb.kern.BlockCreate(argU64(args[0]), data)
	if err != nil {
		return err
	}
	out, err := guestBytes(mem, argU32(args[3]), 4)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(out, id)
	return nil
}

func (sb *Sandbox) ipldBlockRead(caller *wasmtime.Caller, args []wasmtime.Val) error {
	mem, err := memoryOf(caller)
	if err != nil {
		return err
	}
	buf, err := guestBytes(mem, argU32(args[2]), argU32(args[3]))
	if err != nil {
		return err
	}
	written, err := sb.kern.BlockRead(argU32(args[0]), argU32(args[1]), buf)
	if err != nil {
		return err
	}
	out, err := guestBytes(mem, argU32(args[4]), 4)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(out, written)
	return nil
}

func (sb *Sandbox) ipldBlockLink(caller *wasmtime.Caller, args []wasmtime.Val) error {
	mem, err := memoryOf(caller)
	if err != nil {
		return err
	}
	c, err := sb.kern.BlockLink(argU32(args[0]), argU64(args[1]), argU32(args[2]))
	if err != nil {
		return err
	}
	return writeByteString(mem, argU32(args[3]), argU32(args[4]), argU32(args[5]), c.Bytes())
}

// block_stat out struct, 16 bytes: {size u32, _pad u32, codec u64}.
func (sb *Sandbox) ipldBlockStat(caller *wasmtime.Caller, args []wasmtime.Val) error {
	mem, err := memoryOf(caller)
	if err != nil {
		return err
	}
	stat, err := sb.kern.BlockStat(argU32(args[0]))
	if err != nil {
		return err
	}
	out, err := guestBytes(mem, argU32(args[1]), 16)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(out[0:], stat.Size)
	binary.LittleEndian.PutUint32(out[4:], 0)
	binary.LittleEndian.PutUint64(out[8:], stat.Codec)
	return nil
}

// self

func (sb *Sandbox) selfRoot(caller *wasmtime.Caller, args []wasmtime.Val) error {
	mem, err := memoryOf(caller)
	if err != nil {
		return err
	}
	root, err := sb.kern.StateRoot()
	if err != nil {
		return err
	}
	return writeByteString(mem, argU32(args[0]), argU32(args[1]), argU32(args[2]), root.Bytes())
}

func (sb *Sandbox) selfSetRoot(caller *wasmtime.Caller, args []wasmtime.Val) error {
	mem, err := memoryOf(caller)
	if err != nil {
		return err
	}
	raw, err := guestBytes(mem, argU32(args[0]), argU32(args[1]))
	if err != nil {
		return err
	}
	c, err := cid.Cast(raw)
	if err != nil {
		return runtime.NewSyscallError(runtime.ErrIllegalCid, "set_root: %v", err)
	}
	return sb.kern.SetStateRoot(c)
}

func (sb *Sandbox) selfCurrentBalance(caller *wasmtime.Caller, args []wasmtime.Val) error {
	mem, err := memoryOf(caller)
	if err != nil {
		return err
	}
	balance, err := sb.kern.CurrentBalance()
	if err != nil {
		return err
	}
	return writeTokenAmount(mem, argU32(args[0]), balance)
}

func (sb *Sandbox) selfDestruct(caller *wasmtime.Caller, args []wasmtime.Val) error {
	mem, err := memoryOf(caller)
	if err != nil {
		return err
	}
	raw, err := guestBytes(mem, argU32(args[0]), argU32(args[1]))
	if err != nil {
		return err
	}
	beneficiary, err := address.NewFromBytes(raw)
	if err != nil {
		return runtime.NewSyscallError(runtime.ErrIllegalArgument, "self_destruct beneficiary: %v", err)
	}
	return sb.kern.SelfDestruct(beneficiary)
}

// actor

func (sb *Sandbox) actorResolveAddress(caller *wasmtime.Caller, args []wasmtime.Val) error {
	mem, err := memoryOf(caller)
	if err != nil {
		return err
	}
	raw, err := guestBytes(mem, argU32(args[0]), argU32(args[1]))
	if err != nil {
		return err
	}
	addr, err := address.NewFromBytes(raw)
	if err != nil {
		return runtime.NewSyscallError(runtime.ErrIllegalArgument, "resolve_address: %v", err)
	}
	id, err := sb.kern.ResolveAddress(addr)
	if err != nil {
		return err
	}
	out, err := guestBytes(mem, argU32(args[2]), 8)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(out, uint64(id))
	return nil
}

func (sb *Sandbox) actorGetCodeCID(caller *wasmtime.Caller, args []wasmtime.Val) error {
	mem, err := memoryOf(caller)
	if err != nil {
		return err
	}
	code, err := sb.kern.GetActorCodeCID(abi.ActorID(argU64(args[0])))
	if err != nil {
		return err
	}
	return writeByteString(mem, argU32(args[1]), argU32(args[2]), argU32(args[3]), code.Bytes())
}

func (sb *Sandbox) actorNextAddress(caller *wasmtime.Caller, args []wasmtime.Val) error {
	mem, err := memoryOf(caller)
	if err != nil {
		return err
	}
	addr, err := sb.kern.NextActorAddress()
	if err != nil {
		return err
	}
	return writeByteString(mem, argU32(args[0]), argU32(args[1]), argU32(args[2]), addr.Bytes())
}

func (sb *Sandbox) actorCreate(caller *wasmtime.Caller, args []wasmtime.Val) error {
	mem, err := memoryOf(caller)
	if err != nil {
		return err
	}
	raw, err := guestBytes(mem, argU32(args[1]), argU32(args[2]))
	if err != nil {
		return err
	}
	code, err := cid.Cast(raw)
	if err != nil {
		return runtime.NewSyscallError(runtime.ErrIllegalCid, "create_actor: %v", err)
	}
	return sb.kern.CreateActor(code, abi.ActorID(argU64(args[0])))
}

func (sb *Sandbox) actorBalanceOf(caller *wasmtime.Caller, args []wasmtime.Val) error {
	mem, err := memoryOf(caller)
	if err != nil {
		return err
	}
	balance, err := sb.kern.BalanceOf(abi.ActorID(argU64(args[0])))
	if err != nil {
		return err
	}
	return writeTokenAmount(mem, argU32(args[1]), balance)
}

func (sb *Sandbox) actorIsBuiltin(caller *wasmtime.Caller, args []wasmtime.Val) error {
	mem, err := memoryOf(caller)
	if err != nil {
		return err
	}
	raw, err := guestBytes(mem, argU32(args[0]), argU32(args[1]))
	if err != nil {
		return err
	}
	code, err := cid.Cast(raw)
	if err != nil {
		return runtime.NewSyscallError(runtime.ErrIllegalCid, "is_builtin_actor: %v", err)
	}
	return writeBool(mem, argU32(args[2]), sb.kern.IsBuiltinActor(code))
}

// send

// send out struct, 8 bytes: {exit_code u32, return_id u32}. The value is
// passed as a 128-bit integer split into (hi, lo) words.
func (sb *Sandbox) sendSend(caller *wasmtime.Caller, args []wasmtime.Val) error {
	mem, err := memoryOf(caller)
	if err != nil {
		return err
	}
	raw, err := guestBytes(mem, argU32(args[0]), argU32(args[1]))
	if err != nil {
		return err
	}
	to, err := address.NewFromBytes(raw)
	if err != nil {
		return runtime.NewSyscallError(runtime.ErrIllegalArgument, "send destination: %v", err)
	}

	value := tokenFromWords(argU64(args[4]), argU64(args[5]))
	res, err := sb.kern.Send(to, abi.MethodNum(argU64(args[2])), argU32(args[3]), value)
	if err != nil {
		return err
	}

	out, err := guestBytes(mem, argU32(args[6]), 8)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(out[0:], uint32(res.ExitCode))
	binary.LittleEndian.PutUint32(out[4:], res.ReturnID)
	return nil
}

// gas

func (sb *Sandbox) gasCharge(caller *wasmtime.Caller, args []wasmtime.Val) error {
	mem, err := memoryOf(caller)
	if err != nil {
		return err
	}
	nameLen := argU32(args[1])
	if nameLen > maxGasChargeName {
		return runtime.NewSyscallError(runtime.ErrIllegalArgument, "gas charge name too long: %d", nameLen)
	}
	raw, err := guestBytes(mem, argU32(args[0]), nameLen)
	if err != nil {
		return err
	}
	amount := args[2].I64()
	if amount < 0 {
		return runtime.NewSyscallError(runtime.ErrIllegalArgument, "negative gas charge: %d", amount)
	}
	return sb.kern.GasCharge(string(raw), amount)
}

func (sb *Sandbox) gasAvailable(*wasmtime.Caller, []wasmtime.Val) (wasmtime.Val, error) {
	return wasmtime.ValI64(sb.kern.GasAvailable()), nil
}

// rand

func (sb *Sandbox) randChain(caller *wasmtime.Caller, args []wasmtime.Val) error {
	return sb.randomness(caller, args, sb.kern.GetChainRandomness)
}

func (sb *Sandbox) randBeacon(caller *wasmtime.Caller, args []wasmtime.Val) error {
	return sb.randomness(caller, args, sb.kern.GetBeaconRandomness)
}

func (sb *Sandbox) randomness(caller *wasmtime.Caller, args []wasmtime.Val, get func(int64, abi.ChainEpoch, []byte) (abi.Randomness, error)) error {
	mem, err := memoryOf(caller)
	if err != nil {
		return err
	}
	entropy, err := guestBytes(mem, argU32(args[2]), argU32(args[3]))
	if err != nil {
		return err
	}
	rand, err := get(args[0].I64(), abi.ChainEpoch(args[1].I64()), entropy)
	if err != nil {
		return err
	}
	if len(rand) != randomnessSize {
		return aerrors.Fatalf("randomness digest has %d bytes, expected %d", len(rand), randomnessSize)
	}
	out, err := guestBytes(mem, argU32(args[4]), randomnessSize)
	if err != nil {
		return err
	}
	copy(out, rand)
	return nil
}

// crypto

func (sb *Sandbox) cryptoVerifySignature(caller *wasmtime.Caller, args []wasmtime.Val) error {
	mem, err := memoryOf(caller)
	if err != nil {
		return err
	}
	sig, err := guestBytes(mem, argU32(args[0]), argU32(args[1]))
	if err != nil {
		return err
	}
	rawAddr, err := guestBytes(mem, argU32(args[2]), argU32(args[3]))
	if err != nil {
		return err
	}
	signer, err := address.NewFromBytes(rawAddr)
	if err != nil {
		return runtime.NewSyscallError(runtime.ErrIllegalArgument, "signer address: %v", err)
	}
	plaintext, err := guestBytes(mem, argU32(args[4]), argU32(args[5]))
	if err != nil {
		return err
	}
	valid, err := sb.kern.VerifySignature(sig, signer, plaintext)
	if err != nil {
		return err
	}
	return writeBool(mem, argU32(args[6]), valid)
}

func (sb *Sandbox) cryptoHashBlake2b(caller *wasmtime.Caller, args []wasmtime.Val) error {
	mem, err := memoryOf(caller)
	if err != nil {
		return err
	}
	data, err := guestBytes(mem, argU32(args[0]), argU32(args[1]))
	if err != nil {
		return err
	}
	digest, err := sb.kern.HashBlake2b(data)
	if err != nil {
		return err
	}
	out, err := guestBytes(mem, argU32(args[2]), uint32(len(digest)))
	if err != nil {
		return err
	}
	copy(out, digest[:])
	return nil
}

func (sb *Sandbox) cryptoComputeUnsealedSectorCID(caller *wasmtime.Caller, args []wasmtime.Val) error {
	mem, err := memoryOf(caller)
	if err != nil {
		return err
	}
	c, err := sb.kern.ComputeUnsealedSectorCID(abi.RegisteredSealProof(args[0].I64()), argU32(args[1]))
	if err != nil {
		return err
	}
	return writeByteString(mem, argU32(args[2]), argU32(args[3]), argU32(args[4]), c.Bytes())
}

func (sb *Sandbox) cryptoVerifySeal(caller *wasmtime.Caller, args []wasmtime.Val) error {
	return sb.verifyToBool(caller, args, sb.kern.VerifySeal)
}

func (sb *Sandbox) cryptoVerifyPoSt(caller *wasmtime.Caller, args []wasmtime.Val) error {
	return sb.verifyToBool(caller, args, sb.kern.VerifyPoSt)
}

func (sb *Sandbox) cryptoVerifyAggregateSeals(caller *wasmtime.Caller, args []wasmtime.Val) error {
	return sb.verifyToBool(caller, args, sb.kern.VerifyAggregateSeals)
}

func (sb *Sandbox) verifyToBool(caller *wasmtime.Caller, args []wasmtime.Val, verify func(uint32) (bool, error)) error {
	mem, err := memoryOf(caller)
	if err != nil {
		return err
	}
	ok, err := verify(argU32(args[0]))
	if err != nil {
		return err
	}
	return writeBool(mem, argU32(args[1]), ok)
}

// verify_consensus_fault out struct, 24 bytes:
// {fault u32, type u32, target u64, epoch i64}.
func (sb *Sandbox) cryptoVerifyConsensusFault(caller *wasmtime.Caller, args []wasmtime.Val) error {
	mem, err := memoryOf(caller)
	if err != nil {
		return err
	}
	h1, err := guestBytes(mem, argU32(args[0]), argU32(args[1]))
	if err != nil {
		return err
	}
	h2, err := guestBytes(mem, argU32(args[2]), argU32(args[3]))
	if err != nil {
		return err
	}
	extra, err := guestBytes(mem, argU32(args[4]), argU32(args[5]))
	if err != nil {
		return err
	}
	fault, err := sb.kern.VerifyConsensusFault(h1, h2, extra)
	if err != nil {
		return err
	}
	out, err := guestBytes(mem, argU32(args[6]), 24)
	if err != nil {
		return err
	}
	for i := range out {
		out[i] = 0
	}
	if fault == nil {
		return nil
	}
	target, err := address.IDFromAddress(fault.Target)
	if err != nil {
		return aerrors.Fatalf("consensus fault target %s is not an ID address", fault.Target)
	}
	binary.LittleEndian.PutUint32(out[0:], 1)
	binary.LittleEndian.PutUint32(out[4:], uint32(fault.Type))
	binary.LittleEndian.PutUint64(out[8:], target)
	binary.LittleEndian.PutUint64(out[16:], uint64(fault.Epoch))
	return nil
}

func (sb *Sandbox) cryptoBatchVerifySeals(caller *wasmtime.Caller, args []wasmtime.Val) error {
	mem, err := memoryOf(caller)
	if err != nil {
		return err
	}
	results, err := sb.kern.BatchVerifySeals(argU32(args[0]))
	if err != nil {
		return err
	}
	if uint32(len(results)) > argU32(args[2]) {
		return runtime.NewSyscallError(runtime.ErrBufferTooSmall, "results buffer holds %d, need %d", argU32(args[2]), len(results))
	}
	out, err := guestBytes(mem, argU32(args[1]), uint32(len(results)))
	if err != nil {
		return err
	}
	for i, ok := range results {
		if ok {
			out[i] = 1
		} else {
			out[i] = 0
		}
	}
	return nil
}

// events

func (sb *Sandbox) eventEmit(caller *wasmtime.Caller, args []wasmtime.Val) error {
	mem, err := memoryOf(caller)
	if err != nil {
		return err
	}
	raw, err := guestBytes(mem, argU32(args[0]), argU32(args[1]))
	if err != nil {
		return err
	}
	var evt types.Event
	if err := evt.UnmarshalCBOR(bytes.NewReader(raw)); err != nil {
		return runtime.NewSyscallError(runtime.ErrSerialization, "decoding event: %v", err)
	}
	return sb.kern.EmitEvent(&evt)
}

// debug

func (sb *Sandbox) debugLog(caller *wasmtime.Caller, args []wasmtime.Val) error {
	if !sb.kern.LogEnabled() {
		return nil
	}
	mem, err := memoryOf(caller)
	if err != nil {
		return err
	}
	msgLen := argU32(args[2])
	if msgLen > maxDebugMessage {
		msgLen = maxDebugMessage
	}
	raw, err := guestBytes(mem, argU32(args[1]), msgLen)
	if err != nil {
		return err
	}
	sb.kern.Log(argU32(args[0]), string(raw))
	return nil
}

func (sb *Sandbox) debugEnabled(*wasmtime.Caller, []wasmtime.Val) (wasmtime.Val, error) {
	if sb.kern.LogEnabled() {
		return wasmtime.ValI32(1), nil
	}
	return wasmtime.ValI32(0), nil
}

// wire helpers

// writeByteString copies a variable length byte string (cid, address)
// into a guest buffer and records the written length.
func writeByteString(mem []byte, off, capacity, writtenOff uint32, data []byte) error {
	if uint32(len(data)) > capacity {
		return runtime.NewSyscallError(runtime.ErrBufferTooSmall, "buffer holds %d bytes, need %d", capacity, len(data))
	}
	out, err := guestBytes(mem, off, uint32(len(data)))
	if err != nil {
		return err
	}
	copy(out, data)
	lenOut, err := guestBytes(mem, writtenOff, 4)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(lenOut, uint32(len(data)))
	return nil
}

func writeTokenAmount(mem []byte, off uint32, amt abi.TokenAmount) error {
	out, err := guestBytes(mem, off, tokenAmountSize)
	if err != nil {
		return err
	}
	for i := range out {
		out[i] = 0
	}
	if amt.Int == nil {
		return nil
	}
	b := amt.Int.Bytes()
	if amt.Sign() < 0 || len(b) > tokenAmountSize {
		return aerrors.Fatalf("token amount out of range: %s", amt)
	}
	copy(out[tokenAmountSize-len(b):], b)
	return nil
}

func writeBool(mem []byte, off uint32, v bool) error {
	out, err := guestBytes(mem, off, 4)
	if err != nil {
		return err
	}
	if v {
		binary.LittleEndian.PutUint32(out, 1)
	} else {
		binary.LittleEndian.PutUint32(out, 0)
	}
	return nil
}

func tokenFromWords(hi, lo uint64) abi.TokenAmount {
	v := new(stdbig.Int).SetUint64(hi)
	v.Lsh(v, 64)
	v.Or(v, new(stdbig.Int).SetUint64(lo))
	return big.NewFromGo(v)
}
