package vmcontext

import (
	"context"
	"errors"
	"fmt"

	"github.com/filecoin-project/go-address"
	amt4 "github.com/filecoin-project/go-amt-ipld/v4"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/filecoin-project/go-state-types/builtin"
	"github.com/filecoin-project/go-state-types/exitcode"
	"github.com/filecoin-project/go-state-types/network"
	"github.com/ipfs/go-cid"
	cbor "github.com/ipfs/go-ipld-cbor"
	logging "github.com/ipfs/go-log/v2"
	cbg "github.com/whyrusleeping/cbor-gen"

	"github.com/filecoin-project/go-fvm/pkg/constants"
	"github.com/filecoin-project/go-fvm/pkg/state/tree"
	"github.com/filecoin-project/go-fvm/pkg/types"
	"github.com/filecoin-project/go-fvm/pkg/util/blockstoreutil"
	"github.com/filecoin-project/go-fvm/pkg/vm/aerrors"
	"github.com/filecoin-project/go-fvm/pkg/vm/dispatch"
	"github.com/filecoin-project/go-fvm/pkg/vm/gas"
	"github.com/filecoin-project/go-fvm/pkg/vm/register"
	"github.com/filecoin-project/go-fvm/pkg/vm/runtime"
)

// MaxCallDepth is the maximum nesting of inter-actor sends before the vm
// refuses to recurse further.
const MaxCallDepth = 4096

// EventsAMTBitwidth is the branching factor of the events AMT committed
// into the receipt.
const EventsAMTBitwidth = 5

var vmlog = logging.Logger("vm.context")

// VM holds the state view and executes messages over it.
type VM struct {
	context    context.Context
	actorImpls ActorImplLookup
	bsstore    *blockstoreutil.BufferedBS
	store      cbor.IpldStore

	currentEpoch abi.ChainEpoch
	pricelist    gas.Pricelist

	actorLog *ActorLog
	vmOption VmOption

	baseCircSupply abi.TokenAmount

	emptyObject cid.Cid

	State tree.Tree
}

// ActorImplLookup provides access to the native actor registry.
type ActorImplLookup interface {
	GetActorImpl(code cid.Cid, rt runtime.Runtime) (dispatch.Dispatcher, *dispatch.DispatchError)
	HasCode(code cid.Cid) bool
}

var _ VMInterpreter = (*VM)(nil)

var _ Interface = (*VM)(nil)

// NewVM creates a new runtime for executing messages.
func NewVM(ctx context.Context, actorImpls ActorImplLookup, vmOption VmOption) (*VM, error) {
	buf := blockstoreutil.NewBufferedBstore(vmOption.Bsstore)
	cst := cbor.NewCborStore(buf)
	var st tree.Tree
	var err error
	if vmOption.PRoot == cid.Undef {
		// just for chain gen
		st = tree.NewState(cst)
	} else {
		st, err = tree.LoadState(ctx, cst, vmOption.PRoot)
		if err != nil {
			return nil, err
		}
	}

	baseCircSupply := big.Zero()
	if vmOption.CircSupplyCalculator != nil {
		baseCircSupply, err = vmOption.CircSupplyCalculator(ctx, vmOption.Epoch, st)
		if err != nil {
			return nil, err
		}
	}

	pricelist, err := vmOption.GasPriceSchedule.PricelistByVersion(vmOption.NetworkVersion)
	if err != nil {
		return nil, err
	}

	emptyObject, err := cst.Put(ctx, []struct{}{})
	if err != nil {
		return nil, fmt.Errorf("failed to persist empty object: %w", err)
	}

	vm := &VM{
		context:        ctx,
		actorImpls:     actorImpls,
		bsstore:        buf,
		store:          cst,
		State:          st,
		vmOption:       vmOption,
		baseCircSupply: baseCircSupply,
		pricelist:      pricelist,
		currentEpoch:   vmOption.Epoch,
		emptyObject:    emptyObject,
	}
	if vmOption.ActorDebugging {
		vm.actorLog = NewActorLog()
	}
	return vm, nil
}

// ApplyGenesisMessage forces the execution of a message in the vm.
//
// This method is intended to be used in the generation of the genesis block only.
func (vm *VM) ApplyGenesisMessage(from address.Address, to address.Address, method abi.MethodNum, value abi.TokenAmount, params interface{}) (*Ret, error) {
	// normalize from addr
	var ok bool
	if from, ok = vm.normalizeAddress(from); !ok {
		runtime.Abort(exitcode.SysErrSenderInvalid)
	}

	// build internal message
	imsg := VmMessage{
		From:   from,
		To:     to,
		Value:  value,
		Method: method,
		Params: params,
	}

	ret, err := vm.applyImplicitMessage(imsg)
	if err != nil {
		return ret, err
	}

	// commit
	if _, err := vm.Flush(vm.context); err != nil {
		return nil, err
	}

	return ret, nil
}

// ContextStore provides access to the vm's uncharged state store.
//
// This type of store is used to access some internal actor state.
func (vm *VM) ContextStore() *tree.AdtStore {
	return &tree.AdtStore{IpldStore: vm.store}
}

func (vm *VM) normalizeAddress(addr address.Address) (address.Address, bool) {
	idAddr, err := vm.State.LookupID(addr)
	if err != nil {
		if errors.Is(err, types.ErrActorNotFound) {
			return address.Undef, false
		}
		panic(fmt.Errorf("failed to resolve address %s: %w", addr, err))
	}
	return idAddr, true
}

// ApplyImplicitMessage applies messages automatically generated by the vm itself.
func (vm *VM) ApplyImplicitMessage(ctx context.Context, msg types.ChainMsg) (*Ret, error) {
	unsignedMsg := msg.VMMessage()

	imsg := VmMessage{
		From:   unsignedMsg.From,
		To:     unsignedMsg.To,
		Value:  unsignedMsg.Value,
		Method: unsignedMsg.Method,
		Params: unsignedMsg.Params,
	}

	return vm.applyImplicitMessage(imsg)
}

// applyImplicitMessage applies messages automatically generated by the vm itself.
//
// These messages do not consume client gas and must not fail.
func (vm *VM) applyImplicitMessage(imsg VmMessage) (*Ret, error) {
	start := constants.Clock.Now()

	// implicit messages gas is tracked separately and not paid by the miner
	gasTank := gas.NewGasTracker(constants.BlockGasLimit * 10000)

	// the execution of the implicit messages is simpler than full external/actor-actor messages
	// execution:
	// 1. load from actor
	// 2. build new context
	// 3. invoke message

	// 1. load from actor
	fromID, ok := vm.normalizeAddress(imsg.From)
	if !ok {
		return nil, fmt.Errorf("implicit message `From` field actor not found, addr: %s", imsg.From)
	}
	fromActor, found, err := vm.State.GetActor(vm.context, fromID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("implicit message `From` field actor not found, addr: %s", imsg.From)
	}
	originatorID, err := address.IDFromAddress(fromID)
	if err != nil {
		return nil, fmt.Errorf("implicit message `From` field is not an ID address: %s", fromID)
	}

	// 2. build context
	topLevel := topLevelContext{
		originatorStableAddress: imsg.From,
		originatorID:            abi.ActorID(originatorID),
		originatorCallSeq:       fromActor.Nonce, // implied nonce is that of the actor before incrementing
		newActorAddressCount:    0,
	}
	imsg.From = fromID

	gasBsstore := &GasChargeBlockStore{
		inner:     vm.bsstore,
		pricelist: vm.pricelist,
		gasTank:   gasTank,
	}
	cst := cbor.NewCborStore(gasBsstore)
	ctx := newInvocationContext(vm, cst, &topLevel, imsg, gasTank, vm.vmOption.Rnd, nil)

	// 3. invoke message
	ret, aerr := ctx.invoke()
	if aerrors.IsFatal(aerr) {
		return nil, fmt.Errorf("fatal error during implicit message execution: from %s, to %s, method %d: %w",
			imsg.From, imsg.To, imsg.Method, aerr)
	}
	code := aerrors.RetCode(aerr)
	if code.IsError() {
		return nil, fmt.Errorf("invalid exit code %d during implicit message execution: from %s, to %s, method %d, value %s: %w",
			code, imsg.From, imsg.To, imsg.Method, imsg.Value, aerr)
	}

	eventsRoot, err := vm.commitEvents(ctx.events)
	if err != nil {
		return nil, err
	}

	return &Ret{
		GasTracker: gasTank,
		OutPuts:    gas.GasOutputs{},
		Receipt: types.MessageReceipt{
			ExitCode:   code,
			Return:     ret,
			GasUsed:    0,
			EventsRoot: eventsRoot,
		},
		Events:   ctx.events,
		Duration: constants.Clock.Since(start),
	}, nil
}

func (vm *VM) ApplyMessage(ctx context.Context, msg types.ChainMsg) (*Ret, error) {
	return vm.applyMessage(msg.VMMessage(), msg.ChainLength())
}

// applyMessage applies the message to the current state.
func (vm *VM) applyMessage(msg *types.Message, onChainMsgSize int) (*Ret, error) {
	// This method does not actually execute the message itself,
	// but rather deals with the pre/post processing of a message.
	// (see: `invocationContext.invoke()` for the dispatch and execution)

	start := constants.Clock.Now()

	// initiate gas tracking
	gasTank := gas.NewGasTracker(msg.GasLimit)
	gasTank.Tracing = vm.vmOption.Tracing

	// pre-send
	// 1. charge for message existence
	// 2. load sender actor
	// 3. check message seq number
	// 4. check sender gas fee is enough
	// 5. increment message seq number
	// 6. withhold maximum gas from _sender_
	// 7. snapshot state

	// 1. charge for bytes used in chain
	msgGasCost := vm.pricelist.OnChainMessage(onChainMsgSize)
	ok := gasTank.TryCharge(msgGasCost)
	if !ok {
		// Invalid message; insufficient gas limit to pay for the on-chain message size.
		// Note: the miner needs to pay the full msg cost, not what might have been partially consumed.
		gasOutputs := gas.ZeroGasOutputs()
		gasOutputs.MinerPenalty = big.Mul(vm.vmOption.BaseFee, big.NewInt(msgGasCost.Total()))
		return &Ret{
			GasTracker: gasTank,
			OutPuts:    gasOutputs,
			Receipt:    Failure(exitcode.SysErrOutOfGas, 0),
			Duration:   constants.Clock.Since(start),
		}, nil
	}

	minerPenaltyAmount := big.Mul(vm.vmOption.BaseFee, big.NewInt(msg.GasLimit))

	// 2. load sender actor and check that it is an account
	fromActor, found, err := vm.State.GetActor(vm.context, msg.From)
	if err != nil {
		return nil, err
	}
	if !found {
		// Execution error; sender does not exist at time of message execution.
		gasOutputs := gas.ZeroGasOutputs()
		gasOutputs.MinerPenalty = minerPenaltyAmount
		return &Ret{
			GasTracker: gasTank,
			OutPuts:    gasOutputs,
			Receipt:    Failure(exitcode.SysErrSenderInvalid, 0),
			Duration:   constants.Clock.Since(start),
		}, nil
	}

	if !register.IsAccountActor(fromActor.Code) {
		// Execution error; sender is not an account.
		gasOutputs := gas.ZeroGasOutputs()
		gasOutputs.MinerPenalty = minerPenaltyAmount
		return &Ret{
			GasTracker: gasTank,
			OutPuts:    gasOutputs,
			Receipt:    Failure(exitcode.SysErrSenderInvalid, 0),
			Duration:   constants.Clock.Since(start),
		}, nil
	}

	// 3. make sure this is the right message order for fromActor
	if msg.Nonce != fromActor.Nonce {
		// Execution error; invalid seq number.
		gasOutputs := gas.ZeroGasOutputs()
		gasOutputs.MinerPenalty = minerPenaltyAmount
		return &Ret{
			GasTracker: gasTank,
			OutPuts:    gasOutputs,
			Receipt:    Failure(exitcode.SysErrSenderStateInvalid, 0),
			Duration:   constants.Clock.Since(start),
		}, nil
	}

	// 4. check sender gas fee is enough
	gasLimitCost := big.Mul(big.NewIntUnsigned(uint64(msg.GasLimit)), msg.GasFeeCap)
	if fromActor.Balance.LessThan(gasLimitCost) {
		// Execution error; sender does not have sufficient funds to pay for the gas limit.
		gasOutputs := gas.ZeroGasOutputs()
		gasOutputs.MinerPenalty = minerPenaltyAmount
		return &Ret{
			GasTracker: gasTank,
			OutPuts:    gasOutputs,
			Receipt:    Failure(exitcode.SysErrSenderStateInvalid, 0),
			Duration:   constants.Clock.Since(start),
		}, nil
	}

	gasHolder := &types.Actor{Balance: big.NewInt(0)}
	if err := vm.transferToGasHolder(msg.From, gasHolder, gasLimitCost); err != nil {
		return nil, fmt.Errorf("failed to withdraw gas funds: %w", err)
	}

	// 5. increment sender nonce
	if err = vm.State.MutateActor(msg.From, func(msgFromActor *types.Actor) error {
		msgFromActor.IncrementSeqNum()
		return nil
	}); err != nil {
		return nil, err
	}

	// The originator of the call tree is resolved once; its ID stays fixed
	// for the whole message, even if the account is deleted mid-execution.
	fromID, err := vm.State.LookupID(msg.From)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve sender %s: %w", msg.From, err)
	}
	originatorID, err := address.IDFromAddress(fromID)
	if err != nil {
		return nil, fmt.Errorf("sender %s did not resolve to an ID address: %w", msg.From, err)
	}

	// 7. snapshot state
	// Even if the message fails, the following accumulated changes will be applied:
	// - CallSeqNumber increment
	// - sender balance withheld
	err = vm.snapshot()
	if err != nil {
		return nil, err
	}
	defer vm.clearSnapshot()

	// send
	// 1. build internal message
	// 2. build invocation context
	// 3. process the msg
	topLevel := topLevelContext{
		originatorStableAddress: msg.From,
		originatorID:            abi.ActorID(originatorID),
		originatorCallSeq:       msg.Nonce,
		newActorAddressCount:    0,
	}

	// 1. build internal msg
	imsg := VmMessage{
		From:   fromID,
		To:     msg.To,
		Value:  msg.Value,
		Method: msg.Method,
		Params: msg.Params,
	}

	// 2. build invocation context
	gasBsstore := &GasChargeBlockStore{
		inner:     vm.bsstore,
		pricelist: vm.pricelist,
		gasTank:   gasTank,
	}
	cst := cbor.NewCborStore(gasBsstore)
	ctx := newInvocationContext(vm, cst, &topLevel, imsg, gasTank, vm.vmOption.Rnd, nil)

	// 3. invoke
	ret, aerr := ctx.invoke()
	if aerrors.IsFatal(aerr) {
		return nil, fmt.Errorf("[from=%s, to=%s, seq=%d, m=%d, h=%d] fatal error: %w",
			msg.From, msg.To, msg.Nonce, msg.Method, vm.currentEpoch, aerr)
	}
	code := aerrors.RetCode(aerr)
	if aerr != nil {
		vmlog.Warnw("process message error",
			"from", msg.From, "to", msg.To, "seq", msg.Nonce, "method", msg.Method, "exitcode", code, "error", aerr)
	}

	// post-send
	// 1. charge gas for putting the return value on the chain
	// 2. settle gas money around (unused_gas -> sender)
	// 3. success!

	// 1. charge for the space used by the return value
	ok = gasTank.TryCharge(vm.pricelist.OnChainReturnValue(len(ret)))
	if !ok {
		// Insufficient gas remaining to cover the on-chain return value; proceed as in the case
		// of method execution failure.
		code = exitcode.SysErrOutOfGas
		ret = []byte{}
	}

	// Roll back all state if the receipt's exit code is not ok.
	// This is required in addition to revert within the invocation context since top level messages can fail for
	// more reasons than internal ones. Invocation context still needs its own revert so actors can recover and
	// proceed from a nested call failure.
	if code != exitcode.Ok {
		if err := vm.revert(); err != nil {
			return nil, err
		}
	}

	// Events only reach the receipt when the message succeeds; the gas for
	// them was charged as they were emitted.
	var events []types.Event
	var eventsRoot *cid.Cid
	if code == exitcode.Ok {
		events = ctx.events
		eventsRoot, err = vm.commitEvents(events)
		if err != nil {
			return nil, err
		}
	}

	// 2. settle gas money around (unused_gas -> sender)
	gasUsed := gasTank.GasUsed
	if gasUsed < 0 {
		gasUsed = 0
	}

	burn, err := vm.shouldBurn(vm.context, msg, code)
	if err != nil {
		return nil, fmt.Errorf("deciding whether should burn failed: %w", err)
	}

	gasOutputs := gas.ComputeGasOutputs(gasUsed, msg.GasLimit, vm.vmOption.BaseFee, msg.GasFeeCap, msg.GasPremium, burn)

	if err := vm.transferFromGasHolder(builtin.BurntFundsActorAddr, gasHolder, gasOutputs.BaseFeeBurn); err != nil {
		return nil, fmt.Errorf("failed to burn base fee: %w", err)
	}

	if err := vm.transferFromGasHolder(builtin.RewardActorAddr, gasHolder, gasOutputs.MinerTip); err != nil {
		return nil, fmt.Errorf("failed to give miner gas reward: %w", err)
	}

	if err := vm.transferFromGasHolder(builtin.BurntFundsActorAddr, gasHolder, gasOutputs.OverEstimationBurn); err != nil {
		return nil, fmt.Errorf("failed to burn overestimation fee: %w", err)
	}

	// refund unused gas
	if err := vm.transferFromGasHolder(msg.From, gasHolder, gasOutputs.Refund); err != nil {
		return nil, fmt.Errorf("failed to refund gas: %w", err)
	}

	if big.Cmp(big.NewInt(0), gasHolder.Balance) != 0 {
		return nil, fmt.Errorf("gas handling math is wrong")
	}

	// 3. Success!
	return &Ret{
		GasTracker: gasTank,
		OutPuts:    gasOutputs,
		Receipt: types.MessageReceipt{
			ExitCode:   code,
			Return:     ret,
			GasUsed:    gasUsed,
			EventsRoot: eventsRoot,
		},
		ActorErr: aerr,
		Events:   events,
		Duration: constants.Clock.Since(start),
	}, nil
}

// commitEvents writes the events of a terminated call tree into an AMT and
// returns its root. The store is not gas metered; each event was already
// paid for when it was emitted.
func (vm *VM) commitEvents(events []types.Event) (*cid.Cid, error) {
	if len(events) == 0 {
		return nil, nil
	}

	vals := make([]cbg.CBORMarshaler, len(events))
	for i := range events {
		vals[i] = &events[i]
	}

	root, err := amt4.FromArray(vm.context, vm.store, vals, amt4.UseTreeBitWidth(EventsAMTBitwidth))
	if err != nil {
		return nil, fmt.Errorf("failed to commit events AMT: %w", err)
	}
	return &root, nil
}

func (vm *VM) shouldBurn(ctx context.Context, msg *types.Message, errcode exitcode.ExitCode) (bool, error) {
	if vm.NetworkVersion() <= network.Version12 {
		// Check to see if we should burn funds. We avoid burning on successful
		// window post. This won't catch _indirect_ window post calls, but this
		// is the best we can get for now.
		if errcode == exitcode.Ok && msg.Method == builtin.MethodsMiner.SubmitWindowedPoSt {
			// Ok, we've checked the _method_, but we still need to check the
			// target actor. Only sandboxed code carries miner logic here.
			toActor, found, err := vm.State.GetActor(ctx, msg.To)
			if err != nil {
				return false, fmt.Errorf("failed to lookup target actor: %w", err)
			}
			if found && !register.IsBuiltinActor(toActor.Code) {
				return false, nil
			}
		}

		return true, nil
	}

	// Any "don't burn" rules from network v13 onwards go here, for now we always return true
	return true, nil
}

// transfer debits money from one account and credits it to another.
// avoid calling this method with a zero amount else it will perform unnecessary actor loading.
//
// WARNING: this method will panic if the amount is negative, accounts don't exist, or have insufficient funds.
func (vm *VM) transfer(from address.Address, to address.Address, amount abi.TokenAmount, networkVersion network.Version) {
	var fromActor *types.Actor
	var fromID, toID address.Address
	var err error
	var found bool
	// switching the order around so that transactions for more than the balance sent to self fail
	if networkVersion >= network.Version15 {
		if amount.LessThan(big.Zero()) {
			runtime.Abortf(exitcode.SysErrForbidden, "attempt to transfer negative value %s from %s to %s", amount, from, to)
		}

		fromID, err = vm.State.LookupID(from)
		if err != nil {
			panic(fmt.Errorf("transfer failed when resolving sender address: %w", err))
		}

		// retrieve sender account
		fromActor, found, err = vm.State.GetActor(vm.context, fromID)
		if err != nil {
			panic(err)
		}
		if !found {
			panic(fmt.Errorf("unreachable: sender account not found: %s", from))
		}

		// check that account has enough balance for transfer
		if fromActor.Balance.LessThan(amount) {
			runtime.Abortf(exitcode.SysErrInsufficientFunds, "sender %s insufficient balance %s to transfer %s to %s", from, fromActor.Balance, amount, to)
		}

		if from == to {
			vmlog.Infow("sending to same address: noop", "from/to addr", from)
			return
		}

		toID, err = vm.State.LookupID(to)
		if err != nil {
			panic(fmt.Errorf("transfer failed when resolving receiver address: %w", err))
		}

		if fromID == toID {
			vmlog.Infow("sending to same actor ID: noop", "from/to actor", fromID)
			return
		}
	} else {
		if from == to {
			return
		}

		fromID, err = vm.State.LookupID(from)
		if err != nil {
			panic(fmt.Errorf("transfer failed when resolving sender address: %w", err))
		}

		toID, err = vm.State.LookupID(to)
		if err != nil {
			panic(fmt.Errorf("transfer failed when resolving receiver address: %w", err))
		}

		if fromID == toID {
			return
		}

		if amount.LessThan(big.Zero()) {
			runtime.Abortf(exitcode.SysErrForbidden, "attempt to transfer negative value %s from %s to %s", amount, from, to)
		}

		// retrieve sender account
		fromActor, found, err = vm.State.GetActor(vm.context, fromID)
		if err != nil {
			panic(err)
		}
		if !found {
			panic(fmt.Errorf("unreachable: sender account not found: %s", from))
		}
	}

	// retrieve receiver account
	toActor, found, err := vm.State.GetActor(vm.context, toID)
	if err != nil {
		panic(err)
	}
	if !found {
		panic(fmt.Errorf("unreachable: credit account not found: %s", to))
	}

	// check that account has enough balance for transfer
	if fromActor.Balance.LessThan(amount) {
		runtime.Abortf(exitcode.SysErrInsufficientFunds, "sender %s insufficient balance %s to transfer %s to %s", from, fromActor.Balance, amount, to)
	}

	// deduct funds
	fromActor.Balance = big.Sub(fromActor.Balance, amount)
	if err := vm.State.SetActor(vm.context, fromID, fromActor); err != nil {
		panic(err)
	}

	// deposit funds
	toActor.Balance = big.Add(toActor.Balance, amount)
	if err := vm.State.SetActor(vm.context, toID, toActor); err != nil {
		panic(err)
	}
}

//
// implement runtime.Runtime for VM
//

var _ runtime.Runtime = (*VM)(nil)

// CurrentEpoch implements runtime.Runtime.
func (vm *VM) CurrentEpoch() abi.ChainEpoch {
	return vm.currentEpoch
}

func (vm *VM) NetworkVersion() network.Version {
	return vm.vmOption.NetworkVersion
}

func (vm *VM) transferToGasHolder(addr address.Address, gasHolder *types.Actor, amt abi.TokenAmount) error {
	if amt.LessThan(big.NewInt(0)) {
		return fmt.Errorf("attempted to transfer negative value to gas holder")
	}
	return vm.State.MutateActor(addr, func(a *types.Actor) error {
		if err := deductFunds(a, amt); err != nil {
			return err
		}
		depositFunds(gasHolder, amt)
		return nil
	})
}

func (vm *VM) transferFromGasHolder(addr address.Address, gasHolder *types.Actor, amt abi.TokenAmount) error {
	if amt.LessThan(big.NewInt(0)) {
		return fmt.Errorf("attempted to transfer negative value from gas holder")
	}

	if amt.Equals(big.NewInt(0)) {
		return nil
	}

	return vm.State.MutateActor(addr, func(a *types.Actor) error {
		if err := deductFunds(gasHolder, amt); err != nil {
			return err
		}
		depositFunds(a, amt)
		return nil
	})
}

func (vm *VM) StateTree() tree.Tree {
	return vm.State
}

func (vm *VM) GetCircSupply(ctx context.Context) (abi.TokenAmount, error) {
	// Before v15, this was recalculated on each invocation as the state tree was mutated
	if vm.vmOption.NetworkVersion <= network.Version14 && vm.vmOption.CircSupplyCalculator != nil {
		return vm.vmOption.CircSupplyCalculator(ctx, vm.currentEpoch, vm.State)
	}

	return vm.baseCircSupply, nil
}

func deductFunds(act *types.Actor, amt abi.TokenAmount) error {
	if act.Balance.LessThan(amt) {
		return fmt.Errorf("not enough funds")
	}

	act.Balance = big.Sub(act.Balance, amt)
	return nil
}

func depositFunds(act *types.Actor, amt abi.TokenAmount) {
	act.Balance = big.Add(act.Balance, amt)
}

//
// implement runtime.MessageInfo for VmMessage
//

var _ runtime.MessageInfo = (*VmMessage)(nil)

type VmMessage struct { //nolint
	From   address.Address
	To     address.Address
	Value  abi.TokenAmount
	Method abi.MethodNum
	Params interface{}
}

// ValueReceived implements runtime.MessageInfo.
func (msg VmMessage) ValueReceived() abi.TokenAmount {
	return msg.Value
}

// Caller implements runtime.MessageInfo.
func (msg VmMessage) Caller() address.Address {
	return msg.From
}

// Receiver implements runtime.MessageInfo.
func (msg VmMessage) Receiver() address.Address {
	return msg.To
}

func (vm *VM) revert() error {
	return vm.State.Revert()
}

func (vm *VM) snapshot() error {
	err := vm.State.Snapshot(vm.context)
	if err != nil {
		return err
	}
	return nil
}

func (vm *VM) clearSnapshot() {
	vm.State.ClearSnapshot()
}

// Flush writes all buffered blocks and the state tree out to the backing
// store and returns the new state root.
func (vm *VM) Flush(ctx context.Context) (tree.Root, error) {
	root, err := vm.State.Flush(vm.context)
	if err != nil {
		return cid.Undef, err
	}
	if err := blockstoreutil.CopyBlockstore(ctx, vm.bsstore.Write(), vm.bsstore.Read()); err != nil {
		return cid.Undef, fmt.Errorf("copying tree: %w", err)
	}
	return root, nil
}
