package vmcontext

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/filecoin-project/go-state-types/builtin"
	"github.com/filecoin-project/go-state-types/cbor"
	"github.com/filecoin-project/go-state-types/exitcode"
	"github.com/ipfs/go-cid"
	ipldcbor "github.com/ipfs/go-ipld-cbor"

	"github.com/filecoin-project/go-fvm/pkg/engine"
	"github.com/filecoin-project/go-fvm/pkg/types"
	"github.com/filecoin-project/go-fvm/pkg/util/blockstoreutil"
	"github.com/filecoin-project/go-fvm/pkg/vm/aerrors"
	"github.com/filecoin-project/go-fvm/pkg/vm/gas"
	"github.com/filecoin-project/go-fvm/pkg/vm/register"
	"github.com/filecoin-project/go-fvm/pkg/vm/runtime"
)

// topLevelContext carries the state shared by every frame spawned,
// directly or indirectly, by one externally-applied message.
type topLevelContext struct {
	originatorStableAddress address.Address // externally-visible address of the message sender
	originatorID            abi.ActorID     // resolved ID of the above, fixed at entry
	originatorCallSeq       uint64
	newActorAddressCount    uint64
}

// invocationContext is one frame of the call stack. It exposes the host
// surface to the executing actor: registry actors go through the
// nativeRuntime wrapper, sandboxed actors through the engine syscall
// table bound against the frame's kernel methods.
type invocationContext struct {
	vm                *VM
	topLevel          *topLevelContext
	msg               VmMessage // The message being processed
	gasIpld           ipldcbor.IpldStore
	gasTank           *gas.GasTracker
	randSource        HeadChainRandomness
	depth             uint64
	isCallerValidated bool
	allowSideEffects  bool
	callerID          abi.ActorID
	toActor           *types.Actor
	toID              abi.ActorID
	blocks            *blockRegistry
	events            []types.Event
	deleted           bool
}

func newInvocationContext(vm *VM, gasIpld ipldcbor.IpldStore, topLevel *topLevelContext, msg VmMessage,
	gasTank *gas.GasTracker, randSource HeadChainRandomness, parent *invocationContext) invocationContext {
	depth := uint64(0)
	if parent != nil {
		depth = parent.depth + 1
	}
	// Note: the toActor and callerID are loaded during `invoke()`
	return invocationContext{
		vm:                vm,
		topLevel:          topLevel,
		msg:               msg,
		gasIpld:           gasIpld,
		gasTank:           gasTank,
		randSource:        randSource,
		depth:             depth,
		isCallerValidated: false,
		allowSideEffects:  true,
		blocks:            newBlockRegistry(),
	}
}

// invoke executes the frame under its own snapshot of the state tree. On
// abort the snapshot is reverted and any events recorded by the frame and
// its children are dropped; the caller observes only the exit code.
func (ctx *invocationContext) invoke() ([]byte, aerrors.ActorError) {
	if err := ctx.vm.snapshot(); err != nil {
		return nil, aerrors.Escalate(err, "snapshotting state tree")
	}
	defer ctx.vm.clearSnapshot()

	ret, aerr := ctx.run()
	if aerr != nil {
		if err := ctx.vm.revert(); err != nil {
			return nil, aerrors.Escalate(err, "reverting state tree")
		}
		ctx.events = nil
		return nil, aerr
	}
	return ret, nil
}

// run performs the actual dispatch. Aborts raised while the actor code is
// on the stack arrive here as panics and are converted into the frame's
// error; anything that is not an abort keeps unwinding.
func (ctx *invocationContext) run() (ret []byte, aerr aerrors.ActorError) {
	defer func() {
		if r := recover(); r != nil {
			switch p := r.(type) {
			case runtime.ExecutionPanic:
				vmlog.Warnw("actor aborted", "receiver", ctx.msg.To, "method", ctx.msg.Method,
					"exitcode", p.Code(), "reason", p.String())
				ret, aerr = nil, aerrors.NewfSkip(3, p.Code(), "actor aborted: %s", p.String())
			case aerrors.ActorError:
				ret, aerr = nil, p
			default:
				panic(r)
			}
		}
	}()

	// pre-dispatch
	// 1. charge gas for the method invocation
	// 2. load the target actor, creating an account on first touch
	// 3. transfer the optional funds
	// 4. short-circuit bare sends
	// 5. dispatch to the actor's code

	id, err := address.IDFromAddress(ctx.msg.From)
	if err != nil {
		return nil, aerrors.Fatalf("invocation caller %s is not an ID address: %s", ctx.msg.From, err)
	}
	ctx.callerID = abi.ActorID(id)
	if ctx.msg.Value.Nil() {
		ctx.msg.Value = big.Zero()
	}

	// 1. charge gas for the invocation
	ctx.gasTank.Charge(ctx.vm.pricelist.OnMethodInvocation(ctx.msg.Value, ctx.msg.Method),
		"invoking %s method %d", ctx.msg.To, ctx.msg.Method)

	// 2. load the target actor
	// Note: the To address is normalized to its ID form here
	ctx.toActor, ctx.toID = ctx.resolveTarget(ctx.msg.To)
	ctx.msg.To, err = address.NewIDAddress(uint64(ctx.toID))
	if err != nil {
		return nil, aerrors.Fatalf("building id address for actor %d: %s", ctx.toID, err)
	}

	// 3. transfer funds carried by the msg
	if !ctx.msg.Value.IsZero() {
		ctx.vm.transfer(ctx.msg.From, ctx.msg.To, ctx.msg.Value, ctx.vm.NetworkVersion())
	}

	// 4. if we are just sending funds, there is nothing else to do
	if ctx.msg.Method == builtin.MethodSend {
		return nil, nil
	}

	// 5. dispatch
	if ctx.vm.actorImpls.HasCode(ctx.toActor.Code) {
		return ctx.dispatchNative()
	}
	return ctx.dispatchSandbox()
}

// resolveTarget loads the target actor and its ID. If the target does not
// exist and the address is a pub-key address, an account actor is created
// on the fly and its constructor runs in a nested frame; any other missing
// target aborts the invocation.
func (ctx *invocationContext) resolveTarget(target address.Address) (*types.Actor, abi.ActorID) {
	targetActor, found, err := ctx.vm.State.GetActor(ctx.vm.context, target)
	if err != nil {
		panic(aerrors.Escalate(err, "loading target actor"))
	}
	if found {
		return targetActor, ctx.resolveID(target)
	}

	if target.Protocol() != address.SECP256K1 && target.Protocol() != address.BLS {
		// Don't implicitly create an account actor for an address without
		// an associated key.
		runtime.Abortf(exitcode.SysErrInvalidReceiver, "actor at address %s does not exist", target)
	}

	ctx.gasTank.Charge(ctx.vm.pricelist.OnCreateActor(), "implicit account creation for %s", target)

	targetIDAddr, err := ctx.vm.State.RegisterNewAddress(target)
	if err != nil {
		panic(aerrors.Escalate(err, "registering address for new account"))
	}
	if err := ctx.vm.State.SetActor(ctx.vm.context, targetIDAddr, &types.Actor{
		Code:    register.AccountActorCodeID,
		Head:    ctx.vm.emptyObject,
		Balance: big.Zero(),
	}); err != nil {
		panic(aerrors.Escalate(err, "setting new account actor"))
	}

	var params bytes.Buffer
	if err := target.MarshalCBOR(&params); err != nil {
		panic(aerrors.Escalate(err, "marshaling account constructor params"))
	}
	newMsg := VmMessage{
		From:   builtin.SystemActorAddr,
		To:     targetIDAddr,
		Value:  big.Zero(),
		Method: builtin.MethodConstructor,
		Params: params.Bytes(),
	}
	newCtx := newInvocationContext(ctx.vm, ctx.gasIpld, ctx.topLevel, newMsg, ctx.gasTank, ctx.randSource, ctx)
	if _, aerr := newCtx.invoke(); aerr != nil {
		if aerrors.IsFatal(aerr) {
			panic(aerr)
		}
		runtime.Abortf(aerr.RetCode(), "failed to construct account actor: %s", aerr)
	}
	ctx.events = append(ctx.events, newCtx.events...)

	targetActor, found, err = ctx.vm.State.GetActor(ctx.vm.context, targetIDAddr)
	if err != nil {
		panic(aerrors.Escalate(err, "reloading created account actor"))
	}
	if !found {
		panic(aerrors.Fatalf("unreachable: account construction succeeded but actor %s is missing", targetIDAddr))
	}
	return targetActor, ctx.resolveID(targetIDAddr)
}

// dispatchNative runs a registry actor method in-process through the
// reflection dispatcher.
func (ctx *invocationContext) dispatchNative() ([]byte, aerrors.ActorError) {
	rt := &nativeRuntime{ctx}
	actorImpl, derr := ctx.vm.actorImpls.GetActorImpl(ctx.toActor.Code, rt)
	if derr != nil {
		return nil, aerrors.Newf(derr.ExitCode(), "%s", derr)
	}

	ret, derr := actorImpl.Dispatch(ctx.msg.Method, ctx.vm.NetworkVersion(), rt, ctx.msg.Params)
	if derr != nil {
		return nil, aerrors.Newf(derr.ExitCode(), "%s", derr)
	}

	if !ctx.isCallerValidated {
		runtime.Abortf(exitcode.SysErrorIllegalActor, "caller MUST be validated during method dispatch")
	}
	return ret, nil
}

// dispatchSandbox instantiates the actor's compiled module and runs the
// requested method inside the metered sandbox.
func (ctx *invocationContext) dispatchSandbox() ([]byte, aerrors.ActorError) {
	codeSize, err := ctx.vm.bsstore.GetSize(ctx.vm.context, ctx.toActor.Code)
	if err != nil {
		if blockstoreutil.IsNotFound(err) {
			return nil, aerrors.Newf(exitcode.SysErrorIllegalActor, "no bytecode for actor code %s", ctx.toActor.Code)
		}
		return nil, aerrors.Escalate(err, "loading actor bytecode size")
	}
	ctx.gasTank.Charge(ctx.vm.pricelist.OnModuleInstantiation(codeSize), "instantiating module %s", ctx.toActor.Code)

	params, aerr := ctx.paramsBytes()
	if aerr != nil {
		return nil, aerr
	}
	paramsID := UnitBlockID
	if len(params) > 0 {
		paramsID, err = ctx.blocks.Put(uint64(cid.DagCBOR), params)
		if err != nil {
			return nil, aerrors.Escalate(err, "storing params block")
		}
	}

	sandbox, err := ctx.vm.vmOption.Engine.Instantiate(ctx.vm.context, ctx.vm.bsstore, ctx.toActor.Code, ctx)
	if err != nil {
		if code, ok := engine.ExitCodeForError(err); ok {
			return nil, aerrors.Newf(code, "instantiating actor module: %s", err)
		}
		return nil, aerrors.Escalate(err, "instantiating actor module")
	}

	retID, aerr := sandbox.Invoke(paramsID)
	if aerr != nil {
		return nil, aerr
	}
	if retID == UnitBlockID {
		return nil, nil
	}
	blk, err := ctx.blocks.Get(retID)
	if err != nil {
		return nil, aerrors.Newf(exitcode.SysErrorIllegalActor, "actor returned unknown block handle %d", retID)
	}
	return blk.data, nil
}

// paramsBytes normalizes the frame's params to raw cbor bytes.
func (ctx *invocationContext) paramsBytes() ([]byte, aerrors.ActorError) {
	switch p := ctx.msg.Params.(type) {
	case nil:
		return nil, nil
	case []byte:
		return p, nil
	case cbor.Marshaler:
		var buf bytes.Buffer
		if err := p.MarshalCBOR(&buf); err != nil {
			return nil, aerrors.Absorb(err, exitcode.ErrSerialization, "marshaling params")
		}
		return buf.Bytes(), nil
	default:
		return nil, aerrors.Newf(exitcode.SysErrorIllegalArgument, "params of type %T cannot be serialized", ctx.msg.Params)
	}
}

// send runs a nested message in a child frame sharing this frame's gas
// pool. Events recorded by a successful child are absorbed into this
// frame; an aborted child leaves no trace beyond its exit code.
func (ctx *invocationContext) send(to address.Address, method abi.MethodNum, params interface{},
	value abi.TokenAmount) ([]byte, aerrors.ActorError) {
	if !ctx.allowSideEffects {
		return nil, aerrors.Newf(exitcode.SysErrorIllegalActor, "actor attempted to send during a state transaction")
	}
	if value.Nil() {
		value = big.Zero()
	}

	newMsg := VmMessage{
		From:   ctx.msg.To,
		To:     to,
		Value:  value,
		Method: method,
		Params: params,
	}
	newCtx := newInvocationContext(ctx.vm, ctx.gasIpld, ctx.topLevel, newMsg, ctx.gasTank, ctx.randSource, ctx)
	ret, aerr := newCtx.invoke()
	if aerr != nil {
		return nil, aerr
	}
	ctx.events = append(ctx.events, newCtx.events...)
	return ret, nil
}

// frame-level helpers shared by the native runtime and the kernel

func (ctx *invocationContext) resolveID(addr address.Address) abi.ActorID {
	idAddr, err := ctx.vm.State.LookupID(addr)
	if err != nil {
		panic(aerrors.Escalate(err, "resolving actor id"))
	}
	id, err := address.IDFromAddress(idAddr)
	if err != nil {
		panic(aerrors.Fatalf("resolved address %s is not an ID address", idAddr))
	}
	return abi.ActorID(id)
}

func (ctx *invocationContext) selfActor() *types.Actor {
	act, found, err := ctx.vm.State.GetActor(ctx.vm.context, ctx.msg.To)
	if err != nil {
		panic(aerrors.Escalate(err, "loading own actor"))
	}
	if !found {
		runtime.Abortf(exitcode.SysErrorIllegalActor, "actor %s touched its state after deleting itself", ctx.msg.To)
	}
	return act
}

func (ctx *invocationContext) storeGet(c cid.Cid, obj cbor.Unmarshaler) {
	if err := ctx.gasIpld.Get(ctx.vm.context, c, obj); err != nil {
		panic(aerrors.Escalate(err, "loading state object"))
	}
}

func (ctx *invocationContext) storePut(obj cbor.Marshaler) cid.Cid {
	c, err := ctx.gasIpld.Put(ctx.vm.context, obj)
	if err != nil {
		panic(aerrors.Escalate(err, "storing state object"))
	}
	return c
}

// stateCommit swings the actor's head from oldh to newh, failing if a
// concurrent mutation moved it in between.
func (ctx *invocationContext) stateCommit(oldh, newh cid.Cid) {
	if err := ctx.vm.State.MutateActor(ctx.msg.To, func(act *types.Actor) error {
		if !act.Head.Equals(oldh) {
			return fmt.Errorf("state of actor %s changed during transaction", ctx.msg.To)
		}
		act.Head = newh
		return nil
	}); err != nil {
		panic(aerrors.Escalate(err, "committing actor state"))
	}
	ctx.toActor.Head = newh
}

// newActorAddress derives the next reorg-stable actor address from the
// message originator and a per-message counter.
func (ctx *invocationContext) newActorAddress() (address.Address, error) {
	var b bytes.Buffer
	if err := ctx.topLevel.originatorStableAddress.MarshalCBOR(&b); err != nil {
		return address.Undef, err
	}
	if err := binary.Write(&b, binary.BigEndian, ctx.topLevel.originatorCallSeq); err != nil {
		return address.Undef, err
	}
	if err := binary.Write(&b, binary.BigEndian, ctx.topLevel.newActorAddressCount); err != nil {
		return address.Undef, err
	}
	addr, err := address.NewActorAddress(b.Bytes())
	if err != nil {
		return address.Undef, err
	}
	ctx.topLevel.newActorAddressCount++
	return addr, nil
}

// createActor installs an empty actor with the given code behind an ID
// address. The caller is responsible for running the constructor.
func (ctx *invocationContext) createActor(codeID cid.Cid, addr address.Address) aerrors.ActorError {
	if register.IsSingletonActor(codeID) {
		return aerrors.Newf(exitcode.SysErrorIllegalArgument, "can only have one instance of singleton actors")
	}
	if !ctx.vm.actorImpls.HasCode(codeID) {
		// sandboxed actors must have their bytecode in the store
		if _, err := ctx.vm.bsstore.GetSize(ctx.vm.context, codeID); err != nil {
			if blockstoreutil.IsNotFound(err) {
				return aerrors.Newf(exitcode.SysErrorIllegalArgument, "no bytecode for actor code %s", codeID)
			}
			return aerrors.Escalate(err, "checking actor bytecode")
		}
	}
	_, found, err := ctx.vm.State.GetActor(ctx.vm.context, addr)
	if err != nil {
		return aerrors.Escalate(err, "checking for existing actor")
	}
	if found {
		return aerrors.Newf(exitcode.SysErrorIllegalArgument, "actor address already exists")
	}

	ctx.gasTank.Charge(ctx.vm.pricelist.OnCreateActor(), "creating actor %s", codeID)
	if err := ctx.vm.State.SetActor(ctx.vm.context, addr, &types.Actor{
		Code:    codeID,
		Head:    ctx.vm.emptyObject,
		Balance: big.Zero(),
	}); err != nil {
		return aerrors.Escalate(err, "creating actor entry")
	}
	return nil
}

// deleteSelf removes the executing actor, transferring any remaining
// balance to the beneficiary first.
func (ctx *invocationContext) deleteSelf(beneficiary address.Address) error {
	ctx.gasTank.Charge(ctx.vm.pricelist.OnDeleteActor(), "deleting actor %s", ctx.msg.To)

	selfAct, found, err := ctx.vm.State.GetActor(ctx.vm.context, ctx.msg.To)
	if err != nil {
		return aerrors.Escalate(err, "loading own actor")
	}
	if !found {
		return runtime.NewSyscallError(runtime.ErrIllegalOperation, "actor already deleted")
	}
	if !selfAct.Balance.IsZero() {
		benID, err := ctx.vm.State.LookupID(beneficiary)
		if err != nil {
			if errors.Is(err, types.ErrActorNotFound) {
				return runtime.NewSyscallError(runtime.ErrNotFound, "self destruct beneficiary %s does not exist", beneficiary)
			}
			return aerrors.Escalate(err, "resolving beneficiary")
		}
		if benID == ctx.msg.To {
			return runtime.NewSyscallError(runtime.ErrForbidden, "self destruct beneficiary must not be the deleted actor")
		}
		ctx.vm.transfer(ctx.msg.To, benID, selfAct.Balance, ctx.vm.NetworkVersion())
	}
	if err := ctx.vm.State.DeleteActor(ctx.vm.context, ctx.msg.To); err != nil {
		return aerrors.Escalate(err, "deleting actor")
	}
	ctx.deleted = true
	return nil
}

//
// nativeRuntime: the runtime.InvocationRuntime facade over a frame
//

// nativeRuntime adapts an invocation frame to the interface registry
// actors are written against. Sandboxed actors reach the same operations
// through the engine syscall table instead.
type nativeRuntime struct {
	*invocationContext
}

var _ runtime.InvocationRuntime = (*nativeRuntime)(nil)

type vmStore struct {
	ctx context.Context
	ipldcbor.IpldStore
}

func (s vmStore) Context() context.Context {
	return s.ctx
}

func (rt *nativeRuntime) CurrentEpoch() abi.ChainEpoch {
	return rt.vm.vmOption.Epoch
}

func (rt *nativeRuntime) Message() runtime.MessageInfo {
	return rt.msg
}

func (rt *nativeRuntime) Store() runtime.Store {
	return vmStore{rt.vm.context, rt.gasIpld}
}

func (rt *nativeRuntime) ValidateImmediateCallerAcceptAny() {
	rt.assertUnvalidated()
	rt.isCallerValidated = true
}

func (rt *nativeRuntime) ValidateImmediateCallerIs(addrs ...address.Address) {
	rt.assertUnvalidated()
	for _, addr := range addrs {
		if idAddr, err := rt.vm.State.LookupID(addr); err == nil && rt.msg.From == idAddr {
			rt.isCallerValidated = true
			return
		}
	}
	runtime.Abortf(exitcode.SysErrForbidden, "caller %s is not one of %v", rt.msg.From, addrs)
}

func (rt *nativeRuntime) ValidateImmediateCallerType(codes ...cid.Cid) {
	rt.assertUnvalidated()
	callerActor, found, err := rt.vm.State.GetActor(rt.vm.context, rt.msg.From)
	if err != nil {
		panic(aerrors.Escalate(err, "loading caller actor"))
	}
	if !found {
		panic(aerrors.Fatalf("unreachable: caller actor %s not found", rt.msg.From))
	}
	for _, code := range codes {
		if callerActor.Code.Equals(code) {
			rt.isCallerValidated = true
			return
		}
	}
	runtime.Abortf(exitcode.SysErrForbidden, "caller code %s is not one of %v", callerActor.Code, codes)
}

func (rt *nativeRuntime) assertUnvalidated() {
	if rt.isCallerValidated {
		runtime.Abortf(exitcode.SysErrorIllegalActor, "caller has already been validated")
	}
}

func (rt *nativeRuntime) CurrentBalance() abi.TokenAmount {
	balance, err := rt.invocationContext.CurrentBalance()
	if err != nil {
		panic(aerrors.Escalate(err, "reading own balance"))
	}
	return balance
}

func (rt *nativeRuntime) ResolveAddress(addr address.Address) (address.Address, bool) {
	idAddr, err := rt.vm.State.LookupID(addr)
	if err != nil {
		if errors.Is(err, types.ErrActorNotFound) {
			return address.Undef, false
		}
		panic(aerrors.Escalate(err, "resolving address"))
	}
	return idAddr, true
}

func (rt *nativeRuntime) GetActorCodeCID(addr address.Address) (cid.Cid, bool) {
	act, found, err := rt.vm.State.GetActor(rt.vm.context, addr)
	if err != nil {
		panic(aerrors.Escalate(err, "loading actor code"))
	}
	if !found {
		return cid.Undef, false
	}
	return act.Code, true
}

func (rt *nativeRuntime) NewActorAddress() address.Address {
	addr, err := rt.newActorAddress()
	if err != nil {
		panic(aerrors.Escalate(err, "deriving actor address"))
	}
	return addr
}

func (rt *nativeRuntime) CreateActor(codeID cid.Cid, addr address.Address) {
	if aerr := rt.createActor(codeID, addr); aerr != nil {
		panic(aerr)
	}
}

func (rt *nativeRuntime) DeleteActor(beneficiary address.Address) {
	if err := rt.deleteSelf(beneficiary); err != nil {
		var syserr *runtime.SyscallError
		if errors.As(err, &syserr) {
			runtime.Abortf(errnoToExitCode(syserr.Number), "delete actor: %s", syserr.Msg)
		}
		panic(aerrors.Escalate(err, "deleting actor"))
	}
}

func (rt *nativeRuntime) Send(to address.Address, method abi.MethodNum, params interface{},
	value abi.TokenAmount) ([]byte, exitcode.ExitCode) {
	if rt.depth+1 > MaxCallDepth {
		runtime.Abortf(exitcode.SysErrForbidden, "call depth limit %d exceeded", MaxCallDepth)
	}
	ret, aerr := rt.send(to, method, params, value)
	if aerr != nil {
		if aerrors.IsFatal(aerr) {
			panic(aerr)
		}
		return nil, aerr.RetCode()
	}
	return ret, exitcode.Ok
}

func (rt *nativeRuntime) StateCreate(obj cbor.Marshaler) {
	act := rt.selfActor()
	if !act.Head.Equals(rt.vm.emptyObject) {
		runtime.Abortf(exitcode.SysErrorIllegalActor, "actor state already initialized")
	}
	c := rt.storePut(obj)
	rt.stateCommit(rt.vm.emptyObject, c)
}

func (rt *nativeRuntime) StateReadonly(obj cbor.Unmarshaler) {
	act := rt.selfActor()
	rt.storeGet(act.Head, obj)
}

func (rt *nativeRuntime) StateTransaction(obj cbor.Er, f func()) {
	if obj == nil {
		runtime.Abortf(exitcode.SysErrorIllegalActor, "must not pass nil to StateTransaction()")
	}
	act := rt.selfActor()
	rt.storeGet(act.Head, obj)

	rt.allowSideEffects = false
	f()
	rt.allowSideEffects = true

	c := rt.storePut(obj)
	rt.stateCommit(act.Head, c)
}

// errnoToExitCode translates a recoverable syscall error number into the
// exit code an aborting native frame reports for the same condition.
func errnoToExitCode(errno runtime.ErrorNumber) exitcode.ExitCode {
	switch errno {
	case runtime.ErrInsufficientFunds:
		return exitcode.SysErrInsufficientFunds
	case runtime.ErrNotFound:
		return exitcode.SysErrInvalidReceiver
	case runtime.ErrForbidden, runtime.ErrLimitExceeded:
		return exitcode.SysErrForbidden
	default:
		return exitcode.SysErrorIllegalArgument
	}
}
