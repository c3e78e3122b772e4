package vmcontext

import (
	"context"
	"testing"

	"github.com/bytecodealliance/wasmtime-go/v25"
	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/filecoin-project/go-state-types/builtin"
	acrypto "github.com/filecoin-project/go-state-types/crypto"
	"github.com/filecoin-project/go-state-types/exitcode"
	blocks "github.com/ipfs/go-block-format"
	"github.com/ipfs/go-cid"
	"github.com/minio/blake2b-simd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filecoin-project/go-fvm/pkg/constants"
	"github.com/filecoin-project/go-fvm/pkg/engine"
	tf "github.com/filecoin-project/go-fvm/pkg/testhelpers/testflags"
	"github.com/filecoin-project/go-fvm/pkg/types"
	"github.com/filecoin-project/go-fvm/pkg/util/blockstoreutil"
	"github.com/filecoin-project/go-fvm/pkg/vm/gas"
	"github.com/filecoin-project/go-fvm/pkg/vm/register"
)

const watEcho = `(module
  (memory (export "memory") 1)
  (func (export "invoke") (param i32) (result i32)
    local.get 0))`

const watSpin = `(module
  (memory (export "memory") 1)
  (func (export "invoke") (param i32) (result i32)
    (loop $spin (br $spin))
    (i32.const 0)))`

const watUnreachable = `(module
  (memory (export "memory") 1)
  (func (export "invoke") (param i32) (result i32)
    unreachable))`

type fakeRand struct{}

func (fakeRand) ChainGetRandomnessFromBeacon(_ context.Context, tag acrypto.DomainSeparationTag, epoch abi.ChainEpoch, entropy []byte) (abi.Randomness, error) {
	return derivedRandomness(tag, epoch, entropy), nil
}

func (fakeRand) ChainGetRandomnessFromTickets(_ context.Context, tag acrypto.DomainSeparationTag, epoch abi.ChainEpoch, entropy []byte) (abi.Randomness, error) {
	return derivedRandomness(tag, epoch, entropy), nil
}

func derivedRandomness(tag acrypto.DomainSeparationTag, epoch abi.ChainEpoch, entropy []byte) abi.Randomness {
	buf := append([]byte{byte(tag), byte(epoch)}, entropy...)
	digest := blake2b.Sum256(buf)
	return digest[:]
}

// testVM wraps a vm over an in-memory blockstore with the singleton actors
// installed, the smallest state an executable chain carries.
type testVM struct {
	t   *testing.T
	ctx context.Context
	vm  *VM
}

func newTestVM(t *testing.T, mutate ...func(*VmOption)) *testVM {
	t.Helper()
	ctx := context.Background()
	option := VmOption{
		NetworkVersion:   constants.TestNetworkVersion,
		Rnd:              fakeRand{},
		BaseFee:          abi.NewTokenAmount(100),
		Epoch:            5,
		Timestamp:        1234,
		GasPriceSchedule: gas.NewPricesSchedule(),
		PRoot:            cid.Undef,
		Bsstore:          blockstoreutil.NewTemporarySync(),
		SysCallsImpl:     FakeSyscalls{},
	}
	for _, m := range mutate {
		m(&option)
	}

	vm, err := NewVM(ctx, register.GetDefaultActors(), option)
	require.NoError(t, err)

	h := &testVM{t: t, ctx: ctx, vm: vm}
	h.installSingletons()
	return h
}

// installSingletons writes the system and init actors plus the two fee
// sinks the gas settlement pays into.
func (h *testVM) installSingletons() {
	t := h.t
	initState, err := register.ConstructInitState(h.vm.ContextStore(), "gofvmtest")
	require.NoError(t, err)
	initHead, err := h.vm.ContextStore().Put(h.ctx, initState)
	require.NoError(t, err)

	singletons := []struct {
		addr address.Address
		code cid.Cid
		head cid.Cid
	}{
		{builtin.SystemActorAddr, register.SystemActorCodeID, h.vm.emptyObject},
		{builtin.InitActorAddr, register.InitActorCodeID, initHead},
		{builtin.RewardActorAddr, register.AccountActorCodeID, h.vm.emptyObject},
		{builtin.BurntFundsActorAddr, register.AccountActorCodeID, h.vm.emptyObject},
	}
	for _, s := range singletons {
		err := h.vm.State.SetActor(h.ctx, s.addr, &types.Actor{Code: s.code, Head: s.head, Balance: big.Zero()})
		require.NoError(t, err)
	}
}

// createAccount installs a funded account actor for the given key address
// the way the init actor would on first touch, without spending gas.
func (h *testVM) createAccount(key address.Address, balance abi.TokenAmount) address.Address {
	t := h.t
	idAddr, err := h.vm.State.RegisterNewAddress(key)
	require.NoError(t, err)
	head, err := h.vm.ContextStore().Put(h.ctx, &register.AccountState{Address: key})
	require.NoError(t, err)
	err = h.vm.State.SetActor(h.ctx, idAddr, &types.Actor{
		Code:    register.AccountActorCodeID,
		Head:    head,
		Balance: balance,
	})
	require.NoError(t, err)
	return idAddr
}

func (h *testVM) actor(addr address.Address) *types.Actor {
	act, found, err := h.vm.State.GetActor(h.ctx, addr)
	require.NoError(h.t, err)
	require.True(h.t, found, "no actor at %s", addr)
	return act
}

func (h *testVM) balance(addr address.Address) abi.TokenAmount {
	return h.actor(addr).Balance
}

func (h *testVM) totalBalance() abi.TokenAmount {
	total := big.Zero()
	err := h.vm.State.ForEach(func(_ address.Address, act *types.Actor) error {
		total = big.Add(total, act.Balance)
		return nil
	})
	require.NoError(h.t, err)
	return total
}

func (h *testVM) apply(msg *types.Message) *Ret {
	ret, err := h.vm.ApplyMessage(h.ctx, msg)
	require.NoError(h.t, err)
	return ret
}

func secpAddress(t *testing.T, seed string) address.Address {
	t.Helper()
	addr, err := address.NewSecp256k1Address([]byte(seed))
	require.NoError(t, err)
	return addr
}

func newTransfer(from, to address.Address, nonce uint64, value abi.TokenAmount) *types.Message {
	return &types.Message{
		From:       from,
		To:         to,
		Nonce:      nonce,
		Value:      value,
		Method:     builtin.MethodSend,
		GasLimit:   10_000_000,
		GasFeeCap:  abi.NewTokenAmount(200),
		GasPremium: abi.NewTokenAmount(10),
	}
}

// feesPaid is the part of the withheld funds the sender does not get back.
func feesPaid(out gas.GasOutputs) abi.TokenAmount {
	return big.Sum(out.BaseFeeBurn, out.OverEstimationBurn, out.MinerTip)
}

func storeWasmCode(t *testing.T, bs blockstoreutil.Blockstore, wat string) cid.Cid {
	t.Helper()
	code, err := wasmtime.Wat2Wasm(wat)
	require.NoError(t, err)
	blk := blocks.NewBlock(code)
	require.NoError(t, bs.Put(context.Background(), blk))
	return blk.Cid()
}

func testEngine(t *testing.T) *engine.Engine {
	t.Helper()
	e, err := engine.New(nil)
	require.NoError(t, err)
	return e
}

func TestTransferBetweenAccounts(t *testing.T) {
	tf.UnitTest(t)

	h := newTestVM(t)
	initial := abi.NewTokenAmount(1_000_000_000_000)
	alice := h.createAccount(secpAddress(t, "alice"), initial)
	bob := h.createAccount(secpAddress(t, "bob"), big.Zero())

	totalBefore := h.totalBalance()

	msg := newTransfer(alice, bob, 0, abi.NewTokenAmount(30))
	ret := h.apply(msg)

	require.Equal(t, exitcode.Ok, ret.Receipt.ExitCode)
	assert.Empty(t, ret.Receipt.Return)
	assert.Greater(t, ret.Receipt.GasUsed, int64(0))
	assert.Nil(t, ret.Receipt.EventsRoot)
	assert.Empty(t, ret.Events)

	out := ret.OutPuts
	assert.True(t, h.balance(bob).Equals(abi.NewTokenAmount(30)))
	wantAlice := big.Sub(initial, big.Add(abi.NewTokenAmount(30), feesPaid(out)))
	assert.True(t, h.balance(alice).Equals(wantAlice))

	// the withheld gas funds are fully accounted for
	withheld := big.Mul(big.NewInt(msg.GasLimit), msg.GasFeeCap)
	assert.True(t, big.Sum(out.BaseFeeBurn, out.OverEstimationBurn, out.MinerTip, out.Refund).Equals(withheld))
	assert.True(t, out.BaseFeeBurn.Equals(big.Mul(h.vm.vmOption.BaseFee, big.NewInt(ret.Receipt.GasUsed))))
	assert.True(t, out.MinerTip.Equals(big.Mul(msg.GasPremium, big.NewInt(msg.GasLimit))))

	// burns and tip landed on the fee sinks
	assert.True(t, h.balance(builtin.BurntFundsActorAddr).Equals(big.Add(out.BaseFeeBurn, out.OverEstimationBurn)))
	assert.True(t, h.balance(builtin.RewardActorAddr).Equals(out.MinerTip))

	assert.Equal(t, uint64(1), h.actor(alice).Nonce)
	assert.True(t, h.totalBalance().Equals(totalBefore))
}

func TestTransferCreatesAccountOnFirstTouch(t *testing.T) {
	tf.UnitTest(t)

	h := newTestVM(t)
	alice := h.createAccount(secpAddress(t, "alice"), abi.NewTokenAmount(1_000_000_000_000))
	freshKey := secpAddress(t, "first touch")

	ret := h.apply(newTransfer(alice, freshKey, 0, abi.NewTokenAmount(25)))
	require.Equal(t, exitcode.Ok, ret.Receipt.ExitCode)

	idAddr, err := h.vm.State.LookupID(freshKey)
	require.NoError(t, err)
	id, err := address.IDFromAddress(idAddr)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, id, uint64(register.FirstNonSingletonActorID))

	act := h.actor(idAddr)
	assert.Equal(t, register.AccountActorCodeID, act.Code)
	assert.True(t, act.Balance.Equals(abi.NewTokenAmount(25)))
	assert.Equal(t, uint64(0), act.Nonce)

	var state register.AccountState
	require.NoError(t, h.vm.ContextStore().Get(h.ctx, act.Head, &state))
	assert.Equal(t, freshKey, state.Address)
}

func TestSendToMissingIDReceiver(t *testing.T) {
	tf.UnitTest(t)

	h := newTestVM(t)
	initial := abi.NewTokenAmount(1_000_000_000_000)
	alice := h.createAccount(secpAddress(t, "alice"), initial)
	ghost, err := address.NewIDAddress(9999)
	require.NoError(t, err)

	ret := h.apply(newTransfer(alice, ghost, 0, abi.NewTokenAmount(5)))

	// an ID address names an existing actor or nothing; no account is
	// conjured for it
	assert.Equal(t, exitcode.SysErrInvalidReceiver, ret.Receipt.ExitCode)
	assert.Greater(t, ret.Receipt.GasUsed, int64(0))

	_, found, err := h.vm.State.GetActor(h.ctx, ghost)
	require.NoError(t, err)
	assert.False(t, found)

	// the transfer was rolled back but gas was still settled
	assert.True(t, h.balance(alice).Equals(big.Sub(initial, feesPaid(ret.OutPuts))))
	assert.Equal(t, uint64(1), h.actor(alice).Nonce)
}

func TestInclusionCostExceedsGasLimit(t *testing.T) {
	tf.UnitTest(t)

	h := newTestVM(t)
	initial := abi.NewTokenAmount(1_000_000_000_000)
	alice := h.createAccount(secpAddress(t, "alice"), initial)
	bob := h.createAccount(secpAddress(t, "bob"), big.Zero())

	msg := newTransfer(alice, bob, 0, abi.NewTokenAmount(5))
	msg.GasLimit = 1000

	inclusion := h.vm.pricelist.OnChainMessage(msg.ChainLength()).Total()
	require.Greater(t, inclusion, msg.GasLimit)

	ret := h.apply(msg)
	assert.Equal(t, exitcode.SysErrOutOfGas, ret.Receipt.ExitCode)
	assert.Equal(t, int64(0), ret.Receipt.GasUsed)

	// the miner carries the cost of including the invalid message
	wantPenalty := big.Mul(h.vm.vmOption.BaseFee, big.NewInt(inclusion))
	assert.True(t, ret.OutPuts.MinerPenalty.Equals(wantPenalty))

	// sender untouched: no withholding, no nonce bump
	assert.True(t, h.balance(alice).Equals(initial))
	assert.Equal(t, uint64(0), h.actor(alice).Nonce)
	assert.True(t, h.balance(bob).IsZero())
}

func TestOutOfGasHaltsExecution(t *testing.T) {
	tf.UnitTest(t)

	h := newTestVM(t)
	initial := abi.NewTokenAmount(1_000_000_000_000)
	alice := h.createAccount(secpAddress(t, "alice"), initial)
	bob := h.createAccount(secpAddress(t, "bob"), big.Zero())

	msg := newTransfer(alice, bob, 0, abi.NewTokenAmount(30))
	msg.GasLimit = 300_000

	// enough for inclusion, not enough to reach dispatch
	inclusion := h.vm.pricelist.OnChainMessage(msg.ChainLength()).Total()
	invocation := h.vm.pricelist.OnMethodInvocation(msg.Value, msg.Method).Total()
	require.Greater(t, msg.GasLimit, inclusion)
	require.Less(t, msg.GasLimit, inclusion+invocation)

	ret := h.apply(msg)
	assert.Equal(t, exitcode.SysErrOutOfGas, ret.Receipt.ExitCode)

	// the failed charge consumes everything that was left
	assert.Equal(t, msg.GasLimit, ret.Receipt.GasUsed)

	assert.True(t, h.balance(bob).IsZero())
	assert.True(t, h.balance(alice).Equals(big.Sub(initial, feesPaid(ret.OutPuts))))
	assert.Equal(t, uint64(1), h.actor(alice).Nonce)
}

func TestSenderChecks(t *testing.T) {
	tf.UnitTest(t)

	initial := abi.NewTokenAmount(1_000_000_000_000)

	t.Run("missing sender", func(t *testing.T) {
		h := newTestVM(t)
		bob := h.createAccount(secpAddress(t, "bob"), big.Zero())

		msg := newTransfer(secpAddress(t, "nobody"), bob, 0, abi.NewTokenAmount(5))
		ret := h.apply(msg)

		assert.Equal(t, exitcode.SysErrSenderInvalid, ret.Receipt.ExitCode)
		assert.Equal(t, int64(0), ret.Receipt.GasUsed)
		wantPenalty := big.Mul(h.vm.vmOption.BaseFee, big.NewInt(msg.GasLimit))
		assert.True(t, ret.OutPuts.MinerPenalty.Equals(wantPenalty))
		assert.True(t, h.balance(bob).IsZero())
	})

	t.Run("sender is not an account", func(t *testing.T) {
		h := newTestVM(t)
		bob := h.createAccount(secpAddress(t, "bob"), big.Zero())

		msg := newTransfer(builtin.InitActorAddr, bob, 0, abi.NewTokenAmount(5))
		ret := h.apply(msg)

		assert.Equal(t, exitcode.SysErrSenderInvalid, ret.Receipt.ExitCode)
		assert.Equal(t, int64(0), ret.Receipt.GasUsed)
		assert.True(t, h.balance(bob).IsZero())
	})

	t.Run("nonce mismatch", func(t *testing.T) {
		h := newTestVM(t)
		alice := h.createAccount(secpAddress(t, "alice"), initial)
		bob := h.createAccount(secpAddress(t, "bob"), big.Zero())

		ret := h.apply(newTransfer(alice, bob, 7, abi.NewTokenAmount(5)))

		assert.Equal(t, exitcode.SysErrSenderStateInvalid, ret.Receipt.ExitCode)
		assert.True(t, h.balance(alice).Equals(initial))
		assert.Equal(t, uint64(0), h.actor(alice).Nonce)
		assert.True(t, h.balance(bob).IsZero())
	})

	t.Run("balance below gas limit cover", func(t *testing.T) {
		h := newTestVM(t)
		pauper := h.createAccount(secpAddress(t, "pauper"), abi.NewTokenAmount(10))
		bob := h.createAccount(secpAddress(t, "bob"), big.Zero())

		msg := newTransfer(pauper, bob, 0, abi.NewTokenAmount(1))
		ret := h.apply(msg)

		assert.Equal(t, exitcode.SysErrSenderStateInvalid, ret.Receipt.ExitCode)
		assert.True(t, h.balance(pauper).Equals(abi.NewTokenAmount(10)))
		assert.True(t, h.balance(bob).IsZero())
	})
}

func TestImplicitMessage(t *testing.T) {
	tf.UnitTest(t)

	h := newTestVM(t)

	msg := &types.Message{
		From:   builtin.SystemActorAddr,
		To:     builtin.InitActorAddr,
		Value:  big.Zero(),
		Method: builtin.MethodSend,
	}
	ret, err := h.vm.ApplyImplicitMessage(h.ctx, msg)
	require.NoError(t, err)
	assert.Equal(t, exitcode.Ok, ret.Receipt.ExitCode)

	// gas is tracked but not billed
	assert.Equal(t, int64(0), ret.Receipt.GasUsed)
	assert.Greater(t, ret.GasTracker.GasUsed, int64(0))
	assert.True(t, ret.OutPuts.MinerPenalty.Nil())

	// the sender's nonce is not consumed
	assert.Equal(t, uint64(0), h.actor(builtin.SystemActorAddr).Nonce)

	t.Run("failure is an error, not a receipt", func(t *testing.T) {
		ghost, err := address.NewIDAddress(9999)
		require.NoError(t, err)
		ret, err := h.vm.ApplyImplicitMessage(h.ctx, &types.Message{
			From:   builtin.SystemActorAddr,
			To:     ghost,
			Value:  big.Zero(),
			Method: builtin.MethodSend,
		})
		require.Error(t, err)
		assert.Nil(t, ret)
		assert.ErrorContains(t, err, "invalid exit code")
	})

	t.Run("missing sender is an error", func(t *testing.T) {
		_, err := h.vm.ApplyImplicitMessage(h.ctx, &types.Message{
			From:   secpAddress(t, "nobody"),
			To:     builtin.InitActorAddr,
			Value:  big.Zero(),
			Method: builtin.MethodSend,
		})
		require.Error(t, err)
		assert.ErrorContains(t, err, "not found")
	})
}

func TestApplyGenesisMessage(t *testing.T) {
	tf.UnitTest(t)

	h := newTestVM(t)
	alice := h.createAccount(secpAddress(t, "alice"), abi.NewTokenAmount(1_000_000_000_000))
	bobKey := secpAddress(t, "genesis bob")

	ret, err := h.vm.ApplyGenesisMessage(alice, bobKey, builtin.MethodSend, abi.NewTokenAmount(42), nil)
	require.NoError(t, err)
	assert.Equal(t, exitcode.Ok, ret.Receipt.ExitCode)
	assert.Equal(t, int64(0), ret.Receipt.GasUsed)

	idAddr, err := h.vm.State.LookupID(bobKey)
	require.NoError(t, err)
	assert.True(t, h.balance(idAddr).Equals(abi.NewTokenAmount(42)))

	// the vm flushed; the root must resolve to the same state
	root, err := h.vm.Flush(h.ctx)
	require.NoError(t, err)
	assert.NotEqual(t, cid.Undef, root)
}

func TestDeterministicExecution(t *testing.T) {
	tf.UnitTest(t)

	run := func() (cid.Cid, []types.MessageReceipt) {
		h := newTestVM(t)
		initial := abi.NewTokenAmount(1_000_000_000_000)
		alice := h.createAccount(secpAddress(t, "alice"), initial)
		bob := h.createAccount(secpAddress(t, "bob"), big.Zero())

		var receipts []types.MessageReceipt
		receipts = append(receipts, h.apply(newTransfer(alice, bob, 0, abi.NewTokenAmount(30))).Receipt)
		receipts = append(receipts, h.apply(newTransfer(alice, secpAddress(t, "carol"), 1, abi.NewTokenAmount(7))).Receipt)
		receipts = append(receipts, h.apply(newTransfer(alice, bob, 2, abi.NewTokenAmount(1))).Receipt)

		root, err := h.vm.Flush(h.ctx)
		require.NoError(t, err)
		return root, receipts
	}

	root1, receipts1 := run()
	root2, receipts2 := run()

	assert.Equal(t, root1, root2)
	assert.Equal(t, receipts1, receipts2)
}

func TestWasmActorInvocation(t *testing.T) {
	tf.UnitTest(t)

	h := newTestVM(t, func(o *VmOption) { o.Engine = testEngine(t) })
	alice := h.createAccount(secpAddress(t, "alice"), abi.NewTokenAmount(1_000_000_000_000))

	code := storeWasmCode(t, h.vm.bsstore, watEcho)
	receiver, err := address.NewIDAddress(900)
	require.NoError(t, err)
	require.NoError(t, h.vm.State.SetActor(h.ctx, receiver, &types.Actor{
		Code:    code,
		Head:    h.vm.emptyObject,
		Balance: big.Zero(),
	}))

	msg := newTransfer(alice, receiver, 0, abi.NewTokenAmount(7))
	msg.Method = abi.MethodNum(2)
	msg.GasLimit = 1_000_000_000

	ret := h.apply(msg)
	require.Equal(t, exitcode.Ok, ret.Receipt.ExitCode)
	assert.Empty(t, ret.Receipt.Return)
	assert.True(t, h.balance(receiver).Equals(abi.NewTokenAmount(7)))

	// instantiation was charged on top of inclusion and invocation
	codeSize, err := h.vm.bsstore.GetSize(h.ctx, code)
	require.NoError(t, err)
	assert.Greater(t, ret.Receipt.GasUsed, h.vm.pricelist.OnModuleInstantiation(codeSize).Total())
}

func TestWasmActorOutOfFuel(t *testing.T) {
	tf.UnitTest(t)

	h := newTestVM(t, func(o *VmOption) { o.Engine = testEngine(t) })
	initial := abi.NewTokenAmount(1_000_000_000_000)
	alice := h.createAccount(secpAddress(t, "alice"), initial)

	code := storeWasmCode(t, h.vm.bsstore, watSpin)
	receiver, err := address.NewIDAddress(901)
	require.NoError(t, err)
	require.NoError(t, h.vm.State.SetActor(h.ctx, receiver, &types.Actor{
		Code:    code,
		Head:    h.vm.emptyObject,
		Balance: big.Zero(),
	}))

	msg := newTransfer(alice, receiver, 0, abi.NewTokenAmount(7))
	msg.Method = abi.MethodNum(2)
	msg.GasLimit = 10_000_000

	ret := h.apply(msg)
	assert.Equal(t, exitcode.SysErrOutOfGas, ret.Receipt.ExitCode)

	// the guest burned its whole budget; only a sub-fuel-unit remainder
	// of the limit can be left over
	rate := h.vm.pricelist.ExecGasPerFuelUnit()
	assert.LessOrEqual(t, ret.Receipt.GasUsed, msg.GasLimit)
	assert.Greater(t, ret.Receipt.GasUsed, msg.GasLimit-rate)

	// the transferred value was rolled back with the rest of the frame
	assert.True(t, h.balance(receiver).IsZero())
	assert.True(t, h.balance(alice).Equals(big.Sub(initial, feesPaid(ret.OutPuts))))
}

func TestWasmActorFault(t *testing.T) {
	tf.UnitTest(t)

	h := newTestVM(t, func(o *VmOption) { o.Engine = testEngine(t) })
	alice := h.createAccount(secpAddress(t, "alice"), abi.NewTokenAmount(1_000_000_000_000))

	code := storeWasmCode(t, h.vm.bsstore, watUnreachable)
	receiver, err := address.NewIDAddress(902)
	require.NoError(t, err)
	require.NoError(t, h.vm.State.SetActor(h.ctx, receiver, &types.Actor{
		Code:    code,
		Head:    h.vm.emptyObject,
		Balance: big.Zero(),
	}))

	msg := newTransfer(alice, receiver, 0, abi.NewTokenAmount(7))
	msg.Method = abi.MethodNum(2)
	msg.GasLimit = 1_000_000_000

	ret := h.apply(msg)
	assert.Equal(t, engine.SysErrIllegalInstruction, ret.Receipt.ExitCode)
	assert.True(t, h.balance(receiver).IsZero())

	// the trap poisons neither the engine nor the module cache
	msg2 := newTransfer(alice, receiver, 1, abi.NewTokenAmount(7))
	msg2.Method = abi.MethodNum(2)
	msg2.GasLimit = 1_000_000_000
	ret2 := h.apply(msg2)
	assert.Equal(t, engine.SysErrIllegalInstruction, ret2.Receipt.ExitCode)
	assert.Equal(t, ret.Receipt.GasUsed, ret2.Receipt.GasUsed)
}
