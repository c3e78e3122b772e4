package vmcontext

import (
	"errors"
	"testing"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/filecoin-project/go-state-types/builtin"
	acrypto "github.com/filecoin-project/go-state-types/crypto"
	"github.com/filecoin-project/go-state-types/exitcode"
	"github.com/filecoin-project/go-state-types/network"
	"github.com/ipfs/go-cid"
	cbor "github.com/ipfs/go-ipld-cbor"
	"github.com/minio/blake2b-simd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filecoin-project/go-fvm/pkg/constants"
	th "github.com/filecoin-project/go-fvm/pkg/testhelpers"
	tf "github.com/filecoin-project/go-fvm/pkg/testhelpers/testflags"
	"github.com/filecoin-project/go-fvm/pkg/types"
	"github.com/filecoin-project/go-fvm/pkg/vm/aerrors"
	"github.com/filecoin-project/go-fvm/pkg/vm/gas"
	"github.com/filecoin-project/go-fvm/pkg/vm/register"
	"github.com/filecoin-project/go-fvm/pkg/vm/runtime"
)

// newFrame builds a bare invocation frame the way applyMessage would,
// skipping the sender checks. The caller wires toID/toActor as needed.
func (h *testVM) newFrame(msg VmMessage, gasLimit int64) *invocationContext {
	t := h.t
	fromID, err := h.vm.State.LookupID(msg.From)
	require.NoError(t, err)
	id, err := address.IDFromAddress(fromID)
	require.NoError(t, err)
	msg.From = fromID

	gasTank := gas.NewGasTracker(gasLimit)
	gasBsstore := &GasChargeBlockStore{
		inner:     h.vm.bsstore,
		pricelist: h.vm.pricelist,
		gasTank:   gasTank,
	}
	cst := cbor.NewCborStore(gasBsstore)
	topLevel := &topLevelContext{
		originatorStableAddress: msg.From,
		originatorID:            abi.ActorID(id),
		originatorCallSeq:       0,
	}
	frame := newInvocationContext(h.vm, cst, topLevel, msg, gasTank, h.vm.vmOption.Rnd, nil)
	frame.callerID = abi.ActorID(id)
	return &frame
}

func systemFrame(h *testVM, gasLimit int64) *invocationContext {
	return h.newFrame(VmMessage{
		From:   builtin.SystemActorAddr,
		To:     builtin.SystemActorAddr,
		Value:  big.Zero(),
		Method: builtin.MethodSend,
	}, gasLimit)
}

func TestKernelMessageContext(t *testing.T) {
	tf.UnitTest(t)

	h := newTestVM(t)
	alice := h.createAccount(secpAddress(t, "alice"), abi.NewTokenAmount(500))
	aliceID, err := address.IDFromAddress(alice)
	require.NoError(t, err)

	frame := h.newFrame(VmMessage{
		From:   alice,
		To:     alice,
		Value:  abi.NewTokenAmount(11),
		Method: abi.MethodNum(3),
	}, 1_000_000)
	frame.toID = abi.ActorID(aliceID)

	assert.Equal(t, abi.ActorID(aliceID), frame.MsgCaller())
	assert.Equal(t, abi.ActorID(aliceID), frame.MsgOrigin())
	assert.Equal(t, abi.ActorID(aliceID), frame.MsgReceiver())
	assert.Equal(t, abi.MethodNum(3), frame.MsgMethodNumber())
	assert.True(t, frame.MsgValueReceived().Equals(abi.NewTokenAmount(11)))
	assert.Equal(t, uint64(0), frame.MsgNonce())

	assert.Equal(t, abi.ChainEpoch(5), frame.NetworkEpoch())
	assert.Equal(t, constants.TestNetworkVersion, frame.NetworkVersion())
	assert.True(t, frame.NetworkBaseFee().Equals(abi.NewTokenAmount(100)))
	assert.Equal(t, uint64(1234), frame.NetworkTimestamp())
}

func TestKernelBlockOps(t *testing.T) {
	tf.UnitTest(t)

	h := newTestVM(t)
	frame := systemFrame(h, 10_000_000)

	data := []byte("block data")
	id, err := frame.BlockCreate(uint64(cid.DagCBOR), data)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), id)

	stat, err := frame.BlockStat(id)
	require.NoError(t, err)
	assert.Equal(t, uint64(cid.DagCBOR), stat.Codec)
	assert.Equal(t, uint32(len(data)), stat.Size)

	buf := make([]byte, 4)
	n, err := frame.BlockRead(id, 6, buf)
	require.NoError(t, err)
	assert.Equal(t, uint32(4), n)
	assert.Equal(t, []byte("data"), buf)

	var serr *runtime.SyscallError

	_, err = frame.BlockRead(id, uint32(len(data))+1, buf)
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, runtime.ErrIllegalArgument, serr.Number)

	_, err = frame.BlockCreate(uint64(cid.DagProtobuf), data)
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, runtime.ErrIllegalCodec, serr.Number)

	_, err = frame.BlockStat(99)
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, runtime.ErrInvalidHandle, serr.Number)

	// link the block and reopen it through the store
	linked, err := frame.BlockLink(id, uint64(constants.DefaultHashFunction), 32)
	require.NoError(t, err)
	opened, openedStat, err := frame.BlockOpen(linked)
	require.NoError(t, err)
	assert.Equal(t, stat, openedStat)

	content := make([]byte, openedStat.Size)
	_, err = frame.BlockRead(opened, 0, content)
	require.NoError(t, err)
	assert.Equal(t, data, content)

	// only blake2b-256 cids may be linked; 0x12 is sha2-256
	_, err = frame.BlockLink(id, 0x12, 32)
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, runtime.ErrIllegalCid, serr.Number)

	missing, err := constants.DefaultCidBuilder.Sum([]byte("not in the store"))
	require.NoError(t, err)
	_, _, err = frame.BlockOpen(missing)
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, runtime.ErrNotFound, serr.Number)
}

func TestKernelSelfOps(t *testing.T) {
	tf.UnitTest(t)

	h := newTestVM(t)
	alice := h.createAccount(secpAddress(t, "alice"), abi.NewTokenAmount(500))
	aliceID, err := address.IDFromAddress(alice)
	require.NoError(t, err)

	frame := h.newFrame(VmMessage{
		From:   alice,
		To:     alice,
		Value:  big.Zero(),
		Method: builtin.MethodSend,
	}, 10_000_000)
	frame.toID = abi.ActorID(aliceID)
	frame.toActor = h.actor(alice)

	head, err := frame.StateRoot()
	require.NoError(t, err)
	assert.Equal(t, h.actor(alice).Head, head)

	bal, err := frame.CurrentBalance()
	require.NoError(t, err)
	assert.True(t, bal.Equals(abi.NewTokenAmount(500)))

	// a root that is not in the reachable state may not become the head
	var serr *runtime.SyscallError
	bogus, err := constants.DefaultCidBuilder.Sum([]byte("unreachable root"))
	require.NoError(t, err)
	err = frame.SetStateRoot(bogus)
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, runtime.ErrNotFound, serr.Number)

	newHead, err := h.vm.ContextStore().Put(h.ctx, &register.AccountState{Address: secpAddress(t, "rebound")})
	require.NoError(t, err)
	require.NoError(t, frame.SetStateRoot(newHead))
	assert.Equal(t, newHead, h.actor(alice).Head)

	got, err := frame.StateRoot()
	require.NoError(t, err)
	assert.Equal(t, newHead, got)
}

func TestKernelActorOps(t *testing.T) {
	tf.UnitTest(t)

	h := newTestVM(t)
	aliceKey := secpAddress(t, "alice")
	alice := h.createAccount(aliceKey, abi.NewTokenAmount(500))
	aliceID, err := address.IDFromAddress(alice)
	require.NoError(t, err)

	frame := systemFrame(h, 10_000_000)
	var serr *runtime.SyscallError

	id, err := frame.ResolveAddress(aliceKey)
	require.NoError(t, err)
	assert.Equal(t, abi.ActorID(aliceID), id)

	_, err = frame.ResolveAddress(secpAddress(t, "stranger"))
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, runtime.ErrNotFound, serr.Number)

	code, err := frame.GetActorCodeCID(abi.ActorID(aliceID))
	require.NoError(t, err)
	assert.Equal(t, register.AccountActorCodeID, code)

	_, err = frame.GetActorCodeCID(abi.ActorID(4242))
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, runtime.ErrNotFound, serr.Number)

	bal, err := frame.BalanceOf(abi.ActorID(aliceID))
	require.NoError(t, err)
	assert.True(t, bal.Equals(abi.NewTokenAmount(500)))

	assert.True(t, frame.IsBuiltinActor(register.AccountActorCodeID))
	assert.False(t, frame.IsBuiltinActor(h.vm.emptyObject))

	// direct creation is reserved to the init actor
	err = frame.CreateActor(register.AccountActorCodeID, abi.ActorID(950))
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, runtime.ErrForbidden, serr.Number)

	initFrame := h.newFrame(VmMessage{
		From:   builtin.SystemActorAddr,
		To:     builtin.InitActorAddr,
		Value:  big.Zero(),
		Method: builtin.MethodSend,
	}, 10_000_000)
	require.NoError(t, initFrame.CreateActor(register.AccountActorCodeID, abi.ActorID(950)))

	created, err := address.NewIDAddress(950)
	require.NoError(t, err)
	act := h.actor(created)
	assert.Equal(t, register.AccountActorCodeID, act.Code)
	assert.True(t, act.Balance.IsZero())

	// the id is now taken
	err = initFrame.CreateActor(register.AccountActorCodeID, abi.ActorID(950))
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, runtime.ErrIllegalArgument, serr.Number)
}

func TestKernelSendDepthLimit(t *testing.T) {
	tf.UnitTest(t)

	t.Run("recoverable error number", func(t *testing.T) {
		h := newTestVM(t)
		alice := h.createAccount(secpAddress(t, "alice"), abi.NewTokenAmount(500))

		frame := h.newFrame(VmMessage{
			From:   alice,
			To:     alice,
			Value:  big.Zero(),
			Method: builtin.MethodSend,
		}, 1_000_000)
		frame.depth = MaxCallDepth

		_, err := frame.Send(alice, builtin.MethodSend, UnitBlockID, big.Zero())
		require.Error(t, err)
		var serr *runtime.SyscallError
		require.ErrorAs(t, err, &serr)
		assert.Equal(t, runtime.ErrLimitExceeded, serr.Number)
	})

	t.Run("aborts on legacy networks", func(t *testing.T) {
		h := newTestVM(t, func(o *VmOption) { o.NetworkVersion = network.Version15 })
		alice := h.createAccount(secpAddress(t, "alice"), abi.NewTokenAmount(500))

		frame := h.newFrame(VmMessage{
			From:   alice,
			To:     alice,
			Value:  big.Zero(),
			Method: builtin.MethodSend,
		}, 1_000_000)
		frame.depth = MaxCallDepth

		_, err := frame.Send(alice, builtin.MethodSend, UnitBlockID, big.Zero())
		require.Error(t, err)
		var serr *runtime.SyscallError
		assert.False(t, errors.As(err, &serr))
		var aerr aerrors.ActorError
		require.ErrorAs(t, err, &aerr)
		assert.Equal(t, exitcode.SysErrForbidden, aerr.RetCode())
	})
}

func TestKernelNestedSend(t *testing.T) {
	tf.UnitTest(t)

	h := newTestVM(t)
	alice := h.createAccount(secpAddress(t, "alice"), abi.NewTokenAmount(500))
	bob := h.createAccount(secpAddress(t, "bob"), big.Zero())

	frame := h.newFrame(VmMessage{
		From:   alice,
		To:     alice,
		Value:  big.Zero(),
		Method: builtin.MethodSend,
	}, 10_000_000)

	res, err := frame.Send(bob, builtin.MethodSend, UnitBlockID, abi.NewTokenAmount(12))
	require.NoError(t, err)
	assert.Equal(t, exitcode.Ok, res.ExitCode)
	assert.Equal(t, UnitBlockID, res.ReturnID)
	assert.True(t, h.balance(bob).Equals(abi.NewTokenAmount(12)))

	// a failing nested send reports its exit code instead of failing the frame
	ghost, err := address.NewIDAddress(9999)
	require.NoError(t, err)
	res, err = frame.Send(ghost, builtin.MethodSend, UnitBlockID, abi.NewTokenAmount(1))
	require.NoError(t, err)
	assert.Equal(t, exitcode.SysErrInvalidReceiver, res.ExitCode)

	// the failed branch was reverted, the earlier one kept
	assert.True(t, h.balance(bob).Equals(abi.NewTokenAmount(12)))
	assert.True(t, h.balance(alice).Equals(abi.NewTokenAmount(488)))
}

func TestKernelGasAccounting(t *testing.T) {
	tf.UnitTest(t)

	h := newTestVM(t)
	frame := systemFrame(h, 1000)
	rate := h.vm.pricelist.ExecGasPerFuelUnit()

	require.NoError(t, frame.GasCharge("OnTest", 400))
	assert.Equal(t, int64(600), frame.GasAvailable())
	assert.Equal(t, uint64(600)/uint64(rate), frame.FuelBudget())

	require.NoError(t, frame.SettleFuel(10))
	assert.Equal(t, int64(600)-10*rate, frame.GasAvailable())

	err := frame.GasCharge("OnTest", 10_000)
	require.Error(t, err)
	var aerr aerrors.ActorError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, exitcode.SysErrOutOfGas, aerr.RetCode())

	// the failed charge consumed the remaining allowance
	assert.Equal(t, int64(0), frame.GasAvailable())
	assert.Equal(t, uint64(0), frame.FuelBudget())
	assert.Equal(t, frame.gasTank.GasAvailable, frame.gasTank.GasUsed)
}

func TestKernelSettleFuelExhaustion(t *testing.T) {
	tf.UnitTest(t)

	h := newTestVM(t)
	frame := systemFrame(h, 100)

	err := frame.SettleFuel(1000)
	require.Error(t, err)
	var aerr aerrors.ActorError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, exitcode.SysErrOutOfGas, aerr.RetCode())
	assert.Equal(t, int64(0), frame.GasAvailable())
}

func TestKernelEmitEvent(t *testing.T) {
	tf.UnitTest(t)

	h := newTestVM(t)
	frame := systemFrame(h, 10_000_000)
	frame.toID = abi.ActorID(100)

	before := frame.gasTank.GasUsed
	evt := &types.Event{Entries: []types.EventEntry{{
		Flags: types.EventFlagIndexedKey,
		Key:   "k",
		Codec: uint64(cid.Raw),
		Value: []byte("v"),
	}}}
	require.NoError(t, frame.EmitEvent(evt))

	require.Len(t, frame.events, 1)
	assert.Equal(t, abi.ActorID(100), frame.events[0].Emitter)
	assert.Greater(t, frame.gasTank.GasUsed, before)

	root, err := h.vm.commitEvents(frame.events)
	require.NoError(t, err)
	require.NotNil(t, root)

	// the same events commit to the same root
	again, err := h.vm.commitEvents(frame.events)
	require.NoError(t, err)
	assert.Equal(t, root, again)

	none, err := h.vm.commitEvents(nil)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestKernelRandomness(t *testing.T) {
	tf.UnitTest(t)

	h := newTestVM(t)
	frame := systemFrame(h, 10_000_000)

	tag := int64(acrypto.DomainSeparationTag_TicketProduction)
	entropy := []byte("entropy")

	beacon, err := frame.GetBeaconRandomness(tag, 3, entropy)
	require.NoError(t, err)
	assert.Equal(t, derivedRandomness(acrypto.DomainSeparationTag_TicketProduction, 3, entropy), beacon)

	chain, err := frame.GetChainRandomness(tag, 4, entropy)
	require.NoError(t, err)
	assert.Equal(t, derivedRandomness(acrypto.DomainSeparationTag_TicketProduction, 4, entropy), chain)
}

func TestKernelVerifySignature(t *testing.T) {
	tf.UnitTest(t)

	h := newTestVM(t)
	frame := systemFrame(h, 10_000_000)

	signer, _ := th.NewMockSignersAndKeyInfo(1)
	worker := signer.Addresses[0]
	plaintext := []byte("authenticated payload")

	sig, err := signer.SignBytes(h.ctx, plaintext, worker)
	require.NoError(t, err)
	raw, err := sig.MarshalBinary()
	require.NoError(t, err)

	ok, err := frame.VerifySignature(raw, worker, plaintext)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = frame.VerifySignature(raw, worker, []byte("tampered"))
	require.NoError(t, err)
	assert.False(t, ok)

	var serr *runtime.SyscallError
	_, err = frame.VerifySignature([]byte{0xff}, worker, plaintext)
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, runtime.ErrIllegalArgument, serr.Number)
}

func TestKernelHashBlake2b(t *testing.T) {
	tf.UnitTest(t)

	h := newTestVM(t)
	frame := systemFrame(h, 10_000_000)

	before := frame.gasTank.GasUsed
	digest, err := frame.HashBlake2b([]byte("payload"))
	require.NoError(t, err)
	assert.Equal(t, blake2b.Sum256([]byte("payload")), digest)
	assert.Greater(t, frame.gasTank.GasUsed, before)
}
