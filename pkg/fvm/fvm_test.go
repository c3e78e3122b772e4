package fvm

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/filecoin-project/go-state-types/exitcode"
	"github.com/ipfs/go-cid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filecoin-project/go-fvm/pkg/constants"
	tf "github.com/filecoin-project/go-fvm/pkg/testhelpers/testflags"
	"github.com/filecoin-project/go-fvm/pkg/types"
	"github.com/filecoin-project/go-fvm/pkg/util/blockstoreutil"
	"github.com/filecoin-project/go-fvm/pkg/vm"
	"github.com/filecoin-project/go-fvm/pkg/vm/gas"
)

func testOpts(bs blockstoreutil.Blockstore) MachineOpts {
	return MachineOpts{
		NetworkVersion:   constants.TestNetworkVersion,
		BaseFee:          abi.NewTokenAmount(100),
		Epoch:            1,
		Timestamp:        1234,
		GasPriceSchedule: gas.NewPricesSchedule(),
		PRoot:            cid.Undef,
		Bsstore:          bs,
		SysCallsImpl:     vm.FakeSyscalls{},
	}
}

func mustSecpAddress(t *testing.T, seed string) address.Address {
	addr, err := address.NewSecp256k1Address([]byte(seed))
	require.NoError(t, err)
	return addr
}

func TestMachineFlushCommitsRoot(t *testing.T) {
	tf.UnitTest(t)
	ctx := context.Background()

	base := blockstoreutil.NewTemporarySync()
	m, err := NewMachine(ctx, testOpts(base))
	require.NoError(t, err)

	// nothing committed yet
	assert.Equal(t, cid.Undef, m.StateRoot())

	root, err := m.Flush(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, cid.Undef, root)
	assert.Equal(t, root, m.StateRoot())

	has, err := base.Has(ctx, root)
	require.NoError(t, err)
	assert.True(t, has, "committed root must be readable from the backing store")

	again, err := m.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, root, again)
}

func TestDebugMachineLeavesBackingStoreUntouched(t *testing.T) {
	tf.UnitTest(t)
	ctx := context.Background()

	base := blockstoreutil.NewTemporarySync()
	m, err := NewDebugMachine(ctx, testOpts(base))
	require.NoError(t, err)

	root, err := m.Flush(ctx)
	require.NoError(t, err)
	require.NotEqual(t, cid.Undef, root)

	has, err := base.Has(ctx, root)
	require.NoError(t, err)
	assert.False(t, has, "debug machine writes must stay in the overlay")
}

func TestApplyMessageMissingSenderIsPenalized(t *testing.T) {
	// serial: asserts on the process-wide applied-message counter
	tf.BadUnitTestWithSideEffects(t)
	ctx := context.Background()

	opts := testOpts(blockstoreutil.NewTemporarySync())
	m, err := NewMachine(ctx, opts)
	require.NoError(t, err)
	exec := m.NewExecutor()

	before := atomic.LoadUint64(&StatApplied)

	msg := &types.Message{
		From:       mustSecpAddress(t, "nobody home"),
		To:         mustSecpAddress(t, "receiver"),
		Value:      abi.NewTokenAmount(0),
		GasLimit:   10_000_000,
		GasFeeCap:  abi.NewTokenAmount(1),
		GasPremium: abi.NewTokenAmount(1),
	}

	ret, err := exec.ApplyMessage(ctx, msg)
	require.NoError(t, err)
	assert.Equal(t, exitcode.SysErrSenderInvalid, ret.Receipt.ExitCode)
	assert.Equal(t, int64(0), ret.Receipt.GasUsed)

	wantPenalty := big.Mul(opts.BaseFee, big.NewInt(msg.GasLimit))
	assert.Equal(t, wantPenalty, ret.OutPuts.MinerPenalty)

	assert.Equal(t, before+1, atomic.LoadUint64(&StatApplied))
}

func TestApplyMessageUnderpricedInclusion(t *testing.T) {
	tf.UnitTest(t)
	ctx := context.Background()

	vmi, err := NewVM(ctx, testOpts(blockstoreutil.NewTemporarySync()))
	require.NoError(t, err)

	// gas limit cannot even pay for the message bytes
	msg := &types.Message{
		From:       mustSecpAddress(t, "sender"),
		To:         mustSecpAddress(t, "receiver"),
		Value:      abi.NewTokenAmount(0),
		GasLimit:   1,
		GasFeeCap:  abi.NewTokenAmount(1),
		GasPremium: abi.NewTokenAmount(1),
	}

	ret, err := vmi.ApplyMessage(ctx, msg)
	require.NoError(t, err)
	assert.Equal(t, exitcode.SysErrOutOfGas, ret.Receipt.ExitCode)
	assert.Equal(t, int64(0), ret.Receipt.GasUsed)
	assert.True(t, ret.OutPuts.MinerPenalty.GreaterThan(big.Zero()),
		"inclusion penalty must still accrue to the miner")
}
