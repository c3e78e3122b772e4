package consensusfault

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	fbig "github.com/filecoin-project/go-state-types/big"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	th "github.com/filecoin-project/go-fvm/pkg/testhelpers"
	tf "github.com/filecoin-project/go-fvm/pkg/testhelpers/testflags"
	"github.com/filecoin-project/go-fvm/pkg/types"
	"github.com/filecoin-project/go-fvm/pkg/vm/runtime"
)

type identityStateView struct{}

func (identityStateView) ResolveToDeterministicAddress(_ context.Context, a address.Address) (address.Address, error) {
	return a, nil
}

func makeHeader(t *testing.T, miner address.Address, height abi.ChainEpoch, parents types.TipSetKey, entropy byte) *types.BlockHeader {
	return &types.BlockHeader{
		Miner:                 miner,
		Ticket:                types.Ticket{VRFProof: []byte{entropy}},
		Parents:               parents,
		ParentWeight:          fbig.NewInt(100),
		Height:                height,
		ParentStateRoot:       types.CidFromString(t, "state"),
		ParentMessageReceipts: types.CidFromString(t, "receipts"),
		Messages:              types.CidFromString(t, "messages"),
		Timestamp:             uint64(height) * 30,
		ParentBaseFee:         abi.NewTokenAmount(100),
	}
}

func signHeader(t *testing.T, blk *types.BlockHeader, signer th.MockSigner, worker address.Address) {
	sig, err := signer.SignBytes(context.Background(), blk.SignatureData(), worker)
	require.NoError(t, err)
	blk.BlockSig = &sig
}

func serializeHeader(t *testing.T, blk *types.BlockHeader) []byte {
	buf := new(bytes.Buffer)
	require.NoError(t, blk.MarshalCBOR(buf))
	return buf.Bytes()
}

func TestConsensusFaultChecker(t *testing.T) {
	tf.UnitTest(t)
	ctx := context.Background()

	signer, _ := th.NewMockSignersAndKeyInfo(2)
	worker := signer.Addresses[0]
	otherKey := signer.Addresses[1]
	miner := th.RequireIDAddress(t, 100)
	otherMiner := th.RequireIDAddress(t, 101)

	checker := NewFaultChecker(func(_ context.Context, m address.Address, _ abi.ChainEpoch) (address.Address, error) {
		if m != miner {
			return address.Undef, fmt.Errorf("unknown miner %s", m)
		}
		return worker, nil
	})
	view := identityStateView{}

	parents := types.NewTipSetKey(types.CidFromString(t, "parent1"), types.CidFromString(t, "parent2"))
	otherParents := types.NewTipSetKey(types.CidFromString(t, "parent3"))

	t.Run("identical blocks are no fault", func(t *testing.T) {
		blk := makeHeader(t, miner, 10, parents, 1)
		signHeader(t, blk, signer, worker)
		raw := serializeHeader(t, blk)

		fault, err := checker.VerifyConsensusFault(ctx, raw, raw, nil, view)
		assert.Nil(t, fault)
		assert.ErrorContains(t, err, "blocks identical")
	})

	t.Run("different miners are no fault", func(t *testing.T) {
		b1 := makeHeader(t, miner, 10, parents, 1)
		b2 := makeHeader(t, otherMiner, 10, parents, 2)
		signHeader(t, b1, signer, worker)
		signHeader(t, b2, signer, worker)

		fault, err := checker.VerifyConsensusFault(ctx, serializeHeader(t, b1), serializeHeader(t, b2), nil, view)
		assert.Nil(t, fault)
		assert.ErrorContains(t, err, "not mined by same miner")
	})

	t.Run("first block higher than second is no fault", func(t *testing.T) {
		b1 := makeHeader(t, miner, 11, parents, 1)
		b2 := makeHeader(t, miner, 10, otherParents, 2)
		signHeader(t, b1, signer, worker)
		signHeader(t, b2, signer, worker)

		fault, err := checker.VerifyConsensusFault(ctx, serializeHeader(t, b1), serializeHeader(t, b2), nil, view)
		assert.Nil(t, fault)
		assert.ErrorContains(t, err, "higher height")
	})

	t.Run("double-fork mining fault", func(t *testing.T) {
		b1 := makeHeader(t, miner, 10, parents, 1)
		b2 := makeHeader(t, miner, 10, otherParents, 2)
		signHeader(t, b1, signer, worker)
		signHeader(t, b2, signer, worker)

		fault, err := checker.VerifyConsensusFault(ctx, serializeHeader(t, b1), serializeHeader(t, b2), nil, view)
		require.NoError(t, err)
		require.NotNil(t, fault)
		assert.Equal(t, runtime.ConsensusFaultDoubleForkMining, fault.Type)
		assert.Equal(t, miner, fault.Target)
		assert.Equal(t, abi.ChainEpoch(10), fault.Epoch)
	})

	t.Run("time-offset mining fault", func(t *testing.T) {
		b1 := makeHeader(t, miner, 10, parents, 1)
		b2 := makeHeader(t, miner, 11, parents, 2)
		signHeader(t, b1, signer, worker)
		signHeader(t, b2, signer, worker)

		fault, err := checker.VerifyConsensusFault(ctx, serializeHeader(t, b1), serializeHeader(t, b2), nil, view)
		require.NoError(t, err)
		require.NotNil(t, fault)
		assert.Equal(t, runtime.ConsensusFaultTimeOffsetMining, fault.Type)
		assert.Equal(t, abi.ChainEpoch(11), fault.Epoch)
	})

	t.Run("parent-grinding fault", func(t *testing.T) {
		// b3 is b1's sibling; b2 builds on b3 alone, omitting b1.
		b1 := makeHeader(t, miner, 10, parents, 1)
		b3 := makeHeader(t, otherMiner, 10, parents, 3)
		b2 := makeHeader(t, miner, 11, types.NewTipSetKey(b3.Cid()), 2)
		signHeader(t, b1, signer, worker)
		signHeader(t, b2, signer, worker)

		fault, err := checker.VerifyConsensusFault(ctx, serializeHeader(t, b1), serializeHeader(t, b2), serializeHeader(t, b3), view)
		require.NoError(t, err)
		require.NotNil(t, fault)
		assert.Equal(t, runtime.ConsensusFaultParentGrinding, fault.Type)
		assert.Equal(t, abi.ChainEpoch(11), fault.Epoch)
	})

	t.Run("unrelated blocks are no fault", func(t *testing.T) {
		b1 := makeHeader(t, miner, 10, parents, 1)
		b2 := makeHeader(t, miner, 11, otherParents, 2)
		signHeader(t, b1, signer, worker)
		signHeader(t, b2, signer, worker)

		fault, err := checker.VerifyConsensusFault(ctx, serializeHeader(t, b1), serializeHeader(t, b2), nil, view)
		assert.Nil(t, fault)
		assert.ErrorContains(t, err, "not faulty")
	})

	t.Run("missing signature is no fault", func(t *testing.T) {
		b1 := makeHeader(t, miner, 10, parents, 1)
		b2 := makeHeader(t, miner, 10, otherParents, 2)
		signHeader(t, b1, signer, worker)
		// b2 left unsigned

		fault, err := checker.VerifyConsensusFault(ctx, serializeHeader(t, b1), serializeHeader(t, b2), nil, view)
		assert.Nil(t, fault)
		assert.ErrorContains(t, err, "nil signature")
	})

	t.Run("signature by wrong worker is no fault", func(t *testing.T) {
		b1 := makeHeader(t, miner, 10, parents, 1)
		b2 := makeHeader(t, miner, 10, otherParents, 2)
		signHeader(t, b1, signer, otherKey)
		signHeader(t, b2, signer, worker)

		fault, err := checker.VerifyConsensusFault(ctx, serializeHeader(t, b1), serializeHeader(t, b2), nil, view)
		assert.Nil(t, fault)
		assert.ErrorContains(t, err, "signature invalid")
	})

	t.Run("garbage input is no fault", func(t *testing.T) {
		blk := makeHeader(t, miner, 10, parents, 1)
		signHeader(t, blk, signer, worker)

		fault, err := checker.VerifyConsensusFault(ctx, []byte{0x1, 0x2, 0x3}, serializeHeader(t, blk), nil, view)
		assert.Nil(t, fault)
		assert.ErrorContains(t, err, "failed to decode")
	})
}
