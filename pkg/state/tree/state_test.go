package tree

import (
	"context"
	"testing"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/builtin"
	"github.com/ipfs/go-cid"
	cbor "github.com/ipfs/go-ipld-cbor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tf "github.com/filecoin-project/go-fvm/pkg/testhelpers/testflags"
	"github.com/filecoin-project/go-fvm/pkg/types"
	"github.com/filecoin-project/go-fvm/pkg/vm/register"
)

func mustIDAddress(t *testing.T, id uint64) address.Address {
	a, err := address.NewIDAddress(id)
	require.NoError(t, err)
	return a
}

func testActor(t *testing.T) *types.Actor {
	head, err := cid.Decode("bafy2bzacecu7n7wbtogznrtuuvf73dsz7wasgyneqasksdblxupnyovmtwxxu")
	require.NoError(t, err)
	return &types.Actor{
		Code:    register.AccountActorCodeID,
		Head:    head,
		Balance: abi.NewTokenAmount(0),
	}
}

// installInitActor writes a genesis init actor so address resolution works.
func installInitActor(t *testing.T, st *State, cst cbor.IpldStore) {
	ias, err := register.ConstructInitState(&AdtStore{cst}, "gofvmnet")
	require.NoError(t, err)
	head, err := cst.Put(context.Background(), ias)
	require.NoError(t, err)
	require.NoError(t, st.SetActor(context.Background(), builtin.InitActorAddr, &types.Actor{
		Code:    register.InitActorCodeID,
		Head:    head,
		Balance: abi.NewTokenAmount(0),
	}))
}

func TestStatePutGet(t *testing.T) {
	tf.UnitTest(t)

	ctx := context.Background()

	cst := cbor.NewMemCborStore()
	tree := NewState(cst)

	addr1 := mustIDAddress(t, 100)
	addr2 := mustIDAddress(t, 101)
	require.NoError(t, tree.SetActor(ctx, addr1, testActor(t)))
	require.NoError(t, tree.SetActor(ctx, addr2, testActor(t)))

	require.NoError(t, tree.MutateActor(addr1, func(act1 *types.Actor) error {
		act1.IncrementSeqNum()
		return nil
	}))

	require.NoError(t, tree.MutateActor(addr2, func(act2 *types.Actor) error {
		act2.IncrementSeqNum()
		act2.IncrementSeqNum()
		return nil
	}))

	act1out, found, err := tree.GetActor(ctx, addr1)
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, uint64(1), act1out.Nonce)
	act2out, found, err := tree.GetActor(ctx, addr2)
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, uint64(2), act2out.Nonce)

	// now test it persists across recreation of tree
	tcid, err := tree.Flush(ctx)
	assert.NoError(t, err)

	tree2, err := LoadState(ctx, cst, tcid)
	assert.NoError(t, err)

	act1out2, found, err := tree2.GetActor(ctx, addr1)
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, uint64(1), act1out2.Nonce)
	act2out2, found, err := tree2.GetActor(ctx, addr2)
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, uint64(2), act2out2.Nonce)
}

func TestStateErrors(t *testing.T) {
	tf.UnitTest(t)
	ctx := context.Background()
	cst := cbor.NewMemCborStore()

	c, err := abi.CidBuilder.Sum([]byte("cats"))
	assert.NoError(t, err)

	tr2, err := LoadState(ctx, cst, c)
	assert.Error(t, err)
	assert.Nil(t, tr2)
}

func TestGetMissingActor(t *testing.T) {
	tf.UnitTest(t)

	ctx := context.Background()
	tree := NewState(cbor.NewMemCborStore())

	act, found, err := tree.GetActor(ctx, mustIDAddress(t, 100))
	assert.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, act)

	_, _, err = tree.GetActor(ctx, address.Undef)
	assert.Error(t, err)
}

func TestSnapshotRevert(t *testing.T) {
	tf.UnitTest(t)

	ctx := context.Background()
	tree := NewState(cbor.NewMemCborStore())

	addr1 := mustIDAddress(t, 100)
	addr2 := mustIDAddress(t, 101)
	require.NoError(t, tree.SetActor(ctx, addr1, testActor(t)))
	require.NoError(t, tree.SetActor(ctx, addr2, testActor(t)))

	require.NoError(t, tree.Snapshot(ctx))

	require.NoError(t, tree.MutateActor(addr1, func(act *types.Actor) error {
		act.Balance = abi.NewTokenAmount(42)
		return nil
	}))
	require.NoError(t, tree.DeleteActor(ctx, addr2))

	// the layer sees its own writes
	act, found, err := tree.GetActor(ctx, addr1)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, abi.NewTokenAmount(42), act.Balance)
	_, found, err = tree.GetActor(ctx, addr2)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, tree.Revert())
	tree.ClearSnapshot()

	// back to the pre-snapshot state
	act, found, err = tree.GetActor(ctx, addr1)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, abi.NewTokenAmount(0), act.Balance)
	_, found, err = tree.GetActor(ctx, addr2)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestSnapshotCommit(t *testing.T) {
	tf.UnitTest(t)

	ctx := context.Background()
	tree := NewState(cbor.NewMemCborStore())

	addr1 := mustIDAddress(t, 100)
	require.NoError(t, tree.SetActor(ctx, addr1, testActor(t)))

	require.NoError(t, tree.Snapshot(ctx))
	require.NoError(t, tree.MutateActor(addr1, func(act *types.Actor) error {
		act.Balance = abi.NewTokenAmount(7)
		return nil
	}))
	tree.ClearSnapshot()

	act, found, err := tree.GetActor(ctx, addr1)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, abi.NewTokenAmount(7), act.Balance)

	// committed writes survive a flush
	_, err = tree.Flush(ctx)
	require.NoError(t, err)
}

func TestFlushRejectsOpenSnapshots(t *testing.T) {
	tf.UnitTest(t)

	ctx := context.Background()
	tree := NewState(cbor.NewMemCborStore())

	require.NoError(t, tree.Snapshot(ctx))
	_, err := tree.Flush(ctx)
	assert.Error(t, err)

	tree.ClearSnapshot()
	_, err = tree.Flush(ctx)
	assert.NoError(t, err)
}

func TestLookupIDThroughInitActor(t *testing.T) {
	tf.UnitTest(t)

	ctx := context.Background()
	cst := cbor.NewMemCborStore()
	tree := NewState(cst)
	installInitActor(t, tree, cst)

	pubkey, err := address.NewSecp256k1Address([]byte("sender key"))
	require.NoError(t, err)

	// unmapped addresses do not resolve
	_, err = tree.LookupID(pubkey)
	assert.ErrorIs(t, err, types.ErrActorNotFound)

	idAddr, err := tree.RegisterNewAddress(pubkey)
	require.NoError(t, err)
	assert.Equal(t, mustIDAddress(t, register.FirstNonSingletonActorID), idAddr)

	resolved, err := tree.LookupID(pubkey)
	require.NoError(t, err)
	assert.Equal(t, idAddr, resolved)

	// actors stored through a pubkey address land under their ID
	require.NoError(t, tree.SetActor(ctx, pubkey, testActor(t)))
	act, found, err := tree.GetActor(ctx, idAddr)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, register.AccountActorCodeID, act.Code)

	// mappings persist across a flush and reload
	root, err := tree.Flush(ctx)
	require.NoError(t, err)
	tree2, err := LoadState(ctx, cst, root)
	require.NoError(t, err)
	resolved, err = tree2.LookupID(pubkey)
	require.NoError(t, err)
	assert.Equal(t, idAddr, resolved)
}

func TestDeleteActor(t *testing.T) {
	tf.UnitTest(t)

	ctx := context.Background()
	tree := NewState(cbor.NewMemCborStore())

	addr := mustIDAddress(t, 100)
	require.NoError(t, tree.SetActor(ctx, addr, testActor(t)))
	require.NoError(t, tree.DeleteActor(ctx, addr))

	_, found, err := tree.GetActor(ctx, addr)
	require.NoError(t, err)
	assert.False(t, found)

	// deleting an absent actor is an error
	err = tree.DeleteActor(ctx, mustIDAddress(t, 999))
	assert.ErrorIs(t, err, types.ErrActorNotFound)

	// the deletion is applied on flush
	root, err := tree.Flush(ctx)
	require.NoError(t, err)
	tree2, err := LoadState(ctx, tree.Store, root)
	require.NoError(t, err)
	_, found, err = tree2.GetActor(ctx, addr)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestForEach(t *testing.T) {
	tf.UnitTest(t)

	ctx := context.Background()
	tree := NewState(cbor.NewMemCborStore())

	want := map[address.Address]uint64{}
	for i := uint64(100); i < 110; i++ {
		a := mustIDAddress(t, i)
		act := testActor(t)
		act.Nonce = 1000 - i
		require.NoError(t, tree.SetActor(ctx, a, act))
		want[a] = act.Nonce
	}
	_, err := tree.Flush(ctx)
	require.NoError(t, err)

	got := map[address.Address]uint64{}
	err = tree.ForEach(func(key ActorKey, result *types.Actor) error {
		got[key] = result.Nonce
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
