package register

import (
	"context"
	"testing"

	"github.com/filecoin-project/go-address"
	"github.com/ipfs/go-cid"
	cbor "github.com/ipfs/go-ipld-cbor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tf "github.com/filecoin-project/go-fvm/pkg/testhelpers/testflags"
)

type testStore struct {
	ctx context.Context
	cbor.IpldStore
}

func (s *testStore) Context() context.Context { return s.ctx }

func newTestStore(ctx context.Context) *testStore {
	return &testStore{ctx: ctx, IpldStore: cbor.NewMemCborStore()}
}

func TestInitStateAddressMap(t *testing.T) {
	tf.UnitTest(t)

	ctx := context.Background()
	store := newTestStore(ctx)

	st, err := ConstructInitState(store, "gofvmnet")
	require.NoError(t, err)
	assert.Equal(t, "gofvmnet", st.NetworkName)

	addr1, err := address.NewSecp256k1Address([]byte("key one"))
	require.NoError(t, err)
	addr2, err := address.NewSecp256k1Address([]byte("key two"))
	require.NoError(t, err)

	// nothing mapped yet
	_, found, err := st.ResolveAddress(store, addr1)
	require.NoError(t, err)
	assert.False(t, found)

	// IDs are handed out sequentially from the first free ID
	id1, err := st.MapAddressToNewID(store, addr1)
	require.NoError(t, err)
	id2, err := st.MapAddressToNewID(store, addr2)
	require.NoError(t, err)

	expect1, err := address.NewIDAddress(FirstNonSingletonActorID)
	require.NoError(t, err)
	expect2, err := address.NewIDAddress(FirstNonSingletonActorID + 1)
	require.NoError(t, err)
	assert.Equal(t, expect1, id1)
	assert.Equal(t, expect2, id2)

	resolved, found, err := st.ResolveAddress(store, addr1)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, id1, resolved)

	// ID addresses resolve to themselves
	resolved, found, err = st.ResolveAddress(store, expect2)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, expect2, resolved)
}

func TestInitStatePersists(t *testing.T) {
	tf.UnitTest(t)

	ctx := context.Background()
	store := newTestStore(ctx)

	st, err := ConstructInitState(store, "gofvmnet")
	require.NoError(t, err)

	addr, err := address.NewSecp256k1Address([]byte("persistent key"))
	require.NoError(t, err)
	idAddr, err := st.MapAddressToNewID(store, addr)
	require.NoError(t, err)

	c, err := store.Put(ctx, st)
	require.NoError(t, err)

	var loaded InitState
	require.NoError(t, store.Get(ctx, c, &loaded))
	assert.Equal(t, st.NextID, loaded.NextID)
	assert.Equal(t, st.NetworkName, loaded.NetworkName)

	resolved, found, err := loaded.ResolveAddress(store, addr)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, idAddr, resolved)
}

func TestActorCodes(t *testing.T) {
	tf.UnitTest(t)

	for _, code := range []cid.Cid{SystemActorCodeID, InitActorCodeID, AccountActorCodeID} {
		assert.True(t, IsBuiltinActor(code))
		assert.NotEqual(t, "<unknown>", ActorNameByCode(code))
	}

	assert.True(t, IsSingletonActor(SystemActorCodeID))
	assert.True(t, IsSingletonActor(InitActorCodeID))
	assert.False(t, IsSingletonActor(AccountActorCodeID))
	assert.True(t, IsAccountActor(AccountActorCodeID))

	wasmCode, err := cid.Decode("bafy2bzacecu7n7wbtogznrtuuvf73dsz7wasgyneqasksdblxupnyovmtwxxu")
	require.NoError(t, err)
	assert.False(t, IsBuiltinActor(wasmCode))

	// sandboxed code may be exec'd, native singletons and accounts may not
	assert.True(t, canExec(wasmCode))
	assert.False(t, canExec(InitActorCodeID))
	assert.False(t, canExec(AccountActorCodeID))
}

func TestDefaultActorsCoverNativeCodes(t *testing.T) {
	tf.UnitTest(t)

	loader := GetDefaultActors()
	for _, code := range []cid.Cid{SystemActorCodeID, InitActorCodeID, AccountActorCodeID} {
		assert.True(t, loader.HasCode(code))
		actor, err := loader.GetVMActor(code)
		require.NoError(t, err)
		assert.Equal(t, code, actor.Code())
	}
}
