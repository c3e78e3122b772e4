package types

import (
	"bytes"
	"testing"

	"github.com/filecoin-project/go-state-types/abi"
	"github.com/ipfs/go-cid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tf "github.com/filecoin-project/go-fvm/pkg/testhelpers/testflags"
)

func TestActorEmpty(t *testing.T) {
	tf.UnitTest(t)

	code, err := cid.Decode("bafy2bzaceakzxxsce5w6vnv77kkcon4lcotvbcym5dfz2jwxxsy5wva3u2kzc")
	require.NoError(t, err)

	assert.True(t, (&Actor{}).Empty())
	assert.False(t, NewActor(code, abi.NewTokenAmount(0), cid.Undef).Empty())
}

func TestActorIncrementSeqNum(t *testing.T) {
	tf.UnitTest(t)

	actor := NewActor(cid.Undef, abi.NewTokenAmount(0), cid.Undef)
	for i := 0; i < 10; i++ {
		actor.IncrementSeqNum()
	}
	require.Equal(t, uint64(10), actor.Nonce)
}

func TestActorRoundTrip(t *testing.T) {
	tf.UnitTest(t)

	code, err := cid.Decode("bafy2bzaceakzxxsce5w6vnv77kkcon4lcotvbcym5dfz2jwxxsy5wva3u2kzc")
	require.NoError(t, err)

	before := Actor{
		Code:    code,
		Head:    code,
		Nonce:   42,
		Balance: abi.NewTokenAmount(1234),
	}

	var buf bytes.Buffer
	require.NoError(t, before.MarshalCBOR(&buf))

	var after Actor
	require.NoError(t, after.UnmarshalCBOR(&buf))
	assert.Equal(t, before, after)
}
