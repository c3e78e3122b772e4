package state

import (
	"context"
	"fmt"
	"testing"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/builtin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filecoin-project/go-fvm/pkg/crypto"
	th "github.com/filecoin-project/go-fvm/pkg/testhelpers"
	tf "github.com/filecoin-project/go-fvm/pkg/testhelpers/testflags"
	"github.com/filecoin-project/go-fvm/pkg/types"
)

type fakeStateView struct {
	keys map[address.Address]address.Address
}

func (f *fakeStateView) ResolveToDeterministicAddress(_ context.Context, a address.Address) (address.Address, error) {
	if a.Protocol() == address.SECP256K1 || a.Protocol() == address.BLS {
		return a, nil
	}
	resolved, ok := f.keys[a]
	if !ok {
		return address.Undef, fmt.Errorf("not found")
	}
	return resolved, nil
}

func TestSignMessageOk(t *testing.T) {
	tf.UnitTest(t)
	ctx := context.Background()

	ms, kis := th.NewMockSignersAndKeyInfo(1)
	keyAddr, err := kis[0].Address()
	require.NoError(t, err)

	t.Run("no resolution", func(t *testing.T) {
		v := NewSignatureValidator(&fakeStateView{}) // No resolution needed.
		msg := types.NewMeteredMessage(keyAddr, keyAddr, 1, abi.NewTokenAmount(0), builtin.MethodSend, nil, abi.NewTokenAmount(0), abi.NewTokenAmount(0), 1)
		smsg, err := types.NewSignedMessage(ctx, *msg, ms)
		require.NoError(t, err)
		assert.NoError(t, v.ValidateMessageSignature(ctx, smsg))
	})
	t.Run("resolution required", func(t *testing.T) {
		idAddress := th.RequireIDAddress(t, 1)
		// Use ID address in message but sign with corresponding key address.
		state := &fakeStateView{keys: map[address.Address]address.Address{
			idAddress: keyAddr,
		}}
		v := NewSignatureValidator(state)
		msg := types.NewMeteredMessage(idAddress, idAddress, 1, abi.NewTokenAmount(0), builtin.MethodSend, nil, abi.NewTokenAmount(0), abi.NewTokenAmount(0), 1)
		sig, err := ms.SignBytes(ctx, msg.Cid().Bytes(), keyAddr)
		require.NoError(t, err)
		smsg := &types.SignedMessage{
			Message:   *msg,
			Signature: sig,
		}

		assert.NoError(t, v.ValidateMessageSignature(ctx, smsg))
	})
}

// Signature is valid but signer does not match From Address.
func TestBadFrom(t *testing.T) {
	tf.UnitTest(t)
	ctx := context.Background()

	signer, kis := th.NewMockSignersAndKeyInfo(2)
	keyAddr, err := kis[0].Address()
	require.NoError(t, err)
	otherAddr, err := kis[1].Address()
	require.NoError(t, err)

	t.Run("no resolution", func(t *testing.T) {
		v := NewSignatureValidator(&fakeStateView{})

		// Can't use NewSignedMessage constructor as it always signs with msg.From.
		msg := types.NewMeteredMessage(keyAddr, keyAddr, 1, abi.NewTokenAmount(0), builtin.MethodSend, nil, abi.NewTokenAmount(0), abi.NewTokenAmount(0), 1)
		sig, err := signer.SignBytes(ctx, msg.Cid().Bytes(), otherAddr) // sign with addr != msg.From
		require.NoError(t, err)
		smsg := &types.SignedMessage{
			Message:   *msg,
			Signature: sig,
		}
		assert.Error(t, v.ValidateMessageSignature(ctx, smsg))
	})
	t.Run("resolution required", func(t *testing.T) {
		idAddress := th.RequireIDAddress(t, 1)
		state := &fakeStateView{keys: map[address.Address]address.Address{
			idAddress: keyAddr,
		}}
		v := NewSignatureValidator(state)

		msg := types.NewMeteredMessage(idAddress, idAddress, 1, abi.NewTokenAmount(0), builtin.MethodSend, nil, abi.NewTokenAmount(0), abi.NewTokenAmount(0), 1)
		sig, err := signer.SignBytes(ctx, msg.Cid().Bytes(), otherAddr) // sign with addr != msg.From (resolved)
		require.NoError(t, err)
		smsg := &types.SignedMessage{
			Message:   *msg,
			Signature: sig,
		}
		assert.Error(t, v.ValidateMessageSignature(ctx, smsg))
	})
}

// Signature corrupted.
func TestSignedMessageBadSignature(t *testing.T) {
	tf.UnitTest(t)
	ctx := context.Background()

	signer, kis := th.NewMockSignersAndKeyInfo(1)
	keyAddr, err := kis[0].Address()
	require.NoError(t, err)

	v := NewSignatureValidator(&fakeStateView{}) // no resolution needed
	msg := types.NewMeteredMessage(keyAddr, keyAddr, 1, abi.NewTokenAmount(0), builtin.MethodSend, nil, abi.NewTokenAmount(0), abi.NewTokenAmount(0), 1)
	smsg, err := types.NewSignedMessage(ctx, *msg, signer)
	require.NoError(t, err)

	assert.NoError(t, v.ValidateMessageSignature(ctx, smsg))
	smsg.Signature.Data[0] = smsg.Signature.Data[0] ^ 0xFF
	assert.Error(t, v.ValidateMessageSignature(ctx, smsg))
}

// Message corrupted.
func TestSignedMessageCorrupted(t *testing.T) {
	tf.UnitTest(t)

	ctx := context.Background()

	signer, kis := th.NewMockSignersAndKeyInfo(1)
	keyAddr, err := kis[0].Address()
	require.NoError(t, err)

	v := NewSignatureValidator(&fakeStateView{}) // no resolution needed
	msg := types.NewMeteredMessage(keyAddr, keyAddr, 1, abi.NewTokenAmount(0), builtin.MethodSend, nil, abi.NewTokenAmount(0), abi.NewTokenAmount(0), 1)
	smsg, err := types.NewSignedMessage(ctx, *msg, signer)
	require.NoError(t, err)

	assert.NoError(t, v.ValidateMessageSignature(ctx, smsg))
	smsg.Message.Nonce = uint64(42)
	assert.Error(t, v.ValidateMessageSignature(ctx, smsg))
}

func TestBLSMessageAggregate(t *testing.T) {
	tf.UnitTest(t)
	ctx := context.Background()

	kis := th.MustGenerateBLSKeyInfo(3, 7)
	signer := th.NewMockSigner(kis)

	var msgs []*types.Message
	var sigs [][]byte
	for i, ki := range kis {
		from, err := ki.Address()
		require.NoError(t, err)
		msg := types.NewMeteredMessage(from, from, uint64(i), abi.NewTokenAmount(0), builtin.MethodSend, nil, abi.NewTokenAmount(0), abi.NewTokenAmount(0), 1)
		sig, err := signer.SignBytes(ctx, msg.Cid().Bytes(), from)
		require.NoError(t, err)
		msgs = append(msgs, msg)
		sigs = append(sigs, sig.Data)
	}

	aggData, err := crypto.AggregateBLS(sigs)
	require.NoError(t, err)
	agg := crypto.Signature{Type: crypto.SigTypeBLS, Data: aggData}

	v := NewSignatureValidator(&fakeStateView{}) // BLS addresses resolve to themselves
	assert.NoError(t, v.ValidateBLSMessageAggregate(ctx, msgs, agg))

	// Dropping a message invalidates the aggregate.
	assert.Error(t, v.ValidateBLSMessageAggregate(ctx, msgs[:2], agg))
}
