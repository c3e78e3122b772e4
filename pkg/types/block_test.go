package types

import (
	"bytes"
	"testing"

	fbig "github.com/filecoin-project/go-state-types/big"
	"github.com/ipfs/go-cid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filecoin-project/go-fvm/pkg/crypto"
	tf "github.com/filecoin-project/go-fvm/pkg/testhelpers/testflags"
)

// testHeader returns a header with every encoded field populated; zero
// values can hide nil/null encoding bugs that non-zero values expose.
func testHeader(t *testing.T) *BlockHeader {
	newAddress := NewForTestGetter()
	return &BlockHeader{
		Miner:         newAddress(),
		Ticket:        Ticket{VRFProof: []byte{0x01, 0x02, 0x03}},
		ElectionProof: &ElectionProof{WinCount: 1, VRFProof: []byte{0x0a, 0x0b}},
		BeaconEntries: []*BeaconEntry{
			{Round: 1, Data: []byte{0x3}},
		},
		Parents:               NewTipSetKey(CidFromString(t, "parent")),
		ParentWeight:          fbig.NewInt(1000),
		Height:                2,
		ParentStateRoot:       CidFromString(t, "state"),
		ParentMessageReceipts: CidFromString(t, "receipts"),
		Messages:              CidFromString(t, "messages"),
		BLSAggregate:          &crypto.Signature{Type: crypto.SigTypeBLS, Data: []byte{0x3}},
		Timestamp:             1,
		BlockSig:              &crypto.Signature{Type: crypto.SigTypeBLS, Data: []byte{0x4}},
		ForkSignaling:         6,
		ParentBaseFee:         fbig.NewInt(100),
	}
}

func TestBlockHeaderRoundTrip(t *testing.T) {
	tf.UnitTest(t)

	before := testHeader(t)

	data, err := before.Serialize()
	require.NoError(t, err)

	after, err := DecodeBlock(data)
	require.NoError(t, err)

	AssertHaveSameCid(t, before, after)
	assert.Equal(t, before.Miner, after.Miner)
	assert.Equal(t, before.Ticket, after.Ticket)
	assert.Equal(t, before.Parents, after.Parents)
	assert.Equal(t, before.Height, after.Height)
	assert.Equal(t, before.BlockSig, after.BlockSig)
}

func TestDecodeBlockGarbage(t *testing.T) {
	tf.UnitTest(t)

	_, err := DecodeBlock([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestBlockCidDistinguishesFields(t *testing.T) {
	tf.UnitTest(t)

	base := testHeader(t)

	// identical content, identical cid
	same := *base
	same.cachedCid = cid.Undef
	same.cachedBytes = nil
	assert.True(t, base.Equals(&same))

	mutations := map[string]func(*BlockHeader){
		"height":  func(b *BlockHeader) { b.Height++ },
		"parents": func(b *BlockHeader) { b.Parents = NewTipSetKey(CidFromString(t, "other")) },
		"state":   func(b *BlockHeader) { b.ParentStateRoot = CidFromString(t, "other") },
		"ticket":  func(b *BlockHeader) { b.Ticket = Ticket{VRFProof: []byte{0xff}} },
	}
	for name, mutate := range mutations {
		diff := *base
		diff.cachedCid = cid.Undef
		diff.cachedBytes = nil
		mutate(&diff)
		assert.False(t, base.Equals(&diff), "mutating %s must change the cid", name)
	}
}

func TestSignatureData(t *testing.T) {
	tf.UnitTest(t)

	b := testHeader(t)

	// the signature itself must not be part of the signed payload
	signed := *b
	signed.BlockSig = &crypto.Signature{Type: crypto.SigTypeBLS, Data: []byte("different")}
	assert.True(t, bytes.Equal(b.SignatureData(), signed.SignatureData()))

	// everything else must be
	diff := *b
	diff.Height++
	assert.False(t, bytes.Equal(b.SignatureData(), diff.SignatureData()))
}

func TestBlockString(t *testing.T) {
	tf.UnitTest(t)

	b := testHeader(t)
	s := b.String()
	assert.Contains(t, s, b.Cid().String())
}
