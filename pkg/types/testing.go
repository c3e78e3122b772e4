package types

import (
	"fmt"
	"testing"

	"github.com/filecoin-project/go-address"
	"github.com/ipfs/go-cid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filecoin-project/go-fvm/pkg/constants"
)

// NewForTestGetter returns a closure handing out a fresh secp address on
// every call. Addresses are only unique within one closure.
func NewForTestGetter() func() address.Address {
	i := 0
	return func() address.Address {
		i++
		newAddr, err := address.NewSecp256k1Address([]byte(fmt.Sprintf("address%d", i)))
		if err != nil {
			panic(err)
		}
		return newAddr
	}
}

// CidFromString makes a deterministic test cid by hashing the input.
func CidFromString(t *testing.T, input string) cid.Cid {
	c, err := constants.DefaultCidBuilder.Sum([]byte(input))
	require.NoError(t, err)
	return c
}

type cidProvider interface {
	Cid() cid.Cid
}

// AssertHaveSameCid fails the test when the two values hash to different
// cids.
func AssertHaveSameCid(t *testing.T, m cidProvider, n cidProvider) {
	assert.True(t, m.Cid().Equals(n.Cid()), "cids don't match: %v != %v", m.Cid(), n.Cid())
}
