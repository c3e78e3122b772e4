package constants

import (
	"math/big"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/network"
	"github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
	"github.com/raulk/clock"
)

/* inline-gen template

const TestNetworkVersion = network.Version{{.latestNetworkVersion}}

/* inline-gen start */

const TestNetworkVersion = network.Version18

/* inline-gen end */

const (
	FilBase = uint64(2_000_000_000)
)

const (
	FilecoinPrecision = uint64(1_000_000_000_000_000_000)
)

// BlockGasLimit is the maximum gas spendable per block; it also bounds the
// gas limit of any single message.
const (
	BlockGasLimit  = int64(10_000_000_000)
	BlockGasTarget = BlockGasLimit / 2
)

// DefaultHashFunction is the default hashing function for state objects.
const DefaultHashFunction = mh.BLAKE2B_MIN + 31

// DefaultCidBuilder builds v1 DagCBOR cids using the default hash function.
var DefaultCidBuilder = cid.V1Builder{Codec: cid.DagCBOR, MhType: DefaultHashFunction}

// Clock is the global clock for the system. Tests substitute a mock through
// this variable.
var Clock = clock.New()

func SetAddressNetwork(n address.Network) {
	address.CurrentNetwork = n
}

func WholeFIL(whole uint64) *big.Int {
	bigWhole := big.NewInt(int64(whole))
	return bigWhole.Mul(bigWhole, big.NewInt(int64(FilecoinPrecision)))
}
