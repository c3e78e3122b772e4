package types

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	fbig "github.com/filecoin-project/go-state-types/big"
	proof2 "github.com/filecoin-project/go-state-types/proof"
	"github.com/ipfs/go-cid"

	"github.com/filecoin-project/go-fvm/pkg/constants"
	"github.com/filecoin-project/go-fvm/pkg/crypto"
)

// BlockHeader is a chain block header. The executor itself never produces
// headers; they enter the vm as opaque byte payloads of the consensus fault
// syscall and are decoded here to inspect the miner, epoch, parent set and
// the worker signature.
type BlockHeader struct {
	// Miner is the address of the miner actor that produced this block.
	Miner address.Address `json:"miner"`

	// Ticket is the block's VRF ticket, drawn from the parent ticket chain.
	Ticket Ticket `json:"ticket"`

	// ElectionProof grants the miner authoring rights for this epoch.
	ElectionProof *ElectionProof `json:"electionProof"`

	// BeaconEntries are the randomness beacon values observed since the
	// parent block.
	BeaconEntries []*BeaconEntry `json:"beaconEntries"`

	// WinPoStProof is the winning PoSt proof for the elected sectors.
	WinPoStProof []proof2.PoStProof `json:"winPoStProof"`

	// Parents names the tipset this block builds on.
	Parents TipSetKey `json:"parents"`

	// ParentWeight is the aggregate chain weight of the parent set.
	ParentWeight fbig.Int `json:"parentWeight"`

	// Height is the chain epoch of this block.
	Height abi.ChainEpoch `json:"height"`

	// ParentStateRoot is the state root after applying the parent tipset's
	// messages.
	ParentStateRoot cid.Cid `json:"parentStateRoot,omitempty"`

	// ParentMessageReceipts is the root of the receipts produced by the
	// parent tipset's messages.
	ParentMessageReceipts cid.Cid `json:"parentMessageReceipts,omitempty"`

	// Messages is the root of the messages included in this block.
	Messages cid.Cid `json:"messages,omitempty"`

	// BLSAggregate is the aggregate signature over every BLS-signed message
	// in the block.
	BLSAggregate *crypto.Signature `json:"BLSAggregate"`

	// Timestamp is the block creation time, in seconds since the Unix epoch.
	Timestamp uint64 `json:"timestamp"`

	// BlockSig is the miner worker key's signature over the header.
	BlockSig *crypto.Signature `json:"blocksig"`

	// ForkSignaling is extra data used by miners to coordinate forks.
	ForkSignaling uint64 `json:"forkSignaling"`

	// ParentBaseFee is the base fee after executing the parent tipset.
	ParentBaseFee abi.TokenAmount `json:"parentBaseFee"`

	cachedCid cid.Cid

	cachedBytes []byte
}

// Cid returns the content id of the header.
func (b *BlockHeader) Cid() cid.Cid {
	if b.cachedCid == cid.Undef {
		if b.cachedBytes == nil {
			data, err := b.Serialize()
			if err != nil {
				panic(err)
			}
			b.cachedBytes = data
		}
		c, err := constants.DefaultCidBuilder.Sum(b.cachedBytes)
		if err != nil {
			panic(err)
		}
		b.cachedCid = c
	}
	return b.cachedCid
}

func (b *BlockHeader) String() string {
	c := b.Cid()
	js, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return "(error encoding BlockHeader)"
	}
	return fmt.Sprintf("BlockHeader cid=[%v]: %s", c, string(js))
}

// DecodeBlock decodes raw cbor bytes into a BlockHeader.
func DecodeBlock(b []byte) (*BlockHeader, error) {
	var out BlockHeader
	if err := out.UnmarshalCBOR(bytes.NewReader(b)); err != nil {
		return nil, err
	}
	out.cachedBytes = b
	return &out, nil
}

// Equals returns true if the headers have the same content id.
func (b *BlockHeader) Equals(other *BlockHeader) bool {
	return b.Cid().Equals(other.Cid())
}

// SignatureData returns the bytes the worker key signs over: the header
// serialized with a null signature field.
func (b *BlockHeader) SignatureData() []byte {
	tmp := &BlockHeader{
		Miner:                 b.Miner,
		Ticket:                b.Ticket,
		ElectionProof:         b.ElectionProof,
		BeaconEntries:         b.BeaconEntries,
		WinPoStProof:          b.WinPoStProof,
		Parents:               b.Parents,
		ParentWeight:          b.ParentWeight,
		Height:                b.Height,
		ParentStateRoot:       b.ParentStateRoot,
		ParentMessageReceipts: b.ParentMessageReceipts,
		Messages:              b.Messages,
		BLSAggregate:          b.BLSAggregate,
		Timestamp:             b.Timestamp,
		ForkSignaling:         b.ForkSignaling,
		ParentBaseFee:         b.ParentBaseFee,
		// BlockSig omitted
	}
	data, err := tmp.Serialize()
	if err != nil {
		panic(err)
	}
	return data
}

// Serialize encodes the header to its cbor form.
func (b *BlockHeader) Serialize() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := b.MarshalCBOR(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
