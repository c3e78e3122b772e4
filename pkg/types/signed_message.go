package types

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	blocks "github.com/ipfs/go-block-format"
	"github.com/ipfs/go-cid"

	"github.com/filecoin-project/go-fvm/pkg/crypto"
)

// Signer produces signatures for data on behalf of an address whose key
// it holds.
type Signer interface {
	SignBytes(ctx context.Context, data []byte, addr address.Address) (crypto.Signature, error)
	HasAddress(ctx context.Context, addr address.Address) (bool, error)
}

// SignedMessage is a message plus the sender's signature over the
// message cid.
type SignedMessage struct {
	Message   Message          `json:"message"`
	Signature crypto.Signature `json:"signature"`
}

var _ ChainMsg = (*SignedMessage)(nil)

// NewSignedMessage signs msg with the key the signer holds for msg.From.
// From must be a public-key address; ID addresses carry no key.
func NewSignedMessage(ctx context.Context, msg Message, s Signer) (*SignedMessage, error) {
	sig, err := s.SignBytes(ctx, msg.Cid().Bytes(), msg.From)
	if err != nil {
		return nil, err
	}
	return &SignedMessage{Message: msg, Signature: sig}, nil
}

// Cid returns the canonical cid of the signed message. BLS signatures
// are aggregated off-message, so a BLS-signed message keeps the cid of
// its bare message.
func (smsg *SignedMessage) Cid() cid.Cid {
	if smsg.Signature.Type == crypto.SigTypeBLS {
		return smsg.Message.Cid()
	}

	sb, err := smsg.ToStorageBlock()
	if err != nil {
		panic(fmt.Sprintf("failed to marshal signed message: %s", err))
	}
	return sb.Cid()
}

func (smsg *SignedMessage) ToStorageBlock() (blocks.Block, error) {
	if smsg.Signature.Type == crypto.SigTypeBLS {
		return smsg.Message.ToStorageBlock()
	}

	data, err := smsg.Serialize()
	if err != nil {
		return nil, err
	}
	c, err := abi.CidBuilder.Sum(data)
	if err != nil {
		return nil, err
	}
	return blocks.NewBlockWithCid(data, c)
}

func (smsg *SignedMessage) Serialize() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := smsg.MarshalCBOR(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ChainLength is the number of bytes the message occupies on chain,
// which the inclusion gas charge is priced on. BLS-signed messages are
// stored without their signature.
func (smsg *SignedMessage) ChainLength() int {
	var data []byte
	var err error
	if smsg.Signature.Type == crypto.SigTypeBLS {
		data, err = smsg.Message.Serialize()
	} else {
		data, err = smsg.Serialize()
	}
	if err != nil {
		panic(fmt.Errorf("failed to marshal the signed message: %v", err))
	}
	return len(data)
}

func (smsg *SignedMessage) VMMessage() *Message {
	return &smsg.Message
}

func (smsg *SignedMessage) String() string {
	js, err := json.MarshalIndent(smsg, "", "  ")
	if err != nil {
		return "(error encoding SignedMessage)"
	}
	return fmt.Sprintf("SignedMessage cid=[%v]: %s", smsg.Cid(), string(js))
}
