package state

import (
	"context"

	addr "github.com/filecoin-project/go-address"
	"github.com/pkg/errors"

	"github.com/filecoin-project/go-fvm/pkg/crypto"
	"github.com/filecoin-project/go-fvm/pkg/types"
)

// AccountStateView resolves account actor addresses to the key-style address
// whose signature scheme they carry.
type AccountStateView interface {
	ResolveToDeterministicAddress(ctx context.Context, a addr.Address) (addr.Address, error)
}

// SignatureValidator checks message and data signatures against the state
// view, so signers given as ID addresses are verified against the key their
// account actor holds.
type SignatureValidator struct {
	state AccountStateView
}

func NewSignatureValidator(state AccountStateView) *SignatureValidator {
	return &SignatureValidator{state: state}
}

// ValidateSignature resolves signer to a key address and verifies sig over
// data against it.
func (v *SignatureValidator) ValidateSignature(ctx context.Context, data []byte, signer addr.Address, sig crypto.Signature) error {
	signerAddress, err := v.state.ResolveToDeterministicAddress(ctx, signer)
	if err != nil {
		return errors.Wrapf(err, "failed to load signer address for %v", signer)
	}
	return crypto.ValidateSignature(data, signerAddress, sig)
}

// ValidateMessageSignature verifies the signature over the message cid.
func (v *SignatureValidator) ValidateMessageSignature(ctx context.Context, msg *types.SignedMessage) error {
	return v.ValidateSignature(ctx, msg.Message.Cid().Bytes(), msg.Message.From, msg.Signature)
}

// ValidateBLSMessageAggregate verifies an aggregate signature over the CIDs of
// a block's BLS messages, resolving each sender to its key address.
func (v *SignatureValidator) ValidateBLSMessageAggregate(ctx context.Context, msgs []*types.Message, sig crypto.Signature) error {
	if sig.Type != crypto.SigTypeBLS {
		return errors.Errorf("expected BLS signature, got type %d", sig.Type)
	}

	pubKeys := [][]byte{}
	encodedMsgCids := [][]byte{}
	for _, msg := range msgs {
		signerAddress, err := v.state.ResolveToDeterministicAddress(ctx, msg.From)
		if err != nil {
			return errors.Wrapf(err, "failed to load signer address for %v", msg.From)
		}
		pubKeys = append(pubKeys, signerAddress.Payload())
		encodedMsgCids = append(encodedMsgCids, msg.Cid().Bytes())
	}

	if err := crypto.VerifyAggregate(pubKeys, encodedMsgCids, sig.Data); err != nil {
		return errors.Wrap(err, "BLS aggregate signature invalid")
	}
	return nil
}
