package vmcontext

import (
	"context"
	"encoding/binary"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	acrypto "github.com/filecoin-project/go-state-types/crypto"
	"github.com/filecoin-project/go-state-types/proof"
	"github.com/ipfs/go-cid"
	"github.com/minio/blake2b-simd"

	"github.com/filecoin-project/go-fvm/pkg/constants"
	"github.com/filecoin-project/go-fvm/pkg/crypto"
	"github.com/filecoin-project/go-fvm/pkg/vm/runtime"
)

// FakeSyscalls checks signatures for real but treats every proof as valid.
// It exists for tests that exercise the vm without a proving stack.
type FakeSyscalls struct {
}

var _ SyscallsImpl = FakeSyscalls{}

func (f FakeSyscalls) VerifySignature(ctx context.Context, view SyscallsStateView, signature acrypto.Signature, signer address.Address, plaintext []byte) error {
	// The signer is assumed to be already resolved to a pubkey address.
	return crypto.ValidateSignature(plaintext, signer, signature)
}

func (f FakeSyscalls) HashBlake2b(data []byte) [32]byte {
	return blake2b.Sum256(data)
}

func (f FakeSyscalls) ComputeUnsealedSectorCID(ctx context.Context, proofType abi.RegisteredSealProof, pieces []abi.PieceInfo) (cid.Cid, error) {
	// Derive a stable placeholder from the inputs.
	digest := blake2b.New256()
	var scratch [8]byte
	binary.BigEndian.PutUint64(scratch[:], uint64(proofType))
	_, _ = digest.Write(scratch[:])
	for _, p := range pieces {
		binary.BigEndian.PutUint64(scratch[:], uint64(p.Size))
		_, _ = digest.Write(scratch[:])
		_, _ = digest.Write(p.PieceCID.Bytes())
	}
	return constants.DefaultCidBuilder.Sum(digest.Sum(nil))
}

func (f FakeSyscalls) VerifySeal(ctx context.Context, info proof.SealVerifyInfo) error {
	return nil
}

func (f FakeSyscalls) VerifyAggregateSeals(aggregate proof.AggregateSealVerifyProofAndInfos) error {
	return nil
}

func (f FakeSyscalls) VerifyPoSt(ctx context.Context, info proof.WindowPoStVerifyInfo) error {
	return nil
}

func (f FakeSyscalls) BatchVerifySeals(ctx context.Context, vis []proof.SealVerifyInfo) ([]bool, error) {
	out := make([]bool, len(vis))
	for i := range out {
		out[i] = true
	}
	return out, nil
}

func (f FakeSyscalls) VerifyConsensusFault(ctx context.Context, h1, h2, extra []byte, view SyscallsStateView) (*runtime.ConsensusFault, error) {
	return nil, nil
}
