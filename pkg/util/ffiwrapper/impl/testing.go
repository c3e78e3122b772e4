package impl

import (
	"context"
	"encoding/binary"

	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/proof"
	"github.com/ipfs/go-cid"
	"github.com/minio/blake2b-simd"

	"github.com/filecoin-project/go-fvm/pkg/constants"
	"github.com/filecoin-project/go-fvm/pkg/util/ffiwrapper"
)

// FakeVerifier accepts every proof. It exists for tests that exercise the
// vm without a proving stack.
type FakeVerifier struct {
}

var _ ffiwrapper.Verifier = (*FakeVerifier)(nil)

func (f *FakeVerifier) VerifySeal(proof.SealVerifyInfo) (bool, error) {
	return true, nil
}

func (f *FakeVerifier) VerifyAggregateSeals(aggregate proof.AggregateSealVerifyProofAndInfos) (bool, error) {
	return true, nil
}

func (f *FakeVerifier) VerifyWindowPoSt(context.Context, proof.WindowPoStVerifyInfo) (bool, error) {
	return true, nil
}

// GenerateUnsealedCID derives a stable placeholder commitment from the
// piece layout.
func (f *FakeVerifier) GenerateUnsealedCID(proofType abi.RegisteredSealProof, pieces []abi.PieceInfo) (cid.Cid, error) {
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
