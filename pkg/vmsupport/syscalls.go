package vmsupport

import (
	"context"
	"errors"
	"fmt"
	goruntime "runtime"
	"sync"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/proof"
	"github.com/ipfs/go-cid"
	logging "github.com/ipfs/go-log/v2"
	"github.com/minio/blake2b-simd"

	"github.com/filecoin-project/go-fvm/pkg/consensusfault"
	"github.com/filecoin-project/go-fvm/pkg/crypto"
	"github.com/filecoin-project/go-fvm/pkg/state"
	"github.com/filecoin-project/go-fvm/pkg/util/ffiwrapper"
	"github.com/filecoin-project/go-fvm/pkg/vm"
	"github.com/filecoin-project/go-fvm/pkg/vm/runtime"
)

var log = logging.Logger("vmsupport")

type faultChecker interface {
	VerifyConsensusFault(ctx context.Context, h1, h2, extra []byte, view consensusfault.FaultStateView) (*runtime.ConsensusFault, error)
}

// Syscalls contains the concrete implementation of VM system calls, including connection to
// proof verification and blockchain inspection.
// Errors returned by these methods are intended to be returned to the actor code to respond to: they must be
// entirely deterministic and repeatable by other implementations.
// Any non-deterministic error will instead trigger a panic.
// TODO: determine a more robust mechanism for distinguishing transient runtime failures from deterministic errors
// in VM and supporting code.
type Syscalls struct {
	faultChecker faultChecker
	verifier     ffiwrapper.Verifier
}

func NewSyscalls(faultChecker faultChecker, verifier ffiwrapper.Verifier) *Syscalls {
	return &Syscalls{
		faultChecker: faultChecker,
		verifier:     verifier,
	}
}

// VerifySignature verifies that a signature is valid for an address and plaintext.
func (s *Syscalls) VerifySignature(ctx context.Context, view vm.SyscallsStateView, signature crypto.Signature, signer address.Address, plaintext []byte) error {
	return state.NewSignatureValidator(view).ValidateSignature(ctx, plaintext, signer, signature)
}

// HashBlake2b hashes input data using blake2b with 256 bit output.
func (s *Syscalls) HashBlake2b(data []byte) [32]byte {
	return blake2b.Sum256(data)
}

// ComputeUnsealedSectorCID computes an unsealed sector CID (CommD) from its constituent piece CIDs (CommPs) and sizes.
func (s *Syscalls) ComputeUnsealedSectorCID(_ context.Context, proofType abi.RegisteredSealProof, pieces []abi.PieceInfo) (cid.Cid, error) {
	return s.verifier.GenerateUnsealedCID(proofType, pieces)
}

// VerifySeal returns nil if the sealing operation from which its inputs were
// derived was valid, and an error if not.
func (s *Syscalls) VerifySeal(_ context.Context, info proof.SealVerifyInfo) error {
	ok, err := s.verifier.VerifySeal(info)
	if err != nil {
		return err
	} else if !ok {
		return fmt.Errorf("seal invalid")
	}
	return nil
}

// VerifyAggregateSeals checks an aggregated batch of seal proofs.
func (s *Syscalls) VerifyAggregateSeals(aggregate proof.AggregateSealVerifyProofAndInfos) error {
	ok, err := s.verifier.VerifyAggregateSeals(aggregate)
	if err != nil {
		return fmt.Errorf("failed to verify aggregated PoRep: %w", err)
	}
	if !ok {
		return errors.New("invalid aggregate proof")
	}
	return nil
}

var BatchSealVerifyParallelism = 2 * goruntime.NumCPU()

// BatchVerifySeals checks a batch of seal proofs in parallel, returning one
// result per input in the same order.
func (s *Syscalls) BatchVerifySeals(ctx context.Context, vis []proof.SealVerifyInfo) ([]bool, error) {
	results := make([]bool, len(vis))

	sema := make(chan struct{}, BatchSealVerifyParallelism)

	var wg sync.WaitGroup
	for i, seal := range vis {
		wg.Add(1)
		go func(ix int, svi proof.SealVerifyInfo) {
			defer wg.Done()
			sema <- struct{}{}

			if err := s.VerifySeal(ctx, svi); err != nil {
				log.Warnw("seal verify in batch failed", "miner", svi.Miner, "index", ix, "err", err)
				results[ix] = false
			} else {
				results[ix] = true
			}

			<-sema
		}(i, seal)
	}
	wg.Wait()

	return results, nil
}

// VerifyPoSt checks a window PoSt proof against its challenged sectors.
func (s *Syscalls) VerifyPoSt(ctx context.Context, info proof.WindowPoStVerifyInfo) error {
	ok, err := s.verifier.VerifyWindowPoSt(ctx, info)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("window PoSt verification failed")
	}
	return nil
}

// VerifyConsensusFault verifies that two block headers provide proof of a consensus fault:
// - both headers mined by the same actor
// - headers are different
// - first header is of the same or lower epoch as the second
// - the headers provide evidence of a fault (double-fork mining, time-offset mining or parent grinding).
// The parameters are all serialized block headers. The third "extra" parameter is consulted only for
// the "parent grinding fault", in which case it must be the sibling of h1 (same parent tipset) and one of the
// blocks in the parent of h2 (i.e. h2's grandparent).
// Returns nil and an error if the headers don't prove a fault.
func (s *Syscalls) VerifyConsensusFault(ctx context.Context, h1, h2, extra []byte, view vm.SyscallsStateView) (*runtime.ConsensusFault, error) {
	return s.faultChecker.VerifyConsensusFault(ctx, h1, h2, extra, view)
}

var _ vm.SyscallsImpl = (*Syscalls)(nil)
