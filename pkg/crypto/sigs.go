package crypto

import (
	"fmt"
	"io"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/crypto"
)

// SigShim is the algorithm backend behind the package-level signature
// operations. Backends install themselves at init time.
type SigShim interface {
	GenPrivate() ([]byte, error)
	GenPrivateFromSeed(seed io.Reader) ([]byte, error)
	ToPublic(priv []byte) ([]byte, error)
	Sign(priv []byte, msg []byte) ([]byte, error)
	Verify(sig []byte, a address.Address, msg []byte) error
	VerifyAggregate(pubKeys, msgs [][]byte, signature []byte) bool
}

var sigs map[crypto.SigType]SigShim

// RegisterSignature installs a signature backend. Only safe to call from
// init functions.
func RegisterSignature(typ crypto.SigType, vs SigShim) {
	if sigs == nil {
		sigs = make(map[crypto.SigType]SigShim)
	}
	sigs[typ] = vs
}

// Verify checks sig over msg against the key that addr commits to.
func Verify(sig *Signature, addr address.Address, msg []byte) error {
	if sig == nil {
		return fmt.Errorf("signature is nil")
	}
	sv, ok := sigs[sig.Type]
	if !ok {
		return fmt.Errorf("cannot verify signature of unsupported type: %v", sig.Type)
	}
	return sv.Verify(sig.Data, addr, msg)
}

// ToPublic returns the public key bytes for a private key.
func ToPublic(sigType SigType, priv []byte) ([]byte, error) {
	sv, ok := sigs[sigType]
	if !ok {
		return nil, fmt.Errorf("cannot generate public key of unsupported type: %v", sigType)
	}
	return sv.ToPublic(priv)
}

// VerifyAggregate checks an aggregate bls signature over independently
// signed messages, pairing each message with the key at the same index.
func VerifyAggregate(pubKeys, msgs [][]byte, signature []byte) error {
	sv, ok := sigs[crypto.SigTypeBLS]
	if !ok {
		return fmt.Errorf("no bls signature backend registered")
	}
	if !sv.VerifyAggregate(pubKeys, msgs, signature) {
		return fmt.Errorf("bls aggregate signature failed to verify")
	}
	return nil
}
