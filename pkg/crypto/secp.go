package crypto

import (
	"fmt"
	"io"

	"github.com/filecoin-project/go-address"
	gcrypto "github.com/filecoin-project/go-crypto"
	"github.com/filecoin-project/go-state-types/crypto"
	"github.com/minio/blake2b-simd"
)

const secpPrivateKeyBytes = 32

type secpSigner struct{}

func (secpSigner) GenPrivate() ([]byte, error) {
	return gcrypto.GenerateKey()
}

func (secpSigner) GenPrivateFromSeed(seed io.Reader) ([]byte, error) {
	return gcrypto.GenerateKeyFromSeed(seed)
}

func (secpSigner) ToPublic(priv []byte) ([]byte, error) {
	if len(priv) != secpPrivateKeyBytes {
		return nil, fmt.Errorf("secp256k1 signature invalid private key")
	}
	return gcrypto.PublicKey(priv), nil
}

func (secpSigner) Sign(priv []byte, msg []byte) ([]byte, error) {
	hash := blake2b.Sum256(msg)
	return SignSecp(priv, hash[:])
}

func (secpSigner) Verify(sig []byte, a address.Address, msg []byte) error {
	if a.Protocol() != address.SECP256K1 {
		return fmt.Errorf("address protocol (%v) invalid for SECP256K1 signature verification", a.Protocol())
	}
	hash := blake2b.Sum256(msg)
	pk, err := EcRecover(hash[:], sig)
	if err != nil {
		return err
	}
	recovered, err := address.NewSecp256k1Address(pk)
	if err != nil {
		return err
	}
	if recovered != a {
		return fmt.Errorf("invalid SECP signature")
	}
	return nil
}

func (secpSigner) VerifyAggregate(pubKeys, msgs [][]byte, signature []byte) bool {
	// secp256k1 has no aggregation scheme
	return false
}

// SignSecp signs an already hashed message. The signature is 65 bytes:
// r, s and a recovery id.
func SignSecp(sk, msg []byte) ([]byte, error) {
	return gcrypto.Sign(sk, msg)
}

// EcRecover returns the public key that produced the signature over msg.
func EcRecover(msg, signature []byte) ([]byte, error) {
	return gcrypto.EcRecover(msg, signature)
}

func init() {
	RegisterSignature(crypto.SigTypeSecp256k1, secpSigner{})
}
