package crypto

import (
	"crypto/rand"
	"fmt"
	"io"

	"github.com/drand/kyber"
	bls12381 "github.com/drand/kyber-bls12381"
	signbls "github.com/drand/kyber/sign/bls"
	"github.com/drand/kyber/util/random"
	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/crypto"
)

// DST is the domain separation tag of the signature scheme: public keys on
// G1, signatures on G2, basic scheme.
const DST = string("BLS_SIG_BLS12381G2_XMD:SHA-256_SSWU_RO_NUL_")

const (
	BLSPrivateKeyBytes = 32
	BLSPublicKeyBytes  = 48
	BLSSignatureBytes  = 96
)

var (
	blsSuite  = bls12381.NewBLS12381Suite()
	blsScheme = signbls.NewSchemeOnG2(blsSuite)
)

type blsSigner struct{}

func (s blsSigner) GenPrivate() ([]byte, error) {
	return s.GenPrivateFromSeed(rand.Reader)
}

func (blsSigner) GenPrivateFromSeed(seed io.Reader) ([]byte, error) {
	priv, _ := blsScheme.NewKeyPair(random.New(seed))
	data, err := priv.MarshalBinary()
	if err != nil {
		return nil, err
	}
	// private keys are serialized little-endian
	return reverse(data), nil
}

func (blsSigner) ToPublic(priv []byte) ([]byte, error) {
	s, err := blsScalar(priv)
	if err != nil {
		return nil, err
	}
	return blsSuite.G1().Point().Mul(s, nil).MarshalBinary()
}

func (blsSigner) Sign(p []byte, msg []byte) ([]byte, error) {
	s, err := blsScalar(p)
	if err != nil {
		return nil, err
	}
	return blsScheme.Sign(s, msg)
}

func (blsSigner) Verify(sig []byte, a address.Address, msg []byte) error {
	if !VerifyBLS(a.Payload(), msg, sig) {
		return fmt.Errorf("bls signature failed to verify")
	}
	return nil
}

func (blsSigner) VerifyAggregate(pubKeys, msgs [][]byte, signature []byte) bool {
	if len(pubKeys) != len(msgs) || len(msgs) == 0 {
		return false
	}
	sigPoint := blsSuite.G2().Point()
	if err := sigPoint.UnmarshalBinary(signature); err != nil {
		return false
	}
	hasher, ok := blsSuite.G2().Point().(kyber.HashablePoint)
	if !ok {
		return false
	}

	// e(g1, sig) must equal the product of e(pk_i, H(m_i))
	acc := blsSuite.GT().Point().Null()
	for i, msg := range msgs {
		pub := blsSuite.G1().Point()
		if err := pub.UnmarshalBinary(pubKeys[i]); err != nil {
			return false
		}
		acc = acc.Add(acc, blsSuite.Pair(pub, hasher.Hash(msg)))
	}
	return blsSuite.Pair(blsSuite.G1().Point().Base(), sigPoint).Equal(acc)
}

// SignBLS signs msg with a bls private key.
func SignBLS(sk, msg []byte) ([]byte, error) {
	return blsSigner{}.Sign(sk, msg)
}

// VerifyBLS reports whether sig is pubKey's signature over msg.
func VerifyBLS(pubKey, msg, sig []byte) bool {
	if len(sig) != BLSSignatureBytes || len(pubKey) != BLSPublicKeyBytes {
		return false
	}
	pub := blsSuite.G1().Point()
	if err := pub.UnmarshalBinary(pubKey); err != nil {
		return false
	}
	return blsScheme.Verify(pub, msg, sig) == nil
}

// AggregateBLS combines bls signatures into one aggregate signature.
func AggregateBLS(sigs [][]byte) ([]byte, error) {
	if len(sigs) == 0 {
		return nil, fmt.Errorf("no signatures to aggregate")
	}
	return blsScheme.AggregateSignatures(sigs...)
}

func blsScalar(priv []byte) (kyber.Scalar, error) {
	if len(priv) != BLSPrivateKeyBytes {
		return nil, fmt.Errorf("bls signature invalid private key")
	}
	s := blsSuite.G2().Scalar()
	if err := s.UnmarshalBinary(reverse(priv)); err != nil {
		return nil, err
	}
	return s, nil
}

func reverse(b []byte) []byte {
	out := make([]byte, len(b))
	for i, v := range b {
		out[len(b)-1-i] = v
	}
	return out
}

func init() {
	RegisterSignature(crypto.SigTypeBLS, blsSigner{})
}
