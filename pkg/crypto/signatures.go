package crypto

import (
	"fmt"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/crypto"
)

type Signature = crypto.Signature
type SigType = crypto.SigType

const (
	SigTypeSecp256k1 = crypto.SigTypeSecp256k1
	SigTypeBLS       = crypto.SigTypeBLS
)

// Sign produces a signature of the requested type over data.
func Sign(data []byte, secretKey []byte, sigtype SigType) (Signature, error) {
	sv, ok := sigs[sigtype]
	if !ok {
		return Signature{}, fmt.Errorf("unknown signature type %d", sigtype)
	}
	sig, err := sv.Sign(secretKey, data)
	if err != nil {
		return Signature{}, err
	}
	return Signature{Type: sigtype, Data: sig}, nil
}

// ValidateSignature cryptographically verifies that sig is a signature over
// data by the key that addr commits to. The address protocol pins the
// expected signature type; a mismatch is rejected before any key material
// is touched.
func ValidateSignature(data []byte, addr address.Address, sig Signature) error {
	switch addr.Protocol() {
	case address.SECP256K1:
		if sig.Type != SigTypeSecp256k1 {
			return fmt.Errorf("incorrect signature type (%v) for address expected SECP256K1 signature", sig.Type)
		}
	case address.BLS:
		if sig.Type != SigTypeBLS {
			return fmt.Errorf("incorrect signature type (%v) for address expected BLS signature", sig.Type)
		}
	default:
		return fmt.Errorf("incorrect address protocol (%v) for signature validation", addr.Protocol())
	}
	return Verify(&sig, addr, data)
}
