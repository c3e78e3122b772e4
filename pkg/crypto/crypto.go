package crypto

import (
	"fmt"
	"io"
)

// NewSecpKeyFromSeed derives a secp256k1 KeyInfo from the given reader.
func NewSecpKeyFromSeed(seed io.Reader) (KeyInfo, error) {
	return newKeyFromSeed(SigTypeSecp256k1, seed)
}

// NewBLSKeyFromSeed derives a bls KeyInfo from the given reader.
func NewBLSKeyFromSeed(seed io.Reader) (KeyInfo, error) {
	return newKeyFromSeed(SigTypeBLS, seed)
}

func newKeyFromSeed(typ SigType, seed io.Reader) (KeyInfo, error) {
	sv, ok := sigs[typ]
	if !ok {
		return KeyInfo{}, fmt.Errorf("unknown signature type %d", typ)
	}
	k, err := sv.GenPrivateFromSeed(seed)
	if err != nil {
		return KeyInfo{}, err
	}
	ki := KeyInfo{SigType: typ}
	ki.SetPrivateKey(k) // SetPrivateKey wipes k
	return ki, nil
}
