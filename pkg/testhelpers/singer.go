package testhelpers

import (
	"bytes"
	"context"
	"errors"

	"github.com/filecoin-project/go-address"

	"github.com/filecoin-project/go-fvm/pkg/crypto"
)

// MockSigner holds a ring of in-memory keys and signs for the addresses
// derived from them.
type MockSigner struct {
	AddrKeyInfo map[address.Address]crypto.KeyInfo
	Addresses   []address.Address
	PubKeys     [][]byte
}

// NewMockSigner builds a signer over the given keys.
func NewMockSigner(kis []crypto.KeyInfo) MockSigner {
	ms := MockSigner{AddrKeyInfo: make(map[address.Address]crypto.KeyInfo)}
	for _, k := range kis {
		pub, err := k.PublicKey()
		if err != nil {
			panic(err)
		}
		newAddr, err := k.Address()
		if err != nil {
			panic(err)
		}
		ms.Addresses = append(ms.Addresses, newAddr)
		ms.AddrKeyInfo[newAddr] = k
		ms.PubKeys = append(ms.PubKeys, pub)
	}
	return ms
}

// NewMockSignersAndKeyInfo generates a signer with n fresh secp keys.
func NewMockSignersAndKeyInfo(numSigners int) (MockSigner, []crypto.KeyInfo) {
	ki := MustGenerateKeyInfo(numSigners, 42)
	return NewMockSigner(ki), ki
}

// MustGenerateKeyInfo generates n distinct secp keys from seed. The result
// is deterministic for stable tests; never use this for real keys.
func MustGenerateKeyInfo(n int, seed byte) []crypto.KeyInfo {
	token := bytes.Repeat([]byte{seed}, 512)
	var keyinfos []crypto.KeyInfo
	for i := 0; i < n; i++ {
		token[0] = byte(i)
		ki, err := crypto.NewSecpKeyFromSeed(bytes.NewReader(token))
		if err != nil {
			panic(err)
		}
		keyinfos = append(keyinfos, ki)
	}
	return keyinfos
}

// MustGenerateBLSKeyInfo generates n distinct bls keys from seed, with the
// same determinism caveats as MustGenerateKeyInfo.
func MustGenerateBLSKeyInfo(n int, seed byte) []crypto.KeyInfo {
	token := bytes.Repeat([]byte{seed}, 512)
	var keyinfos []crypto.KeyInfo
	for i := 0; i < n; i++ {
		token[0] = byte(i)
		ki, err := crypto.NewBLSKeyFromSeed(bytes.NewReader(token))
		if err != nil {
			panic(err)
		}
		keyinfos = append(keyinfos, ki)
	}
	return keyinfos
}

// SignBytes signs data with the key behind addr.
func (ms MockSigner) SignBytes(_ context.Context, data []byte, addr address.Address) (crypto.Signature, error) {
	ki, ok := ms.AddrKeyInfo[addr]
	if !ok {
		return crypto.Signature{}, errors.New("unknown address")
	}
	var sig crypto.Signature
	err := ki.UsePrivateKey(func(privateKey []byte) error {
		var err error
		sig, err = crypto.Sign(data, privateKey, ki.SigType)
		return err
	})
	return sig, err
}

// HasAddress reports whether the signer can sign for addr.
func (ms MockSigner) HasAddress(_ context.Context, addr address.Address) (bool, error) {
	_, ok := ms.AddrKeyInfo[addr]
	return ok, nil
}
