package crypto

import (
	"encoding/json"
	"fmt"

	"github.com/awnumar/memguard"
	"github.com/filecoin-project/go-address"
	logging "github.com/ipfs/go-log/v2"
	"github.com/pkg/errors"
)

// Signature scheme names used in the serialized form.
const (
	stBLS       = "bls"
	stSecp256k1 = "secp256k1"
)

var log = logging.Logger("keyinfo")

// KeyInfo is a private key and the signature scheme it belongs to. The key
// bytes live in a memguard enclave and only exist in plaintext inside a
// UsePrivateKey callback.
type KeyInfo struct {
	PrivateKey *memguard.Enclave `json:"privateKey"`
	SigType    SigType           `json:"type"`
}

// SetPrivateKey seals privateKey into the enclave. The input buffer is
// wiped in the process.
func (ki *KeyInfo) SetPrivateKey(privateKey []byte) {
	ki.PrivateKey = memguard.NewEnclave(privateKey)
}

// UsePrivateKey runs f over the plaintext key. The plaintext buffer is
// destroyed when f returns and must not be retained.
func (ki *KeyInfo) UsePrivateKey(f func([]byte) error) error {
	buf, err := ki.PrivateKey.Open()
	if err != nil {
		return err
	}
	defer buf.Destroy()

	return f(buf.Bytes())
}

// Key returns a copy of the private key. The copy escapes the enclave's
// protection, so use with caution.
func (ki *KeyInfo) Key() []byte {
	var pk []byte
	err := ki.UsePrivateKey(func(privateKey []byte) error {
		pk = make([]byte, len(privateKey))
		copy(pk, privateKey)
		return nil
	})
	if err != nil {
		log.Errorf("got private key failed %v", err)
		return []byte{}
	}
	return pk
}

// PublicKey returns the public key part as uncompressed bytes.
func (ki *KeyInfo) PublicKey() ([]byte, error) {
	var pubKey []byte
	err := ki.UsePrivateKey(func(privateKey []byte) error {
		var err error
		pubKey, err = ToPublic(ki.SigType, privateKey)
		return err
	})
	return pubKey, err
}

// Address returns the address this key controls.
func (ki *KeyInfo) Address() (address.Address, error) {
	pubKey, err := ki.PublicKey()
	if err != nil {
		return address.Undef, err
	}
	switch ki.SigType {
	case SigTypeBLS:
		return address.NewBLSAddress(pubKey)
	case SigTypeSecp256k1:
		return address.NewSecp256k1Address(pubKey)
	default:
		return address.Undef, errors.Errorf("can not generate address for unknown crypto system: %d", ki.SigType)
	}
}

// The serialized form carries the key in plaintext with the scheme spelled
// out by name.
type keyInfoJSON struct {
	PrivateKey []byte          `json:"privateKey"`
	SigType    json.RawMessage `json:"type"`
}

func (ki KeyInfo) MarshalJSON() ([]byte, error) {
	var name string
	switch ki.SigType {
	case SigTypeBLS:
		name = stBLS
	case SigTypeSecp256k1:
		name = stSecp256k1
	default:
		return nil, fmt.Errorf("unsupported key type %d", ki.SigType)
	}
	var out []byte
	err := ki.UsePrivateKey(func(privateKey []byte) error {
		var err error
		out, err = json.Marshal(keyInfoJSON{
			PrivateKey: privateKey,
			SigType:    json.RawMessage(fmt.Sprintf("%q", name)),
		})
		return err
	})
	return out, err
}

func (ki *KeyInfo) UnmarshalJSON(data []byte) error {
	var k keyInfoJSON
	if err := json.Unmarshal(data, &k); err != nil {
		return err
	}

	// the type is a scheme name, or a bare number in older serializations
	var name string
	if err := json.Unmarshal(k.SigType, &name); err == nil {
		switch name {
		case stBLS:
			ki.SigType = SigTypeBLS
		case stSecp256k1:
			ki.SigType = SigTypeSecp256k1
		default:
			return fmt.Errorf("unknown sig type value: %s", name)
		}
	} else {
		var num int64
		if err := json.Unmarshal(k.SigType, &num); err != nil {
			return fmt.Errorf("unknown sig type: %s", k.SigType)
		}
		ki.SigType = SigType(num)
	}

	ki.SetPrivateKey(k.PrivateKey)
	return nil
}
