package crypto_test

import (
	"encoding/hex"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filecoin-project/go-fvm/pkg/crypto"
	tf "github.com/filecoin-project/go-fvm/pkg/testhelpers/testflags"
)

func TestKeyInfoEnclaveRoundTrip(t *testing.T) {
	tf.UnitTest(t)

	prv, err := hex.DecodeString("2a2a2a2a2a2a2a2a5fbf0ed0f8364c01ff27540ecd6669ff4cc548cbe60ef5ab")
	require.NoError(t, err)
	want := make([]byte, len(prv))
	copy(want, prv)

	ki := &crypto.KeyInfo{SigType: crypto.SigTypeSecp256k1}
	ki.SetPrivateKey(prv)

	// sealing wipes the input buffer
	assert.NotEqual(t, want, prv)
	assert.Equal(t, want, ki.Key())

	addr, err := ki.Address()
	require.NoError(t, err)
	t.Logf("address %s", addr)
}

func TestKeyInfoJSONRoundTrip(t *testing.T) {
	tf.UnitTest(t)

	prv := []byte("marshal_and_unmarshal_material_x")
	want := make([]byte, len(prv))
	copy(want, prv)

	ki := &crypto.KeyInfo{SigType: crypto.SigTypeSecp256k1}
	ki.SetPrivateKey(prv)
	require.NotNil(t, ki.PrivateKey)

	kiByte, err := json.Marshal(ki)
	require.NoError(t, err)
	assert.Contains(t, string(kiByte), `"secp256k1"`)

	var newKI crypto.KeyInfo
	require.NoError(t, json.Unmarshal(kiByte, &newKI))
	assert.Equal(t, want, newKI.Key())
	assert.Equal(t, ki.SigType, newKI.SigType)
}

func TestKeyInfoDecodesNumericSigType(t *testing.T) {
	tf.UnitTest(t)

	raw := []byte(`{"privateKey":"c2VjcmV0LWtleS1ieXRlcw==","type":2}`)
	var ki crypto.KeyInfo
	require.NoError(t, json.Unmarshal(raw, &ki))
	assert.Equal(t, crypto.SigTypeBLS, ki.SigType)
	assert.Equal(t, []byte("secret-key-bytes"), ki.Key())
}
