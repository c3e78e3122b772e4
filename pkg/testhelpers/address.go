package testhelpers

import (
	"testing"

	"github.com/filecoin-project/go-address"
	"github.com/stretchr/testify/require"
)

// RequireIDAddress returns the ID address for the given actor id.
func RequireIDAddress(t *testing.T, i int) address.Address {
	a, err := address.NewIDAddress(uint64(i))
	require.NoError(t, err, "failed to make address")
	return a
}
