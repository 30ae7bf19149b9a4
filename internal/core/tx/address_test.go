package tx

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Charli3-Official/charli3-push-oracle-sdk/internal/core/oracle"
)

func keyHash(b byte) oracle.KeyHash {
	var kh oracle.KeyHash
	for i := range kh {
		kh[i] = b
	}
	return kh
}

func TestAddressRoundTrip(t *testing.T) {
	for _, network := range []Network{Mainnet, Preprod, Preview} {
		for _, script := range []bool{false, true} {
			addr := Address{Network: network, Hash: keyHash(0x42), IsScript: script}

			parsed, err := ParseAddress(addr.String(), network)
			require.NoError(t, err)
			assert.True(t, addr.Equal(parsed))
		}
	}
}

func TestAddressPrefix(t *testing.T) {
	key := NewKeyAddress(Mainnet, keyHash(1))
	assert.True(t, strings.HasPrefix(key.String(), "addr1"))

	test := NewKeyAddress(Preprod, keyHash(1))
	assert.True(t, strings.HasPrefix(test.String(), "addr_test1"))
}

func TestAddressHeader(t *testing.T) {
	key := NewKeyAddress(Mainnet, keyHash(1))
	assert.Equal(t, byte(0x61), key.Raw()[0])

	script := NewScriptAddress(Preview, keyHash(1))
	assert.Equal(t, byte(0x70), script.Raw()[0])
}

func TestParseAddressWrongNetwork(t *testing.T) {
	addr := NewKeyAddress(Mainnet, keyHash(7))
	_, err := ParseAddress(addr.String(), Preprod)
	require.Error(t, err)
}

func TestParseAddressGarbage(t *testing.T) {
	_, err := ParseAddress("addr1notanaddress", Mainnet)
	require.Error(t, err)
}

func TestParseNetwork(t *testing.T) {
	n, err := ParseNetwork("preprod")
	require.NoError(t, err)
	assert.Equal(t, Preprod, n)

	_, err = ParseNetwork("devnet")
	require.Error(t, err)
}
