package tx

import (
	"fmt"

	"github.com/btcsuite/btcutil/bech32"

	"github.com/Charli3-Official/charli3-push-oracle-sdk/internal/core/oracle"
)

// Network selects the address namespace and the slot arithmetic.
type Network uint8

const (
	Mainnet Network = iota
	Preprod
	Preview
)

// ParseNetwork maps a config string onto a Network.
func ParseNetwork(s string) (Network, error) {
	switch s {
	case "mainnet":
		return Mainnet, nil
	case "preprod":
		return Preprod, nil
	case "preview":
		return Preview, nil
	default:
		return 0, fmt.Errorf("unknown network %q", s)
	}
}

func (n Network) String() string {
	switch n {
	case Mainnet:
		return "mainnet"
	case Preprod:
		return "preprod"
	case Preview:
		return "preview"
	default:
		return fmt.Sprintf("network(%d)", uint8(n))
	}
}

// hrp returns the bech32 human-readable prefix for the network.
func (n Network) hrp() string {
	if n == Mainnet {
		return "addr"
	}
	return "addr_test"
}

// tag is the low nibble of the address header byte.
func (n Network) tag() byte {
	if n == Mainnet {
		return 1
	}
	return 0
}

// Address header types. Only payment-credential (enterprise) addresses
// are produced here; staking components are out of scope for the engine.
const (
	headerKeyEnterprise    byte = 0x6
	headerScriptEnterprise byte = 0x7
)

// Address is a payment address: network tag plus a single payment
// credential.
type Address struct {
	Network Network
	Hash    oracle.KeyHash

	// IsScript marks a script credential instead of a key credential.
	IsScript bool
}

// NewKeyAddress builds an address paying to a verification key hash.
func NewKeyAddress(network Network, hash oracle.KeyHash) Address {
	return Address{Network: network, Hash: hash}
}

// NewScriptAddress builds an address paying to a script hash.
func NewScriptAddress(network Network, hash oracle.KeyHash) Address {
	return Address{Network: network, Hash: hash, IsScript: true}
}

// header returns the leading byte of the raw address.
func (a Address) header() byte {
	t := headerKeyEnterprise
	if a.IsScript {
		t = headerScriptEnterprise
	}
	return t<<4 | a.Network.tag()
}

// Raw returns the 29-byte wire form: header byte plus payment credential.
func (a Address) Raw() []byte {
	out := make([]byte, 1+oracle.KeyHashSize)
	out[0] = a.header()
	copy(out[1:], a.Hash[:])
	return out
}

// String bech32-encodes the address.
func (a Address) String() string {
	conv, err := bech32.ConvertBits(a.Raw(), 8, 5, true)
	if err != nil {
		return fmt.Sprintf("address(invalid: %v)", err)
	}
	s, err := bech32.Encode(a.Network.hrp(), conv)
	if err != nil {
		return fmt.Sprintf("address(invalid: %v)", err)
	}
	return s
}

// ParseAddress decodes a bech32 payment address and checks it against
// the expected network.
func ParseAddress(s string, network Network) (Address, error) {
	hrp, data, err := bech32.Decode(s)
	if err != nil {
		return Address{}, fmt.Errorf("address %q: %w", s, err)
	}
	if hrp != network.hrp() {
		return Address{}, fmt.Errorf("address %q: prefix %q does not match network %s", s, hrp, network)
	}
	raw, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return Address{}, fmt.Errorf("address %q: %w", s, err)
	}
	if len(raw) != 1+oracle.KeyHashSize {
		return Address{}, fmt.Errorf("address %q: unsupported payload length %d", s, len(raw))
	}
	header := raw[0]
	if header&0xf != network.tag() {
		return Address{}, fmt.Errorf("address %q: network tag mismatch", s)
	}
	var a Address
	a.Network = network
	switch header >> 4 {
	case headerKeyEnterprise:
	case headerScriptEnterprise:
		a.IsScript = true
	default:
		return Address{}, fmt.Errorf("address %q: unsupported header type %d", s, header>>4)
	}
	copy(a.Hash[:], raw[1:])
	return a, nil
}

// Equal compares two addresses.
func (a Address) Equal(other Address) bool {
	return a.Network == other.Network && a.IsScript == other.IsScript && a.Hash == other.Hash
}
