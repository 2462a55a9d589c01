// Package domain holds the value types shared across giveroute packages.
package domain

import (
	"crypto/rand"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"

	dErrors "giveroute/pkg/domain-errors"
)

// AddressLength is the size in bytes of an account key.
const AddressLength = 32

// maxEncodedLength bounds input before decoding; a 32 byte key never
// encodes to more than 44 base58 characters.
const maxEncodedLength = 44

// Address identifies an account on the value ledger: a charity payout
// destination, a donor, or the controller. The zero Address is the "absent"
// sentinel and never names a live charity.
type Address [AddressLength]byte

// ZeroAddress is the sentinel for "no destination".
var ZeroAddress Address

// ParseAddress decodes a base58 account key. The encoded zero key is accepted
// and yields ZeroAddress so that callers can report their own error for it.
func ParseAddress(s string) (Address, error) {
	if s == "" {
		return Address{}, dErrors.New(dErrors.CodeBadRequest, "address is required")
	}
	if len(s) > maxEncodedLength || strings.TrimSpace(s) != s {
		return Address{}, dErrors.New(dErrors.CodeBadRequest, "invalid address format")
	}
	raw, err := base58.Decode(s)
	if err != nil {
		return Address{}, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid address format")
	}
	if len(raw) != AddressLength {
		return Address{}, dErrors.Newf(dErrors.CodeBadRequest, "address must decode to %d bytes, got %d", AddressLength, len(raw))
	}
	var a Address
	copy(a[:], raw)
	return a, nil
}

// ParseOptionalAddress is ParseAddress except that the empty string yields
// ZeroAddress instead of an error.
func ParseOptionalAddress(s string) (Address, error) {
	if s == "" {
		return ZeroAddress, nil
	}
	return ParseAddress(s)
}

// MustParseAddress panics on malformed input. Intended for tests and constants.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(fmt.Sprintf("domain: %v", err))
	}
	return a
}

// NewRandomAddress returns a random non-zero address.
func NewRandomAddress() Address {
	var a Address
	for a.IsZero() {
		if _, err := rand.Read(a[:]); err != nil {
			panic(fmt.Sprintf("domain: read random address: %v", err))
		}
	}
	return a
}

func (a Address) IsZero() bool {
	return a == ZeroAddress
}

func (a Address) String() string {
	return base58.Encode(a[:])
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseOptionalAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
