// Package eth wraps the go-ethereum primitives used for EIP-191
// personal-message signature recovery.
package eth

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// SignatureLength is the byte length of a [R || S || V] secp256k1 signature.
const SignatureLength = 65

var (
	ErrMalformedSignature = errors.New("signature must be 65 hex-encoded bytes")

	addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
)

// ValidAddress reports whether s is a well-formed 20-byte hex address.
func ValidAddress(s string) bool {
	return addressPattern.MatchString(s)
}

// NormalizeAddress lowercases a hex address for use as a canonical key.
func NormalizeAddress(s string) string {
	return strings.ToLower(s)
}

// DecodeSignature decodes a 0x-prefixed hex signature and checks its length.
func DecodeSignature(s string) ([]byte, error) {
	sig, err := hexutil.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedSignature, err)
	}
	if len(sig) != SignatureLength {
		return nil, fmt.Errorf("%w: got %d bytes", ErrMalformedSignature, len(sig))
	}
	return sig, nil
}

// RecoverSigner recovers the address that produced sig over the EIP-191
// personal-message hash of message. sig is mutated into the canonical
// recovery-id form when V is 27 or 28, as emitted by eth_sign and
// personal_sign.
func RecoverSigner(message string, sig []byte) (common.Address, error) {
	if len(sig) != SignatureLength {
		return common.Address{}, ErrMalformedSignature
	}

	// Work on a copy so callers can reuse the original bytes.
	normalized := make([]byte, SignatureLength)
	copy(normalized, sig)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}

	hash := accounts.TextHash([]byte(message))

	pub, err := crypto.SigToPub(hash, normalized)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover public key: %w", err)
	}

	return crypto.PubkeyToAddress(*pub), nil
}

// SameAddress compares two hex addresses case-insensitively.
func SameAddress(a, b string) bool {
	return strings.EqualFold(a, b)
}
