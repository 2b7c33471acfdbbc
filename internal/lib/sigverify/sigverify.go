// Package sigverify recovers the signing address from an EIP-191
// personal_sign message/signature pair.
package sigverify

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"golang.org/x/crypto/sha3"
)

var ErrInvalidSignature = errors.New("invalid signature")

// RecoverSigner returns the 0x-prefixed address that produced signature over
// message. The signature is the 65-byte r||s||v hex string wallets emit from
// personal_sign; v may be 0/1 or 27/28.
func RecoverSigner(message, signature string) (string, error) {
	const op = "sigverify.RecoverSigner"

	sig, err := hex.DecodeString(strings.TrimPrefix(signature, "0x"))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidSignature)
	}
	if len(sig) != 65 {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidSignature)
	}

	// RecoverCompact wants the recovery id in front: v || r || s.
	v := sig[64]
	if v < 27 {
		v += 27
	}
	compact := make([]byte, 65)
	compact[0] = v
	copy(compact[1:], sig[:64])

	digest := personalSignDigest(message)
	pubKey, _, err := ecdsa.RecoverCompact(compact, digest)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidSignature)
	}

	return addressFromPubKey(pubKey.SerializeUncompressed()), nil
}

// Verify recovers the signer and compares it to claimedAddress,
// case-insensitively.
func Verify(message, signature, claimedAddress string) (bool, error) {
	signer, err := RecoverSigner(message, signature)
	if err != nil {
		return false, err
	}
	return strings.EqualFold(signer, claimedAddress), nil
}

// personalSignDigest hashes the message with the EIP-191 prefix.
func personalSignDigest(message string) []byte {
	prefixed := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(message), message)
	return keccak256([]byte(prefixed))
}

// addressFromPubKey derives the Ethereum address: the last 20 bytes of the
// keccak256 of the uncompressed public key without its 0x04 prefix.
func addressFromPubKey(uncompressed []byte) string {
	hash := keccak256(uncompressed[1:])
	return "0x" + hex.EncodeToString(hash[12:])
}

func keccak256(data []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	return h.Sum(nil)
}
