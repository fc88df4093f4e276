// Package suiwallet implements verification of Sui wallet personal-message
// signatures. Wallets sign the blake2b-256 digest of an intent-prefixed,
// BCS-encoded message with their Ed25519 key, and serialize the result as
// base64(flag || signature || publicKey). The wallet address is derived from
// the public key, so a valid signature also proves control of the address.
package suiwallet

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// SchemeEd25519 is the signature scheme flag for Ed25519 keys.
// Other Sui schemes (secp256k1, secp256r1, multisig) are not supported here.
const SchemeEd25519 byte = 0x00

const (
	// AddressLength is the byte length of a Sui address.
	AddressLength = 32

	serializedSigLen = 1 + ed25519.SignatureSize + ed25519.PublicKeySize
)

// intentPersonalMessage is the 3-byte intent prefix for personal message
// signing: scope=PersonalMessage(3), version=V0(0), app=Sui(0).
var intentPersonalMessage = []byte{3, 0, 0}

// Signature is a parsed Sui serialized signature.
type Signature struct {
	Scheme    byte
	Signature []byte
	PublicKey ed25519.PublicKey
}

// ParseSignature decodes a base64 serialized signature.
func ParseSignature(serialized string) (Signature, error) {
	raw, err := base64.StdEncoding.DecodeString(serialized)
	if err != nil {
		return Signature{}, fmt.Errorf("base64 decode failed: %w", err)
	}
	if len(raw) != serializedSigLen {
		return Signature{}, fmt.Errorf("invalid signature length: got %d, want %d", len(raw), serializedSigLen)
	}
	if raw[0] != SchemeEd25519 {
		return Signature{}, fmt.Errorf("unsupported signature scheme 0x%02x", raw[0])
	}
	return Signature{
		Scheme:    raw[0],
		Signature: raw[1 : 1+ed25519.SignatureSize],
		PublicKey: ed25519.PublicKey(raw[1+ed25519.SignatureSize:]),
	}, nil
}

// Serialize encodes the signature back to its base64 wire form.
func (s Signature) Serialize() string {
	raw := make([]byte, 0, serializedSigLen)
	raw = append(raw, s.Scheme)
	raw = append(raw, s.Signature...)
	raw = append(raw, s.PublicKey...)
	return base64.StdEncoding.EncodeToString(raw)
}

// DeriveAddress computes the Sui address for an Ed25519 public key:
// 0x-prefixed hex of blake2b-256(flag || publicKey).
func DeriveAddress(pub ed25519.PublicKey) string {
	h, _ := blake2b.New256(nil)
	h.Write([]byte{SchemeEd25519})
	h.Write(pub)
	return "0x" + hex.EncodeToString(h.Sum(nil))
}

// ValidateAddress checks that a string is a well-formed Sui address.
func ValidateAddress(address string) error {
	if !strings.HasPrefix(address, "0x") {
		return fmt.Errorf("address must have 0x prefix")
	}
	raw, err := hex.DecodeString(address[2:])
	if err != nil {
		return fmt.Errorf("address is not hex: %w", err)
	}
	if len(raw) != AddressLength {
		return fmt.Errorf("invalid address length: got %d bytes, want %d", len(raw), AddressLength)
	}
	return nil
}

// personalMessageDigest computes the digest a wallet signs for a personal
// message: blake2b-256(intent || bcs(message)), where the BCS encoding of a
// byte vector is a ULEB128 length prefix followed by the raw bytes.
func personalMessageDigest(message []byte) []byte {
	h, _ := blake2b.New256(nil)
	h.Write(intentPersonalMessage)
	h.Write(ulebEncode(uint64(len(message))))
	h.Write(message)
	return h.Sum(nil)
}

func ulebEncode(v uint64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			out = append(out, b|0x80)
			continue
		}
		return append(out, b)
	}
}

// VerifyPersonalMessage checks that serialized is a valid signature over
// message and that the signing key controls address.
// Returns nil on success, or an error describing the validation failure.
func VerifyPersonalMessage(message []byte, serialized, address string) error {
	sig, err := ParseSignature(serialized)
	if err != nil {
		return err
	}
	if derived := DeriveAddress(sig.PublicKey); !strings.EqualFold(derived, address) {
		return fmt.Errorf("address mismatch: signature key derives %s", derived)
	}
	if !ed25519.Verify(sig.PublicKey, personalMessageDigest(message), sig.Signature) {
		return fmt.Errorf("invalid signature")
	}
	return nil
}

// SignPersonalMessage produces a serialized signature over message.
// Wallets do this client-side; the server only needs it for tooling and tests.
func SignPersonalMessage(priv ed25519.PrivateKey, message []byte) string {
	sig := Signature{
		Scheme:    SchemeEd25519,
		Signature: ed25519.Sign(priv, personalMessageDigest(message)),
		PublicKey: priv.Public().(ed25519.PublicKey),
	}
	return sig.Serialize()
}
