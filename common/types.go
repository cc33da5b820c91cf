// Package common holds the fixed-width, content-addressed identifier
// types shared by every babencoin package, in the spirit of the
// teacher's own common.Hash/common.Address: plain byte arrays with
// hex (de)serialization and no business logic attached.
package common

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// HashLength is the width, in bytes, of a BlockHash/TransactionHash.
const HashLength = 32

// Hash is a content address: the SHA3-256 digest of a canonical
// encoding. It backs both BlockHash and TransactionHash.
type Hash [HashLength]byte

// BytesToHash converts b into a Hash: a longer b is cropped from the
// left (its last HashLength bytes are kept), a shorter b is zero-padded
// on the left.
func BytesToHash(b []byte) Hash {
	var h Hash
	if len(b) > HashLength {
		b = b[len(b)-HashLength:]
	}
	copy(h[HashLength-len(b):], b)
	return h
}

func (h Hash) Bytes() []byte { return h[:] }

func (h Hash) Hex() string { return "0x" + hex.EncodeToString(h[:]) }

func (h Hash) String() string { return h.Hex() }

// IsZero reports whether h is the zero hash.
func (h Hash) IsZero() bool { return h == Hash{} }

// Less gives a deterministic total order over hashes, used to break
// head-selection ties (smallest hash wins among equal-index blocks).
func (h Hash) Less(other Hash) bool {
	for i := range h {
		if h[i] != other[i] {
			return h[i] < other[i]
		}
	}
	return false
}

func (h Hash) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.Hex())
}

func (h *Hash) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := HashFromHex(s)
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// HashFromHex parses the "0x"-prefixed hex form produced by Hex().
func HashFromHex(s string) (Hash, error) {
	s = trimHexPrefix(s)
	b, err := hex.DecodeString(s)
	if err != nil {
		return Hash{}, fmt.Errorf("invalid hash hex %q: %w", s, err)
	}
	if len(b) != HashLength {
		return Hash{}, fmt.Errorf("invalid hash length: got %d want %d", len(b), HashLength)
	}
	var h Hash
	copy(h[:], b)
	return h, nil
}

// WalletIDLength is the width, in bytes, of an Ed25519 public key.
const WalletIDLength = 32

// WalletID identifies a wallet by its Ed25519 public key.
type WalletID [WalletIDLength]byte

func (w WalletID) Bytes() []byte { return w[:] }

func (w WalletID) Hex() string { return "0x" + hex.EncodeToString(w[:]) }

func (w WalletID) String() string { return w.Hex() }

func (w WalletID) MarshalJSON() ([]byte, error) {
	return json.Marshal(w.Hex())
}

func (w *WalletID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := WalletIDFromHex(s)
	if err != nil {
		return err
	}
	*w = parsed
	return nil
}

// WalletIDFromHex parses the "0x"-prefixed hex form produced by Hex().
func WalletIDFromHex(s string) (WalletID, error) {
	s = trimHexPrefix(s)
	b, err := hex.DecodeString(s)
	if err != nil {
		return WalletID{}, fmt.Errorf("invalid wallet id hex %q: %w", s, err)
	}
	if len(b) != WalletIDLength {
		return WalletID{}, fmt.Errorf("invalid wallet id length: got %d want %d", len(b), WalletIDLength)
	}
	var w WalletID
	copy(w[:], b)
	return w, nil
}

// SignatureLength is the width, in bytes, of an Ed25519 signature.
const SignatureLength = 64

// Signature is an Ed25519 signature, hex-encoded on the wire like Hash
// and WalletID rather than left as a raw JSON array of 64 integers.
type Signature [SignatureLength]byte

func (s Signature) Bytes() []byte { return s[:] }

func (s Signature) Hex() string { return "0x" + hex.EncodeToString(s[:]) }

func (s Signature) String() string { return s.Hex() }

func (s Signature) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Hex())
}

func (s *Signature) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	parsed, err := SignatureFromHex(str)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// SignatureFromHex parses the "0x"-prefixed hex form produced by Hex().
func SignatureFromHex(s string) (Signature, error) {
	s = trimHexPrefix(s)
	b, err := hex.DecodeString(s)
	if err != nil {
		return Signature{}, fmt.Errorf("invalid signature hex %q: %w", s, err)
	}
	if len(b) != SignatureLength {
		return Signature{}, fmt.Errorf("invalid signature length: got %d want %d", len(b), SignatureLength)
	}
	var sig Signature
	copy(sig[:], b)
	return sig, nil
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
