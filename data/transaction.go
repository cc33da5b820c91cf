// Package data holds babencoin's wire and domain types: transactions,
// blocks, and the peer-message envelope that carries them, along with
// the cryptographic verification primitives ("verified()" in the
// original node) that turn an untrusted wire value into a value the
// rest of the node may trust.
package data

import (
	"bytes"
	"crypto/ed25519"
	"encoding/binary"
	"fmt"
	"time"

	"golang.org/x/crypto/sha3"

	"github.com/babencoin/babencoin/common"
)

// MaxReward bounds the reward a block may mint for its issuer.
const MaxReward = 1_000_000

// Transaction is the untrusted, wire form of a value transfer: it has
// not yet had its signature checked.
type Transaction struct {
	Sender    common.WalletID  `json:"sender"`
	Receiver  common.WalletID  `json:"receiver"`
	Amount    uint64           `json:"amount"`
	Fee       uint64           `json:"fee"`
	Timestamp time.Time        `json:"timestamp"`
	Signature common.Signature `json:"signature"`
}

// signingBytes is the canonical encoding signed over and hashed: fixed
// field order and width so two semantically equal transactions always
// encode identically, regardless of wire-format whitespace or map
// ordering.
func (t *Transaction) signingBytes() []byte {
	var buf bytes.Buffer
	buf.Write(t.Sender[:])
	buf.Write(t.Receiver[:])
	binary.Write(&buf, binary.BigEndian, t.Amount)
	binary.Write(&buf, binary.BigEndian, t.Fee)
	binary.Write(&buf, binary.BigEndian, t.Timestamp.UnixNano())
	return buf.Bytes()
}

// Hash returns the transaction's content address.
func (t *Transaction) Hash() common.Hash {
	digest := sha3.Sum256(t.signingBytes())
	return common.Hash(digest)
}

// Verified checks the Ed25519 signature over the transaction's
// canonical encoding. Success yields a VerifiedTransaction: a phantom
// proof, carried forward so that a verified transaction never needs to
// be re-verified.
func (t Transaction) Verified() (VerifiedTransaction, error) {
	if !ed25519.Verify(ed25519.PublicKey(t.Sender[:]), t.signingBytes(), t.Signature[:]) {
		return VerifiedTransaction{}, fmt.Errorf("transaction %s: invalid signature", t.Hash())
	}
	return VerifiedTransaction{tx: t}, nil
}

// Sign populates Signature using the sender's private key. Used by
// tests, never by a peer-facing code path.
func (t *Transaction) Sign(priv ed25519.PrivateKey) {
	sig := ed25519.Sign(priv, t.signingBytes())
	copy(t.Signature[:], sig)
}

// VerifiedTransaction is a Transaction whose signature has been
// checked. It is the only form GossipService and BlockForest operate
// on once a transaction has left the wire-decoding boundary.
type VerifiedTransaction struct {
	tx Transaction
}

func (v VerifiedTransaction) Hash() common.Hash          { return v.tx.Hash() }
func (v VerifiedTransaction) Sender() common.WalletID    { return v.tx.Sender }
func (v VerifiedTransaction) Receiver() common.WalletID  { return v.tx.Receiver }
func (v VerifiedTransaction) Amount() uint64             { return v.tx.Amount }
func (v VerifiedTransaction) Fee() uint64                { return v.tx.Fee }
func (v VerifiedTransaction) Timestamp() time.Time       { return v.tx.Timestamp }

// Unverified returns the wire form, for re-transmission to peers.
func (v VerifiedTransaction) Unverified() Transaction { return v.tx }
