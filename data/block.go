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

// Block is the untrusted, wire form of a block: header attributes plus
// an ordered transaction list, not yet checked against a parent or a
// difficulty target.
type Block struct {
	Index        uint64          `json:"index"`
	Reward       uint64          `json:"reward"`
	Nonce        uint64          `json:"nonce"`
	Timestamp    time.Time       `json:"timestamp"`
	Issuer       common.WalletID `json:"issuer"`
	MaxHash      common.Hash     `json:"max_hash"`
	PrevHash     common.Hash     `json:"prev_hash"`
	Transactions []Transaction   `json:"transactions"`
	// IssuerSignature authenticates the header against Issuer, the way
	// a transaction's Signature authenticates it against Sender.
	IssuerSignature common.Signature `json:"issuer_signature"`
}

// headerBytes is the canonical encoding hashed and signed over. The
// transaction list is folded in by its own per-transaction hashes, so
// a change to any transaction changes the block hash without forcing
// the whole transaction body through the hash function twice.
func (b *Block) headerBytes() []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, b.Index)
	binary.Write(&buf, binary.BigEndian, b.Reward)
	binary.Write(&buf, binary.BigEndian, b.Nonce)
	binary.Write(&buf, binary.BigEndian, b.Timestamp.UnixNano())
	buf.Write(b.Issuer[:])
	buf.Write(b.MaxHash[:])
	buf.Write(b.PrevHash[:])
	binary.Write(&buf, binary.BigEndian, uint32(len(b.Transactions)))
	for i := range b.Transactions {
		h := b.Transactions[i].Hash()
		buf.Write(h[:])
	}
	return buf.Bytes()
}

// Hash returns the block's content address.
func (b *Block) Hash() common.Hash {
	digest := sha3.Sum256(b.headerBytes())
	return common.Hash(digest)
}

// Sign populates IssuerSignature using the issuer's private key. Used
// only by MiningService when it composes a candidate block.
func (b *Block) Sign(priv ed25519.PrivateKey) {
	sig := ed25519.Sign(priv, b.headerBytes())
	copy(b.IssuerSignature[:], sig)
}

// Verified checks every structural invariant a block must satisfy on
// its own, with no chain context: hash within the difficulty target,
// reward within bound, issuer signature, every transaction
// individually verified, and no transaction hash repeated within the
// block. It deliberately does NOT check balances or index continuity
// against a parent — PeerService calls Verified on every inbound
// message before it has any access to the forest, so those two checks
// are the responsibility of BlockForest.AddBlock, the only component
// that holds parent state (see DESIGN.md).
func (b Block) Verified() (VerifiedBlock, error) {
	if b.Reward > MaxReward {
		return VerifiedBlock{}, fmt.Errorf("block reward %d exceeds max reward %d", b.Reward, MaxReward)
	}
	hash := b.Hash()
	if b.MaxHash.Less(hash) {
		return VerifiedBlock{}, fmt.Errorf("block hash %s exceeds max hash %s", hash, b.MaxHash)
	}
	if !ed25519.Verify(ed25519.PublicKey(b.Issuer[:]), b.headerBytes(), b.IssuerSignature[:]) {
		return VerifiedBlock{}, fmt.Errorf("block %s: invalid issuer signature", hash)
	}

	seen := make(map[common.Hash]struct{}, len(b.Transactions))
	verifiedTxs := make([]VerifiedTransaction, 0, len(b.Transactions))
	for i := range b.Transactions {
		vt, err := b.Transactions[i].Verified()
		if err != nil {
			return VerifiedBlock{}, fmt.Errorf("block %s: transaction %d: %w", hash, i, err)
		}
		th := vt.Hash()
		if _, dup := seen[th]; dup {
			return VerifiedBlock{}, fmt.Errorf("block %s: duplicate transaction %s", hash, th)
		}
		seen[th] = struct{}{}
		verifiedTxs = append(verifiedTxs, vt)
	}

	return VerifiedBlock{block: b, hash: hash, verifiedTxs: verifiedTxs}, nil
}

// VerifiedBlock is a Block that has passed Verified(): its hash,
// signature, reward bound and every transaction have been checked.
type VerifiedBlock struct {
	block       Block
	hash        common.Hash
	verifiedTxs []VerifiedTransaction
}

func (v VerifiedBlock) Hash() common.Hash               { return v.hash }
func (v VerifiedBlock) Index() uint64                   { return v.block.Index }
func (v VerifiedBlock) Reward() uint64                  { return v.block.Reward }
func (v VerifiedBlock) Nonce() uint64                   { return v.block.Nonce }
func (v VerifiedBlock) Timestamp() time.Time            { return v.block.Timestamp }
func (v VerifiedBlock) Issuer() common.WalletID         { return v.block.Issuer }
func (v VerifiedBlock) MaxHash() common.Hash            { return v.block.MaxHash }
func (v VerifiedBlock) PrevHash() common.Hash           { return v.block.PrevHash }
func (v VerifiedBlock) Transactions() []VerifiedTransaction { return v.verifiedTxs }

// Unverified returns the wire form, for re-transmission to peers.
func (v VerifiedBlock) Unverified() Block { return v.block }

// Genesis builds the one fixed, well-known root of every babencoin
// forest: index 0, no transactions, no reward, a fixed timestamp and a
// fixed all-zero issuer wallet. It is constructed directly rather than
// through Verified() because genesis has no real issuer keypair to
// sign with — every forest trusts it by construction, the way the
// teacher trusts a hardcoded mainnet genesis hash.
func Genesis() VerifiedBlock {
	b := Block{
		Index:     0,
		Reward:    0,
		Nonce:     0,
		Timestamp: genesisTimestamp,
		Issuer:    common.WalletID{},
		MaxHash:   common.Hash{},
		PrevHash:  common.Hash{},
	}
	return VerifiedBlock{block: b, hash: b.Hash(), verifiedTxs: nil}
}

var genesisTimestamp = time.Unix(0, 0).UTC()
