package data

import (
	"encoding/json"
	"fmt"

	"github.com/babencoin/babencoin/common"
)

// MessageKind discriminates the three PeerMessage variants.
type MessageKind int

const (
	KindBlock MessageKind = iota
	KindTransaction
	KindRequest
)

// PeerMessage is the untrusted, externally-tagged wire envelope:
// {"Block": {...}}, {"Transaction": {...}}, or
// {"Request": {"block_hash": "0x..."}} — exactly one field populated,
// selected by Kind.
type PeerMessage struct {
	Kind        MessageKind
	Block       Block
	Transaction Transaction
	RequestHash common.Hash
}

type requestPayload struct {
	BlockHash common.Hash `json:"block_hash"`
}

func (m PeerMessage) MarshalJSON() ([]byte, error) {
	switch m.Kind {
	case KindBlock:
		return json.Marshal(struct {
			Block Block `json:"Block"`
		}{m.Block})
	case KindTransaction:
		return json.Marshal(struct {
			Transaction Transaction `json:"Transaction"`
		}{m.Transaction})
	case KindRequest:
		return json.Marshal(struct {
			Request requestPayload `json:"Request"`
		}{requestPayload{m.RequestHash}})
	default:
		return nil, fmt.Errorf("peer message: unknown kind %d", m.Kind)
	}
}

func (m *PeerMessage) UnmarshalJSON(data []byte) error {
	var envelope struct {
		Block       *Block          `json:"Block"`
		Transaction *Transaction    `json:"Transaction"`
		Request     *requestPayload `json:"Request"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return err
	}
	switch {
	case envelope.Block != nil:
		m.Kind = KindBlock
		m.Block = *envelope.Block
	case envelope.Transaction != nil:
		m.Kind = KindTransaction
		m.Transaction = *envelope.Transaction
	case envelope.Request != nil:
		m.Kind = KindRequest
		m.RequestHash = envelope.Request.BlockHash
	default:
		return fmt.Errorf("peer message: no recognized variant in %s", string(data))
	}
	return nil
}

// Verified checks the message's own cryptographic content — block and
// transaction structural validity — with no chain context, turning an
// untrusted PeerMessage into a VerifiedPeerMessage. A Request carries
// no payload worth verifying beyond having parsed.
func (m PeerMessage) Verified() (VerifiedPeerMessage, error) {
	switch m.Kind {
	case KindBlock:
		vb, err := m.Block.Verified()
		if err != nil {
			return VerifiedPeerMessage{}, err
		}
		return VerifiedPeerMessage{Kind: KindBlock, Block: vb}, nil
	case KindTransaction:
		vt, err := m.Transaction.Verified()
		if err != nil {
			return VerifiedPeerMessage{}, err
		}
		return VerifiedPeerMessage{Kind: KindTransaction, Transaction: vt}, nil
	case KindRequest:
		return VerifiedPeerMessage{Kind: KindRequest, RequestHash: m.RequestHash}, nil
	default:
		return VerifiedPeerMessage{}, fmt.Errorf("peer message: unknown kind %d", m.Kind)
	}
}

// VerifiedPeerMessage is the trusted form GossipService operates on.
type VerifiedPeerMessage struct {
	Kind        MessageKind
	Block       VerifiedBlock
	Transaction VerifiedTransaction
	RequestHash common.Hash
}

// Unverified converts back to the wire form for retransmission —
// PeerService only ever sends VerifiedPeerMessage values it either
// received from one peer and is relaying to another, or built itself
// (mined blocks, forwarded requests).
func (m VerifiedPeerMessage) Unverified() PeerMessage {
	switch m.Kind {
	case KindBlock:
		return PeerMessage{Kind: KindBlock, Block: m.Block.Unverified()}
	case KindTransaction:
		return PeerMessage{Kind: KindTransaction, Transaction: m.Transaction.Unverified()}
	default:
		return PeerMessage{Kind: KindRequest, RequestHash: m.RequestHash}
	}
}

// NewBlockMessage builds the VerifiedPeerMessage wrapping a block.
func NewBlockMessage(b VerifiedBlock) VerifiedPeerMessage {
	return VerifiedPeerMessage{Kind: KindBlock, Block: b}
}

// NewTransactionMessage builds the VerifiedPeerMessage wrapping a transaction.
func NewTransactionMessage(t VerifiedTransaction) VerifiedPeerMessage {
	return VerifiedPeerMessage{Kind: KindTransaction, Transaction: t}
}

// NewRequestMessage builds the VerifiedPeerMessage requesting a block by hash.
func NewRequestMessage(h common.Hash) VerifiedPeerMessage {
	return VerifiedPeerMessage{Kind: KindRequest, RequestHash: h}
}
