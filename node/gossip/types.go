package gossip

import "github.com/babencoin/babencoin/common"

// sessionKnowledge tracks, for one peer session, the set of block and
// transaction hashes we know that session has already seen — either
// because the message came from them, or because we already forwarded
// it. GossipService consults this before every send to satisfy the
// flood-suppression invariant: never send the same hash to the same
// session twice.
type sessionKnowledge struct {
	hashes map[common.Hash]struct{}
}

func newSessionKnowledge() *sessionKnowledge {
	return &sessionKnowledge{hashes: make(map[common.Hash]struct{})}
}

func (k *sessionKnowledge) has(h common.Hash) bool {
	_, ok := k.hashes[h]
	return ok
}

func (k *sessionKnowledge) mark(h common.Hash) {
	k.hashes[h] = struct{}{}
}
