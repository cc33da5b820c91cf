package mining

import "github.com/babencoin/babencoin/data"

// Info is what GossipService publishes to MiningService every time the
// chain state the next block should build on changes: a new head, or a
// new transaction worth including. MiningService restarts its current
// nonce search whenever a fresh Info arrives.
type Info struct {
	Head                data.VerifiedBlock
	PendingTransactions []data.VerifiedTransaction
}
