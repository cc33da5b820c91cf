// Package forest implements BlockForest, babencoin's authoritative
// in-memory chain state: every known block indexed by hash, the
// current head, and the pool of verified-but-unincluded transactions.
// It is the only package allowed to mutate chain state; the Forest
// guards itself with a single RWMutex, much as the teacher holds its
// blockchain/state database behind a state lock, and the original
// node's gossip_service.rs holds its Arc<RwLock<BlockForest>>.
package forest

import (
	"fmt"
	"sync"

	"github.com/babencoin/babencoin/common"
	"github.com/babencoin/babencoin/data"
	"github.com/babencoin/babencoin/log"
)

var logger = log.NewModuleLogger(log.Forest)

// Forest is the block forest. The zero value is not usable; use New.
type Forest struct {
	mu sync.RWMutex

	blocksByHash   map[common.Hash]data.VerifiedBlock
	balancesByHash map[common.Hash]map[common.WalletID]uint64

	headHash  common.Hash
	headIndex uint64

	// allTxs and txOrder together give a stable, insertion-ordered view
	// over every transaction this forest has ever accepted, either
	// directly (AddTransaction) or inside an accepted block. pending is
	// derived from this set on every head change.
	allTxs  map[common.Hash]data.VerifiedTransaction
	txOrder []common.Hash
	pending map[common.Hash]data.VerifiedTransaction
}

// New returns a forest containing only the genesis block.
func New() *Forest {
	genesis := data.Genesis()
	f := &Forest{
		blocksByHash:   make(map[common.Hash]data.VerifiedBlock),
		balancesByHash: make(map[common.Hash]map[common.WalletID]uint64),
		allTxs:         make(map[common.Hash]data.VerifiedTransaction),
		pending:        make(map[common.Hash]data.VerifiedTransaction),
	}
	f.blocksByHash[genesis.Hash()] = genesis
	f.balancesByHash[genesis.Hash()] = make(map[common.WalletID]uint64)
	f.headHash = genesis.Hash()
	f.headIndex = genesis.Index()
	return f
}

// FindBlock looks up a block by hash in O(1).
func (f *Forest) FindBlock(h common.Hash) (data.VerifiedBlock, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	b, ok := f.blocksByHash[h]
	return b, ok
}

// Head returns the block with the greatest index, ties broken by
// smallest hash.
func (f *Forest) Head() data.VerifiedBlock {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.blocksByHash[f.headHash]
}

// PendingTransactions returns a snapshot slice of verified transactions
// not yet included along the path from genesis to head, whose senders
// have sufficient balance at head.
func (f *Forest) PendingTransactions() []data.VerifiedTransaction {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]data.VerifiedTransaction, 0, len(f.pending))
	for _, hash := range f.txOrder {
		if tx, ok := f.pending[hash]; ok {
			out = append(out, tx)
		}
	}
	return out
}

// AddBlock verifies b.PrevHash is known, replays balances from the
// parent, rejects a duplicate hash or a balance-violating transaction,
// and on success stores b, drops its transactions from the pending
// pool, recomputes head, and — if head moved — recomputes pending
// against the new head.
func (f *Forest) AddBlock(b data.VerifiedBlock) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.blocksByHash[b.Hash()]; exists {
		return fmt.Errorf("block %s already known", b.Hash())
	}
	parent, ok := f.blocksByHash[b.PrevHash()]
	if !ok {
		return fmt.Errorf("block %s: parent %s not found", b.Hash(), b.PrevHash())
	}
	if b.Index() != parent.Index()+1 {
		return fmt.Errorf("block %s: index %d is not parent index %d + 1", b.Hash(), b.Index(), parent.Index())
	}

	balances := copyBalances(f.balancesByHash[parent.Hash()])
	seenSenders := make(map[common.WalletID]struct{}, len(b.Transactions()))
	for _, tx := range b.Transactions() {
		need := tx.Amount() + tx.Fee()
		if balances[tx.Sender()] < need {
			return fmt.Errorf("block %s: transaction %s: sender %s balance %d below %d", b.Hash(), tx.Hash(), tx.Sender(), balances[tx.Sender()], need)
		}
		if _, dup := seenSenders[tx.Sender()]; dup {
			// Not strictly forbidden by the core double-spend check
			// (each is individually solvent against the running
			// balance), kept only to surface accidental duplicate
			// senders in logs; it is not an error.
			logger.Trace("multiple transactions from same sender in block", "block", b.Hash(), "sender", tx.Sender())
		}
		seenSenders[tx.Sender()] = struct{}{}
		balances[tx.Sender()] -= need
		balances[tx.Receiver()] += tx.Amount()
	}
	balances[b.Issuer()] += b.Reward()

	f.blocksByHash[b.Hash()] = b
	f.balancesByHash[b.Hash()] = balances
	for _, tx := range b.Transactions() {
		f.remember(tx)
		delete(f.pending, tx.Hash())
	}

	f.recomputeHead()
	return nil
}

// AddTransaction rejects a duplicate hash or insufficient balance at
// head, otherwise inserts t into the pending pool.
func (f *Forest) AddTransaction(t data.VerifiedTransaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	hash := t.Hash()
	if _, exists := f.allTxs[hash]; exists {
		return fmt.Errorf("transaction %s already known", hash)
	}
	balances := f.balancesByHash[f.headHash]
	need := t.Amount() + t.Fee()
	if balances[t.Sender()] < need {
		return fmt.Errorf("transaction %s: sender %s balance %d below %d", hash, t.Sender(), balances[t.Sender()], need)
	}
	f.remember(t)
	f.pending[hash] = t
	return nil
}

func (f *Forest) remember(t data.VerifiedTransaction) {
	hash := t.Hash()
	if _, ok := f.allTxs[hash]; ok {
		return
	}
	f.allTxs[hash] = t
	f.txOrder = append(f.txOrder, hash)
}

// recomputeHead finds the stored block maximizing (index, -hash),
// and, if it differs from the current head, recomputes pending
// transactions against it. Callers must hold f.mu for writing.
func (f *Forest) recomputeHead() {
	best := f.blocksByHash[f.headHash]
	for _, b := range f.blocksByHash {
		if b.Index() > best.Index() || (b.Index() == best.Index() && b.Hash().Less(best.Hash())) {
			best = b
		}
	}
	if best.Hash() == f.headHash {
		return
	}
	logger.Debug("head changed", "from", f.headHash, "to", best.Hash(), "index", best.Index())
	f.headHash = best.Hash()
	f.headIndex = best.Index()
	f.recomputePending()
}

// recomputePending drops any pending transaction now included on the
// path from genesis to the new head, or now insolvent at the new
// head's balances, and returns any transaction previously included on
// the old head's chain but not on the new one, if it is still valid.
// Callers must hold f.mu for writing.
func (f *Forest) recomputePending() {
	included := f.includedTransactionHashes(f.headHash)
	balances := copyBalances(f.balancesByHash[f.headHash])

	next := make(map[common.Hash]data.VerifiedTransaction)
	for _, hash := range f.txOrder {
		if _, ok := included[hash]; ok {
			continue
		}
		tx := f.allTxs[hash]
		need := tx.Amount() + tx.Fee()
		if balances[tx.Sender()] < need {
			continue
		}
		balances[tx.Sender()] -= need
		next[hash] = tx
	}
	f.pending = next
}

// includedTransactionHashes walks from hash to genesis, collecting the
// hash of every transaction included along the way. Callers must hold
// f.mu for at least reading.
func (f *Forest) includedTransactionHashes(hash common.Hash) map[common.Hash]struct{} {
	included := make(map[common.Hash]struct{})
	for {
		b, ok := f.blocksByHash[hash]
		if !ok {
			break
		}
		for _, tx := range b.Transactions() {
			included[tx.Hash()] = struct{}{}
		}
		if b.Index() == 0 {
			break
		}
		hash = b.PrevHash()
	}
	return included
}

func copyBalances(src map[common.WalletID]uint64) map[common.WalletID]uint64 {
	dst := make(map[common.WalletID]uint64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
