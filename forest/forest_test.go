package forest_test

import (
	"crypto/ed25519"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/babencoin/babencoin/common"
	"github.com/babencoin/babencoin/data"
	"github.com/babencoin/babencoin/forest"
)

type wallet struct {
	id   common.WalletID
	priv ed25519.PrivateKey
}

func newWallet(t *testing.T) wallet {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	var id common.WalletID
	copy(id[:], pub)
	return wallet{id: id, priv: priv}
}

func mustTx(t *testing.T, from wallet, to wallet, amount, fee uint64) data.VerifiedTransaction {
	t.Helper()
	tx := data.Transaction{
		Sender:    from.id,
		Receiver:  to.id,
		Amount:    amount,
		Fee:       fee,
		Timestamp: time.Unix(1, 0).UTC(),
	}
	tx.Sign(from.priv)
	vt, err := tx.Verified()
	require.NoError(t, err)
	return vt
}

func mustBlock(t *testing.T, issuer wallet, index uint64, prev common.Hash, reward uint64, txs []data.Transaction, maxHash common.Hash) data.VerifiedBlock {
	t.Helper()
	b := data.Block{
		Index:        index,
		Reward:       reward,
		Nonce:        0,
		Timestamp:    time.Unix(int64(index), 0).UTC(),
		Issuer:       issuer.id,
		MaxHash:      maxHash,
		PrevHash:     prev,
		Transactions: txs,
	}
	b.Sign(issuer.priv)
	vb, err := b.Verified()
	require.NoError(t, err)
	return vb
}

var maxPossibleHash = func() common.Hash {
	var h common.Hash
	for i := range h {
		h[i] = 0xff
	}
	return h
}()

func TestGenesisIsHead(t *testing.T) {
	f := forest.New()
	genesis := data.Genesis()
	assert.Equal(t, genesis.Hash(), f.Head().Hash())
	_, ok := f.FindBlock(genesis.Hash())
	assert.True(t, ok)
}

func TestAddBlockExtendsHead(t *testing.T) {
	f := forest.New()
	miner := newWallet(t)
	genesis := f.Head()

	b1 := mustBlock(t, miner, 1, genesis.Hash(), 10, nil, maxPossibleHash)
	require.NoError(t, f.AddBlock(b1))

	assert.Equal(t, b1.Hash(), f.Head().Hash())
	_, ok := f.FindBlock(b1.Hash())
	assert.True(t, ok)
}

func TestAddBlockIdempotence(t *testing.T) {
	f := forest.New()
	miner := newWallet(t)
	b1 := mustBlock(t, miner, 1, f.Head().Hash(), 10, nil, maxPossibleHash)

	require.NoError(t, f.AddBlock(b1))
	err := f.AddBlock(b1)
	assert.Error(t, err)
	assert.Equal(t, b1.Hash(), f.Head().Hash())
}

func TestAddBlockRejectsOrphan(t *testing.T) {
	f := forest.New()
	miner := newWallet(t)
	orphanParent := common.Hash{0xAB}
	b := mustBlock(t, miner, 5, orphanParent, 10, nil, maxPossibleHash)

	err := f.AddBlock(b)
	assert.Error(t, err)
	_, ok := f.FindBlock(b.Hash())
	assert.False(t, ok)
}

func TestTransactionAcceptedAtExactBalance(t *testing.T) {
	f := forest.New()
	miner := newWallet(t)
	alice := newWallet(t)
	bob := newWallet(t)

	fund := mustBlock(t, miner, 1, f.Head().Hash(), 100, nil, maxPossibleHash)
	require.NoError(t, f.AddBlock(fund))
	// miner now has 100; route it to alice via a funding transaction
	// inside a second block, so alice has a spendable balance at head.
	give := data.Transaction{Sender: miner.id, Receiver: alice.id, Amount: 100, Fee: 0, Timestamp: time.Unix(2, 0).UTC()}
	give.Sign(miner.priv)

	b2 := mustBlock(t, miner, 2, fund.Hash(), 0, []data.Transaction{give}, maxPossibleHash)
	require.NoError(t, f.AddBlock(b2))

	spend := mustTx(t, alice, bob, 100, 0)
	require.NoError(t, f.AddTransaction(spend))

	pending := f.PendingTransactions()
	require.Len(t, pending, 1)
	assert.Equal(t, spend.Hash(), pending[0].Hash())
}

func TestTransactionRejectedWhenOverBalance(t *testing.T) {
	f := forest.New()
	alice := newWallet(t)
	bob := newWallet(t)

	spend := mustTx(t, alice, bob, 1, 0)
	err := f.AddTransaction(spend)
	assert.Error(t, err)
	assert.Empty(t, f.PendingTransactions())
}

func TestReorgToLongerFork(t *testing.T) {
	f := forest.New()
	miner := newWallet(t)
	genesis := f.Head()

	a1 := mustBlock(t, miner, 1, genesis.Hash(), 10, nil, maxPossibleHash)
	require.NoError(t, f.AddBlock(a1))

	b1 := mustBlock(t, miner, 1, genesis.Hash(), 5, nil, maxPossibleHash)
	require.NoError(t, f.AddBlock(b1))
	// a1 and b1 tie on index; head stays on whichever hashes smaller.
	assert.Equal(t, 1, int(f.Head().Index()))

	b2 := mustBlock(t, miner, 2, b1.Hash(), 5, nil, maxPossibleHash)
	require.NoError(t, f.AddBlock(b2))

	assert.Equal(t, b2.Hash(), f.Head().Hash())
	assert.Equal(t, uint64(2), f.Head().Index())
}
