package data_test

import (
	"crypto/ed25519"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/babencoin/babencoin/common"
	"github.com/babencoin/babencoin/data"
)

func signedBlock(t *testing.T, reward uint64, maxHash common.Hash) (data.Block, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	var issuer common.WalletID
	copy(issuer[:], pub)

	b := data.Block{
		Index:     1,
		Reward:    reward,
		Timestamp: time.Unix(1, 0).UTC(),
		Issuer:    issuer,
		MaxHash:   maxHash,
	}
	b.Sign(priv)
	return b, priv
}

func TestBlockVerifiedRejectsRewardAboveMax(t *testing.T) {
	b, _ := signedBlock(t, data.MaxReward+1, allOnes())
	_, err := b.Verified()
	assert.Error(t, err)
}

func TestBlockVerifiedRejectsHashAboveMaxHash(t *testing.T) {
	var tightTarget common.Hash // all zero: essentially unsatisfiable
	b, _ := signedBlock(t, 0, tightTarget)
	_, err := b.Verified()
	assert.Error(t, err)
}

func TestBlockVerifiedRejectsTamperedSignature(t *testing.T) {
	b, _ := signedBlock(t, 0, allOnes())
	b.Reward = 5 // header changed after signing
	_, err := b.Verified()
	assert.Error(t, err)
}

func TestBlockVerifiedRejectsDuplicateTransaction(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	var sender common.WalletID
	copy(sender[:], pub)

	tx := data.Transaction{Sender: sender, Amount: 1, Timestamp: time.Unix(5, 0).UTC()}
	tx.Sign(priv)

	b, _ := signedBlockWithTxs(t, []data.Transaction{tx, tx})
	_, err = b.Verified()
	assert.Error(t, err)
}

func signedBlockWithTxs(t *testing.T, txs []data.Transaction) (data.Block, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	var issuer common.WalletID
	copy(issuer[:], pub)

	b := data.Block{
		Index:        1,
		Timestamp:    time.Unix(1, 0).UTC(),
		Issuer:       issuer,
		MaxHash:      allOnes(),
		Transactions: txs,
	}
	b.Sign(priv)
	return b, priv
}

func TestGenesisHashIsDeterministic(t *testing.T) {
	assert.Equal(t, data.Genesis().Hash(), data.Genesis().Hash())
}

func allOnes() (h common.Hash) {
	for i := range h {
		h[i] = 0xff
	}
	return h
}
