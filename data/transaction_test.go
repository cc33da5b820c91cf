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

func TestTransactionVerifiedAcceptsValidSignature(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	var sender common.WalletID
	copy(sender[:], pub)

	tx := data.Transaction{Sender: sender, Amount: 10, Timestamp: time.Unix(1, 0).UTC()}
	tx.Sign(priv)

	vt, err := tx.Verified()
	require.NoError(t, err)
	assert.Equal(t, tx.Hash(), vt.Hash())
}

func TestTransactionVerifiedRejectsTamperedAmount(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	var sender common.WalletID
	copy(sender[:], pub)

	tx := data.Transaction{Sender: sender, Amount: 10, Timestamp: time.Unix(1, 0).UTC()}
	tx.Sign(priv)
	tx.Amount = 99999

	_, err = tx.Verified()
	assert.Error(t, err)
}

func TestTransactionHashIsStableAcrossCalls(t *testing.T) {
	tx := data.Transaction{Amount: 5, Timestamp: time.Unix(2, 0).UTC()}
	assert.Equal(t, tx.Hash(), tx.Hash())
}
