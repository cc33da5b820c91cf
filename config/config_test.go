package config_test

import (
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/babencoin/babencoin/config"
)

func TestDurationTextRoundTrip(t *testing.T) {
	var d config.Duration
	require.NoError(t, d.UnmarshalText([]byte("5s")))

	text, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "5s", string(text))
}

func TestDurationRejectsGarbage(t *testing.T) {
	var d config.Duration
	assert.Error(t, d.UnmarshalText([]byte("not-a-duration")))
}

func TestLoadParsesTomlOverDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "babencoin.toml")
	contents := `
data_dir = "/tmp/babencoin"

[peer_service]
listen_address = "0.0.0.0:9000"
dial_addresses = ["127.0.0.1:9001"]
dial_cooldown = "2s"

[mining_service]
thread_count = 4
max_tx_per_block = 16
`
	require.NoError(t, ioutil.WriteFile(path, []byte(contents), 0644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/babencoin", cfg.DataDir)
	assert.Equal(t, "0.0.0.0:9000", cfg.PeerService.ListenAddress)
	assert.Equal(t, []string{"127.0.0.1:9001"}, cfg.PeerService.DialAddresses)
	assert.Equal(t, 4, cfg.MiningService.ThreadCount)
}

func TestLoadRejectsUnknownField(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.toml")
	require.NoError(t, ioutil.WriteFile(path, []byte("not_a_real_field = true\n"), 0644))

	_, err := config.Load(path)
	assert.Error(t, err)
}

func TestDumpThenLoadRoundTrips(t *testing.T) {
	cfg := config.Default()
	cfg.PeerService.ListenAddress = "127.0.0.1:7777"

	dumped, err := config.Dump(cfg)
	require.NoError(t, err)

	dir := t.TempDir()
	path := filepath.Join(dir, "roundtrip.toml")
	require.NoError(t, ioutil.WriteFile(path, []byte(dumped), 0644))

	reloaded, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.PeerService.ListenAddress, reloaded.PeerService.ListenAddress)
	assert.Equal(t, cfg.MiningService.TargetMaxHash, reloaded.MiningService.TargetMaxHash)
}
