// Package config holds babencoin's TOML-loadable configuration, one
// section per service, the way the teacher's klayConfig bundles
// cn.Config and node.Config for its own dumpconfig/gen_config
// machinery.
package config

import (
	"bytes"
	"fmt"
	"io/ioutil"
	"reflect"
	"time"
	"unicode"

	"github.com/naoina/toml"
	"github.com/pkg/errors"

	"github.com/babencoin/babencoin/common"
)

// Duration wraps time.Duration so config fields accept the same
// human-readable strings ("5s", "100ms") the original node's
// `#[serde(with = "humantime_serde")]` fields did.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return errors.Wrapf(err, "config: invalid duration %q", string(text))
	}
	d.Duration = parsed
	return nil
}

// PeerServiceConfig configures dialing, accepting and reconnect
// behavior. See spec §6.
type PeerServiceConfig struct {
	DialCooldown   Duration `toml:"dial_cooldown"`
	DialAddresses  []string `toml:"dial_addresses"`
	ListenAddress  string   `toml:"listen_address"`
}

// GossipServiceConfig configures the propagation state machine.
type GossipServiceConfig struct {
	// EagerRequestsInterval is how often GossipService re-sends its
	// requests for parent blocks that are still missing. Zero disables
	// the re-requests.
	EagerRequestsInterval Duration `toml:"eager_requests_interval"`
}

// MiningServiceConfig configures the nonce-search worker pool.
type MiningServiceConfig struct {
	ThreadCount   int             `toml:"thread_count"`
	MaxTxPerBlock int             `toml:"max_tx_per_block"`

	// PublicKey is accepted for schema compatibility with spec.md's
	// config table but is not read: the block a miner signs must
	// verify against the signer's own public key, so the issuer wallet
	// is always derived from the node's loaded/generated Ed25519 key
	// (see node.loadOrCreateNodeKey), never set independently here.
	PublicKey common.WalletID `toml:"public_key"`

	// TargetMaxHash is the difficulty ceiling every block this node
	// mines declares as its own MaxHash. babencoin does not enforce a
	// network-wide minimum difficulty on inbound blocks beyond what
	// each block self-declares and satisfies (see DESIGN.md); this
	// field only controls how hard THIS node's own mining is.
	TargetMaxHash common.Hash `toml:"target_max_hash"`
}

// Config is the full, effective node configuration.
type Config struct {
	PeerService   PeerServiceConfig   `toml:"peer_service"`
	GossipService GossipServiceConfig `toml:"gossip_service"`
	MiningService MiningServiceConfig `toml:"mining_service"`

	// DataDir holds the node key and any other local state. Empty
	// means ephemeral (a fresh random key every run).
	DataDir string `toml:"data_dir"`
}

// Default returns the configuration a freshly-started node uses when
// no TOML file is supplied, mirroring the teacher's node.DefaultConfig.
func Default() Config {
	return Config{
		PeerService: PeerServiceConfig{
			DialCooldown: Duration{5 * time.Second},
		},
		MiningService: MiningServiceConfig{
			ThreadCount:   0,
			MaxTxPerBlock: 128,
			TargetMaxHash: trivialTargetMaxHash,
		},
	}
}

// trivialTargetMaxHash is the all-ones hash: the loosest possible
// target, satisfied by any block hash. It is the default so a freshly
// started devnet node can mine immediately without an operator having
// to tune a difficulty first.
var trivialTargetMaxHash = func() common.Hash {
	var h common.Hash
	for i := range h {
		h[i] = 0xff
	}
	return h
}()

// tomlSettings matches field names verbatim against TOML keys, the
// same convention the teacher's cmd/utils/nodecmd/dumpconfigcmd.go
// sets up for naoina/toml.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string { return key },
	FieldToKey: func(rt reflect.Type, field string) string { return field },
	MissingField: func(rt reflect.Type, field string) error {
		link := ""
		if unicode.IsUpper(rune(rt.Name()[0])) && rt.PkgPath() != "main" {
			link = fmt.Sprintf(", see %s#%s for available fields", rt.PkgPath(), rt.Name())
		}
		return fmt.Errorf("field %q is not defined in %s%s", field, rt.String(), link)
	},
}

// Load reads and parses a TOML configuration file on top of Default().
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "config: reading %s", path)
	}
	if err := tomlSettings.NewDecoder(bytes.NewReader(data)).Decode(&cfg); err != nil {
		return Config{}, errors.Wrapf(err, "config: parsing %s", path)
	}
	return cfg, nil
}

// Dump renders cfg back to TOML, the way the teacher's `dumpconfig`
// command does for operator review.
func Dump(cfg Config) (string, error) {
	var buf bytes.Buffer
	if err := tomlSettings.NewEncoder(&buf).Encode(&cfg); err != nil {
		return "", errors.Wrap(err, "config: encoding")
	}
	return buf.String(), nil
}
