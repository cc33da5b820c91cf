package node

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

const nodeKeyFileName = "nodekey"

// loadOrCreateNodeKey returns the Ed25519 keypair this node signs
// mined blocks with. A non-empty dataDir persists it to a nodekey
// file, hex-encoded, the same single-file convention the teacher's
// gennodekey tooling uses for its node identity key; an empty dataDir
// (an ephemeral node) always generates a fresh key.
func loadOrCreateNodeKey(dataDir string) (ed25519.PrivateKey, error) {
	if dataDir == "" {
		_, priv, err := ed25519.GenerateKey(rand.Reader)
		return priv, errors.Wrap(err, "generating ephemeral node key")
	}

	path := filepath.Join(dataDir, nodeKeyFileName)
	if raw, err := ioutil.ReadFile(path); err == nil {
		decoded, err := hex.DecodeString(string(raw))
		if err != nil {
			return nil, errors.Wrapf(err, "decoding node key at %s", path)
		}
		if len(decoded) != ed25519.PrivateKeySize {
			return nil, errors.Errorf("node key at %s has wrong length %d", path, len(decoded))
		}
		return ed25519.PrivateKey(decoded), nil
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "reading node key at %s", path)
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, errors.Wrapf(err, "creating data directory %s", dataDir)
	}
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, errors.Wrap(err, "generating node key")
	}
	if err := ioutil.WriteFile(path, []byte(hex.EncodeToString(priv)), 0600); err != nil {
		return nil, errors.Wrapf(err, "writing node key to %s", path)
	}
	return priv, nil
}
