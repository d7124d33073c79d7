package p2p

import (
	"crypto/rand"
	"os"

	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/mezonai/textchain/common"
	"github.com/pkg/errors"
)

// GenerateIdentity makes a fresh Ed25519 key pair.
func GenerateIdentity() (crypto.PrivKey, error) {
	priv, _, err := crypto.GenerateEd25519Key(rand.Reader)
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate ed25519 key")
	}
	return priv, nil
}

// LoadIdentity reads a base58 key file written by EncodeIdentity. An empty
// path yields a fresh identity.
func LoadIdentity(path string) (crypto.PrivKey, error) {
	if path == "" {
		return GenerateIdentity()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read key file %s", path)
	}
	return DecodeIdentity(string(data))
}

// EncodeIdentity renders priv as base58 of its libp2p protobuf encoding.
func EncodeIdentity(priv crypto.PrivKey) (string, error) {
	raw, err := crypto.MarshalPrivateKey(priv)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal private key")
	}
	return common.EncodeBytesToBase58(raw), nil
}

// DecodeIdentity accepts the EncodeIdentity form or a bare 64-byte Ed25519
// private key, both base58.
func DecodeIdentity(encoded string) (crypto.PrivKey, error) {
	raw, err := common.DecodeBase58ToBytes(encoded)
	if err != nil {
		return nil, err
	}
	if priv, err := crypto.UnmarshalPrivateKey(raw); err == nil {
		return priv, nil
	}
	priv, err := crypto.UnmarshalEd25519PrivateKey(raw)
	if err != nil {
		return nil, errors.Wrap(err, "key is neither a libp2p nor an ed25519 private key")
	}
	return priv, nil
}

// LooksLikePeerID is the console heuristic for a peer id line.
func LooksLikePeerID(line string) bool {
	return len(line) == PeerIDLength && common.IsValidBase58(line)
}

// PeerIDOf returns the printable peer id for priv.
func PeerIDOf(priv crypto.PrivKey) (peer.ID, error) {
	return peer.IDFromPrivateKey(priv)
}
