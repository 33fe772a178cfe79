package keytree

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
)

var (
	// ErrNotPrivate is returned when private material is requested from a
	// public-only node.
	ErrNotPrivate = errors.New("node has no private key")

	// ErrHardenedFromPublic is returned when a hardened child is requested
	// from a public-only node.
	ErrHardenedFromPublic = errors.New("cannot derive hardened child from public node")
)

// Node is a BIP32 key-tree node bound to a network.
type Node struct {
	key    *hdkeychain.ExtendedKey
	params *chaincfg.Params
}

// NewMaster builds the root node from a BIP39 seed.
func NewMaster(seed []byte, params *chaincfg.Params) (*Node, error) {
	key, err := hdkeychain.NewMaster(seed, params)
	if err != nil {
		return nil, fmt.Errorf("master key: %w", err)
	}
	return &Node{key: key, params: params}, nil
}

// FromString parses a base58 extended key. Any version bytes are accepted so
// that SLIP-132 keys (zpub, vpub) can be imported alongside xpub/tpub.
func FromString(xkey string, params *chaincfg.Params) (*Node, error) {
	key, err := hdkeychain.NewKeyFromString(xkey)
	if err != nil {
		return nil, fmt.Errorf("parse extended key: %w", err)
	}
	return &Node{key: key, params: params}, nil
}

// Version returns the four version bytes the key was parsed or created with.
func (n *Node) Version() [4]byte {
	var v [4]byte
	copy(v[:], n.key.Version())
	return v
}

// Params returns the network the node encodes for.
func (n *Node) Params() *chaincfg.Params {
	return n.params
}

// IsPrivate reports whether the node holds a private key.
func (n *Node) IsPrivate() bool {
	return n.key.IsPrivate()
}

// Child derives one level below n.
func (n *Node) Child(seg Segment) (*Node, error) {
	if seg.Hardened && !n.key.IsPrivate() {
		return nil, fmt.Errorf("%w: %s", ErrHardenedFromPublic, seg)
	}
	child, err := n.key.Derive(seg.Uint32())
	if err != nil {
		return nil, fmt.Errorf("derive %s: %w", seg, err)
	}
	return &Node{key: child, params: n.params}, nil
}

// DerivePath walks path starting at n.
func (n *Node) DerivePath(path Path) (*Node, error) {
	cur := n
	for _, seg := range path {
		next, err := cur.Child(seg)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}

// Neuter returns a public-only copy of n.
func (n *Node) Neuter() (*Node, error) {
	pub, err := n.key.Neuter()
	if err != nil {
		return nil, fmt.Errorf("neuter: %w", err)
	}
	return &Node{key: pub, params: n.params}, nil
}

// String returns the base58 extended key with the node's own version bytes.
func (n *Node) String() string {
	return n.key.String()
}

// StringWithVersion serializes n under different version bytes, e.g. the
// SLIP-132 zpub prefix for native segwit accounts.
func (n *Node) StringWithVersion(version [4]byte) (string, error) {
	k, err := n.key.CloneWithVersion(version[:])
	if err != nil {
		return "", fmt.Errorf("clone with version: %w", err)
	}
	return k.String(), nil
}

// PubKey returns the node's public key.
func (n *Node) PubKey() (*btcec.PublicKey, error) {
	pub, err := n.key.ECPubKey()
	if err != nil {
		return nil, fmt.Errorf("public key: %w", err)
	}
	return pub, nil
}

// WIF exports the node's private key in compressed wallet-import-format.
func (n *Node) WIF() (string, error) {
	if !n.key.IsPrivate() {
		return "", ErrNotPrivate
	}
	priv, err := n.key.ECPrivKey()
	if err != nil {
		return "", fmt.Errorf("private key: %w", err)
	}
	wif, err := btcutil.NewWIF(priv, n.params, true)
	if err != nil {
		return "", fmt.Errorf("encode wif: %w", err)
	}
	return wif.String(), nil
}

// Fingerprint returns the first four bytes of Hash160(pubkey) in the byte
// order used by psbt.Bip32Derivation.MasterKeyFingerprint.
func (n *Node) Fingerprint() (uint32, error) {
	pub, err := n.PubKey()
	if err != nil {
		return 0, err
	}
	hash := btcutil.Hash160(pub.SerializeCompressed())
	return binary.LittleEndian.Uint32(hash[:4]), nil
}
