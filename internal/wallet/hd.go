package wallet

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"

	"github.com/OKaluzny/btc-hdwallet/internal/chain"
	"github.com/OKaluzny/btc-hdwallet/internal/keytree"
	"github.com/OKaluzny/btc-hdwallet/internal/storage"
	"github.com/OKaluzny/btc-hdwallet/internal/tx"
	"github.com/OKaluzny/btc-hdwallet/pkg/models"
)

var (
	// ErrInvalidSecret is returned when the secret is neither a valid BIP39
	// mnemonic nor a public extended key.
	ErrInvalidSecret = errors.New("secret is neither a mnemonic nor an extended public key")

	// ErrWatchOnly is returned for operations that need the seed on a wallet
	// imported from an extended public key.
	ErrWatchOnly = errors.New("wallet is watch-only")

	// ErrInvalidChain is returned for chain selectors other than 0 and 1.
	ErrInvalidChain = errors.New("invalid chain")

	// ErrUnknownAddress is returned when an address is not in the cache.
	ErrUnknownAddress = errors.New("address not derived by this wallet")
)

// Config wires an HDWallet to its collaborators. Zero values get in-memory
// stores and mainnet parameters.
type Config struct {
	Params    *chaincfg.Params
	Cache     storage.AddressCache
	UTXOs     storage.UTXOStore
	Source    chain.TxSource
	BatchSize int
}

// HDWallet derives addresses and signing material for one account of one
// wallet kind. The secret is immutable; derived addresses are memoized for
// the lifetime of the instance. Private material is rebuilt from the secret
// on every use and never cached.
type HDWallet struct {
	kind      Kind
	secret    string
	watchOnly bool
	params    *chaincfg.Params
	root      keytree.Path

	cache     storage.AddressCache
	utxos     storage.UTXOStore
	source    chain.TxSource
	batchSize int
	builder   *tx.Builder
	logger    *slog.Logger

	mu      sync.Mutex
	xpub    string
	account *keytree.Node // public-only, parsed from xpub
}

// New creates a wallet of kind from a mnemonic or an extended public key.
func New(kind Kind, secret string, cfg Config) (*HDWallet, error) {
	if cfg.Params == nil {
		cfg.Params = &chaincfg.MainNetParams
	}
	if cfg.Cache == nil {
		cfg.Cache = storage.NewMemoryAddressCache()
	}
	if cfg.UTXOs == nil {
		cfg.UTXOs = storage.NewMemoryUTXOStore()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}

	w := &HDWallet{
		kind:      kind,
		secret:    secret,
		params:    cfg.Params,
		root:      kind.Root(cfg.Params),
		cache:     cfg.Cache,
		utxos:     cfg.UTXOs,
		source:    cfg.Source,
		batchSize: cfg.BatchSize,
		logger:    slog.Default().With("component", "hdwallet", "kind", kind.Name),
	}

	if !keytree.IsMnemonic(secret) {
		node, err := keytree.FromString(secret, cfg.Params)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidSecret, err)
		}
		if node.IsPrivate() {
			return nil, fmt.Errorf("%w: private extended keys are not accepted", ErrInvalidSecret)
		}
		if !kind.acceptsVersion(node.Version(), cfg.Params) {
			return nil, fmt.Errorf("%w: extended key version %x is not valid on %s",
				ErrInvalidSecret, node.Version(), cfg.Params.Name)
		}
		w.watchOnly = true
	}

	w.builder = tx.NewBuilder(w, cfg.Params)
	return w, nil
}

// Kind returns the wallet's kind descriptor.
func (w *HDWallet) Kind() Kind {
	return w.kind
}

// Capabilities returns the kind's static feature flags.
func (w *HDWallet) Capabilities() Capabilities {
	return w.kind.Capabilities
}

// IsWatchOnly reports whether the wallet was imported from an xpub.
func (w *HDWallet) IsWatchOnly() bool {
	return w.watchOnly
}

// Params returns the network parameters the wallet encodes for.
func (w *HDWallet) Params() *chaincfg.Params {
	return w.params
}

// Xpub returns the account extended public key. It is derived once and then
// served from memory.
func (w *HDWallet) Xpub() (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.xpubLocked()
}

func (w *HDWallet) xpubLocked() (string, error) {
	if w.xpub != "" {
		return w.xpub, nil
	}
	if w.watchOnly {
		w.xpub = w.secret
		return w.xpub, nil
	}

	account, err := w.privateNode(w.root)
	if err != nil {
		return "", err
	}
	pub, err := account.Neuter()
	if err != nil {
		return "", err
	}

	encoded := pub.String()
	if version, ok := w.kind.xpubVersion(w.params); ok {
		if encoded, err = pub.StringWithVersion(version); err != nil {
			return "", err
		}
	}

	w.xpub = encoded
	w.logger.Debug("derived account xpub", "path", w.root)
	return w.xpub, nil
}

// accountNode returns the public account node rebuilt from the cached xpub.
func (w *HDWallet) accountNode() (*keytree.Node, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.account != nil {
		return w.account, nil
	}
	xpub, err := w.xpubLocked()
	if err != nil {
		return nil, err
	}
	node, err := keytree.FromString(xpub, w.params)
	if err != nil {
		return nil, err
	}
	w.account = node
	return node, nil
}

// privateNode rebuilds the private node at path from the mnemonic. The
// result must not outlive the calling operation.
func (w *HDWallet) privateNode(path keytree.Path) (*keytree.Node, error) {
	if w.watchOnly {
		return nil, ErrWatchOnly
	}
	seed, err := keytree.MnemonicToSeed(w.secret)
	if err != nil {
		return nil, err
	}
	master, err := keytree.NewMaster(seed, w.params)
	clear(seed)
	if err != nil {
		return nil, err
	}
	return master.DerivePath(path)
}

// AddressAt returns the address at (chain, index). index may be any
// numeric-like value accepted by CoerceIndex.
func (w *HDWallet) AddressAt(c models.Chain, index any) (string, error) {
	idx, err := CoerceIndex(index)
	if err != nil {
		return "", err
	}
	return w.address(c, idx)
}

// ExternalAddress returns the receive address at index.
func (w *HDWallet) ExternalAddress(index uint32) (string, error) {
	return w.address(models.ChainExternal, index)
}

// InternalAddress returns the change address at index.
func (w *HDWallet) InternalAddress(index uint32) (string, error) {
	return w.address(models.ChainInternal, index)
}

func (w *HDWallet) address(c models.Chain, index uint32) (string, error) {
	if c != models.ChainExternal && c != models.ChainInternal {
		return "", fmt.Errorf("%w: %d", ErrInvalidChain, c)
	}
	if _, err := CoerceIndex(index); err != nil {
		return "", err
	}
	if addr, ok := w.cache.Get(c, index); ok {
		return addr, nil
	}

	pub, err := w.publicKey(c, index)
	if err != nil {
		return "", err
	}
	addr, err := w.kind.Encoder.Encode(pub, w.params)
	if err != nil {
		return "", err
	}

	encoded := addr.EncodeAddress()
	w.cache.Put(c, index, encoded)
	w.logger.Debug("derived address", "chain", c, "index", index)
	return encoded, nil
}

func (w *HDWallet) publicKey(c models.Chain, index uint32) (*btcec.PublicKey, error) {
	account, err := w.accountNode()
	if err != nil {
		return nil, err
	}
	child, err := account.DerivePath(keytree.Path{keytree.Soft(uint32(c)), keytree.Soft(index)})
	if err != nil {
		return nil, err
	}
	return child.PubKey()
}

// DeriveAddress returns the address at (chain, index) together with its
// public key and full derivation path.
func (w *HDWallet) DeriveAddress(c models.Chain, index uint32) (*models.DerivedAddress, error) {
	addr, err := w.address(c, index)
	if err != nil {
		return nil, err
	}
	pub, err := w.publicKey(c, index)
	if err != nil {
		return nil, err
	}
	return &models.DerivedAddress{
		Type:           w.kind.AddressType,
		Chain:          c,
		Index:          index,
		Address:        addr,
		DerivationPath: w.root.Child(keytree.Soft(uint32(c)), keytree.Soft(index)).String(),
		PublicKey:      hex.EncodeToString(pub.SerializeCompressed()),
	}, nil
}

// LocateAddress maps a previously derived address back to its derivation.
func (w *HDWallet) LocateAddress(address string) (*models.DerivedAddress, error) {
	c, index, ok := w.cache.Lookup(address)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAddress, address)
	}
	return w.DeriveAddress(c, index)
}

// WIFAt exports the private key at (internal ? 1 : 0, index). The key is
// derived from the mnemonic on every call and nothing is cached.
func (w *HDWallet) WIFAt(internal bool, index any) (string, error) {
	idx, err := CoerceIndex(index)
	if err != nil {
		return "", err
	}
	c := models.ChainExternal
	if internal {
		c = models.ChainInternal
	}

	node, err := w.privateNode(w.root.Child(keytree.Soft(uint32(c)), keytree.Soft(idx)))
	if err != nil {
		return "", err
	}
	return node.WIF()
}

// MasterFingerprint returns the root key fingerprint in PSBT byte order.
func (w *HDWallet) MasterFingerprint() (uint32, error) {
	master, err := w.privateNode(nil)
	if err != nil {
		return 0, err
	}
	return master.Fingerprint()
}

// BuildInput appends an input spending utxo to packet, using this wallet's
// master fingerprint in the derivation data.
func (w *HDWallet) BuildInput(packet *psbt.Packet, utxo models.UTXO, sequence uint32) (*psbt.Packet, error) {
	fp, err := w.MasterFingerprint()
	if err != nil {
		return nil, err
	}
	return w.builder.BuildInput(packet, utxo, sequence, fp)
}

// BuildInputWithFingerprint is BuildInput for watch-only wallets, where the
// fingerprint comes from the signing device.
func (w *HDWallet) BuildInputWithFingerprint(packet *psbt.Packet, utxo models.UTXO, sequence, masterFingerprint uint32) (*psbt.Packet, error) {
	return w.builder.BuildInput(packet, utxo, sequence, masterFingerprint)
}
