package wallet

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/chaincfg"

	"github.com/OKaluzny/btc-hdwallet/internal/keytree"
	"github.com/OKaluzny/btc-hdwallet/pkg/models"
)

// Capabilities are static feature flags consumed by wallet selection and UI
// layers. They carry no state.
type Capabilities struct {
	Send              bool
	SignVerifyMessage bool
	CosignPSBT        bool
	RBF               bool
	PayJoin           bool
	MasterFingerprint bool
	Xpub              bool
}

// Kind describes one wallet flavour: how its account root is reached, how
// public keys become addresses and what the wallet is allowed to do.
type Kind struct {
	Name         string
	TypeTag      string
	Readable     string
	AddressType  models.AddressType
	Encoder      AddressEncoder
	Capabilities Capabilities

	// purpose is the BIP43 purpose of the account root. Ignored when
	// breadwallet is set.
	purpose uint32
	// breadwallet wallets use the non-standard m/0' account root.
	breadwallet bool
	// slip132 exports the account key with zpub/vpub version bytes.
	slip132 bool
}

var (
	// LegacyP2PKH is a BIP44 wallet with 1... addresses.
	LegacyP2PKH = Kind{
		Name:        "legacy",
		TypeTag:     "HDlegacyP2PKH",
		Readable:    "HD Legacy (BIP44 P2PKH)",
		AddressType: models.AddressP2PKH,
		Encoder:     P2PKH{},
		Capabilities: Capabilities{
			Send:              true,
			SignVerifyMessage: true,
			RBF:               true,
			MasterFingerprint: true,
			Xpub:              true,
		},
		purpose: 44,
	}

	// Breadwallet is a P2PKH wallet rooted at m/0', compatible with
	// wallets restored from Breadwallet/BRD.
	Breadwallet = Kind{
		Name:        "breadwallet",
		TypeTag:     "HDLegacyBreadwallet",
		Readable:    "HD Legacy Breadwallet (P2PKH)",
		AddressType: models.AddressP2PKH,
		Encoder:     P2PKH{},
		Capabilities: Capabilities{
			Send:              true,
			SignVerifyMessage: true,
			MasterFingerprint: true,
			Xpub:              true,
		},
		breadwallet: true,
	}

	// SegwitBech32 is a BIP84 wallet with bc1q... addresses.
	SegwitBech32 = Kind{
		Name:        "segwit",
		TypeTag:     "HDsegwitBech32",
		Readable:    "HD SegWit (BIP84 Bech32 Native)",
		AddressType: models.AddressP2WPKH,
		Encoder:     P2WPKH{},
		Capabilities: Capabilities{
			Send:              true,
			SignVerifyMessage: true,
			CosignPSBT:        true,
			RBF:               true,
			PayJoin:           true,
			MasterFingerprint: true,
			Xpub:              true,
		},
		purpose: 84,
		slip132: true,
	}

	// Taproot is a BIP86 single-key wallet with bc1p... addresses.
	Taproot = Kind{
		Name:        "taproot",
		TypeTag:     "HDtaproot",
		Readable:    "HD Taproot (BIP86)",
		AddressType: models.AddressP2TR,
		Encoder:     P2TR{},
		Capabilities: Capabilities{
			Send:              true,
			CosignPSBT:        true,
			RBF:               true,
			MasterFingerprint: true,
			Xpub:              true,
		},
		purpose: 86,
	}
)

// Kinds lists every supported wallet kind.
func Kinds() []Kind {
	return []Kind{LegacyP2PKH, Breadwallet, SegwitBech32, Taproot}
}

// KindByName resolves a kind by its short name or type tag.
func KindByName(name string) (Kind, error) {
	for _, k := range Kinds() {
		if strings.EqualFold(name, k.Name) || name == k.TypeTag {
			return k, nil
		}
	}
	return Kind{}, fmt.Errorf("unknown wallet kind %q", name)
}

// Root returns the account derivation path for params. Non-mainnet networks
// use coin type 1'.
func (k Kind) Root(params *chaincfg.Params) keytree.Path {
	if k.breadwallet {
		return keytree.Path{keytree.Hard(0)}
	}
	return keytree.Path{
		keytree.Hard(k.purpose),
		keytree.Hard(params.HDCoinType),
		keytree.Hard(0),
	}
}

// acceptsVersion reports whether an imported extended public key with the
// given version bytes belongs to params: the network's own xpub/tpub bytes,
// or the SLIP-132 bytes this kind exports.
func (k Kind) acceptsVersion(version [4]byte, params *chaincfg.Params) bool {
	if version == params.HDPublicKeyID {
		return true
	}
	slip, ok := k.xpubVersion(params)
	return ok && version == slip
}

// xpubVersion returns the version bytes used when exporting the account
// key, or false to keep the network's default xpub/tpub bytes.
func (k Kind) xpubVersion(params *chaincfg.Params) ([4]byte, bool) {
	if !k.slip132 {
		return [4]byte{}, false
	}
	if params.Net == chaincfg.MainNetParams.Net {
		return [4]byte{0x04, 0xb2, 0x47, 0x46}, true // zpub
	}
	return [4]byte{0x04, 0x5f, 0x1c, 0xf6}, true // vpub
}
