package wallet

import (
	"context"

	"github.com/btcsuite/btcd/btcutil/psbt"

	"github.com/OKaluzny/btc-hdwallet/pkg/models"
)

// Deriver derives addresses and keys for one account and assembles PSBT
// inputs spending its outputs.
type Deriver interface {
	// Xpub returns the account extended public key
	Xpub() (string, error)

	// AddressAt returns the address at (chain, index)
	AddressAt(c models.Chain, index any) (string, error)

	// WIFAt exports the private key for a receive or change index
	WIFAt(internal bool, index any) (string, error)

	// MasterFingerprint identifies the root key to external signers
	MasterFingerprint() (uint32, error)

	// FetchUtxo returns UTXOs with previous transactions attached
	FetchUtxo(ctx context.Context) ([]models.UTXO, error)

	// BuildInput appends a signer-ready input to packet
	BuildInput(packet *psbt.Packet, utxo models.UTXO, sequence uint32) (*psbt.Packet, error)
}

var _ Deriver = (*HDWallet)(nil)
