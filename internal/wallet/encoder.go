package wallet

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
)

// AddressEncoder turns a derived public key into an address.
type AddressEncoder interface {
	Encode(pub *btcec.PublicKey, params *chaincfg.Params) (btcutil.Address, error)
}

// P2PKH encodes Base58Check(version + Hash160(compressed pubkey)).
type P2PKH struct{}

func (P2PKH) Encode(pub *btcec.PublicKey, params *chaincfg.Params) (btcutil.Address, error) {
	addr, err := btcutil.NewAddressPubKeyHash(btcutil.Hash160(pub.SerializeCompressed()), params)
	if err != nil {
		return nil, fmt.Errorf("p2pkh: %w", err)
	}
	return addr, nil
}

// P2WPKH encodes a version 0 witness program as bech32.
type P2WPKH struct{}

func (P2WPKH) Encode(pub *btcec.PublicKey, params *chaincfg.Params) (btcutil.Address, error) {
	addr, err := btcutil.NewAddressWitnessPubKeyHash(btcutil.Hash160(pub.SerializeCompressed()), params)
	if err != nil {
		return nil, fmt.Errorf("p2wpkh: %w", err)
	}
	return addr, nil
}

// P2TR encodes the BIP86 key-path-only output key as a bech32m address.
type P2TR struct{}

func (P2TR) Encode(pub *btcec.PublicKey, params *chaincfg.Params) (btcutil.Address, error) {
	outputKey := txscript.ComputeTaprootKeyNoScript(pub)
	addr, err := btcutil.NewAddressTaproot(schnorr.SerializePubKey(outputKey), params)
	if err != nil {
		return nil, fmt.Errorf("p2tr: %w", err)
	}
	return addr, nil
}
