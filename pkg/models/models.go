package models

// Chain selects the BIP44 change branch of an account.
type Chain uint32

// Derivation branches below the account node.
const (
	ChainExternal Chain = 0 // receive addresses
	ChainInternal Chain = 1 // change addresses
)

func (c Chain) String() string {
	if c == ChainInternal {
		return "internal"
	}
	return "external"
}

// AddressType is the output encoding a wallet derives.
type AddressType string

// Supported address encodings.
const (
	AddressP2PKH  AddressType = "p2pkh"
	AddressP2WPKH AddressType = "p2wpkh"
	AddressP2TR   AddressType = "p2tr"
)

// DerivedAddress holds a generated address with its derivation path
type DerivedAddress struct {
	Type           AddressType `json:"type"`
	Chain          Chain       `json:"chain"`
	Index          uint32      `json:"index"`
	Address        string      `json:"address"`
	DerivationPath string      `json:"derivation_path"`
	PublicKey      string      `json:"public_key"`
}

// UTXO is an unspent output owned by the wallet. TxHex carries the raw
// previous transaction and is mandatory for spending legacy outputs.
type UTXO struct {
	Txid    string `json:"txid"`
	Vout    uint32 `json:"vout"`
	Address string `json:"address"`
	TxHex   string `json:"txhex,omitempty"`
	Value   int64  `json:"value"`
}
