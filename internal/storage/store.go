package storage

import "github.com/OKaluzny/btc-hdwallet/pkg/models"

// AddressCache memoizes derived addresses per (chain, index). Entries are
// never evicted.
type AddressCache interface {
	// Get returns the cached address for (chain, index), if any.
	Get(chain models.Chain, index uint32) (string, bool)
	// Put stores an address. Storing the same value twice is a no-op.
	Put(chain models.Chain, index uint32, address string)
	// Lookup maps an address back to the (chain, index) it was derived at.
	Lookup(address string) (models.Chain, uint32, bool)
	// Len returns the number of cached entries for chain.
	Len(chain models.Chain) int
}

// UTXOStore holds the wallet's unspent outputs as last reported by the
// chain backend.
type UTXOStore interface {
	// List returns a copy of all stored UTXOs.
	List() ([]models.UTXO, error)
	// Replace swaps the stored set for utxos.
	Replace(utxos []models.UTXO) error
}
