package storage

import (
	"sync"

	"github.com/OKaluzny/btc-hdwallet/pkg/models"
)

type cacheSlot struct {
	chain models.Chain
	index uint32
}

// MemoryAddressCache is an in-memory AddressCache with one table per chain.
type MemoryAddressCache struct {
	mu       sync.RWMutex
	external map[uint32]string
	internal map[uint32]string
	reverse  map[string]cacheSlot
}

func NewMemoryAddressCache() *MemoryAddressCache {
	return &MemoryAddressCache{
		external: make(map[uint32]string),
		internal: make(map[uint32]string),
		reverse:  make(map[string]cacheSlot),
	}
}

func (c *MemoryAddressCache) table(chain models.Chain) map[uint32]string {
	if chain == models.ChainInternal {
		return c.internal
	}
	return c.external
}

func (c *MemoryAddressCache) Get(chain models.Chain, index uint32) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	addr, ok := c.table(chain)[index]
	return addr, ok
}

func (c *MemoryAddressCache) Put(chain models.Chain, index uint32, address string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.table(chain)[index] = address
	c.reverse[address] = cacheSlot{chain: chain, index: index}
}

func (c *MemoryAddressCache) Lookup(address string) (models.Chain, uint32, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	slot, ok := c.reverse[address]
	return slot.chain, slot.index, ok
}

func (c *MemoryAddressCache) Len(chain models.Chain) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.table(chain))
}

// MemoryUTXOStore is an in-memory UTXOStore.
type MemoryUTXOStore struct {
	mu    sync.RWMutex
	utxos []models.UTXO
}

func NewMemoryUTXOStore() *MemoryUTXOStore {
	return &MemoryUTXOStore{}
}

func (s *MemoryUTXOStore) List() ([]models.UTXO, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]models.UTXO, len(s.utxos))
	copy(result, s.utxos)
	return result, nil
}

func (s *MemoryUTXOStore) Replace(utxos []models.UTXO) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.utxos = make([]models.UTXO, len(utxos))
	copy(s.utxos, utxos)
	return nil
}
