package market

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/zcurve-labs/quote-engine/internal/domain"
)

const numShards = 16

// ShardedPoolMap is a sharded map for pool snapshots to reduce lock
// contention between the update feed and the quote path.
type ShardedPoolMap struct {
	shards [numShards]poolShard
}

type poolShard struct {
	mu    sync.RWMutex
	pools map[common.Address]*domain.Pool
}

// NewShardedPoolMap creates a new sharded pool map
func NewShardedPoolMap() *ShardedPoolMap {
	m := &ShardedPoolMap{}
	for i := 0; i < numShards; i++ {
		m.shards[i].pools = make(map[common.Address]*domain.Pool)
	}
	return m
}

// getShard returns the shard for a given address
func (m *ShardedPoolMap) getShard(key common.Address) *poolShard {
	// First address byte spreads well enough for contract addresses
	idx := key[0] % numShards
	return &m.shards[idx]
}

// Get retrieves a pool by address
func (m *ShardedPoolMap) Get(key common.Address) (*domain.Pool, bool) {
	shard := m.getShard(key)
	shard.mu.RLock()
	pool, ok := shard.pools[key]
	shard.mu.RUnlock()
	return pool, ok
}

// Set stores a pool
func (m *ShardedPoolMap) Set(key common.Address, pool *domain.Pool) {
	shard := m.getShard(key)
	shard.mu.Lock()
	shard.pools[key] = pool
	shard.mu.Unlock()
}

// Delete removes a pool
func (m *ShardedPoolMap) Delete(key common.Address) {
	shard := m.getShard(key)
	shard.mu.Lock()
	delete(shard.pools, key)
	shard.mu.Unlock()
}

// Len returns total count across all shards
func (m *ShardedPoolMap) Len() int {
	total := 0
	for i := 0; i < numShards; i++ {
		m.shards[i].mu.RLock()
		total += len(m.shards[i].pools)
		m.shards[i].mu.RUnlock()
	}
	return total
}

// Range iterates over all pools (acquires locks per shard)
func (m *ShardedPoolMap) Range(f func(key common.Address, pool *domain.Pool) bool) {
	for i := 0; i < numShards; i++ {
		m.shards[i].mu.RLock()
		for k, v := range m.shards[i].pools {
			if !f(k, v) {
				m.shards[i].mu.RUnlock()
				return
			}
		}
		m.shards[i].mu.RUnlock()
	}
}

// GetAll returns all pools as a slice
func (m *ShardedPoolMap) GetAll() []*domain.Pool {
	total := m.Len()
	result := make([]*domain.Pool, 0, total)

	for i := 0; i < numShards; i++ {
		m.shards[i].mu.RLock()
		for _, pool := range m.shards[i].pools {
			result = append(result, pool)
		}
		m.shards[i].mu.RUnlock()
	}
	return result
}

// ShardedSaleMap is a sharded map for bonding-curve sale snapshots,
// keyed by coin address.
type ShardedSaleMap struct {
	shards [numShards]saleShard
}

type saleShard struct {
	mu    sync.RWMutex
	sales map[common.Address]*domain.SaleParameters
}

// NewShardedSaleMap creates a new sharded sale map
func NewShardedSaleMap() *ShardedSaleMap {
	m := &ShardedSaleMap{}
	for i := 0; i < numShards; i++ {
		m.shards[i].sales = make(map[common.Address]*domain.SaleParameters)
	}
	return m
}

func (m *ShardedSaleMap) getShard(key common.Address) *saleShard {
	idx := key[0] % numShards
	return &m.shards[idx]
}

// Get retrieves a sale snapshot by coin address
func (m *ShardedSaleMap) Get(key common.Address) (*domain.SaleParameters, bool) {
	shard := m.getShard(key)
	shard.mu.RLock()
	sale, ok := shard.sales[key]
	shard.mu.RUnlock()
	return sale, ok
}

// Set stores a sale snapshot
func (m *ShardedSaleMap) Set(key common.Address, sale *domain.SaleParameters) {
	shard := m.getShard(key)
	shard.mu.Lock()
	shard.sales[key] = sale
	shard.mu.Unlock()
}

// Delete removes a sale snapshot
func (m *ShardedSaleMap) Delete(key common.Address) {
	shard := m.getShard(key)
	shard.mu.Lock()
	delete(shard.sales, key)
	shard.mu.Unlock()
}

// Exists checks if a coin has a sale snapshot
func (m *ShardedSaleMap) Exists(key common.Address) bool {
	shard := m.getShard(key)
	shard.mu.RLock()
	_, ok := shard.sales[key]
	shard.mu.RUnlock()
	return ok
}

// Len returns total count across all shards
func (m *ShardedSaleMap) Len() int {
	total := 0
	for i := 0; i < numShards; i++ {
		m.shards[i].mu.RLock()
		total += len(m.shards[i].sales)
		m.shards[i].mu.RUnlock()
	}
	return total
}

// Range iterates over all sales (acquires locks per shard)
func (m *ShardedSaleMap) Range(f func(key common.Address, sale *domain.SaleParameters) bool) {
	for i := 0; i < numShards; i++ {
		m.shards[i].mu.RLock()
		for k, v := range m.shards[i].sales {
			if !f(k, v) {
				m.shards[i].mu.RUnlock()
				return
			}
		}
		m.shards[i].mu.RUnlock()
	}
}

// GetAll returns all sale snapshots as a slice
func (m *ShardedSaleMap) GetAll() []*domain.SaleParameters {
	total := m.Len()
	result := make([]*domain.SaleParameters, 0, total)

	for i := 0; i < numShards; i++ {
		m.shards[i].mu.RLock()
		for _, sale := range m.shards[i].sales {
			result = append(result, sale)
		}
		m.shards[i].mu.RUnlock()
	}
	return result
}
