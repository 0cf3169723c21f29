package market

import (
	"errors"
	"fmt"
	"math/big"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/zcurve-labs/quote-engine/internal/domain"
	"github.com/zcurve-labs/quote-engine/internal/metrics"
)

var (
	ErrPoolNotFound   = errors.New("pool not found")
	ErrSaleNotFound   = errors.New("sale not found")
	ErrBadSnapshot    = errors.New("invalid snapshot")
	ErrNoRouteThrough = errors.New("no ready ETH pair for token")
)

// MarketRegistry is the in-memory source of truth for pool and sale
// snapshots. Stored values are treated as immutable: every mutation
// replaces the entry with an updated clone, and every read hands out a
// clone, so the quote path never observes a half-written snapshot.
type MarketRegistry struct {
	weth    common.Address
	pools   *ShardedPoolMap
	sales   *ShardedSaleMap
	updates atomic.Uint64
}

func NewMarketRegistry(weth common.Address) *MarketRegistry {
	return &MarketRegistry{
		weth:  weth,
		pools: NewShardedPoolMap(),
		sales: NewShardedSaleMap(),
	}
}

// WETH returns the wrapped-ETH address pools are flagged against.
func (r *MarketRegistry) WETH() common.Address {
	return r.weth
}

// UpsertPool validates and stores a pool snapshot. Reserves are
// nil-normalized, flags are recomputed and a missing update timestamp
// is stamped with the current time.
func (r *MarketRegistry) UpsertPool(pool *domain.Pool) error {
	if pool == nil {
		return fmt.Errorf("%w: nil pool", ErrBadSnapshot)
	}
	if pool.Address == (common.Address{}) {
		return fmt.Errorf("%w: zero pool address", ErrBadSnapshot)
	}
	if pool.Token0 == pool.Token1 {
		return fmt.Errorf("%w: pool %s pairs a token with itself", ErrBadSnapshot, pool.Address.Hex())
	}
	if pool.FeeBps >= 10000 {
		return fmt.Errorf("%w: fee %d bps", ErrBadSnapshot, pool.FeeBps)
	}

	stored := pool.Clone()
	stored.UpdateReserves(stored.Reserve0, stored.Reserve1)
	stored.UpdateFlags(r.weth)
	if stored.UpdatedAtMs == 0 {
		stored.UpdatedAtMs = time.Now().UnixMilli()
	}
	r.pools.Set(stored.Address, stored)

	r.updates.Add(1)
	metrics.PoolUpdates.Inc()
	r.refreshPoolGauges()
	return nil
}

// GetPool returns a clone of the pool snapshot at addr.
func (r *MarketRegistry) GetPool(addr common.Address) (*domain.Pool, bool) {
	pool, ok := r.pools.Get(addr)
	if !ok {
		return nil, false
	}
	return pool.Clone(), true
}

// ListPools returns clones of all pools, or only tradable ones.
func (r *MarketRegistry) ListPools(onlyReady bool) []*domain.Pool {
	out := make([]*domain.Pool, 0, r.pools.Len())
	r.pools.Range(func(_ common.Address, pool *domain.Pool) bool {
		if !onlyReady || Tradable(pool) {
			out = append(out, pool.Clone())
		}
		return true
	})
	return out
}

// UpdatePoolReserves replaces both reserve snapshots for addr.
func (r *MarketRegistry) UpdatePoolReserves(addr common.Address, reserve0, reserve1 *big.Int, updatedAtMs int64) error {
	old, ok := r.pools.Get(addr)
	if !ok {
		return fmt.Errorf("%w: %s", ErrPoolNotFound, addr.Hex())
	}
	if (reserve0 != nil && reserve0.Sign() < 0) || (reserve1 != nil && reserve1.Sign() < 0) {
		return fmt.Errorf("%w: negative reserve for %s", ErrBadSnapshot, addr.Hex())
	}

	next := old.Clone()
	next.UpdateReserves(reserve0, reserve1)
	if updatedAtMs == 0 {
		updatedAtMs = time.Now().UnixMilli()
	}
	next.UpdatedAtMs = updatedAtMs
	r.pools.Set(addr, next)

	r.updates.Add(1)
	metrics.PoolUpdates.Inc()
	return nil
}

// SetPoolStatus flips the activation gates on a pool.
func (r *MarketRegistry) SetPoolStatus(addr common.Address, active, ready bool) error {
	old, ok := r.pools.Get(addr)
	if !ok {
		return fmt.Errorf("%w: %s", ErrPoolNotFound, addr.Hex())
	}
	next := old.Clone()
	next.SetActive(active)
	next.SetReady(ready)
	next.UpdatedAtMs = time.Now().UnixMilli()
	r.pools.Set(addr, next)

	r.updates.Add(1)
	metrics.PoolUpdates.Inc()
	r.refreshPoolGauges()
	return nil
}

// ETHPoolFor finds the deepest tradable pool pairing token with ETH,
// measured by the ETH-side reserve. This selects the legs of a
// token->ETH->token estimate.
func (r *MarketRegistry) ETHPoolFor(token common.Address) (*domain.Pool, error) {
	var best *domain.Pool
	var bestDepth *big.Int
	r.pools.Range(func(_ common.Address, pool *domain.Pool) bool {
		if !Tradable(pool) || !pool.HasFlags(domain.FlagETHPair) || !pool.HasToken(token) {
			return true
		}
		if pool.OtherToken(token) != r.weth {
			return true
		}
		depth, _, ok := pool.ReservesFor(r.weth)
		if !ok {
			return true
		}
		if best == nil || depth.Cmp(bestDepth) > 0 {
			best = pool
			bestDepth = depth
		}
		return true
	})
	if best == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoRouteThrough, token.Hex())
	}
	return best.Clone(), nil
}

// PoolForPair finds the deepest tradable pool holding both tokens,
// measured by the tokenIn-side reserve. Token order does not matter for
// matching, only for depth.
func (r *MarketRegistry) PoolForPair(tokenIn, tokenOut common.Address) (*domain.Pool, error) {
	var best *domain.Pool
	var bestDepth *big.Int
	r.pools.Range(func(_ common.Address, pool *domain.Pool) bool {
		if !Tradable(pool) || !pool.HasToken(tokenIn) || pool.OtherToken(tokenIn) != tokenOut {
			return true
		}
		depth, _, ok := pool.ReservesFor(tokenIn)
		if !ok {
			return true
		}
		if best == nil || depth.Cmp(bestDepth) > 0 {
			best = pool
			bestDepth = depth
		}
		return true
	})
	if best == nil {
		return nil, fmt.Errorf("%w: no pool for %s/%s", ErrPoolNotFound, tokenIn.Hex(), tokenOut.Hex())
	}
	return best.Clone(), nil
}

// Tradable reports whether quoting against the pool makes sense:
// activation gates open and both reserves funded.
func Tradable(pool *domain.Pool) bool {
	if pool == nil || !pool.IsReady() {
		return false
	}
	return pool.Reserve0 != nil && pool.Reserve0.Sign() > 0 &&
		pool.Reserve1 != nil && pool.Reserve1.Sign() > 0
}

// UpsertSale validates and stores a sale snapshot keyed by coin.
func (r *MarketRegistry) UpsertSale(sale *domain.SaleParameters) error {
	if sale == nil {
		return fmt.Errorf("%w: nil sale", ErrBadSnapshot)
	}
	if sale.Coin == (common.Address{}) {
		return fmt.Errorf("%w: zero coin address", ErrBadSnapshot)
	}
	if sale.SaleCap == nil || sale.SaleCap.Sign() <= 0 {
		return fmt.Errorf("%w: sale %s without a positive cap", ErrBadSnapshot, sale.Coin.Hex())
	}

	stored := sale.Clone()
	if stored.NetSold == nil {
		stored.NetSold = new(big.Int)
	}
	if stored.UpdatedAtMs == 0 {
		stored.UpdatedAtMs = time.Now().UnixMilli()
	}
	r.sales.Set(stored.Coin, stored)

	r.updates.Add(1)
	metrics.SaleUpdates.Inc()
	metrics.SaleCount.Set(float64(r.sales.Len()))
	return nil
}

// GetSale returns a clone of the sale snapshot for coin.
func (r *MarketRegistry) GetSale(coin common.Address) (*domain.SaleParameters, bool) {
	sale, ok := r.sales.Get(coin)
	if !ok {
		return nil, false
	}
	return sale.Clone(), true
}

// ListSales returns clones of all sale snapshots.
func (r *MarketRegistry) ListSales() []*domain.SaleParameters {
	out := make([]*domain.SaleParameters, 0, r.sales.Len())
	r.sales.Range(func(_ common.Address, sale *domain.SaleParameters) bool {
		out = append(out, sale.Clone())
		return true
	})
	return out
}

// UpdateNetSold moves a sale's sold level after a settled trade.
func (r *MarketRegistry) UpdateNetSold(coin common.Address, netSold *big.Int, updatedAtMs int64) error {
	old, ok := r.sales.Get(coin)
	if !ok {
		return fmt.Errorf("%w: %s", ErrSaleNotFound, coin.Hex())
	}
	if netSold == nil || netSold.Sign() < 0 {
		return fmt.Errorf("%w: netSold must be non-negative", ErrBadSnapshot)
	}
	if old.SaleCap != nil && netSold.Cmp(old.SaleCap) > 0 {
		return fmt.Errorf("%w: netSold %s exceeds cap %s", ErrBadSnapshot, netSold.String(), old.SaleCap.String())
	}

	next := old.Clone()
	next.NetSold = new(big.Int).Set(netSold)
	if updatedAtMs == 0 {
		updatedAtMs = time.Now().UnixMilli()
	}
	next.UpdatedAtMs = updatedAtMs
	r.sales.Set(coin, next)

	r.updates.Add(1)
	metrics.SaleUpdates.Inc()
	return nil
}

// PoolCount returns the number of stored pools.
func (r *MarketRegistry) PoolCount() int {
	return r.pools.Len()
}

// Updates returns the number of snapshot mutations since construction.
func (r *MarketRegistry) Updates() uint64 {
	return r.updates.Load()
}

// SaleCount returns the number of stored sales.
func (r *MarketRegistry) SaleCount() int {
	return r.sales.Len()
}

// ReadyPoolCount returns the number of tradable pools.
func (r *MarketRegistry) ReadyPoolCount() int {
	n := 0
	r.pools.Range(func(_ common.Address, pool *domain.Pool) bool {
		if Tradable(pool) {
			n++
		}
		return true
	})
	return n
}

func (r *MarketRegistry) refreshPoolGauges() {
	metrics.PoolCount.Set(float64(r.pools.Len()))
	metrics.ReadyPoolCount.Set(float64(r.ReadyPoolCount()))
}
