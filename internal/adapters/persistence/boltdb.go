// Package persistence stores registry snapshots in a local BoltDB file
// so pools and sales survive a restart without waiting for the data
// source to repopulate them.
package persistence

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"time"

	"github.com/boltdb/bolt"
	"github.com/bytedance/sonic"
	ethcommon "github.com/ethereum/go-ethereum/common"

	"github.com/zcurve-labs/quote-engine/internal/domain"
	"github.com/zcurve-labs/quote-engine/internal/metrics"
	"github.com/zcurve-labs/quote-engine/internal/services"
)

const (
	PoolsBucket = "pools"
	SalesBucket = "sales"

	DefaultDBPath = "./data/quote-engine.db"
)

// StoredPool is the persisted form of a pool snapshot. Reserves travel
// as decimal strings: they routinely exceed uint64 and JSON numbers
// lose precision past 2^53.
type StoredPool struct {
	Address     string `json:"address"`
	Token0      string `json:"token0"`
	Token1      string `json:"token1"`
	Reserve0    string `json:"reserve0"`
	Reserve1    string `json:"reserve1"`
	FeeBps      uint16 `json:"feeBps"`
	Active      bool   `json:"active"`
	Ready       bool   `json:"ready"`
	UpdatedAtMs int64  `json:"updatedAtMs"`
}

// StoredSale is the persisted form of a sale snapshot, amounts as
// decimal strings for the same reason as StoredPool.
type StoredSale struct {
	Coin        string `json:"coin"`
	SaleCap     string `json:"saleCap"`
	Divisor     string `json:"divisor"`
	QuadCap     string `json:"quadCap"`
	NetSold     string `json:"netSold"`
	UnitScale   string `json:"unitScale"`
	UpdatedAtMs int64  `json:"updatedAtMs"`
}

// Storage is a BoltDB-backed snapshot store with one bucket per
// snapshot kind. Safe for concurrent use; bolt serializes writers.
type Storage struct {
	db     *bolt.DB
	dbPath string
	logger *services.ServiceLogger
}

func NewStorage(dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = DefaultDBPath
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// The timeout turns a second process holding the file lock into an
	// error instead of a silent hang.
	db, err := bolt.Open(dbPath, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database at %s: %w", dbPath, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{[]byte(PoolsBucket), []byte(SalesBucket)} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	logger := services.NamedLogger("snapshot-store")
	logger.Info().Str("path", dbPath).Msg("opened snapshot database")

	return &Storage{
		db:     db,
		dbPath: dbPath,
		logger: logger,
	}, nil
}

func (s *Storage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SavePoolBatch writes all pool snapshots in one transaction, keyed by
// pool address.
func (s *Storage) SavePoolBatch(pools []*domain.Pool) error {
	if len(pools) == 0 {
		return nil
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(PoolsBucket))
		for _, pool := range pools {
			data, err := sonic.Marshal(poolToStored(pool))
			if err != nil {
				return fmt.Errorf("failed to marshal pool %s: %w", pool.Address.Hex(), err)
			}
			if err := bucket.Put(pool.Address.Bytes(), data); err != nil {
				return fmt.Errorf("failed to store pool %s: %w", pool.Address.Hex(), err)
			}
		}
		return nil
	})
	if err != nil {
		metrics.SnapshotSaves.WithLabelValues(PoolsBucket, "error").Inc()
		s.logger.Error().Err(err).Int("count", len(pools)).Msg("failed to save pool batch")
		return err
	}

	metrics.SnapshotSaves.WithLabelValues(PoolsBucket, "success").Inc()
	s.logger.Debug().Int("count", len(pools)).Msg("saved pool batch")
	return nil
}

// SaveSaleBatch writes all sale snapshots in one transaction, keyed by
// coin address.
func (s *Storage) SaveSaleBatch(sales []*domain.SaleParameters) error {
	if len(sales) == 0 {
		return nil
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(SalesBucket))
		for _, sale := range sales {
			data, err := sonic.Marshal(saleToStored(sale))
			if err != nil {
				return fmt.Errorf("failed to marshal sale %s: %w", sale.Coin.Hex(), err)
			}
			if err := bucket.Put(sale.Coin.Bytes(), data); err != nil {
				return fmt.Errorf("failed to store sale %s: %w", sale.Coin.Hex(), err)
			}
		}
		return nil
	})
	if err != nil {
		metrics.SnapshotSaves.WithLabelValues(SalesBucket, "error").Inc()
		s.logger.Error().Err(err).Int("count", len(sales)).Msg("failed to save sale batch")
		return err
	}

	metrics.SnapshotSaves.WithLabelValues(SalesBucket, "success").Inc()
	s.logger.Debug().Int("count", len(sales)).Msg("saved sale batch")
	return nil
}

// LoadAllPools reads every persisted pool. Entries that no longer
// decode are skipped and counted, never fatal: a bad row must not take
// the rest of the snapshot down with it.
func (s *Storage) LoadAllPools() ([]*domain.Pool, error) {
	var pools []*domain.Pool
	skipped := 0

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(PoolsBucket))
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(key, value []byte) error {
			var stored StoredPool
			if err := sonic.Unmarshal(value, &stored); err != nil {
				s.logger.Warn().Str("key", fmt.Sprintf("%x", key)).Err(err).Msg("skipping undecodable pool")
				skipped++
				return nil
			}
			pool, err := storedToPool(&stored)
			if err != nil {
				s.logger.Warn().Str("address", stored.Address).Err(err).Msg("skipping invalid pool")
				skipped++
				return nil
			}
			pools = append(pools, pool)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list pools: %w", err)
	}

	if skipped > 0 {
		s.logger.Warn().Int("loaded", len(pools)).Int("skipped", skipped).Msg("pool load completed with skips")
	}
	return pools, nil
}

// LoadAllSales reads every persisted sale with the same skip-don't-fail
// policy as LoadAllPools.
func (s *Storage) LoadAllSales() ([]*domain.SaleParameters, error) {
	var sales []*domain.SaleParameters
	skipped := 0

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(SalesBucket))
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(key, value []byte) error {
			var stored StoredSale
			if err := sonic.Unmarshal(value, &stored); err != nil {
				s.logger.Warn().Str("key", fmt.Sprintf("%x", key)).Err(err).Msg("skipping undecodable sale")
				skipped++
				return nil
			}
			sale, err := storedToSale(&stored)
			if err != nil {
				s.logger.Warn().Str("coin", stored.Coin).Err(err).Msg("skipping invalid sale")
				skipped++
				return nil
			}
			sales = append(sales, sale)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list sales: %w", err)
	}

	if skipped > 0 {
		s.logger.Warn().Int("loaded", len(sales)).Int("skipped", skipped).Msg("sale load completed with skips")
	}
	return sales, nil
}

func poolToStored(pool *domain.Pool) *StoredPool {
	return &StoredPool{
		Address:     pool.Address.Hex(),
		Token0:      pool.Token0.Hex(),
		Token1:      pool.Token1.Hex(),
		Reserve0:    weiString(pool.Reserve0),
		Reserve1:    weiString(pool.Reserve1),
		FeeBps:      pool.FeeBps,
		Active:      pool.Active,
		Ready:       pool.Ready,
		UpdatedAtMs: pool.UpdatedAtMs,
	}
}

func storedToPool(stored *StoredPool) (*domain.Pool, error) {
	address, err := parseAddress("address", stored.Address)
	if err != nil {
		return nil, err
	}
	token0, err := parseAddress("token0", stored.Token0)
	if err != nil {
		return nil, err
	}
	token1, err := parseAddress("token1", stored.Token1)
	if err != nil {
		return nil, err
	}
	reserve0, err := parseWei("reserve0", stored.Reserve0)
	if err != nil {
		return nil, err
	}
	reserve1, err := parseWei("reserve1", stored.Reserve1)
	if err != nil {
		return nil, err
	}

	return &domain.Pool{
		Address:     address,
		Token0:      token0,
		Token1:      token1,
		Reserve0:    reserve0,
		Reserve1:    reserve1,
		FeeBps:      stored.FeeBps,
		Active:      stored.Active,
		Ready:       stored.Ready,
		UpdatedAtMs: stored.UpdatedAtMs,
	}, nil
}

func saleToStored(sale *domain.SaleParameters) *StoredSale {
	return &StoredSale{
		Coin:        sale.Coin.Hex(),
		SaleCap:     weiString(sale.SaleCap),
		Divisor:     weiString(sale.Divisor),
		QuadCap:     weiString(sale.QuadCap),
		NetSold:     weiString(sale.NetSold),
		UnitScale:   weiString(sale.UnitScale),
		UpdatedAtMs: sale.UpdatedAtMs,
	}
}

func storedToSale(stored *StoredSale) (*domain.SaleParameters, error) {
	coin, err := parseAddress("coin", stored.Coin)
	if err != nil {
		return nil, err
	}
	saleCap, err := parseWei("saleCap", stored.SaleCap)
	if err != nil {
		return nil, err
	}
	divisor, err := parseWei("divisor", stored.Divisor)
	if err != nil {
		return nil, err
	}
	quadCap, err := parseWei("quadCap", stored.QuadCap)
	if err != nil {
		return nil, err
	}
	netSold, err := parseWei("netSold", stored.NetSold)
	if err != nil {
		return nil, err
	}
	unitScale, err := parseWei("unitScale", stored.UnitScale)
	if err != nil {
		return nil, err
	}

	return &domain.SaleParameters{
		Coin:        coin,
		SaleCap:     saleCap,
		Divisor:     divisor,
		QuadCap:     quadCap,
		NetSold:     netSold,
		UnitScale:   unitScale,
		UpdatedAtMs: stored.UpdatedAtMs,
	}, nil
}

func weiString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func parseAddress(field, s string) (ethcommon.Address, error) {
	if !ethcommon.IsHexAddress(s) {
		return ethcommon.Address{}, fmt.Errorf("invalid %s %q", field, s)
	}
	return ethcommon.HexToAddress(s), nil
}

func parseWei(field, s string) (*big.Int, error) {
	if s == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid %s amount %q", field, s)
	}
	return v, nil
}
