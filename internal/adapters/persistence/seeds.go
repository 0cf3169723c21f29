package persistence

import (
	"fmt"
	"os"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/tidwall/gjson"

	"github.com/zcurve-labs/quote-engine/internal/domain"
	"github.com/zcurve-labs/quote-engine/internal/services"
)

// LoadSeeds reads a JSON seed file shaped as
//
//	{"pools": [...], "sales": [...]}
//
// and returns the decodable snapshots. Individual malformed entries are
// skipped so one bad row cannot block a first boot; a file that is not
// JSON at all is an error.
func LoadSeeds(path string) ([]*domain.Pool, []*domain.SaleParameters, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	if !gjson.ValidBytes(data) {
		return nil, nil, fmt.Errorf("seed file %s is not valid JSON", path)
	}

	logger := services.NamedLogger("seed-loader")
	root := gjson.ParseBytes(data)

	var pools []*domain.Pool
	root.Get("pools").ForEach(func(_, entry gjson.Result) bool {
		pool, err := seedPool(entry)
		if err != nil {
			logger.Warn().Err(err).Str("entry", entry.Raw).Msg("skipping seed pool")
			return true
		}
		pools = append(pools, pool)
		return true
	})

	var sales []*domain.SaleParameters
	root.Get("sales").ForEach(func(_, entry gjson.Result) bool {
		sale, err := seedSale(entry)
		if err != nil {
			logger.Warn().Err(err).Str("entry", entry.Raw).Msg("skipping seed sale")
			return true
		}
		sales = append(sales, sale)
		return true
	})

	return pools, sales, nil
}

func seedPool(entry gjson.Result) (*domain.Pool, error) {
	address, err := seedAddress(entry, "address")
	if err != nil {
		return nil, err
	}
	token0, err := seedAddress(entry, "token0")
	if err != nil {
		return nil, err
	}
	token1, err := seedAddress(entry, "token1")
	if err != nil {
		return nil, err
	}
	reserve0, err := parseWei("reserve0", entry.Get("reserve0").String())
	if err != nil {
		return nil, err
	}
	reserve1, err := parseWei("reserve1", entry.Get("reserve1").String())
	if err != nil {
		return nil, err
	}

	fee := entry.Get("feeBps").Uint()
	if fee >= 10000 {
		return nil, fmt.Errorf("invalid feeBps %d", fee)
	}

	pool := &domain.Pool{
		Address:  address,
		Token0:   token0,
		Token1:   token1,
		Reserve0: reserve0,
		Reserve1: reserve1,
		FeeBps:   uint16(fee),
		// Seeds default to tradable unless the file says otherwise.
		Active: true,
		Ready:  true,
	}
	if v := entry.Get("active"); v.Exists() {
		pool.Active = v.Bool()
	}
	if v := entry.Get("ready"); v.Exists() {
		pool.Ready = v.Bool()
	}
	return pool, nil
}

func seedSale(entry gjson.Result) (*domain.SaleParameters, error) {
	coin, err := seedAddress(entry, "coin")
	if err != nil {
		return nil, err
	}
	saleCap, err := parseWei("saleCap", entry.Get("saleCap").String())
	if err != nil {
		return nil, err
	}
	divisor, err := parseWei("divisor", entry.Get("divisor").String())
	if err != nil {
		return nil, err
	}
	quadCap, err := parseWei("quadCap", entry.Get("quadCap").String())
	if err != nil {
		return nil, err
	}
	netSold, err := parseWei("netSold", entry.Get("netSold").String())
	if err != nil {
		return nil, err
	}
	unitScale, err := parseWei("unitScale", entry.Get("unitScale").String())
	if err != nil {
		return nil, err
	}

	return &domain.SaleParameters{
		Coin:      coin,
		SaleCap:   saleCap,
		Divisor:   divisor,
		QuadCap:   quadCap,
		NetSold:   netSold,
		UnitScale: unitScale,
	}, nil
}

func seedAddress(entry gjson.Result, field string) (ethcommon.Address, error) {
	return parseAddress(field, entry.Get(field).String())
}
