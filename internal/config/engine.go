package config

import (
	"errors"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"github.com/zcurve-labs/quote-engine/internal/common"
)

type EngineConfig struct {
	// CacheCapacity is the per-direction quote cache size.
	// Default: 50
	CacheCapacity int

	// CacheTTLMillis is the quote cache entry lifetime in milliseconds.
	// Default: 2000
	CacheTTLMillis int

	// HopMarginBps is the safety haircut applied to the intermediate ETH
	// leg of token-to-token quotes, in basis points. Default: 200
	HopMarginBps int

	// ImpactEpsilonBps is the probe bump used by the price impact
	// estimator, in basis points. Default: 100
	ImpactEpsilonBps int

	// WETH is the wrapped-ether contract every tracked pool pairs against.
	WETH ethcommon.Address
}

func (c *EngineConfig) Load() error {
	c.CacheCapacity = getEnvOrDefaultInt("QUOTE_CACHE_CAPACITY", 50)
	c.CacheTTLMillis = getEnvOrDefaultInt("QUOTE_CACHE_TTL_MS", 2000)
	c.HopMarginBps = getEnvOrDefaultInt("QUOTE_HOP_MARGIN_BPS", 200)
	c.ImpactEpsilonBps = getEnvOrDefaultInt("QUOTE_IMPACT_EPSILON_BPS", 100)

	raw := getEnvOrDefault("WETH_ADDRESS", common.WETHMainnet.Hex())
	if !ethcommon.IsHexAddress(raw) {
		return errors.New("invalid WETH_ADDRESS: not a hex address")
	}
	c.WETH = ethcommon.HexToAddress(raw)
	return nil
}

func (c *EngineConfig) Validate() error {
	if c.HopMarginBps < 0 || c.HopMarginBps >= 10000 {
		return errors.New("invalid engine config: hop margin must be in [0, 10000)")
	}
	if c.ImpactEpsilonBps < 0 {
		return errors.New("invalid engine config: impact epsilon must be non-negative")
	}
	if c.WETH == common.ZeroAddress {
		return errors.New("invalid engine config: WETH address is zero")
	}
	return nil
}
