package http

import (
	"errors"
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"github.com/zcurve-labs/quote-engine/internal/common"
	"github.com/zcurve-labs/quote-engine/internal/domain"
	"github.com/zcurve-labs/quote-engine/internal/http/httputil"
	"github.com/zcurve-labs/quote-engine/internal/quoter"
	"github.com/zcurve-labs/quote-engine/internal/services/market"
	"github.com/zcurve-labs/quote-engine/internal/services/pricing"
)

// DefaultSlippageBps is applied when the caller omits slippageBps.
const DefaultSlippageBps = 50

// bindAddress parses a 0x-prefixed hex address. It writes the 400
// itself so call sites can bail with a bare return.
func bindAddress(c *gin.Context, field, raw string) (ethcommon.Address, bool) {
	if !ethcommon.IsHexAddress(raw) {
		httputil.HandleBadRequest(c, "invalid "+field+" address")
		return ethcommon.Address{}, false
	}
	return ethcommon.HexToAddress(raw), true
}

// bindAmount parses a positive base-10 wei amount.
func bindAmount(c *gin.Context, field, raw string) (*big.Int, bool) {
	amount, ok := new(big.Int).SetString(raw, 10)
	if !ok || amount.Sign() <= 0 {
		httputil.HandleBadRequest(c, "invalid "+field+": must be a positive integer")
		return nil, false
	}
	return amount, true
}

// bindWei parses a non-negative base-10 wei amount (admin snapshot
// writes allow zero).
func bindWei(c *gin.Context, field, raw string) (*big.Int, bool) {
	amount, ok := new(big.Int).SetString(raw, 10)
	if !ok || amount.Sign() < 0 {
		httputil.HandleBadRequest(c, "invalid "+field+": must be a non-negative integer")
		return nil, false
	}
	return amount, true
}

func bindSwapMode(c *gin.Context, raw string) (domain.SwapMode, bool) {
	switch raw {
	case string(domain.SwapModeExactIn):
		return domain.SwapModeExactIn, true
	case string(domain.SwapModeExactOut):
		return domain.SwapModeExactOut, true
	default:
		httputil.HandleBadRequest(c, "invalid swapMode: must be ExactIn or ExactOut")
		return "", false
	}
}

func bindTradeSide(c *gin.Context, raw string) (domain.TradeSide, bool) {
	switch raw {
	case "buy":
		return domain.SideBuy, true
	case "sell":
		return domain.SideSell, true
	default:
		httputil.HandleBadRequest(c, "invalid side: must be buy or sell")
		return 0, false
	}
}

// mapEngineError translates engine sentinels into transport errors.
// Missing snapshots and unroutable pairs are 404s, user-correctable
// input is a 400, anything else is a 500 (a snapshot the engine itself
// rejects is not something the caller can fix).
func mapEngineError(err error) *common.HttpError {
	switch {
	case errors.Is(err, market.ErrPoolNotFound),
		errors.Is(err, market.ErrSaleNotFound),
		errors.Is(err, market.ErrNoRouteThrough),
		errors.Is(err, quoter.ErrNoRoute):
		return common.HTTPErrorNotFound(err.Error())
	case errors.Is(err, pricing.ErrBelowMinimumUnit),
		errors.Is(err, pricing.ErrInsufficientLiquidity),
		errors.Is(err, pricing.ErrNegativeInput),
		errors.Is(err, pricing.ErrInvalidFee),
		errors.Is(err, pricing.ErrInvalidRoute),
		errors.Is(err, market.ErrBadSnapshot),
		errors.Is(err, quoter.ErrSameToken):
		return common.HTTPErrorBadRequest(err.Error())
	default:
		return common.HTTPErrorInternalError(err.Error())
	}
}
