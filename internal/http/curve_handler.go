package http

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/zcurve-labs/quote-engine/internal/domain"
	"github.com/zcurve-labs/quote-engine/internal/http/httputil"
	"github.com/zcurve-labs/quote-engine/internal/quoter"
)

type CurveHandler struct {
	quoterSvc *quoter.Service
}

func NewCurveHandler(quoterSvc *quoter.Service) *CurveHandler {
	return &CurveHandler{quoterSvc: quoterSvc}
}

func (h *CurveHandler) Root() string {
	return "/curve"
}

func (h *CurveHandler) SetRoutes(pub *gin.RouterGroup, admin *gin.RouterGroup) {
	pub.GET("/quote", h.getCurveQuote)
	pub.GET("/chart", h.getCurveChart)
}

// CurveQuoteRequest represents the parameters for a bonding-curve preview
type CurveQuoteRequest struct {
	// Coin address whose sale curve to quote against
	Coin string `form:"coin" binding:"required" example:"0x1f9840a85d5aF5bf1D1762F925BDADdC4201F984"`

	// Trade side: buy mints coins off the curve, sell burns them back
	Side string `form:"side" binding:"required" enums:"buy,sell" example:"buy"`

	// Swap mode picks which leg the amount fixes. ExactIn fixes what
	// the caller pays (ETH on buys, coins on sells); ExactOut fixes
	// what the caller receives.
	SwapMode string `form:"swapMode" binding:"required" enums:"ExactIn,ExactOut" example:"ExactIn"`

	// Amount in wei of the fixed leg
	Amount string `form:"amount" binding:"required" example:"1000000000000000000"`
}

// CurveQuoteResponse is a settlement-exact bonding-curve preview
type CurveQuoteResponse struct {
	Coin     string `json:"coin"`
	Side     string `json:"side" enums:"buy,sell"`
	SwapMode string `json:"swapMode" enums:"ExactIn,ExactOut"`

	// Coin amount in wei, quantized down to the sale's unit grid
	TokenAmount string `json:"tokenAmount" example:"5000000000000000000"`

	// Exact wei the settlement path would move for tokenAmount
	EthAmount string `json:"ethAmount" example:"2500000000000"`

	// Spot price in wei per whole coin after the trade
	MarginalPriceWei string `json:"marginalPriceWei" example:"1000000000"`

	// True when a buy was cut short by the sale cap
	ClampedToSaleCap bool `json:"clampedToSaleCap"`

	// Unsold wei still purchasable on the curve
	Remaining string `json:"remaining" example:"995000000000000000000"`

	PriceImpactPercent  string `json:"priceImpactPercent,omitempty" example:"0.05%"`
	PriceImpactSeverity string `json:"priceImpactSeverity,omitempty" enums:"none,low,moderate,high,extreme"`
	PriceImpactWarning  string `json:"priceImpactWarning,omitempty"`
}

// CurveChartResponse carries sampled curve points for display
type CurveChartResponse struct {
	Coin   string              `json:"coin"`
	Points []domain.ChartPoint `json:"points"`
}

// @Summary Get bonding-curve quote
// @Description Preview a buy or sell against a coin's bonding curve. Token amounts
// @Description are quantized down to the sale's unit grid before pricing, so the
// @Description returned tokenAmount can be smaller than implied by the request;
// @Description ethAmount is exact for the returned tokenAmount. Buys past the sale
// @Description cap are clamped and flagged.
// @Tags curve
// @Produce json
// @Param coin query string true "Coin address"
// @Param side query string true "Trade side" Enums(buy, sell)
// @Param swapMode query string true "Which leg the amount fixes" Enums(ExactIn, ExactOut)
// @Param amount query string true "Amount in wei of the fixed leg" example("1000000000000000000")
// @Success 200 {object} CurveQuoteResponse "Settlement-exact preview"
// @Failure 400 {object} httputil.Response "Invalid parameters or amount below one sale unit"
// @Failure 404 {object} httputil.Response "No sale tracked for the coin"
// @Router /api/v1/curve/quote [get]
func (h *CurveHandler) getCurveQuote(c *gin.Context) {
	var req CurveQuoteRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httputil.HandleBadRequest(c, "invalid query parameters: "+err.Error())
		return
	}

	coin, ok := bindAddress(c, "coin", req.Coin)
	if !ok {
		return
	}
	side, ok := bindTradeSide(c, req.Side)
	if !ok {
		return
	}
	mode, ok := bindSwapMode(c, req.SwapMode)
	if !ok {
		return
	}
	amount, ok := bindAmount(c, "amount", req.Amount)
	if !ok {
		return
	}

	preview, err := h.quoterSvc.CurveQuote(&quoter.CurveQuoteRequest{
		Coin:   coin,
		Side:   side,
		Mode:   mode,
		Amount: amount,
	})
	if err != nil {
		httputil.HandleHttpError(c, mapEngineError(err))
		return
	}

	quote := preview.Quote
	resp := CurveQuoteResponse{
		Coin:             quote.Coin.Hex(),
		Side:             quote.Side.String(),
		SwapMode:         string(mode),
		TokenAmount:      quote.TokenAmount.String(),
		EthAmount:        quote.EthAmount.String(),
		MarginalPriceWei: quote.MarginalPriceWei.String(),
		ClampedToSaleCap: quote.ClampedToSaleCap,
		Remaining:        preview.Remaining.String(),
	}
	if preview.Impact != nil {
		resp.PriceImpactPercent = fmt.Sprintf("%.2f%%", preview.Impact.Percent)
		resp.PriceImpactSeverity = preview.Impact.Severity
		resp.PriceImpactWarning = preview.Impact.Warning
	}
	httputil.HandleSuccess(c, resp)
}

// @Summary Get bonding-curve chart
// @Description Sample a coin's sale curve as (tokensSold, priceEth, cumulativeEth)
// @Description points in whole-coin / whole-ETH units, ready for charting.
// @Tags curve
// @Produce json
// @Param coin query string true "Coin address"
// @Param points query int false "Number of samples. Default: 100, max: 500" default(100)
// @Success 200 {object} CurveChartResponse "Sampled curve"
// @Failure 400 {object} httputil.Response "Invalid parameters"
// @Failure 404 {object} httputil.Response "No sale tracked for the coin"
// @Router /api/v1/curve/chart [get]
func (h *CurveHandler) getCurveChart(c *gin.Context) {
	coin, ok := bindAddress(c, "coin", c.Query("coin"))
	if !ok {
		return
	}

	points := 100
	if raw := c.Query("points"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			httputil.HandleBadRequest(c, "invalid points: must be a positive integer")
			return
		}
		points = parsed
	}

	series, err := h.quoterSvc.CurveChart(coin, points)
	if err != nil {
		httputil.HandleHttpError(c, mapEngineError(err))
		return
	}
	httputil.HandleSuccess(c, CurveChartResponse{Coin: coin.Hex(), Points: series})
}
