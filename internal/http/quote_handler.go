package http

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/zcurve-labs/quote-engine/internal/http/httputil"
	"github.com/zcurve-labs/quote-engine/internal/quoter"
)

type QuoteHandler struct {
	quoterSvc *quoter.Service
}

func NewQuoteHandler(quoterSvc *quoter.Service) *QuoteHandler {
	return &QuoteHandler{quoterSvc: quoterSvc}
}

func (h *QuoteHandler) Root() string {
	return "/quote"
}

func (h *QuoteHandler) SetRoutes(pub *gin.RouterGroup, admin *gin.RouterGroup) {
	pub.GET("", h.getQuote)
}

// QuoteRequest represents the parameters for requesting a swap quote
type QuoteRequest struct {
	// Input token address. The 0xEeee... pseudo-address stands for
	// native ETH and is normalized to WETH.
	TokenIn string `form:"tokenIn" binding:"required" example:"0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE"`

	// Output token address
	TokenOut string `form:"tokenOut" binding:"required" example:"0x1f9840a85d5aF5bf1D1762F925BDADdC4201F984"`

	// Amount in wei. Interpreted per swapMode: exact input for ExactIn,
	// exact output for ExactOut.
	Amount string `form:"amount" binding:"required" example:"1000000000000000000"`

	// Swap mode determines how the amount is interpreted
	SwapMode string `form:"swapMode" binding:"required" enums:"ExactIn,ExactOut" example:"ExactIn"`

	// Slippage tolerance in basis points (1 bps = 0.01%). Default: 50.
	SlippageBps uint16 `form:"slippageBps" example:"50"`

	// Safety margin between the legs of a hopped route, in basis
	// points. Zero keeps the server default (200). Ignored for direct
	// pools.
	MarginBps uint16 `form:"marginBps" example:"200"`
}

// RouteInfo describes a single hop in the swap route
type RouteInfo struct {
	PoolAddress string `json:"poolAddress" example:"0xd3d2E2692501A5c9Ca623199D38826e513033a17"`
	TokenIn     string `json:"tokenIn"`
	TokenOut    string `json:"tokenOut"`
	AmountIn    string `json:"amountIn"`
	AmountOut   string `json:"amountOut"`
	FeeBps      uint16 `json:"feeBps" example:"30"`
}

// QuoteResponse contains the calculated swap quote with routing information
type QuoteResponse struct {
	TokenIn  string `json:"tokenIn"`
	TokenOut string `json:"tokenOut"`
	SwapMode string `json:"swapMode" enums:"ExactIn,ExactOut"`

	// Actual amounts in wei. For ExactIn amountIn echoes the request;
	// for ExactOut amountOut does.
	AmountIn  string `json:"amountIn" example:"1000000000000000000"`
	AmountOut string `json:"amountOut" example:"145320000000000000000"`

	// ETH moved between the legs of a hopped route, after the safety
	// margin. Empty for direct pools.
	IntermediateEth string `json:"intermediateEth,omitempty"`

	// Safety margin actually applied. Zero for direct pools.
	MarginBps uint16 `json:"marginBps,omitempty"`

	// Sum of pool fees across all hops
	FeeBps uint16 `json:"feeBps" example:"30"`

	SlippageBps uint16 `json:"slippageBps" example:"50"`

	// Minimum output (ExactIn) or maximum input (ExactOut) after
	// applying slippage
	OtherAmountThreshold string `json:"otherAmountThreshold" example:"144593400000000000000"`

	// Display-only price impact estimate. Omitted when no estimate was
	// possible for the inputs.
	PriceImpactPercent  string `json:"priceImpactPercent,omitempty" example:"0.25%"`
	PriceImpactSeverity string `json:"priceImpactSeverity,omitempty" enums:"none,low,moderate,high,extreme"`
	PriceImpactWarning  string `json:"priceImpactWarning,omitempty"`

	Routes []RouteInfo `json:"routes"`

	// Complete token path from input to output
	RoutePath []string `json:"routePath"`

	HopCount int `json:"hopCount" example:"1"`
}

func (h *QuoteHandler) parseQuoteRequest(c *gin.Context) (*quoter.SwapQuoteRequest, bool) {
	var req QuoteRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httputil.HandleBadRequest(c, "invalid query parameters: "+err.Error())
		return nil, false
	}

	tokenIn, ok := bindAddress(c, "tokenIn", req.TokenIn)
	if !ok {
		return nil, false
	}
	tokenOut, ok := bindAddress(c, "tokenOut", req.TokenOut)
	if !ok {
		return nil, false
	}
	amount, ok := bindAmount(c, "amount", req.Amount)
	if !ok {
		return nil, false
	}
	mode, ok := bindSwapMode(c, req.SwapMode)
	if !ok {
		return nil, false
	}

	slippageBps := req.SlippageBps
	if slippageBps == 0 {
		slippageBps = DefaultSlippageBps
	}

	return &quoter.SwapQuoteRequest{
		TokenIn:     tokenIn,
		TokenOut:    tokenOut,
		Amount:      amount,
		Mode:        mode,
		SlippageBps: slippageBps,
		MarginBps:   req.MarginBps,
	}, true
}

func buildQuoteResponse(quote *quoter.SwapQuote) QuoteResponse {
	result := quote.Result

	routes := make([]RouteInfo, 0, len(result.Hops))
	for _, hop := range result.Hops {
		if hop.Pool == nil {
			continue
		}
		routes = append(routes, RouteInfo{
			PoolAddress: hop.Pool.Address.Hex(),
			TokenIn:     hop.TokenIn.Hex(),
			TokenOut:    hop.TokenOut.Hex(),
			AmountIn:    hop.AmountIn.String(),
			AmountOut:   hop.AmountOut.String(),
			FeeBps:      hop.Pool.FeeBps,
		})
	}

	routePath := make([]string, 0, len(result.Hops)+1)
	routePath = append(routePath, result.TokenIn.Hex())
	for _, hop := range result.Hops {
		routePath = append(routePath, hop.TokenOut.Hex())
	}

	resp := QuoteResponse{
		TokenIn:              result.TokenIn.Hex(),
		TokenOut:             result.TokenOut.Hex(),
		SwapMode:             string(quote.Mode),
		AmountIn:             result.AmountIn.String(),
		AmountOut:            result.AmountOut.String(),
		MarginBps:            result.MarginBps,
		FeeBps:               quote.FeeBps,
		SlippageBps:          quote.SlippageBps,
		OtherAmountThreshold: quote.OtherAmountThreshold.String(),
		Routes:               routes,
		RoutePath:            routePath,
		HopCount:             len(result.Hops),
	}
	if result.IntermediateETH != nil {
		resp.IntermediateEth = result.IntermediateETH.String()
	}
	if quote.Impact != nil {
		resp.PriceImpactPercent = fmt.Sprintf("%.2f%%", quote.Impact.Percent)
		resp.PriceImpactSeverity = quote.Impact.Severity
		resp.PriceImpactWarning = quote.Impact.Warning
	}
	return resp
}

// @Summary Get swap quote
// @Description Quote a token pair against the tracked pool set. Direct pools win;
// @Description when no direct pool exists the pair is routed token -> ETH -> token
// @Description through each side's deepest ETH pool, with a safety margin between
// @Description the legs.
// @Description
// @Description Amounts are wei strings. ExactIn fixes the input and estimates the
// @Description output, ExactOut the reverse. The otherAmountThreshold field carries
// @Description the slippage-adjusted bound for the non-fixed side.
// @Tags quote
// @Produce json
// @Param tokenIn query string true "Input token address (0xEeee... for native ETH)"
// @Param tokenOut query string true "Output token address"
// @Param amount query string true "Amount in wei" example("1000000000000000000")
// @Param swapMode query string true "Swap mode" Enums(ExactIn, ExactOut)
// @Param slippageBps query int false "Slippage tolerance in basis points. Default: 50" default(50)
// @Param marginBps query int false "Hop safety margin in basis points. Default: server setting (200)"
// @Success 200 {object} QuoteResponse "Quote with routing information"
// @Failure 400 {object} httputil.Response "Invalid parameters or insufficient liquidity"
// @Failure 404 {object} httputil.Response "No route between the tokens"
// @Router /api/v1/quote [get]
func (h *QuoteHandler) getQuote(c *gin.Context) {
	req, ok := h.parseQuoteRequest(c)
	if !ok {
		return
	}

	quote, err := h.quoterSvc.SwapQuote(req)
	if err != nil {
		httputil.HandleHttpError(c, mapEngineError(err))
		return
	}
	httputil.HandleSuccess(c, buildQuoteResponse(quote))
}
