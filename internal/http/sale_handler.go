package http

import (
	"bytes"
	"math/big"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/zcurve-labs/quote-engine/internal/domain"
	"github.com/zcurve-labs/quote-engine/internal/http/httputil"
	"github.com/zcurve-labs/quote-engine/internal/quoter"
	"github.com/zcurve-labs/quote-engine/internal/services/pricing"
)

type SaleHandler struct {
	quoterSvc *quoter.Service
}

func NewSaleHandler(quoterSvc *quoter.Service) *SaleHandler {
	return &SaleHandler{quoterSvc: quoterSvc}
}

func (h *SaleHandler) Root() string {
	return "/sales"
}

func (h *SaleHandler) SetRoutes(pub *gin.RouterGroup, admin *gin.RouterGroup) {
	pub.GET("/list", h.listSales)
	pub.GET("/:coin", h.getSale)

	admin.POST("", h.upsertSale)
	admin.POST("/:coin/net-sold", h.updateNetSold)
}

// SaleInfo is one sale snapshot as served over the API. Amounts are
// wei strings.
type SaleInfo struct {
	Coin string `json:"coin" example:"0x1f9840a85d5aF5bf1D1762F925BDADdC4201F984"`

	// Total coins ever sellable on the curve
	SaleCap string `json:"saleCap" example:"1000000000000000000000"`

	// Curve steepness divisor; larger is flatter
	Divisor string `json:"divisor" example:"1000000"`

	// Supply level where quadratic pricing flattens to linear
	QuadCap string `json:"quadCap" example:"500000000000000000000"`

	// Net coins sold so far (buys minus sells)
	NetSold string `json:"netSold" example:"5000000000000000000"`

	// Smallest tradable coin quantum in wei
	UnitScale string `json:"unitScale" example:"1000000000000000000"`

	// Unsold wei still purchasable
	Remaining string `json:"remaining" example:"995000000000000000000"`

	UpdatedAtMs int64 `json:"updatedAtMs" example:"1717171717000"`
}

func saleInfo(sale *domain.SaleParameters) SaleInfo {
	return SaleInfo{
		Coin:        sale.Coin.Hex(),
		SaleCap:     sale.SaleCap.String(),
		Divisor:     sale.Divisor.String(),
		QuadCap:     sale.QuadCap.String(),
		NetSold:     sale.NetSold.String(),
		UnitScale:   sale.UnitScale.String(),
		Remaining:   sale.Remaining().String(),
		UpdatedAtMs: sale.UpdatedAtMs,
	}
}

// SaleListResponse contains all tracked sale snapshots
type SaleListResponse struct {
	Sales []SaleInfo `json:"sales"`
	Total int        `json:"total" example:"41"`
}

// @Summary List tracked sales
// @Tags sales
// @Produce json
// @Success 200 {object} SaleListResponse
// @Router /api/v1/sales/list [get]
func (h *SaleHandler) listSales(c *gin.Context) {
	allSales := h.quoterSvc.Registry().ListSales()
	sort.Slice(allSales, func(i, j int) bool {
		return bytes.Compare(allSales[i].Coin.Bytes(), allSales[j].Coin.Bytes()) < 0
	})

	sales := make([]SaleInfo, 0, len(allSales))
	for _, sale := range allSales {
		sales = append(sales, saleInfo(sale))
	}
	httputil.HandleSuccess(c, SaleListResponse{Sales: sales, Total: len(sales)})
}

// @Summary Get one sale
// @Tags sales
// @Produce json
// @Param coin path string true "Coin address"
// @Success 200 {object} SaleInfo
// @Failure 404 {object} httputil.Response "No sale tracked for the coin"
// @Router /api/v1/sales/{coin} [get]
func (h *SaleHandler) getSale(c *gin.Context) {
	coin, ok := bindAddress(c, "coin", c.Param("coin"))
	if !ok {
		return
	}
	sale, ok := h.quoterSvc.Registry().GetSale(coin)
	if !ok {
		httputil.HandleNotFound(c, "sale not found: "+coin.Hex())
		return
	}
	httputil.HandleSuccess(c, saleInfo(sale))
}

// UpsertSaleRequest creates or replaces a sale snapshot. Amounts are
// wei strings; netSold defaults to zero.
type UpsertSaleRequest struct {
	Coin        string `json:"coin" binding:"required"`
	SaleCap     string `json:"saleCap" binding:"required"`
	Divisor     string `json:"divisor" binding:"required"`
	QuadCap     string `json:"quadCap" binding:"required"`
	NetSold     string `json:"netSold"`
	UnitScale   string `json:"unitScale" binding:"required"`
	UpdatedAtMs int64  `json:"updatedAtMs"`
}

// @Summary Create or replace a sale snapshot
// @Description The snapshot must parameterize a priceable curve: positive divisor
// @Description and unit scale, quadCap within saleCap, netSold within saleCap, caps
// @Description aligned to the unit grid.
// @Tags admin
// @Accept json
// @Produce json
// @Param request body UpsertSaleRequest true "Sale snapshot"
// @Success 200 {object} SaleInfo "Snapshot as stored"
// @Failure 400 {object} httputil.Response "Snapshot does not parameterize a priceable curve"
// @Failure 401 {object} httputil.Response "Missing or wrong admin token"
// @Router /api/v1/admin/sales [post]
func (h *SaleHandler) upsertSale(c *gin.Context) {
	var req UpsertSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequest(c, "invalid request body: "+err.Error())
		return
	}

	coin, ok := bindAddress(c, "coin", req.Coin)
	if !ok {
		return
	}
	saleCap, ok := bindAmount(c, "saleCap", req.SaleCap)
	if !ok {
		return
	}
	divisor, ok := bindAmount(c, "divisor", req.Divisor)
	if !ok {
		return
	}
	quadCap, ok := bindWei(c, "quadCap", req.QuadCap)
	if !ok {
		return
	}
	unitScale, ok := bindAmount(c, "unitScale", req.UnitScale)
	if !ok {
		return
	}
	netSold := new(big.Int)
	if req.NetSold != "" {
		if netSold, ok = bindWei(c, "netSold", req.NetSold); !ok {
			return
		}
	}

	sale := &domain.SaleParameters{
		Coin:        coin,
		SaleCap:     saleCap,
		Divisor:     divisor,
		QuadCap:     quadCap,
		NetSold:     netSold,
		UnitScale:   unitScale,
		UpdatedAtMs: req.UpdatedAtMs,
	}
	// Reject snapshots the quote path would choke on later.
	if _, err := pricing.NewCurve(sale); err != nil {
		httputil.HandleBadRequest(c, err.Error())
		return
	}
	if err := h.quoterSvc.Registry().UpsertSale(sale); err != nil {
		httputil.HandleHttpError(c, mapEngineError(err))
		return
	}

	stored, _ := h.quoterSvc.Registry().GetSale(coin)
	httputil.HandleSuccess(c, saleInfo(stored))
}

// UpdateNetSoldRequest moves a sale's sold level after a settled
// trade. A zero updatedAtMs stamps the current time.
type UpdateNetSoldRequest struct {
	NetSold     string `json:"netSold" binding:"required"`
	UpdatedAtMs int64  `json:"updatedAtMs"`
}

// @Summary Update sold level
// @Tags admin
// @Accept json
// @Produce json
// @Param coin path string true "Coin address"
// @Param request body UpdateNetSoldRequest true "New net sold in wei"
// @Success 200 {object} SaleInfo "Snapshot as stored"
// @Failure 400 {object} httputil.Response "Negative or cap-exceeding netSold"
// @Failure 404 {object} httputil.Response "No sale tracked for the coin"
// @Router /api/v1/admin/sales/{coin}/net-sold [post]
func (h *SaleHandler) updateNetSold(c *gin.Context) {
	coin, ok := bindAddress(c, "coin", c.Param("coin"))
	if !ok {
		return
	}
	var req UpdateNetSoldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequest(c, "invalid request body: "+err.Error())
		return
	}
	netSold, ok := bindWei(c, "netSold", req.NetSold)
	if !ok {
		return
	}

	if err := h.quoterSvc.Registry().UpdateNetSold(coin, netSold, req.UpdatedAtMs); err != nil {
		httputil.HandleHttpError(c, mapEngineError(err))
		return
	}
	stored, _ := h.quoterSvc.Registry().GetSale(coin)
	httputil.HandleSuccess(c, saleInfo(stored))
}
