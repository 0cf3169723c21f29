package http

import (
	"bytes"
	"sort"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/zcurve-labs/quote-engine/internal/domain"
	"github.com/zcurve-labs/quote-engine/internal/http/httputil"
	"github.com/zcurve-labs/quote-engine/internal/quoter"
)

type PoolHandler struct {
	quoterSvc *quoter.Service
}

func NewPoolHandler(quoterSvc *quoter.Service) *PoolHandler {
	return &PoolHandler{quoterSvc: quoterSvc}
}

func (h *PoolHandler) Root() string {
	return "/pools"
}

func (h *PoolHandler) SetRoutes(pub *gin.RouterGroup, admin *gin.RouterGroup) {
	pub.GET("/stats", h.getStats)
	pub.GET("/list", h.listPools)
	pub.GET("/:address", h.getPool)

	admin.POST("", h.upsertPool)
	admin.POST("/:address/reserves", h.updateReserves)
	admin.POST("/:address/status", h.updateStatus)
}

// StatsResponse contains aggregated statistics about tracked snapshots
type StatsResponse struct {
	// Total number of pool snapshots being tracked
	PoolCount int `json:"poolCount" example:"128"`

	// Pools currently quotable: activation gates open, both reserves funded
	ReadyPoolCount int `json:"readyPoolCount" example:"97"`

	// Total number of sale snapshots being tracked
	SaleCount int `json:"saleCount" example:"41"`

	// Snapshot mutations processed since service start
	UpdateCount uint64 `json:"updateCount" example:"45892"`
}

// @Summary Get registry statistics
// @Tags pools
// @Produce json
// @Success 200 {object} StatsResponse
// @Router /api/v1/pools/stats [get]
func (h *PoolHandler) getStats(c *gin.Context) {
	stats := h.quoterSvc.Stats()
	httputil.HandleSuccess(c, StatsResponse{
		PoolCount:      stats.PoolCount,
		ReadyPoolCount: stats.ReadyPoolCount,
		SaleCount:      stats.SaleCount,
		UpdateCount:    stats.UpdateCount,
	})
}

// PoolInfo is one pool snapshot as served over the API. Reserves are
// wei strings.
type PoolInfo struct {
	Address     string `json:"address" example:"0xd3d2E2692501A5c9Ca623199D38826e513033a17"`
	Token0      string `json:"token0"`
	Token1      string `json:"token1"`
	Reserve0    string `json:"reserve0" example:"1234567890123000000000"`
	Reserve1    string `json:"reserve1" example:"9876543210987000000000"`
	FeeBps      uint16 `json:"feeBps" example:"30"`
	Active      bool   `json:"active"`
	Ready       bool   `json:"ready"`
	UpdatedAtMs int64  `json:"updatedAtMs" example:"1717171717000"`
}

func poolInfo(pool *domain.Pool) PoolInfo {
	return PoolInfo{
		Address:     pool.Address.Hex(),
		Token0:      pool.Token0.Hex(),
		Token1:      pool.Token1.Hex(),
		Reserve0:    pool.Reserve0.String(),
		Reserve1:    pool.Reserve1.String(),
		FeeBps:      pool.FeeBps,
		Active:      pool.Active,
		Ready:       pool.Ready,
		UpdatedAtMs: pool.UpdatedAtMs,
	}
}

// PoolListResponse contains one page of pool snapshots
type PoolListResponse struct {
	Pools []PoolInfo `json:"pools"`

	// Total number of pools across all pages
	Total int `json:"total" example:"128"`

	// Current page number (1-indexed)
	Page int `json:"page" example:"1"`

	// Number of pools per page (max 500)
	Limit int `json:"limit" example:"100"`

	// Total number of pages available
	Pages int `json:"pages" example:"2"`
}

// @Summary List tracked pools
// @Description Page through all pool snapshots, ordered by address so pages stay
// @Description stable between requests. Pass ready=true to list only quotable pools.
// @Tags pools
// @Produce json
// @Param page query int false "Page number (1-indexed)" default(1)
// @Param limit query int false "Pools per page (max 500)" default(100)
// @Param ready query bool false "Only quotable pools" default(false)
// @Success 200 {object} PoolListResponse
// @Router /api/v1/pools/list [get]
func (h *PoolHandler) listPools(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	onlyReady := c.DefaultQuery("ready", "false") == "true"
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 100
	}
	if limit > 500 {
		limit = 500
	}

	allPools := h.quoterSvc.Registry().ListPools(onlyReady)
	// Registry iteration order is per-shard; sort for stable pages.
	sort.Slice(allPools, func(i, j int) bool {
		return bytes.Compare(allPools[i].Address.Bytes(), allPools[j].Address.Bytes()) < 0
	})
	total := len(allPools)

	pages := (total + limit - 1) / limit
	offset := (page - 1) * limit
	end := offset + limit
	if offset > total {
		offset = total
	}
	if end > total {
		end = total
	}

	pools := make([]PoolInfo, 0, end-offset)
	for _, pool := range allPools[offset:end] {
		pools = append(pools, poolInfo(pool))
	}

	httputil.HandleSuccess(c, PoolListResponse{
		Pools: pools,
		Total: total,
		Page:  page,
		Limit: limit,
		Pages: pages,
	})
}

// @Summary Get one pool
// @Tags pools
// @Produce json
// @Param address path string true "Pool address"
// @Success 200 {object} PoolInfo
// @Failure 404 {object} httputil.Response "Pool not tracked"
// @Router /api/v1/pools/{address} [get]
func (h *PoolHandler) getPool(c *gin.Context) {
	address, ok := bindAddress(c, "pool", c.Param("address"))
	if !ok {
		return
	}
	pool, ok := h.quoterSvc.Registry().GetPool(address)
	if !ok {
		httputil.HandleNotFound(c, "pool not found: "+address.Hex())
		return
	}
	httputil.HandleSuccess(c, poolInfo(pool))
}

// UpsertPoolRequest creates or replaces a pool snapshot. Omitted
// active/ready default to true.
type UpsertPoolRequest struct {
	Address     string `json:"address" binding:"required"`
	Token0      string `json:"token0" binding:"required"`
	Token1      string `json:"token1" binding:"required"`
	Reserve0    string `json:"reserve0" binding:"required"`
	Reserve1    string `json:"reserve1" binding:"required"`
	FeeBps      uint16 `json:"feeBps"`
	Active      *bool  `json:"active"`
	Ready       *bool  `json:"ready"`
	UpdatedAtMs int64  `json:"updatedAtMs"`
}

// @Summary Create or replace a pool snapshot
// @Tags admin
// @Accept json
// @Produce json
// @Param request body UpsertPoolRequest true "Pool snapshot"
// @Success 200 {object} PoolInfo "Snapshot as stored"
// @Failure 400 {object} httputil.Response "Invalid snapshot"
// @Failure 401 {object} httputil.Response "Missing or wrong admin token"
// @Router /api/v1/admin/pools [post]
func (h *PoolHandler) upsertPool(c *gin.Context) {
	var req UpsertPoolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequest(c, "invalid request body: "+err.Error())
		return
	}

	address, ok := bindAddress(c, "address", req.Address)
	if !ok {
		return
	}
	token0, ok := bindAddress(c, "token0", req.Token0)
	if !ok {
		return
	}
	token1, ok := bindAddress(c, "token1", req.Token1)
	if !ok {
		return
	}
	reserve0, ok := bindWei(c, "reserve0", req.Reserve0)
	if !ok {
		return
	}
	reserve1, ok := bindWei(c, "reserve1", req.Reserve1)
	if !ok {
		return
	}

	pool := &domain.Pool{
		Address:     address,
		Token0:      token0,
		Token1:      token1,
		Reserve0:    reserve0,
		Reserve1:    reserve1,
		FeeBps:      req.FeeBps,
		Active:      req.Active == nil || *req.Active,
		Ready:       req.Ready == nil || *req.Ready,
		UpdatedAtMs: req.UpdatedAtMs,
	}
	if err := h.quoterSvc.Registry().UpsertPool(pool); err != nil {
		httputil.HandleHttpError(c, mapEngineError(err))
		return
	}

	stored, _ := h.quoterSvc.Registry().GetPool(address)
	httputil.HandleSuccess(c, poolInfo(stored))
}

// UpdateReservesRequest replaces both reserve snapshots. A zero
// updatedAtMs stamps the current time.
type UpdateReservesRequest struct {
	Reserve0    string `json:"reserve0" binding:"required"`
	Reserve1    string `json:"reserve1" binding:"required"`
	UpdatedAtMs int64  `json:"updatedAtMs"`
}

// @Summary Update pool reserves
// @Tags admin
// @Accept json
// @Produce json
// @Param address path string true "Pool address"
// @Param request body UpdateReservesRequest true "New reserves in wei"
// @Success 200 {object} PoolInfo "Snapshot as stored"
// @Failure 400 {object} httputil.Response "Invalid reserves"
// @Failure 404 {object} httputil.Response "Pool not tracked"
// @Router /api/v1/admin/pools/{address}/reserves [post]
func (h *PoolHandler) updateReserves(c *gin.Context) {
	address, ok := bindAddress(c, "pool", c.Param("address"))
	if !ok {
		return
	}
	var req UpdateReservesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequest(c, "invalid request body: "+err.Error())
		return
	}
	reserve0, ok := bindWei(c, "reserve0", req.Reserve0)
	if !ok {
		return
	}
	reserve1, ok := bindWei(c, "reserve1", req.Reserve1)
	if !ok {
		return
	}

	if err := h.quoterSvc.Registry().UpdatePoolReserves(address, reserve0, reserve1, req.UpdatedAtMs); err != nil {
		httputil.HandleHttpError(c, mapEngineError(err))
		return
	}
	stored, _ := h.quoterSvc.Registry().GetPool(address)
	httputil.HandleSuccess(c, poolInfo(stored))
}

// UpdateStatusRequest flips the activation gates on a pool.
type UpdateStatusRequest struct {
	Active *bool `json:"active" binding:"required"`
	Ready  *bool `json:"ready" binding:"required"`
}

// @Summary Update pool status
// @Tags admin
// @Accept json
// @Produce json
// @Param address path string true "Pool address"
// @Param request body UpdateStatusRequest true "Activation gates"
// @Success 200 {object} PoolInfo "Snapshot as stored"
// @Failure 404 {object} httputil.Response "Pool not tracked"
// @Router /api/v1/admin/pools/{address}/status [post]
func (h *PoolHandler) updateStatus(c *gin.Context) {
	address, ok := bindAddress(c, "pool", c.Param("address"))
	if !ok {
		return
	}
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequest(c, "invalid request body: "+err.Error())
		return
	}

	if err := h.quoterSvc.Registry().SetPoolStatus(address, *req.Active, *req.Ready); err != nil {
		httputil.HandleHttpError(c, mapEngineError(err))
		return
	}
	stored, _ := h.quoterSvc.Registry().GetPool(address)
	httputil.HandleSuccess(c, poolInfo(stored))
}
