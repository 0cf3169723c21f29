package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

type SaleRegistry map[common.Address]*SaleParameters

// SaleParameters is the bonding-curve snapshot for one coin sale, as
// mirrored from the sale contract. All amounts are wei. NetSold moves
// with every settled buy or sell; the rest is fixed at sale creation.
type SaleParameters struct {
	Coin        common.Address `json:"coin"`
	SaleCap     *big.Int       `json:"saleCap"`
	Divisor     *big.Int       `json:"divisor"`
	QuadCap     *big.Int       `json:"quadCap"`
	NetSold     *big.Int       `json:"netSold"`
	UnitScale   *big.Int       `json:"unitScale"`
	UpdatedAtMs int64          `json:"updatedAtMs"`
}

// Clone deep-copies the snapshot for the same aliasing reason as
// Pool.Clone.
func (s *SaleParameters) Clone() *SaleParameters {
	if s == nil {
		return nil
	}
	out := *s
	if s.SaleCap != nil {
		out.SaleCap = new(big.Int).Set(s.SaleCap)
	}
	if s.Divisor != nil {
		out.Divisor = new(big.Int).Set(s.Divisor)
	}
	if s.QuadCap != nil {
		out.QuadCap = new(big.Int).Set(s.QuadCap)
	}
	if s.NetSold != nil {
		out.NetSold = new(big.Int).Set(s.NetSold)
	}
	if s.UnitScale != nil {
		out.UnitScale = new(big.Int).Set(s.UnitScale)
	}
	return &out
}

// Remaining returns the unsold wei still purchasable on the curve,
// never negative.
func (s *SaleParameters) Remaining() *big.Int {
	if s.SaleCap == nil || s.NetSold == nil {
		return new(big.Int)
	}
	out := new(big.Int).Sub(s.SaleCap, s.NetSold)
	if out.Sign() < 0 {
		out.SetInt64(0)
	}
	return out
}
