package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

type PoolRegistry map[common.Address]*Pool

type PoolFlags uint64

const (
	FlagActive  PoolFlags = 1 << 0
	FlagReady   PoolFlags = 1 << 1
	FlagETHPair PoolFlags = 1 << 2
	FlagLowFee  PoolFlags = 1 << 3
)

const (
	FlagReadyMask        = FlagActive | FlagReady
	FlagReadyETHPairMask = FlagActive | FlagReady | FlagETHPair
)

// Pool is a constant-product pair snapshot. Reserves are raw wei as
// read from the pair contract; quoting never mutates them.
type Pool struct {
	Address     common.Address `json:"address"`
	Token0      common.Address `json:"token0"`
	Token1      common.Address `json:"token1"`
	Reserve0    *big.Int       `json:"reserve0"`
	Reserve1    *big.Int       `json:"reserve1"`
	FeeBps      uint16         `json:"feeBps"`
	Active      bool           `json:"active"`
	Ready       bool           `json:"ready"`
	UpdatedAtMs int64          `json:"updatedAtMs"`
	Flags       PoolFlags      `json:"-"`
}

func (p *Pool) IsReady() bool {
	return p.Flags&FlagReadyMask == FlagReadyMask
}

// UpdateFlags recomputes the flag bitmask from the snapshot fields.
// weth marks pairs that can serve as a hop leg.
func (p *Pool) UpdateFlags(weth common.Address) {
	p.Flags = 0
	if p.Active {
		p.Flags |= FlagActive
	}
	if p.Ready {
		p.Flags |= FlagReady
	}
	if p.Token0 == weth || p.Token1 == weth {
		p.Flags |= FlagETHPair
	}
	if p.FeeBps < 30 {
		p.Flags |= FlagLowFee
	}
}

func (p *Pool) SetActive(active bool) {
	p.Active = active
	if active {
		p.Flags |= FlagActive
	} else {
		p.Flags &^= FlagActive
	}
}

func (p *Pool) SetReady(ready bool) {
	p.Ready = ready
	if ready {
		p.Flags |= FlagReady
	} else {
		p.Flags &^= FlagReady
	}
}

func (p *Pool) HasFlags(mask PoolFlags) bool {
	return p.Flags&mask == mask
}

// HasToken reports whether the pair carries the given token on either side.
func (p *Pool) HasToken(token common.Address) bool {
	return p.Token0 == token || p.Token1 == token
}

// OtherToken returns the opposite side of the pair, or the zero address
// when token is not in the pair.
func (p *Pool) OtherToken(token common.Address) common.Address {
	switch token {
	case p.Token0:
		return p.Token1
	case p.Token1:
		return p.Token0
	default:
		return common.Address{}
	}
}

// ReservesFor orients the pair for a swap that sells tokenIn. ok is
// false when tokenIn is on neither side.
func (p *Pool) ReservesFor(tokenIn common.Address) (reserveIn, reserveOut *big.Int, ok bool) {
	switch tokenIn {
	case p.Token0:
		return p.Reserve0, p.Reserve1, true
	case p.Token1:
		return p.Reserve1, p.Reserve0, true
	default:
		return nil, nil, false
	}
}

// UpdateReserves replaces both reserve snapshots. Nil normalizes to
// zero so a partially decoded update can never leave a nil reserve
// behind.
func (p *Pool) UpdateReserves(reserve0, reserve1 *big.Int) {
	if reserve0 == nil {
		reserve0 = new(big.Int)
	}
	if reserve1 == nil {
		reserve1 = new(big.Int)
	}
	p.Reserve0 = reserve0
	p.Reserve1 = reserve1
}

// Clone deep-copies the snapshot so registry readers can hand pools to
// the quoting path without aliasing writer updates.
func (p *Pool) Clone() *Pool {
	if p == nil {
		return nil
	}
	out := *p
	if p.Reserve0 != nil {
		out.Reserve0 = new(big.Int).Set(p.Reserve0)
	}
	if p.Reserve1 != nil {
		out.Reserve1 = new(big.Int).Set(p.Reserve1)
	}
	return &out
}
