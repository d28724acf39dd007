// Package execution models capacity-limited trade execution: buy sizing
// under budget, notional and order-book depth caps, slippage on both
// sides, the sell-side fee, and the per-item cooldown accounting handled
// by the position book.
package execution

import (
	"math"

	"github.com/shopspring/decimal"
)

// Params is the capacity and cost model configuration.
type Params struct {
	// OrderFraction is the fraction of available cash per buy.
	OrderFraction float64 `yaml:"order_fraction" validate:"gt=0,lte=1"`
	// NotionalCap is the absolute per-trade notional ceiling.
	NotionalCap float64 `yaml:"notional_cap" validate:"gt=0"`
	// DepthFraction caps the quantity at a fraction of the day's
	// displayed sell-side quantity.
	DepthFraction float64 `yaml:"depth_fraction" validate:"gt=0,lte=1"`
	// SlipBuy and SlipSell are the fixed one-way slippage rates.
	SlipBuy  float64 `yaml:"slip_buy" validate:"gte=0,lt=1"`
	SlipSell float64 `yaml:"slip_sell" validate:"gte=0,lt=1"`
	// FeeRate is the venue's sell-side fee.
	FeeRate float64 `yaml:"fee_rate" validate:"gte=0,lt=1"`
	// MinQty rejects buys sized below it.
	MinQty int `yaml:"min_qty" validate:"gte=1"`
	// CooldownDays blocks re-buying an item after a prior buy.
	CooldownDays int `yaml:"cooldown_days" validate:"gte=0"`
	// MaxPositions caps concurrent open positions.
	MaxPositions int `yaml:"max_positions" validate:"gt=0"`
	// MaxNewBuysPerDay caps new positions opened on a single day.
	MaxNewBuysPerDay int `yaml:"max_new_buys_per_day" validate:"gt=0"`
}

// DefaultParams mirrors the tuned capacity configuration.
func DefaultParams() Params {
	return Params{
		OrderFraction:    0.08,
		NotionalCap:      20000,
		DepthFraction:    0.20,
		SlipBuy:          0.003,
		SlipSell:         0.003,
		FeeRate:          0.02,
		MinQty:           1,
		CooldownDays:     14,
		MaxPositions:     16,
		MaxNewBuysPerDay: 2,
	}
}

// Simulator converts candidate entries into executable sizes and computes
// realized sell economics.
type Simulator struct {
	params Params
}

// NewSimulator returns a Simulator over the given params.
func NewSimulator(params Params) *Simulator {
	return &Simulator{params: params}
}

// Params exposes the configured capacity model.
func (s *Simulator) Params() Params {
	return s.params
}

// BuyPrice is the effective buy price after buy-side slippage.
func (s *Simulator) BuyPrice(rawAsk float64) float64 {
	return rawAsk * (1.0 + s.params.SlipBuy)
}

// SellPrice is the effective sell price after sell-side slippage, before
// the fee.
func (s *Simulator) SellPrice(rawAsk float64) float64 {
	return rawAsk * (1.0 - s.params.SlipSell)
}

// SizeBuy sizes a buy out of the available cash: budget is the smaller of
// the cash fraction and the notional cap, quantity is the budget divided
// by the effective price, additionally capped at the depth fraction of the
// day's displayed sell quantity. Returns ok=false when the resulting size
// falls below the minimum.
func (s *Simulator) SizeBuy(cash, rawAsk, displayedSellQty float64) (qty int, effPrice float64, ok bool) {
	effPrice = s.BuyPrice(rawAsk)
	if effPrice <= 0 {
		return 0, effPrice, false
	}

	budget := math.Min(cash*s.params.OrderFraction, s.params.NotionalCap)
	if budget < effPrice {
		return 0, effPrice, false
	}

	qty = int(budget / effPrice)

	if displayedSellQty > 0 {
		depthCap := int(s.params.DepthFraction * displayedSellQty)
		if depthCap < 1 {
			depthCap = 1
		}

		qty = min(qty, depthCap)
	}

	if qty < s.params.MinQty {
		return 0, effPrice, false
	}

	return qty, effPrice, true
}

// Proceeds computes the cash received for selling qty at the raw ask: the
// effective price net of slippage and the fee. Decimal arithmetic keeps
// the cash ledger exact across many small trades.
func (s *Simulator) Proceeds(qty int, rawAsk float64) float64 {
	gross := decimal.NewFromFloat(s.SellPrice(rawAsk)).Mul(decimal.NewFromInt(int64(qty)))
	net, _ := gross.Mul(decimal.NewFromFloat(1.0 - s.params.FeeRate)).Float64()

	return net
}

// RealizedPnL is the net sell proceeds minus the entry notional.
func (s *Simulator) RealizedPnL(qty int, rawAsk, entryPrice float64) float64 {
	proceeds := decimal.NewFromFloat(s.Proceeds(qty, rawAsk))
	entry := decimal.NewFromFloat(entryPrice).Mul(decimal.NewFromInt(int64(qty)))
	pnl, _ := proceeds.Sub(entry).Float64()

	return pnl
}

// ROI is the realized PnL over the entry notional; it is the reward fed
// back into the bandit and item memory layers.
func (s *Simulator) ROI(qty int, rawAsk, entryPrice float64) float64 {
	notional := float64(qty) * entryPrice
	if notional <= 0 {
		return 0
	}

	return s.RealizedPnL(qty, rawAsk, entryPrice) / notional
}
