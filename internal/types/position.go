package types

import (
	"time"
)

// Position represents one open holding. Created at buy execution and
// destroyed at sell execution; PeakReturn is the running maximum
// mark-to-market return since entry and is updated daily while open.
type Position struct {
	ID         string
	ItemID     string
	Venue      string
	Quantity   int
	EntryPrice float64
	EntryDate  time.Time
	StrategyID string
	TakeProfit float64
	StopLoss   float64
	PeakReturn float64
}

// HoldingDays is the whole number of calendar days held as of the given day.
func (p *Position) HoldingDays(on time.Time) int {
	return int(on.Sub(p.EntryDate).Hours() / 24)
}

// Return is the mark-to-market return against the effective entry price.
func (p *Position) Return(sellPriceEff float64) float64 {
	return sellPriceEff/p.EntryPrice - 1.0
}

// Notional is the entry notional of the position.
func (p *Position) Notional() float64 {
	return float64(p.Quantity) * p.EntryPrice
}
