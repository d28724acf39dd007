package types

import (
	"time"
)

// Side distinguishes the two trade directions in the log.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// ExitReason tags a SELL record with the rule that closed the position.
type ExitReason string

const (
	// ExitNone is used on BUY records.
	ExitNone ExitReason = ""
	// ExitWeak fires when 7d z-momentum decays below the floor while the
	// 1d return is negative.
	ExitWeak ExitReason = "WEAK"
	// ExitTrail is the trailing stop on the peak unrealized return.
	ExitTrail ExitReason = "TRAIL"
	// ExitTakeProfit and ExitStopLoss are the static band exits.
	ExitTakeProfit ExitReason = "TP"
	ExitStopLoss   ExitReason = "SL"
	// ExitMaxHold fires when the maximum holding period is reached.
	ExitMaxHold ExitReason = "TIME"
	// ExitHorizon is the end-of-horizon forced liquidation.
	ExitHorizon ExitReason = "EOP"
)

// Trade is one append-only execution record, either side.
type Trade struct {
	ID          string
	Date        time.Time
	ItemID      string
	Venue       string
	StrategyID  string
	Side        Side
	ExitReason  ExitReason
	Price       float64
	Quantity    int
	CashAfter   float64
	RealizedPnL float64
	HoldingDays int
}

// EquityPoint is one point of the append-only equity curve.
type EquityPoint struct {
	Date   time.Time
	Equity float64
}
