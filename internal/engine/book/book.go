// Package book tracks open positions and drives the exit state machine:
// OPEN -> LOCKED (holding-period lock) -> ELIGIBLE -> CLOSED. While locked
// no exit is evaluated but the peak return keeps updating; once eligible
// the exit rules run in a fixed priority order.
package book

import (
	"sort"
	"time"

	"github.com/marketloop/skinsim/internal/types"
)

// Params are the exit rule knobs shared by every position.
type Params struct {
	// MinHoldDays is the holding-period lock: no sell before it elapses.
	MinHoldDays int `yaml:"min_hold_days" validate:"gte=0"`
	// MaxHoldDays forces a close once reached.
	MaxHoldDays int `yaml:"max_hold_days" validate:"gt=0"`
	// WeakZFloor is the 7d z-momentum floor of the weak-signal exit.
	WeakZFloor float64 `yaml:"weak_z_floor"`
	// TrailTrigger is the peak return that arms the trailing stop.
	TrailTrigger float64 `yaml:"trail_trigger" validate:"gte=0"`
	// TrailGivebackFloor is the smallest giveback that fires an armed
	// trailing stop; half the take-profit distance applies when larger.
	TrailGivebackFloor float64 `yaml:"trail_giveback_floor" validate:"gte=0"`
}

// DefaultParams mirrors the tuned exit configuration.
func DefaultParams() Params {
	return Params{
		MinHoldDays:        7,
		MaxHoldDays:        100,
		WeakZFloor:         0.05,
		TrailTrigger:       0.05,
		TrailGivebackFloor: 0.02,
	}
}

type key struct {
	itemID string
	venue  string
}

// Book is the open position collection keyed by (item, venue), plus the
// per-item last-buy dates backing the cooldown rule.
type Book struct {
	params    Params
	positions map[key]*types.Position
	lastBuy   map[string]time.Time
}

// New returns an empty Book.
func New(params Params) *Book {
	return &Book{
		params:    params,
		positions: make(map[key]*types.Position),
		lastBuy:   make(map[string]time.Time),
	}
}

// Len is the number of open positions.
func (b *Book) Len() int {
	return len(b.positions)
}

// Holds reports whether any venue currently holds the item.
func (b *Book) Holds(itemID string) bool {
	for k := range b.positions {
		if k.itemID == itemID {
			return true
		}
	}

	return false
}

// Get returns the open position for (item, venue).
func (b *Book) Get(itemID, venue string) (*types.Position, bool) {
	p, ok := b.positions[key{itemID: itemID, venue: venue}]

	return p, ok
}

// Open registers a freshly executed buy and stamps the item's cooldown.
func (b *Book) Open(pos *types.Position) {
	b.positions[key{itemID: pos.ItemID, venue: pos.Venue}] = pos
	b.lastBuy[pos.ItemID] = pos.EntryDate
}

// Close removes a position after its sell executed.
func (b *Book) Close(itemID, venue string) {
	delete(b.positions, key{itemID: itemID, venue: venue})
}

// Sorted returns the open positions ordered by (item, venue) so daily
// walks are deterministic.
func (b *Book) Sorted() []*types.Position {
	out := make([]*types.Position, 0, len(b.positions))
	for _, p := range b.positions {
		out = append(out, p)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].ItemID != out[j].ItemID {
			return out[i].ItemID < out[j].ItemID
		}

		return out[i].Venue < out[j].Venue
	})

	return out
}

// InCooldown reports whether the item was bought within the cooldown
// window before the given day.
func (b *Book) InCooldown(itemID string, day time.Time, cooldownDays int) bool {
	last, ok := b.lastBuy[itemID]
	if !ok {
		return false
	}

	return int(day.Sub(last).Hours()/24) < cooldownDays
}

// Locked reports whether the position is still inside the holding-period
// lock on the given day.
func (b *Book) Locked(pos *types.Position, day time.Time) bool {
	return pos.HoldingDays(day) < b.params.MinHoldDays
}

// EvaluateExit runs one day's exit decision for a position given its
// mark-to-market return (net of sell slippage) and the day's features on
// the position's venue. The peak return is updated in every call,
// including while locked. Exit rules are checked in priority order:
// weak-signal, trailing stop, take-profit, stop-loss, max holding period.
func (b *Book) EvaluateExit(pos *types.Position, day time.Time, ret float64, f types.FeatureRow) (types.ExitReason, bool) {
	if b.Locked(pos, day) {
		pos.PeakReturn = max(pos.PeakReturn, ret)

		return types.ExitNone, false
	}

	weak := f.R7Z.IsSome() && f.R7Z.Unwrap() < b.params.WeakZFloor &&
		f.Ret1D.IsSome() && f.Ret1D.Unwrap() < 0

	pos.PeakReturn = max(pos.PeakReturn, ret)

	giveback := pos.PeakReturn - ret
	trailed := pos.PeakReturn >= b.params.TrailTrigger &&
		giveback >= max(0.5*pos.TakeProfit, b.params.TrailGivebackFloor)

	switch {
	case weak:
		return types.ExitWeak, true
	case trailed:
		return types.ExitTrail, true
	case ret >= pos.TakeProfit:
		return types.ExitTakeProfit, true
	case ret <= -pos.StopLoss:
		return types.ExitStopLoss, true
	case pos.HoldingDays(day) >= b.params.MaxHoldDays:
		return types.ExitMaxHold, true
	}

	return types.ExitNone, false
}
