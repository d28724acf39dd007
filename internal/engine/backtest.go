// Package engine runs the adaptive marketplace backtest: a strict
// day-by-day loop that evaluates exits on the open book, lets two annealed
// bandits pick the day's strategy and venue, scores admissible candidates
// and executes the best of them under the capacity model, then marks
// equity. A fixed seed makes the whole run reproducible.
package engine

import (
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/marketloop/skinsim/internal/engine/bandit"
	"github.com/marketloop/skinsim/internal/engine/book"
	"github.com/marketloop/skinsim/internal/engine/execution"
	"github.com/marketloop/skinsim/internal/engine/features"
	"github.com/marketloop/skinsim/internal/engine/strategy"
	"github.com/marketloop/skinsim/internal/logger"
	"github.com/marketloop/skinsim/internal/types"
	"github.com/marketloop/skinsim/pkg/errors"
)

// Result bundles everything a finished run produces.
type Result struct {
	Trades  []types.Trade
	Equity  []types.EquityPoint
	Summary types.Summary
	State   State
}

// ProgressCallback is invoked after each simulated day.
type ProgressCallback func(done, total int)

type markKey struct {
	itemID string
	venue  string
}

// candidate is one admissible entry with its drawn arm pair and score.
type candidate struct {
	itemID     string
	strategyID string
	venue      string
	score      float64
	rawAsk     float64
	depth      float64
	vol        float64
}

// Engine is the simulation driver. It is single-threaded and not safe for
// concurrent use; all randomness flows through the one seeded rng.
type Engine struct {
	config Config
	log    *logger.Logger
	rng    *rand.Rand

	family          *strategy.Family
	strategyChooser *bandit.Chooser
	venueChooser    *bandit.Chooser
	itemMemory      *bandit.ItemMemory
	sim             *execution.Simulator
	book            *book.Book

	cash   float64
	trades []types.Trade
	equity []types.EquityPoint

	// lastSell remembers the most recent valid raw sell price seen for
	// each open position, used for equity marking and settlement.
	lastSell map[markKey]float64

	onDay ProgressCallback
}

// NewEngine validates the config and wires the simulation components. An
// optional hot-start state seeds the reward memories before the first day.
func NewEngine(config Config, state optional.Option[State], log *logger.Logger) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	family := strategy.NewFamily(config.Strategies)
	alpha := bandit.AlphaFromHalfLife(config.HalfLifeDays)
	rng := rand.New(rand.NewSource(config.Seed))

	e := &Engine{
		config:          config,
		log:             log,
		rng:             rng,
		family:          family,
		strategyChooser: bandit.NewChooser(family.IDs(), config.Schedule, alpha, rng),
		venueChooser:    bandit.NewChooser(config.Features.Venues, config.Schedule, alpha, rng),
		itemMemory:      bandit.NewItemMemory(alpha),
		sim:             execution.NewSimulator(config.Execution),
		book:            book.New(config.Book),
		cash:            config.InitialCash,
		lastSell:        make(map[markKey]float64),
	}

	if blob, err := state.Take(); err == nil {
		e.restoreState(blob, log)
	}

	return e, nil
}

// newID draws a reproducible uuid from the engine rng, keeping the trade
// log byte-identical across runs with the same seed.
func (e *Engine) newID() string {
	id, err := uuid.NewRandomFromReader(e.rng)
	if err != nil {
		return uuid.NewString()
	}

	return id.String()
}

// SetProgressCallback registers a per-day callback, used by the CLI to
// drive a progress bar.
func (e *Engine) SetProgressCallback(cb ProgressCallback) {
	e.onDay = cb
}

// Run simulates every day of the table that falls inside the configured
// window and returns the finished result. It may be called once per
// Engine.
func (e *Engine) Run(table *features.Table) (Result, error) {
	window := table.Slice(e.config.StartDate, e.config.EndDate)

	days := window.Days()
	if len(days) == 0 {
		return Result{}, errors.New(errors.ErrCodeTableEmpty, "no tradable days in the configured window")
	}

	e.log.Info("Starting simulation",
		zap.Int("days", len(days)),
		zap.Time("first", days[0]),
		zap.Time("last", days[len(days)-1]),
		zap.Float64("initial_cash", e.cash))

	for i, day := range days {
		e.stepExits(window, day)
		e.stepEntries(window, day)

		if i == len(days)-1 {
			e.settle(day)
		}

		e.markEquity(day)

		if e.onDay != nil {
			e.onDay(i+1, len(days))
		}
	}

	remaining := e.book.Len()
	summary := types.ComputeSummary(e.trades, e.equity, e.cash, remaining)

	e.log.Info("Simulation finished",
		zap.Float64("final_equity", summary.FinalEquity),
		zap.Int("closed_trades", summary.ClosedTrades),
		zap.Int("remaining_positions", remaining))

	return Result{
		Trades:  e.trades,
		Equity:  e.equity,
		Summary: summary,
		State:   e.snapshotState(),
	}, nil
}

// stepExits evaluates the exit rules over the open book. Positions whose
// item has no usable row today are carried unchanged.
func (e *Engine) stepExits(table *features.Table, day time.Time) {
	for _, pos := range e.book.Sorted() {
		row := table.Item(day, pos.ItemID)
		if row == nil {
			continue
		}

		quote := row.Quote(pos.Venue)
		if !quote.HasValidSell(e.config.Features.MinPrice) {
			continue
		}

		rawAsk := quote.SellPrice.Unwrap()
		e.lastSell[markKey{pos.ItemID, pos.Venue}] = rawAsk

		ret := pos.Return(e.sim.SellPrice(rawAsk))

		reason, exit := e.book.EvaluateExit(pos, day, ret, row.Feature(pos.Venue))
		if !exit {
			continue
		}

		e.closePosition(pos, day, rawAsk, reason)
	}
}

// closePosition books the sell, records the trade and feeds the realized
// ROI back into the reward memories.
func (e *Engine) closePosition(pos *types.Position, day time.Time, rawAsk float64, reason types.ExitReason) {
	proceeds := e.sim.Proceeds(pos.Quantity, rawAsk)
	pnl := e.sim.RealizedPnL(pos.Quantity, rawAsk, pos.EntryPrice)
	roi := e.sim.ROI(pos.Quantity, rawAsk, pos.EntryPrice)

	e.cash += proceeds
	e.book.Close(pos.ItemID, pos.Venue)
	delete(e.lastSell, markKey{pos.ItemID, pos.Venue})

	e.trades = append(e.trades, types.Trade{
		ID:          e.newID(),
		Date:        day,
		ItemID:      pos.ItemID,
		Venue:       pos.Venue,
		StrategyID:  pos.StrategyID,
		Side:        types.SideSell,
		ExitReason:  reason,
		Price:       e.sim.SellPrice(rawAsk),
		Quantity:    pos.Quantity,
		CashAfter:   e.cash,
		RealizedPnL: pnl,
		HoldingDays: pos.HoldingDays(day),
	})

	e.strategyChooser.Update(pos.StrategyID, roi)
	e.venueChooser.Update(pos.Venue, roi)
	e.itemMemory.Update(pos.ItemID, roi)

	e.log.Debug("Closed position",
		zap.String("item", pos.ItemID),
		zap.String("venue", pos.Venue),
		zap.String("reason", string(reason)),
		zap.Float64("pnl", pnl),
		zap.Int("holding_days", pos.HoldingDays(day)))
}

// stepEntries builds the admissible candidate list, each candidate carrying
// its own bandit-drawn arm pair, and opens the best entries under the
// capacity limits.
func (e *Engine) stepEntries(table *features.Table, day time.Time) {
	candidates := e.collectCandidates(table, day)

	opened := 0
	for _, cand := range candidates {
		if opened >= e.config.Execution.MaxNewBuysPerDay || e.book.Len() >= e.config.Execution.MaxPositions {
			break
		}

		if e.book.Holds(cand.itemID) {
			continue
		}

		strat, ok := e.family.Get(cand.strategyID)
		if !ok {
			continue
		}

		qty, effPrice, sized := e.sim.SizeBuy(e.cash, cand.rawAsk, cand.depth)
		if !sized {
			continue
		}

		tp, sl := strat.Bands(cand.vol)
		pos := &types.Position{
			ID:         e.newID(),
			ItemID:     cand.itemID,
			Venue:      cand.venue,
			Quantity:   qty,
			EntryPrice: effPrice,
			EntryDate:  day,
			StrategyID: strat.ID,
			TakeProfit: tp,
			StopLoss:   sl,
		}

		e.cash -= float64(qty) * effPrice
		e.book.Open(pos)
		e.lastSell[markKey{cand.itemID, cand.venue}] = cand.rawAsk
		opened++

		e.trades = append(e.trades, types.Trade{
			ID:         e.newID(),
			Date:       day,
			ItemID:     cand.itemID,
			Venue:      cand.venue,
			StrategyID: strat.ID,
			Side:       types.SideBuy,
			Price:      effPrice,
			Quantity:   qty,
			CashAfter:  e.cash,
		})

		e.log.Debug("Opened position",
			zap.String("item", cand.itemID),
			zap.String("venue", cand.venue),
			zap.String("strategy", strat.ID),
			zap.Int("qty", qty),
			zap.Float64("price", effPrice),
			zap.Float64("score", cand.score))
	}
}

// collectCandidates walks every item trading today. For each item neither
// held nor in cooldown it draws a fresh strategy and venue arm from the
// bandits, then applies the admissibility gates and the scoring model on
// that drawn pair. Candidates come back sorted by score descending with
// item id as the deterministic tie break. Draws happen before validation,
// so the exploration anneal advances once per considered item.
func (e *Engine) collectCandidates(table *features.Table, day time.Time) []candidate {
	adm := e.config.Admissibility

	var out []candidate

	for _, row := range table.ItemsOn(day) {
		if e.book.Holds(row.ItemID) || e.book.InCooldown(row.ItemID, day, e.config.Execution.CooldownDays) {
			continue
		}

		strategyID := e.strategyChooser.Select()
		venue := e.venueChooser.Select()

		strat, ok := e.family.Get(strategyID)
		if !ok {
			continue
		}

		// A negative reward memory on the drawn venue tightens the gates.
		maxSpread := adm.MaxSpread
		minR7Z := adm.MinR7Z
		if e.venueChooser.EMA(venue) < 0 {
			maxSpread = adm.TightSpread
			minR7Z = adm.TightMinR7Z
		}

		quote := row.Quote(venue)
		if !quote.HasValidSell(e.config.Features.MinPrice) {
			continue
		}

		if quote.SellQty < adm.MinSideOrders || quote.BuyQty < adm.MinSideOrders {
			continue
		}

		totalQty := 0.0
		for _, q := range row.Quotes {
			totalQty += q.TotalQty()
		}

		if totalQty < adm.MinTotalQty {
			continue
		}

		f := row.Feature(venue)
		if f.Ret1D.IsNone() || f.Ret7D.IsNone() || f.Ret30D.IsNone() ||
			f.Vol.IsNone() || f.R7Z.IsNone() || f.R30Z.IsNone() ||
			f.Slope3.IsNone() || f.Spread.IsNone() || row.CrossRatio.IsNone() {
			continue
		}

		spread := f.Spread.Unwrap()
		cross := row.CrossRatio.Unwrap()
		r7z := f.R7Z.Unwrap()
		r30z := f.R30Z.Unwrap()

		if spread > maxSpread || cross < adm.CrossLow || cross > adm.CrossHigh {
			continue
		}

		if r7z < minR7Z || r30z < adm.MinR30Z || f.Slope3.Unwrap() <= 0 {
			continue
		}

		if !strat.Admits(f.Ret1D.Unwrap(), f.Ret7D.Unwrap(), f.Ret30D.Unwrap()) {
			continue
		}

		out = append(out, candidate{
			itemID:     row.ItemID,
			strategyID: strat.ID,
			venue:      venue,
			score:      e.score(f, spread, r7z, r30z, strat.ID, venue, row.ItemID),
			rawAsk:     quote.SellPrice.Unwrap(),
			depth:      quote.SellQty,
			vol:        f.Vol.Unwrap(),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}

		return out[i].itemID < out[j].itemID
	})

	return out
}

// score combines the feature panel with the three reward memories.
func (e *Engine) score(f types.FeatureRow, spread, r7z, r30z float64, strategyID, venue, itemID string) float64 {
	w := e.config.Score

	dip := math.Max(-f.Ret1D.Unwrap(), 0)
	spreadPen := math.Min(spread/w.SpreadNorm, 1.0)

	return w.R7Z*r7z +
		w.R30Z*r30z +
		w.DipBonus*dip -
		w.VolPenalty*f.Vol.Unwrap() -
		w.SpreadPen*spreadPen +
		w.StrategyEMA*e.strategyChooser.EMA(strategyID) +
		w.VenueEMA*e.venueChooser.EMA(venue) +
		w.ItemEMA*e.itemMemory.EMA(itemID)
}

// settle force-liquidates the book at the end of the horizon. Positions
// still inside the minimum holding period stay open and are only marked
// to market; settlement sells feed a final reward into the memories so a
// hot-started follow-up run sees the horizon outcome.
func (e *Engine) settle(day time.Time) {
	for _, pos := range e.book.Sorted() {
		if e.book.Locked(pos, day) {
			e.log.Debug("Keeping locked position at horizon",
				zap.String("item", pos.ItemID),
				zap.String("venue", pos.Venue),
				zap.Int("holding_days", pos.HoldingDays(day)))

			continue
		}

		rawAsk, ok := e.lastSell[markKey{pos.ItemID, pos.Venue}]
		if !ok {
			rawAsk = pos.EntryPrice
		}

		e.closePosition(pos, day, rawAsk, types.ExitHorizon)
	}
}

// markEquity appends today's equity point: cash plus every open position
// marked at its last seen valid raw sell price. Slippage and fees apply
// only when a sell actually executes.
func (e *Engine) markEquity(day time.Time) {
	equity := e.cash

	for _, pos := range e.book.Sorted() {
		rawAsk, ok := e.lastSell[markKey{pos.ItemID, pos.Venue}]
		if !ok {
			rawAsk = pos.EntryPrice
		}

		equity += float64(pos.Quantity) * rawAsk
	}

	e.equity = append(e.equity, types.EquityPoint{Date: day, Equity: equity})
}
