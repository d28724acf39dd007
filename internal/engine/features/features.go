// Package features derives the per-item, per-day technical features from
// raw observations and applies the data quality filter: illiquid items are
// dropped entirely, abnormal single/two-day price jumps exclude only the
// affected day.
package features

import (
	"math"
	"sort"
	"time"

	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/marketloop/skinsim/internal/logger"
	"github.com/marketloop/skinsim/internal/types"
)

const volEpsilon = 1e-9

// Params are the feature and data quality knobs.
type Params struct {
	// Venues lists the venue column prefixes in a fixed order. The cross
	// venue ratio is Venues[0] over Venues[1].
	Venues []string `yaml:"venues" validate:"min=1"`
	// VolWindow is the rolling window of the 1d-return standard deviation.
	VolWindow int `yaml:"vol_window" validate:"gt=1"`
	// Mom7Lag and Mom30Lag are the two trailing-return horizons.
	Mom7Lag  int `yaml:"mom_7_lag" validate:"gt=0"`
	Mom30Lag int `yaml:"mom_30_lag" validate:"gt=0"`
	// SlopeLag is the difference lag of the momentum slope.
	SlopeLag int `yaml:"slope_lag" validate:"gt=0"`
	// LiquidityFloor drops an item when its mean total daily traded
	// quantity (both sides, both venues) stays below it.
	LiquidityFloor float64 `yaml:"liquidity_floor" validate:"gte=0"`
	// AbnormalReturn flags a day when the 1d or 2d sell-price move
	// exceeds this magnitude on any venue.
	AbnormalReturn float64 `yaml:"abnormal_return" validate:"gt=0"`
	// MinPrice is the smallest sell price considered a real quote.
	MinPrice float64 `yaml:"min_price" validate:"gte=0"`
}

// DefaultParams mirrors the tuned daily configuration.
func DefaultParams() Params {
	return Params{
		Venues:         []string{"BUFF", "YYYP"},
		VolWindow:      14,
		Mom7Lag:        7,
		Mom30Lag:       30,
		SlopeLag:       3,
		LiquidityFloor: 0,
		AbnormalReturn: 1.0,
		MinPrice:       1.0,
	}
}

// Table is the day-partitioned feature table the simulation walks through.
type Table struct {
	venues []string
	days   []time.Time
	byDay  map[int64]map[string]*types.ItemDay
}

// Venues returns the venue order of the table.
func (t *Table) Venues() []string {
	return t.venues
}

// Days returns the trading days in ascending order.
func (t *Table) Days() []time.Time {
	return t.days
}

// ItemsOn returns the item rows of a day ordered by item id, so walks over
// a day are deterministic.
func (t *Table) ItemsOn(day time.Time) []*types.ItemDay {
	rows := t.byDay[day.Unix()]
	if len(rows) == 0 {
		return nil
	}

	ids := make([]string, 0, len(rows))
	for id := range rows {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	out := make([]*types.ItemDay, len(ids))
	for i, id := range ids {
		out[i] = rows[id]
	}

	return out
}

// Item returns one item's row on a day, nil when the item has no usable
// data that day.
func (t *Table) Item(day time.Time, itemID string) *types.ItemDay {
	return t.byDay[day.Unix()][itemID]
}

// Slice restricts the table to days within [start, end]. None bounds are
// open ended. The underlying rows are shared, not copied.
func (t *Table) Slice(start, end optional.Option[time.Time]) *Table {
	out := &Table{
		venues: t.venues,
		days:   nil,
		byDay:  make(map[int64]map[string]*types.ItemDay),
	}

	for _, d := range t.days {
		if start.IsSome() && d.Before(start.Unwrap()) {
			continue
		}

		if end.IsSome() && d.After(end.Unwrap()) {
			continue
		}

		out.days = append(out.days, d)
		out.byDay[d.Unix()] = t.byDay[d.Unix()]
	}

	return out
}

// Build runs the data quality filter and the feature engine over raw
// observations and partitions the result by day. Days flagged abnormal and
// days where no venue shows a valid sell price are left out of the table,
// which excludes them from entries, exits and equity marking without
// touching any other day of the item.
func Build(observations []types.Observation, params Params, log *logger.Logger) *Table {
	table := &Table{
		venues: params.Venues,
		days:   nil,
		byDay:  make(map[int64]map[string]*types.ItemDay),
	}

	for _, series := range groupByItem(observations) {
		if floor := params.LiquidityFloor; floor > 0 {
			avg := meanTotalVolume(series, params.Venues)
			if avg < floor {
				log.Debug("Dropping illiquid item",
					zap.String("item", series[0].ItemID),
					zap.Float64("avg_volume", avg),
				)

				continue
			}
		}

		abnormal := flagAbnormalDays(series, params)

		days := computeItem(series, params, abnormal)
		for _, d := range days {
			key := d.Date.Unix()
			if table.byDay[key] == nil {
				table.byDay[key] = make(map[string]*types.ItemDay)
				table.days = append(table.days, d.Date)
			}

			table.byDay[key][d.ItemID] = d
		}
	}

	sort.Slice(table.days, func(i, j int) bool { return table.days[i].Before(table.days[j]) })

	return table
}

// groupByItem splits observations into per-item series sorted by date,
// dropping duplicate (item, date) rows. Items come back in id order.
func groupByItem(observations []types.Observation) [][]types.Observation {
	byItem := make(map[string][]types.Observation)
	for _, o := range observations {
		byItem[o.ItemID] = append(byItem[o.ItemID], o)
	}

	ids := make([]string, 0, len(byItem))
	for id := range byItem {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	out := make([][]types.Observation, 0, len(ids))

	for _, id := range ids {
		series := byItem[id]
		sort.Slice(series, func(i, j int) bool { return series[i].Date.Before(series[j].Date) })

		deduped := series[:0]

		for i, o := range series {
			if i == 0 || !series[i-1].Date.Equal(o.Date) {
				deduped = append(deduped, o)
			}
		}

		out = append(out, deduped)
	}

	return out
}

func meanTotalVolume(series []types.Observation, venues []string) float64 {
	if len(series) == 0 {
		return 0
	}

	total := 0.0

	for _, o := range series {
		for _, v := range venues {
			total += o.Quote(v).TotalQty()
		}
	}

	return total / float64(len(series))
}

// flagAbnormalDays marks the row indexes where any venue's sell price
// jumped more than the threshold over one or two rows. Flagged days are
// excluded for that day only; the surrounding data stays usable.
func flagAbnormalDays(series []types.Observation, params Params) []bool {
	flags := make([]bool, len(series))

	for _, venue := range params.Venues {
		prices := sellPrices(series, venue)

		for i := range prices {
			for _, lag := range []int{1, 2} {
				r := lagReturn(prices, i, lag)
				if r.IsSome() && math.Abs(r.Unwrap()) > params.AbnormalReturn {
					flags[i] = true
				}
			}
		}
	}

	return flags
}

func sellPrices(series []types.Observation, venue string) []optional.Option[float64] {
	prices := make([]optional.Option[float64], len(series))
	for i, o := range series {
		prices[i] = o.Quote(venue).SellPrice
	}

	return prices
}

// lagReturn is prices[i]/prices[i-lag] - 1, None when either end is
// missing or the base is not positive.
func lagReturn(prices []optional.Option[float64], i, lag int) optional.Option[float64] {
	if i < lag || prices[i].IsNone() || prices[i-lag].IsNone() {
		return optional.None[float64]()
	}

	base := prices[i-lag].Unwrap()
	if base <= 0 {
		return optional.None[float64]()
	}

	return optional.Some(prices[i].Unwrap()/base - 1.0)
}

// computeItem derives the full feature set for one item and returns its
// usable ItemDays.
func computeItem(series []types.Observation, params Params, abnormal []bool) []*types.ItemDay {
	features := make(map[string][]types.FeatureRow, len(params.Venues))
	for _, venue := range params.Venues {
		features[venue] = venueFeatures(series, venue, params)
	}

	out := make([]*types.ItemDay, 0, len(series))

	for i, o := range series {
		if abnormal[i] {
			continue
		}

		if !anyValidSell(o, params) {
			continue
		}

		day := &types.ItemDay{
			ItemID:     o.ItemID,
			Date:       o.Date,
			Quotes:     o.Quotes,
			Features:   make(map[string]types.FeatureRow, len(params.Venues)),
			CrossRatio: optional.None[float64](),
			CrossDiff:  optional.None[float64](),
		}

		for _, venue := range params.Venues {
			day.Features[venue] = features[venue][i]
		}

		if len(params.Venues) >= 2 {
			day.CrossRatio, day.CrossDiff = crossVenue(o, params.Venues[0], params.Venues[1])
		}

		out = append(out, day)
	}

	return out
}

func anyValidSell(o types.Observation, params Params) bool {
	for _, venue := range params.Venues {
		if o.Quote(venue).HasValidSell(params.MinPrice) {
			return true
		}
	}

	return false
}

func venueFeatures(series []types.Observation, venue string, params Params) []types.FeatureRow {
	prices := sellPrices(series, venue)

	ret1d := make([]optional.Option[float64], len(series))
	ret7d := make([]optional.Option[float64], len(series))
	ret30d := make([]optional.Option[float64], len(series))

	for i := range series {
		ret1d[i] = lagReturn(prices, i, 1)
		ret7d[i] = lagReturn(prices, i, params.Mom7Lag)
		ret30d[i] = lagReturn(prices, i, params.Mom30Lag)
	}

	rows := make([]types.FeatureRow, len(series))

	for i := range series {
		row := types.FeatureRow{
			Ret1D:  ret1d[i],
			Ret7D:  ret7d[i],
			Ret30D: ret30d[i],
			Vol:    rollingStd(ret1d, i, params.VolWindow),
			R7Z:    optional.None[float64](),
			R30Z:   optional.None[float64](),
			Slope3: optional.None[float64](),
			Spread: spread(series[i].Quote(venue)),
		}

		if row.Vol.IsSome() {
			vol := row.Vol.Unwrap() + volEpsilon
			if row.Ret7D.IsSome() {
				row.R7Z = optional.Some(row.Ret7D.Unwrap() / vol)
			}

			if row.Ret30D.IsSome() {
				row.R30Z = optional.Some(row.Ret30D.Unwrap() / vol)
			}
		}

		if i >= params.SlopeLag && ret7d[i].IsSome() && ret7d[i-params.SlopeLag].IsSome() {
			row.Slope3 = optional.Some(ret7d[i].Unwrap() - ret7d[i-params.SlopeLag].Unwrap())
		}

		rows[i] = row
	}

	return rows
}

// rollingStd is the sample standard deviation of the trailing window
// ending at i. Defined only when every return in the window is defined.
func rollingStd(returns []optional.Option[float64], i, window int) optional.Option[float64] {
	if i < window {
		return optional.None[float64]()
	}

	sum := 0.0

	for j := i - window + 1; j <= i; j++ {
		if returns[j].IsNone() {
			return optional.None[float64]()
		}

		sum += returns[j].Unwrap()
	}

	mean := sum / float64(window)
	ss := 0.0

	for j := i - window + 1; j <= i; j++ {
		d := returns[j].Unwrap() - mean
		ss += d * d
	}

	return optional.Some(math.Sqrt(ss / float64(window-1)))
}

func spread(q types.VenueQuote) optional.Option[float64] {
	if q.SellPrice.IsNone() || q.BuyPrice.IsNone() {
		return optional.None[float64]()
	}

	ask := q.SellPrice.Unwrap()
	bid := q.BuyPrice.Unwrap()

	mid := (ask + bid) / 2.0
	if mid <= 0 {
		return optional.None[float64]()
	}

	return optional.Some((ask - bid) / mid)
}

func crossVenue(o types.Observation, a, b string) (ratio, diff optional.Option[float64]) {
	pa := o.Quote(a).SellPrice
	pb := o.Quote(b).SellPrice

	if pa.IsNone() || pb.IsNone() || pb.Unwrap() <= 0 {
		return optional.None[float64](), optional.None[float64]()
	}

	return optional.Some(pa.Unwrap() / pb.Unwrap()), optional.Some(math.Abs(pa.Unwrap() - pb.Unwrap()))
}
