package types

import (
	"time"

	"github.com/moznion/go-optional"
)

// FeatureRow holds the per (item, venue, day) technical features. A field
// is None when the trailing history is too short to define it; absence is
// a hard admissibility failure and is never defaulted to zero.
type FeatureRow struct {
	// Ret1D is the one day return of the venue sell price.
	Ret1D optional.Option[float64]
	// Ret7D and Ret30D are the trailing returns over the two momentum horizons.
	Ret7D  optional.Option[float64]
	Ret30D optional.Option[float64]
	// Vol is the rolling standard deviation of the one day returns.
	Vol optional.Option[float64]
	// R7Z and R30Z are the volatility-normalized momentum scores.
	R7Z  optional.Option[float64]
	R30Z optional.Option[float64]
	// Slope3 is the 3-period difference of the 7 day trailing return.
	Slope3 optional.Option[float64]
	// Spread is (sell-buy)/mid for the venue.
	Spread optional.Option[float64]
}

// ItemDay is one item's fully derived view of a single trading day: raw
// quotes, per-venue features and the cross-venue comparison. Days flagged
// abnormal by the data quality filter never reach the engine as ItemDays.
type ItemDay struct {
	ItemID     string
	Date       time.Time
	Quotes     map[string]VenueQuote
	Features   map[string]FeatureRow
	CrossRatio optional.Option[float64]
	CrossDiff  optional.Option[float64]
}

// Quote returns the day's quote for a venue, zero-valued when absent.
func (d *ItemDay) Quote(venue string) VenueQuote {
	if q, ok := d.Quotes[venue]; ok {
		return q
	}

	return VenueQuote{}
}

// Feature returns the day's features for a venue, empty when absent.
func (d *ItemDay) Feature(venue string) FeatureRow {
	if f, ok := d.Features[venue]; ok {
		return f
	}

	return FeatureRow{}
}
