package types

import (
	"time"

	"github.com/moznion/go-optional"
)

// VenueQuote is one venue's view of an item on a single day. Prices follow
// the input table contract: SellPrice is the lowest listed sell (ask) side,
// BuyPrice the highest standing buy (bid) side. A zero price in the raw
// table means missing and must arrive here as None, never as 0.
type VenueQuote struct {
	SellPrice optional.Option[float64]
	BuyPrice  optional.Option[float64]
	SellQty   float64
	BuyQty    float64
}

// HasValidSell reports whether the venue shows a usable sell price at or
// above the configured minimum.
func (q VenueQuote) HasValidSell(minPrice float64) bool {
	return q.SellPrice.IsSome() && q.SellPrice.Unwrap() >= minPrice
}

// HasValidBuy reports whether the venue shows a usable buy price.
func (q VenueQuote) HasValidBuy() bool {
	return q.BuyPrice.IsSome() && q.BuyPrice.Unwrap() > 0
}

// TotalQty is the displayed traded quantity across both sides.
func (q VenueQuote) TotalQty() float64 {
	return q.SellQty + q.BuyQty
}

// Observation is one immutable row of the input table: a single item on a
// single day with a quote per venue.
type Observation struct {
	ItemID string
	Date   time.Time
	Quotes map[string]VenueQuote
}

// Quote returns the quote for the given venue, or a zero VenueQuote when
// the venue is absent from the row.
func (o Observation) Quote(venue string) VenueQuote {
	if q, ok := o.Quotes[venue]; ok {
		return q
	}

	return VenueQuote{}
}
