// Package strategy defines the fixed catalog of parameterized entry rules.
// Strategies are plain tagged records dispatched by id lookup; the bandit
// layer decides which one to try on a given candidate.
package strategy

// Strategy is one immutable entry rule of the family.
type Strategy struct {
	// ID is the arm identifier used by the bandit and the trade log.
	ID string `yaml:"id" validate:"required"`
	// Dip1D is the maximum 1d return allowed at entry (a dip threshold,
	// usually negative).
	Dip1D float64 `yaml:"dip_1d"`
	// Mom7 and Mom30 are the minimum trailing returns at the two horizons.
	Mom7  float64 `yaml:"mom_7"`
	Mom30 float64 `yaml:"mom_30"`
	// KTp and KSl scale the entry-time volatility into dynamic TP/SL bands.
	KTp float64 `yaml:"k_tp" validate:"gte=0"`
	KSl float64 `yaml:"k_sl" validate:"gte=0"`
	// TpMin and SlMin are the absolute floors of the dynamic bands.
	TpMin float64 `yaml:"tp_min" validate:"gte=0"`
	SlMin float64 `yaml:"sl_min" validate:"gte=0"`
}

// Admits reports whether the day's raw momentum readings satisfy this
// strategy's own entry thresholds.
func (s Strategy) Admits(ret1d, ret7d, ret30d float64) bool {
	return ret1d <= s.Dip1D && ret7d >= s.Mom7 && ret30d >= s.Mom30
}

// Bands returns the dynamic take-profit and stop-loss levels for a
// position entered at the given volatility.
func (s Strategy) Bands(entryVol float64) (tp, sl float64) {
	tp = max(s.TpMin, s.KTp*entryVol)
	sl = max(s.SlMin, s.KSl*entryVol)

	return tp, sl
}

// Family is an ordered strategy catalog with id lookup.
type Family struct {
	list []Strategy
	byID map[string]Strategy
}

// NewFamily builds a Family from an ordered strategy list.
func NewFamily(strategies []Strategy) *Family {
	byID := make(map[string]Strategy, len(strategies))
	for _, s := range strategies {
		byID[s.ID] = s
	}

	return &Family{
		list: strategies,
		byID: byID,
	}
}

// IDs returns the arm identifiers in catalog order.
func (f *Family) IDs() []string {
	ids := make([]string, len(f.list))
	for i, s := range f.list {
		ids[i] = s.ID
	}

	return ids
}

// Get returns the strategy with the given id.
func (f *Family) Get(id string) (Strategy, bool) {
	s, ok := f.byID[id]

	return s, ok
}

// DefaultFamily returns the tuned five-member catalog.
func DefaultFamily() []Strategy {
	return []Strategy{
		{ID: "S1", Dip1D: -0.010, Mom7: 0.006, Mom30: 0.012, KTp: 5.6, KSl: 2.2, TpMin: 0.035, SlMin: 0.035},
		{ID: "S2", Dip1D: -0.015, Mom7: 0.012, Mom30: 0.018, KTp: 6.2, KSl: 2.6, TpMin: 0.040, SlMin: 0.035},
		{ID: "S3", Dip1D: -0.006, Mom7: 0.000, Mom30: 0.012, KTp: 4.8, KSl: 2.0, TpMin: 0.030, SlMin: 0.030},
		{ID: "S4", Dip1D: -0.020, Mom7: 0.018, Mom30: 0.022, KTp: 6.8, KSl: 3.0, TpMin: 0.045, SlMin: 0.040},
		{ID: "S5", Dip1D: 0.000, Mom7: 0.020, Mom30: 0.030, KTp: 4.2, KSl: 1.6, TpMin: 0.050, SlMin: 0.028},
	}
}
