package engine

import (
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"github.com/moznion/go-optional"
	"gopkg.in/yaml.v3"

	"github.com/marketloop/skinsim/internal/engine/bandit"
	"github.com/marketloop/skinsim/internal/engine/book"
	"github.com/marketloop/skinsim/internal/engine/execution"
	"github.com/marketloop/skinsim/internal/engine/features"
	"github.com/marketloop/skinsim/internal/engine/strategy"
	"github.com/marketloop/skinsim/pkg/errors"
)

// AdmissibilityParams gates which item-days may become buy candidates.
type AdmissibilityParams struct {
	MaxSpread     float64 `yaml:"max_spread" json:"max_spread" jsonschema:"title=Max Spread,description=Upper bound on the relative bid-ask spread,minimum=0" validate:"gte=0"`
	CrossLow      float64 `yaml:"cross_low" json:"cross_low" jsonschema:"title=Cross Ratio Low,description=Lower bound on the cross-venue price ratio" validate:"gt=0"`
	CrossHigh     float64 `yaml:"cross_high" json:"cross_high" jsonschema:"title=Cross Ratio High,description=Upper bound on the cross-venue price ratio" validate:"gt=0,gtefield=CrossLow"`
	MinR7Z        float64 `yaml:"min_r7z" json:"min_r7z" jsonschema:"title=Min 7d Z,description=Floor on the 7-day volatility-scaled return"`
	MinR30Z       float64 `yaml:"min_r30z" json:"min_r30z" jsonschema:"title=Min 30d Z,description=Floor on the 30-day volatility-scaled return"`
	TightMinR7Z   float64 `yaml:"tight_min_r7z" json:"tight_min_r7z" jsonschema:"title=Tight Min 7d Z,description=Stricter 7-day floor applied while the venue reward memory is negative"`
	TightSpread   float64 `yaml:"tight_spread" json:"tight_spread" jsonschema:"title=Tight Max Spread,description=Stricter spread bound applied while the venue reward memory is negative" validate:"gte=0"`
	MinTotalQty   float64 `yaml:"min_total_qty" json:"min_total_qty" jsonschema:"title=Min Total Quantity,description=Floor on the day's combined displayed quantity" validate:"gte=0"`
	MinSideOrders float64 `yaml:"min_side_orders" json:"min_side_orders" jsonschema:"title=Min Side Orders,description=Floor on each of the displayed sell-side and buy-side quantities" validate:"gte=0"`
}

// ScoreWeights combine the feature panel and the reward memories into a
// single candidate score.
type ScoreWeights struct {
	R7Z         float64 `yaml:"r7z" json:"r7z"`
	R30Z        float64 `yaml:"r30z" json:"r30z"`
	DipBonus    float64 `yaml:"dip_bonus" json:"dip_bonus"`
	VolPenalty  float64 `yaml:"vol_penalty" json:"vol_penalty"`
	SpreadPen   float64 `yaml:"spread_penalty" json:"spread_penalty"`
	StrategyEMA float64 `yaml:"strategy_ema" json:"strategy_ema"`
	VenueEMA    float64 `yaml:"venue_ema" json:"venue_ema"`
	ItemEMA     float64 `yaml:"item_ema" json:"item_ema"`
	// SpreadNorm divides the spread before the penalty is clipped at 1.
	SpreadNorm float64 `yaml:"spread_norm" json:"spread_norm" validate:"gt=0"`
}

// Config is the full engine configuration. It round-trips through YAML
// and publishes a JSON schema for editor tooling.
type Config struct {
	InitialCash  float64 `yaml:"initial_cash" json:"initial_cash" jsonschema:"title=Initial Cash,description=Starting cash for the simulation,minimum=0" validate:"gt=0"`
	Seed         int64   `yaml:"seed" json:"seed" jsonschema:"title=Seed,description=Seed for the single exploration RNG"`
	HalfLifeDays float64 `yaml:"half_life_days" json:"half_life_days" jsonschema:"title=Half Life Days,description=Half-life of the reward EMAs in days,minimum=1" validate:"gte=1"`

	StartDate optional.Option[time.Time] `yaml:"start_date" json:"start_date" jsonschema:"title=Start Date,description=Optional first day of the simulated window"`
	EndDate   optional.Option[time.Time] `yaml:"end_date" json:"end_date" jsonschema:"title=End Date,description=Optional last day of the simulated window"`

	Features      features.Params     `yaml:"features" json:"features" jsonschema:"title=Features"`
	Admissibility AdmissibilityParams `yaml:"admissibility" json:"admissibility" jsonschema:"title=Admissibility"`
	Score         ScoreWeights        `yaml:"score" json:"score" jsonschema:"title=Score Weights"`
	Schedule      bandit.Schedule     `yaml:"schedule" json:"schedule" jsonschema:"title=Exploration Schedule"`
	Execution     execution.Params    `yaml:"execution" json:"execution" jsonschema:"title=Execution"`
	Book          book.Params         `yaml:"book" json:"book" jsonschema:"title=Position Book"`

	Strategies []strategy.Strategy `yaml:"strategies" json:"strategies" jsonschema:"title=Strategy Family"`
}

// UnmarshalYAML implements custom unmarshaling so the optional dates can
// be written as plain timestamps. Fields absent from the document keep
// the values already present on the receiver.
func (c *Config) UnmarshalYAML(unmarshal func(interface{}) error) error {
	type raw struct {
		InitialCash   float64             `yaml:"initial_cash"`
		Seed          int64               `yaml:"seed"`
		HalfLifeDays  float64             `yaml:"half_life_days"`
		StartDate     *time.Time          `yaml:"start_date"`
		EndDate       *time.Time          `yaml:"end_date"`
		Features      features.Params     `yaml:"features"`
		Admissibility AdmissibilityParams `yaml:"admissibility"`
		Score         ScoreWeights        `yaml:"score"`
		Schedule      bandit.Schedule     `yaml:"schedule"`
		Execution     execution.Params    `yaml:"execution"`
		Book          book.Params         `yaml:"book"`
		Strategies    []strategy.Strategy `yaml:"strategies"`
	}

	config := raw{
		InitialCash:   c.InitialCash,
		Seed:          c.Seed,
		HalfLifeDays:  c.HalfLifeDays,
		Features:      c.Features,
		Admissibility: c.Admissibility,
		Score:         c.Score,
		Schedule:      c.Schedule,
		Execution:     c.Execution,
		Book:          c.Book,
		Strategies:    c.Strategies,
	}

	if err := unmarshal(&config); err != nil {
		return err
	}

	c.InitialCash = config.InitialCash
	c.Seed = config.Seed
	c.HalfLifeDays = config.HalfLifeDays
	c.Features = config.Features
	c.Admissibility = config.Admissibility
	c.Score = config.Score
	c.Schedule = config.Schedule
	c.Execution = config.Execution
	c.Book = config.Book
	c.Strategies = config.Strategies

	if config.StartDate != nil {
		c.StartDate = optional.Some(*config.StartDate)
	}

	if config.EndDate != nil {
		c.EndDate = optional.Some(*config.EndDate)
	}

	return nil
}

// DefaultConfig returns the tuned configuration used by the production
// runs.
func DefaultConfig() Config {
	return Config{
		InitialCash:  100000,
		Seed:         42,
		HalfLifeDays: 60,
		StartDate:    optional.None[time.Time](),
		EndDate:      optional.None[time.Time](),
		Features:     features.DefaultParams(),
		Admissibility: AdmissibilityParams{
			MaxSpread:     0.08,
			CrossLow:      0.85,
			CrossHigh:     1.18,
			MinR7Z:        0.15,
			MinR30Z:       0.05,
			TightMinR7Z:   0.25,
			TightSpread:   0.06,
			MinTotalQty:   5,
			MinSideOrders: 1,
		},
		Score: ScoreWeights{
			R7Z:         0.6,
			R30Z:        0.4,
			DipBonus:    0.3,
			VolPenalty:  0.7,
			SpreadPen:   0.8,
			StrategyEMA: 0.5,
			VenueEMA:    0.6,
			ItemEMA:     0.7,
			SpreadNorm:  0.10,
		},
		Schedule:   bandit.DefaultSchedule(),
		Execution:  execution.DefaultParams(),
		Book:       book.DefaultParams(),
		Strategies: strategy.DefaultFamily(),
	}
}

// ParseConfig unmarshals a YAML document over the defaults and validates
// the result, so partial configs only override the keys they mention.
func ParseConfig(content []byte) (Config, error) {
	config := DefaultConfig()
	if err := yaml.Unmarshal(content, &config); err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse config", err)
	}

	if err := config.Validate(); err != nil {
		return Config{}, err
	}

	return config, nil
}

// Validate checks the configuration's field constraints and the
// cross-field invariants the tags cannot express.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "config validation failed", err)
	}

	if len(c.Features.Venues) != 2 {
		return errors.Newf(errors.ErrCodeInvalidConfiguration, "expected exactly 2 venues, got %d", len(c.Features.Venues))
	}

	if len(c.Strategies) == 0 {
		return errors.New(errors.ErrCodeInvalidConfiguration, "strategy family is empty")
	}

	seen := make(map[string]bool, len(c.Strategies))
	for _, st := range c.Strategies {
		if st.ID == "" {
			return errors.New(errors.ErrCodeInvalidConfiguration, "strategy with empty id")
		}

		if seen[st.ID] {
			return errors.Newf(errors.ErrCodeInvalidConfiguration, "duplicate strategy id %q", st.ID)
		}

		seen[st.ID] = true
	}

	start, startErr := c.StartDate.Take()
	end, endErr := c.EndDate.Take()

	if startErr == nil && endErr == nil && end.Before(start) {
		return errors.New(errors.ErrCodeInvalidDateRange, "end_date before start_date")
	}

	return nil
}

// GenerateSchema reflects the config into a JSON schema.
func (c *Config) GenerateSchema() *jsonschema.Schema {
	schema := jsonschema.Reflect(c)
	schema.Title = "skinsim-engine-config"
	schema.Description = "Configuration schema for the marketplace backtest engine"
	schema.Version = "http://json-schema.org/draft-07/schema#"

	return schema
}

// GenerateSchemaJSON renders the schema as indented JSON.
func (c *Config) GenerateSchemaJSON() (string, error) {
	schemaBytes, err := json.MarshalIndent(c.GenerateSchema(), "", "  ")
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to generate schema", err)
	}

	return string(schemaBytes), nil
}
