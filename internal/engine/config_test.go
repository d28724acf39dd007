package engine

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type ConfigTestSuite struct {
	suite.Suite
}

func (s *ConfigTestSuite) TestDefaultConfigIsValid() {
	config := DefaultConfig()
	s.NoError(config.Validate())
	s.Equal(100000.0, config.InitialCash)
	s.Len(config.Strategies, 5)
	s.Len(config.Features.Venues, 2)
}

func (s *ConfigTestSuite) TestParsePartialOverridesDefaults() {
	content := []byte(`
initial_cash: 50000
seed: 7
execution:
  order_fraction: 0.05
  notional_cap: 20000
  depth_fraction: 0.20
  slip_buy: 0.003
  slip_sell: 0.003
  fee_rate: 0.02
  min_qty: 1
  cooldown_days: 14
  max_positions: 16
  max_new_buys_per_day: 2
`)

	config, err := ParseConfig(content)
	s.Require().NoError(err)
	s.Equal(50000.0, config.InitialCash)
	s.Equal(int64(7), config.Seed)
	s.Equal(0.05, config.Execution.OrderFraction)
	// Untouched sections keep their defaults.
	s.Equal(60.0, config.HalfLifeDays)
	s.Equal(0.08, config.Admissibility.MaxSpread)
	s.Len(config.Strategies, 5)
}

func (s *ConfigTestSuite) TestParseDates() {
	content := []byte(`
start_date: 2021-01-01T00:00:00Z
end_date: 2021-12-31T00:00:00Z
`)

	config, err := ParseConfig(content)
	s.Require().NoError(err)

	start, serr := config.StartDate.Take()
	s.Require().NoError(serr)
	s.Equal(time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC), start)

	end, eerr := config.EndDate.Take()
	s.Require().NoError(eerr)
	s.Equal(2021, end.Year())
}

func (s *ConfigTestSuite) TestRejectsReversedDates() {
	content := []byte(`
start_date: 2021-12-31T00:00:00Z
end_date: 2021-01-01T00:00:00Z
`)

	_, err := ParseConfig(content)
	s.Error(err)
}

func (s *ConfigTestSuite) TestRejectsDuplicateStrategyID() {
	config := DefaultConfig()
	config.Strategies = append(config.Strategies, config.Strategies[0])
	s.Error(config.Validate())
}

func (s *ConfigTestSuite) TestRejectsWrongVenueCount() {
	config := DefaultConfig()
	config.Features.Venues = []string{"only_one"}
	s.Error(config.Validate())
}

func (s *ConfigTestSuite) TestRejectsInvalidYAML() {
	_, err := ParseConfig([]byte("initial_cash: [not a number"))
	s.Error(err)
}

func (s *ConfigTestSuite) TestGenerateSchemaJSON() {
	config := DefaultConfig()
	schemaJSON, err := config.GenerateSchemaJSON()
	s.Require().NoError(err)
	s.NotEmpty(schemaJSON)

	var result map[string]interface{}
	s.Require().NoError(json.Unmarshal([]byte(schemaJSON), &result))
	s.Equal("skinsim-engine-config", result["title"])
}

func TestConfigTestSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}
