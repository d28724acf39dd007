package writers

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"gopkg.in/yaml.v3"

	"github.com/marketloop/skinsim/internal/types"
)

type WritersTestSuite struct {
	suite.Suite
	tempDir string
}

func (s *WritersTestSuite) SetupTest() {
	s.tempDir = s.T().TempDir()
}

func (s *WritersTestSuite) readCSV(path string) [][]string {
	file, err := os.Open(path)
	s.Require().NoError(err)
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	s.Require().NoError(err)

	return records
}

func (s *WritersTestSuite) TestTradesWriter() {
	day := time.Date(2021, 3, 15, 0, 0, 0, 0, time.UTC)
	trades := []types.Trade{
		{
			ID:         "buy-1",
			Date:       day,
			ItemID:     "knife",
			Venue:      "BUFF",
			StrategyID: "S2",
			Side:       types.SideBuy,
			Price:      63.87,
			Quantity:   20,
			CashAfter:  98722.6,
		},
		{
			ID:          "sell-1",
			Date:        day.AddDate(0, 0, 8),
			ItemID:      "knife",
			Venue:       "BUFF",
			StrategyID:  "S2",
			Side:        types.SideSell,
			ExitReason:  types.ExitTakeProfit,
			Price:       71.2,
			Quantity:    20,
			CashAfter:   100118.1,
			RealizedPnL: 118.1,
			HoldingDays: 8,
		},
	}

	path := filepath.Join(s.tempDir, "results", "trades.csv")
	s.Require().NoError(NewTradesWriter(path).Write(trades))

	records := s.readCSV(path)
	s.Require().Len(records, 3)
	s.Equal(tradesHeader, records[0])
	s.Equal("2021-03-15", records[1][1])
	s.Equal("BUY", records[1][5])
	s.Equal("", records[1][6])
	s.Equal("TP", records[2][6])
	s.Equal("20", records[2][8])
	s.Equal("8", records[2][11])
}

func (s *WritersTestSuite) TestEquityWriter() {
	day := time.Date(2021, 3, 15, 0, 0, 0, 0, time.UTC)
	points := []types.EquityPoint{
		{Date: day, Equity: 100000},
		{Date: day.AddDate(0, 0, 1), Equity: 100231.5},
	}

	path := filepath.Join(s.tempDir, "equity.csv")
	s.Require().NoError(NewEquityWriter(path).Write(points))

	records := s.readCSV(path)
	s.Require().Len(records, 3)
	s.Equal([]string{"date", "equity"}, records[0])
	s.Equal([]string{"2021-03-15", "100000"}, records[1])
	s.Equal([]string{"2021-03-16", "100231.5"}, records[2])
}

func (s *WritersTestSuite) TestSummaryWriter() {
	summary := types.Summary{
		FinalCash:          100118.1,
		FinalEquity:        100118.1,
		ClosedTrades:       1,
		Wins:               1,
		WinRate:            1,
		AvgPnLPerTrade:     118.1,
		TotalPnL:           118.1,
		MaxDrawdown:        -0.012,
		RemainingPositions: 0,
	}

	path := filepath.Join(s.tempDir, "summary.yaml")
	s.Require().NoError(WriteSummary(path, summary))

	data, err := os.ReadFile(path)
	s.Require().NoError(err)

	var loaded types.Summary
	s.Require().NoError(yaml.Unmarshal(data, &loaded))
	s.Equal(summary, loaded)
}

func (s *WritersTestSuite) TestEmptyTradeLogStillWritesHeader() {
	path := filepath.Join(s.tempDir, "trades.csv")
	s.Require().NoError(NewTradesWriter(path).Write(nil))

	records := s.readCSV(path)
	s.Require().Len(records, 1)
	s.Equal(tradesHeader, records[0])
}

func TestWritersTestSuite(t *testing.T) {
	suite.Run(t, new(WritersTestSuite))
}
