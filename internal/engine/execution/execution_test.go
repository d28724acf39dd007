package execution

import (
	"math"
	"testing"

	"github.com/stretchr/testify/suite"
)

type ExecutionTestSuite struct {
	suite.Suite
	sim *Simulator
}

func (s *ExecutionTestSuite) SetupTest() {
	s.sim = NewSimulator(DefaultParams())
}

func (s *ExecutionTestSuite) TestBuySizingUnderCashFraction() {
	// 8% of 100k is 8000, below the 20k notional cap.
	qty, eff, ok := s.sim.SizeBuy(100000, 100.0, 1000)
	s.Require().True(ok)
	s.InDelta(100.3, eff, 1e-9)
	wantQty := 8000 / 100.3
	s.Equal(int(wantQty), qty)
}

func (s *ExecutionTestSuite) TestNotionalCapBinds() {
	params := DefaultParams()
	params.OrderFraction = 1.0
	params.NotionalCap = 200
	sim := NewSimulator(params)

	qty, eff, ok := sim.SizeBuy(1000, 10.0, 1000)
	s.Require().True(ok)
	s.InDelta(10.03, eff, 1e-9)
	s.Equal(19, qty)
	s.LessOrEqual(float64(qty)*eff, 200.0)
}

func (s *ExecutionTestSuite) TestDepthCapBinds() {
	// Budget would allow 79 units, but 20% of 50 displayed caps at 10.
	qty, _, ok := s.sim.SizeBuy(100000, 100.0, 50)
	s.Require().True(ok)
	s.Equal(10, qty)
}

func (s *ExecutionTestSuite) TestDepthCapFloorsAtOne() {
	qty, _, ok := s.sim.SizeBuy(100000, 100.0, 2)
	s.Require().True(ok)
	s.Equal(1, qty)
}

func (s *ExecutionTestSuite) TestRejectsBelowMinQty() {
	// Budget of 8 cannot afford a single unit at 100.
	_, _, ok := s.sim.SizeBuy(100, 100.0, 1000)
	s.False(ok)
}

func (s *ExecutionTestSuite) TestRejectsNonPositivePrice() {
	_, _, ok := s.sim.SizeBuy(100000, 0, 1000)
	s.False(ok)
}

func (s *ExecutionTestSuite) TestSellProceedsApplySlipAndFee() {
	proceeds := s.sim.Proceeds(10, 100.0)
	want := 10 * 100.0 * (1 - 0.003) * (1 - 0.02)
	s.InDelta(want, proceeds, 1e-9)
}

func (s *ExecutionTestSuite) TestRealizedPnLAndROI() {
	// Bought 10 at 90, sold at raw 100.
	pnl := s.sim.RealizedPnL(10, 100.0, 90.0)
	want := 10*100.0*(1-0.003)*(1-0.02) - 10*90.0
	s.InDelta(want, pnl, 1e-9)

	roi := s.sim.ROI(10, 100.0, 90.0)
	s.InDelta(want/900.0, roi, 1e-9)
}

func (s *ExecutionTestSuite) TestROIZeroNotional() {
	s.Zero(s.sim.ROI(0, 100.0, 90.0))
}

func (s *ExecutionTestSuite) TestRoundTripAtFlatPriceLosesCosts() {
	// Selling at the entry raw price must lose slippage plus fee.
	roi := s.sim.ROI(5, 100.0, s.sim.BuyPrice(100.0))
	s.Less(roi, 0.0)
	s.InDelta((1-0.003)*(1-0.02)/(1+0.003)-1, roi, 1e-9)
	s.False(math.IsNaN(roi))
}

func TestExecutionTestSuite(t *testing.T) {
	suite.Run(t, new(ExecutionTestSuite))
}
