package engine

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/marketloop/skinsim/internal/engine/bandit"
)

type StateTestSuite struct {
	suite.Suite
}

func (s *StateTestSuite) TestFileRoundTrip() {
	state := State{
		Strategy: bandit.Panel{
			Counts:    map[string]int{"S1": 4},
			RewardSum: map[string]float64{"S1": 0.12},
			RewardEMA: map[string]float64{"S1": 0.03},
		},
		Venue: bandit.Panel{
			Counts:    map[string]int{"BUFF": 2, "YYYP": 2},
			RewardSum: map[string]float64{"BUFF": -0.01, "YYYP": 0.05},
			RewardEMA: map[string]float64{"BUFF": -0.005, "YYYP": 0.02},
		},
		ItemEMA: map[string]float64{"knife": 0.04},
	}

	path := filepath.Join(s.T().TempDir(), "state.json")
	s.Require().NoError(WriteStateFile(path, state))

	loaded, err := ReadStateFile(path)
	s.Require().NoError(err)
	s.Equal(state, loaded)
}

func (s *StateTestSuite) TestReadMissingFile() {
	_, err := ReadStateFile(filepath.Join(s.T().TempDir(), "absent.json"))
	s.Error(err)
}

func (s *StateTestSuite) TestDecodeGarbage() {
	_, err := DecodeState([]byte("{not json"))
	s.Error(err)
}

func TestStateTestSuite(t *testing.T) {
	suite.Run(t, new(StateTestSuite))
}
