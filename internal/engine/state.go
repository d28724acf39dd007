package engine

import (
	"encoding/json"
	"os"

	"go.uber.org/zap"

	"github.com/marketloop/skinsim/internal/engine/bandit"
	"github.com/marketloop/skinsim/internal/logger"
	"github.com/marketloop/skinsim/pkg/errors"
)

// State is the hot-start blob: the learned reward memories carried from a
// training window into a later run. Positions, cash and the exploration
// step are intentionally not part of it.
type State struct {
	Strategy bandit.Panel       `json:"strategy"`
	Venue    bandit.Panel       `json:"venue"`
	ItemEMA  map[string]float64 `json:"item_ema"`
}

// EncodeState serializes the blob as indented JSON.
func EncodeState(state State) ([]byte, error) {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStateEncodeFailed, "failed to encode state", err)
	}

	return data, nil
}

// DecodeState parses a blob produced by EncodeState.
func DecodeState(data []byte) (State, error) {
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return State{}, errors.Wrap(errors.ErrCodeStateDecodeFailed, "failed to decode state", err)
	}

	return state, nil
}

// WriteStateFile writes the blob to disk.
func WriteStateFile(path string, state State) error {
	data, err := EncodeState(state)
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrap(errors.ErrCodeWriteFailed, "failed to write state file", err)
	}

	return nil
}

// ReadStateFile loads a blob from disk.
func ReadStateFile(path string) (State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return State{}, errors.Wrap(errors.ErrCodeStateDecodeFailed, "failed to read state file", err)
	}

	return DecodeState(data)
}

// restoreState seeds the engine's choosers and item memory from a blob.
// Arms unknown to the current configuration are logged and skipped, so a
// blob from an older strategy family still loads.
func (e *Engine) restoreState(state State, log *logger.Logger) {
	if skipped := e.strategyChooser.Restore(state.Strategy); len(skipped) > 0 {
		log.Warn("Skipping unknown strategy arms from state", zap.Strings("arms", skipped))
	}

	if skipped := e.venueChooser.Restore(state.Venue); len(skipped) > 0 {
		log.Warn("Skipping unknown venue arms from state", zap.Strings("arms", skipped))
	}

	e.itemMemory.Restore(state.ItemEMA)
}

// snapshotState captures the current reward memories.
func (e *Engine) snapshotState() State {
	return State{
		Strategy: e.strategyChooser.Snapshot(),
		Venue:    e.venueChooser.Snapshot(),
		ItemEMA:  e.itemMemory.Snapshot(),
	}
}
