// Package writers persists a finished run's artifacts: the trade log and
// equity curve as CSV, the summary as YAML.
package writers

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/marketloop/skinsim/internal/types"
	"github.com/marketloop/skinsim/pkg/errors"
)

var tradesHeader = []string{
	"id", "date", "item_id", "venue", "strategy_id", "side",
	"exit_reason", "price", "quantity", "cash_after", "realized_pnl",
	"holding_days",
}

// TradesWriter writes the append-only trade log as a CSV file.
type TradesWriter struct {
	outputPath string
}

// NewTradesWriter creates a writer targeting the given file path.
func NewTradesWriter(outputPath string) *TradesWriter {
	return &TradesWriter{outputPath: outputPath}
}

// Write renders the full trade log in one pass.
func (w *TradesWriter) Write(trades []types.Trade) error {
	file, err := createOutput(w.outputPath)
	if err != nil {
		return err
	}
	defer file.Close()

	cw := csv.NewWriter(file)

	if err := cw.Write(tradesHeader); err != nil {
		return errors.Wrap(errors.ErrCodeWriteFailed, "failed to write trades header", err)
	}

	for _, t := range trades {
		record := []string{
			t.ID,
			t.Date.Format(time.DateOnly),
			t.ItemID,
			t.Venue,
			t.StrategyID,
			string(t.Side),
			string(t.ExitReason),
			formatFloat(t.Price),
			strconv.Itoa(t.Quantity),
			formatFloat(t.CashAfter),
			formatFloat(t.RealizedPnL),
			strconv.Itoa(t.HoldingDays),
		}

		if err := cw.Write(record); err != nil {
			return errors.Wrap(errors.ErrCodeWriteFailed, "failed to write trade record", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return errors.Wrap(errors.ErrCodeWriteFailed, "failed to flush trades", err)
	}

	return nil
}

func createOutput(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.Wrap(errors.ErrCodeWriteFailed, "failed to create results directory", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeWriteFailed, "failed to create output file", err)
	}

	return file, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
