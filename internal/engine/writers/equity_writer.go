package writers

import (
	"encoding/csv"
	"time"

	"github.com/marketloop/skinsim/internal/types"
	"github.com/marketloop/skinsim/pkg/errors"
)

// EquityWriter writes the daily equity curve as a CSV file.
type EquityWriter struct {
	outputPath string
}

// NewEquityWriter creates a writer targeting the given file path.
func NewEquityWriter(outputPath string) *EquityWriter {
	return &EquityWriter{outputPath: outputPath}
}

// Write renders the full equity curve in one pass.
func (w *EquityWriter) Write(points []types.EquityPoint) error {
	file, err := createOutput(w.outputPath)
	if err != nil {
		return err
	}
	defer file.Close()

	cw := csv.NewWriter(file)

	if err := cw.Write([]string{"date", "equity"}); err != nil {
		return errors.Wrap(errors.ErrCodeWriteFailed, "failed to write equity header", err)
	}

	for _, p := range points {
		record := []string{
			p.Date.Format(time.DateOnly),
			formatFloat(p.Equity),
		}

		if err := cw.Write(record); err != nil {
			return errors.Wrap(errors.ErrCodeWriteFailed, "failed to write equity record", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return errors.Wrap(errors.ErrCodeWriteFailed, "failed to flush equity curve", err)
	}

	return nil
}
