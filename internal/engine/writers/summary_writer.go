package writers

import (
	"gopkg.in/yaml.v3"

	"github.com/marketloop/skinsim/internal/types"
	"github.com/marketloop/skinsim/pkg/errors"
)

// WriteSummary renders the run summary as YAML at the given path.
func WriteSummary(path string, summary types.Summary) error {
	file, err := createOutput(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := yaml.NewEncoder(file)
	defer encoder.Close()

	if err := encoder.Encode(summary); err != nil {
		return errors.Wrap(errors.ErrCodeWriteFailed, "failed to encode summary", err)
	}

	return nil
}
