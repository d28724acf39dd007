package bandit

// ItemMemory is the third online learning layer: a per-item EMA of
// realized ROI, updated whenever a position on that item closes.
type ItemMemory struct {
	ema   map[string]float64
	alpha float64
}

// NewItemMemory builds an empty item memory with the given EMA smoothing
// factor (shared with the arm choosers).
func NewItemMemory(alpha float64) *ItemMemory {
	return &ItemMemory{
		ema:   make(map[string]float64),
		alpha: alpha,
	}
}

// Update folds a realized ROI into the item's EMA. Unseen items start at
// zero belief.
func (m *ItemMemory) Update(itemID string, roi float64) {
	prev := m.ema[itemID]
	m.ema[itemID] = (1-m.alpha)*prev + m.alpha*roi
}

// EMA returns the item's current belief, zero for unseen items.
func (m *ItemMemory) EMA(itemID string) float64 {
	return m.ema[itemID]
}

// Snapshot exports the memory for the hot-start blob.
func (m *ItemMemory) Snapshot() map[string]float64 {
	out := make(map[string]float64, len(m.ema))
	for k, v := range m.ema {
		out[k] = v
	}

	return out
}

// Restore applies a previously exported memory. Item ids are open-ended,
// so every key is accepted.
func (m *ItemMemory) Restore(state map[string]float64) {
	for k, v := range state {
		m.ema[k] = v
	}
}
