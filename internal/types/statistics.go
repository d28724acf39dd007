package types

// Summary aggregates one simulation run the way the results writers
// expect it: headline cash/equity plus closed-trade statistics.
type Summary struct {
	FinalCash          float64 `yaml:"final_cash"`
	FinalEquity        float64 `yaml:"final_equity"`
	RemainingPositions int     `yaml:"remaining_positions"`
	ClosedTrades       int     `yaml:"closed_trades"`
	Wins               int     `yaml:"wins"`
	WinRate            float64 `yaml:"win_rate"`
	AvgPnLPerTrade     float64 `yaml:"avg_pnl_per_trade"`
	TotalPnL           float64 `yaml:"total_pnl"`
	MaxDrawdown        float64 `yaml:"max_drawdown"`
}

// ComputeSummary derives a Summary from a finished run's trade log and
// equity curve. Max drawdown is measured on the equity series against its
// running peak.
func ComputeSummary(trades []Trade, equity []EquityPoint, finalCash float64, remaining int) Summary {
	summary := Summary{
		FinalCash:          finalCash,
		RemainingPositions: remaining,
	}

	for _, t := range trades {
		if t.Side != SideSell {
			continue
		}

		summary.ClosedTrades++
		summary.TotalPnL += t.RealizedPnL

		if t.RealizedPnL > 0 {
			summary.Wins++
		}
	}

	if summary.ClosedTrades > 0 {
		summary.WinRate = float64(summary.Wins) / float64(summary.ClosedTrades)
		summary.AvgPnLPerTrade = summary.TotalPnL / float64(summary.ClosedTrades)
	}

	if len(equity) > 0 {
		summary.FinalEquity = equity[len(equity)-1].Equity

		peak := equity[0].Equity
		for _, p := range equity {
			if p.Equity > peak {
				peak = p.Equity
			}

			if peak > 0 {
				dd := (p.Equity - peak) / peak
				if dd < summary.MaxDrawdown {
					summary.MaxDrawdown = dd
				}
			}
		}
	} else {
		summary.FinalEquity = finalCash
	}

	return summary
}
