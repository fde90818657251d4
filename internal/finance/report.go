package finance

import (
	"fmt"
	"strings"
)

// MarkdownSummary formats the batch statistics as a markdown report.
func MarkdownSummary(b *Batch, s *Summary) string {
	var sb strings.Builder
	last := len(s.Mean) - 1

	fmt.Fprintf(&sb, "# Backtest Summary\n\n")
	fmt.Fprintf(&sb, "**Runs**: %d | **Steps**: %d | **Period**: %s → %s\n\n",
		b.Runs(), b.Steps(), b.Index[0].Format("2006-01-02"), b.Index[last].Format("2006-01-02"))
	fmt.Fprintf(&sb, "**Assets**: %s\n\n", strings.Join(b.Tickers, ", "))

	sb.WriteString("| Trajectory | Final | Return | Vol | Sharpe | MaxDD |\n")
	sb.WriteString("|---|---:|---:|---:|---:|---:|\n")
	rows := []struct {
		name   string
		values []float64
	}{
		{"Mean", s.Mean},
		{fmt.Sprintf("Best (run %d)", s.Best), s.Max},
		{fmt.Sprintf("Worst (run %d)", s.Worst), s.Min},
	}
	for _, row := range rows {
		stats, err := RunStats(row.values)
		if err != nil {
			fmt.Fprintf(&sb, "| %s | %.3f | - | - | - | - |\n", row.name, row.values[last])
			continue
		}
		fmt.Fprintf(&sb, "| %s | %.3f | %.2f%% | %.2f%% | %.2f | %.2f%% |\n",
			row.name, stats.FinalValue, stats.TotalReturn, stats.Volatility, stats.SharpeRatio, stats.MaxDrawdown)
	}
	fmt.Fprintf(&sb, "\nDispersion of final value across runs (std): %.4f\n", s.Std[last])

	if len(s.MeanWeights) > 0 {
		sb.WriteString("\n## Mean final allocation\n\n")
		for i, w := range s.MeanWeights[len(s.MeanWeights)-1] {
			fmt.Fprintf(&sb, "- %s: %.1f%%\n", b.Tickers[i], w*100)
		}
	}
	return sb.String()
}
