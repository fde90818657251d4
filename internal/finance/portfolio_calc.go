package finance

import (
	"fmt"
	"math"
)

const tradingDaysPerYear = 252.0

// CumulativeFromReturns compounds periodic returns into a cumulative
// trajectory that starts at 1. The output has one more point than the input.
func CumulativeFromReturns(periodic []float64) ([]float64, error) {
	out := make([]float64, len(periodic)+1)
	out[0] = 1
	for i, r := range periodic {
		if math.IsNaN(r) || math.IsInf(r, 0) {
			return nil, fmt.Errorf("invalid return on period %d: %f (NaN or Inf)", i, r)
		}
		out[i+1] = out[i] * (1 + r)
	}
	return out, nil
}

// periodReturns turns a cumulative trajectory back into simple returns.
func periodReturns(values []float64) []float64 {
	out := make([]float64, len(values)-1)
	for i := 1; i < len(values); i++ {
		if values[i-1] > 0 {
			out[i-1] = (values[i] - values[i-1]) / values[i-1]
		}
	}
	return out
}

// RunStats computes performance statistics of one cumulative trajectory,
// treating each step as one trading day.
func RunStats(values []float64) (*PortfolioStats, error) {
	if len(values) < 3 {
		return nil, fmt.Errorf("need at least 3 observations for statistics, got %d", len(values))
	}

	numDays := len(values)
	initialValue := values[0]
	finalValue := values[numDays-1]
	if initialValue == 0 {
		return nil, fmt.Errorf("initial value is zero")
	}
	returns := periodReturns(values)

	totalReturn := (finalValue - initialValue) / initialValue

	meanReturn := 0.0
	for _, ret := range returns {
		meanReturn += ret
	}
	meanReturn /= float64(len(returns))

	// Sample variance (N-1)
	variance := 0.0
	for _, ret := range returns {
		diff := ret - meanReturn
		variance += diff * diff
	}
	variance /= float64(len(returns) - 1)
	dailyVolatility := math.Sqrt(variance)

	yearsInPeriod := float64(len(returns)) / tradingDaysPerYear
	var annualReturn float64
	if finalValue > 0 && initialValue > 0 {
		// (1 + total_return)^(1/years) - 1
		annualReturn = math.Pow(finalValue/initialValue, 1.0/yearsInPeriod) - 1.0
	}
	annualVolatility := dailyVolatility * math.Sqrt(tradingDaysPerYear)

	var sharpeRatio float64
	if annualVolatility > 0 {
		sharpeRatio = annualReturn / annualVolatility
	}

	stats := &PortfolioStats{
		InitialValue: initialValue,
		FinalValue:   finalValue,
		TotalReturn:  totalReturn * 100,
		AnnualReturn: annualReturn * 100,
		Volatility:   annualVolatility * 100,
		SharpeRatio:  sharpeRatio,
		MaxDrawdown:  calculateMaxDrawdown(values) * 100,
		NumDays:      numDays,
	}

	if math.IsNaN(stats.AnnualReturn) || math.IsInf(stats.AnnualReturn, 0) {
		return nil, fmt.Errorf("invalid annual return: %f", stats.AnnualReturn)
	}
	if math.IsNaN(stats.Volatility) || math.IsInf(stats.Volatility, 0) {
		return nil, fmt.Errorf("invalid volatility: %f", stats.Volatility)
	}
	if math.IsNaN(stats.SharpeRatio) || math.IsInf(stats.SharpeRatio, 0) {
		return nil, fmt.Errorf("invalid Sharpe ratio: %f", stats.SharpeRatio)
	}
	return stats, nil
}

// calculateMaxDrawdown returns the largest peak-to-trough decline as a fraction.
func calculateMaxDrawdown(values []float64) float64 {
	if len(values) < 2 {
		return 0.0
	}

	maxDrawdown := 0.0
	peak := values[0]

	if peak <= 0 {
		for i := 1; i < len(values); i++ {
			if values[i] > 0 {
				peak = values[i]
				break
			}
		}
		if peak <= 0 {
			return 0.0
		}
	}

	for _, value := range values {
		if value > peak {
			peak = value
		}
		if peak > 0 && value >= 0 {
			drawdown := (peak - value) / peak
			if drawdown > maxDrawdown {
				maxDrawdown = drawdown
			}
		}
	}

	return maxDrawdown
}
