package finance

import "time"

// Batch is a set of backtest runs sharing one time index.
// Returns[r][t] is the cumulative return of run r at Index[t].
// Weights[r][t][a] is the weight of Tickers[a] in run r at Index[t].
type Batch struct {
	Index   []time.Time
	Tickers []string
	Returns [][]float64
	Weights [][][]float64
}

// Summary holds the per-timestep statistics across the runs of a batch.
type Summary struct {
	Mean        []float64
	Std         []float64 // population standard deviation
	Min         []float64 // trajectory of the worst run
	Max         []float64 // trajectory of the best run
	Best        int       // run with the highest final value
	Worst       int       // run with the lowest final value
	MeanWeights [][]float64
}

// PortfolioStats represents calculated statistics for one run
type PortfolioStats struct {
	InitialValue float64
	FinalValue   float64
	TotalReturn  float64 // Total return as percentage
	AnnualReturn float64 // Annualized return
	Volatility   float64 // Annualized volatility
	SharpeRatio  float64 // Risk-free rate assumed to be 0
	MaxDrawdown  float64 // Maximum drawdown as percentage
	NumDays      int     // Number of observations
}
