package finance

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summarize computes per-timestep statistics across the runs of a batch.
// Best and Worst are chosen by the final cumulative return; on ties the
// lowest run index wins.
func Summarize(b *Batch) (*Summary, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	runs, steps := b.Runs(), b.Steps()

	s := &Summary{
		Mean: make([]float64, steps),
		Std:  make([]float64, steps),
	}
	column := make([]float64, runs)
	for t := 0; t < steps; t++ {
		for r := 0; r < runs; r++ {
			column[r] = b.Returns[r][t]
		}
		s.Mean[t], s.Std[t] = stat.PopMeanStdDev(column, nil)
	}

	s.Best, s.Worst = BestWorst(b.Returns)
	s.Max = b.Returns[s.Best]
	s.Min = b.Returns[s.Worst]
	s.MeanWeights = MeanWeights(b.Weights)
	return s, nil
}

// BestWorst returns the indices of the runs with the highest and lowest
// final value. The first occurrence wins on ties.
func BestWorst(returns [][]float64) (best, worst int) {
	finals := make([]float64, len(returns))
	for r, series := range returns {
		finals[r] = series[len(series)-1]
	}
	return floats.MaxIdx(finals), floats.MinIdx(finals)
}

// MeanWeights averages weight matrices elementwise across runs.
func MeanWeights(weights [][][]float64) [][]float64 {
	if len(weights) == 0 {
		return nil
	}
	n := float64(len(weights))
	out := make([][]float64, len(weights[0]))
	for t := range out {
		out[t] = make([]float64, len(weights[0][t]))
		for _, run := range weights {
			floats.Add(out[t], run[t])
		}
		floats.Scale(1/n, out[t])
	}
	return out
}
