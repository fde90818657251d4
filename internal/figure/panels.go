package figure

import (
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"backtestplot/internal/finance"
)

// newPanels lays out the figure as rows of plots:
//
//	returns | mean weights
//	best    | worst
func newPanels(b *finance.Batch, s *finance.Summary) ([][]*plot.Plot, error) {
	x := timeAxis(b)

	returns, err := newReturnsPanel(x, s)
	if err != nil {
		return nil, err
	}
	w := panelWeights(b, s)
	meanW, err := newWeightsPanel(x, w[0], b.Tickers)
	if err != nil {
		return nil, err
	}
	bestW, err := newWeightsPanel(x, w[1], b.Tickers)
	if err != nil {
		return nil, err
	}
	worstW, err := newWeightsPanel(x, w[2], b.Tickers)
	if err != nil {
		return nil, err
	}
	bestW.X.Label.Text = timeLabel
	worstW.X.Label.Text = timeLabel

	// Shared x axis.
	for _, p := range []*plot.Plot{returns, meanW, bestW, worstW} {
		p.X.Min, p.X.Max = x[0], x[len(x)-1]
	}
	return [][]*plot.Plot{{returns, meanW}, {bestW, worstW}}, nil
}

// panelWeights returns the mean, best-run and worst-run weight matrices.
func panelWeights(b *finance.Batch, s *finance.Summary) [3][][]float64 {
	return [3][][]float64{s.MeanWeights, b.Weights[s.Best], b.Weights[s.Worst]}
}

func timeAxis(b *finance.Batch) []float64 {
	x := make([]float64, len(b.Index))
	for i, t := range b.Index {
		x[i] = float64(t.Unix())
	}
	return x
}

func newPlot() *plot.Plot {
	p := plot.New()
	p.X.Tick.Marker = plot.TimeTicks{Format: timeFormat}
	return p
}

func series(x, y []float64) plotter.XYs {
	pts := make(plotter.XYs, len(x))
	for i := range x {
		pts[i].X, pts[i].Y = x[i], y[i]
	}
	return pts
}

// band is the closed outline between two curves over x.
func band(x, upper, lower []float64) plotter.XYs {
	pts := make(plotter.XYs, 0, 2*len(x))
	for i := range x {
		pts = append(pts, plotter.XY{X: x[i], Y: upper[i]})
	}
	for i := len(x) - 1; i >= 0; i-- {
		pts = append(pts, plotter.XY{X: x[i], Y: lower[i]})
	}
	return pts
}

func newBand(x, upper, lower []float64, c color.Color) (*plotter.Polygon, error) {
	poly, err := plotter.NewPolygon(band(x, upper, lower))
	if err != nil {
		return nil, err
	}
	poly.Color = c
	poly.LineStyle.Width = 0
	return poly, nil
}

// meanLine is the mean trajectory drawn in the returns panel.
func meanLine(x []float64, s *finance.Summary) (*plotter.Line, error) {
	mean, err := plotter.NewLine(series(x, s.Mean))
	if err != nil {
		return nil, err
	}
	mean.LineStyle.Color = blue
	mean.LineStyle.Width = vg.Points(2)
	return mean, nil
}

// newReturnsPanel plots the mean trajectory with bands up to the best and
// down to the worst run, and a dashed reference at 1.
func newReturnsPanel(x []float64, s *finance.Summary) (*plot.Plot, error) {
	p := newPlot()
	p.Y.Label.Text = returnsLabel

	up, err := newBand(x, s.Max, s.Mean, greenFog)
	if err != nil {
		return nil, err
	}
	down, err := newBand(x, s.Min, s.Mean, redFog)
	if err != nil {
		return nil, err
	}
	mean, err := meanLine(x, s)
	if err != nil {
		return nil, err
	}

	ref, err := plotter.NewLine(plotter.XYs{{X: x[0], Y: 1}, {X: x[len(x)-1], Y: 1}})
	if err != nil {
		return nil, err
	}
	ref.LineStyle.Color = color.Black
	ref.LineStyle.Width = vg.Points(1.5)
	ref.LineStyle.Dashes = []vg.Length{vg.Points(5), vg.Points(3)}

	p.Add(up, down, mean, ref)
	return p, nil
}

// newWeightsPanel stacks the per-asset weights over time, one filled layer
// per ticker, with no margins around the data.
func newWeightsPanel(x []float64, weights [][]float64, tickers []string) (*plot.Plot, error) {
	p := newPlot()
	p.Y.Label.Text = weightsLabel
	p.Legend.Top = true
	p.Legend.Left = true

	lower := make([]float64, len(x))
	upper := make([]float64, len(x))
	yMin, yMax := 0.0, 0.0
	for a, ticker := range tickers {
		for t := range x {
			upper[t] = lower[t] + weights[t][a]
			yMin = math.Min(yMin, upper[t])
			yMax = math.Max(yMax, upper[t])
		}
		layer, err := newBand(x, upper, lower, palette[a%len(palette)])
		if err != nil {
			return nil, err
		}
		p.Add(layer)
		p.Legend.Add(ticker, layer)
		copy(lower, upper)
	}

	p.Y.Min, p.Y.Max = yMin, yMax
	if yMin == yMax {
		p.Y.Max = yMin + 1
	}
	return p, nil
}
