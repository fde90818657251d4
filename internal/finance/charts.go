package finance

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vicanso/go-charts/v2"
)

func indexLabels(b *Batch) []string {
	layout := "Jan '06"
	if len(b.Index) <= 60 {
		layout = "Jan 02"
	}
	out := make([]string, len(b.Index))
	for i, t := range b.Index {
		out[i] = t.Format(layout)
	}
	return out
}

// MakeReturnsPreview renders the mean, best and worst trajectories as a PNG line chart.
func MakeReturnsPreview(b *Batch, s *Summary) ([]byte, error) {
	if s == nil {
		return nil, errors.New("no summary provided")
	}
	xLabels := indexLabels(b)

	minVal, maxVal := s.Min[0], s.Min[0]
	for _, series := range [][]float64{s.Mean, s.Max, s.Min} {
		for _, v := range series {
			if v < minVal {
				minVal = v
			}
			if v > maxVal {
				maxVal = v
			}
		}
	}
	padding := (maxVal - minVal) * 0.05
	if padding == 0 {
		padding = maxVal * 0.05
	}
	yMin := minVal - padding
	yMax := maxVal + padding

	splitNum := 6
	if len(xLabels) <= 30 {
		splitNum = len(xLabels) / 3
		if splitNum < 3 {
			splitNum = 3
		}
	}

	names := []string{"Mean", fmt.Sprintf("Best (run %d)", s.Best), fmt.Sprintf("Worst (run %d)", s.Worst)}
	title := fmt.Sprintf("Cumulative Returns (%d runs)", b.Runs())
	subtitle := fmt.Sprintf("Mean final: %.3f | Best: %.3f | Worst: %.3f",
		s.Mean[len(s.Mean)-1], s.Max[len(s.Max)-1], s.Min[len(s.Min)-1])

	p, err := charts.LineRender(
		[][]float64{s.Mean, s.Max, s.Min},
		charts.TitleTextOptionFunc(title, subtitle),
		charts.XAxisOptionFunc(charts.XAxisOption{
			Data:        xLabels,
			SplitNumber: splitNum,
			BoundaryGap: charts.FalseFlag(),
		}),
		charts.YAxisOptionFunc(charts.YAxisOption{
			Min:         &yMin,
			Max:         &yMax,
			DivideCount: 5,
		}),
		charts.LegendOptionFunc(charts.LegendOption{
			Data: names,
			Top:  charts.PositionBottom,
		}),
		charts.ThemeOptionFunc(charts.ThemeLight),
		charts.WidthOptionFunc(800),
		charts.HeightOptionFunc(500),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to render chart: %w", err)
	}

	buf, err := p.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to generate chart bytes: %w", err)
	}
	return buf, nil
}

// MakeAllocationPreview renders the mean allocation at the last timestep as
// a PNG pie chart. Non-positive weights are left out of the pie.
func MakeAllocationPreview(b *Batch, s *Summary) ([]byte, error) {
	if s == nil || len(s.MeanWeights) == 0 {
		return nil, errors.New("no weights available")
	}
	last := s.MeanWeights[len(s.MeanWeights)-1]

	var values []float64
	var labels []string
	total := 0.0
	for i, w := range last {
		if w <= 0 {
			continue
		}
		values = append(values, w)
		labels = append(labels, b.Tickers[i])
		total += w
	}
	if len(values) == 0 {
		return nil, errors.New("no long positions to chart")
	}
	for i := range labels {
		labels[i] = fmt.Sprintf("%s (%.1f%%)", labels[i], values[i]/total*100)
	}

	p, err := charts.PieRender(
		values,
		charts.TitleTextOptionFunc("Mean Allocation", b.Index[len(b.Index)-1].Format("2006-01-02")),
		charts.LegendOptionFunc(charts.LegendOption{
			Data: labels,
			Top:  charts.PositionBottom,
		}),
		charts.ThemeOptionFunc(charts.ThemeLight),
		charts.WidthOptionFunc(800),
		charts.HeightOptionFunc(600),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to render chart: %w", err)
	}
	return p.Bytes()
}

// PreviewCaption is a one-line description of a batch used alongside previews.
func PreviewCaption(b *Batch) string {
	return fmt.Sprintf("%d runs • %s • %s → %s", b.Runs(), strings.Join(b.Tickers, ", "),
		b.Index[0].Format("2006-01"), b.Index[len(b.Index)-1].Format("2006-01"))
}
