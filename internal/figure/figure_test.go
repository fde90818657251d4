package figure

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backtestplot/internal/finance"
)

func testBatch() *finance.Batch {
	idx := make([]time.Time, 6)
	for i := range idx {
		idx[i] = time.Date(2021, time.Month(i+1), 1, 0, 0, 0, 0, time.UTC)
	}
	return &finance.Batch{
		Index:   idx,
		Tickers: []string{"SPY", "TLT", "GLD"},
		Returns: [][]float64{
			{1, 1.01, 1.03, 1.02, 1.04, 1.06},
			{1, 1.02, 1.05, 1.08, 1.10, 1.15},
			{1, 0.99, 0.97, 0.98, 0.96, 0.94},
			{1, 1.03, 1.06, 1.09, 1.12, 1.15},
		},
		Weights: [][][]float64{
			rows(6, 0.4, 0.4, 0.2),
			rows(6, 0.7, 0.2, 0.1),
			rows(6, 0.1, 0.8, 0.1),
			rows(6, 0.3, 0.3, 0.4),
		},
	}
}

func rows(n int, w ...float64) [][]float64 {
	out := make([][]float64, n)
	for i := range out {
		out[i] = append([]float64(nil), w...)
	}
	return out
}

func TestRenderFormats(t *testing.T) {
	b := testBatch()
	size := DefaultSize()

	var pdf bytes.Buffer
	require.NoError(t, Render(&pdf, "pdf", b, size))
	assert.True(t, strings.HasPrefix(pdf.String(), "%PDF"))

	var svg bytes.Buffer
	require.NoError(t, Render(&svg, "svg", b, size))
	assert.Contains(t, svg.String(), "<svg")

	var png bytes.Buffer
	require.NoError(t, Render(&png, "png", b, Size{Width: 4, Height: 3}))
	assert.Equal(t, "\x89PNG", png.String()[:4])
}

func TestRenderRejectsBadBatches(t *testing.T) {
	var buf bytes.Buffer

	empty := &finance.Batch{}
	assert.ErrorIs(t, Render(&buf, "pdf", empty, DefaultSize()), finance.ErrEmptyBatch)

	b := testBatch()
	b.Weights[2] = b.Weights[2][:3]
	assert.ErrorIs(t, Render(&buf, "pdf", b, DefaultSize()), finance.ErrShapeMismatch)

	b = testBatch()
	b.Weights[0][3][1] = math.NaN()
	assert.ErrorIs(t, Render(&buf, "png", b, DefaultSize()), finance.ErrNonFinite)
	assert.Zero(t, buf.Len())
}

func TestRenderRejectsInvalidSize(t *testing.T) {
	for _, size := range []Size{{}, {Width: -6, Height: 4}, {Width: 6, Height: math.NaN()}, {Width: 1e4, Height: 1e4}} {
		var buf bytes.Buffer
		assert.ErrorIs(t, Render(&buf, "png", testBatch(), size), ErrInvalidSize, size.String())
		assert.Zero(t, buf.Len())
	}
}

func TestSaveAsInvalidSizeCreatesNoFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "figure.pdf")
	assert.ErrorIs(t, SaveAs(path, testBatch(), Size{}), ErrInvalidSize)
	assert.NoFileExists(t, path)
}

func TestRenderUnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, Render(&buf, "bmp", testBatch(), DefaultSize()))
}

func TestMeanPanelPlotsElementwiseMean(t *testing.T) {
	b := testBatch()
	s, err := finance.Summarize(b)
	require.NoError(t, err)

	x := timeAxis(b)
	line, err := meanLine(x, s)
	require.NoError(t, err)
	require.Len(t, line.XYs, b.Steps())
	for step, pt := range line.XYs {
		sum := 0.0
		for r := range b.Returns {
			sum += b.Returns[r][step]
		}
		assert.InDelta(t, sum/float64(b.Runs()), pt.Y, 1e-12)
		assert.Equal(t, float64(b.Index[step].Unix()), pt.X)
	}
}

func TestWeightPanelsFollowBestAndWorst(t *testing.T) {
	b := testBatch()
	s, err := finance.Summarize(b)
	require.NoError(t, err)

	// runs 1 and 3 tie on the final value; the lower index wins
	assert.Equal(t, 1, s.Best)
	assert.Equal(t, 2, s.Worst)

	w := panelWeights(b, s)
	assert.Equal(t, b.Weights[1], w[1])
	assert.Equal(t, b.Weights[2], w[2])
	assert.InDeltaSlice(t, []float64{0.375, 0.425, 0.2}, w[0][0], 1e-12)
}

func TestWeightsPanelStacksLayers(t *testing.T) {
	b := testBatch()
	p, err := newWeightsPanel(timeAxis(b), b.Weights[0], b.Tickers)
	require.NoError(t, err)
	assert.Equal(t, weightsLabel, p.Y.Label.Text)
	assert.InDelta(t, 0, p.Y.Min, 1e-12)
	assert.InDelta(t, 1, p.Y.Max, 1e-12)
}

func TestSaveAs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "figure.svg")
	require.NoError(t, SaveAs(path, testBatch(), DefaultSize()))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	err = SaveAs(filepath.Join(dir, "missing", "figure.pdf"), testBatch(), DefaultSize())
	assert.Error(t, err)

	assert.Error(t, SaveAs(filepath.Join(dir, "figure"), testBatch(), DefaultSize()))
}

func TestPlotCumulativeReturnsAndWeightsSave(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	// images/ is not created for the caller
	assert.Error(t, PlotCumulativeReturnsAndWeights(testBatch(), true, DefaultSize()))

	require.NoError(t, os.Mkdir("images", 0o755))
	require.NoError(t, PlotCumulativeReturnsAndWeights(testBatch(), true, DefaultSize()))
	data, err := os.ReadFile(DefaultPath)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
}

func TestPlotCumulativeReturnsAndWeightsShow(t *testing.T) {
	var opened string
	orig := openViewer
	openViewer = func(path string) error {
		opened = path
		return nil
	}
	t.Cleanup(func() { openViewer = orig })

	require.NoError(t, PlotCumulativeReturnsAndWeights(testBatch(), false, DefaultSize()))
	require.NotEmpty(t, opened)
	defer os.Remove(opened)
	assert.Equal(t, ".pdf", filepath.Ext(opened))

	opened = ""
	assert.Error(t, PlotCumulativeReturnsAndWeights(&finance.Batch{}, false, DefaultSize()))
	assert.Empty(t, opened)
}
