package figure

import (
	"fmt"
	"image/color"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"backtestplot/internal/finance"
)

// DefaultPath is where PlotCumulativeReturnsAndWeights saves the figure.
// The directory is expected to exist.
const DefaultPath = "images/cumulative_returns_and_weights.pdf"

const (
	returnsLabel = "Cumulative Returns"
	weightsLabel = "Weights (%)"
	timeLabel    = "Time (Years-Months)"
	timeFormat   = "2006-01"
)

var (
	blue     = color.NRGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff}
	greenFog = color.NRGBA{R: 0x2c, G: 0xa0, B: 0x2c, A: 0x33}
	redFog   = color.NRGBA{R: 0xd6, G: 0x27, B: 0x28, A: 0x33}

	// matplotlib tab10
	palette = []color.Color{
		color.NRGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff},
		color.NRGBA{R: 0xff, G: 0x7f, B: 0x0e, A: 0xff},
		color.NRGBA{R: 0x2c, G: 0xa0, B: 0x2c, A: 0xff},
		color.NRGBA{R: 0xd6, G: 0x27, B: 0x28, A: 0xff},
		color.NRGBA{R: 0x94, G: 0x67, B: 0xbd, A: 0xff},
		color.NRGBA{R: 0x8c, G: 0x56, B: 0x4b, A: 0xff},
		color.NRGBA{R: 0xe3, G: 0x77, B: 0xc2, A: 0xff},
		color.NRGBA{R: 0x7f, G: 0x7f, B: 0x7f, A: 0xff},
		color.NRGBA{R: 0xbc, G: 0xbd, B: 0x22, A: 0xff},
		color.NRGBA{R: 0x17, G: 0xbe, B: 0xcf, A: 0xff},
	}
)

// PlotCumulativeReturnsAndWeights renders the 2x2 returns/weights figure of
// a batch. With save it writes DefaultPath, otherwise it opens the figure in
// the platform viewer.
func PlotCumulativeReturnsAndWeights(b *finance.Batch, save bool, size Size) error {
	if save {
		return SaveAs(DefaultPath, b, size)
	}
	return Show(b, size)
}

// SaveAs renders the figure to path, choosing the format from its extension.
func SaveAs(path string, b *finance.Batch, size Size) (err error) {
	format := strings.TrimPrefix(filepath.Ext(path), ".")
	if format == "" {
		return fmt.Errorf("no format extension in %q", path)
	}
	// Validate before touching the filesystem.
	if err := b.Validate(); err != nil {
		return err
	}
	if err := size.Validate(); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create figure file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(path)
		}
	}()
	if err := Render(f, format, b, size); err != nil {
		return err
	}
	log.Info().Str("path", path).Str("size", size.String()).Msg("figure: saved")
	return nil
}

// openViewer launches the platform's default viewer for a file.
var openViewer = func(path string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", path)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", path)
	default:
		cmd = exec.Command("xdg-open", path)
	}
	return cmd.Start()
}

// Show renders the figure to a temporary PDF and opens it.
func Show(b *finance.Batch, size Size) error {
	if err := b.Validate(); err != nil {
		return err
	}
	if err := size.Validate(); err != nil {
		return err
	}
	f, err := os.CreateTemp("", "backtestplot-*.pdf")
	if err != nil {
		return fmt.Errorf("failed to create temp figure: %w", err)
	}
	if err := Render(f, "pdf", b, size); err != nil {
		f.Close()
		os.Remove(f.Name())
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	log.Debug().Str("path", f.Name()).Msg("figure: opening viewer")
	if err := openViewer(f.Name()); err != nil {
		return fmt.Errorf("failed to open viewer for %s: %w", f.Name(), err)
	}
	return nil
}

// Render draws the figure in the given format (pdf, png, svg, eps, jpg,
// tif, tex) and writes it to w. Nothing is written for an invalid batch or
// size.
func Render(w io.Writer, format string, b *finance.Batch, size Size) error {
	if err := size.Validate(); err != nil {
		return err
	}
	s, err := finance.Summarize(b)
	if err != nil {
		return err
	}
	plots, err := newPanels(b, s)
	if err != nil {
		return fmt.Errorf("failed to build panels: %w", err)
	}

	width, height := size.Lengths()
	c, err := draw.NewFormattedCanvas(width, height, format)
	if err != nil {
		return fmt.Errorf("failed to create %s canvas: %w", format, err)
	}
	tiles := draw.Tiles{
		Rows:      2,
		Cols:      2,
		PadX:      vg.Millimeter * 4,
		PadY:      vg.Millimeter * 4,
		PadTop:    vg.Millimeter * 2,
		PadBottom: vg.Millimeter * 2,
		PadLeft:   vg.Millimeter * 2,
		PadRight:  vg.Millimeter * 2,
	}
	canvases := plot.Align(plots, tiles, draw.New(c))
	for j := range plots {
		for i := range plots[j] {
			plots[j][i].Draw(canvases[j][i])
		}
	}
	if _, err := c.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write %s figure: %w", format, err)
	}
	return nil
}
