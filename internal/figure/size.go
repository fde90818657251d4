// Package figure sizes and renders backtest figures for LaTeX documents.
package figure

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/plot/vg"
)

// Document text widths in TeX points.
const (
	ThesisWidthPt = 455.24411
	BeamerWidthPt = 307.28987
)

// InchesPerPt converts TeX points to inches.
const InchesPerPt = 1 / 72.27

// GoldenRatio sets the aesthetic figure height.
var GoldenRatio = (math.Sqrt(5) - 1) / 2

var (
	// ErrUnknownWidth is returned for a width that is neither a known
	// document label nor a number.
	ErrUnknownWidth = errors.New("unknown document width")
	// ErrInvalidSize is returned for non-positive or non-finite widths and
	// fractions, and for figures outside the renderable bounds.
	ErrInvalidSize = errors.New("invalid figure size")
)

// Bounds of a renderable figure, in inches.
const (
	MinInches = 0.5
	MaxInches = 50.0
)

// Size is a figure size in inches.
type Size struct {
	Width  float64
	Height float64
}

// Lengths converts the size to vg lengths.
func (s Size) Lengths() (w, h vg.Length) {
	return vg.Length(s.Width) * vg.Inch, vg.Length(s.Height) * vg.Inch
}

// Validate checks that both sides are finite and within MinInches and
// MaxInches.
func (s Size) Validate() error {
	for _, v := range []float64{s.Width, s.Height} {
		if math.IsNaN(v) || v < MinInches || v > MaxInches {
			return fmt.Errorf("%w: %s (each side must be %gin to %gin)", ErrInvalidSize, s, MinInches, MaxInches)
		}
	}
	return nil
}

func (s Size) String() string {
	return fmt.Sprintf("%.4fin x %.4fin", s.Width, s.Height)
}

// WidthPt resolves a document label ("thesis", "beamer") or a literal
// point width to points.
func WidthPt(width string) (float64, error) {
	switch strings.ToLower(strings.TrimSpace(width)) {
	case "thesis":
		return ThesisWidthPt, nil
	case "beamer":
		return BeamerWidthPt, nil
	}
	pt, err := strconv.ParseFloat(strings.TrimSpace(width), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrUnknownWidth, width)
	}
	if !positive(pt) {
		return 0, fmt.Errorf("%w: width %q", ErrInvalidSize, width)
	}
	return pt, nil
}

// SetSize returns the figure dimensions that avoid scaling in LaTeX for a
// document width and the fraction of it the figure occupies.
func SetSize(width string, fraction float64) (Size, error) {
	pt, err := WidthPt(width)
	if err != nil {
		return Size{}, err
	}
	if !positive(fraction) {
		return Size{}, fmt.Errorf("%w: fraction %v", ErrInvalidSize, fraction)
	}
	return SizeFromPoints(pt, fraction), nil
}

// SizeFromPoints is SetSize for a width already expressed in points.
func SizeFromPoints(widthPt, fraction float64) Size {
	w := widthPt * fraction * InchesPerPt
	return Size{Width: w, Height: w * GoldenRatio}
}

// SetSizeSubplots is SetSize for a grid of subplots: the golden-ratio
// height is scaled by rows/cols so each panel keeps its aspect.
func SetSizeSubplots(width string, fraction float64, rows, cols int) (Size, error) {
	if rows < 1 || cols < 1 {
		return Size{}, fmt.Errorf("invalid subplot grid %dx%d", rows, cols)
	}
	s, err := SetSize(width, fraction)
	if err != nil {
		return Size{}, err
	}
	s.Height *= float64(rows) / float64(cols)
	return s, nil
}

// DefaultSize is the size used when none is given: twice the thesis width.
func DefaultSize() Size {
	return SizeFromPoints(ThesisWidthPt, 2)
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 1)
}
