package finance

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	ErrEmptyBatch    = errors.New("empty batch")
	ErrShapeMismatch = errors.New("shape mismatch")
	ErrNonFinite     = errors.New("non-finite return value")
)

// Runs returns the number of trajectories in the batch.
func (b *Batch) Runs() int { return len(b.Returns) }

// Steps returns the length of the shared time index.
func (b *Batch) Steps() int { return len(b.Index) }

// Validate checks that returns, weights, index and tickers line up.
// Nothing is drawn from a batch that fails validation.
func (b *Batch) Validate() error {
	if b == nil || len(b.Returns) == 0 {
		return fmt.Errorf("%w: no runs", ErrEmptyBatch)
	}
	steps := len(b.Index)
	if steps == 0 {
		return fmt.Errorf("%w: no timesteps", ErrEmptyBatch)
	}
	if len(b.Tickers) == 0 {
		return fmt.Errorf("%w: no tickers", ErrEmptyBatch)
	}
	if len(b.Weights) != len(b.Returns) {
		return fmt.Errorf("%w: %d weight runs for %d return runs", ErrShapeMismatch, len(b.Weights), len(b.Returns))
	}
	for r, series := range b.Returns {
		if len(series) != steps {
			return fmt.Errorf("%w: run %d has %d returns, expected %d", ErrShapeMismatch, r, len(series), steps)
		}
		for t, v := range series {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: run %d step %d: %f", ErrNonFinite, r, t, v)
			}
		}
	}
	for r, run := range b.Weights {
		if len(run) != steps {
			return fmt.Errorf("%w: run %d has %d weight rows, expected %d", ErrShapeMismatch, r, len(run), steps)
		}
		for t, row := range run {
			if len(row) != len(b.Tickers) {
				return fmt.Errorf("%w: run %d step %d has %d weights for %d tickers", ErrShapeMismatch, r, t, len(row), len(b.Tickers))
			}
			for a, v := range row {
				if math.IsNaN(v) || math.IsInf(v, 0) {
					return fmt.Errorf("%w: run %d step %d weight of %s: %f", ErrNonFinite, r, t, b.Tickers[a], v)
				}
			}
		}
	}
	return nil
}

type batchJSON struct {
	Index   []string      `json:"index"`
	Tickers []string      `json:"tickers"`
	Returns [][]float64   `json:"returns"`
	Weights [][][]float64 `json:"weights"`
}

var indexLayouts = []string{"2006-01-02", time.RFC3339, "2006-01"}

func parseIndexTime(s string) (time.Time, error) {
	for _, layout := range indexLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid index time %q (use YYYY-MM-DD or RFC3339)", s)
}

// MarshalJSON encodes the index as dates when every entry is midnight UTC.
func (b Batch) MarshalJSON() ([]byte, error) {
	layout := "2006-01-02"
	for _, t := range b.Index {
		if !t.Equal(t.UTC().Truncate(24 * time.Hour)) {
			layout = time.RFC3339
			break
		}
	}
	idx := make([]string, len(b.Index))
	for i, t := range b.Index {
		idx[i] = t.UTC().Format(layout)
	}
	return json.Marshal(batchJSON{Index: idx, Tickers: b.Tickers, Returns: b.Returns, Weights: b.Weights})
}

func (b *Batch) UnmarshalJSON(data []byte) error {
	var raw batchJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	idx := make([]time.Time, len(raw.Index))
	for i, s := range raw.Index {
		t, err := parseIndexTime(s)
		if err != nil {
			return fmt.Errorf("index %d: %w", i, err)
		}
		idx[i] = t
	}
	*b = Batch{Index: idx, Tickers: raw.Tickers, Returns: raw.Returns, Weights: raw.Weights}
	return nil
}

// DecodeBatch parses and validates a JSON batch.
func DecodeBatch(data []byte) (*Batch, error) {
	var b Batch
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to decode batch: %w", err)
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return &b, nil
}
