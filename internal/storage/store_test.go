package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backtestplot/internal/finance"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := Open("sqlite3", "file:"+filepath.Join(t.TempDir(), "runs.db")+"?_fk=1")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, InitSchema(context.Background(), db))
	return NewStore(db)
}

func batch() *finance.Batch {
	return &finance.Batch{
		Index: []time.Time{
			time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2022, 2, 1, 0, 0, 0, 0, time.UTC),
		},
		Tickers: []string{"SPY", "AGG"},
		Returns: [][]float64{{1, 1.1}, {1, 0.9}},
		Weights: [][][]float64{
			{{0.6, 0.4}, {0.6, 0.4}},
			{{0.5, 0.5}, {0.4, 0.6}},
		},
	}
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	run, err := s.SaveRun(ctx, "momentum", batch())
	require.NoError(t, err)
	require.NotEmpty(t, run.ID)

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "momentum", got.Name)

	b, err := got.Batch()
	require.NoError(t, err)
	assert.Equal(t, batch().Returns, b.Returns)
	assert.Equal(t, batch().Tickers, b.Tickers)
	assert.True(t, b.Index[1].Equal(batch().Index[1]))

	runs, err := s.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)
	assert.Empty(t, runs[0].Payload)

	require.NoError(t, s.DeleteRun(ctx, run.ID))
	_, err = s.GetRun(ctx, run.ID)
	assert.ErrorIs(t, err, ErrRunNotFound)
	assert.ErrorIs(t, s.DeleteRun(ctx, run.ID), ErrRunNotFound)
}

func TestListRunsLimit(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	for i := 0; i < 60; i++ {
		_, err := s.SaveRun(ctx, fmt.Sprintf("run-%d", i), batch())
		require.NoError(t, err)
	}

	runs, err := s.ListRuns(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, runs, 5)

	runs, err = s.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 60)
}

func TestSaveRunRejectsInvalidBatch(t *testing.T) {
	s := openTestStore(t)
	b := batch()
	b.Weights = b.Weights[:1]
	_, err := s.SaveRun(context.Background(), "broken", b)
	assert.ErrorIs(t, err, finance.ErrShapeMismatch)
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open("mysql", "dsn")
	assert.Error(t, err)
}
