package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const batchJSON = `{
  "index": ["2022-01-01", "2022-02-01", "2022-03-01"],
  "tickers": ["SPY", "TLT"],
  "returns": [[1, 1.02, 1.04], [1, 0.99, 0.97]],
  "weights": [
    [[0.6, 0.4], [0.6, 0.4], [0.6, 0.4]],
    [[0.2, 0.8], [0.3, 0.7], [0.4, 0.6]]
  ]
}`

func writeBatch(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "batch.json")
	require.NoError(t, os.WriteFile(path, []byte(batchJSON), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("DB_PATH", filepath.Join(t.TempDir(), "runs.db"))
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestSizeCommand(t *testing.T) {
	out, err := execute(t, "size", "beamer", "--fraction", "0.5")
	require.NoError(t, err)
	assert.Equal(t, "2.1260in x 1.3139in\n", out)

	_, err = execute(t, "size", "poster")
	assert.ErrorContains(t, err, "unknown document width")
}

func TestRenderCommandWritesFile(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "figure.svg")
	_, err := execute(t, "render", writeBatch(t), "--out", dst, "--width", "beamer", "--fraction", "1")
	require.NoError(t, err)

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<svg")
}

func TestSummaryCommand(t *testing.T) {
	out, err := execute(t, "summary", writeBatch(t))
	require.NoError(t, err)
	assert.Contains(t, out, "# Backtest Summary")
	assert.Contains(t, out, "Best (run 0)")
}

func TestRunsImportAndList(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite3")
	dir := t.TempDir()
	batch := writeBatch(t)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	t.Setenv("DB_PATH", filepath.Join(dir, "runs.db"))

	rootCmd.SetArgs([]string{"runs", "import", batch, "--name", "momentum"})
	require.NoError(t, rootCmd.Execute())
	id := strings.TrimSpace(out.String())
	assert.Len(t, id, 36)

	out.Reset()
	rootCmd.SetArgs([]string{"runs", "list"})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), id)
	assert.Contains(t, out.String(), "momentum")
}

func TestOutputFormat(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	addOutputFlags(fs, "")

	require.NoError(t, fs.Parse([]string{"--out", "-"}))
	format, err := outputFormat(fs)
	require.NoError(t, err)
	assert.Equal(t, "pdf", format)

	require.NoError(t, fs.Parse([]string{"--out", "fig.PNG"}))
	format, err = outputFormat(fs)
	require.NoError(t, err)
	assert.Equal(t, "png", format)

	require.NoError(t, fs.Parse([]string{"-f", "svg"}))
	format, err = outputFormat(fs)
	require.NoError(t, err)
	assert.Equal(t, "svg", format)
}
