package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "lineage-scanner/internal/errors"
	"lineage-scanner/internal/models"
)

const testConfig = `
[[chain.links]]
rank = 1
kind = "valley"

[[chain.links]]
rank = 2
relation = "opposite"

[selection]
rank = 0

[logging]
level = "error"
console = false
`

const goodPartition = `{
  "symbol": "EURUSD",
  "timeframe": "1h",
  "points": [
    {"sequence_index": 1, "kind": "valley", "high": "1.4", "low": "1.0", "open": "1.2", "close": "1.3", "timestamp": "2024-01-01T01:00:00Z"},
    {"sequence_index": 2, "kind": "peak", "high": "2.0", "low": "1.6", "open": "1.7", "close": "1.9", "timestamp": "2024-01-01T02:00:00Z"}
  ]
}`

const badPartition = `{
  "symbol": "GBPUSD",
  "timeframe": "1h",
  "points": [
    {"sequence_index": 4, "kind": "valley", "high": "1.4", "low": "1.0", "open": "1.2", "close": "1.3", "timestamp": "2024-01-01T04:00:00Z"},
    {"sequence_index": 4, "kind": "peak", "high": "2.0", "low": "1.6", "open": "1.7", "close": "1.9", "timestamp": "2024-01-01T05:00:00Z"}
  ]
}`

func setupConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lineage.toml"), []byte(testConfig), 0644))
	return dir
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	app := &App{Logger: zerolog.Nop()}
	defer app.Close()

	cmd := NewRootCmd(app)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionJSON(t *testing.T) {
	out, err := run(t, "version", "--json")
	require.NoError(t, err)

	var v map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.Equal(t, Version, v["version"])
}

func TestConfigInit(t *testing.T) {
	dir := t.TempDir()
	_, err := run(t, "config", "init", "--config", dir)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "lineage.toml"))

	_, err = run(t, "config", "init", "--config", dir)
	assert.Error(t, err)

	_, err = run(t, "config", "init", "--config", dir, "--force")
	assert.NoError(t, err)

	out, err := run(t, "config", "show", "--config", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Chain")
}

func TestScanPointsFileIsolatesFailedPartition(t *testing.T) {
	dir := setupConfig(t)
	points := writeFile(t, t.TempDir(), "points.json",
		`{"partitions": [`+goodPartition+`,`+badPartition+`]}`)

	out, err := run(t, "scan", "--config", dir, "--points", points, "--no-save", "--json")
	require.NoError(t, err)

	var view scanView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, 1, view.Survivors)
	assert.Equal(t, 1, view.Failed)
	require.Len(t, view.Partitions, 2)

	good := view.Partitions[0]
	assert.Equal(t, "EURUSD", good.Partition.Symbol)
	assert.Empty(t, good.Error)
	require.Len(t, good.Instances, 1)
	assert.Equal(t, "1-2", good.Instances[0].ID)

	bad := view.Partitions[1]
	assert.NotEmpty(t, bad.Error)
	assert.Empty(t, bad.Instances)
}

func TestImportScanResults(t *testing.T) {
	dir := setupConfig(t)
	points := writeFile(t, t.TempDir(), "points.json", `{"partitions": [`+goodPartition+`]}`)
	metrics := filepath.Join(t.TempDir(), "lineage.prom")

	_, err := run(t, "import", "--config", dir, points)
	require.NoError(t, err)

	out, err := run(t, "scan", "--config", dir, "--json", "--metrics-file", metrics)
	require.NoError(t, err)
	var view scanView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, 1, view.Survivors)
	assert.NotEmpty(t, view.RunID)
	assert.FileExists(t, metrics)

	out, err = run(t, "results", "--config", dir, "--json")
	require.NoError(t, err)
	var results struct {
		RunID   string `json:"run_id"`
		Results []struct {
			Instance struct {
				ID string `json:"id"`
			} `json:"instance"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	assert.Equal(t, view.RunID, results.RunID)
	require.Len(t, results.Results, 1)
	assert.Equal(t, "1-2", results.Results[0].Instance.ID)

	out, err = run(t, "export", "--config", dir)
	require.NoError(t, err)
	assert.Contains(t, out, `"sequence_index": 2`)
}

func TestImportRejectsMalformedBatch(t *testing.T) {
	dir := setupConfig(t)
	points := writeFile(t, t.TempDir(), "points.json", `{"partitions": [`+badPartition+`]}`)

	_, err := run(t, "import", "--config", dir, points)
	assert.Error(t, err)

	out, err := run(t, "results", "--config", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "No scan runs stored yet")
}

func TestBatchSourceRejectsDuplicatePartition(t *testing.T) {
	var batch models.PointBatch
	require.NoError(t, json.Unmarshal([]byte(`{"partitions": [`+goodPartition+`,`+goodPartition+`]}`), &batch))

	src, partitions := newBatchSource(batch)
	require.Len(t, partitions, 1)

	_, err := src.GetPoints(context.Background(), partitions[0])
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrMalformedInput))
	var verr *apperrors.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "EURUSD/1h", verr.Value)
}

func TestDuplicatePartitionFailsScanAndImport(t *testing.T) {
	dir := setupConfig(t)
	points := writeFile(t, t.TempDir(), "points.json",
		`{"partitions": [`+goodPartition+`,`+goodPartition+`]}`)

	out, err := run(t, "scan", "--config", dir, "--points", points, "--no-save", "--json")
	assert.Error(t, err)
	var view scanView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, 0, view.Survivors)
	assert.Equal(t, 1, view.Failed)
	require.Len(t, view.Partitions, 1)
	assert.Contains(t, view.Partitions[0].Error, "more than once")

	_, err = run(t, "import", "--config", dir, points)
	assert.True(t, errors.Is(err, apperrors.ErrMalformedInput))
}

func TestDetectStoresSwingPoints(t *testing.T) {
	dir := setupConfig(t)
	candles := writeFile(t, t.TempDir(), "candles.json", `[
  {"timestamp": "2024-01-01T00:00:00Z", "open": "10", "high": "11", "low": "9",  "close": "10", "volume": 100},
  {"timestamp": "2024-01-01T01:00:00Z", "open": "10", "high": "12", "low": "9.5", "close": "11", "volume": 100},
  {"timestamp": "2024-01-01T02:00:00Z", "open": "11", "high": "15", "low": "10", "close": "14", "volume": 100},
  {"timestamp": "2024-01-01T03:00:00Z", "open": "14", "high": "13", "low": "10", "close": "11", "volume": 100},
  {"timestamp": "2024-01-01T04:00:00Z", "open": "11", "high": "12", "low": "8",  "close": "9",  "volume": 100},
  {"timestamp": "2024-01-01T05:00:00Z", "open": "9",  "high": "11", "low": "8.5", "close": "10", "volume": 100},
  {"timestamp": "2024-01-01T06:00:00Z", "open": "10", "high": "12", "low": "9",  "close": "11", "volume": 100}
]`)

	out, err := run(t, "detect", "--config", dir, "--symbol", "eurusd", "--timeframe", "1h", "--json", candles)
	require.NoError(t, err)

	var summary struct {
		Points  int `json:"points"`
		Peaks   int `json:"peaks"`
		Valleys int `json:"valleys"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, 2, summary.Points)
	assert.Equal(t, 1, summary.Peaks)
	assert.Equal(t, 1, summary.Valleys)
}

func TestExamplesRunsWithoutConfig(t *testing.T) {
	out, err := run(t, "examples", "--config", filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)
	assert.Contains(t, out, "lineage scan")
}
