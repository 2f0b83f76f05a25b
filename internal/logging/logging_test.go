package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSinkAndLevel(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)
	path := filepath.Join(t.TempDir(), "logs", "screener.log")

	logger := NewLoggerWithConfig(LogConfig{Level: "WARN", File: true, FilePath: path, MaxSize: 1})
	logger.Info().Msg("hidden")
	logger.Warn().Msg("kept")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hidden")
	assert.Contains(t, string(data), "kept")
}

func TestUnknownLevelFallsBackToInfo(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	NewLoggerWithConfig(LogConfig{Level: "chatty"})
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())

	NewLoggerWithConfig(LogConfig{Level: ""})
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}

func TestScanSummaryFields(t *testing.T) {
	var buf bytes.Buffer
	logger := WithRunID(zerolog.New(&buf), "run-7")

	LogScanSummary(WithUnit(logger, "SBIN", 3), ScanSummary{
		Mode:      "breakout",
		Units:     10,
		Processed: 9,
		Matched:   2,
		Failed:    1,
		Duration:  1500 * time.Millisecond,
	})

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "warn", doc["level"])
	assert.Equal(t, "run-7", doc["run_id"])
	assert.Equal(t, "SBIN", doc["symbol"])
	assert.EqualValues(t, 3, doc["offset"])
	assert.EqualValues(t, 9, doc["processed"])
	assert.Equal(t, false, doc["stalled"])
}
