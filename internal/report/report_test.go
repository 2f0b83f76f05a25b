package report

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"nse-screener/internal/screening"
)

func TestTableRenderAlignsColoredCells(t *testing.T) {
	green := color.New(color.FgGreen)
	green.EnableColor()

	tbl := &Table{
		Title:   "Breakout",
		Columns: []string{"Stock", "LTP"},
		Rows: []screening.Record{
			{"Stock": "SBIN", "LTP": green.Sprint("610.00")},
			{"Stock": "ICICIBANK", "LTP": "1100.50"},
			{"Stock": "ITC"},
		},
		Plain: true,
	}

	var buf bytes.Buffer
	require.NoError(t, tbl.Render(&buf))
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")

	require.Len(t, lines, 6)
	assert.Equal(t, "Breakout", lines[0])
	assert.Equal(t, "Stock      LTP", strings.TrimRight(lines[1], " "))
	assert.Equal(t, "SBIN       610.00", lines[3])
	assert.Equal(t, "ICICIBANK  1100.50", lines[4])
	assert.Equal(t, "ITC        -", lines[5])
	assert.NotContains(t, buf.String(), "\x1b[")
}

func TestTableRenderEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&Table{}).Render(&buf))
	assert.Empty(t, buf.String())
}

func TestExportXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "scan.xlsx")

	err := ExportXLSX(path,
		Sheet{
			Name:    "Results",
			Columns: []string{"Stock", "LTP", "Trend"},
			Rows: []screening.Record{
				{"Stock": "SBIN", "LTP": "610.00", "Trend": "Strong Up"},
				{"Stock": "TCS", "LTP": "3890.25", "Trend": "Sideways"},
			},
		},
		Sheet{
			Name:    "Summary",
			Columns: []string{"Stock", "Overall"},
			Rows:    []screening.Record{{"Stock": "SUMMARY", "Overall": "80.00% of (10)"}},
		},
	)
	require.NoError(t, err)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Results", "Summary"}, f.GetSheetList())

	rows, err := f.GetRows("Results")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Stock", "LTP", "Trend"}, rows[0])
	assert.Equal(t, "SBIN", rows[1][0])
	assert.Equal(t, "Strong Up", rows[1][2])

	v, err := f.GetCellValue("Summary", "B2")
	require.NoError(t, err)
	assert.Equal(t, "80.00% of (10)", v)
}

func TestExportXLSXNeedsSheets(t *testing.T) {
	assert.Error(t, ExportXLSX(filepath.Join(t.TempDir(), "x.xlsx")))
}

func TestFileName(t *testing.T) {
	at := time.Date(2024, 5, 8, 18, 30, 0, 0, time.UTC)
	assert.Equal(t, "breakout_scan_20240508_1830.xlsx", FileName("scan", "Breakout", at))
	assert.Equal(t, "reversal-ma_backtest_20240508_1830.xlsx", FileName("backtest", "reversal ma", at))
}
