package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/stackvity/activity-logger/internal/testutil"
	"github.com/stackvity/activity-logger/pkg/converter"
	"github.com/stackvity/activity-logger/pkg/converter/activity"
)

func testOptions(t *testing.T) converter.Options {
	t.Helper()
	in := t.TempDir()
	testutil.CreateDummyFile(t, filepath.Join(in, "a.json"),
		`{"activity":{"userName":"Sam","websiteName":"abc.com","activityTypeDescription":"Viewed","signedInTime":"01/13/2020"}}`)
	testutil.CreateDummyFile(t, filepath.Join(in, "b.txt"), "plain")
	logger, _ := testutil.NewBufferLogger()
	return converter.Options{
		InputPath:       in,
		OutputPath:      filepath.Join(t.TempDir(), "output.txt"),
		Concurrency:     2,
		OutputFormat:    converter.OutputFormatJSON,
		HandlerMappings: map[string]string{"json": "json"},
		Codes:           activity.NewCodeTable(map[int]string{1: "Viewed"}),
		Logger:          logger.Handler(),
		TuiEnabled:      true,
	}
}

func TestRun_PrintsJSONReportAndWritesOutput(t *testing.T) {
	opts := testOptions(t)
	opts.MetricsFile = filepath.Join(t.TempDir(), "activity_logger.prom")
	logger, _ := testutil.NewBufferLogger()
	var stdout, stderr bytes.Buffer

	err := run(context.Background(), opts, logger, &stdout, &stderr, false)

	require.NoError(t, err)
	assert.Equal(t,
		[]string{`{"user":"Sam","website":"abc.com","activityTypeDescription":"Viewed","signedInTime":"2020-01-13 00:00:00"}`},
		testutil.ReadLines(t, opts.OutputPath))

	var report converter.Report
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &report))
	assert.Equal(t, 1, report.Summary.LinesWritten)
	assert.Equal(t, 1, report.Summary.SkippedCount)
	assert.Empty(t, stderr.String())

	metricsText, err := os.ReadFile(opts.MetricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(metricsText), "activity_logger_lines_written_total 1")
}

func TestRun_FatalErrorIsReturnedAndReported(t *testing.T) {
	opts := testOptions(t)
	opts.OutputFormat = converter.OutputFormatText
	opts.OutputPath = filepath.Join(t.TempDir(), "missing-dir", "out.txt")
	logger, logBuf := testutil.NewBufferLogger()
	var stdout bytes.Buffer

	err := run(context.Background(), opts, logger, &stdout, &bytes.Buffer{}, false)

	assert.ErrorIs(t, err, converter.ErrOutputOpen)
	assert.Contains(t, stdout.String(), "FAILED")
	assert.Contains(t, stdout.String(), "fatal: ")
	assert.Contains(t, logBuf.String(), "Conversion run failed")
}

func TestRun_InvalidOptionsPrintNothing(t *testing.T) {
	opts := testOptions(t)
	opts.Concurrency = 0
	logger, _ := testutil.NewBufferLogger()
	var stdout bytes.Buffer

	err := run(context.Background(), opts, logger, &stdout, &bytes.Buffer{}, false)

	assert.ErrorIs(t, err, converter.ErrConfigValidation)
	assert.Empty(t, stdout.String())
}

func TestPrintReport(t *testing.T) {
	report := converter.Report{
		Summary: converter.ReportSummary{
			RunID:             "run-1",
			InputPath:         "/in",
			OutputPath:        "/out.txt",
			TotalFilesScanned: 3,
			LinesWritten:      1,
			SkippedCount:      1,
			ErrorCount:        1,
			Concurrency:       2,
		},
		SkippedFiles: []converter.SkippedInfo{{Path: "/in/b.txt", Reason: converter.SkipReasonNoHandler}},
		Errors:       []converter.ErrorInfo{{Path: "/in/c.xml", Error: "malformed xml"}},
	}

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, PrintReport(&buf, report, converter.OutputFormatText))
		out := buf.String()
		assert.Contains(t, out, "Run run-1 completed")
		assert.Contains(t, out, "scanned: 3  written: 1  skipped: 1  failed: 1")
		assert.Contains(t, out, "/in/b.txt (no_handler)")
		assert.Contains(t, out, "/in/c.xml: malformed xml")
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, PrintReport(&buf, report, converter.OutputFormatYAML))
		var decoded converter.Report
		require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
		assert.Equal(t, "run-1", decoded.Summary.RunID)
		assert.Equal(t, report.SkippedFiles, decoded.SkippedFiles)
	})

	t.Run("unknown", func(t *testing.T) {
		err := PrintReport(&bytes.Buffer{}, report, "xml")
		assert.ErrorIs(t, err, converter.ErrConfigValidation)
	})
}
