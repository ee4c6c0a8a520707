package converter_test

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	tu "github.com/stackvity/activity-logger/internal/testutil"
	"github.com/stackvity/activity-logger/pkg/converter"
	"github.com/stackvity/activity-logger/pkg/converter/activity"
	"github.com/stackvity/activity-logger/pkg/converter/metrics"
)

const (
	jsonActivity = `{"activity":{"userName":"Sam","websiteName":"abc.com","activityTypeDescription":"Viewed","signedInTime":"01/13/2020"}}`
	xmlActivity  = `<activity><userName>Williamson</userName><websiteName>xyz.com</websiteName><activityTypeCode>002</activityTypeCode><loggedInTime>2020-01-13</loggedInTime><number_of_views>10</number_of_views></activity>`
	xmlNoUser    = `<activity><websiteName>xyz.com</websiteName><loggedInTime>2020-01-13</loggedInTime></activity>`
)

func baseOptions(t *testing.T, input string) converter.Options {
	t.Helper()
	logger, _ := tu.NewBufferLogger()
	return converter.Options{
		InputPath:       input,
		OutputPath:      filepath.Join(t.TempDir(), "output.txt"),
		Concurrency:     4,
		HandlerMappings: map[string]string{"xml": "xml", "json": "json"},
		Codes:           activity.NewCodeTable(map[int]string{1: "Viewed", 2: "Purchased"}),
		Logger:          logger.Handler(),
	}
}

func TestConvert_WritesOneLinePerGoodFile(t *testing.T) {
	dir := t.TempDir()
	const good = 20
	for i := 0; i < good; i++ {
		if i%2 == 0 {
			tu.CreateDummyFile(t, filepath.Join(dir, fmt.Sprintf("a%02d.json", i)), jsonActivity)
		} else {
			tu.CreateDummyFile(t, filepath.Join(dir, fmt.Sprintf("a%02d.XML", i)), xmlActivity)
		}
	}
	// M unsupported or malformed files.
	tu.CreateDummyFile(t, filepath.Join(dir, "notes.yml"), "a: b")
	tu.CreateDummyFile(t, filepath.Join(dir, "README"), "hello")
	tu.CreateDummyFile(t, filepath.Join(dir, "broken.json"), `{"activity":`)
	tu.CreateDummyFile(t, filepath.Join(dir, "broken.xml"), `<activity>`)
	tu.CreateDummyFile(t, filepath.Join(dir, "nouser.xml"), xmlNoUser)
	tu.CreateDummyFile(t, filepath.Join(dir, "image.json"), "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

	opts := baseOptions(t, dir)
	report, err := converter.Convert(context.Background(), opts)

	require.NoError(t, err)
	lines := tu.ReadLines(t, opts.OutputPath)
	assert.Len(t, lines, good)

	want := map[string]int{
		`{"user":"Sam","website":"abc.com","activityTypeDescription":"Viewed","signedInTime":"2020-01-13 00:00:00"}`:           good / 2,
		`{"user":"Williamson","website":"xyz.com","activityTypeDescription":"Purchased","signedInTime":"2020-01-13 00:00:00"}`: good / 2,
	}
	got := map[string]int{}
	for _, l := range lines {
		got[l]++
	}
	assert.Equal(t, want, got)

	s := report.Summary
	assert.Equal(t, good+6, s.TotalFilesScanned)
	assert.Equal(t, good, s.ProcessedCount)
	assert.Equal(t, good, s.LinesWritten)
	assert.Equal(t, 3, s.SkippedCount)
	assert.Equal(t, 3, s.ErrorCount)
	assert.False(t, s.FatalErrorOccurred)
	assert.NotEmpty(t, s.RunID)
	assert.Equal(t, 4, s.Concurrency)
}

func TestConvert_SchemaViolationAffectsOnlyThatFile(t *testing.T) {
	dir := t.TempDir()
	tu.CreateDummyFile(t, filepath.Join(dir, "good.xml"), xmlActivity)
	tu.CreateDummyFile(t, filepath.Join(dir, "bad.xml"), xmlNoUser)
	tu.CreateDummyFile(t, filepath.Join(dir, "good.json"), jsonActivity)

	opts := baseOptions(t, dir)
	opts.XMLSchemaPath = "testdata/activity.xsd"
	report, err := converter.Convert(context.Background(), opts)

	require.NoError(t, err)
	lines := tu.ReadLines(t, opts.OutputPath)
	sort.Strings(lines)
	assert.Equal(t, []string{
		`{"user":"Sam","website":"abc.com","activityTypeDescription":"Viewed","signedInTime":"2020-01-13 00:00:00"}`,
		`{"user":"Williamson","website":"xyz.com","activityTypeDescription":"Purchased","signedInTime":"2020-01-13 00:00:00"}`,
	}, lines)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, filepath.Join(dir, "bad.xml"), report.Errors[0].Path)
	assert.Contains(t, report.Errors[0].Error, "userName")
}

func TestConvert_BrokenSchemaDegradesToNoHandler(t *testing.T) {
	dir := t.TempDir()
	tu.CreateDummyFile(t, filepath.Join(dir, "a.xml"), xmlActivity)
	tu.CreateDummyFile(t, filepath.Join(dir, "b.json"), jsonActivity)
	badSchema := filepath.Join(t.TempDir(), "bad.xsd")
	tu.CreateDummyFile(t, badSchema, "<not-a-schema/>")

	opts := baseOptions(t, dir)
	opts.XMLSchemaPath = badSchema
	report, err := converter.Convert(context.Background(), opts)

	require.NoError(t, err)
	assert.Len(t, tu.ReadLines(t, opts.OutputPath), 1)
	require.Len(t, report.SkippedFiles, 1)
	assert.Equal(t, converter.SkipReasonNoHandler, report.SkippedFiles[0].Reason)
}

func TestConvert_RejectedFileIsLoggedOnce(t *testing.T) {
	dir := t.TempDir()
	tu.CreateDummyFile(t, filepath.Join(dir, "nouser.xml"), xmlNoUser)
	tu.CreateDummyFile(t, filepath.Join(dir, "broken.json"), `{"activity":`)
	opts := baseOptions(t, dir)
	logger, buf := tu.NewBufferLogger()
	opts.Logger = logger.Handler()

	report, err := converter.Convert(context.Background(), opts)

	require.NoError(t, err)
	assert.Equal(t, 2, report.Summary.ErrorCount)
	for _, name := range []string{"nouser.xml", "broken.json"} {
		entries := 0
		for _, line := range strings.Split(buf.String(), "\n") {
			if strings.Contains(line, name) && (strings.Contains(line, "level=WARN") || strings.Contains(line, "level=ERROR")) {
				entries++
				assert.Contains(t, line, "File failed")
			}
		}
		assert.Equal(t, 1, entries, "%s should be logged once", name)
	}
}

func TestConvert_UnlistableInputIsFatalAndCreatesNoOutput(t *testing.T) {
	opts := baseOptions(t, filepath.Join(t.TempDir(), "absent"))

	report, err := converter.Convert(context.Background(), opts)

	assert.ErrorIs(t, err, converter.ErrScanFailed)
	assert.True(t, report.Summary.FatalErrorOccurred)
	_, statErr := os.Stat(opts.OutputPath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestConvert_OutputOpenFailureIsFatal(t *testing.T) {
	dir := t.TempDir()
	tu.CreateDummyFile(t, filepath.Join(dir, "a.json"), jsonActivity)
	opts := baseOptions(t, dir)
	opts.OutputPath = filepath.Join(t.TempDir(), "no-such-dir", "out.txt")

	report, err := converter.Convert(context.Background(), opts)

	assert.ErrorIs(t, err, converter.ErrOutputOpen)
	assert.True(t, report.Summary.FatalErrorOccurred)
}

func TestConvert_EmptyDirectoryProducesEmptyOutput(t *testing.T) {
	opts := baseOptions(t, t.TempDir())

	report, err := converter.Convert(context.Background(), opts)

	require.NoError(t, err)
	assert.Empty(t, tu.ReadLines(t, opts.OutputPath))
	assert.Equal(t, 0, report.Summary.TotalFilesScanned)
}

func TestConvert_CancelledContext(t *testing.T) {
	dir := t.TempDir()
	tu.CreateDummyFile(t, filepath.Join(dir, "a.json"), jsonActivity)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := converter.Convert(ctx, baseOptions(t, dir))

	assert.ErrorIs(t, err, context.Canceled)
}

func TestConvert_HooksAndMetrics(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "a.json")
	skipped := filepath.Join(dir, "b.txt")
	tu.CreateDummyFile(t, good, jsonActivity)
	tu.CreateDummyFile(t, skipped, "plain")

	hooks := new(tu.MockHooks)
	hooks.On("OnFileDiscovered", mock.Anything).Return(nil)
	hooks.On("OnFileStatusUpdate", mock.Anything, converter.StatusProcessing, "", time.Duration(0)).Return(nil)
	hooks.On("OnFileStatusUpdate", good, converter.StatusSuccess, "", mock.Anything).Return(nil).Once()
	hooks.On("OnFileStatusUpdate", skipped, converter.StatusSkipped, mock.Anything, mock.Anything).Return(nil).Once()
	hooks.On("OnRunComplete", mock.MatchedBy(func(r converter.Report) bool {
		return r.Summary.LinesWritten == 1 && r.Summary.SkippedCount == 1
	})).Return(fmt.Errorf("hook failure is only logged")).Once()

	m := metrics.New()
	opts := baseOptions(t, dir)
	opts.EventHooks = hooks
	opts.Metrics = m
	_, err := converter.Convert(context.Background(), opts)

	require.NoError(t, err)
	hooks.AssertExpectations(t)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.FilesDiscovered))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FilesProcessed.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FilesProcessed.WithLabelValues("skipped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LinesWritten))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HandlersConstructed.WithLabelValues("json", "json")))
}

func TestConvert_InjectedResolverAndDecoder(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.log")
	tu.CreateDummyFile(t, path, "raw")

	h := new(tu.MockHandler)
	h.On("Validate", "decoded").Return(true, nil)
	h.On("Transform", "decoded").Return(`{"ok":true}`, nil)
	dec := new(tu.MockDecoder)
	dec.On("IsBinary", []byte("raw")).Return(false)
	dec.On("DetectAndDecode", []byte("raw")).Return([]byte("decoded"), "utf-8", true, nil)

	opts := baseOptions(t, dir)
	opts.Resolver = stubResolver{"log": h}
	opts.Decoder = dec
	report, err := converter.Convert(context.Background(), opts)

	require.NoError(t, err)
	assert.Equal(t, []string{`{"ok":true}`}, tu.ReadLines(t, opts.OutputPath))
	require.Len(t, report.ProcessedFiles, 1)
	assert.Equal(t, "utf-8", report.ProcessedFiles[0].Encoding)
	h.AssertExpectations(t)
	dec.AssertExpectations(t)
}

func TestNewEngine_ValidatesOptions(t *testing.T) {
	logger, _ := tu.NewBufferLogger()
	valid := converter.Options{InputPath: ".", OutputPath: "out.txt", Concurrency: 1, Logger: logger.Handler()}

	testCases := map[string]func(o *converter.Options){
		"nil logger":     func(o *converter.Options) { o.Logger = nil },
		"no input":       func(o *converter.Options) { o.InputPath = "" },
		"no output":      func(o *converter.Options) { o.OutputPath = "" },
		"zero workers":   func(o *converter.Options) { o.Concurrency = 0 },
		"bad ignore pat": func(o *converter.Options) { o.IgnorePatterns = []string{"["} },
	}
	for name, mutate := range testCases {
		t.Run(name, func(t *testing.T) {
			o := valid
			mutate(&o)
			_, err := converter.NewEngine(context.Background(), o)
			assert.ErrorIs(t, err, converter.ErrConfigValidation)
		})
	}

	_, err := converter.NewEngine(context.Background(), valid)
	assert.NoError(t, err)
}

func TestReport_JSONOmitsEmptyOptionalFields(t *testing.T) {
	data, err := json.Marshal(converter.SkippedInfo{Path: "a", Reason: converter.SkipReasonBinary})
	require.NoError(t, err)
	assert.JSONEq(t, `{"path":"a","reason":"binary_file"}`, string(data))
}
