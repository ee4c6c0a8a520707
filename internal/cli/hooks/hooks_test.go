package hooks

import (
	"bytes"
	"fmt"
	"log/slog"
	"regexp"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/stackvity/activity-logger/pkg/converter"
)

type MockTUIProgram struct {
	mock.Mock
}

// Send mocks the Send method.
func (m *MockTUIProgram) Send(msg tea.Msg) {
	m.Called(msg)
}

var (
	_ converter.Hooks = (*CLIHooks)(nil)
	_ TUIProgram      = (*tea.Program)(nil)
)

func TestCLIHooks_OnFileDiscovered(t *testing.T) {
	testPath := "logs/a.xml"

	t.Run("TUI Enabled", func(t *testing.T) {
		mockTUI := new(MockTUIProgram)
		mockTUI.On("Send", FileDiscoveredMsg{Path: testPath}).Once()

		logBuf := &bytes.Buffer{}
		logger := slog.New(slog.NewTextHandler(logBuf, &slog.HandlerOptions{Level: slog.LevelDebug}))
		hooks := NewCLIHooks(logger, true, false, mockTUI)
		require.NoError(t, hooks.OnFileDiscovered(testPath))

		mockTUI.AssertExpectations(t)
		assert.Empty(t, logBuf.String())
	})

	t.Run("Verbose Enabled", func(t *testing.T) {
		mockTUI := new(MockTUIProgram)
		logBuf := &bytes.Buffer{}
		logger := slog.New(slog.NewJSONHandler(logBuf, &slog.HandlerOptions{Level: slog.LevelDebug}))
		hooks := NewCLIHooks(logger, false, true, mockTUI)
		require.NoError(t, hooks.OnFileDiscovered(testPath))

		mockTUI.AssertNotCalled(t, "Send", mock.Anything)
		logOutput := logBuf.String()
		assert.Contains(t, logOutput, `"level":"DEBUG"`)
		assert.Contains(t, logOutput, `"msg":"File discovered"`)
		assert.Contains(t, logOutput, `"path":"`+testPath+`"`)
	})

	t.Run("Neither TUI nor Verbose Enabled", func(t *testing.T) {
		logBuf := &bytes.Buffer{}
		logger := slog.New(slog.NewTextHandler(logBuf, &slog.HandlerOptions{Level: slog.LevelDebug}))
		hooks := NewCLIHooks(logger, false, false, nil)
		require.NoError(t, hooks.OnFileDiscovered(testPath))
		assert.Empty(t, logBuf.String())
	})
}

func TestCLIHooks_OnFileStatusUpdate(t *testing.T) {
	testPath := "logs/b.json"
	testDuration := 50 * time.Millisecond

	t.Run("TUI Enabled", func(t *testing.T) {
		mockTUI := new(MockTUIProgram)
		mockTUI.On("Send", mock.MatchedBy(func(msg FileStatusUpdateMsg) bool {
			return msg.Path == testPath &&
				msg.Status == converter.StatusFailed &&
				msg.Message == "bad" &&
				msg.Duration == testDuration
		})).Once()

		logBuf := &bytes.Buffer{}
		logger := slog.New(slog.NewTextHandler(logBuf, &slog.HandlerOptions{Level: slog.LevelDebug}))
		hooks := NewCLIHooks(logger, true, false, mockTUI)
		require.NoError(t, hooks.OnFileStatusUpdate(testPath, converter.StatusFailed, "bad", testDuration))

		mockTUI.AssertExpectations(t)
		assert.Empty(t, logBuf.String())
	})

	t.Run("Verbose Enabled", func(t *testing.T) {
		logBuf := &bytes.Buffer{}
		logger := slog.New(slog.NewJSONHandler(logBuf, &slog.HandlerOptions{Level: slog.LevelDebug}))
		hooks := NewCLIHooks(logger, false, true, nil)

		testCases := []struct {
			status        converter.Status
			message       string
			expectedLevel string
			expectedMsg   string
			checkKey      string
		}{
			{converter.StatusProcessing, "Starting", "DEBUG", "File status updated", "message"},
			{converter.StatusSuccess, "OK", "INFO", "File status updated", "message"},
			{converter.StatusSkipped, "no handler", "INFO", "File status updated", "message"},
			{converter.StatusFailed, "malformed xml", "ERROR", "File processing failed", "error"},
		}
		for _, tc := range testCases {
			logBuf.Reset()
			require.NoError(t, hooks.OnFileStatusUpdate(testPath, tc.status, tc.message, testDuration))
			logOutput := logBuf.String()

			assert.Regexp(t, regexp.QuoteMeta(fmt.Sprintf(`"duration":%d`, testDuration.Nanoseconds())), logOutput)
			assert.Contains(t, logOutput, `"level":"`+tc.expectedLevel+`"`)
			assert.Contains(t, logOutput, `"msg":"`+tc.expectedMsg+`"`)
			assert.Contains(t, logOutput, `"path":"`+testPath+`"`)
			assert.Contains(t, logOutput, `"status":"`+string(tc.status)+`"`)
			assert.Contains(t, logOutput, `"`+tc.checkKey+`":"`+tc.message+`"`)
		}
	})

	t.Run("Standard Log Mode", func(t *testing.T) {
		logBuf := &bytes.Buffer{}
		logger := slog.New(slog.NewJSONHandler(logBuf, &slog.HandlerOptions{Level: slog.LevelDebug}))
		hooks := NewCLIHooks(logger, false, false, nil)

		for _, status := range []converter.Status{converter.StatusProcessing, converter.StatusSuccess, converter.StatusFailed} {
			require.NoError(t, hooks.OnFileStatusUpdate(testPath, status, "x", testDuration))
		}
		assert.Empty(t, logBuf.String())
	})

	t.Run("Concurrent Updates", func(t *testing.T) {
		mockTUI := new(MockTUIProgram)
		mockTUI.On("Send", mock.AnythingOfType("hooks.FileStatusUpdateMsg")).Times(50)
		hooks := NewCLIHooks(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)), true, false, mockTUI)
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = hooks.OnFileStatusUpdate(testPath, converter.StatusSuccess, "", 0)
			}()
		}
		wg.Wait()
		mockTUI.AssertExpectations(t)
	})
}

func TestCLIHooks_OnRunComplete(t *testing.T) {
	finalReport := converter.Report{Summary: converter.ReportSummary{LinesWritten: 10}}

	t.Run("TUI Enabled", func(t *testing.T) {
		mockTUI := new(MockTUIProgram)
		mockTUI.On("Send", mock.MatchedBy(func(msg RunCompleteMsg) bool {
			return msg.Report.Summary.LinesWritten == 10
		})).Once()

		hooks := NewCLIHooks(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)), true, false, mockTUI)
		require.NoError(t, hooks.OnRunComplete(finalReport))
		mockTUI.AssertExpectations(t)
	})

	t.Run("Log Mode", func(t *testing.T) {
		mockTUI := new(MockTUIProgram)
		logBuf := &bytes.Buffer{}
		logger := slog.New(slog.NewJSONHandler(logBuf, &slog.HandlerOptions{Level: slog.LevelDebug}))
		hooks := NewCLIHooks(logger, false, true, mockTUI)

		require.NoError(t, hooks.OnRunComplete(finalReport))
		mockTUI.AssertNotCalled(t, "Send", mock.Anything)
		assert.Empty(t, logBuf.String())
	})
}
