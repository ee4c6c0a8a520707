// Package testutil provides testify mocks for the interfaces of
// pkg/converter and its subpackages, plus small filesystem helpers.
package testutil

import (
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/stackvity/activity-logger/pkg/converter"
	"github.com/stackvity/activity-logger/pkg/converter/encoding"
	"github.com/stackvity/activity-logger/pkg/converter/handler"
)

var (
	_ handler.Handler  = (*MockHandler)(nil)
	_ converter.Hooks  = (*MockHooks)(nil)
	_ encoding.Decoder = (*MockDecoder)(nil)
)

// MockHandler is a mock handler.Handler.
type MockHandler struct {
	mock.Mock
}

// Validate mocks the Validate method.
func (m *MockHandler) Validate(content string) (bool, error) {
	args := m.Called(content)
	ok, _ := args.Get(0).(bool)
	return ok, args.Error(1)
}

// Transform mocks the Transform method.
func (m *MockHandler) Transform(content string) (string, error) {
	args := m.Called(content)
	line, _ := args.Get(0).(string)
	return line, args.Error(1)
}

// MockDecoder is a mock encoding.Decoder.
type MockDecoder struct {
	mock.Mock
}

// DetectAndDecode mocks the DetectAndDecode method.
func (m *MockDecoder) DetectAndDecode(content []byte) (utf8Content []byte, detectedEncoding string, certain bool, err error) {
	args := m.Called(content)
	utf8Content, _ = args.Get(0).([]byte)
	detectedEncoding, _ = args.Get(1).(string)
	certain, _ = args.Get(2).(bool)
	err = args.Error(3)
	return
}

// IsBinary mocks the IsBinary method.
func (m *MockDecoder) IsBinary(content []byte) bool {
	args := m.Called(content)
	binary, _ := args.Get(0).(bool)
	return binary
}

// MockHooks is a mock converter.Hooks. testify's Mock is safe for the
// concurrent calls workers make; any extra state a test adds is not.
type MockHooks struct {
	mock.Mock
}

// OnFileDiscovered mocks the OnFileDiscovered method.
func (m *MockHooks) OnFileDiscovered(path string) error {
	args := m.Called(path)
	return args.Error(0)
}

// OnFileStatusUpdate mocks the OnFileStatusUpdate method.
func (m *MockHooks) OnFileStatusUpdate(path string, status converter.Status, message string, duration time.Duration) error {
	args := m.Called(path, status, message, duration)
	return args.Error(0)
}

// OnRunComplete mocks the OnRunComplete method.
func (m *MockHooks) OnRunComplete(report converter.Report) error {
	args := m.Called(report)
	return args.Error(0)
}
