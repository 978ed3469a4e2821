package logger

import (
	"sync"

	"github.com/stretchr/testify/mock"
)

// MockLogger is a testify mock of Logger, used to assert which records a component emits.
//
// Every logged message is also recorded per method, so Messages can be read while other goroutines
// are still logging.
type MockLogger struct {
	mock.Mock

	mu      sync.Mutex
	records map[string][]string
}

var _ Logger = (*MockLogger)(nil)

func NewMockLogger() *MockLogger {
	return &MockLogger{records: make(map[string][]string)}
}

// AllowAll registers permissive expectations for every method and returns the mock itself,
// so a test only needs to inspect the recorded calls afterwards.
func (m *MockLogger) AllowAll() *MockLogger {
	m.On("Debug", mock.Anything, mock.Anything).Return()
	m.On("Info", mock.Anything, mock.Anything).Return()
	m.On("Warn", mock.Anything, mock.Anything).Return()
	m.On("Error", mock.Anything, mock.Anything).Return()
	m.On("Fatal", mock.Anything, mock.Anything).Return()
	m.On("Level").Return(InfoLevel)
	m.On("With", mock.Anything).Return(m)

	return m
}

// Messages returns the messages logged through the given method name, in call order.
func (m *MockLogger) Messages(method string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	msgs := make([]string, len(m.records[method]))
	copy(msgs, m.records[method])

	return msgs
}

func (m *MockLogger) record(method string, msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.records == nil {
		m.records = make(map[string][]string)
	}
	m.records[method] = append(m.records[method], msg)
}

func (m *MockLogger) Debug(msg string, keysAndValues ...any) {
	m.record("Debug", msg)
	m.Called(msg, keysAndValues)
}

func (m *MockLogger) Info(msg string, keysAndValues ...any) {
	m.record("Info", msg)
	m.Called(msg, keysAndValues)
}

func (m *MockLogger) Warn(msg string, keysAndValues ...any) {
	m.record("Warn", msg)
	m.Called(msg, keysAndValues)
}

func (m *MockLogger) Error(msg string, keysAndValues ...any) {
	m.record("Error", msg)
	m.Called(msg, keysAndValues)
}

func (m *MockLogger) Fatal(msg string, keysAndValues ...any) {
	m.record("Fatal", msg)
	m.Called(msg, keysAndValues)
}

func (m *MockLogger) SetLevel(level Level) {
	m.Called(level)
}

func (m *MockLogger) Level() Level {
	args := m.Called()
	return args.Get(0).(Level)
}

func (m *MockLogger) With(keyValues ...any) Logger {
	args := m.Called(keyValues)
	return args.Get(0).(Logger)
}
