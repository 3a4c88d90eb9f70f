package testutil

import (
	"sync"

	"fruitvision/internal/models"
	"fruitvision/internal/providers"
	"fruitvision/internal/structures"
)

// zero value keeps metrics disabled
var noMetricsConf structures.Config

// MockLogger implements providers.Logger and records calls.
type MockLogger struct {
	mu   sync.Mutex
	Logs []LogEntry
}

type LogEntry struct {
	Level  string
	Type   providers.TypeEnum
	Format string
	Args   []interface{}
}

func (m *MockLogger) record(level string, t providers.TypeEnum, format string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Logs = append(m.Logs, LogEntry{Level: level, Type: t, Format: format, Args: args})
}

func (m *MockLogger) Errorf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("error", t, format, args...)
}
func (m *MockLogger) Warnf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("warn", t, format, args...)
}
func (m *MockLogger) Debugf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("debug", t, format, args...)
}
func (m *MockLogger) Infof(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("info", t, format, args...)
}
func (m *MockLogger) Fatalf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("fatal", t, format, args...)
}
func (m *MockLogger) Close() {}

// HasLevel reports whether any recorded entry has the given level.
func (m *MockLogger) HasLevel(level string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.Logs {
		if e.Level == level {
			return true
		}
	}
	return false
}

// MockCache implements providers.CacheProviderInterface.
type MockCache struct {
	mu   sync.Mutex
	Data map[string][]byte
}

func NewMockCache() *MockCache {
	return &MockCache{Data: make(map[string][]byte)}
}

func (m *MockCache) Get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.Data[key]
	return val, ok
}

func (m *MockCache) Set(key string, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Data[key] = value
}

func (m *MockCache) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Data = make(map[string][]byte)
}

// MockMetrics implements providers.MetricsProviderInterface and counts
// prediction outcomes.
type MockMetrics struct {
	providers.MetricsProviderInterface

	mu       sync.Mutex
	Outcomes map[string]int
}

func NewMockMetrics() *MockMetrics {
	return &MockMetrics{
		MetricsProviderInterface: NoopMetrics(),
		Outcomes:                 make(map[string]int),
	}
}

func (m *MockMetrics) IncPredictions(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Outcomes[outcome]++
}

// NoopMetrics returns a metrics provider that discards everything.
func NoopMetrics() providers.MetricsProviderInterface {
	return providers.NewMetricsProvider(&noMetricsConf)
}

// MockClassifier implements classifier.ClassifierInterface with injectable
// behavior.
type MockClassifier struct {
	Result    *models.ClassificationResult
	Err       error
	LabelList []string
}

func (m *MockClassifier) Predict(_ []byte) (*models.ClassificationResult, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Result != nil {
		return m.Result, nil
	}
	return &models.ClassificationResult{Label: "Banana A", Confidence: 0.9, Tag: "banana"}, nil
}

func (m *MockClassifier) Labels() []string {
	return m.LabelList
}
