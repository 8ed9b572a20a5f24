package testing

import (
	"context"
	"strconv"
	"sync"
)

// MockSettings is an in-memory settings reader
type MockSettings struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMockSettings creates a mock seeded with values
func NewMockSettings(values map[string]string) *MockSettings {
	m := &MockSettings{values: make(map[string]string)}
	for k, v := range values {
		m.values[k] = v
	}
	return m
}

// Get returns the value or def
func (m *MockSettings) Get(_ context.Context, key, def string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if v, ok := m.values[key]; ok && v != "" {
		return v
	}
	return def
}

// GetFloat returns the parsed value or def
func (m *MockSettings) GetFloat(ctx context.Context, key string, def float64) float64 {
	v := m.Get(ctx, key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

// Set stores a value
func (m *MockSettings) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}
