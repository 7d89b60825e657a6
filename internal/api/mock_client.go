package api

import (
	"context"
	"sync"
)

// MockClient is a mock implementation of ChatbotClient for testing
type MockClient struct {
	// Reply is returned by Send when Err is nil
	Reply string
	// Err is returned by Send
	Err error
	// SendFunc overrides Reply/Err when set
	SendFunc func(ctx context.Context, message string) (string, error)
	// Base is returned by BaseURL
	Base string

	mu          sync.Mutex
	messages    []string
	closeCalled bool
}

// Ensure MockClient implements ChatbotClient
var _ ChatbotClient = (*MockClient)(nil)

func (m *MockClient) Send(ctx context.Context, message string) (string, error) {
	m.mu.Lock()
	m.messages = append(m.messages, message)
	fn := m.SendFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, message)
	}
	return m.Reply, m.Err
}

func (m *MockClient) BaseURL() string {
	if m.Base == "" {
		return "http://127.0.0.1:5000"
	}
	return m.Base
}

func (m *MockClient) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeCalled = true
}

func (m *MockClient) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeCalled
}

// Messages returns every message passed to Send, in call order
func (m *MockClient) Messages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.messages))
	copy(out, m.messages)
	return out
}
