package services

import (
	"context"
	"sync"
)

// MockLLM is a mock implementation of LLMService for testing. Responses
// are consumed in order; when the queue is empty GenerateFunc or the
// default reply is used.
type MockLLM struct {
	InitModelFunc func(ctx context.Context, modelName string) error
	GenerateFunc  func(ctx context.Context, req GenerateRequest) (string, error)

	// Responses are returned one per Generate call, in order.
	Responses []string

	// Track calls for testing
	InitModelCalls []string
	GenerateCalls  []GenerateRequest

	mu sync.Mutex // protects all fields above
}

var _ LLMService = (*MockLLM)(nil)

// NewMockLLM creates a new mock LLM service.
func NewMockLLM(responses ...string) *MockLLM {
	return &MockLLM{
		Responses:      responses,
		InitModelCalls: make([]string, 0),
		GenerateCalls:  make([]GenerateRequest, 0),
	}
}

// InitModel mocks model initialization.
func (m *MockLLM) InitModel(ctx context.Context, modelName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.InitModelCalls = append(m.InitModelCalls, modelName)
	if m.InitModelFunc != nil {
		return m.InitModelFunc(ctx, modelName)
	}
	return nil
}

// Generate mocks a generation call.
func (m *MockLLM) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.GenerateCalls = append(m.GenerateCalls, req)

	if len(m.Responses) > 0 {
		resp := m.Responses[0]
		m.Responses = m.Responses[1:]
		return resp, nil
	}
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, req)
	}
	return "{}", nil
}

// Enqueue appends responses to the scripted queue.
func (m *MockLLM) Enqueue(responses ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses = append(m.Responses, responses...)
}

// SetGenerateError sets up the mock to fail every Generate call once the
// scripted responses run out.
func (m *MockLLM) SetGenerateError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GenerateFunc = func(ctx context.Context, req GenerateRequest) (string, error) {
		return "", err
	}
}

// Calls returns a copy of the recorded Generate calls.
func (m *MockLLM) Calls() []GenerateRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]GenerateRequest, len(m.GenerateCalls))
	copy(calls, m.GenerateCalls)
	return calls
}
