// Package testutil provides test utilities for packages that consume the
// reasoning client.
package testutil

import (
	"context"
	"sync"

	"github.com/c360studio/irops/reasoning"
)

// MockClient is a thread-safe mock reasoning client for testing. It
// captures the requests passed to Complete() and returns configured
// responses in sequence.
//
// Usage:
//
//	// Single response mock
//	mock := &MockClient{
//	    Responses: []*reasoning.Response{
//	        {Content: `{"narrative": "hold and rebook"}`, Model: "test-model"},
//	    },
//	}
//
//	// Error response
//	mock := &MockClient{
//	    Err: errors.New("connection failed"),
//	}
type MockClient struct {
	mu               sync.Mutex
	capturedContext  context.Context
	capturedRequests []reasoning.Request
	Responses        []*reasoning.Response // Responses to return in sequence
	Err              error                 // Error to return (takes precedence over Responses)
	callCount        int
	responseIndex    int
}

// Complete returns the next response from Responses, or Err if set.
// Captures the context and request for verification in tests.
func (m *MockClient) Complete(ctx context.Context, req reasoning.Request) (*reasoning.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.capturedContext = ctx
	m.capturedRequests = append(m.capturedRequests, req)
	m.callCount++

	if m.Err != nil {
		return nil, m.Err
	}

	if m.responseIndex < len(m.Responses) {
		resp := m.Responses[m.responseIndex]
		m.responseIndex++
		return resp, nil
	}

	// Default response if no responses configured
	return &reasoning.Response{Content: "", Model: "test-model"}, nil
}

// CapturedContext returns the last context passed to Complete().
func (m *MockClient) CapturedContext() context.Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.capturedContext
}

// CapturedRequests returns a copy of all requests passed to Complete().
func (m *MockClient) CapturedRequests() []reasoning.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]reasoning.Request, len(m.capturedRequests))
	copy(out, m.capturedRequests)
	return out
}

// CallCount returns the number of times Complete() was called.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// Reset clears the mock's state (call count, captures, and response
// index). Useful for reusing the same mock across test cases.
func (m *MockClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.responseIndex = 0
	m.capturedContext = nil
	m.capturedRequests = nil
}
