package mock

import (
	"context"
	"errors"
	"sync"

	"github.com/poiesic/stratum/core"
)

// ErrNoResponse is returned by MockGenerator when its response queue is empty.
var ErrNoResponse = errors.New("mock generator: no response queued")

// MockGenerator is a test double for ai.Generator.
// Responses are served in order; the last one repeats once the queue is
// drained. GenerateFunc overrides the queue when set.
type MockGenerator struct {
	// GenerateFunc is called by Generate if set.
	GenerateFunc func(ctx context.Context, prompt core.Prompt) (string, error)

	mu        sync.Mutex
	responses []string
	prompts   []core.Prompt
}

// NewMockGenerator creates a mock generator answering with responses.
func NewMockGenerator(responses ...string) *MockGenerator {
	return &MockGenerator{responses: responses}
}

// Generate records the prompt and returns the next queued response.
func (m *MockGenerator) Generate(ctx context.Context, prompt core.Prompt) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	fn := m.GenerateFunc
	var (
		response string
		ok       bool
	)
	if len(m.responses) > 0 {
		response, ok = m.responses[0], true
		if len(m.responses) > 1 {
			m.responses = m.responses[1:]
		}
	}
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, prompt)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !ok {
		return "", ErrNoResponse
	}
	return response, nil
}

// Prompts returns every prompt received so far.
func (m *MockGenerator) Prompts() []core.Prompt {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]core.Prompt, len(m.prompts))
	copy(out, m.prompts)
	return out
}

// CallCount returns the number of Generate calls.
func (m *MockGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

// Reset clears recorded prompts, queued responses and injected behavior.
func (m *MockGenerator) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = nil
	m.responses = nil
	m.GenerateFunc = nil
}
