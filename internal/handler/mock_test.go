package handler

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/swatto/smsbridge/internal/sms"
)

// MockPlatform is a mock implementation of sms.Platform for testing
type MockPlatform struct {
	SendFunc func(recipient string, parts []string) error
	Calls    []MockCall
	mu       sync.Mutex
}

// MockCall represents a single send made through MockPlatform
type MockCall struct {
	Recipient string
	Parts     []string
	Multipart bool
}

func (m *MockPlatform) Split(text string) []string {
	return sms.Segment(text)
}

func (m *MockPlatform) SendSingle(_ context.Context, recipient, text string) error {
	return m.record(recipient, []string{text}, false)
}

func (m *MockPlatform) SendMultipart(_ context.Context, recipient string, parts []string) error {
	return m.record(recipient, parts, true)
}

func (m *MockPlatform) record(recipient string, parts []string, multipart bool) error {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{Recipient: recipient, Parts: parts, Multipart: multipart})
	m.mu.Unlock()
	if m.SendFunc != nil {
		return m.SendFunc(recipient, parts)
	}
	return nil
}

// CallCount returns the number of sends made
func (m *MockPlatform) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// GetCall returns the call at the specified index
func (m *MockPlatform) GetCall(index int) MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls[index]
}

// newTestHandler builds a Handler sending through mock.
func newTestHandler(cfg *Config, mock *MockPlatform) *Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	d := sms.NewDispatcher(mock, sms.WithLogger(logger))
	return New(cfg, d, "mock", "test")
}
