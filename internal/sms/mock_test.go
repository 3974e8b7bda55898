package sms

import (
	"context"
	"sync"
)

// MockPlatform is a recording Platform for tests.
type MockPlatform struct {
	SplitFunc         func(text string) []string
	SendSingleFunc    func(recipient, text string) error
	SendMultipartFunc func(recipient string, parts []string) error

	mu             sync.Mutex
	SingleCalls    []MockCall
	MultipartCalls []MockCall
}

// MockCall represents a single send made through MockPlatform.
type MockCall struct {
	Recipient string
	Parts     []string
}

func (m *MockPlatform) Split(text string) []string {
	if m.SplitFunc != nil {
		return m.SplitFunc(text)
	}
	return Segment(text)
}

func (m *MockPlatform) SendSingle(_ context.Context, recipient, text string) error {
	m.mu.Lock()
	m.SingleCalls = append(m.SingleCalls, MockCall{Recipient: recipient, Parts: []string{text}})
	m.mu.Unlock()
	if m.SendSingleFunc != nil {
		return m.SendSingleFunc(recipient, text)
	}
	return nil
}

func (m *MockPlatform) SendMultipart(_ context.Context, recipient string, parts []string) error {
	m.mu.Lock()
	m.MultipartCalls = append(m.MultipartCalls, MockCall{Recipient: recipient, Parts: append([]string(nil), parts...)})
	m.mu.Unlock()
	if m.SendMultipartFunc != nil {
		return m.SendMultipartFunc(recipient, parts)
	}
	return nil
}

func (m *MockPlatform) Counts() (single, multipart int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.SingleCalls), len(m.MultipartCalls)
}

// mapArgs is an Arguments backed by a map; nil values read as absent.
type mapArgs map[string]*string

func (a mapArgs) Lookup(name string) (string, bool) {
	v, ok := a[name]
	if !ok || v == nil {
		return "", false
	}
	return *v, true
}

func strPtr(s string) *string { return &s }
