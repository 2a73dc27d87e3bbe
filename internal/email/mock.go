package email

import (
	"context"
	"log"
	"sync"
)

// MockProvider logs instead of sending and remembers what it was asked
// to send. The default provider so a fresh checkout never emails anyone.
type MockProvider struct {
	mu   sync.Mutex
	sent []MockMessage
}

type MockMessage struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

func NewMockProvider() *MockProvider { return &MockProvider{} }

func (m *MockProvider) Send(_ context.Context, to, subject, textBody, htmlBody string) error {
	m.mu.Lock()
	m.sent = append(m.sent, MockMessage{To: to, Subject: subject, Text: textBody, HTML: htmlBody})
	m.mu.Unlock()
	log.Printf("[email] mock send to=%s subject=%q bytes=%d", to, subject, len(textBody))
	return nil
}

// Sent returns a copy of everything "sent" so far.
func (m *MockProvider) Sent() []MockMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockMessage, len(m.sent))
	copy(out, m.sent)
	return out
}
