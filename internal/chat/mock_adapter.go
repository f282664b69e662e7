package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// MockAdapter implements Adapter, Identifier and Joiner for testing. It
// records sent messages and allows simulating inbound messages via
// SimulateInbound.
type MockAdapter struct {
	mu        sync.Mutex
	connected bool
	closed    bool
	inbound   chan InboundMessage
	sent      []OutboundMessage
	accounts  map[string]string // nick -> account
	joined    map[string]string // channel -> key
	botUserID string
	notify    chan struct{}
}

// NewMockAdapter creates a MockAdapter with a buffered inbound channel.
func NewMockAdapter() *MockAdapter {
	return &MockAdapter{
		inbound:  make(chan InboundMessage, 100),
		accounts: make(map[string]string),
		joined:   make(map[string]string),
		notify:   make(chan struct{}, 1),
	}
}

// BotUserID returns the configured bot user ID (implements BotUserIDer).
func (m *MockAdapter) BotUserID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.botUserID
}

// SetBotUserID sets the bot user ID for testing.
func (m *MockAdapter) SetBotUserID(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.botUserID = id
}

// Connect marks the adapter as connected.
func (m *MockAdapter) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("mock adapter: already closed")
	}
	m.connected = true
	return nil
}

// Listen returns the inbound message channel. Must be called after Connect.
func (m *MockAdapter) Listen(ctx context.Context) (<-chan InboundMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return nil, fmt.Errorf("mock adapter: not connected")
	}
	return m.inbound, nil
}

// Send records the outbound message.
func (m *MockAdapter) Send(ctx context.Context, msg OutboundMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return fmt.Errorf("mock adapter: not connected")
	}
	m.sent = append(m.sent, msg)
	select {
	case m.notify <- struct{}{}:
	default:
	}
	return nil
}

// Identify returns the account registered with SetAccount.
func (m *MockAdapter) Identify(ctx context.Context, nick string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accounts[strings.ToLower(nick)], nil
}

// Join records a joined channel.
func (m *MockAdapter) Join(ctx context.Context, channel, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.joined[channel] = key
	return nil
}

// Part forgets a joined channel.
func (m *MockAdapter) Part(ctx context.Context, channel string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.joined[channel]; !ok {
		return fmt.Errorf("mock adapter: not in %s", channel)
	}
	delete(m.joined, channel)
	return nil
}

// Close shuts down the mock adapter and closes the inbound channel.
func (m *MockAdapter) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	m.connected = false
	close(m.inbound)
	return nil
}

// --- Test helpers ---

// SetAccount registers the network account Identify reports for nick.
func (m *MockAdapter) SetAccount(nick, account string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[strings.ToLower(nick)] = account
}

// Joined reports whether the bot is in channel.
func (m *MockAdapter) Joined(channel string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.joined[channel]
	return ok
}

// SimulateInbound sends a message into the inbound channel as if it came
// from the chat platform. Safe to call from any goroutine.
func (m *MockAdapter) SimulateInbound(msg InboundMessage) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	m.inbound <- msg
}

// LastSent returns the most recently sent outbound message.
// Returns zero value and false if no messages have been sent.
func (m *MockAdapter) LastSent() (OutboundMessage, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return OutboundMessage{}, false
	}
	return m.sent[len(m.sent)-1], true
}

// SentCount returns the number of outbound messages sent.
func (m *MockAdapter) SentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

// AllSent returns a copy of all sent outbound messages.
func (m *MockAdapter) AllSent() []OutboundMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]OutboundMessage, len(m.sent))
	copy(out, m.sent)
	return out
}

// WaitSent blocks until at least n messages were sent or the timeout
// passes, and reports whether the count was reached.
func (m *MockAdapter) WaitSent(n int, timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		if m.SentCount() >= n {
			return true
		}
		select {
		case <-m.notify:
		case <-deadline:
			return m.SentCount() >= n
		}
	}
}
