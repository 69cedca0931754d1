package business

import (
	"sync"

	"github.com/conduit-lang/bizobj/internal/bo/rules"
)

// mailbox is the single-consumer queue async rule completions are posted to
type mailbox struct {
	mu     sync.Mutex
	items  []rules.Completion
	closed bool
	ready  chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{ready: make(chan struct{}, 1)}
}

// post is called from worker goroutines
func (m *mailbox) post(c rules.Completion) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	m.items = append(m.items, c)
	m.mu.Unlock()

	select {
	case m.ready <- struct{}{}:
	default:
	}
	return true
}

func (m *mailbox) drain() []rules.Completion {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := m.items
	m.items = nil
	return items
}

func (m *mailbox) close() {
	m.mu.Lock()
	m.closed = true
	m.items = nil
	m.mu.Unlock()
}
