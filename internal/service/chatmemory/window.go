package chatmemory

import (
	"codegen-app/internal/service/llm"
	"sync"
)

// Window is a bounded in-memory message window used as model context.
// Once full, adding a message evicts the oldest one.
type Window struct {
	mu       sync.Mutex
	capacity int
	messages []llm.Message
}

// NewWindow creates a window holding at most capacity messages
func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = 1
	}
	return &Window{capacity: capacity}
}

// Add appends a message, evicting the oldest when over capacity
func (w *Window) Add(m llm.Message) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.messages = append(w.messages, m)
	if over := len(w.messages) - w.capacity; over > 0 {
		w.messages = append(w.messages[:0:0], w.messages[over:]...)
	}
}

// Clear removes every message
func (w *Window) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.messages = nil
}

// Messages returns a copy of the window, oldest first
func (w *Window) Messages() []llm.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]llm.Message(nil), w.messages...)
}

// Len returns the number of messages held
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.messages)
}

// Capacity returns the maximum number of messages held
func (w *Window) Capacity() int {
	return w.capacity
}
