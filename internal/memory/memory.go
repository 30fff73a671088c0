// Package memory keeps the short-term conversation window used for prompting.
package memory

import (
	"strings"
	"sync"

	"github.com/hareshsuppiah/sport-science-ai-chat/internal/domain"
)

// DefaultCapacity bounds the number of messages a Buffer retains.
const DefaultCapacity = 50

// Buffer is an ordered, bounded log of messages for one conversation context.
// Once full, each Add evicts the oldest message. Capacity 0 disables eviction.
type Buffer struct {
	mu       sync.RWMutex
	capacity int
	ring     []domain.Message
	head     int
	size     int
}

// New creates a buffer holding at most capacity messages.
func New(capacity int) *Buffer {
	if capacity < 0 {
		capacity = 0
	}
	b := &Buffer{capacity: capacity}
	if capacity > 0 {
		b.ring = make([]domain.Message, capacity)
	}
	return b
}

// Add appends a message.
func (b *Buffer) Add(m domain.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.capacity == 0 {
		b.ring = append(b.ring, m)
		b.size++
		return
	}
	if b.size < b.capacity {
		b.ring[(b.head+b.size)%b.capacity] = m
		b.size++
		return
	}
	b.ring[b.head] = m
	b.head = (b.head + 1) % b.capacity
}

// Recent returns the last n messages in chronological order, or all of them if fewer exist.
func (b *Buffer) Recent(n int) []domain.Message {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if n > b.size {
		n = b.size
	}
	if n <= 0 {
		return nil
	}
	out := make([]domain.Message, n)
	for i := range out {
		out[i] = b.at(b.size - n + i)
	}
	return out
}

// History renders every retained message as "Human: ..." / "Assistant: ..." lines.
func (b *Buffer) History() string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	lines := make([]string, b.size)
	for i := range lines {
		m := b.at(i)
		lines[i] = m.Role.Label() + ": " + m.Content
	}
	return strings.Join(lines, "\n")
}

// Len returns the number of retained messages.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// Clear drops every message.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.capacity == 0 {
		b.ring = nil
	} else {
		clear(b.ring)
	}
	b.head = 0
	b.size = 0
}

func (b *Buffer) at(i int) domain.Message {
	if b.capacity == 0 {
		return b.ring[i]
	}
	return b.ring[(b.head+i)%b.capacity]
}
