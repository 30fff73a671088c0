package session

import (
	"sync"
	"sync/atomic"

	"github.com/hareshsuppiah/sport-science-ai-chat/internal/domain"
	"github.com/hareshsuppiah/sport-science-ai-chat/internal/memory"
)

// Conversation is the state of one persona within one session: the prompt memory,
// the display transcript and the in-flight flag.
type Conversation struct {
	contextID string
	memory    *memory.Buffer
	busy      atomic.Bool

	mu         sync.RWMutex
	transcript []domain.Message
}

func newConversation(contextID string, memoryCapacity int) *Conversation {
	return &Conversation{
		contextID: contextID,
		memory:    memory.New(memoryCapacity),
	}
}

// ContextID returns the persona this conversation belongs to.
func (c *Conversation) ContextID() string { return c.contextID }

// Memory returns the prompt memory buffer.
func (c *Conversation) Memory() *memory.Buffer { return c.memory }

// TryBegin marks a turn as in flight. It returns false if one already is.
func (c *Conversation) TryBegin() bool { return c.busy.CompareAndSwap(false, true) }

// End clears the in-flight mark.
func (c *Conversation) End() { c.busy.Store(false) }

// Busy reports whether a turn is in flight.
func (c *Conversation) Busy() bool { return c.busy.Load() }

// Append adds a message to the display transcript.
func (c *Conversation) Append(m domain.Message) {
	c.mu.Lock()
	c.transcript = append(c.transcript, m)
	c.mu.Unlock()
}

// Transcript returns up to limit messages starting at offset, and the total count.
// limit <= 0 returns everything from offset.
func (c *Conversation) Transcript(offset, limit int) ([]domain.Message, int) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	total := len(c.transcript)
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return []domain.Message{}, total
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	out := make([]domain.Message, end-offset)
	copy(out, c.transcript[offset:end])
	return out, total
}

// ResetIfIdle clears the conversation while holding the in-flight mark, so no turn can
// start halfway through. It returns false, changing nothing, when a turn is in flight.
func (c *Conversation) ResetIfIdle() bool {
	if !c.TryBegin() {
		return false
	}
	defer c.End()
	c.Reset()
	return true
}

// Reset clears both the transcript and the prompt memory.
func (c *Conversation) Reset() {
	c.mu.Lock()
	c.transcript = nil
	c.mu.Unlock()
	c.memory.Clear()
}
