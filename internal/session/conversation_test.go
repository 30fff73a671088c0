package session

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hareshsuppiah/sport-science-ai-chat/internal/domain"
)

func fill(c *Conversation, n int) {
	at := time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)
	for i := range n {
		c.Append(domain.NewMessage(domain.RoleUser, fmt.Sprintf("m%d", i), at.Add(time.Duration(i)*time.Second)))
	}
}

func TestTranscript_Pagination(t *testing.T) {
	c := newConversation("study-1", 0)
	fill(c, 7)

	tests := []struct {
		name          string
		offset, limit int
		want          []string
	}{
		{"first page", 0, 3, []string{"m0", "m1", "m2"}},
		{"middle page", 3, 3, []string{"m3", "m4", "m5"}},
		{"last partial page", 6, 3, []string{"m6"}},
		{"past end", 10, 3, []string{}},
		{"no limit", 5, 0, []string{"m5", "m6"}},
		{"negative offset", -2, 1, []string{"m0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, total := c.Transcript(tt.offset, tt.limit)
			if total != 7 {
				t.Errorf("expected total 7, got %d", total)
			}
			if len(page) != len(tt.want) {
				t.Fatalf("expected %d messages, got %d", len(tt.want), len(page))
			}
			for i, m := range page {
				if m.Content != tt.want[i] {
					t.Errorf("page[%d] = %q, want %q", i, m.Content, tt.want[i])
				}
			}
		})
	}
}

func TestTranscript_ReturnsCopy(t *testing.T) {
	c := newConversation("study-1", 0)
	fill(c, 2)

	page, _ := c.Transcript(0, 0)
	page[0].Content = "mutated"

	again, _ := c.Transcript(0, 0)
	if again[0].Content != "m0" {
		t.Error("transcript must not be mutable through a returned page")
	}
}

func TestReset_ClearsTranscriptAndMemory(t *testing.T) {
	c := newConversation("study-1", 50)
	fill(c, 3)
	c.Memory().Add(domain.NewMessage(domain.RoleUser, "q", time.Now()))

	c.Reset()

	if _, total := c.Transcript(0, 0); total != 0 {
		t.Errorf("expected empty transcript, got %d", total)
	}
	if c.Memory().Len() != 0 {
		t.Errorf("expected empty memory, got %d", c.Memory().Len())
	}
}

func TestTryBegin_SingleWinner(t *testing.T) {
	c := newConversation("study-1", 0)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if c.TryBegin() {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Errorf("expected exactly 1 winner, got %d", wins.Load())
	}
	if !c.Busy() {
		t.Error("expected busy after TryBegin")
	}
	c.End()
	if !c.TryBegin() {
		t.Error("expected TryBegin to succeed after End")
	}
}

func TestResetIfIdle(t *testing.T) {
	c := newConversation("study-1", 50)
	fill(c, 2)

	if !c.TryBegin() {
		t.Fatal("TryBegin failed on idle conversation")
	}
	if c.ResetIfIdle() {
		t.Fatal("expected reset to be refused during a turn")
	}
	if _, total := c.Transcript(0, 0); total != 2 {
		t.Errorf("refused reset changed the transcript: %d messages", total)
	}
	c.End()

	if !c.ResetIfIdle() {
		t.Fatal("expected reset to succeed when idle")
	}
	if _, total := c.Transcript(0, 0); total != 0 {
		t.Errorf("expected empty transcript, got %d", total)
	}
	if c.Busy() {
		t.Error("reset left the conversation busy")
	}
}

func TestResetIfIdle_NeverSplitsATurn(t *testing.T) {
	c := newConversation("study-1", 0)
	at := time.Now()

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for range 200 {
				if !c.TryBegin() {
					continue
				}
				c.Append(domain.NewMessage(domain.RoleUser, "q", at))
				c.Append(domain.NewMessage(domain.RoleAssistant, "a", at))
				c.End()
			}
		}()
		go func() {
			defer wg.Done()
			for range 200 {
				c.ResetIfIdle()
			}
		}()
	}
	wg.Wait()

	msgs, total := c.Transcript(0, 0)
	if total%2 != 0 {
		t.Fatalf("transcript holds half a turn: %d messages", total)
	}
	for i := 0; i < len(msgs); i += 2 {
		if msgs[i].Role != domain.RoleUser || msgs[i+1].Role != domain.RoleAssistant {
			t.Fatalf("turn %d out of order: %s, %s", i/2, msgs[i].Role, msgs[i+1].Role)
		}
	}
}
