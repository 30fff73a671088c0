// Package audit writes chat log entries in the background without delaying the caller.
package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hareshsuppiah/sport-science-ai-chat/internal/domain"
	"github.com/hareshsuppiah/sport-science-ai-chat/internal/metrics"
)

// Defaults for Config.
const (
	DefaultBufferSize   = 1000
	DefaultWorkers      = 2
	DefaultWriteTimeout = 5 * time.Second
)

// Writer persists one chat log entry.
type Writer interface {
	Insert(ctx context.Context, e domain.ChatLogEntry) error
}

// Sink accepts entries for asynchronous persistence.
type Sink interface {
	Record(e domain.ChatLogEntry)
}

// Config holds worker pool settings.
type Config struct {
	BufferSize   int
	Workers      int
	WriteTimeout time.Duration
}

// Logger is a buffered worker pool in front of a Writer. Record never blocks;
// entries that do not fit in the buffer are dropped and counted.
type Logger struct {
	writer       Writer
	logger       *zap.Logger
	entries      chan domain.ChatLogEntry
	workers      int
	writeTimeout time.Duration
	wg           sync.WaitGroup

	mu      sync.Mutex
	started bool
	stopped bool
}

// New creates a stopped Logger. Call Start before Record.
func New(w Writer, cfg Config, logger *zap.Logger) *Logger {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Logger{
		writer:       w,
		logger:       logger,
		entries:      make(chan domain.ChatLogEntry, cfg.BufferSize),
		workers:      cfg.Workers,
		writeTimeout: cfg.WriteTimeout,
	}
}

// Start launches the workers.
func (l *Logger) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.started {
		return errors.New("audit logger already started")
	}
	for i := range l.workers {
		l.wg.Add(1)
		go l.worker(i)
	}
	l.started = true
	l.logger.Info("Audit logger started",
		zap.Int("workers", l.workers),
		zap.Int("buffer_size", cap(l.entries)))
	return nil
}

// Stop stops accepting entries and waits for queued ones to be written.
func (l *Logger) Stop(timeout time.Duration) error {
	l.mu.Lock()
	if !l.started || l.stopped {
		l.mu.Unlock()
		return nil
	}
	l.stopped = true
	pending := len(l.entries)
	close(l.entries)
	l.mu.Unlock()

	l.logger.Info("Stopping audit logger", zap.Int("pending", pending))

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("audit logger stop timeout after %v", timeout)
	}
}

// Record queues an entry. It never blocks and never returns an error to the caller.
func (l *Logger) Record(e domain.ChatLogEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.started || l.stopped {
		l.drop(e, "not_running")
		return
	}

	select {
	case l.entries <- e:
	default:
		l.drop(e, "dropped")
	}
}

func (l *Logger) drop(e domain.ChatLogEntry, reason string) {
	metrics.AuditFailuresTotal.WithLabelValues(reason).Inc()
	l.logger.Warn("Chat log entry dropped",
		zap.String("reason", reason),
		zap.String("session_id", e.SessionID),
		zap.String("context_id", e.ContextID),
	)
}

func (l *Logger) worker(id int) {
	defer l.wg.Done()

	for e := range l.entries {
		l.write(id, e)
	}
}

func (l *Logger) write(id int, e domain.ChatLogEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), l.writeTimeout)
	defer cancel()

	if err := l.writer.Insert(ctx, e); err != nil {
		metrics.AuditFailuresTotal.WithLabelValues("write").Inc()
		l.logger.Error("Chat log write failed",
			zap.Int("worker_id", id),
			zap.String("session_id", e.SessionID),
			zap.String("context_id", e.ContextID),
			zap.Error(err),
		)
		return
	}
	metrics.AuditWritesTotal.Inc()
}

// Nop discards every entry. Used when chat logging is disabled.
type Nop struct{}

// Record implements Sink.
func (Nop) Record(domain.ChatLogEntry) {}
