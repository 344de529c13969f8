// Package transcript appends campaign turns to per-campaign NDJSON files.
package transcript

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ashureev/taleweaver/internal/domain"
	"github.com/ashureev/taleweaver/internal/metrics"
)

// Config controls transcript logging.
type Config struct {
	Enabled   bool
	Dir       string
	QueueSize int
}

// Entry is one line of a transcript file.
type Entry struct {
	CampaignID string      `json:"campaignId"`
	Role       domain.Role `json:"role"`
	Content    string      `json:"content"`
	Timestamp  time.Time   `json:"timestamp"`
	Provider   string      `json:"provider,omitempty"`
}

// Logger records transcript entries.
type Logger interface {
	Log(entry Entry)
	Close() error
}

type noopLogger struct{}

func (noopLogger) Log(Entry) {}
func (noopLogger) Close() error { return nil }

// Noop returns a logger that discards every entry.
func Noop() Logger { return noopLogger{} }

type fileLogger struct {
	dir    string
	queue  chan Entry
	done   chan struct{}
	logger *slog.Logger

	closeOnce sync.Once
	mu        sync.Mutex
	closed    bool
}

// New returns a logger writing <dir>/<campaignID>.ndjson, or a no-op logger
// when disabled. Entries are written by a single background goroutine; when
// its queue is full new entries are dropped.
func New(cfg Config, logger *slog.Logger) (Logger, error) {
	if !cfg.Enabled {
		return Noop(), nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Dir == "" {
		return nil, errors.New("transcript dir is required")
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create transcript dir: %w", err)
	}

	l := &fileLogger{
		dir:    cfg.Dir,
		queue:  make(chan Entry, cfg.QueueSize),
		done:   make(chan struct{}),
		logger: logger,
	}
	go l.run()
	return l, nil
}

func (l *fileLogger) Log(entry Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}

	select {
	case l.queue <- entry:
	default:
		metrics.TranscriptDropped.Inc()
		l.logger.Warn("Transcript queue full, dropping entry", "campaign_id", entry.CampaignID)
	}
}

// Close flushes queued entries and stops the writer.
func (l *fileLogger) Close() error {
	l.closeOnce.Do(func() {
		l.mu.Lock()
		l.closed = true
		close(l.queue)
		l.mu.Unlock()
		<-l.done
	})
	return nil
}

func (l *fileLogger) run() {
	defer close(l.done)
	for entry := range l.queue {
		if err := l.write(entry); err != nil {
			l.logger.Error("Failed to write transcript entry", "error", err, "campaign_id", entry.CampaignID)
		}
	}
}

func (l *fileLogger) write(entry Entry) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}

	// Campaign ids are server-generated UUIDs; Base keeps a bad id inside dir.
	path := filepath.Join(l.dir, filepath.Base(entry.CampaignID)+".ndjson")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open transcript: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append transcript: %w", err)
	}
	return nil
}
