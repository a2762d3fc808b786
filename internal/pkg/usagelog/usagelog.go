// Package usagelog appends token usage records to a JSONL file off the
// request path.
package usagelog

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/kart-io/logger"

	"github.com/kenneth-kang/elementary-chatbot/pkg/pool"
)

// Record is one chat interaction's token accounting.
type Record struct {
	Timestamp    string `json:"timestamp"`
	Model        string `json:"model"`
	UserText     string `json:"user_text"`
	ResponseText string `json:"response_text"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
	TotalTokens  int    `json:"total_tokens"`
}

// Logger writes Records to an append-only JSONL file. Writes run on a
// nonblocking worker pool; a full pool drops the record rather than
// stalling the chat request.
type Logger struct {
	path string
	pool *pool.Pool

	mu   sync.Mutex
	file *os.File
}

// New opens (or creates) the JSONL file at path and starts the writer pool.
func New(path string) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}

	p, err := pool.NewPool("usagelog", pool.UsageLogPool, pool.UsageLogPoolConfig())
	if err != nil {
		file.Close()
		return nil, err
	}

	return &Logger{
		path: path,
		pool: p,
		file: file,
	}, nil
}

// Log queues a record for writing. It never blocks the caller.
func (l *Logger) Log(record Record) {
	if record.Timestamp == "" {
		record.Timestamp = time.Now().Format(time.RFC3339)
	}

	err := l.pool.Submit(func() {
		l.write(record)
	})
	if err != nil {
		logger.Warnw("usage log record dropped", "error", err.Error())
	}
}

func (l *Logger) write(record Record) {
	data, err := sonic.Marshal(record)
	if err != nil {
		logger.Warnw("failed to marshal usage record", "error", err.Error())
		return
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.file.Write(data); err != nil {
		logger.Errorw("failed to write usage record", "error", err.Error(), "path", l.path)
	}
}

// Close drains the pool and closes the file.
func (l *Logger) Close() error {
	if err := l.pool.ReleaseTimeout(5 * time.Second); err != nil {
		l.pool.Release()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}
