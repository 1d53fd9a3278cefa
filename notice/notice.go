// Package notice delivers user-facing messages raised by the
// synchronization layer: rejected mutations, rollbacks, sign-in
// prompts. The caller decides where they surface.
package notice

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/grocerly/storefront/log"
)

// Level classifies a notice.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notice is a single user-facing message.
type Notice struct {
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Notifier receives notices. Implementations must not block
// indefinitely; slow consumers drop rather than stall mutations.
type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

// NoOp discards all notices.
type NoOp struct{}

func (NoOp) Notify(context.Context, Notice) {}

// LogNotifier writes notices to a logger.
type LogNotifier struct {
	logger *log.Logger
}

// NewLogNotifier creates a LogNotifier. A nil logger uses the global one.
func NewLogNotifier(logger *log.Logger) *LogNotifier {
	if logger == nil {
		logger = log.G
	}
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Notify(_ context.Context, n Notice) {
	event := l.logger.Info()
	switch n.Level {
	case LevelWarning:
		event = l.logger.Warn()
	case LevelError:
		event = l.logger.Error()
	}
	event.Time("at", n.At).Msg(n.Message)
}

// ChannelNotifier buffers notices on a channel for a UI loop to drain.
type ChannelNotifier struct {
	notices chan Notice
}

// NewChannelNotifier creates a ChannelNotifier with the given buffer
// capacity.
func NewChannelNotifier(buffer int) *ChannelNotifier {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelNotifier{
		notices: make(chan Notice, buffer),
	}
}

// Notify enqueues n, dropping it when the buffer is full.
func (c *ChannelNotifier) Notify(_ context.Context, n Notice) {
	select {
	case c.notices <- n:
	default:
	}
}

// Notices returns the receive side of the buffer.
func (c *ChannelNotifier) Notices() <-chan Notice {
	return c.notices
}

// JSONWriterNotifier writes notices as JSON lines.
type JSONWriterNotifier struct {
	writer io.Writer
	mu     sync.Mutex
}

// NewJSONWriterNotifier creates a JSONWriterNotifier that writes to w.
func NewJSONWriterNotifier(w io.Writer) *JSONWriterNotifier {
	return &JSONWriterNotifier{writer: w}
}

func (j *JSONWriterNotifier) Notify(_ context.Context, n Notice) {
	data, err := json.Marshal(n)
	if err != nil {
		return
	}
	data = append(data, '\n')

	j.mu.Lock()
	defer j.mu.Unlock()
	j.writer.Write(data)
}

// Multi fans a notice out to several notifiers.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n Notice) {
	for _, notifier := range m {
		if notifier != nil {
			notifier.Notify(ctx, n)
		}
	}
}
