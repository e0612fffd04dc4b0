package slogx

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

// ChanWriter buffers writes and sends complete lines to channel.
// Used with slog.TextHandler for fan-in logging. Lines are dropped, and
// counted, when the channel is full.
type ChanWriter struct {
	Ch  chan<- string
	Buf []byte

	mu      sync.Mutex
	dropped atomic.Int64
}

func (w *ChanWriter) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Buf = append(w.Buf, p...)
	for {
		i := bytes.IndexByte(w.Buf, '\n')
		if i < 0 {
			break
		}
		line := string(w.Buf[:i])
		w.Buf = w.Buf[i+1:]
		select {
		case w.Ch <- line:
		default:
			w.dropped.Add(1)
		}
	}
	return len(p), nil
}

// Dropped reports how many lines were lost to a full channel.
func (w *ChanWriter) Dropped() int64 { return w.dropped.Load() }

// NewChanLogger creates a slog.Logger that writes to the channel in text format.
func NewChanLogger(ch chan<- string, level slog.Leveler) *slog.Logger {
	w := &ChanWriter{Ch: ch}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// ParseLevel converts string (debug|info|warn|error) to slog.Level. Unknown → info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New creates a text logger writing to w with the given level string.
func New(w io.Writer, level string) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: ParseLevel(level),
	}))
}

// NewDefault creates a logger writing to stderr with the given level string.
func NewDefault(level string) *slog.Logger {
	return New(os.Stderr, level)
}

// Setup installs NewDefault(level) as the process-wide slog default.
func Setup(level string) *slog.Logger {
	l := NewDefault(level)
	slog.SetDefault(l)
	return l
}
