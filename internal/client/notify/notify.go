// Package notify shows user-facing messages raised by the request layer.
package notify

import (
	"fmt"
	"io"
	"sync"

	"github.com/goban/core/internal/infrastructure/logger"
)

// Notifier displays an error message to the operator
type Notifier interface {
	Error(msg string)
}

// Writer prints messages to w, one per line
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (n *Writer) Error(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	fmt.Fprintln(n.w, msg)
}

// Log sends messages to a structured logger
type Log struct {
	log *logger.Logger
}

func NewLog(log *logger.Logger) *Log {
	return &Log{log: log.WithComponent("notify")}
}

func (n *Log) Error(msg string) {
	n.log.Warnw("Request error", "message", msg)
}

// Multi fans a message out to several notifiers
type Multi []Notifier

func (m Multi) Error(msg string) {
	for _, n := range m {
		n.Error(msg)
	}
}
