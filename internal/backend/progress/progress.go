package progress

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// Sink receives human readable progress text, one message per call.
type Sink interface {
	Progress(text string)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(text string)

func (f SinkFunc) Progress(text string) { f(text) }

// Discard drops all progress text.
var Discard Sink = SinkFunc(func(string) {})

// LogSink forwards progress text to a structured logger.
type LogSink struct {
	Logger *slog.Logger
	Attrs  []any
}

func (s LogSink) Progress(text string) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info(text, s.Attrs...)
}

// WriterSink writes each message on its own line.
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

func (s *WriterSink) Progress(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = fmt.Fprintln(s.w, text)
}

// Recorder keeps all messages in memory.
type Recorder struct {
	mu       sync.Mutex
	messages []string
}

func (r *Recorder) Progress(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, text)
}

// Messages returns a copy of the recorded messages.
func (r *Recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.messages))
	copy(out, r.messages)
	return out
}

// Multi fans each message out to every sink in order.
type Multi []Sink

func (m Multi) Progress(text string) {
	for _, sink := range m {
		if sink != nil {
			sink.Progress(text)
		}
	}
}
