// Package report defines the status sink shared by the importer and the
// database manager.
//
// Every long-running step announces itself with a human-readable message.
// Front-ends decide where messages go: the web UI keeps them in the session
// log, the terminal UI shows them in its status bar, the CLI prints them.
package report

import (
	"context"
	"log/slog"
	"sync"
)

// Reporter receives human-readable progress and error messages.
type Reporter interface {
	Report(message string)
}

// Func adapts a plain function to Reporter.
type Func func(message string)

// Report calls f(message).
func (f Func) Report(message string) { f(message) }

// Discard drops every message.
var Discard Reporter = Func(func(string) {})

// Slog forwards messages to a structured logger at info level.
type Slog struct {
	Logger *slog.Logger
	Attrs  []any
}

// NewSlog returns a Reporter writing to logger (slog.Default() if nil).
func NewSlog(logger *slog.Logger, attrs ...any) *Slog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Slog{Logger: logger, Attrs: attrs}
}

// Report logs the message.
func (s *Slog) Report(message string) {
	args := append([]any{"message", message}, s.Attrs...)
	s.Logger.Log(context.Background(), slog.LevelInfo, "status", args...)
}

// Multi fans a message out to several reporters.
func Multi(reporters ...Reporter) Reporter {
	return Func(func(message string) {
		for _, r := range reporters {
			if r != nil {
				r.Report(message)
			}
		}
	})
}

// Recorder keeps every message in order. Safe for concurrent use.
type Recorder struct {
	mu       sync.Mutex
	messages []string
	limit    int
}

// NewRecorder returns a Recorder keeping at most limit messages (0 = all).
func NewRecorder(limit int) *Recorder {
	return &Recorder{limit: limit}
}

// Report appends the message, dropping the oldest past the limit.
func (r *Recorder) Report(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, message)
	if r.limit > 0 && len(r.messages) > r.limit {
		r.messages = r.messages[len(r.messages)-r.limit:]
	}
}

// Messages returns a copy of the recorded messages.
func (r *Recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.messages))
	copy(out, r.messages)
	return out
}

// Last returns the most recent message, or "".
func (r *Recorder) Last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.messages) == 0 {
		return ""
	}
	return r.messages[len(r.messages)-1]
}

// Reset clears the recorded messages.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.messages = nil
	r.mu.Unlock()
}
