// Package obslog builds the structured loggers handed to rooms and the decay
// processor.
package obslog

import (
	"context"
	"io"
	"log"
	"log/slog"
	"sync"
)

// New returns a text slog.Logger that writes through l, so records keep the
// component's "[name] " prefix and timestamp flags.
func New(l *log.Logger) *slog.Logger {
	if l == nil {
		return Nop()
	}
	return slog.New(slog.NewTextHandler(prefixWriter{l: l}, &slog.HandlerOptions{
		Level: slog.LevelInfo,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// log.Logger already stamps the line.
			if len(groups) == 0 && a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return a
		},
	}))
}

type prefixWriter struct {
	l *log.Logger
}

func (w prefixWriter) Write(p []byte) (int, error) {
	if err := w.l.Output(2, string(p)); err != nil {
		return 0, err
	}
	return len(p), nil
}

func Nop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// Recorder is a slog.Handler that keeps records in memory for tests.
type Recorder struct {
	mu      sync.Mutex
	Records []Entry
}

type Entry struct {
	Level slog.Level
	Msg   string
	Attrs map[string]any
}

func (r *Recorder) Logger() *slog.Logger { return slog.New(r) }

func (r *Recorder) Enabled(context.Context, slog.Level) bool { return true }

func (r *Recorder) Handle(_ context.Context, rec slog.Record) error {
	e := Entry{Level: rec.Level, Msg: rec.Message, Attrs: map[string]any{}}
	rec.Attrs(func(a slog.Attr) bool {
		e.Attrs[a.Key] = a.Value.Any()
		return true
	})
	r.mu.Lock()
	r.Records = append(r.Records, e)
	r.mu.Unlock()
	return nil
}

// WithAttrs and WithGroup are not used by callers; records land unscoped.
func (r *Recorder) WithAttrs([]slog.Attr) slog.Handler { return r }
func (r *Recorder) WithGroup(string) slog.Handler { return r }

func (r *Recorder) Count(level slog.Level) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.Records {
		if e.Level == level {
			n++
		}
	}
	return n
}
