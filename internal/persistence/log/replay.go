package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/klauspost/compress/zstd"

	"hexstride.io/internal/presence/model"
)

const replayPrefix = "replay"

// EventSource is the subscribe half of the replay bus.
type EventSource interface {
	Subscribe(fn func(model.ReplayEvent)) (unsubscribe func())
}

// ReplayLogger persists every replay bus event to <dir>/replay-*.jsonl.zst.
// The bus callback only enqueues; a single goroutine owns the writer.
type ReplayLogger struct {
	w     *JSONLZstdWriter
	ch    chan model.ReplayEvent
	unsub func()
	done  chan struct{}
	once  sync.Once

	dropped atomic.Uint64
	failed  atomic.Uint64
	onError func(error)
}

func NewReplayLogger(dir string, buffer int, onError func(error)) *ReplayLogger {
	if buffer <= 0 {
		buffer = 4096
	}
	return &ReplayLogger{
		w:       NewJSONLZstdWriter(dir, replayPrefix),
		ch:      make(chan model.ReplayEvent, buffer),
		done:    make(chan struct{}),
		onError: onError,
	}
}

// Attach subscribes to src and starts the writer goroutine.
func (l *ReplayLogger) Attach(src EventSource) {
	l.unsub = src.Subscribe(func(e model.ReplayEvent) {
		select {
		case l.ch <- e:
		default:
			l.dropped.Add(1)
		}
	})
	go l.run()
}

func (l *ReplayLogger) run() {
	defer close(l.done)
	for e := range l.ch {
		if err := l.w.Write(e); err != nil {
			l.failed.Add(1)
			if l.onError != nil {
				l.onError(err)
			}
		}
	}
}

// Close detaches from the bus, drains queued events and closes the file.
func (l *ReplayLogger) Close() error {
	var err error
	l.once.Do(func() {
		if l.unsub != nil {
			l.unsub()
			close(l.ch)
			<-l.done
		}
		err = l.w.Close()
	})
	return err
}

func (l *ReplayLogger) Dropped() uint64 { return l.dropped.Load() }
func (l *ReplayLogger) Failed() uint64  { return l.failed.Load() }

// ListReplayFiles returns the replay files in dir in chronological order.
func ListReplayFiles(dir string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, replayPrefix+"-") && strings.HasSuffix(name, ".jsonl.zst") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, filepath.Join(dir, name))
	}
	return out, nil
}

// ReadReplayFile calls fn for each event in path. fn returning false stops
// the scan.
func ReadReplayFile(path string, fn func(model.ReplayEvent) bool) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	for sc.Scan() {
		var e model.ReplayEvent
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
		}
		if !fn(e) {
			return nil
		}
	}
	return sc.Err()
}
