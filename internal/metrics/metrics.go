package metrics

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
)

type Tag struct {
	Key   string
	Value string
}

func T(key, value string) Tag { return Tag{Key: key, Value: value} }

// Sink accepts named counters and gauges with dimension tags.
type Sink interface {
	Add(name string, delta float64, tags ...Tag)
	Set(name string, value float64, tags ...Tag)
}

func Inc(s Sink, name string, tags ...Tag) {
	if s == nil {
		return
	}
	s.Add(name, 1, tags...)
}

type kind int

const (
	kindCounter kind = iota + 1
	kindGauge
)

type family struct {
	kind   kind
	help   string
	series map[string]*series
}

type series struct {
	tags  []Tag
	value float64
}

// Registry is an in-process Sink rendered in Prometheus text format.
type Registry struct {
	mu       sync.Mutex
	prefix   string
	families map[string]*family
}

func NewRegistry(prefix string) *Registry {
	return &Registry{prefix: prefix, families: map[string]*family{}}
}

// Describe sets the HELP text of a metric family.
func (r *Registry) Describe(name, help string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if f := r.families[name]; f != nil {
		f.help = help
		return
	}
	r.families[name] = &family{help: help, series: map[string]*series{}}
}

func (r *Registry) Add(name string, delta float64, tags ...Tag) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.seriesLocked(name, kindCounter, tags)
	s.value += delta
}

func (r *Registry) Set(name string, value float64, tags ...Tag) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.seriesLocked(name, kindGauge, tags)
	s.value = value
}

// Value returns the current value of one series, 0 if absent.
func (r *Registry) Value(name string, tags ...Tag) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	f := r.families[name]
	if f == nil {
		return 0
	}
	s := f.series[seriesKey(sortTags(tags))]
	if s == nil {
		return 0
	}
	return s.value
}

func (r *Registry) WritePrometheus(w io.Writer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.families))
	for n := range r.families {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		f := r.families[n]
		if len(f.series) == 0 {
			continue
		}
		full := r.prefix + n
		if f.help != "" {
			fmt.Fprintf(w, "# HELP %s %s\n", full, f.help)
		}
		typ := "gauge"
		if f.kind == kindCounter {
			typ = "counter"
		}
		fmt.Fprintf(w, "# TYPE %s %s\n", full, typ)

		keys := make([]string, 0, len(f.series))
		for k := range f.series {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			s := f.series[k]
			fmt.Fprintf(w, "%s%s %s\n", full, labels(s.tags), formatValue(s.value))
		}
	}
}

func (r *Registry) seriesLocked(name string, k kind, tags []Tag) *series {
	f := r.families[name]
	if f == nil {
		f = &family{series: map[string]*series{}}
		r.families[name] = f
	}
	if f.kind == 0 {
		f.kind = k
	}
	tags = sortTags(tags)
	key := seriesKey(tags)
	s := f.series[key]
	if s == nil {
		s = &series{tags: tags}
		f.series[key] = s
	}
	return s
}

func sortTags(tags []Tag) []Tag {
	out := make([]Tag, len(tags))
	copy(out, tags)
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func seriesKey(tags []Tag) string {
	var b strings.Builder
	for _, t := range tags {
		b.WriteString(t.Key)
		b.WriteByte(0)
		b.WriteString(t.Value)
		b.WriteByte(0)
	}
	return b.String()
}

func labels(tags []Tag) string {
	if len(tags) == 0 {
		return ""
	}
	parts := make([]string, 0, len(tags))
	for _, t := range tags {
		parts = append(parts, fmt.Sprintf("%s=%q", t.Key, t.Value))
	}
	return "{" + strings.Join(parts, ",") + "}"
}

func formatValue(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.6f", v)
}

type nop struct{}

func (nop) Add(string, float64, ...Tag) {}
func (nop) Set(string, float64, ...Tag) {}

func Nop() Sink { return nop{} }
