package search

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type recorder struct {
	mu  sync.Mutex
	got []Suggestion
	ch  chan Suggestion
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan Suggestion, 16)}
}

func (r *recorder) deliver(s Suggestion) {
	r.mu.Lock()
	r.got = append(r.got, s)
	r.mu.Unlock()
	r.ch <- s
}

func (r *recorder) wait(t *testing.T) Suggestion {
	t.Helper()
	select {
	case s := <-r.ch:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for suggestion")
		return Suggestion{}
	}
}

func TestExpanderDebounceCoalesces(t *testing.T) {
	var calls atomic.Int32
	var lastQuery atomic.Value
	suggest := func(_ context.Context, q string) []string {
		calls.Add(1)
		lastQuery.Store(q)
		return []string{q + "-kw"}
	}
	rec := newRecorder()
	e := NewExpander(50*time.Millisecond, 3, suggest, rec.deliver)
	defer e.Stop()

	e.Update("neu")
	e.Update("neur")
	seq := e.Update("neural")

	s := rec.wait(t)
	if s.Query != "neural" || s.Seq != seq {
		t.Errorf("suggestion = %+v, want query neural seq %d", s, seq)
	}
	if calls.Load() != 1 {
		t.Errorf("suggest calls = %d, want 1", calls.Load())
	}
	if s.Keywords[0] != "neural-kw" {
		t.Errorf("keywords = %v", s.Keywords)
	}
}

func TestExpanderDiscardsStaleResult(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	suggest := func(_ context.Context, q string) []string {
		if q == "neur" {
			close(entered)
			<-release
			return []string{"stale"}
		}
		return []string{"fresh"}
	}
	rec := newRecorder()
	e := NewExpander(10*time.Millisecond, 3, suggest, rec.deliver)
	defer e.Stop()

	e.Update("neur")
	<-entered // first request is in flight
	e.Update("neural")

	s := rec.wait(t)
	if s.Query != "neural" || s.Keywords[0] != "fresh" {
		t.Fatalf("suggestion = %+v", s)
	}

	close(release)
	select {
	case extra := <-rec.ch:
		t.Fatalf("stale result delivered: %+v", extra)
	case <-time.After(100 * time.Millisecond):
	}
	if e.Latest().Query != "neural" {
		t.Errorf("latest = %+v", e.Latest())
	}
}

func TestExpanderShortQueryClears(t *testing.T) {
	var calls atomic.Int32
	suggest := func(_ context.Context, q string) []string {
		calls.Add(1)
		return []string{"x"}
	}
	rec := newRecorder()
	e := NewExpander(10*time.Millisecond, 3, suggest, rec.deliver)
	defer e.Stop()

	e.Update("ne")
	s := rec.wait(t)
	if len(s.Keywords) != 0 {
		t.Errorf("keywords = %v, want empty", s.Keywords)
	}
	time.Sleep(30 * time.Millisecond)
	if calls.Load() != 0 {
		t.Errorf("short query fired %d requests", calls.Load())
	}
}

func TestExpanderNilResultBecomesEmpty(t *testing.T) {
	rec := newRecorder()
	e := NewExpander(time.Millisecond, 1, func(context.Context, string) []string { return nil }, rec.deliver)
	defer e.Stop()
	e.Update("query")
	s := rec.wait(t)
	if s.Keywords == nil || len(s.Keywords) != 0 {
		t.Errorf("keywords = %#v, want empty", s.Keywords)
	}
}

func TestHubSessionsAreIndependent(t *testing.T) {
	type delivery struct {
		session string
		s       Suggestion
	}
	ch := make(chan delivery, 4)
	h := NewHub(10*time.Millisecond, 3, func(_ context.Context, q string) []string {
		return []string{q}
	}, func(session string, s Suggestion) {
		ch <- delivery{session, s}
	})
	defer h.Close()

	h.Update("a", "memory")
	h.Update("b", "neural")

	seen := map[string]string{}
	for range 2 {
		select {
		case d := <-ch:
			seen[d.session] = d.s.Query
		case <-time.After(2 * time.Second):
			t.Fatal("timeout")
		}
	}
	if seen["a"] != "memory" || seen["b"] != "neural" {
		t.Errorf("seen = %v", seen)
	}
	if s, ok := h.Latest("a"); !ok || s.Query != "memory" {
		t.Errorf("latest a = %+v, %v", s, ok)
	}
	h.Forget("a")
	if _, ok := h.Latest("a"); ok {
		t.Error("forgotten session still present")
	}
}

func TestHubEvictsIdleSessions(t *testing.T) {
	now := time.Unix(1700000000, 0)
	h := NewHub(time.Hour, 3, func(context.Context, string) []string { return nil }, nil,
		WithSessionLimits(time.Minute, 100),
		WithClock(func() time.Time { return now }),
	)
	defer h.Close()

	h.Update("old", "memory")
	now = now.Add(30 * time.Second)
	h.Update("recent", "memory")
	now = now.Add(45 * time.Second)
	h.Update("new", "memory")

	if _, ok := h.Latest("old"); ok {
		t.Error("idle session survived")
	}
	if _, ok := h.Latest("recent"); !ok {
		t.Error("active session evicted")
	}
	if h.Len() != 2 {
		t.Errorf("sessions = %d, want 2", h.Len())
	}
}

func TestHubCapsSessions(t *testing.T) {
	now := time.Unix(1700000000, 0)
	h := NewHub(time.Hour, 3, func(context.Context, string) []string { return nil }, nil,
		WithSessionLimits(time.Hour, 3),
		WithClock(func() time.Time { return now }),
	)
	defer h.Close()

	for _, s := range []string{"a", "b", "c"} {
		h.Update(s, "query")
		now = now.Add(time.Second)
	}
	h.Update("a", "query again")
	now = now.Add(time.Second)

	for i := range 50 {
		h.Update(fmt.Sprintf("flood-%d", i), "query")
		now = now.Add(time.Second)
	}
	if h.Len() != 3 {
		t.Errorf("sessions = %d, want cap 3", h.Len())
	}
}
