package search

import (
	"context"
	"sync"
	"time"
	"unicode/utf8"
)

// SuggestFunc returns keyword suggestions for a query. It must fail open:
// errors become an empty result.
type SuggestFunc func(ctx context.Context, query string) []string

// Suggestion is the outcome of one expansion request.
type Suggestion struct {
	Seq      uint64   `json:"seq"`
	Query    string   `json:"query"`
	Keywords []string `json:"keywords"`
}

// Expander coalesces keyword expansion requests. Only the last query issued
// within the debounce window fires, and a result is delivered only when its
// sequence number is still the latest one issued.
type Expander struct {
	delay   time.Duration
	minLen  int
	suggest SuggestFunc
	deliver func(Suggestion)

	mu      sync.Mutex
	seq     uint64
	timer   *time.Timer
	latest  Suggestion
	stopped bool
}

// NewExpander creates an Expander. deliver may be nil.
func NewExpander(delay time.Duration, minLen int, suggest SuggestFunc, deliver func(Suggestion)) *Expander {
	if deliver == nil {
		deliver = func(Suggestion) {}
	}
	return &Expander{
		delay:   delay,
		minLen:  minLen,
		suggest: suggest,
		deliver: deliver,
	}
}

// Update registers a new query and returns its sequence number. Queries
// shorter than the minimum length clear the suggestions immediately.
func (e *Expander) Update(query string) uint64 {
	e.mu.Lock()
	if e.stopped {
		seq := e.seq
		e.mu.Unlock()
		return seq
	}
	e.seq++
	seq := e.seq
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}

	if utf8.RuneCountInString(query) < e.minLen {
		s := Suggestion{Seq: seq, Query: query, Keywords: []string{}}
		e.latest = s
		e.mu.Unlock()
		e.deliver(s)
		return seq
	}

	e.timer = time.AfterFunc(e.delay, func() { e.fire(seq, query) })
	e.mu.Unlock()
	return seq
}

func (e *Expander) fire(seq uint64, query string) {
	keywords := e.suggest(context.Background(), query)
	if keywords == nil {
		keywords = []string{}
	}

	e.mu.Lock()
	if e.stopped || seq != e.seq {
		// A newer query was issued while this one was in flight.
		e.mu.Unlock()
		return
	}
	s := Suggestion{Seq: seq, Query: query, Keywords: keywords}
	e.latest = s
	e.mu.Unlock()
	e.deliver(s)
}

// Latest returns the most recently applied suggestion.
func (e *Expander) Latest() Suggestion {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.latest
}

// Stop cancels any pending request and discards in-flight results.
func (e *Expander) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopped = true
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}
