package search

import (
	"sync"
	"time"
)

// Session limits.
const (
	DefaultSessionTTL  = 10 * time.Minute
	DefaultMaxSessions = 1024
)

// Hub keeps one Expander per client session. Sessions idle longer than the
// TTL are dropped on the next Update, and when MaxSessions is reached the
// least recently used session makes room for a new one.
type Hub struct {
	delay   time.Duration
	minLen  int
	suggest SuggestFunc
	deliver func(session string, s Suggestion)

	ttl         time.Duration
	maxSessions int
	now         func() time.Time

	mu       sync.Mutex
	sessions map[string]*hubSession
}

type hubSession struct {
	exp      *Expander
	lastUsed time.Time
}

// HubOption tunes a Hub.
type HubOption func(*Hub)

// WithSessionLimits overrides the idle TTL and the session cap.
func WithSessionLimits(ttl time.Duration, maxSessions int) HubOption {
	return func(h *Hub) {
		if ttl > 0 {
			h.ttl = ttl
		}
		if maxSessions > 0 {
			h.maxSessions = maxSessions
		}
	}
}

// WithClock replaces time.Now for idle accounting.
func WithClock(now func() time.Time) HubOption {
	return func(h *Hub) { h.now = now }
}

// NewHub creates a Hub; deliver receives every applied suggestion.
func NewHub(delay time.Duration, minLen int, suggest SuggestFunc, deliver func(session string, s Suggestion), opts ...HubOption) *Hub {
	h := &Hub{
		delay:       delay,
		minLen:      minLen,
		suggest:     suggest,
		deliver:     deliver,
		ttl:         DefaultSessionTTL,
		maxSessions: DefaultMaxSessions,
		now:         time.Now,
		sessions:    make(map[string]*hubSession),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Update forwards query to the session's Expander, creating it on first use.
func (h *Hub) Update(session, query string) uint64 {
	now := h.now()

	h.mu.Lock()
	sess, ok := h.sessions[session]
	var evicted []*Expander
	if !ok {
		evicted = h.evictLocked(now)
		sess = &hubSession{exp: NewExpander(h.delay, h.minLen, h.suggest, func(s Suggestion) {
			if h.deliver != nil {
				h.deliver(session, s)
			}
		})}
		h.sessions[session] = sess
	}
	sess.lastUsed = now
	h.mu.Unlock()

	for _, e := range evicted {
		e.Stop()
	}
	return sess.exp.Update(query)
}

// evictLocked drops idle sessions and, at the cap, the least recently used one.
func (h *Hub) evictLocked(now time.Time) []*Expander {
	var out []*Expander
	for id, s := range h.sessions {
		if now.Sub(s.lastUsed) > h.ttl {
			delete(h.sessions, id)
			out = append(out, s.exp)
		}
	}
	if len(h.sessions) < h.maxSessions {
		return out
	}
	var oldestID string
	var oldest time.Time
	for id, s := range h.sessions {
		if oldestID == "" || s.lastUsed.Before(oldest) {
			oldestID, oldest = id, s.lastUsed
		}
	}
	out = append(out, h.sessions[oldestID].exp)
	delete(h.sessions, oldestID)
	return out
}

// Latest returns the last applied suggestion for session.
func (h *Hub) Latest(session string) (Suggestion, bool) {
	h.mu.Lock()
	s, ok := h.sessions[session]
	h.mu.Unlock()
	if !ok {
		return Suggestion{}, false
	}
	return s.exp.Latest(), true
}

// Len returns the number of live sessions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// Forget stops and drops the session's Expander.
func (h *Hub) Forget(session string) {
	h.mu.Lock()
	s, ok := h.sessions[session]
	delete(h.sessions, session)
	h.mu.Unlock()
	if ok {
		s.exp.Stop()
	}
}

// Close stops every Expander.
func (h *Hub) Close() {
	h.mu.Lock()
	all := h.sessions
	h.sessions = make(map[string]*hubSession)
	h.mu.Unlock()
	for _, s := range all {
		s.exp.Stop()
	}
}
