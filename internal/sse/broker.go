// Package sse streams change events to browser clients.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

// Event is one server-sent event.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// GraphUpdated follows note changes. Bursts are coalesced: the first change
// is announced at once and later ones within the throttle window produce a
// single trailing event.
const GraphUpdated = "graph.updated"

// Scoped is implemented by payloads addressed to one client session. They
// reach only the streams opened with that session.
type Scoped interface {
	EventSession() string
}

// Option configures a Broker.
type Option func(*Broker)

// WithGraphSource sets the payload of graph.updated, typically the
// dashboard stats at the moment the event is sent.
func WithGraphSource(fn func() any) Option {
	return func(b *Broker) { b.graphSource = fn }
}

// WithSessionEnd registers fn to run after the last stream of a session
// disconnects.
func WithSessionEnd(fn func(session string)) Option {
	return func(b *Broker) { b.sessionEnd = fn }
}

// Broker fans events out to SSE streams. A single loop goroutine owns the
// client set and the graph throttle; callers talk to it through ops.
type Broker struct {
	throttle    time.Duration
	graphSource func() any
	sessionEnd  func(string)

	ops     chan func(*hub)
	stop    chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// hub is the loop-owned state.
type hub struct {
	streams  map[chan []byte]string // stream -> session
	sessions map[string]int

	graphTimer   *time.Timer
	graphPending bool
}

// NewBroker starts a broker. graphThrottle bounds graph.updated frequency.
func NewBroker(graphThrottle time.Duration, opts ...Option) *Broker {
	if graphThrottle <= 0 {
		graphThrottle = 2 * time.Second
	}
	b := &Broker{
		throttle:    graphThrottle,
		graphSource: func() any { return struct{}{} },
		ops:         make(chan func(*hub), 256),
		stop:        make(chan struct{}),
		stopped:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	go b.loop()
	return b
}

func (b *Broker) loop() {
	defer close(b.stopped)

	h := &hub{
		streams:  make(map[chan []byte]string),
		sessions: make(map[string]int),
	}
	for {
		var tick <-chan time.Time
		if h.graphTimer != nil {
			tick = h.graphTimer.C
		}

		select {
		case <-b.stop:
			if h.graphTimer != nil {
				h.graphTimer.Stop()
			}
			for ch := range h.streams {
				close(ch)
			}
			return
		case op := <-b.ops:
			op(h)
		case <-tick:
			if h.graphPending {
				h.graphPending = false
				b.sendGraph(h)
				h.graphTimer.Reset(b.throttle)
			} else {
				h.graphTimer = nil
			}
		}
	}
}

// do runs op on the loop. It reports false once the broker is closed.
func (b *Broker) do(op func(*hub)) bool {
	if b.closed.Load() {
		return false
	}
	select {
	case b.ops <- op:
		return true
	case <-b.stopped:
		return false
	}
}

func (b *Broker) send(h *hub, ev Event) {
	payload, err := json.Marshal(ev.Data)
	if err != nil {
		return
	}
	msg := []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", ev.Type, payload))

	target := ""
	if sc, ok := ev.Data.(Scoped); ok {
		target = sc.EventSession()
	}
	for ch, session := range h.streams {
		if target != "" && session != target {
			continue
		}
		select {
		case ch <- msg:
		default:
			// slow stream; drop
		}
	}
}

func (b *Broker) sendGraph(h *hub) {
	b.send(h, Event{Type: GraphUpdated, Data: b.graphSource()})
}

// noteChanged announces the graph now or marks it for the trailing edge.
func (b *Broker) noteChanged(h *hub) {
	if h.graphTimer != nil {
		h.graphPending = true
		return
	}
	b.sendGraph(h)
	h.graphTimer = time.NewTimer(b.throttle)
}

// Close stops the loop and closes every stream.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stop)
	}
	<-b.stopped
}

// Subscribe opens a stream for session; an empty session receives only
// unscoped events.
func (b *Broker) Subscribe(session string) chan []byte {
	ch := make(chan []byte, 64)
	if !b.do(func(h *hub) {
		h.streams[ch] = session
		if session != "" {
			h.sessions[session]++
		}
	}) {
		close(ch)
	}
	return ch
}

// Unsubscribe closes ch. When it was the last stream of its session the
// session-end callback runs.
func (b *Broker) Unsubscribe(ch chan []byte) {
	b.do(func(h *hub) {
		session, ok := h.streams[ch]
		if !ok {
			return
		}
		delete(h.streams, ch)
		close(ch)
		if session == "" {
			return
		}
		if h.sessions[session]--; h.sessions[session] > 0 {
			return
		}
		delete(h.sessions, session)
		if b.sessionEnd != nil {
			go b.sessionEnd(session)
		}
	})
}

// ClientCount returns the number of open streams.
func (b *Broker) ClientCount() int {
	resp := make(chan int, 1)
	if !b.do(func(h *hub) { resp <- len(h.streams) }) {
		return 0
	}
	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends ev to every matching stream.
func (b *Broker) Publish(ev Event) {
	b.do(func(h *hub) { b.send(h, ev) })
}

// Notify implements the note service notifier. note.* events also drive
// graph.updated.
func (b *Broker) Notify(kind string, data any) {
	ev := Event{Type: kind, Data: data}
	if !strings.HasPrefix(kind, "note.") {
		b.Publish(ev)
		return
	}
	b.do(func(h *hub) {
		b.send(h, ev)
		b.noteChanged(h)
	})
}

// ServeHTTP streams events (GET /api/events?session=...).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe(r.URL.Query().Get("session"))
	defer b.Unsubscribe(ch)

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
