// Package sse implements a Server-Sent Events broker for record changes.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/starford/tatami/internal/reconcile"
	"github.com/starford/tatami/internal/store"
)

// keepAlive is the interval of comment lines sent to idle streams.
const keepAlive = 15 * time.Second

// Event represents an SSE event to broadcast. Events with an empty Family
// reach every client; others only reach clients following that family.
type Event struct {
	Type   string `json:"type"`
	Family string `json:"-"`
	Data   any    `json:"data"`
}

type subscription struct {
	ch     chan []byte
	family string // empty follows every family
}

// Broker manages SSE client connections and broadcasts events.
//
// A single internal event loop (goroutine) owns the mutable state: clients,
// the event sequence and per-family throttle timestamps. Public methods talk
// to the loop through channels, so no mutexes are required.
type Broker struct {
	changedMin time.Duration

	subscribeCh   chan subscription
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	recordCh      chan store.Event
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a new SSE broker. At most one "family.changed" event is
// sent per family within each throttle interval.
func NewBroker(throttle time.Duration) *Broker {
	if throttle <= 0 {
		throttle = 2 * time.Second
	}

	b := &Broker{
		changedMin:    throttle,
		subscribeCh:   make(chan subscription),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		recordCh:      make(chan store.Event, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]string)
	lastChanged := make(map[string]time.Time)
	var seq uint64

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		seq++
		raw := []byte(fmt.Sprintf("id: %d\nevent: %s\ndata: %s\n\n", seq, event.Type, payload))

		for ch, family := range clients {
			if family != "" && event.Family != "" && family != event.Family {
				continue
			}
			select {
			case ch <- raw:
			default:
				// Slow client; drop rather than stall the loop.
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case sub := <-b.subscribeCh:
			clients[sub.ch] = sub.family

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case ev := <-b.recordCh:
			broadcast(Event{Type: "record." + string(ev.Op), Family: ev.Family, Data: ev})

			now := time.Now()
			if now.Sub(lastChanged[ev.Family]) >= b.changedMin {
				lastChanged[ev.Family] = now
				broadcast(Event{
					Type:   "family.changed",
					Family: ev.Family,
					Data:   map[string]string{"family": ev.Family},
				})
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close gracefully stops broker loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a client following family, or every family when family
// is empty, and returns its channel.
func (b *Broker) Subscribe(family string) chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- subscription{ch: ch, family: family}:
	case <-b.stopped:
		close(ch)
	}

	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends an event to all interested clients.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishRecordEvent publishes a store mutation and a throttled
// family.changed event. It has the store.Listener signature.
func (b *Broker) PublishRecordEvent(ev store.Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.recordCh <- ev:
	case <-b.stopped:
	}
}

// PublishCleanReport publishes a clean.completed event for rep. It has the
// service.CleanListener signature.
func (b *Broker) PublishCleanReport(rep reconcile.Report) {
	b.Publish(Event{Type: "clean.completed", Family: rep.Family, Data: rep})
}

// ServeHTTP is the SSE endpoint handler (GET /api/events). The optional
// ?family= query parameter restricts the stream to one family.
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

	ch := b.Subscribe(r.URL.Query().Get("family"))
	defer b.Unsubscribe(ch)

	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = w.Write([]byte(": ping\n\n"))
			flusher.Flush()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
