// Package sse implements a Server-Sent Events broker for real-time updates.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Event types.
const (
	TypeNotePrefix      = "note."
	TypeCommitRecorded  = "commit.recorded"
	TypeActivityUpdated = "activity.updated"
)

// keepAlive is the interval of comment lines sent to idle streams.
const keepAlive = 30 * time.Second

// Event represents an SSE event to broadcast.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// NoteData is the payload of the note.* events.
type NoteData struct {
	Path    string `json:"path"`
	OldPath string `json:"old_path,omitempty"`
}

// CommitData is the payload of a commit.recorded event.
type CommitData struct {
	Path     string    `json:"path"`
	Title    string    `json:"title"`
	Type     string    `json:"type"`
	Action   string    `json:"action"`
	Projects []string  `json:"projects"`
	At       time.Time `json:"at"`
}

// ActivityData is the payload of an activity.updated event: the projects
// whose aggregates changed since the previous one.
type ActivityData struct {
	Projects []string `json:"projects"`
}

// Broker manages SSE client connections and broadcasts events.
//
// A single internal loop owns the clients and the pending activity set;
// public methods talk to it over channels. Commits are broadcast at once,
// while the projects they touched are collected and announced in one
// activity.updated per throttle window.
type Broker struct {
	activityMin time.Duration

	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	commitCh      chan CommitData
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a new SSE broker. activity.updated is sent at most once
// per activityThrottle.
func NewBroker(activityThrottle time.Duration) *Broker {
	if activityThrottle <= 0 {
		activityThrottle = 2 * time.Second
	}

	b := &Broker{
		activityMin:   activityThrottle,
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		commitCh:      make(chan CommitData, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})

	var (
		lastActivity time.Time
		pending      []string
		flushTimer   *time.Timer
		flushCh      <-chan time.Time
	)

	broadcast := func(event Event) {
		raw, err := encode(event)
		if err != nil {
			return
		}
		for ch := range clients {
			select {
			case ch <- raw:
			default:
				// Slow client; drop rather than block the loop.
			}
		}
	}

	flush := func(now time.Time) {
		if len(pending) == 0 {
			return
		}
		lastActivity = now
		broadcast(Event{Type: TypeActivityUpdated, Data: ActivityData{Projects: pending}})
		pending = nil
	}

	for {
		select {
		case <-b.stopCh:
			if flushTimer != nil {
				flushTimer.Stop()
			}
			for ch := range clients {
				close(ch)
			}
			return

		case ch := <-b.subscribeCh:
			clients[ch] = struct{}{}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case c := <-b.commitCh:
			broadcast(Event{Type: TypeCommitRecorded, Data: c})

			for _, p := range c.Projects {
				if !slices.Contains(pending, p) {
					pending = append(pending, p)
				}
			}
			now := time.Now()
			if wait := b.activityMin - now.Sub(lastActivity); wait > 0 {
				if flushCh == nil {
					flushTimer = time.NewTimer(wait)
					flushCh = flushTimer.C
				}
				continue
			}
			flush(now)

		case now := <-flushCh:
			flushCh = nil
			flush(now)

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

func encode(event Event) ([]byte, error) {
	payload, err := json.Marshal(event.Data)
	if err != nil {
		return nil, err
	}
	return fmt.Appendf(nil, "id: %s\nevent: %s\ndata: %s\n\n", uuid.NewString(), event.Type, payload), nil
}

// Close gracefully stops broker loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a new client and returns its channel.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- ch:
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

// Publish sends an event to all connected clients.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishNoteEvent publishes a watcher change as note.<kind>. oldPath is
// only sent for renames.
func (b *Broker) PublishNoteEvent(kind, path, oldPath string) {
	data := NoteData{Path: path}
	switch kind {
	case "created", "updated", "deleted":
	case "renamed":
		data.OldPath = oldPath
	default:
		return
	}
	b.Publish(Event{Type: TypeNotePrefix + kind, Data: data})
}

// PublishCommit publishes a recorded commit and schedules activity.updated
// for its projects.
func (b *Broker) PublishCommit(c CommitData) {
	if b.closed.Load() {
		return
	}
	select {
	case b.commitCh <- c:
	case <-b.stopped:
	}
}

// ServeHTTP is the SSE endpoint handler (GET /api/events).
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
	_, _ = fmt.Fprintf(w, "retry: %d\n\n", (3 * time.Second).Milliseconds())
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	ping := time.NewTicker(keepAlive)
	defer ping.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ping.C:
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
